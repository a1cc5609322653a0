package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/renthouse/ms-go-payments/app/entity"
	"github.com/renthouse/ms-go-payments/app/gateway"
	"github.com/renthouse/ms-go-payments/app/repository"
)

const defaultDescription = "Listing publication fee"

type CreateSessionInput struct {
	UserID      string
	AmountMinor int64
	ListingID   string
	Description string
	IPAddress   string
	UserAgent   string
	NotifyURL   string
}

// CreateSession builds a new payment transaction, persists it in
// processing status, and returns it with the signed redirect URL set.
// Oversized descriptions are rejected rather than truncated: the signed
// URL and the stored record must never disagree on content.
func (s *PaymentService) CreateSession(ctx context.Context, input CreateSessionInput) (*entity.Transaction, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	if input.AmountMinor < s.paymentsCfg.MinAmount {
		return nil, ErrAmountTooSmall
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = defaultDescription
	}
	if len(description) > s.paymentsCfg.DescriptionMaxLen {
		return nil, ErrDescriptionTooLong
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.paymentsCfg.TransactionLifetime)
	code := newTransactionCode()
	ipAddress := gateway.FormatIPAddress(input.IPAddress)

	paymentURL, err := s.gateway.BuildPaymentURL(gateway.PaymentURLInput{
		TxnRef:      code,
		AmountMinor: input.AmountMinor,
		OrderInfo:   description + " - " + code,
		IPAddress:   ipAddress,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return nil, err
	}

	txn := &entity.Transaction{
		TransactionCode:      code,
		UserID:               userID,
		ListingID:            normalizeOptionalString(input.ListingID),
		AmountMinor:          input.AmountMinor,
		Description:          description,
		Status:               entity.StatusProcessing,
		PaymentURL:           &paymentURL,
		IPAddress:            ipAddress,
		UserAgent:            normalizeOptionalString(input.UserAgent),
		NotifyURL:            strings.TrimSpace(input.NotifyURL),
		NotifyDeliveryStatus: entity.NotifyDeliveryNone,
		CreatedAt:            now,
		UpdatedAt:            now,
		ExpiresAt:            expiresAt,
	}

	if err := s.txnRepo.Create(ctx, txn); err != nil {
		if errors.Is(err, repository.ErrTransactionAlreadyExists) {
			return nil, ErrTransactionAlreadyExists
		}
		return nil, err
	}

	s.recordEvent(ctx, txn.ID, "transaction_created", nil, txn.Status, "", now)

	return txn, nil
}

// RegeneratePaymentURL rebuilds the signed redirect URL for a transaction
// still waiting on the gateway, with a fresh expiry window. Bounded by the
// configured retry limit.
func (s *PaymentService) RegeneratePaymentURL(ctx context.Context, transactionCode, userID string) (*entity.Transaction, error) {
	txn, err := s.ownedTransaction(ctx, transactionCode, userID)
	if err != nil {
		return nil, err
	}
	if txn.Status != entity.StatusProcessing {
		return nil, ErrInvalidStatus
	}
	if txn.RetryCount >= s.paymentsCfg.URLRetryLimit {
		return nil, ErrRetryLimitReached
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.paymentsCfg.TransactionLifetime)

	paymentURL, err := s.gateway.BuildPaymentURL(gateway.PaymentURLInput{
		TxnRef:      txn.TransactionCode,
		AmountMinor: txn.AmountMinor,
		OrderInfo:   txn.Description + " - " + txn.TransactionCode,
		IPAddress:   txn.IPAddress,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return nil, err
	}

	swapped, err := s.txnRepo.UpdatePaymentURL(ctx, txn.TransactionCode, paymentURL, txn.RetryCount+1, expiresAt, now)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// Lost a race with a callback or the sweeper.
		return nil, ErrInvalidStatus
	}

	s.recordEvent(ctx, txn.ID, "payment_url_regenerated", nil, txn.Status, "", now)

	txn.PaymentURL = &paymentURL
	txn.RetryCount++
	txn.ExpiresAt = expiresAt
	txn.UpdatedAt = now
	return txn, nil
}

// CancelTransaction marks a user-abandoned transaction cancelled.
// Cancelling an already-cancelled transaction is an idempotent no-op.
func (s *PaymentService) CancelTransaction(ctx context.Context, transactionCode, userID string) (*entity.Transaction, error) {
	txn, err := s.ownedTransaction(ctx, transactionCode, userID)
	if err != nil {
		return nil, err
	}

	if txn.Status.Terminal() {
		if txn.Status == entity.StatusCancelled {
			return txn, nil
		}
		return nil, ErrInvalidStatus
	}

	now := s.now().UTC()
	oldStatus := txn.Status
	swapped, err := s.txnRepo.MarkCancelled(ctx, txn.TransactionCode, now)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return s.resolveLostRace(ctx, txn.TransactionCode, entity.StatusCancelled)
	}

	s.recordEvent(ctx, txn.ID, "transaction_cancelled", statusPtr(oldStatus), entity.StatusCancelled, "", now)

	txn.Status = entity.StatusCancelled
	txn.UpdatedAt = now
	return txn, nil
}

func (s *PaymentService) GetTransaction(ctx context.Context, transactionCode, userID string) (*entity.Transaction, error) {
	return s.ownedTransaction(ctx, transactionCode, userID)
}

func (s *PaymentService) ListTransactions(ctx context.Context, userID string, status entity.TransactionStatus, limit, offset int32) ([]*entity.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidRequest
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	filter := repository.TransactionFilter{
		UserID: strings.TrimSpace(userID),
		Limit:  limit,
		Offset: offset,
	}
	if status != "" {
		filter.HasStatus = true
		filter.Status = status
	}

	return s.txnRepo.List(ctx, filter)
}

func (s *PaymentService) ownedTransaction(ctx context.Context, transactionCode, userID string) (*entity.Transaction, error) {
	transactionCode = strings.TrimSpace(transactionCode)
	userID = strings.TrimSpace(userID)
	if transactionCode == "" || userID == "" {
		return nil, ErrInvalidRequest
	}

	txn, err := s.txnRepo.FindByCode(ctx, transactionCode)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	if txn.UserID != userID {
		return nil, ErrNotOwner
	}
	return txn, nil
}

// resolveLostRace re-reads a transaction after a failed CAS. If another
// caller moved it to the status we wanted, report success; otherwise the
// transition is a conflict.
func (s *PaymentService) resolveLostRace(ctx context.Context, transactionCode string, wanted entity.TransactionStatus) (*entity.Transaction, error) {
	txn, err := s.txnRepo.FindByCode(ctx, transactionCode)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	if txn.Status == wanted {
		return txn, nil
	}
	return nil, ErrInvalidStatus
}

func newTransactionCode() string {
	return "TXN" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func normalizeOptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
