package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/renthouse/ms-go-payments/app/entity"
)

// OwnerNotification is the payload posted to the caller's notify URL once
// a transaction completes.
type OwnerNotification struct {
	TransactionCode string  `json:"transaction_code"`
	UserID          string  `json:"user_id"`
	ListingID       *string `json:"listing_id,omitempty"`
	AmountMinor     int64   `json:"amount_minor"`
	Status          string  `json:"status"`
	GatewayTxnNo    *string `json:"gateway_txn_no,omitempty"`
	ConfirmedAt     string  `json:"confirmed_at"`
}

// RunNotifyDispatchBatch delivers pending owner notifications. Delivery is
// armed once, by the CAS that completed the transaction, so redelivery
// here can never double-credit: it retries the same single notification
// until it succeeds or the attempt cap is hit.
func (s *PaymentService) RunNotifyDispatchBatch(ctx context.Context) error {
	now := s.now().UTC()
	items, err := s.txnRepo.ListDueNotifyDispatch(ctx, now, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, txn := range items {
		if txn == nil {
			continue
		}
		if err := s.dispatchNotify(ctx, txn, now); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func (s *PaymentService) dispatchNotify(ctx context.Context, txn *entity.Transaction, now time.Time) error {
	if strings.TrimSpace(txn.NotifyURL) == "" {
		errMsg := "notify_url is empty"
		return s.txnRepo.UpdateNotifyDelivery(ctx, txn.ID, entity.NotifyDeliveryFailed, txn.NotifyDeliveryAttempts, nil, &errMsg, now)
	}

	confirmedAt := ""
	if txn.ConfirmedAt != nil {
		confirmedAt = txn.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(&OwnerNotification{
		TransactionCode: txn.TransactionCode,
		UserID:          txn.UserID,
		ListingID:       txn.ListingID,
		AmountMinor:     txn.AmountMinor,
		Status:          string(txn.Status),
		GatewayTxnNo:    txn.GatewayTxnNo,
		ConfirmedAt:     confirmedAt,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, txn.NotifyURL, bytes.NewReader(body))
	if err != nil {
		return s.recordNotifyFailure(ctx, txn, now, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Transaction-Code", txn.TransactionCode)

	resp, err := s.notifyHTTP.Do(req)
	if err != nil {
		return s.recordNotifyFailure(ctx, txn, now, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return s.recordNotifyFailure(ctx, txn, now, fmt.Errorf("notify endpoint returned status=%d", resp.StatusCode))
	}

	if err := s.txnRepo.UpdateNotifyDelivery(ctx, txn.ID, entity.NotifyDeliverySuccess, txn.NotifyDeliveryAttempts, nil, nil, now); err != nil {
		return err
	}

	s.recordEvent(ctx, txn.ID, "owner_notified", nil, txn.Status, "", now)
	return nil
}

func (s *PaymentService) recordNotifyFailure(ctx context.Context, txn *entity.Transaction, now time.Time, dispatchErr error) error {
	attempts := txn.NotifyDeliveryAttempts + 1
	trimmed := truncate(dispatchErr.Error(), 1024)

	maxAttempts := s.paymentsCfg.NotifyMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	status := entity.NotifyDeliveryPending
	var nextAt *time.Time
	if attempts >= maxAttempts {
		status = entity.NotifyDeliveryFailed
	} else {
		retryInterval := s.paymentsCfg.NotifyRetryInterval
		if retryInterval <= 0 {
			retryInterval = 5 * time.Minute
		}
		next := now.Add(retryInterval)
		nextAt = &next
	}

	if err := s.txnRepo.UpdateNotifyDelivery(ctx, txn.ID, status, attempts, nextAt, &trimmed, now); err != nil {
		return err
	}

	s.recordEvent(ctx, txn.ID, "owner_notify_failed", nil, txn.Status, "", now)
	return dispatchErr
}
