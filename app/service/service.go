package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/renthouse/ms-go-payments/app/entity"
	"github.com/renthouse/ms-go-payments/app/gateway"
	"github.com/renthouse/ms-go-payments/app/repository"
	"github.com/renthouse/ms-go-payments/config"
)

const (
	defaultListLimit = int32(100)
	defaultBatchSize = int32(100)
)

type transactionRepository interface {
	Create(ctx context.Context, txn *entity.Transaction) error
	FindByCode(ctx context.Context, transactionCode string) (*entity.Transaction, error)
	List(ctx context.Context, filter repository.TransactionFilter) ([]*entity.Transaction, error)
	MarkPendingConfirmation(ctx context.Context, transactionCode string, update repository.ReturnUpdate, now time.Time) (bool, error)
	MarkCompleted(ctx context.Context, transactionCode string, update repository.IPNUpdate, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, transactionCode string, update repository.IPNUpdate, now time.Time) (bool, error)
	MarkCancelled(ctx context.Context, transactionCode string, now time.Time) (bool, error)
	MarkExpired(ctx context.Context, transactionCode string, now time.Time) (bool, error)
	UpdatePaymentURL(ctx context.Context, transactionCode, paymentURL string, retryCount int32, expiresAt, now time.Time) (bool, error)
	ListExpired(ctx context.Context, now time.Time, limit int32) ([]*entity.Transaction, error)
	ListDueNotifyDispatch(ctx context.Context, now time.Time, limit int32) ([]*entity.Transaction, error)
	UpdateNotifyDelivery(ctx context.Context, id uint64, status, attempts int32, nextAt *time.Time, lastErr *string, now time.Time) error
}

type transactionEventRepository interface {
	Create(ctx context.Context, event *entity.TransactionEvent) error
}

type callbackRecordRepository interface {
	Create(ctx context.Context, record *entity.CallbackRecord) error
}

type PaymentService struct {
	txnRepo      transactionRepository
	eventRepo    transactionEventRepository
	callbackRepo callbackRecordRepository
	gateway      *gateway.VNPayGateway
	paymentsCfg  config.PaymentsConfig
	notifyHTTP   *http.Client

	// Injectable clock; tests pin it to drive the expiry window.
	now func() time.Time
}

func NewPaymentService(
	txnRepo transactionRepository,
	eventRepo transactionEventRepository,
	callbackRepo callbackRecordRepository,
	gw *gateway.VNPayGateway,
	paymentsCfg config.PaymentsConfig,
) *PaymentService {
	timeout := paymentsCfg.NotifyHTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &PaymentService{
		txnRepo:      txnRepo,
		eventRepo:    eventRepo,
		callbackRepo: callbackRepo,
		gateway:      gw,
		paymentsCfg:  paymentsCfg,
		notifyHTTP:   &http.Client{Timeout: timeout},
		now:          time.Now,
	}
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func (s *PaymentService) recordEvent(ctx context.Context, txnID uint64, eventType string, oldStatus *entity.TransactionStatus, newStatus entity.TransactionStatus, channel string, now time.Time) {
	event := &entity.TransactionEvent{
		TransactionID: txnID,
		EventType:     eventType,
		OldStatus:     oldStatus,
		NewStatus:     newStatus,
		CreatedAt:     now,
	}
	if channel != "" {
		event.Channel = &channel
	}
	_ = s.eventRepo.Create(ctx, event)
}

func (s *PaymentService) recordCallback(ctx context.Context, txnID *uint64, channel string, params map[string]string, status int32, reason string, now time.Time) {
	record := &entity.CallbackRecord{
		TransactionID:   txnID,
		Channel:         channel,
		TransactionCode: params[gateway.ParamTxnRef],
		Signature:       params[gateway.ParamSecureHash],
		ParamsJSON:      marshalParams(params),
		Status:          status,
		CreatedAt:       now,
	}
	if reason != "" {
		trimmed := truncate(reason, 1024)
		record.Error = &trimmed
	}
	_ = s.callbackRepo.Create(ctx, record)
}

func marshalParams(params map[string]string) string {
	payload, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(payload)
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}

func statusPtr(status entity.TransactionStatus) *entity.TransactionStatus {
	return &status
}
