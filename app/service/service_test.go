package service

import (
	"context"
	"fmt"
	"time"

	"github.com/renthouse/ms-go-payments/app/entity"
	"github.com/renthouse/ms-go-payments/app/gateway"
	"github.com/renthouse/ms-go-payments/app/repository"
	"github.com/renthouse/ms-go-payments/config"
)

const (
	testSecret = "VNPAYSECRETKEY123456"
	testUserID = "user-1"
)

// fakeTransactionRepo keeps transactions in memory and reproduces the
// conditional-update semantics of the MySQL repository: every Mark* call
// checks the source status set and reports whether the swap happened.
type fakeTransactionRepo struct {
	byCode map[string]*entity.Transaction
	nextID uint64

	failNext error
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{byCode: map[string]*entity.Transaction{}}
}

func (r *fakeTransactionRepo) takeErr() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *fakeTransactionRepo) Create(_ context.Context, txn *entity.Transaction) error {
	if err := r.takeErr(); err != nil {
		return err
	}
	if _, ok := r.byCode[txn.TransactionCode]; ok {
		return repository.ErrTransactionAlreadyExists
	}
	r.nextID++
	txn.ID = r.nextID
	clone := *txn
	r.byCode[txn.TransactionCode] = &clone
	return nil
}

func (r *fakeTransactionRepo) FindByCode(_ context.Context, transactionCode string) (*entity.Transaction, error) {
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	txn, ok := r.byCode[transactionCode]
	if !ok {
		return nil, nil
	}
	clone := *txn
	return &clone, nil
}

func (r *fakeTransactionRepo) List(_ context.Context, filter repository.TransactionFilter) ([]*entity.Transaction, error) {
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	out := []*entity.Transaction{}
	for _, txn := range r.byCode {
		if filter.UserID != "" && txn.UserID != filter.UserID {
			continue
		}
		if filter.HasStatus && txn.Status != filter.Status {
			continue
		}
		clone := *txn
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeTransactionRepo) MarkPendingConfirmation(_ context.Context, transactionCode string, update repository.ReturnUpdate, now time.Time) (bool, error) {
	if err := r.takeErr(); err != nil {
		return false, err
	}
	txn, ok := r.byCode[transactionCode]
	if !ok || txn.Status != entity.StatusProcessing {
		return false, nil
	}
	txn.Status = entity.StatusPendingConfirmation
	txn.ReturnResponseCode = &update.ResponseCode
	txn.ReturnMessage = &update.Message
	txn.UpdatedAt = now
	return true, nil
}

func (r *fakeTransactionRepo) MarkCompleted(_ context.Context, transactionCode string, update repository.IPNUpdate, now time.Time) (bool, error) {
	if err := r.takeErr(); err != nil {
		return false, err
	}
	txn, ok := r.byCode[transactionCode]
	if !ok || txn.Status.Terminal() {
		return false, nil
	}
	txn.Status = entity.StatusCompleted
	r.applyIPN(txn, update, now)
	confirmedAt := now
	txn.ConfirmedAt = &confirmedAt
	txn.NotifyDeliveryStatus = entity.NotifyDeliveryPending
	txn.NotifyDeliveryAttempts = 0
	nextAt := now
	txn.NotifyDeliveryNextAt = &nextAt
	txn.NotifyDeliveryLastErr = nil
	return true, nil
}

func (r *fakeTransactionRepo) MarkFailed(_ context.Context, transactionCode string, update repository.IPNUpdate, now time.Time) (bool, error) {
	if err := r.takeErr(); err != nil {
		return false, err
	}
	txn, ok := r.byCode[transactionCode]
	if !ok || txn.Status.Terminal() {
		return false, nil
	}
	txn.Status = entity.StatusFailed
	r.applyIPN(txn, update, now)
	failedAt := now
	txn.FailedAt = &failedAt
	return true, nil
}

func (r *fakeTransactionRepo) applyIPN(txn *entity.Transaction, update repository.IPNUpdate, now time.Time) {
	confirmedVia := entity.ConfirmedViaIPN
	txn.ConfirmedVia = &confirmedVia
	txn.IPNResponseCode = &update.ResponseCode
	txn.GatewayTxnNo = &update.GatewayTxnNo
	txn.BankCode = &update.BankCode
	txn.BankTranNo = &update.BankTranNo
	txn.PayDate = &update.PayDate
	txn.CardType = &update.CardType
	txn.UpdatedAt = now
}

func (r *fakeTransactionRepo) MarkCancelled(_ context.Context, transactionCode string, now time.Time) (bool, error) {
	return r.markTerminal(transactionCode, entity.StatusCancelled, now)
}

func (r *fakeTransactionRepo) MarkExpired(_ context.Context, transactionCode string, now time.Time) (bool, error) {
	return r.markTerminal(transactionCode, entity.StatusExpired, now)
}

func (r *fakeTransactionRepo) markTerminal(transactionCode string, status entity.TransactionStatus, now time.Time) (bool, error) {
	if err := r.takeErr(); err != nil {
		return false, err
	}
	txn, ok := r.byCode[transactionCode]
	if !ok || txn.Status.Terminal() {
		return false, nil
	}
	txn.Status = status
	txn.UpdatedAt = now
	return true, nil
}

func (r *fakeTransactionRepo) UpdatePaymentURL(_ context.Context, transactionCode, paymentURL string, retryCount int32, expiresAt, now time.Time) (bool, error) {
	if err := r.takeErr(); err != nil {
		return false, err
	}
	txn, ok := r.byCode[transactionCode]
	if !ok || txn.Status != entity.StatusProcessing {
		return false, nil
	}
	txn.PaymentURL = &paymentURL
	txn.RetryCount = retryCount
	txn.ExpiresAt = expiresAt
	txn.UpdatedAt = now
	return true, nil
}

func (r *fakeTransactionRepo) ListExpired(_ context.Context, now time.Time, limit int32) ([]*entity.Transaction, error) {
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	out := []*entity.Transaction{}
	for _, txn := range r.byCode {
		if txn.Status.Terminal() || !txn.ExpiresAt.Before(now) {
			continue
		}
		clone := *txn
		out = append(out, &clone)
		if int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) ListDueNotifyDispatch(_ context.Context, now time.Time, limit int32) ([]*entity.Transaction, error) {
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	out := []*entity.Transaction{}
	for _, txn := range r.byCode {
		if txn.NotifyDeliveryStatus != entity.NotifyDeliveryPending {
			continue
		}
		if txn.NotifyDeliveryNextAt == nil || txn.NotifyDeliveryNextAt.After(now) {
			continue
		}
		clone := *txn
		out = append(out, &clone)
		if int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) UpdateNotifyDelivery(_ context.Context, id uint64, status, attempts int32, nextAt *time.Time, lastErr *string, now time.Time) error {
	if err := r.takeErr(); err != nil {
		return err
	}
	for _, txn := range r.byCode {
		if txn.ID != id {
			continue
		}
		txn.NotifyDeliveryStatus = status
		txn.NotifyDeliveryAttempts = attempts
		txn.NotifyDeliveryNextAt = nextAt
		txn.NotifyDeliveryLastErr = lastErr
		txn.UpdatedAt = now
		return nil
	}
	return repository.ErrTransactionNotFound
}

func (r *fakeTransactionRepo) get(transactionCode string) *entity.Transaction {
	return r.byCode[transactionCode]
}

type fakeEventRepo struct {
	events []*entity.TransactionEvent
}

func (r *fakeEventRepo) Create(_ context.Context, event *entity.TransactionEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEventRepo) ofType(eventType string) []*entity.TransactionEvent {
	out := []*entity.TransactionEvent{}
	for _, e := range r.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeCallbackRepo struct {
	records []*entity.CallbackRecord
}

func (r *fakeCallbackRepo) Create(_ context.Context, record *entity.CallbackRecord) error {
	r.records = append(r.records, record)
	return nil
}

type testEnv struct {
	service   *PaymentService
	txnRepo   *fakeTransactionRepo
	events    *fakeEventRepo
	callbacks *fakeCallbackRepo
	clock     time.Time
}

func testPaymentsConfig() config.PaymentsConfig {
	return config.PaymentsConfig{
		MinAmount:           10000,
		DescriptionMaxLen:   200,
		TransactionLifetime: 15 * time.Minute,
		URLRetryLimit:       3,
		NotifyMaxAttempts:   3,
		NotifyRetryInterval: 5 * time.Minute,
		NotifyHTTPTimeout:   2 * time.Second,
		JobBatchSize:        100,
	}
}

func newTestEnv() *testEnv {
	gw, err := gateway.NewVNPayGateway(gateway.Config{
		TmnCode:    "DEMOTMN1",
		HashSecret: testSecret,
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://example.com/payments/vnpay/return",
	})
	if err != nil {
		panic(fmt.Sprintf("test gateway: %v", err))
	}

	env := &testEnv{
		txnRepo:   newFakeTransactionRepo(),
		events:    &fakeEventRepo{},
		callbacks: &fakeCallbackRepo{},
		clock:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	env.service = NewPaymentService(env.txnRepo, env.events, env.callbacks, gw, testPaymentsConfig())
	env.service.now = func() time.Time { return env.clock }
	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.clock = env.clock.Add(d)
}

func (env *testEnv) createSession(input CreateSessionInput) *entity.Transaction {
	if input.UserID == "" {
		input.UserID = testUserID
	}
	if input.AmountMinor == 0 {
		input.AmountMinor = 50000
	}
	txn, err := env.service.CreateSession(context.Background(), input)
	if err != nil {
		panic(fmt.Sprintf("create session: %v", err))
	}
	return txn
}

// callbackParams builds and signs a gateway callback parameter set the way
// the real gateway would, so verification exercises the production path.
func (env *testEnv) callbackParams(txn *entity.Transaction, responseCode string) map[string]string {
	params := map[string]string{
		gateway.ParamTmnCode:       "DEMOTMN1",
		gateway.ParamTxnRef:        txn.TransactionCode,
		gateway.ParamAmount:        gateway.WireAmount(txn.AmountMinor),
		gateway.ParamResponseCode:  responseCode,
		gateway.ParamTransactionNo: "14900911",
		gateway.ParamBankCode:      "NCB",
		gateway.ParamBankTranNo:    "VNP14900911",
		gateway.ParamPayDate:       "20250301170203",
		gateway.ParamCardType:      "ATM",
	}
	return signParams(params)
}

func signParams(params map[string]string) map[string]string {
	params[gateway.ParamSecureHash] = gateway.Sign(gateway.Canonicalize(params), testSecret)
	return params
}
