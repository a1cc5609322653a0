package entity

import "time"

type TransactionStatus string

const (
	StatusProcessing          TransactionStatus = "processing"
	StatusPendingConfirmation TransactionStatus = "pending_confirmation"
	StatusCompleted           TransactionStatus = "completed"
	StatusFailed              TransactionStatus = "failed"
	StatusCancelled           TransactionStatus = "cancelled"
	StatusExpired             TransactionStatus = "expired"
)

const (
	ConfirmedViaReturn = "return"
	ConfirmedViaIPN    = "ipn"
)

const (
	NotifyDeliveryNone    int32 = 0
	NotifyDeliveryPending int32 = 1
	NotifyDeliverySuccess int32 = 10
	NotifyDeliveryFailed  int32 = 20
)

// Transaction is one payment attempt against the gateway. TransactionCode is
// the correlation key across the return and IPN channels and never changes
// after creation; AmountMinor is likewise immutable.
type Transaction struct {
	ID uint64

	TransactionCode string
	GatewayTxnNo    *string

	UserID    string
	ListingID *string

	AmountMinor int64
	Description string

	Status TransactionStatus

	// Return channel result, recorded when the browser comes back.
	ReturnResponseCode *string
	ReturnMessage      *string

	// IPN channel result, recorded from the server-to-server callback.
	IPNResponseCode *string
	BankCode        *string
	BankTranNo      *string
	PayDate         *string
	CardType        *string

	ConfirmedVia *string

	PaymentURL *string
	IPAddress  string
	UserAgent  *string
	RetryCount int32

	NotifyURL              string
	NotifyDeliveryStatus   int32
	NotifyDeliveryAttempts int32
	NotifyDeliveryNextAt   *time.Time
	NotifyDeliveryLastErr  *string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
	ConfirmedAt *time.Time
	FailedAt    *time.Time
}

func (s TransactionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// NonTerminalStatuses is the source set every conditional status update is
// guarded by.
func NonTerminalStatuses() []TransactionStatus {
	return []TransactionStatus{StatusProcessing, StatusPendingConfirmation}
}
