package entity

import "time"

const (
	CallbackRecordAccepted int32 = 10
	CallbackRecordRejected int32 = 20
)

// CallbackRecord is the audit row for every inbound callback, valid or not.
// Rejected rows (bad signature, amount mismatch, unknown code) are the
// manual-review surface for fraud signals.
type CallbackRecord struct {
	ID uint64

	TransactionID *uint64

	Channel         string
	TransactionCode string
	Signature       string
	ParamsJSON      string
	Status          int32
	Error           *string

	CreatedAt time.Time
}
