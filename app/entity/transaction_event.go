package entity

import "time"

type TransactionEvent struct {
	ID uint64

	TransactionID uint64

	EventType string

	OldStatus *TransactionStatus
	NewStatus TransactionStatus

	Channel     *string
	PayloadJSON *string

	CreatedAt time.Time
}
