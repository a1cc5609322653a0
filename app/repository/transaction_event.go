package repository

import (
	"context"

	"github.com/renthouse/ms-go-payments/app/entity"
)

type TransactionEventRepository struct {
	db DBTX
}

func NewTransactionEventRepository(db DBTX) *TransactionEventRepository {
	return &TransactionEventRepository{db: db}
}

func (r *TransactionEventRepository) Create(ctx context.Context, event *entity.TransactionEvent) error {
	query := `
		INSERT INTO transaction_events (
			transaction_id, event_type, old_status, new_status, channel, payload_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.TransactionID,
		event.EventType,
		nullableStatusValue(event.OldStatus),
		string(event.NewStatus),
		nullableStringValue(event.Channel),
		nullableStringValue(event.PayloadJSON),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}

func nullableStatusValue(v *entity.TransactionStatus) interface{} {
	if v == nil {
		return nil
	}
	return string(*v)
}
