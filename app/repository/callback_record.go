package repository

import (
	"context"

	"github.com/renthouse/ms-go-payments/app/entity"
)

type CallbackRecordRepository struct {
	db DBTX
}

func NewCallbackRecordRepository(db DBTX) *CallbackRecordRepository {
	return &CallbackRecordRepository{db: db}
}

func (r *CallbackRecordRepository) Create(ctx context.Context, record *entity.CallbackRecord) error {
	query := `
		INSERT INTO callback_records (
			transaction_id, channel, transaction_code, signature, params_json, status, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableUint64Value(record.TransactionID),
		record.Channel,
		record.TransactionCode,
		record.Signature,
		record.ParamsJSON,
		record.Status,
		nullableStringValue(record.Error),
		record.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	record.ID = uint64(id)

	return nil
}

func nullableUint64Value(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
