package service

import (
	"context"

	"github.com/renthouse/ms-go-payments/app/entity"
)

// RunExpireSweepBatch reaps transactions that never reached a terminal
// state inside their lifetime window. Each row is re-checked by the
// conditional update: a genuine IPN landing between the select and the
// update wins, and the sweep leaves the record alone.
func (s *PaymentService) RunExpireSweepBatch(ctx context.Context) error {
	now := s.now().UTC()
	items, err := s.txnRepo.ListExpired(ctx, now, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, txn := range items {
		if txn == nil {
			continue
		}

		swapped, err := s.txnRepo.MarkExpired(ctx, txn.TransactionCode, now)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if !swapped {
			continue
		}

		s.recordEvent(ctx, txn.ID, "transaction_expired", statusPtr(txn.Status), entity.StatusExpired, "", now)
	}

	return firstErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
