package service

import (
	"context"

	"github.com/renthouse/ms-go-payments/app/entity"
	"github.com/renthouse/ms-go-payments/app/gateway"
	"github.com/renthouse/ms-go-payments/app/repository"
)

// ReturnOutcome is the user-facing result of a return-channel callback.
type ReturnOutcome struct {
	TransactionCode string
	Status          entity.TransactionStatus
	ResponseCode    string
	Message         string
	AmountMinor     int64
}

// HandleReturnCallback processes the browser-relayed return callback. The
// return channel only ever signals "the user has come back": a hostile
// client can replay or forge the redirect, so it moves processing to
// pending_confirmation and nothing further. Terminal transactions are
// reported as-is without mutation, so a refresh of the return page has no
// business effect.
func (s *PaymentService) HandleReturnCallback(ctx context.Context, params map[string]string) (*ReturnOutcome, error) {
	now := s.now().UTC()

	if !s.gateway.VerifyCallback(params) {
		s.recordCallback(ctx, nil, entity.ConfirmedViaReturn, params, entity.CallbackRecordRejected, "invalid signature", now)
		return nil, ErrInvalidSignature
	}

	transactionCode := params[gateway.ParamTxnRef]
	txn, err := s.txnRepo.FindByCode(ctx, transactionCode)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		s.recordCallback(ctx, nil, entity.ConfirmedViaReturn, params, entity.CallbackRecordRejected, "transaction not found", now)
		return nil, ErrTransactionNotFound
	}

	responseCode := params[gateway.ParamResponseCode]
	message := gateway.ResponseMessage(responseCode)

	if txn.Status.Terminal() {
		s.recordCallback(ctx, &txn.ID, entity.ConfirmedViaReturn, params, entity.CallbackRecordAccepted, "", now)
		return s.returnOutcome(txn, responseCode, message), nil
	}

	swapped, err := s.txnRepo.MarkPendingConfirmation(ctx, transactionCode, repository.ReturnUpdate{
		ResponseCode: responseCode,
		Message:      message,
	}, now)
	if err != nil {
		return nil, err
	}

	s.recordCallback(ctx, &txn.ID, entity.ConfirmedViaReturn, params, entity.CallbackRecordAccepted, "", now)

	if swapped {
		s.recordEvent(ctx, txn.ID, "return_received", statusPtr(txn.Status), entity.StatusPendingConfirmation, entity.ConfirmedViaReturn, now)
		txn.Status = entity.StatusPendingConfirmation
		return s.returnOutcome(txn, responseCode, message), nil
	}

	// Lost the CAS: the IPN, the sweeper, or a duplicate return got there
	// first. Report whatever the record says now.
	current, err := s.txnRepo.FindByCode(ctx, transactionCode)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrTransactionNotFound
	}
	return s.returnOutcome(current, responseCode, message), nil
}

func (s *PaymentService) returnOutcome(txn *entity.Transaction, responseCode, message string) *ReturnOutcome {
	return &ReturnOutcome{
		TransactionCode: txn.TransactionCode,
		Status:          txn.Status,
		ResponseCode:    responseCode,
		Message:         message,
		AmountMinor:     txn.AmountMinor,
	}
}

// HandleIPNCallback processes the authoritative server-to-server
// notification. The gateway redelivers the IPN until it receives the
// documented acknowledgement, so every path must answer with the exact
// wire code and duplicates must not reapply side effects. The returned
// error is for logging only; the ack is always valid to send.
func (s *PaymentService) HandleIPNCallback(ctx context.Context, params map[string]string) (gateway.IPNAck, error) {
	now := s.now().UTC()

	if !s.gateway.VerifyCallback(params) {
		s.recordCallback(ctx, nil, entity.ConfirmedViaIPN, params, entity.CallbackRecordRejected, "invalid signature", now)
		return gateway.AckInvalidSignature(), nil
	}

	transactionCode := params[gateway.ParamTxnRef]
	txn, err := s.txnRepo.FindByCode(ctx, transactionCode)
	if err != nil {
		return gateway.AckInternalError(), err
	}
	if txn == nil {
		s.recordCallback(ctx, nil, entity.ConfirmedViaIPN, params, entity.CallbackRecordRejected, "transaction not found", now)
		return gateway.AckOrderNotFound(), nil
	}

	// A signature over a tampered amount still verifies; the stored
	// amount is the source of truth. Mismatch is a fraud signal, not an
	// update — the transaction is left where it is for manual review.
	amountMinor, ok := gateway.ParseWireAmount(params[gateway.ParamAmount])
	if !ok || amountMinor != txn.AmountMinor {
		s.recordCallback(ctx, &txn.ID, entity.ConfirmedViaIPN, params, entity.CallbackRecordRejected, "amount mismatch", now)
		return gateway.AckInvalidAmount(), nil
	}

	if txn.Status.Terminal() {
		s.recordCallback(ctx, &txn.ID, entity.ConfirmedViaIPN, params, entity.CallbackRecordAccepted, "", now)
		return gateway.AckAlreadyConfirmed(), nil
	}

	responseCode := params[gateway.ParamResponseCode]
	update := repository.IPNUpdate{
		ResponseCode: responseCode,
		GatewayTxnNo: params[gateway.ParamTransactionNo],
		BankCode:     params[gateway.ParamBankCode],
		BankTranNo:   params[gateway.ParamBankTranNo],
		PayDate:      params[gateway.ParamPayDate],
		CardType:     params[gateway.ParamCardType],
	}

	if responseCode == gateway.ResponseCodeSuccess {
		swapped, err := s.txnRepo.MarkCompleted(ctx, transactionCode, update, now)
		if err != nil {
			return gateway.AckInternalError(), err
		}
		s.recordCallback(ctx, &txn.ID, entity.ConfirmedViaIPN, params, entity.CallbackRecordAccepted, "", now)
		if !swapped {
			// Another caller finalized the record between our read and
			// the CAS; answer as a duplicate.
			return gateway.AckAlreadyConfirmed(), nil
		}
		s.recordEvent(ctx, txn.ID, "ipn_confirmed", statusPtr(txn.Status), entity.StatusCompleted, entity.ConfirmedViaIPN, now)
		return gateway.AckAccepted(), nil
	}

	swapped, err := s.txnRepo.MarkFailed(ctx, transactionCode, update, now)
	if err != nil {
		return gateway.AckInternalError(), err
	}
	s.recordCallback(ctx, &txn.ID, entity.ConfirmedViaIPN, params, entity.CallbackRecordAccepted, "", now)
	if !swapped {
		return gateway.AckAlreadyConfirmed(), nil
	}
	s.recordEvent(ctx, txn.ID, "ipn_failed", statusPtr(txn.Status), entity.StatusFailed, entity.ConfirmedViaIPN, now)
	return gateway.AckAccepted(), nil
}
