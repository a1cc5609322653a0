package mapper

import (
	"time"

	"github.com/renthouse/ms-go-payments/app/entity"
	"github.com/renthouse/ms-go-payments/app/types"
)

func TransactionToResponse(item *entity.Transaction) *types.Transaction {
	if item == nil {
		return nil
	}

	return &types.Transaction{
		TransactionCode: item.TransactionCode,
		GatewayTxnNo:    derefString(item.GatewayTxnNo),
		UserID:          item.UserID,
		ListingID:       derefString(item.ListingID),
		AmountMinor:     item.AmountMinor,
		Description:     item.Description,
		Status:          string(item.Status),
		ResponseCode:    responseCode(item),
		ResponseMessage: derefString(item.ReturnMessage),
		BankCode:        derefString(item.BankCode),
		BankTranNo:      derefString(item.BankTranNo),
		CardType:        derefString(item.CardType),
		ConfirmedVia:    derefString(item.ConfirmedVia),
		PaymentURL:      derefString(item.PaymentURL),
		RetryCount:      item.RetryCount,
		CreatedAt:       item.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:       item.ExpiresAt.UTC().Format(time.RFC3339),
		ConfirmedAt:     formatOptionalTime(item.ConfirmedAt),
		FailedAt:        formatOptionalTime(item.FailedAt),
	}
}

func TransactionsToResponse(items []*entity.Transaction) []*types.Transaction {
	result := make([]*types.Transaction, 0, len(items))
	for _, item := range items {
		result = append(result, TransactionToResponse(item))
	}
	return result
}

// responseCode prefers the authoritative IPN code over the browser-relayed
// return code.
func responseCode(item *entity.Transaction) string {
	if item.IPNResponseCode != nil {
		return *item.IPNResponseCode
	}
	return derefString(item.ReturnResponseCode)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatOptionalTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
