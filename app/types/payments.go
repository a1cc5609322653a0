package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/renthouse/ms-go-payments/app/entity"
)

const HeaderUserID = "X-User-ID"

type CreatePaymentRequest struct {
	UserID      string
	AmountMinor int64  `json:"amount_minor"`
	ListingID   string `json:"listing_id"`
	Description string `json:"description"`
	NotifyURL   string `json:"notify_url"`
	IPAddress   string
	UserAgent   string
}

func NewCreatePaymentRequestFromContext(ctx echo.Context) (*CreatePaymentRequest, error) {
	var body CreatePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.UserID = strings.TrimSpace(ctx.Request().Header.Get(HeaderUserID))
	body.ListingID = strings.TrimSpace(body.ListingID)
	body.Description = strings.TrimSpace(body.Description)
	body.NotifyURL = strings.TrimSpace(body.NotifyURL)
	body.IPAddress = ctx.RealIP()
	body.UserAgent = ctx.Request().UserAgent()

	return &body, nil
}

func (r *CreatePaymentRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("x-user-id header is required")
	}
	if r.AmountMinor <= 0 {
		return errors.New("amount_minor must be > 0")
	}
	return nil
}

type TransactionCodeRequest struct {
	TransactionCode string
	UserID          string
}

func NewTransactionCodeRequestFromContext(ctx echo.Context) *TransactionCodeRequest {
	return &TransactionCodeRequest{
		TransactionCode: strings.TrimSpace(ctx.Param("transactionCode")),
		UserID:          strings.TrimSpace(ctx.Request().Header.Get(HeaderUserID)),
	}
}

func (r *TransactionCodeRequest) Validate() error {
	if r.TransactionCode == "" {
		return errors.New("transaction code is required")
	}
	if r.UserID == "" {
		return errors.New("x-user-id header is required")
	}
	return nil
}

type ListPaymentsRequest struct {
	UserID string
	Status entity.TransactionStatus
	Limit  int32
	Offset int32
}

func NewListPaymentsRequestFromContext(ctx echo.Context) (*ListPaymentsRequest, error) {
	req := &ListPaymentsRequest{
		UserID: strings.TrimSpace(ctx.Request().Header.Get(HeaderUserID)),
		Limit:  100,
		Offset: 0,
	}

	if statusRaw := strings.TrimSpace(ctx.QueryParam("status")); statusRaw != "" {
		status := entity.TransactionStatus(statusRaw)
		if !isValidTransactionStatus(status) {
			return nil, errors.New("invalid status")
		}
		req.Status = status
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListPaymentsRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("x-user-id header is required")
	}
	if r.Limit <= 0 || r.Limit > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	if r.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	return nil
}

// CallbackParamsFromContext flattens the gateway callback parameters into
// the map the signature is verified over. The sandbox delivers the IPN as
// GET query parameters; production may POST a form, so both are read.
func CallbackParamsFromContext(ctx echo.Context) map[string]string {
	params := map[string]string{}

	if form, err := ctx.FormParams(); err == nil {
		for key, values := range form {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
	}
	for key, values := range ctx.QueryParams() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	return params
}

type CreatePaymentResponse struct {
	TransactionCode  string `json:"transaction_code"`
	PaymentURL       string `json:"payment_url"`
	AmountMinor      int64  `json:"amount_minor"`
	ExpiresAt        string `json:"expires_at"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

type Transaction struct {
	TransactionCode string `json:"transaction_code"`
	GatewayTxnNo    string `json:"gateway_txn_no,omitempty"`
	UserID          string `json:"user_id"`
	ListingID       string `json:"listing_id,omitempty"`
	AmountMinor     int64  `json:"amount_minor"`
	Description     string `json:"description"`
	Status          string `json:"status"`
	ResponseCode    string `json:"response_code,omitempty"`
	ResponseMessage string `json:"response_message,omitempty"`
	BankCode        string `json:"bank_code,omitempty"`
	BankTranNo      string `json:"bank_tran_no,omitempty"`
	CardType        string `json:"card_type,omitempty"`
	ConfirmedVia    string `json:"confirmed_via,omitempty"`
	PaymentURL      string `json:"payment_url,omitempty"`
	RetryCount      int32  `json:"retry_count"`
	CreatedAt       string `json:"created_at"`
	ExpiresAt       string `json:"expires_at"`
	ConfirmedAt     string `json:"confirmed_at,omitempty"`
	FailedAt        string `json:"failed_at,omitempty"`
}

type TransactionEnvelopeResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

type ReturnResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	TransactionCode string `json:"transaction_code,omitempty"`
	Status          string `json:"status,omitempty"`
	AmountMinor     int64  `json:"amount_minor,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func isValidTransactionStatus(status entity.TransactionStatus) bool {
	switch status {
	case entity.StatusProcessing,
		entity.StatusPendingConfirmation,
		entity.StatusCompleted,
		entity.StatusFailed,
		entity.StatusCancelled,
		entity.StatusExpired:
		return true
	default:
		return false
	}
}
