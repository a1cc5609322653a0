package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/renthouse/ms-go-payments/app/factory"
	"github.com/renthouse/ms-go-payments/app/gateway"
	"github.com/renthouse/ms-go-payments/app/mapper"
	"github.com/renthouse/ms-go-payments/app/service"
	"github.com/renthouse/ms-go-payments/app/types"
	"github.com/sirupsen/logrus"
)

type PaymentController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) CreatePayment(ctx echo.Context) error {
	req, err := types.NewCreatePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	txn, err := c.paymentService.CreateSession(ctx.Request().Context(), service.CreateSessionInput{
		UserID:      req.UserID,
		AmountMinor: req.AmountMinor,
		ListingID:   req.ListingID,
		Description: req.Description,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		NotifyURL:   req.NotifyURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest),
			errors.Is(err, service.ErrAmountTooSmall),
			errors.Is(err, service.ErrDescriptionTooLong):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	paymentURL := ""
	if txn.PaymentURL != nil {
		paymentURL = *txn.PaymentURL
	}
	return ctx.JSON(http.StatusCreated, &types.CreatePaymentResponse{
		TransactionCode:  txn.TransactionCode,
		PaymentURL:       paymentURL,
		AmountMinor:      txn.AmountMinor,
		ExpiresAt:        txn.ExpiresAt.UTC().Format(time.RFC3339),
		ExpiresInSeconds: int64(txn.ExpiresAt.Sub(txn.CreatedAt).Seconds()),
	})
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	req := types.NewTransactionCodeRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	txn, err := c.paymentService.GetTransaction(ctx.Request().Context(), req.TransactionCode, req.UserID)
	if err != nil {
		return c.writeOwnedLookupError(ctx, err, "Get payment failed")
	}

	return ctx.JSON(http.StatusOK, &types.TransactionEnvelopeResponse{Transaction: mapper.TransactionToResponse(txn)})
}

func (c *PaymentController) ListPayments(ctx echo.Context) error {
	req, err := types.NewListPaymentsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.paymentService.ListTransactions(ctx.Request().Context(), req.UserID, req.Status, req.Limit, req.Offset)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List payments failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListTransactionsResponse{Transactions: mapper.TransactionsToResponse(items)})
}

func (c *PaymentController) CancelPayment(ctx echo.Context) error {
	req := types.NewTransactionCodeRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	txn, err := c.paymentService.CancelTransaction(ctx.Request().Context(), req.TransactionCode, req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			return c.writeError(ctx, http.StatusConflict, "transaction is already finalized")
		}
		return c.writeOwnedLookupError(ctx, err, "Cancel payment failed")
	}

	return ctx.JSON(http.StatusOK, &types.TransactionEnvelopeResponse{Transaction: mapper.TransactionToResponse(txn)})
}

func (c *PaymentController) RetryPaymentURL(ctx echo.Context) error {
	req := types.NewTransactionCodeRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	txn, err := c.paymentService.RegeneratePaymentURL(ctx.Request().Context(), req.TransactionCode, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			return c.writeError(ctx, http.StatusConflict, "transaction is no longer awaiting payment")
		case errors.Is(err, service.ErrRetryLimitReached):
			return c.writeError(ctx, http.StatusTooManyRequests, err.Error())
		default:
			return c.writeOwnedLookupError(ctx, err, "Retry payment url failed")
		}
	}

	paymentURL := ""
	if txn.PaymentURL != nil {
		paymentURL = *txn.PaymentURL
	}
	return ctx.JSON(http.StatusOK, &types.CreatePaymentResponse{
		TransactionCode:  txn.TransactionCode,
		PaymentURL:       paymentURL,
		AmountMinor:      txn.AmountMinor,
		ExpiresAt:        txn.ExpiresAt.UTC().Format(time.RFC3339),
		ExpiresInSeconds: int64(txn.ExpiresAt.Sub(txn.UpdatedAt).Seconds()),
	})
}

// HandleReturn is the browser-redirect landing. Responses stay generic on
// verification failure: nothing about the signature scheme leaks to the
// client.
func (c *PaymentController) HandleReturn(ctx echo.Context) error {
	params := types.CallbackParamsFromContext(ctx)

	outcome, err := c.paymentService.HandleReturnCallback(ctx.Request().Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			return ctx.JSON(http.StatusBadRequest, &types.ReturnResponse{
				Success: false,
				Message: "invalid payment callback",
			})
		case errors.Is(err, service.ErrTransactionNotFound):
			return ctx.JSON(http.StatusNotFound, &types.ReturnResponse{
				Success: false,
				Message: "transaction not found",
			})
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Return callback failed")
			return ctx.JSON(http.StatusInternalServerError, &types.ReturnResponse{
				Success: false,
				Message: "payment processing error",
			})
		}
	}

	return ctx.JSON(http.StatusOK, &types.ReturnResponse{
		Success:         !isFailureStatus(outcome),
		Message:         outcome.Message,
		TransactionCode: outcome.TransactionCode,
		Status:          string(outcome.Status),
		AmountMinor:     outcome.AmountMinor,
	})
}

// HandleIPN answers the gateway's server-to-server notification. The body
// always carries one of the documented acknowledgement codes; the HTTP
// status is 200 even for rejections, because the gateway only reads the
// RspCode field.
func (c *PaymentController) HandleIPN(ctx echo.Context) error {
	params := types.CallbackParamsFromContext(ctx)

	ack, err := c.paymentService.HandleIPNCallback(ctx.Request().Context(), params)
	if err != nil {
		c.logger.WithError(err).WithField("rsp_code", ack.RspCode).Error("IPN callback failed")
	}

	return ctx.JSON(http.StatusOK, ack)
}

func (c *PaymentController) writeOwnedLookupError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTransactionNotFound):
		return c.writeError(ctx, http.StatusNotFound, "transaction not found")
	case errors.Is(err, service.ErrNotOwner):
		return c.writeError(ctx, http.StatusForbidden, "transaction does not belong to user")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

func isFailureStatus(outcome *service.ReturnOutcome) bool {
	return outcome.ResponseCode != gateway.ResponseCodeSuccess
}
