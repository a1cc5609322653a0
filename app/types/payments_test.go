package types

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/renthouse/ms-go-payments/app/entity"
)

func TestNewCreatePaymentRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/payments", bytes.NewBufferString(`{"amount_minor":50000,"listing_id":" listing-9 ","description":" Listing fee ","notify_url":" https://example.com/hooks "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(HeaderUserID, " user-1 ")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	parsed, err := NewCreatePaymentRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.UserID != "user-1" {
		t.Fatalf("expected trimmed user id, got %q", parsed.UserID)
	}
	if parsed.ListingID != "listing-9" || parsed.Description != "Listing fee" {
		t.Fatalf("expected trimmed fields, got %+v", parsed)
	}
	if parsed.NotifyURL != "https://example.com/hooks" {
		t.Fatalf("unexpected notify url: %q", parsed.NotifyURL)
	}
	if parsed.UserAgent != "Mozilla/5.0" {
		t.Fatalf("unexpected user agent: %q", parsed.UserAgent)
	}
	if parsed.IPAddress == "" {
		t.Fatal("expected remote ip to be captured")
	}
}

func TestCreatePaymentValidate(t *testing.T) {
	req := &CreatePaymentRequest{}
	if err := req.Validate(); err == nil {
		t.Fatal("expected user id validation error")
	}

	req = &CreatePaymentRequest{UserID: "user-1"}
	if err := req.Validate(); err == nil {
		t.Fatal("expected amount validation error")
	}

	req = &CreatePaymentRequest{UserID: "user-1", AmountMinor: 50000}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestTransactionCodeRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/payments/TXN1", nil)
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("transactionCode")
	ctx.SetParamValues(" TXN1 ")

	parsed := NewTransactionCodeRequestFromContext(ctx)
	if parsed.TransactionCode != "TXN1" || parsed.UserID != "user-1" {
		t.Fatalf("unexpected parsed request: %+v", parsed)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	if err := (&TransactionCodeRequest{UserID: "user-1"}).Validate(); err == nil {
		t.Fatal("expected transaction code validation error")
	}
	if err := (&TransactionCodeRequest{TransactionCode: "TXN1"}).Validate(); err == nil {
		t.Fatal("expected user id validation error")
	}
}

func TestNewListPaymentsRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/payments?status=completed&limit=20&offset=3", nil)
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	parsed, err := NewListPaymentsRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.Status != entity.StatusCompleted {
		t.Fatalf("unexpected status parse: %+v", parsed)
	}
	if parsed.Limit != 20 || parsed.Offset != 3 {
		t.Fatalf("unexpected pagination parse: %+v", parsed)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid list request, got %v", err)
	}
}

func TestNewListPaymentsRequestRejectsUnknownStatus(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/payments?status=paid", nil)
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if _, err := NewListPaymentsRequestFromContext(ctx); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestListPaymentsValidateDefaultsAndBounds(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/payments", nil)
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()

	parsed, err := NewListPaymentsRequestFromContext(e.NewContext(req, rec))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.Limit != 100 {
		t.Fatalf("expected default limit 100, got %d", parsed.Limit)
	}

	parsed.Limit = 501
	if err := parsed.Validate(); err == nil {
		t.Fatal("expected limit bound validation error")
	}
	parsed.Limit = 100
	parsed.Offset = -1
	if err := parsed.Validate(); err == nil {
		t.Fatal("expected offset validation error")
	}
}

func TestCallbackParamsFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/payments/vnpay/ipn?vnp_TxnRef=TXN1&vnp_Amount=1000000&vnp_SecureHash=abc", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	params := CallbackParamsFromContext(ctx)
	if params["vnp_TxnRef"] != "TXN1" || params["vnp_Amount"] != "1000000" {
		t.Fatalf("unexpected params: %+v", params)
	}
	if params["vnp_SecureHash"] != "abc" {
		t.Fatalf("expected signature to be carried through, got %+v", params)
	}
}

func TestCallbackParamsFromForm(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/payments/vnpay/ipn", bytes.NewBufferString("vnp_TxnRef=TXN1&vnp_ResponseCode=00"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	params := CallbackParamsFromContext(ctx)
	if params["vnp_TxnRef"] != "TXN1" || params["vnp_ResponseCode"] != "00" {
		t.Fatalf("unexpected params: %+v", params)
	}
}
