package gateway

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func testGateway(t *testing.T) *VNPayGateway {
	t.Helper()
	gw, err := NewVNPayGateway(Config{
		TmnCode:    "DEMOTMN1",
		HashSecret: testSecret,
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://example.com/payments/vnpay/return",
	})
	if err != nil {
		t.Fatalf("NewVNPayGateway: %v", err)
	}
	return gw
}

func TestNewVNPayGatewayRequiresCredentials(t *testing.T) {
	if _, err := NewVNPayGateway(Config{TmnCode: "X", BaseURL: "https://x"}); err == nil {
		t.Fatal("expected error without hash secret")
	}
	if _, err := NewVNPayGateway(Config{HashSecret: "s", BaseURL: "https://x"}); err == nil {
		t.Fatal("expected error without tmn code")
	}
}

func TestBuildPaymentURL(t *testing.T) {
	gw := testGateway(t)

	createdAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rawURL, err := gw.BuildPaymentURL(PaymentURLInput{
		TxnRef:      "TXNABC123",
		AmountMinor: 10000,
		OrderInfo:   "Listing publication fee - TXNABC123",
		IPAddress:   "203.113.1.5",
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(15 * time.Minute),
	})
	if err != nil {
		t.Fatalf("BuildPaymentURL: %v", err)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse payment url: %v", err)
	}
	query := parsed.Query()

	if got := query.Get(ParamVersion); got != "2.1.0" {
		t.Fatalf("version = %q", got)
	}
	if got := query.Get(ParamCommand); got != "pay" {
		t.Fatalf("command = %q", got)
	}
	if got := query.Get(ParamCurrCode); got != "VND" {
		t.Fatalf("currency = %q", got)
	}
	if got := query.Get(ParamAmount); got != "1000000" {
		t.Fatalf("amount = %q, want stored amount scaled by 100", got)
	}
	// 10:00 UTC is 17:00 in the gateway's fixed UTC+7 offset.
	if got := query.Get(ParamCreateDate); got != "20250301170000" {
		t.Fatalf("create date = %q, want 20250301170000", got)
	}
	if got := query.Get(ParamExpireDate); got != "20250301171500" {
		t.Fatalf("expire date = %q, want 20250301171500", got)
	}
	if got := query.Get(ParamLocale); got != "vn" {
		t.Fatalf("locale = %q", got)
	}
	if got := query.Get(ParamOrderType); got != "other" {
		t.Fatalf("order type = %q", got)
	}
	if got := query.Get(ParamIPAddr); got != "203.113.1.5" {
		t.Fatalf("ip = %q", got)
	}

	sig := query.Get(ParamSecureHash)
	if sig == "" {
		t.Fatal("payment url must carry a signature")
	}

	// The signature must verify against the parameters exactly as they
	// appear on the wire.
	params := map[string]string{}
	for key, values := range query {
		params[key] = values[0]
	}
	if !Verify(params, sig, testSecret) {
		t.Fatal("payment url signature must verify over its own parameters")
	}
}

func TestBuildPaymentURLRejectsMissingFields(t *testing.T) {
	gw := testGateway(t)

	if _, err := gw.BuildPaymentURL(PaymentURLInput{AmountMinor: 10000, OrderInfo: "x"}); err == nil {
		t.Fatal("expected error without txn ref")
	}
	if _, err := gw.BuildPaymentURL(PaymentURLInput{TxnRef: "TXN1", OrderInfo: "x"}); err == nil {
		t.Fatal("expected error without amount")
	}
}

func TestParseWireAmount(t *testing.T) {
	if got, ok := ParseWireAmount("1000000"); !ok || got != 10000 {
		t.Fatalf("ParseWireAmount(1000000) = %d, %v", got, ok)
	}
	if _, ok := ParseWireAmount("100001"); ok {
		t.Fatal("amount not divisible by the scale factor must be rejected")
	}
	if _, ok := ParseWireAmount("abc"); ok {
		t.Fatal("non-numeric amount must be rejected")
	}
	if _, ok := ParseWireAmount("-1000000"); ok {
		t.Fatal("negative amount must be rejected")
	}
	if _, ok := ParseWireAmount(""); ok {
		t.Fatal("empty amount must be rejected")
	}
}

func TestFormatIPAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"203.113.1.5", "203.113.1.5"},
		{"::ffff:10.0.0.7", "10.0.0.7"},
		{"::1", "127.0.0.1"},
		{"10.0.0.7:54321", "10.0.0.7"},
		{"", "127.0.0.1"},
		{"not-an-ip", "127.0.0.1"},
	}
	for _, tc := range cases {
		if got := FormatIPAddress(tc.in); got != tc.want {
			t.Errorf("FormatIPAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResponseMessage(t *testing.T) {
	if got := ResponseMessage("00"); got != "Transaction successful" {
		t.Fatalf("message for 00 = %q", got)
	}
	if got := ResponseMessage("24"); got != "Customer cancelled the transaction" {
		t.Fatalf("message for 24 = %q", got)
	}
	if got := ResponseMessage("XX"); !strings.Contains(got, "XX") {
		t.Fatalf("unknown code message = %q, want code echoed", got)
	}
}
