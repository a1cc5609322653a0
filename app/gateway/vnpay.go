package gateway

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	apiVersion = "2.1.0"
	commandPay = "pay"
	currency   = "VND"

	// The gateway expects amounts pre-scaled by 100 on the wire.
	amountScale = 100

	dateLayout = "20060102150405"
)

// The gateway only accepts timestamps in Vietnam local time (UTC+7);
// anything else is rejected as out of window.
var gatewayZone = time.FixedZone("GMT+7", 7*60*60)

var ipv4Pattern = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)

type Config struct {
	TmnCode    string
	HashSecret string
	BaseURL    string
	ReturnURL  string
	Locale     string
	OrderType  string
}

type VNPayGateway struct {
	cfg Config
}

func NewVNPayGateway(cfg Config) (*VNPayGateway, error) {
	if strings.TrimSpace(cfg.TmnCode) == "" ||
		strings.TrimSpace(cfg.HashSecret) == "" ||
		strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("vnpay gateway requires tmn code, hash secret, and base url")
	}
	if cfg.Locale == "" {
		cfg.Locale = "vn"
	}
	if cfg.OrderType == "" {
		cfg.OrderType = "other"
	}
	return &VNPayGateway{cfg: cfg}, nil
}

type PaymentURLInput struct {
	TxnRef      string
	AmountMinor int64
	OrderInfo   string
	IPAddress   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// BuildPaymentURL assembles, signs, and encodes the redirect URL the
// user's browser is sent to. No network I/O happens here; the gateway
// visit is out of band.
func (g *VNPayGateway) BuildPaymentURL(input PaymentURLInput) (string, error) {
	if input.TxnRef == "" || input.AmountMinor <= 0 || input.OrderInfo == "" {
		return "", errors.New("txn ref, amount, and order info are required")
	}

	params := map[string]string{
		ParamVersion:    apiVersion,
		ParamCommand:    commandPay,
		ParamTmnCode:    g.cfg.TmnCode,
		ParamAmount:     strconv.FormatInt(input.AmountMinor*amountScale, 10),
		ParamCurrCode:   currency,
		ParamTxnRef:     input.TxnRef,
		ParamOrderInfo:  input.OrderInfo,
		ParamOrderType:  g.cfg.OrderType,
		ParamLocale:     g.cfg.Locale,
		ParamReturnURL:  g.cfg.ReturnURL,
		ParamIPAddr:     FormatIPAddress(input.IPAddress),
		ParamCreateDate: FormatGatewayTime(input.CreatedAt),
		ParamExpireDate: FormatGatewayTime(input.ExpiresAt),
	}

	canonical := Canonicalize(params)
	signature := Sign(canonical, g.cfg.HashSecret)

	// The canonical string doubles as the query string: both use the
	// same form encoding.
	return g.cfg.BaseURL + "?" + canonical + "&" + ParamSecureHash + "=" + signature, nil
}

// VerifyCallback checks the signature on an inbound callback parameter set
// from either channel.
func (g *VNPayGateway) VerifyCallback(params map[string]string) bool {
	return Verify(params, params[ParamSecureHash], g.cfg.HashSecret)
}

// WireAmount converts a stored minor-unit amount to its wire form.
func WireAmount(amountMinor int64) string {
	return strconv.FormatInt(amountMinor*amountScale, 10)
}

// ParseWireAmount converts a callback's vnp_Amount back to minor units.
func ParseWireAmount(raw string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 || n%amountScale != 0 {
		return 0, false
	}
	return n / amountScale, true
}

// FormatGatewayTime renders a timestamp in the gateway's fixed UTC+7
// offset as yyyyMMddHHmmss.
func FormatGatewayTime(t time.Time) string {
	return t.In(gatewayZone).Format(dateLayout)
}

// FormatIPAddress scrubs proxy artifacts down to the plain IPv4 form the
// gateway accepts, falling back to loopback.
func FormatIPAddress(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "127.0.0.1"
	}
	if i := strings.Index(ip, "::ffff:"); i >= 0 {
		ip = ip[i+len("::ffff:"):]
	}
	if ip == "::1" {
		return "127.0.0.1"
	}
	if strings.Contains(ip, ":") && !strings.Contains(ip, "::") {
		ip = ip[:strings.Index(ip, ":")]
	}
	if !ipv4Pattern.MatchString(ip) {
		return "127.0.0.1"
	}
	return ip
}
