package gateway

import (
	"net/url"
	"sort"
	"strings"
)

const (
	ParamVersion        = "vnp_Version"
	ParamCommand        = "vnp_Command"
	ParamTmnCode        = "vnp_TmnCode"
	ParamAmount         = "vnp_Amount"
	ParamCurrCode       = "vnp_CurrCode"
	ParamTxnRef         = "vnp_TxnRef"
	ParamOrderInfo      = "vnp_OrderInfo"
	ParamOrderType      = "vnp_OrderType"
	ParamLocale         = "vnp_Locale"
	ParamReturnURL      = "vnp_ReturnUrl"
	ParamIPAddr         = "vnp_IpAddr"
	ParamCreateDate     = "vnp_CreateDate"
	ParamExpireDate     = "vnp_ExpireDate"
	ParamResponseCode   = "vnp_ResponseCode"
	ParamTransactionNo  = "vnp_TransactionNo"
	ParamBankCode       = "vnp_BankCode"
	ParamBankTranNo     = "vnp_BankTranNo"
	ParamPayDate        = "vnp_PayDate"
	ParamCardType       = "vnp_CardType"
	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
)

// Canonicalize builds the byte string the gateway signature is computed
// over. Signature fields and empty values are dropped, the remaining
// fields are sorted by their raw name, and both names and values are
// form-encoded (space becomes '+', not %20 — the gateway signs the
// form-encoded representation, so the generic percent encoding would
// produce an incompatible string).
func Canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}
