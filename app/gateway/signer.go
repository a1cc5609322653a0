package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// Sign computes the HMAC-SHA512 of the canonical string and renders it as
// lowercase hex, which is the casing the gateway emits.
func Sign(canonical, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over params (signature fields are
// stripped during canonicalization) and compares it against the provided
// hex signature. The gateway's casing is not guaranteed, so the comparison
// is case-insensitive; it is constant time over the decoded MAC bytes.
func Verify(params map[string]string, providedSignature, secret string) bool {
	providedSignature = strings.TrimSpace(providedSignature)
	if providedSignature == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.ToLower(providedSignature))
	if err != nil {
		return false
	}

	mac := hmac.New(sha512.New, []byte(secret))
	_, _ = mac.Write([]byte(Canonicalize(params)))
	return hmac.Equal(provided, mac.Sum(nil))
}
