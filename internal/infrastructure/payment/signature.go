package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"checkout-reconciler/internal/domain"
)

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC of the exact bytes received.
// The header is either "<scheme> <hex>" or a bare hex digest. An empty secret
// or header always fails.
func VerifySignature(secret string, body []byte, header string) error {
	if secret == "" {
		return domain.ErrSignatureInvalid
	}

	fields := strings.Fields(header)
	var digest string
	switch len(fields) {
	case 1:
		digest = fields[0]
	case 2:
		digest = fields[1]
	default:
		return domain.ErrSignatureInvalid
	}

	got, err := hex.DecodeString(strings.ToLower(digest))
	if err != nil {
		return domain.ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return domain.ErrSignatureInvalid
	}
	return nil
}
