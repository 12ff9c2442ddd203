package payment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-reconciler/internal/domain"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec"
	body := []byte(`{"event":"checkout.order.completed","payload":{"merchantOrderId":"ORD-1","state":"COMPLETED"}}`)
	digest := Sign(secret, body)

	t.Run("scheme and digest", func(t *testing.T) {
		require.NoError(t, VerifySignature(secret, body, "SHA256 "+digest))
	})

	t.Run("bare digest", func(t *testing.T) {
		require.NoError(t, VerifySignature(secret, body, digest))
	})

	t.Run("upper case hex", func(t *testing.T) {
		require.NoError(t, VerifySignature(secret, body, strings.ToUpper(digest)))
	})

	t.Run("one byte tampered", func(t *testing.T) {
		tampered := append([]byte(nil), body...)
		tampered[len(tampered)-3] = 'X'
		assert.ErrorIs(t, VerifySignature(secret, tampered, digest), domain.ErrSignatureInvalid)
	})

	t.Run("re-serialised body", func(t *testing.T) {
		spaced := []byte(strings.Replace(string(body), ":", ": ", 1))
		assert.ErrorIs(t, VerifySignature(secret, spaced, digest), domain.ErrSignatureInvalid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.ErrorIs(t, VerifySignature("other", body, digest), domain.ErrSignatureInvalid)
	})

	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, VerifySignature(secret, body, ""), domain.ErrSignatureInvalid)
	})

	t.Run("not hex", func(t *testing.T) {
		assert.ErrorIs(t, VerifySignature(secret, body, "SHA256 zz"), domain.ErrSignatureInvalid)
	})

	t.Run("too many parts", func(t *testing.T) {
		assert.ErrorIs(t, VerifySignature(secret, body, "a b c"), domain.ErrSignatureInvalid)
	})

	t.Run("empty secret fails closed", func(t *testing.T) {
		assert.ErrorIs(t, VerifySignature("", body, Sign("", body)), domain.ErrSignatureInvalid)
	})
}
