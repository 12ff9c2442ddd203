package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-reconciler/internal/domain"
)

func TestParseOutcome(t *testing.T) {
	cases := map[string]domain.Outcome{
		"COMPLETED":         domain.OutcomeSuccess,
		"success":           domain.OutcomeSuccess,
		" PAYMENT_SUCCESS ": domain.OutcomeSuccess,
		"FAILED":            domain.OutcomeFailed,
		"PAYMENT_ERROR":     domain.OutcomeFailed,
		"CANCELLED":         domain.OutcomeCancelled,
		"canceled":          domain.OutcomeCancelled,
		"PENDING":           domain.OutcomePending,
	}
	for in, want := range cases {
		got, ok := ParseOutcome(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseOutcome("REFUNDED")
	assert.False(t, ok)
	_, ok = ParseOutcome("")
	assert.False(t, ok)
}

func TestDecodeCallback(t *testing.T) {
	t.Run("transaction id preferred", func(t *testing.T) {
		raw := []byte(`{"event":"checkout.order.completed","payload":{"merchantOrderId":"ORD-1","orderId":"OMO1","state":"COMPLETED","paymentDetails":[{"transactionId":"T1"}]}}`)
		ev, err := decodeCallback(raw)
		require.NoError(t, err)
		assert.Equal(t, "ORD-1", ev.OrderID)
		assert.Equal(t, domain.OutcomeSuccess, ev.Outcome)
		assert.Equal(t, "T1", ev.GatewayReference)
		assert.Equal(t, "checkout.order.completed", ev.Event)
	})

	t.Run("falls back to provider order id", func(t *testing.T) {
		raw := []byte(`{"payload":{"merchantOrderId":"ORD-1","orderId":"OMO1","state":"FAILED"}}`)
		ev, err := decodeCallback(raw)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeFailed, ev.Outcome)
		assert.Equal(t, "OMO1", ev.GatewayReference)
	})

	for name, raw := range map[string]string{
		"not json":      `state=SUCCESS`,
		"no order id":   `{"payload":{"state":"COMPLETED"}}`,
		"no state":      `{"payload":{"merchantOrderId":"ORD-1"}}`,
		"unknown state": `{"payload":{"merchantOrderId":"ORD-1","state":"REFUNDED"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeCallback([]byte(raw))
			assert.ErrorIs(t, err, domain.ErrMalformedPayload)
		})
	}
}

func TestInitiateRequest_Validate(t *testing.T) {
	ok := InitiateRequest{OrderID: "ORD-1", AmountMinor: 97900, RedirectURL: "https://r", CallbackURL: "https://c"}
	require.NoError(t, ok.validate())

	zero := ok
	zero.AmountMinor = 0
	assert.ErrorIs(t, zero.validate(), domain.ErrInvalidAmount)

	noURL := ok
	noURL.CallbackURL = ""
	assert.ErrorIs(t, noURL.validate(), domain.ErrConfig)
}
