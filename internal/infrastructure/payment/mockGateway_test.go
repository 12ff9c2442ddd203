package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-reconciler/internal/domain"
)

func fixedRoll(n int) MockOption {
	return WithRoll(func() int { return n })
}

func TestMockGateway_Charged(t *testing.T) {
	gw := NewMockGateway("whsec", fixedRoll(10), WithCheckoutBaseURL("https://sandbox/"))
	ctx := context.Background()

	url, err := gw.Initiate(ctx, initReq)
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox/checkout/ORD-1", url)

	res, err := gw.QueryStatus(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePending, res.Outcome)

	fate, body, header, err := gw.Pay(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, FateCharged, fate)

	ev, err := gw.VerifyCallback(body, header)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", ev.OrderID)
	assert.Equal(t, domain.OutcomeSuccess, ev.Outcome)
	assert.NotEmpty(t, ev.GatewayReference)

	res, err = gw.QueryStatus(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
	assert.Equal(t, ev.GatewayReference, res.GatewayReference)
}

func TestMockGateway_Declined(t *testing.T) {
	gw := NewMockGateway("whsec", fixedRoll(75))
	ctx := context.Background()
	_, err := gw.Initiate(ctx, initReq)
	require.NoError(t, err)

	fate, body, header, err := gw.Pay(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, FateDeclined, fate)

	ev, err := gw.VerifyCallback(body, header)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailed, ev.Outcome)
}

func TestMockGateway_Phantom(t *testing.T) {
	gw := NewMockGateway("whsec", fixedRoll(95), WithLag(10*time.Millisecond))
	ctx := context.Background()
	_, err := gw.Initiate(ctx, initReq)
	require.NoError(t, err)

	fate, body, _, err := gw.Pay(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, FatePhantom, fate)
	assert.Nil(t, body, "phantom charges deliver no webhook")

	res, err := gw.QueryStatus(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome, "the provider still took the money")
}

func TestMockGateway_Cancel(t *testing.T) {
	gw := NewMockGateway("whsec")
	ctx := context.Background()
	_, err := gw.Initiate(ctx, initReq)
	require.NoError(t, err)
	require.NoError(t, gw.Cancel("ORD-1"))

	res, err := gw.QueryStatus(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCancelled, res.Outcome)

	assert.ErrorIs(t, gw.Cancel("missing"), domain.ErrUnknownOrder)
}

func TestMockGateway_InitiateIsIdempotent(t *testing.T) {
	gw := NewMockGateway("whsec")
	ctx := context.Background()

	var wg sync.WaitGroup
	urls := make([]string, 10)
	for i := range urls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := gw.Initiate(ctx, initReq)
			assert.NoError(t, err)
			urls[i] = u
		}(i)
	}
	wg.Wait()
	for _, u := range urls {
		assert.Equal(t, urls[0], u)
	}

	other := initReq
	other.AmountMinor = 1
	_, err := gw.Initiate(ctx, other)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestMockGateway_UnknownOrder(t *testing.T) {
	gw := NewMockGateway("whsec")
	_, err := gw.QueryStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	_, _, _, err = gw.Pay(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrUnknownOrder)
}
