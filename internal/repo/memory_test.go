package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-reconciler/internal/domain"
)

func TestMemoryOrderRepo(t *testing.T) {
	runOrderRepoContract(t, func(*testing.T) OrderRepo { return NewMemoryOrderRepo() })
}

func TestMemoryPaymentRepo(t *testing.T) {
	runPaymentRepoContract(t, func(*testing.T) PaymentRepo { return NewMemoryPaymentRepo() })
}

func TestMemoryOrderRepo_ReturnsCopies(t *testing.T) {
	r := NewMemoryOrderRepo()
	ctx := context.Background()

	created, err := r.Create(ctx, sampleOrder("ORD-9", domain.PaymentGateway))
	require.NoError(t, err)
	created.Status = domain.OrderPaid
	created.Items[0].Quantity = 99

	got, err := r.Get(ctx, "ORD-9")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, got.Status)
	assert.Equal(t, 2, got.Items[0].Quantity)
}
