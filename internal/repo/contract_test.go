package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-reconciler/internal/domain"
)

func sampleOrder(id string, method domain.PaymentMethod) *domain.Order {
	return &domain.Order{
		OrderID: id,
		Customer: domain.Customer{
			FullName:    "Asha Rao",
			Email:       "asha@example.com",
			PhoneNumber: "9876543210",
			Address:     "12 MG Road",
			City:        "Pune",
			State:       "MH",
			PostalCode:  "411001",
		},
		Items: []domain.LineItem{{
			Product:  domain.Product{ID: "p-1", Name: "Ghee", PricePerWeight: map[string]decimal.Decimal{"500g": decimal.NewFromInt(450)}},
			Weight:   "500g",
			Quantity: 2,
		}},
		Amounts: domain.Amounts{
			Subtotal:       decimal.NewFromInt(900),
			DiscountAmount: decimal.Zero,
			Taxes:          decimal.Zero,
			ShippingCost:   decimal.NewFromInt(79),
			AdditionalFees: decimal.Zero,
			FinalTotal:     decimal.NewFromInt(979),
		},
		PaymentMethod: method,
		Coupon:        &domain.Coupon{Code: "WELCOME10", DiscountPercent: decimal.NewFromInt(10)},
	}
}

func runOrderRepoContract(t *testing.T, newRepo func(t *testing.T) OrderRepo) {
	ctx := context.Background()

	t.Run("create then get", func(t *testing.T) {
		r := newRepo(t)
		created, err := r.Create(ctx, sampleOrder("ORD-1", domain.PaymentGateway))
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.InternalID)
		assert.Equal(t, domain.OrderPending, created.Status)

		got, err := r.Get(ctx, "ORD-1")
		require.NoError(t, err)
		assert.Equal(t, created.InternalID, got.InternalID)
		assert.Equal(t, "Asha Rao", got.Customer.FullName)
		assert.True(t, decimal.NewFromInt(979).Equal(got.Amounts.FinalTotal))
		require.Len(t, got.Items, 1)
		assert.Equal(t, 2, got.Items[0].Quantity)
		require.NotNil(t, got.Coupon)
		assert.Equal(t, "WELCOME10", got.Coupon.Code)
		assert.Nil(t, got.PaymentReference)
	})

	t.Run("duplicate order id", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.Create(ctx, sampleOrder("ORD-2", domain.PaymentCOD))
		require.NoError(t, err)

		second := sampleOrder("ORD-2", domain.PaymentCOD)
		second.Customer.FullName = "Someone Else"
		_, err = r.Create(ctx, second)
		require.ErrorIs(t, err, domain.ErrDuplicateOrder)

		got, err := r.Get(ctx, "ORD-2")
		require.NoError(t, err)
		assert.Equal(t, "Asha Rao", got.Customer.FullName)
	})

	t.Run("get unknown", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.Get(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("update is conditional on pending", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.Create(ctx, sampleOrder("ORD-3", domain.PaymentGateway))
		require.NoError(t, err)

		ref := "T-123"
		change, err := r.UpdateStatus(ctx, "ORD-3", domain.OrderPaid, &ref)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusChange{Previous: domain.OrderPending, Current: domain.OrderPaid, Applied: true}, change)

		change, err = r.UpdateStatus(ctx, "ORD-3", domain.OrderFailed, nil)
		require.NoError(t, err)
		assert.False(t, change.Applied)
		assert.Equal(t, domain.OrderPaid, change.Current)

		got, err := r.Get(ctx, "ORD-3")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderPaid, got.Status)
		require.NotNil(t, got.PaymentReference)
		assert.Equal(t, "T-123", *got.PaymentReference)
	})

	t.Run("update rejects non terminal target", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.Create(ctx, sampleOrder("ORD-4", domain.PaymentGateway))
		require.NoError(t, err)
		_, err = r.UpdateStatus(ctx, "ORD-4", domain.OrderPending, nil)
		require.Error(t, err)
	})

	t.Run("update unknown", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.UpdateStatus(ctx, "missing", domain.OrderPaid, nil)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("concurrent transitions have one winner", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.Create(ctx, sampleOrder("ORD-5", domain.PaymentGateway))
		require.NoError(t, err)

		targets := []domain.OrderStatus{domain.OrderPaid, domain.OrderFailed, domain.OrderCancelled}
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []domain.OrderStatus
		)
		for i := 0; i < 30; i++ {
			wg.Add(1)
			go func(target domain.OrderStatus) {
				defer wg.Done()
				change, err := r.UpdateStatus(ctx, "ORD-5", target, nil)
				if !assert.NoError(t, err) {
					return
				}
				if change.Applied {
					mu.Lock()
					winners = append(winners, change.Current)
					mu.Unlock()
				}
			}(targets[i%len(targets)])
		}
		wg.Wait()

		require.Len(t, winners, 1)
		got, err := r.Get(ctx, "ORD-5")
		require.NoError(t, err)
		assert.Equal(t, winners[0], got.Status)
	})

	t.Run("stale pending gateway orders", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.Create(ctx, sampleOrder("ORD-6", domain.PaymentGateway))
		require.NoError(t, err)
		_, err = r.Create(ctx, sampleOrder("ORD-7", domain.PaymentCOD))
		require.NoError(t, err)
		_, err = r.Create(ctx, sampleOrder("ORD-8", domain.PaymentGateway))
		require.NoError(t, err)
		_, err = r.UpdateStatus(ctx, "ORD-8", domain.OrderFailed, nil)
		require.NoError(t, err)

		stale, err := r.FindStalePending(ctx, time.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, "ORD-6", stale[0].OrderID)

		stale, err = r.FindStalePending(ctx, time.Now().Add(-time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, stale)
	})

	t.Run("checked orders move to the back", func(t *testing.T) {
		r := newRepo(t)
		for _, id := range []string{"ORD-A", "ORD-B", "ORD-C"} {
			_, err := r.Create(ctx, sampleOrder(id, domain.PaymentGateway))
			require.NoError(t, err)
		}
		sweepAt := time.Now().Add(time.Hour)

		stale, err := r.FindStalePending(ctx, sweepAt, 2)
		require.NoError(t, err)
		require.Len(t, stale, 2)
		for _, o := range stale {
			require.NoError(t, r.MarkChecked(ctx, o.OrderID, sweepAt))
		}

		stale, err = r.FindStalePending(ctx, sweepAt.Add(-time.Minute), 2)
		require.NoError(t, err)
		require.Len(t, stale, 1, "orders checked since the cutoff wait for the next window")
		assert.Equal(t, "ORD-C", stale[0].OrderID)

		stale, err = r.FindStalePending(ctx, sweepAt.Add(time.Minute), 3)
		require.NoError(t, err)
		require.Len(t, stale, 3)
		assert.Equal(t, "ORD-C", stale[0].OrderID, "never-checked order comes first")
	})
}

func runPaymentRepoContract(t *testing.T, newRepo func(t *testing.T) PaymentRepo) {
	ctx := context.Background()

	t.Run("latest session wins", func(t *testing.T) {
		r := newRepo(t)
		require.NoError(t, r.CreateSession(ctx, &domain.PaymentSession{OrderID: "ORD-1", AmountMinor: 97900, PaymentURL: "https://pay/1"}))
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, r.CreateSession(ctx, &domain.PaymentSession{OrderID: "ORD-1", AmountMinor: 97900, PaymentURL: "https://pay/2"}))

		s, err := r.FindByOrder(ctx, "ORD-1")
		require.NoError(t, err)
		assert.Equal(t, "https://pay/2", s.PaymentURL)
		assert.Equal(t, domain.SessionInitiated, s.Status)
		assert.Equal(t, int64(97900), s.AmountMinor)
	})

	t.Run("settle", func(t *testing.T) {
		r := newRepo(t)
		require.NoError(t, r.CreateSession(ctx, &domain.PaymentSession{OrderID: "ORD-2", AmountMinor: 100, PaymentURL: "https://pay/3"}))
		require.NoError(t, r.MarkSettled(ctx, "ORD-2"))

		s, err := r.FindByOrder(ctx, "ORD-2")
		require.NoError(t, err)
		assert.Equal(t, domain.SessionSettled, s.Status)
	})

	t.Run("missing", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.FindByOrder(ctx, "nope")
		require.ErrorIs(t, err, domain.ErrNotFound)
		require.NoError(t, r.MarkSettled(ctx, "nope"))
	})
}
