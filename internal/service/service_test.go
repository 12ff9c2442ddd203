package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout-reconciler/internal/domain"
	"checkout-reconciler/internal/infrastructure/payment"
	"checkout-reconciler/internal/repo"
)

const webhookSecret = "whsec"

var testURLs = PaymentURLs{
	RedirectURL: "https://shop.example/payment-status",
	CallbackURL: "https://api.shop.example/payments/callback",
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []string
}

func (n *recordingNotifier) Notify(_ context.Context, order *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order.OrderID)
	return nil
}

func (n *recordingNotifier) count(orderID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, id := range n.orders {
		if id == orderID {
			c++
		}
	}
	return c
}

// stubGateway answers QueryStatus from fields; the rest delegates to a mock.
type stubGateway struct {
	*payment.MockGateway
	status  *payment.StatusResult
	err     error
	queried int
}

func (g *stubGateway) QueryStatus(_ context.Context, orderID string) (*payment.StatusResult, error) {
	g.queried++
	if g.err != nil {
		return nil, g.err
	}
	res := *g.status
	res.OrderID = orderID
	return &res, nil
}

type fixture struct {
	orders     *repo.MemoryOrderRepo
	payments   *repo.MemoryPaymentRepo
	notifier   *recordingNotifier
	reconciler Reconciler
	orderSvc   OrderService
	paymentSvc PaymentService
}

func newFixture(t *testing.T, gw payment.Gateway) *fixture {
	t.Helper()
	log := zap.NewNop()
	f := &fixture{
		orders:   repo.NewMemoryOrderRepo(),
		payments: repo.NewMemoryPaymentRepo(),
		notifier: &recordingNotifier{},
	}
	f.reconciler = NewReconciler(f.orders, f.payments, f.notifier, log)
	f.orderSvc = NewOrderService(f.orders, f.notifier, log)
	f.paymentSvc = NewPaymentService(f.orders, f.payments, gw, f.reconciler, testURLs, log)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ord1 is the reference checkout: two items totalling 900, shipping 79.
func ord1(id string, method domain.PaymentMethod) CreateOrderInput {
	return CreateOrderInput{
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
		Items: []domain.LineItem{
			{Product: domain.Product{ID: "p-1", Name: "Ghee"}, Weight: "500g", Quantity: 1},
			{Product: domain.Product{ID: "p-2", Name: "Jaggery"}, Weight: "1kg", Quantity: 3},
		},
		Amounts: domain.Amounts{
			Subtotal:     dec("900"),
			ShippingCost: dec("79"),
			FinalTotal:   dec("979"),
		},
		PaymentMethod: method,
	}
}

func createOrder(t *testing.T, f *fixture, id string, method domain.PaymentMethod) *domain.Order {
	t.Helper()
	o, err := f.orderSvc.CreateOrder(context.Background(), ord1(id, method))
	require.NoError(t, err)
	return o
}

// checkoutOrder creates a gateway order and opens its checkout session.
func checkoutOrder(t *testing.T, f *fixture, id string) {
	t.Helper()
	createOrder(t, f, id, domain.PaymentGateway)
	_, err := f.paymentSvc.Initiate(context.Background(), InitiateInput{OrderID: id})
	require.NoError(t, err)
}
