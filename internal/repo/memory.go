package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"checkout-reconciler/internal/domain"
)

// MemoryOrderRepo is the in-process OrderRepo used by store=memory and tests.
// Every read hands out a copy.
type MemoryOrderRepo struct {
	mu      sync.Mutex
	orders  map[string]*domain.Order
	checked map[string]time.Time
	now     func() time.Time
}

func NewMemoryOrderRepo() *MemoryOrderRepo {
	return &MemoryOrderRepo{
		orders:  make(map[string]*domain.Order),
		checked: make(map[string]time.Time),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryOrderRepo) Create(_ context.Context, order *domain.Order) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.OrderID]; ok {
		return nil, errors.Wrapf(domain.ErrDuplicateOrder, "order %s", order.OrderID)
	}

	created := cloneOrder(order)
	created.InternalID = uuid.New()
	created.Status = domain.OrderPending
	created.CreatedAt = r.now()
	created.UpdatedAt = created.CreatedAt
	r.orders[created.OrderID] = created

	return cloneOrder(created), nil
}

func (r *MemoryOrderRepo) Get(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "order %s", orderID)
	}
	return cloneOrder(o), nil
}

func (r *MemoryOrderRepo) UpdateStatus(_ context.Context, orderID string, status domain.OrderStatus, paymentRef *string) (domain.StatusChange, error) {
	if !status.Terminal() {
		return domain.StatusChange{}, fmt.Errorf("status %q is not a terminal status", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return domain.StatusChange{}, errors.Wrapf(domain.ErrNotFound, "order %s", orderID)
	}
	if o.Status != domain.OrderPending {
		return domain.StatusChange{Previous: o.Status, Current: o.Status}, nil
	}

	o.Status = status
	if paymentRef != nil {
		ref := *paymentRef
		o.PaymentReference = &ref
	}
	o.UpdatedAt = r.now()
	return domain.StatusChange{Previous: domain.OrderPending, Current: status, Applied: true}, nil
}

func (r *MemoryOrderRepo) FindStalePending(_ context.Context, before time.Time, limit int) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type candidate struct {
		order domain.Order
		since time.Time
	}
	var stale []candidate
	for id, o := range r.orders {
		if o.Status != domain.OrderPending || o.PaymentMethod != domain.PaymentGateway || !o.UpdatedAt.Before(before) {
			continue
		}
		since := o.UpdatedAt
		if at, ok := r.checked[id]; ok {
			if !at.Before(before) {
				continue
			}
			since = at
		}
		stale = append(stale, candidate{order: *cloneOrder(o), since: since})
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].since.Before(stale[j].since) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}

	orders := make([]domain.Order, 0, len(stale))
	for _, c := range stale {
		orders = append(orders, c.order)
	}
	return orders, nil
}

func (r *MemoryOrderRepo) MarkChecked(_ context.Context, orderID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o, ok := r.orders[orderID]; ok && o.Status == domain.OrderPending {
		r.checked[orderID] = at
	}
	return nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.LineItem(nil), o.Items...)
	if o.PaymentReference != nil {
		ref := *o.PaymentReference
		c.PaymentReference = &ref
	}
	if o.Coupon != nil {
		coupon := *o.Coupon
		c.Coupon = &coupon
	}
	return &c
}

// MemoryPaymentRepo is the in-process PaymentRepo.
type MemoryPaymentRepo struct {
	mu       sync.Mutex
	sessions map[string][]domain.PaymentSession
}

func NewMemoryPaymentRepo() *MemoryPaymentRepo {
	return &MemoryPaymentRepo{sessions: make(map[string][]domain.PaymentSession)}
}

func (r *MemoryPaymentRepo) CreateSession(_ context.Context, s *domain.PaymentSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = domain.SessionInitiated
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	r.sessions[s.OrderID] = append(r.sessions[s.OrderID], *s)
	return nil
}

func (r *MemoryPaymentRepo) FindByOrder(_ context.Context, orderID string) (*domain.PaymentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.sessions[orderID]
	if len(list) == 0 {
		return nil, errors.Wrapf(domain.ErrNotFound, "payment session for %s", orderID)
	}
	latest := list[len(list)-1]
	return &latest, nil
}

func (r *MemoryPaymentRepo) MarkSettled(_ context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.sessions[orderID]
	for i := range list {
		if list[i].Status == domain.SessionInitiated {
			list[i].Status = domain.SessionSettled
			list[i].UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}
