package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"checkout-reconciler/internal/domain"
	"checkout-reconciler/internal/repo"
)

// Source names where a payment outcome came from.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourcePoll    Source = "poll"
	SourceSweep   Source = "sweep"
)

type Event struct {
	OrderID          string
	Outcome          domain.Outcome
	GatewayReference string
	Source           Source
}

type Result struct {
	Order        *domain.Order
	Previous     domain.OrderStatus
	Current      domain.OrderStatus
	Transitioned bool
}

// Notifier hands a paid or cod order to the confirmation channel without
// waiting for delivery.
type Notifier interface {
	Notify(ctx context.Context, order *domain.Order) error
}

// Reconciler is the single entry point through which a payment outcome,
// whatever its source, changes an order. Applying the same outcome twice, or
// racing two outcomes, leaves exactly one transition and at most one
// confirmation.
type Reconciler interface {
	Apply(ctx context.Context, ev Event) (*Result, error)
}

type reconciler struct {
	orderRepo   repo.OrderRepo
	paymentRepo repo.PaymentRepo
	notifier    Notifier
	logger      *zap.Logger
}

func NewReconciler(
	orderRepo repo.OrderRepo,
	paymentRepo repo.PaymentRepo,
	notifier Notifier,
	logger *zap.Logger,
) Reconciler {
	return &reconciler{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		notifier:    notifier,
		logger:      logger,
	}
}

func (r *reconciler) Apply(ctx context.Context, ev Event) (*Result, error) {
	log := r.logger.With(
		zap.String("order_id", ev.OrderID),
		zap.String("outcome", string(ev.Outcome)),
		zap.String("source", string(ev.Source)),
	)

	order, err := r.orderRepo.Get(ctx, ev.OrderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownOrder, ev.OrderID)
	}
	if err != nil {
		return nil, err
	}

	if order.PaymentMethod != domain.PaymentGateway {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrNotGatewayOrder, ev.OrderID, order.PaymentMethod)
	}

	if order.Status.Terminal() {
		log.Debug("order already settled", zap.String("status", string(order.Status)))
		return &Result{Order: order, Previous: order.Status, Current: order.Status}, nil
	}

	target, ok := ev.Outcome.TargetStatus()
	if !ok {
		return &Result{Order: order, Previous: order.Status, Current: order.Status}, nil
	}

	var ref *string
	if ev.GatewayReference != "" {
		ref = &ev.GatewayReference
	}

	change, err := r.orderRepo.UpdateStatus(ctx, ev.OrderID, target, ref)
	if err != nil {
		return nil, err
	}
	if !change.Applied {
		log.Info("outcome lost the race", zap.String("status", string(change.Current)))
		order.Status = change.Current
		return &Result{Order: order, Previous: change.Previous, Current: change.Current}, nil
	}

	order.Status = change.Current
	if ref != nil {
		order.PaymentReference = ref
	}
	log.Info("order transitioned",
		zap.String("from", string(change.Previous)),
		zap.String("to", string(change.Current)),
		zap.String("gateway_reference", ev.GatewayReference),
	)

	if err := r.paymentRepo.MarkSettled(ctx, ev.OrderID); err != nil {
		log.Error("failed to settle payment sessions", zap.Error(err))
	}

	if change.Current == domain.OrderPaid {
		if err := r.notifier.Notify(ctx, order); err != nil {
			log.Error("failed to enqueue confirmation", zap.Error(err))
		}
	}

	return &Result{Order: order, Previous: change.Previous, Current: change.Current, Transitioned: true}, nil
}
