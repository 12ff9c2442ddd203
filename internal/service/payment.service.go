package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"checkout-reconciler/internal/domain"
	"checkout-reconciler/internal/infrastructure/payment"
	"checkout-reconciler/internal/repo"
)

type InitiateInput struct {
	// OrderID is optional. When empty a merchant reference is generated and
	// the client creates the order under it afterwards.
	OrderID  string
	Amount   decimal.Decimal
	Customer *domain.Customer
}

type InitiateResult struct {
	OrderID    string
	PaymentURL string
}

type CallbackResult struct {
	OrderID      string
	Outcome      domain.Outcome
	Status       domain.OrderStatus
	Transitioned bool
	// Ignored explains why a verified event changed nothing, e.g. an unknown order.
	Ignored string
}

type PaymentService interface {
	Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error)
	HandleCallback(ctx context.Context, rawBody []byte, signature string) (*CallbackResult, error)
	CheckStatus(ctx context.Context, orderID string) (domain.OrderStatus, error)
}

type PaymentURLs struct {
	RedirectURL string
	CallbackURL string
}

type paymentService struct {
	orderRepo   repo.OrderRepo
	paymentRepo repo.PaymentRepo
	gateway     payment.Gateway
	reconciler  Reconciler
	urls        PaymentURLs
	logger      *zap.Logger
}

func NewPaymentService(
	orderRepo repo.OrderRepo,
	paymentRepo repo.PaymentRepo,
	gateway payment.Gateway,
	reconciler Reconciler,
	urls PaymentURLs,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		gateway:     gateway,
		reconciler:  reconciler,
		urls:        urls,
		logger:      logger,
	}
}

// NewOrderID builds a merchant reference of the form ORD-<unix ms>-<0..9999>.
func NewOrderID(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%d", now.UnixMilli(), rand.IntN(10000))
}

func (s *paymentService) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	orderID := in.OrderID
	amountMinor := domain.ToMinorUnits(in.Amount)

	if orderID != "" {
		order, err := s.orderRepo.Get(ctx, orderID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownOrder, orderID)
		}
		if err != nil {
			return nil, err
		}
		if order.PaymentMethod != domain.PaymentGateway {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotGatewayOrder, orderID)
		}
		if order.Status != domain.OrderPending {
			return nil, domain.NewValidationError("orderId", "order is already "+string(order.Status))
		}
		if !in.Amount.IsZero() && amountMinor != order.Amounts.MinorUnits() {
			return nil, domain.NewValidationError("amount", "does not match order total "+order.Amounts.FinalTotal.StringFixed(domain.MinorUnitPlaces))
		}
		amountMinor = order.Amounts.MinorUnits()
	} else {
		if amountMinor <= 0 {
			return nil, domain.ErrInvalidAmount
		}
		orderID = NewOrderID(time.Now())
	}

	paymentURL, err := s.gateway.Initiate(ctx, payment.InitiateRequest{
		OrderID:     orderID,
		AmountMinor: amountMinor,
		RedirectURL: s.urls.RedirectURL,
		CallbackURL: s.urls.CallbackURL,
	})
	if err != nil {
		s.logger.Error("payment initiation failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}

	if err := s.paymentRepo.CreateSession(ctx, &domain.PaymentSession{
		OrderID:     orderID,
		AmountMinor: amountMinor,
		PaymentURL:  paymentURL,
	}); err != nil {
		s.logger.Error("failed to record payment session", zap.String("order_id", orderID), zap.Error(err))
	}

	fields := []zap.Field{zap.String("order_id", orderID), zap.Int64("amount_minor", amountMinor)}
	if in.Customer != nil {
		fields = append(fields, zap.String("customer_email", in.Customer.Email))
	}
	s.logger.Info("payment initiated", fields...)

	return &InitiateResult{OrderID: orderID, PaymentURL: paymentURL}, nil
}

// HandleCallback authenticates a webhook and funnels it into the reconciler.
// Verified events that cannot apply (unknown or cod orders) are acknowledged
// with Ignored set so the provider stops redelivering them.
func (s *paymentService) HandleCallback(ctx context.Context, rawBody []byte, signature string) (*CallbackResult, error) {
	event, err := s.gateway.VerifyCallback(rawBody, signature)
	if err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			s.logger.Warn("webhook rejected",
				zap.String("event", "signature_invalid"),
				zap.Int("body_bytes", len(rawBody)),
				zap.Bool("header_present", signature != ""),
			)
		} else {
			s.logger.Warn("webhook malformed", zap.Error(err))
		}
		return nil, err
	}

	res, err := s.reconciler.Apply(ctx, Event{
		OrderID:          event.OrderID,
		Outcome:          event.Outcome,
		GatewayReference: event.GatewayReference,
		Source:           SourceWebhook,
	})
	switch {
	case errors.Is(err, domain.ErrUnknownOrder), errors.Is(err, domain.ErrNotGatewayOrder):
		s.logger.Warn("webhook ignored", zap.String("order_id", event.OrderID), zap.Error(err))
		return &CallbackResult{OrderID: event.OrderID, Outcome: event.Outcome, Ignored: err.Error()}, nil
	case err != nil:
		return nil, err
	}

	return &CallbackResult{
		OrderID:      event.OrderID,
		Outcome:      event.Outcome,
		Status:       res.Current,
		Transitioned: res.Transitioned,
	}, nil
}

// CheckStatus answers a client poll. Settled orders and orders without a
// checkout session are answered from the store; other pending gateway orders
// ask the provider and reconcile what it says.
// A provider failure is domain.ErrGatewayUnavailable, never a failed payment.
func (s *paymentService) CheckStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	order, err := s.orderRepo.Get(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownOrder, orderID)
	}
	if err != nil {
		return "", err
	}
	if order.Status.Terminal() || order.PaymentMethod != domain.PaymentGateway {
		return order.Status, nil
	}

	// No session means the provider never accepted a checkout for this order,
	// so there is nothing to ask it about yet.
	if _, err := s.paymentRepo.FindByOrder(ctx, orderID); errors.Is(err, domain.ErrNotFound) {
		return order.Status, nil
	} else if err != nil {
		return "", err
	}

	status, err := s.gateway.QueryStatus(ctx, orderID)
	if err != nil {
		s.logger.Warn("status query failed", zap.String("order_id", orderID), zap.Error(err))
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if status.Outcome == domain.OutcomePending {
		return domain.OrderPending, nil
	}

	res, err := s.reconciler.Apply(ctx, Event{
		OrderID:          orderID,
		Outcome:          status.Outcome,
		GatewayReference: status.GatewayReference,
		Source:           SourcePoll,
	})
	if err != nil {
		return "", err
	}
	return res.Current, nil
}
