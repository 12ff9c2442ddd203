package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"checkout-reconciler/internal/domain"
	"checkout-reconciler/internal/repo"
)

var hundredPercent = decimal.NewFromInt(100)

type CreateOrderInput struct {
	OrderID          string
	Customer         domain.Customer
	Items            []domain.LineItem
	Amounts          domain.Amounts
	PaymentMethod    domain.PaymentMethod
	PaymentReference *string
	Coupon           *domain.Coupon
}

type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

type orderService struct {
	orderRepo repo.OrderRepo
	notifier  Notifier
	logger    *zap.Logger
}

func NewOrderService(
	orderRepo repo.OrderRepo,
	notifier Notifier,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		notifier:  notifier,
		logger:    logger,
	}
}

func validateOrder(in CreateOrderInput) error {
	verr := &domain.ValidationError{}

	if strings.TrimSpace(in.OrderID) == "" {
		verr.Add("orderId", "is required")
	}
	if !in.PaymentMethod.Valid() {
		verr.Add("paymentMethod", "must be cod or gateway")
	}
	if len(in.Items) == 0 {
		verr.Add("orderedItems", "must not be empty")
	}
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			verr.Add(fmt.Sprintf("orderedItems[%d].quantity", i), "must be positive")
		}
		if item.Product.ID == "" {
			verr.Add(fmt.Sprintf("orderedItems[%d].product.id", i), "is required")
		}
	}
	if in.Coupon != nil && (in.Coupon.DiscountPercent.IsNegative() || in.Coupon.DiscountPercent.GreaterThan(hundredPercent)) {
		verr.Add("appliedCoupon.discountPercent", "must be between 0 and 100")
	}

	if err := in.Amounts.Validate(); err != nil {
		var amountErr *domain.ValidationError
		if !errors.As(err, &amountErr) {
			return err
		}
		verr.Fields = append(verr.Fields, amountErr.Fields...)
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// CreateOrder validates and stores the order as pending. Cash-on-delivery
// orders are confirmed to the customer right away; gateway orders wait for a
// paid outcome.
func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if err := validateOrder(in); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.Create(ctx, &domain.Order{
		OrderID:          strings.TrimSpace(in.OrderID),
		Customer:         in.Customer,
		Items:            in.Items,
		Amounts:          in.Amounts,
		PaymentMethod:    in.PaymentMethod,
		PaymentReference: in.PaymentReference,
		Coupon:           in.Coupon,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.OrderID),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.String("total", order.Amounts.FinalTotal.StringFixed(domain.MinorUnitPlaces)),
	)

	if order.PaymentMethod == domain.PaymentCOD {
		if err := s.notifier.Notify(ctx, order); err != nil {
			s.logger.Error("failed to enqueue confirmation", zap.String("order_id", order.OrderID), zap.Error(err))
		}
	}
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orderRepo.Get(ctx, orderID)
}
