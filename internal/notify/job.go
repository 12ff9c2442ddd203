package notify

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"checkout-reconciler/internal/domain"
)

const KindOrderConfirmation = "order_confirmation"

// Job is one queued notification. It is self-contained so a consumer in
// another process can deliver it without reading the order store.
type Job struct {
	ID         string       `json:"id"`
	Kind       string       `json:"kind"`
	OrderID    string       `json:"orderId"`
	Payload    Confirmation `json:"payload"`
	EnqueuedAt time.Time    `json:"enqueuedAt"`
}

type OrderDetails struct {
	Items          []domain.LineItem `json:"items"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	DiscountAmount decimal.Decimal   `json:"discountAmount"`
	Taxes          decimal.Decimal   `json:"taxes"`
	ShippingCost   decimal.Decimal   `json:"shippingCost"`
	AdditionalFees decimal.Decimal   `json:"additionalFees"`
	FinalTotal     decimal.Decimal   `json:"finalTotal"`
}

// Confirmation is the body handed to the mailer: the customer fields at the
// top level next to the order summary.
type Confirmation struct {
	domain.Customer
	PaymentMethod    domain.PaymentMethod `json:"paymentMethod"`
	PaymentReference string               `json:"paymentReference,omitempty"`
	CouponCode       string               `json:"couponCode,omitempty"`
	OrderDetails     OrderDetails         `json:"orderDetails"`
	OrderID          string               `json:"orderId"`
}

func NewConfirmationJob(order *domain.Order) Job {
	c := Confirmation{
		Customer:      order.Customer,
		PaymentMethod: order.PaymentMethod,
		OrderDetails: OrderDetails{
			Items:          order.Items,
			Subtotal:       order.Amounts.Subtotal,
			DiscountAmount: order.Amounts.DiscountAmount,
			Taxes:          order.Amounts.Taxes,
			ShippingCost:   order.Amounts.ShippingCost,
			AdditionalFees: order.Amounts.AdditionalFees,
			FinalTotal:     order.Amounts.FinalTotal,
		},
		OrderID: order.OrderID,
	}
	if order.PaymentReference != nil {
		c.PaymentReference = *order.PaymentReference
	}
	if order.Coupon != nil {
		c.CouponCode = order.Coupon.Code
	}

	return Job{
		ID:         uuid.NewString(),
		Kind:       KindOrderConfirmation,
		OrderID:    order.OrderID,
		Payload:    c,
		EnqueuedAt: time.Now().UTC(),
	}
}
