package server

import (
	"strings"

	"github.com/shopspring/decimal"

	"checkout-reconciler/internal/domain"
	"checkout-reconciler/internal/service"
)

const couponHeader = "X-Applied-Coupon"

type customerRequest struct {
	FullName    string `json:"fullName" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	Address     string `json:"address" binding:"required"`
	City        string `json:"city" binding:"required"`
	State       string `json:"state" binding:"required"`
	PostalCode  string `json:"postalCode" binding:"required"`
}

func (r customerRequest) toDomain() domain.Customer {
	return domain.Customer(r)
}

type productRequest struct {
	ID             string                     `json:"id" binding:"required"`
	Name           string                     `json:"name" binding:"required"`
	Image          string                     `json:"image"`
	PricePerWeight map[string]decimal.Decimal `json:"pricePerWeight"`
}

type itemRequest struct {
	Product  productRequest `json:"product"`
	Weight   string         `json:"weight"`
	Quantity int            `json:"quantity" binding:"required,min=1"`
}

type orderDetailsRequest struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Taxes          decimal.Decimal `json:"taxes"`
	ShippingCost   decimal.Decimal `json:"shippingCost"`
	AdditionalFees decimal.Decimal `json:"additionalFees"`
}

type couponRequest struct {
	Code            string          `json:"code" binding:"required"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

type createOrderRequest struct {
	OrderID       string              `json:"orderId" binding:"required"`
	CustomerInfo  customerRequest     `json:"customerInfo"`
	OrderedItems  []itemRequest       `json:"orderedItems" binding:"required,min=1,dive"`
	OrderDetails  orderDetailsRequest `json:"orderDetails"`
	TotalAmount   *decimal.Decimal    `json:"totalAmount" binding:"required"`
	PaymentMethod string              `json:"paymentMethod" binding:"required,oneof=cod gateway"`
	PaymentID     *string             `json:"paymentId"`
	AppliedCoupon *couponRequest      `json:"appliedCoupon"`
}

// toInput merges the coupon header with the optional body coupon. The header
// code wins when both are present.
func (r createOrderRequest) toInput(headerCoupon string) service.CreateOrderInput {
	items := make([]domain.LineItem, 0, len(r.OrderedItems))
	for _, it := range r.OrderedItems {
		items = append(items, domain.LineItem{
			Product: domain.Product{
				ID:             it.Product.ID,
				Name:           it.Product.Name,
				Image:          it.Product.Image,
				PricePerWeight: it.Product.PricePerWeight,
			},
			Weight:   it.Weight,
			Quantity: it.Quantity,
		})
	}

	var coupon *domain.Coupon
	if r.AppliedCoupon != nil {
		coupon = &domain.Coupon{Code: r.AppliedCoupon.Code, DiscountPercent: r.AppliedCoupon.DiscountPercent}
	}
	if code := strings.TrimSpace(headerCoupon); code != "" {
		if coupon == nil {
			coupon = &domain.Coupon{}
		}
		coupon.Code = code
	}

	var paymentRef *string
	if r.PaymentID != nil && strings.TrimSpace(*r.PaymentID) != "" {
		paymentRef = r.PaymentID
	}

	return service.CreateOrderInput{
		OrderID:  r.OrderID,
		Customer: r.CustomerInfo.toDomain(),
		Items:    items,
		Amounts: domain.Amounts{
			Subtotal:       r.OrderDetails.Subtotal,
			DiscountAmount: r.OrderDetails.DiscountAmount,
			Taxes:          r.OrderDetails.Taxes,
			ShippingCost:   r.OrderDetails.ShippingCost,
			AdditionalFees: r.OrderDetails.AdditionalFees,
			FinalTotal:     *r.TotalAmount,
		},
		PaymentMethod:    domain.PaymentMethod(r.PaymentMethod),
		PaymentReference: paymentRef,
		Coupon:           coupon,
	}
}

type initiatePaymentRequest struct {
	OrderID  string           `json:"orderId"`
	Amount   decimal.Decimal  `json:"amount"`
	Customer *domain.Customer `json:"customer"`
}

type createOrderResponse struct {
	Message string `json:"message"`
	OrderID string `json:"orderId"`
	StoreID string `json:"storeId"`
}

type initiatePaymentResponse struct {
	PaymentURL string `json:"paymentUrl"`
	OrderID    string `json:"orderId"`
}

type statusResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type orderResponse struct {
	OrderID          string               `json:"orderId"`
	StoreID          string               `json:"storeId"`
	Status           domain.OrderStatus   `json:"status"`
	PaymentMethod    domain.PaymentMethod `json:"paymentMethod"`
	PaymentReference *string              `json:"paymentReference,omitempty"`
	CustomerInfo     domain.Customer      `json:"customerInfo"`
	OrderedItems     []domain.LineItem    `json:"orderedItems"`
	OrderDetails     orderDetailsRequest  `json:"orderDetails"`
	TotalAmount      decimal.Decimal      `json:"totalAmount"`
	AppliedCoupon    *domain.Coupon       `json:"appliedCoupon,omitempty"`
	CreatedAt        string               `json:"createdAt"`
	UpdatedAt        string               `json:"updatedAt"`
}

func newOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		OrderID:          o.OrderID,
		StoreID:          o.InternalID.String(),
		Status:           o.Status,
		PaymentMethod:    o.PaymentMethod,
		PaymentReference: o.PaymentReference,
		CustomerInfo:     o.Customer,
		OrderedItems:     o.Items,
		OrderDetails: orderDetailsRequest{
			Subtotal:       o.Amounts.Subtotal,
			DiscountAmount: o.Amounts.DiscountAmount,
			Taxes:          o.Amounts.Taxes,
			ShippingCost:   o.Amounts.ShippingCost,
			AdditionalFees: o.Amounts.AdditionalFees,
		},
		TotalAmount:   o.Amounts.FinalTotal,
		AppliedCoupon: o.Coupon,
		CreatedAt:     o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:     o.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
