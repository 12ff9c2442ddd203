package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderPaid, OrderFailed, OrderCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool {
	return s == OrderPending || s.Terminal()
}

type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "cod"
	PaymentGateway PaymentMethod = "gateway"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentGateway
}

type Customer struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
}

type Product struct {
	ID             string                     `json:"id"`
	Name           string                     `json:"name"`
	Image          string                     `json:"image,omitempty"`
	PricePerWeight map[string]decimal.Decimal `json:"pricePerWeight,omitempty"`
}

// LineItem is one cart line. Weight is the unit selector used to look up the
// price in Product.PricePerWeight.
type LineItem struct {
	Product  Product `json:"product"`
	Weight   string  `json:"weight"`
	Quantity int     `json:"quantity"`
}

type Coupon struct {
	Code            string          `json:"code"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

type Order struct {
	OrderID          string
	InternalID       uuid.UUID
	Customer         Customer
	Items            []LineItem
	Amounts          Amounts
	PaymentMethod    PaymentMethod
	PaymentReference *string
	Coupon           *Coupon
	Status           OrderStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// StatusChange is what a conditional status update observed. Applied is true
// only for the caller that moved the order out of pending.
type StatusChange struct {
	Previous OrderStatus
	Current  OrderStatus
	Applied  bool
}
