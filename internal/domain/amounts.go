package domain

import "github.com/shopspring/decimal"

// MinorUnitPlaces is the number of decimal places of the settlement currency.
const MinorUnitPlaces = 2

var (
	hundred   = decimal.NewFromInt(100)
	tolerance = decimal.New(1, -MinorUnitPlaces)
)

type Amounts struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Taxes          decimal.Decimal
	ShippingCost   decimal.Decimal
	AdditionalFees decimal.Decimal
	FinalTotal     decimal.Decimal
}

// ExpectedTotal applies the pricing policy:
// (subtotal - discount) + taxes + shipping + additional fees, rounded to the minor unit.
func (a Amounts) ExpectedTotal() decimal.Decimal {
	return a.Subtotal.
		Sub(a.DiscountAmount).
		Add(a.Taxes).
		Add(a.ShippingCost).
		Add(a.AdditionalFees).
		Round(MinorUnitPlaces)
}

// Validate checks that every component is non-negative and that FinalTotal
// matches the policy within one minor unit.
func (a Amounts) Validate() error {
	parts := []struct {
		field string
		value decimal.Decimal
	}{
		{"orderDetails.subtotal", a.Subtotal},
		{"orderDetails.discountAmount", a.DiscountAmount},
		{"orderDetails.taxes", a.Taxes},
		{"orderDetails.shippingCost", a.ShippingCost},
		{"orderDetails.additionalFees", a.AdditionalFees},
		{"totalAmount", a.FinalTotal},
	}

	verr := &ValidationError{}
	for _, p := range parts {
		if p.value.IsNegative() {
			verr.Add(p.field, "must not be negative")
		}
	}
	if a.DiscountAmount.GreaterThan(a.Subtotal) {
		verr.Add("orderDetails.discountAmount", "must not exceed subtotal")
	}
	if verr.HasErrors() {
		return verr
	}

	if a.FinalTotal.Sub(a.ExpectedTotal()).Abs().GreaterThanOrEqual(tolerance) {
		verr.Add("totalAmount", "does not match "+a.ExpectedTotal().StringFixed(MinorUnitPlaces))
		return verr
	}
	return nil
}

// MinorUnits converts FinalTotal into the integer amount the gateway accepts.
func (a Amounts) MinorUnits() int64 {
	return ToMinorUnits(a.FinalTotal)
}

func ToMinorUnits(v decimal.Decimal) int64 {
	return v.Round(MinorUnitPlaces).Mul(hundred).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitPlaces)
}
