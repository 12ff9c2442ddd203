package domain

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the canonical payment result reported by the gateway, either in a
// webhook or in a status query.
type Outcome string

const (
	OutcomeSuccess   Outcome = "SUCCESS"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeCancelled Outcome = "CANCELLED"
	OutcomePending   Outcome = "PENDING"
)

// TargetStatus maps an outcome onto the order state machine. PENDING has no
// target and reports false.
func (o Outcome) TargetStatus() (OrderStatus, bool) {
	switch o {
	case OutcomeSuccess:
		return OrderPaid, true
	case OutcomeFailed:
		return OrderFailed, true
	case OutcomeCancelled:
		return OrderCancelled, true
	}
	return "", false
}

type SessionStatus string

const (
	SessionInitiated SessionStatus = "INITIATED"
	SessionSettled   SessionStatus = "SETTLED"
)

// PaymentSession records one gateway checkout session opened for an order.
type PaymentSession struct {
	ID          uuid.UUID
	OrderID     string
	AmountMinor int64
	PaymentURL  string
	Status      SessionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
