package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"checkout-reconciler/internal/domain"
)

// Gateway is the boundary to the hosted-checkout provider. One instance is
// built at startup and shared by every request.
type Gateway interface {
	// Initiate opens a checkout session for the order and returns the URL the
	// customer is redirected to. The merchant reference is the order id.
	Initiate(ctx context.Context, req InitiateRequest) (string, error)
	// VerifyCallback authenticates a webhook against the exact raw body and
	// decodes it. Nothing in the body is trusted before the signature passes.
	VerifyCallback(rawBody []byte, signatureHeader string) (*CallbackEvent, error)
	// QueryStatus asks the provider for the current outcome of an order.
	QueryStatus(ctx context.Context, orderID string) (*StatusResult, error)
}

type InitiateRequest struct {
	OrderID     string
	AmountMinor int64
	RedirectURL string
	CallbackURL string
}

func (r InitiateRequest) validate() error {
	if r.AmountMinor <= 0 {
		return domain.ErrInvalidAmount
	}
	if r.OrderID == "" {
		return fmt.Errorf("%w: order id is required", domain.ErrMalformedPayload)
	}
	if r.RedirectURL == "" || r.CallbackURL == "" {
		return fmt.Errorf("%w: redirect and callback urls are required", domain.ErrConfig)
	}
	return nil
}

type CallbackEvent struct {
	Event            string
	OrderID          string
	Outcome          domain.Outcome
	GatewayReference string
}

type StatusResult struct {
	OrderID          string
	Outcome          domain.Outcome
	GatewayReference string
}

// providerStates is the single translation table from provider state strings
// to canonical outcomes.
var providerStates = map[string]domain.Outcome{
	"COMPLETED":         domain.OutcomeSuccess,
	"SUCCESS":           domain.OutcomeSuccess,
	"PAYMENT_SUCCESS":   domain.OutcomeSuccess,
	"FAILED":            domain.OutcomeFailed,
	"PAYMENT_ERROR":     domain.OutcomeFailed,
	"CANCELLED":         domain.OutcomeCancelled,
	"CANCELED":          domain.OutcomeCancelled,
	"PAYMENT_CANCELLED": domain.OutcomeCancelled,
	"PENDING":           domain.OutcomePending,
	"PAYMENT_PENDING":   domain.OutcomePending,
}

// ParseOutcome maps a provider state onto an Outcome. Unknown states report false.
func ParseOutcome(state string) (domain.Outcome, bool) {
	o, ok := providerStates[strings.ToUpper(strings.TrimSpace(state))]
	return o, ok
}

type paymentDetail struct {
	TransactionID string `json:"transactionId"`
	State         string `json:"state,omitempty"`
}

type callbackBody struct {
	Event   string `json:"event"`
	Payload struct {
		MerchantOrderID string          `json:"merchantOrderId"`
		OrderID         string          `json:"orderId"`
		State           string          `json:"state"`
		PaymentDetails  []paymentDetail `json:"paymentDetails"`
	} `json:"payload"`
}

// reference prefers the provider transaction id and falls back to the
// provider's own order id.
func reference(details []paymentDetail, providerOrderID string) string {
	for _, d := range details {
		if d.TransactionID != "" {
			return d.TransactionID
		}
	}
	return providerOrderID
}

func decodeCallback(raw []byte) (*CallbackEvent, error) {
	var body callbackBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	p := body.Payload
	if p.MerchantOrderID == "" || p.State == "" {
		return nil, fmt.Errorf("%w: merchantOrderId and state are required", domain.ErrMalformedPayload)
	}
	outcome, ok := ParseOutcome(p.State)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognised state %q", domain.ErrMalformedPayload, p.State)
	}
	return &CallbackEvent{
		Event:            body.Event,
		OrderID:          p.MerchantOrderID,
		Outcome:          outcome,
		GatewayReference: reference(p.PaymentDetails, p.OrderID),
	}, nil
}

func encodeCallback(event, orderID, providerOrderID, state, transactionID string) ([]byte, error) {
	var body callbackBody
	body.Event = event
	body.Payload.MerchantOrderID = orderID
	body.Payload.OrderID = providerOrderID
	body.Payload.State = state
	if transactionID != "" {
		body.Payload.PaymentDetails = []paymentDetail{{TransactionID: transactionID, State: state}}
	}
	return json.Marshal(body)
}
