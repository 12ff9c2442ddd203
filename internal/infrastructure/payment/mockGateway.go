package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"checkout-reconciler/internal/domain"
)

// Fate is what the simulated provider decides happens to a checkout.
type Fate int

const (
	// FateCharged: payment succeeds and the webhook is delivered.
	FateCharged Fate = iota
	// FateDeclined: the card is declined and a FAILED webhook is delivered.
	FateDeclined
	// FatePhantom: money is taken but the webhook never arrives. Only a
	// status query can discover the charge.
	FatePhantom
)

func (f Fate) String() string {
	switch f {
	case FateCharged:
		return "charged"
	case FateDeclined:
		return "declined"
	case FatePhantom:
		return "phantom"
	}
	return "unknown"
}

type simSession struct {
	amountMinor     int64
	providerOrderID string
	transactionID   string
	state           string
}

// MockGateway is an in-process stand-in for the provider. It keeps sessions
// in memory, rolls a fate when the customer pays and produces webhooks signed
// with the shared secret.
type MockGateway struct {
	mu       sync.RWMutex
	sessions map[string]*simSession

	secret  string
	baseURL string
	lag     time.Duration
	roll    func() int
}

type MockOption func(*MockGateway)

// WithRoll replaces the 0..99 dice used to pick a fate.
func WithRoll(roll func() int) MockOption {
	return func(g *MockGateway) { g.roll = roll }
}

// WithLag sets how long a phantom charge hangs before the customer gives up.
func WithLag(d time.Duration) MockOption {
	return func(g *MockGateway) { g.lag = d }
}

func WithCheckoutBaseURL(u string) MockOption {
	return func(g *MockGateway) { g.baseURL = strings.TrimRight(u, "/") }
}

func NewMockGateway(webhookSecret string, opts ...MockOption) *MockGateway {
	g := &MockGateway{
		sessions: make(map[string]*simSession),
		secret:   webhookSecret,
		baseURL:  "https://sandbox.pay.local",
		lag:      2 * time.Second,
		roll:     func() int { return rand.IntN(100) },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *MockGateway) Initiate(_ context.Context, req InitiateRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.sessions[req.OrderID]; ok && s.amountMinor != req.AmountMinor {
		return "", fmt.Errorf("%w: order %s already opened with a different amount", domain.ErrGatewayUnavailable, req.OrderID)
	}
	if _, ok := g.sessions[req.OrderID]; !ok {
		g.sessions[req.OrderID] = &simSession{
			amountMinor:     req.AmountMinor,
			providerOrderID: "OMO" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
			state:           "PENDING",
		}
	}
	return g.baseURL + "/checkout/" + req.OrderID, nil
}

// Pay is the customer completing the hosted checkout. It returns the fate and,
// unless the charge went phantom, a signed webhook body and header ready to be
// delivered to the merchant.
func (g *MockGateway) Pay(ctx context.Context, orderID string) (Fate, []byte, string, error) {
	chance := g.roll()

	var fate Fate
	switch {
	case chance < 70:
		fate = FateCharged
	case chance < 90:
		fate = FateDeclined
	default:
		fate = FatePhantom
	}

	if fate == FatePhantom && g.lag > 0 {
		select {
		case <-time.After(g.lag):
		case <-ctx.Done():
		}
	}

	g.mu.Lock()
	s, ok := g.sessions[orderID]
	if !ok {
		g.mu.Unlock()
		return fate, nil, "", fmt.Errorf("%w: no checkout session for %s", domain.ErrUnknownOrder, orderID)
	}
	if s.state == "PENDING" {
		switch fate {
		case FateCharged, FatePhantom:
			s.state = "COMPLETED"
			s.transactionID = "T" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
		case FateDeclined:
			s.state = "FAILED"
		}
	}
	g.mu.Unlock()

	if fate == FatePhantom {
		return fate, nil, "", nil
	}
	body, header, err := g.SignedWebhook(orderID)
	return fate, body, header, err
}

// Cancel is the customer abandoning the checkout page.
func (g *MockGateway) Cancel(orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[orderID]
	if !ok {
		return fmt.Errorf("%w: no checkout session for %s", domain.ErrUnknownOrder, orderID)
	}
	if s.state == "PENDING" {
		s.state = "CANCELLED"
	}
	return nil
}

// SignedWebhook renders the callback the provider would send for the current
// state of orderID, with its Authorization header value.
func (g *MockGateway) SignedWebhook(orderID string) ([]byte, string, error) {
	g.mu.RLock()
	s, ok := g.sessions[orderID]
	if !ok {
		g.mu.RUnlock()
		return nil, "", fmt.Errorf("%w: no checkout session for %s", domain.ErrUnknownOrder, orderID)
	}
	state, providerOrderID, txn := s.state, s.providerOrderID, s.transactionID
	g.mu.RUnlock()

	event := "checkout.order." + strings.ToLower(state)
	body, err := encodeCallback(event, orderID, providerOrderID, state, txn)
	if err != nil {
		return nil, "", fmt.Errorf("encode webhook: %w", err)
	}
	return body, "SHA256 " + Sign(g.secret, body), nil
}

func (g *MockGateway) VerifyCallback(rawBody []byte, signatureHeader string) (*CallbackEvent, error) {
	if err := VerifySignature(g.secret, rawBody, signatureHeader); err != nil {
		return nil, err
	}
	return decodeCallback(rawBody)
}

func (g *MockGateway) QueryStatus(_ context.Context, orderID string) (*StatusResult, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s, ok := g.sessions[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: no checkout session for %s", domain.ErrGatewayUnavailable, orderID)
	}
	outcome, _ := ParseOutcome(s.state)
	ref := s.transactionID
	if ref == "" {
		ref = s.providerOrderID
	}
	return &StatusResult{OrderID: orderID, Outcome: outcome, GatewayReference: ref}, nil
}
