package poller

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"checkout-reconciler/internal/domain"
)

const (
	DefaultInterval    = 3 * time.Second
	DefaultMaxAttempts = 10
)

// Result is what the customer-facing page shows once polling stops.
type Result string

const (
	ResultPaid         Result = "paid"
	ResultFailed       Result = "failed"
	ResultCancelled    Result = "cancelled"
	ResultStillPending Result = "still_pending"
	ResultUnavailable  Result = "unavailable"
)

// Message is the text shown to the customer for r.
func (r Result) Message() string {
	switch r {
	case ResultPaid:
		return "Payment successful. Your order is confirmed."
	case ResultFailed:
		return "Payment failed. You have not been charged."
	case ResultCancelled:
		return "Payment was cancelled."
	case ResultUnavailable:
		return "We are unable to verify your payment right now. Please check again shortly."
	default:
		return "Your payment is still being processed."
	}
}

// StatusFetcher returns the current order status as reported by the backend.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, orderID string) (domain.OrderStatus, error)
}

type Options struct {
	Interval    time.Duration
	MaxAttempts int
}

type Poller struct {
	fetcher StatusFetcher
	opts    Options
	logger  *zap.Logger
}

func NewPoller(fetcher StatusFetcher, opts Options, logger *zap.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Poller{fetcher: fetcher, opts: opts, logger: logger}
}

var errStillPending = errors.New("still pending")

// Poll asks for the order status at a fixed interval until it is terminal or
// the attempts run out. Exhaustion is not an error: the result tells whether
// the last attempt saw pending or could not reach the backend.
func (p *Poller) Poll(ctx context.Context, orderID string) (Result, error) {
	var (
		attempts int
		lastErr  error
		status   domain.OrderStatus
	)

	op := func() error {
		attempts++
		s, err := p.fetcher.FetchStatus(ctx, orderID)
		if err != nil {
			lastErr = err
			if errors.Is(err, domain.ErrUnknownOrder) {
				return backoff.Permanent(err)
			}
			return err
		}
		lastErr = nil
		status = s
		if !s.Terminal() {
			return errStillPending
		}
		return nil
	}

	notify := func(err error, next time.Duration) {
		p.logger.Debug("payment still unresolved",
			zap.String("order_id", orderID),
			zap.Int("attempt", attempts),
			zap.Duration("next", next),
			zap.Error(err),
		)
	}

	// MaxAttempts counts calls, WithMaxRetries counts retries after the first.
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.opts.Interval), uint64(p.opts.MaxAttempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(op, b, notify)

	switch {
	case err == nil:
		return resultFor(status), nil
	case errors.Is(err, domain.ErrUnknownOrder):
		return "", err
	case ctx.Err() != nil:
		return "", ctx.Err()
	case lastErr != nil:
		p.logger.Warn("payment verification unavailable",
			zap.String("order_id", orderID),
			zap.Int("attempts", attempts),
			zap.Error(lastErr),
		)
		return ResultUnavailable, nil
	default:
		return ResultStillPending, nil
	}
}

func resultFor(s domain.OrderStatus) Result {
	switch s {
	case domain.OrderPaid:
		return ResultPaid
	case domain.OrderFailed:
		return ResultFailed
	case domain.OrderCancelled:
		return ResultCancelled
	}
	return ResultStillPending
}
