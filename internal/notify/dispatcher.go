package notify

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"checkout-reconciler/internal/domain"
)

type Config struct {
	Workers         int
	MaxAttempts     int
	InitialInterval time.Duration
}

type Stats struct {
	Enqueued  int64
	Delivered int64
	Failed    int64
	Dropped   int64
}

// Dispatcher is fire-and-forget for callers: Notify only enqueues. Run drains
// the queue with its own retry policy, and a failed delivery never reaches
// back into order state.
type Dispatcher struct {
	queue  Queue
	sender Sender
	cfg    Config
	logger *zap.Logger

	closing   *atomic.Bool
	enqueued  *atomic.Int64
	delivered *atomic.Int64
	failed    *atomic.Int64
	dropped   *atomic.Int64
}

func NewDispatcher(queue Queue, sender Sender, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	return &Dispatcher{
		queue:     queue,
		sender:    sender,
		cfg:       cfg,
		logger:    logger,
		closing:   atomic.NewBool(false),
		enqueued:  atomic.NewInt64(0),
		delivered: atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
		dropped:   atomic.NewInt64(0),
	}
}

// Notify enqueues a confirmation for order and returns without waiting for delivery.
func (d *Dispatcher) Notify(ctx context.Context, order *domain.Order) error {
	if d.closing.Load() {
		d.dropped.Inc()
		return ErrQueueClosed
	}

	job := NewConfirmationJob(order)
	if err := d.queue.Push(ctx, job); err != nil {
		d.dropped.Inc()
		return err
	}
	d.enqueued.Inc()
	d.logger.Debug("notification enqueued", zap.String("job_id", job.ID), zap.String("order_id", job.OrderID))
	return nil
}

// Run starts the workers and blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("notification dispatcher started", zap.Int("workers", d.cfg.Workers))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			d.work(ctx, worker)
			return nil
		})
	}
	err := g.Wait()

	d.closing.Store(true)
	d.logger.Info("notification dispatcher stopped",
		zap.Int64("enqueued", d.enqueued.Load()),
		zap.Int64("delivered", d.delivered.Load()),
		zap.Int64("failed", d.failed.Load()),
		zap.Int64("dropped", d.dropped.Load()),
	)
	return err
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	for {
		job, err := d.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			d.logger.Error("failed to pop notification", zap.Int("worker", worker), zap.Error(err))
			select {
			case <-time.After(d.cfg.InitialInterval):
			case <-ctx.Done():
				return
			}
			continue
		}
		d.deliver(ctx, worker, job)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, worker int, job Job) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.cfg.MaxAttempts-1)), ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		return d.sender.Send(ctx, job)
	}, policy, func(err error, wait time.Duration) {
		d.logger.Warn("notification delivery failed, retrying",
			zap.String("job_id", job.ID),
			zap.String("order_id", job.OrderID),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		d.failed.Inc()
		d.logger.Error("notification delivery gave up",
			zap.Int("worker", worker),
			zap.String("job_id", job.ID),
			zap.String("order_id", job.OrderID),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return
	}
	d.delivered.Inc()
	d.logger.Info("notification delivered",
		zap.Int("worker", worker),
		zap.String("order_id", job.OrderID),
		zap.Int("attempts", attempts),
	)
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Enqueued:  d.enqueued.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}
