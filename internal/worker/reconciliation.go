package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"checkout-reconciler/internal/domain"
	"checkout-reconciler/internal/infrastructure/payment"
	"checkout-reconciler/internal/repo"
	"checkout-reconciler/internal/service"
)

type Options struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// ReconciliationWorker sweeps gateway orders stuck in pending, asks the
// provider what really happened and feeds the answer to the reconciler.
// It covers webhooks that never arrived for customers who never polled.
type ReconciliationWorker struct {
	orderRepo   repo.OrderRepo
	paymentRepo repo.PaymentRepo
	gateway     payment.Gateway
	reconciler  service.Reconciler
	opts        Options
	logger      *zap.Logger
	now         func() time.Time
}

func NewReconciliationWorker(
	orderRepo repo.OrderRepo,
	paymentRepo repo.PaymentRepo,
	gateway payment.Gateway,
	reconciler service.Reconciler,
	opts Options,
	logger *zap.Logger,
) *ReconciliationWorker {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	return &ReconciliationWorker{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		gateway:     gateway,
		reconciler:  reconciler,
		opts:        opts,
		logger:      logger,
		now:         time.Now,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(rw.opts.Interval)
	defer ticker.Stop()

	rw.logger.Info("reconciliation worker started",
		zap.Duration("interval", rw.opts.Interval),
		zap.Duration("stale_after", rw.opts.StaleAfter),
	)

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("reconciliation worker stopped")
			return nil
		case <-ticker.C:
			if _, err := rw.Sweep(ctx); err != nil {
				rw.logger.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

type SweepReport struct {
	Checked  int
	Settled  int
	Skipped  int
	Failures int
}

// Sweep runs one pass. A provider error on one order skips it until the next
// pass; only a failure to list candidates aborts. Orders looked at but left
// pending are marked checked so the next pass reaches the ones behind them.
func (rw *ReconciliationWorker) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	now := rw.now()
	stale, err := rw.orderRepo.FindStalePending(ctx, now.Add(-rw.opts.StaleAfter), rw.opts.BatchSize)
	if err != nil {
		return report, err
	}
	if len(stale) == 0 {
		return report, nil
	}

	rw.logger.Info("found stale pending orders", zap.Int("count", len(stale)))

	for _, order := range stale {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++
		log := rw.logger.With(zap.String("order_id", order.OrderID))

		if rw.check(ctx, order.OrderID, &report, log) {
			continue
		}
		if err := rw.orderRepo.MarkChecked(ctx, order.OrderID, now); err != nil {
			log.Error("failed to mark order checked", zap.Error(err))
		}
	}
	return report, nil
}

// check asks the provider about one order and reports whether it settled.
func (rw *ReconciliationWorker) check(ctx context.Context, orderID string, report *SweepReport, log *zap.Logger) bool {
	if _, err := rw.paymentRepo.FindByOrder(ctx, orderID); errors.Is(err, domain.ErrNotFound) {
		log.Debug("no payment session opened, skipping")
		report.Skipped++
		return false
	} else if err != nil {
		log.Error("failed to load payment session", zap.Error(err))
		report.Failures++
		return false
	}

	status, err := rw.gateway.QueryStatus(ctx, orderID)
	if err != nil {
		log.Warn("failed to check status, retrying next sweep", zap.Error(err))
		report.Failures++
		return false
	}
	if status.Outcome == domain.OutcomePending {
		report.Skipped++
		return false
	}

	res, err := rw.reconciler.Apply(ctx, service.Event{
		OrderID:          orderID,
		Outcome:          status.Outcome,
		GatewayReference: status.GatewayReference,
		Source:           service.SourceSweep,
	})
	if err != nil {
		log.Error("failed to reconcile order", zap.Error(err))
		report.Failures++
		return false
	}
	if res.Transitioned {
		report.Settled++
		log.Info("stale order settled", zap.String("status", string(res.Current)))
	}
	return res.Current.Terminal()
}
