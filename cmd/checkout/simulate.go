package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"checkout-reconciler/internal/domain"
	"checkout-reconciler/internal/infrastructure/payment"
	"checkout-reconciler/internal/logger"
	"checkout-reconciler/internal/notify"
	"checkout-reconciler/internal/repo"
	"checkout-reconciler/internal/service"
	"checkout-reconciler/internal/worker"
)

const simSecret = "sim-webhook-secret"

func simulateCmd() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "run orders through the simulated gateway and show how each gets settled",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "orders", Value: 20, Usage: "number of orders to place"},
			&cli.Float64Flag{Name: "drop-webhooks", Value: 0.2, Usage: "share of webhooks lost in transit"},
			&cli.StringFlag{Name: "log-level", Value: "warn"},
		},
		Action: func(c *cli.Context) error {
			log, err := logger.New(c.String("log-level"), "development")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runSimulation(c.Context, c.Int("orders"), c.Float64("drop-webhooks"), log)
		},
	}
}

func runSimulation(ctx context.Context, n int, dropRate float64, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	orderRepo := repo.NewMemoryOrderRepo()
	paymentRepo := repo.NewMemoryPaymentRepo()
	gateway := payment.NewMockGateway(simSecret, payment.WithLag(50*time.Millisecond))

	queue := notify.NewMemoryQueue(n)
	dispatcher := notify.NewDispatcher(queue, notify.NewLogSender(log), notify.Config{
		Workers:         2,
		MaxAttempts:     3,
		InitialInterval: 50 * time.Millisecond,
	}, log)
	go func() { _ = dispatcher.Run(ctx) }()

	reconciler := service.NewReconciler(orderRepo, paymentRepo, dispatcher, log)
	orderService := service.NewOrderService(orderRepo, dispatcher, log)
	paymentService := service.NewPaymentService(orderRepo, paymentRepo, gateway, reconciler, service.PaymentURLs{
		RedirectURL: "http://localhost:3000/payment-status",
		CallbackURL: "http://localhost:5000/payments/callback",
	}, log)

	fmt.Printf("--- STARTING SIMULATION (%d ORDERS) ---\n", n)
	for i := 0; i < n; i++ {
		order, err := orderService.CreateOrder(ctx, simulatedOrder(i))
		if err != nil {
			fmt.Printf("[%d] create failed: %v\n", i+1, err)
			continue
		}
		if _, err := paymentService.Initiate(ctx, service.InitiateInput{OrderID: order.OrderID}); err != nil {
			fmt.Printf("[%d] initiate failed: %v\n", i+1, err)
			continue
		}

		fate, body, header, err := gateway.Pay(ctx, order.OrderID)
		if err != nil {
			fmt.Printf("[%d] pay failed: %v\n", i+1, err)
			continue
		}

		delivered := body != nil && rand.Float64() >= dropRate
		fmt.Printf("[%d] %s charge=%s webhook=%t ", i+1, order.OrderID, fate, delivered)

		// The webhook and the customer's status poll race for the same order.
		var wg sync.WaitGroup
		if delivered {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := paymentService.HandleCallback(ctx, body, header); err != nil {
					log.Warn("webhook failed", zap.String("order_id", order.OrderID), zap.Error(err))
				}
			}()
		}
		if rand.IntN(2) == 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := paymentService.CheckStatus(ctx, order.OrderID); err != nil {
					log.Warn("poll failed", zap.String("order_id", order.OrderID), zap.Error(err))
				}
			}()
		}
		wg.Wait()

		fresh, err := orderRepo.Get(ctx, order.OrderID)
		if err != nil {
			return err
		}
		fmt.Printf("-> store status: %s\n", fresh.Status)
	}

	fmt.Println("--- RECONCILIATION SWEEP ---")
	sweeper := worker.NewReconciliationWorker(orderRepo, paymentRepo, gateway, reconciler, worker.Options{
		Interval:   time.Second,
		StaleAfter: 0,
		BatchSize:  n,
	}, log)
	report, err := sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("checked=%d settled=%d skipped=%d failures=%d\n", report.Checked, report.Settled, report.Skipped, report.Failures)

	// Let the dispatcher drain before reporting.
	deadline := time.Now().Add(2 * time.Second)
	for queue.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	stale, err := orderRepo.FindStalePending(ctx, time.Now().Add(time.Second), n)
	if err != nil {
		return err
	}
	stats := dispatcher.Stats()
	fmt.Printf("--- DONE: pending=%d confirmations enqueued=%d delivered=%d ---\n", len(stale), stats.Enqueued, stats.Delivered)
	return nil
}

func simulatedOrder(i int) service.CreateOrderInput {
	qty := 1 + rand.IntN(3)
	price := decimal.NewFromInt(int64(200 + rand.IntN(800)))
	subtotal := price.Mul(decimal.NewFromInt(int64(qty)))
	shipping := decimal.NewFromInt(79)
	if subtotal.GreaterThanOrEqual(decimal.NewFromInt(1500)) {
		shipping = decimal.Zero
	}
	amounts := domain.Amounts{Subtotal: subtotal, ShippingCost: shipping}
	amounts.FinalTotal = amounts.ExpectedTotal()

	return service.CreateOrderInput{
		OrderID: service.NewOrderID(time.Now()) + fmt.Sprintf("-%d", i),
		Customer: domain.Customer{
			FullName:    fmt.Sprintf("Customer %d", i+1),
			Email:       fmt.Sprintf("customer%d@example.com", i+1),
			PhoneNumber: "9000000000",
			Address:     "1 Market Street",
			City:        "Pune",
			State:       "MH",
			PostalCode:  "411001",
		},
		Items: []domain.LineItem{{
			Product:  domain.Product{ID: fmt.Sprintf("p-%d", 1+rand.IntN(5)), Name: "Ghee", PricePerWeight: map[string]decimal.Decimal{"500g": price}},
			Weight:   "500g",
			Quantity: qty,
		}},
		Amounts:       amounts,
		PaymentMethod: domain.PaymentGateway,
	}
}
