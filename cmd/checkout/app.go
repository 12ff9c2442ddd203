package main

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"checkout-reconciler/internal/config"
	"checkout-reconciler/internal/database"
	"checkout-reconciler/internal/infrastructure/payment"
	"checkout-reconciler/internal/logger"
	"checkout-reconciler/internal/notify"
	"checkout-reconciler/internal/repo"
	"checkout-reconciler/internal/server"
	"checkout-reconciler/internal/service"
	"checkout-reconciler/internal/worker"
)

// application holds everything serve runs, built once from the config.
type application struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         database.Service
	dispatcher *notify.Dispatcher
	queue      notify.Queue
	queueOnce  sync.Once
	worker     *worker.ReconciliationWorker
	handler    *server.RouterConfig
	orders     *server.OrderHandler
	payments   *server.PaymentHandler
}

func loadConfig(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log.With(zap.String("app", cfg.App.Name)), nil
}

func newApplication(ctx context.Context, cfg *config.Config, log *zap.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: log}

	var (
		orderRepo   repo.OrderRepo
		paymentRepo repo.PaymentRepo
	)
	switch cfg.Store {
	case "postgres":
		db, err := database.New(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if err := database.MigrateUp(db.DB()); err != nil {
			_ = db.Close()
			return nil, err
		}
		app.db = db
		orderRepo = repo.NewOrderRepo(db.DB())
		paymentRepo = repo.NewPaymentRepo(db.DB())
	default:
		log.Warn("using in-memory store, orders are lost on restart")
		orderRepo = repo.NewMemoryOrderRepo()
		paymentRepo = repo.NewMemoryPaymentRepo()
	}

	var (
		gateway payment.Gateway
		mock    *payment.MockGateway
	)
	if cfg.Gateway.Mode == "mock" {
		mock = payment.NewMockGateway(cfg.Gateway.WebhookSecret)
		gateway = mock
		log.Warn("using simulated payment gateway")
	} else {
		client, err := payment.NewClient(payment.ClientConfig{
			BaseURL:       cfg.Gateway.BaseURL,
			ClientID:      cfg.Gateway.ClientID,
			ClientSecret:  cfg.Gateway.ClientSecret,
			WebhookSecret: cfg.Gateway.WebhookSecret,
			Timeout:       cfg.Gateway.Timeout,
		}, log)
		if err != nil {
			app.close()
			return nil, err
		}
		gateway = client
	}

	switch cfg.Notify.Queue {
	case "redis":
		q, err := notify.NewRedisQueue(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.QueueKey)
		if err != nil {
			app.close()
			return nil, err
		}
		app.queue = q
	default:
		app.queue = notify.NewMemoryQueue(cfg.Notify.BufferSize)
	}

	var sender notify.Sender = notify.NewLogSender(log)
	if cfg.Notify.SenderURL != "" {
		sender = notify.NewHTTPSender(cfg.Notify.SenderURL, cfg.Notify.SenderTimeout)
	}
	app.dispatcher = notify.NewDispatcher(app.queue, sender, notify.Config{
		Workers:         cfg.Notify.Workers,
		MaxAttempts:     cfg.Notify.MaxAttempts,
		InitialInterval: cfg.Notify.InitialInterval,
	}, log)

	reconciler := service.NewReconciler(orderRepo, paymentRepo, app.dispatcher, log)
	orderService := service.NewOrderService(orderRepo, app.dispatcher, log)
	paymentService := service.NewPaymentService(orderRepo, paymentRepo, gateway, reconciler, service.PaymentURLs{
		RedirectURL: cfg.Gateway.RedirectURL,
		CallbackURL: cfg.Gateway.CallbackURL,
	}, log)

	if cfg.Reconcile.Enabled {
		app.worker = worker.NewReconciliationWorker(orderRepo, paymentRepo, gateway, reconciler, worker.Options{
			Interval:   cfg.Reconcile.Interval,
			StaleAfter: cfg.Reconcile.StaleAfter,
			BatchSize:  cfg.Reconcile.BatchSize,
		}, log)
	}

	app.orders = server.NewOrderHandler(orderService, log)
	app.payments = server.NewPaymentHandler(paymentService, log)
	app.handler = &server.RouterConfig{AllowedOrigins: cfg.Server.AllowedOrigins}
	if app.db != nil {
		app.handler.Health = app.db
	}
	if mock != nil {
		app.handler.Sandbox = server.NewSandboxHandler(mock, paymentService, log)
	}
	return app, nil
}

// closeQueue stops intake; jobs already buffered can still be popped.
func (a *application) closeQueue() {
	if a.queue == nil {
		return
	}
	a.queueOnce.Do(func() {
		if err := a.queue.Close(); err != nil {
			a.logger.Warn("close notification queue", zap.Error(err))
		}
	})
}

func (a *application) close() {
	a.closeQueue()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
}
