package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"checkout-reconciler/internal/notify"
	"checkout-reconciler/internal/server"
	"checkout-reconciler/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API, notification dispatcher and reconciliation worker",
		Action: func(c *cli.Context) error {
			cfg, log, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.close()

			srv := &http.Server{
				Addr:              ":" + cfg.Server.Port,
				Handler:           server.NewRouter(app.orders, app.payments, *app.handler, log),
				ReadHeaderTimeout: 10 * time.Second,
			}
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}

			if err := runServer(ctx, srv, ln, app.dispatcher, app.worker, app.closeQueue, log); err != nil {
				log.Error("service stopped with error", zap.Error(err))
				return err
			}
			log.Info("service stopped", zap.Any("notifications", app.dispatcher.Stats()))
			return nil
		},
	}
}

// runServer serves until ctx is done, then drains HTTP first and the
// dispatcher second, so confirmations earned by requests still in flight
// during Shutdown are delivered. closeQueue stops intake once no request can
// enqueue any more.
func runServer(
	ctx context.Context,
	srv *http.Server,
	ln net.Listener,
	dispatcher *notify.Dispatcher,
	sweeper *worker.ReconciliationWorker,
	closeQueue func(),
	log *zap.Logger,
) error {
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})
	if sweeper != nil {
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// Buffered jobs are still handed out after close; the timer bounds a
		// sender that keeps failing.
		closeQueue()
		time.AfterFunc(shutdownTimeout, stopDispatch)
		return err
	})

	return g.Wait()
}
