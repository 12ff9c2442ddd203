package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"checkout-reconciler/internal/logger"
	"checkout-reconciler/internal/poller"
)

func pollCmd() *cli.Command {
	return &cli.Command{
		Name:      "poll",
		Usage:     "poll an order's payment status the way the payment page does",
		ArgsUsage: "<orderId>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-url", Value: "http://localhost:5000", Usage: "checkout API base URL"},
			&cli.DurationFlag{Name: "interval", Value: poller.DefaultInterval},
			&cli.IntFlag{Name: "max-attempts", Value: poller.DefaultMaxAttempts},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "per-request timeout"},
		},
		Action: func(c *cli.Context) error {
			orderID := c.Args().First()
			if orderID == "" {
				return cli.Exit("orderId is required", 2)
			}
			log, err := logger.New("info", "development")
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			p := poller.NewPoller(
				poller.NewStatusClient(c.String("base-url"), c.Duration("timeout")),
				poller.Options{Interval: c.Duration("interval"), MaxAttempts: c.Int("max-attempts")},
				log,
			)
			res, err := p.Poll(c.Context, orderID)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", res, res.Message())
			return nil
		},
	}
}
