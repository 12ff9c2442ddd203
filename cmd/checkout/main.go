package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var Version = "dev"

func main() {
	app := &cli.App{
		Name:    "checkout",
		Usage:   "order lifecycle and payment reconciliation service",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"CHECKOUT_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			simulateCmd(),
			pollCmd(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
