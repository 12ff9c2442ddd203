package main

import (
	"database/sql"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"checkout-reconciler/internal/config"
	"checkout-reconciler/internal/database"
	"checkout-reconciler/internal/logger"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply or roll back the database schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: func(c *cli.Context) error {
					return withDatabase(c, "up", database.MigrateUp)
				},
			},
			{
				Name:  "down",
				Usage: "roll back all migrations",
				Action: func(c *cli.Context) error {
					return withDatabase(c, "down", database.MigrateDown)
				},
			},
		},
	}
}

// withDatabase skips full config validation: migrations only need the
// database section.
func withDatabase(c *cli.Context, direction string, run func(*sql.DB) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := database.New(c.Context, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := run(db.DB()); err != nil {
		return err
	}
	log.Info("migrations applied", zap.String("direction", direction), zap.String("database", cfg.Database.Database))
	return nil
}
