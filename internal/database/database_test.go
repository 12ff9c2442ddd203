package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checkout-reconciler/internal/database"
	"checkout-reconciler/internal/database/dbtest"
)

func TestMigrations_UpDownUp(t *testing.T) {
	db := dbtest.NewPostgres(t)

	require.NoError(t, database.MigrateUp(db), "second up is a no-op")
	require.NoError(t, database.MigrateDown(db))

	var exists bool
	require.NoError(t, db.QueryRow(`SELECT to_regclass('public.orders') IS NOT NULL`).Scan(&exists))
	assert.False(t, exists)

	require.NoError(t, database.MigrateUp(db))
	require.NoError(t, db.QueryRow(`SELECT to_regclass('public.orders') IS NOT NULL`).Scan(&exists))
	assert.True(t, exists)
}

func TestHealth(t *testing.T) {
	db := dbtest.NewPostgres(t)
	svc := database.Wrap(db, zap.NewNop())

	stats := svc.Health(context.Background())
	assert.Equal(t, "up", stats["status"])
	assert.Contains(t, stats, "open_connections")

	require.NoError(t, svc.Close())
	stats = svc.Health(context.Background())
	assert.Equal(t, "down", stats["status"])
}
