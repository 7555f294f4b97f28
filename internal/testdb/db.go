//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/phrazzld/scry-import/internal/config"
	"github.com/phrazzld/scry-import/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

// Timeout bounds setup and cleanup queries.
const Timeout = 30 * time.Second

// Open connects to the test database, applies every migration and registers
// cleanup that empties the exercises table and closes the pool. The test is
// skipped when no database is configured.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := DatabaseURL()
	if dbURL == "" {
		t.Skip("no test database configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := postgres.Open(ctx, config.DatabaseConfig{URL: dbURL}, logger)
	require.NoError(t, err, "connect to %s", MaskURL(dbURL))

	require.NoError(t, postgres.Migrate(ctx, db, "up", logger), "apply migrations")
	Reset(t, db)

	t.Cleanup(func() {
		Reset(t, db)
		_ = db.Close()
	})
	return db
}

// Reset removes every stored exercise.
func Reset(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	_, err := db.ExecContext(ctx, "TRUNCATE TABLE exercises")
	require.NoError(t, err, "truncate exercises")
}
