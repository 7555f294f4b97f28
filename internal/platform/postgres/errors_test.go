package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-import/internal/platform/postgres"
	"github.com/phrazzld/scry-import/internal/store"
	"github.com/stretchr/testify/assert"
)

func pgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "boom",
		TableName:      "exercises",
		ColumnName:     "title",
		ConstraintName: "exercises_title_check",
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		wantIs error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), store.ErrUnavailable},
		{"unique violation", pgError("23505"), store.ErrDuplicate},
		{"check violation", pgError("23514"), store.ErrInvalidEntity},
		{"not null violation", pgError("23502"), store.ErrInvalidEntity},
		{"too long", pgError("22001"), store.ErrInvalidEntity},
		{"connection failure", pgError("08006"), store.ErrUnavailable},
		{"wrapped unique violation", fmt.Errorf("exec: %w", pgError("23505")), store.ErrDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := postgres.MapError(tt.err)
			assert.ErrorIs(t, got, tt.wantIs)
		})
	}

	t.Run("constraint name is kept", func(t *testing.T) {
		assert.Contains(t, postgres.MapError(pgError("23514")).Error(), "exercises_title_check")
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, postgres.MapError(nil))
	})

	t.Run("unknown errors pass through", func(t *testing.T) {
		orig := errors.New("connection reset")
		assert.Same(t, orig, postgres.MapError(orig))

		undefinedTable := pgError("42P01")
		assert.Equal(t, error(undefinedTable), postgres.MapError(undefinedTable))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, postgres.IsUniqueViolation(pgError("23505")))
	assert.True(t, postgres.IsUniqueViolation(fmt.Errorf("wrap: %w", pgError("23505"))))
	assert.False(t, postgres.IsUniqueViolation(pgError("23514")))
	assert.False(t, postgres.IsUniqueViolation(nil))
}
