package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-import/internal/store"
)

const uniqueViolation = "23505"

// constraintErrors maps PostgreSQL SQLSTATE codes onto store sentinels.
var constraintErrors = map[string]error{
	uniqueViolation: store.ErrDuplicate,
	"23514":         store.ErrInvalidEntity, // check_violation
	"23502":         store.ErrInvalidEntity, // not_null_violation
	"22001":         store.ErrInvalidEntity, // string_data_right_truncation
}

// MapError translates driver errors into store sentinels, keeping the
// original error text. Unknown errors are returned unchanged.
func MapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if sentinel, ok := constraintErrors[pgErr.Code]; ok {
			return fmt.Errorf("%w: %s: %v", sentinel, constraintName(pgErr), err)
		}
		// Class 08 is connection_exception.
		if strings.HasPrefix(pgErr.Code, "08") {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}

func constraintName(e *pgconn.PgError) string {
	if e.ConstraintName != "" {
		return e.ConstraintName
	}
	return e.ColumnName
}

// IsUniqueViolation reports whether err carries a unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
