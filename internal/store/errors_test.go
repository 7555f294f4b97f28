package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *OpError
		want string
	}{
		{"full", NewOpError("artifact", "save", "upsert failed", ErrInvalidEntity), "store artifact save: upsert failed: invalid entity"},
		{"no detail", NewOpError("artifact", "list", "", ErrUnavailable), "store artifact list: store unavailable"},
		{"no cause", NewOpError("artifact", "list", "empty result", nil), "store artifact list: empty result"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestOpErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("export: %w", NewOpError("artifact", "save", "", ErrDuplicate))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NotErrorIs(t, err, ErrNotFound)

	var opErr *OpError
	assert.True(t, errors.As(err, &opErr))
	assert.Equal(t, "save", opErr.Op)
	assert.Nil(t, NewOpError("artifact", "list", "x", nil).Unwrap())
}
