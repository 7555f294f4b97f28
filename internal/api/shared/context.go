package shared

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type traceIDKey struct{}

// SetTraceID returns ctx carrying a fresh 32-character hex trace ID.
func SetTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, newTraceID())
}

// WithTraceID returns ctx carrying id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// GetTraceID returns the trace ID stored in ctx, or "".
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

func newTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
