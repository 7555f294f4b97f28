package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scry-import/internal/queue"
)

// Common service errors - sentinel errors used across service implementations.
// These errors represent conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in ImportServiceError
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrNothingToExport indicates that no unharvested artifacts are available.
	// API layer should map this to HTTP 409 Conflict.
	ErrNothingToExport = errors.New("no artifacts to export")

	// ErrNoExporters indicates that export was requested but no exporter is configured.
	ErrNoExporters = errors.New("no exporters configured")

	// ErrNoRunYet indicates that no run has finished since the service started.
	ErrNoRunYet = errors.New("no run has finished yet")
)

// passthrough lists the sentinels returned to callers unwrapped.
var passthrough = []error{
	ErrNothingToExport,
	ErrNoExporters,
	ErrNoRunYet,
	queue.ErrRunInProgress,
	queue.ErrNoRunInProgress,
	queue.ErrNotWaiting,
	queue.ErrItemNotFound,
}

// ImportServiceError wraps errors from the import service with context.
type ImportServiceError struct {
	// Operation is the operation that failed (e.g., "submit", "export")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ImportServiceError.
func (e *ImportServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("import service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("import service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ImportServiceError) Unwrap() error {
	return e.Err
}

// NewImportServiceError creates a new ImportServiceError.
// It returns known sentinel errors directly without wrapping.
func NewImportServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range passthrough {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}

	return &ImportServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
