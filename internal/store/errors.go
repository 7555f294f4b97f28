package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a write collides with a unique key.
	ErrDuplicate = errors.New("record already exists")

	// ErrInvalidEntity is returned when a record is rejected before or during
	// a write because its fields are invalid.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a transaction cannot begin or commit.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrUnavailable is returned when the backing database cannot be reached.
	ErrUnavailable = errors.New("store unavailable")
)

// OpError records which store operation failed and on what.
type OpError struct {
	Entity string
	Op     string
	Detail string
	Err    error
}

func (e *OpError) Error() string {
	msg := fmt.Sprintf("store %s %s", e.Entity, e.Op)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OpError) Unwrap() error { return e.Err }

// NewOpError wraps err with the entity and operation that produced it.
func NewOpError(entity, op, detail string, err error) *OpError {
	return &OpError{Entity: entity, Op: op, Detail: detail, Err: err}
}
