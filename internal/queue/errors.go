package queue

import "errors"

var (
	// ErrRunInProgress is returned when an operation requires exclusive access
	// to the queue while a run owns it.
	ErrRunInProgress = errors.New("a queue run is already in progress")

	// ErrNoRunInProgress is returned by run controls when no run is active.
	ErrNoRunInProgress = errors.New("no queue run in progress")

	// ErrNotWaiting is returned by SkipWait when the active run is not counting down.
	ErrNotWaiting = errors.New("no wait in progress")

	// ErrItemNotFound is returned when an item ID is not present in the queue.
	ErrItemNotFound = errors.New("queue item not found")

	// ErrInvalidPayload is returned when a submitted payload has no filename or no data.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrDuplicatePayload is returned when a payload's filename is already queued
	// or already present in the library.
	ErrDuplicatePayload = errors.New("duplicate payload")

	// ErrNilAnalyzer is returned when a queue is created without an analyzer.
	ErrNilAnalyzer = errors.New("analyzer cannot be nil")

	// ErrInvalidTransition is returned by Apply when an action is not allowed
	// from the item's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidPolicy is returned when a Policy fails validation.
	ErrInvalidPolicy = errors.New("invalid queue policy")
)
