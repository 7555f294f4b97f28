package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidRegion is returned when a region box is outside the 0-1000 grid
	// or has a non-positive area.
	ErrInvalidRegion = errors.New("invalid region")

	// ErrInvalidExerciseKind is returned when an exercise kind is not recognised.
	ErrInvalidExerciseKind = errors.New("invalid exercise kind")
)
