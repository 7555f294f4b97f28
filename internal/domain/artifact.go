package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Artifact-specific validation errors
var (
	// ErrArtifactIDEmpty is returned when an artifact ID is nil.
	ErrArtifactIDEmpty = errors.New("artifact ID cannot be empty")

	// ErrArtifactFilenameEmpty is returned when an artifact has no source filename.
	ErrArtifactFilenameEmpty = errors.New("artifact filename cannot be empty")

	// ErrArtifactExerciseMissing is returned when an artifact carries no exercise.
	ErrArtifactExerciseMissing = errors.New("artifact exercise cannot be nil")

	// ErrArtifactMediaRefEmpty is returned when an artifact has no media reference.
	ErrArtifactMediaRefEmpty = errors.New("artifact media reference cannot be empty")
)

// Artifact is the finished, exportable output produced from a completed queue item.
// It is what downstream persistence (file export, database) consumes.
type Artifact struct {
	ID        uuid.UUID `json:"id"`
	ItemID    uuid.UUID `json:"item_id"`
	Filename  string    `json:"filename"`
	Exercise  *Exercise `json:"exercise"`
	MediaRef  string    `json:"media_ref"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks if the Artifact has valid data.
func (a *Artifact) Validate() error {
	if a.ID == uuid.Nil {
		return ErrArtifactIDEmpty
	}
	if strings.TrimSpace(a.Filename) == "" {
		return ErrArtifactFilenameEmpty
	}
	if a.Exercise == nil {
		return ErrArtifactExerciseMissing
	}
	if a.MediaRef == "" {
		return ErrArtifactMediaRefEmpty
	}
	return a.Exercise.Validate()
}
