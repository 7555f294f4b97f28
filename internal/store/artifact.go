package store

import (
	"context"

	"github.com/phrazzld/scry-import/internal/domain"
)

// ArtifactStore persists collected artifacts.
type ArtifactStore interface {
	// SaveArtifacts stores every artifact, replacing any previous artifact with
	// the same filename. It returns the number of artifacts written.
	// Returns ErrInvalidEntity if an artifact fails validation; nothing is
	// written in that case.
	SaveArtifacts(ctx context.Context, artifacts []domain.Artifact) (int, error)
}

// LibraryReader lists the filenames already present in the exercise library.
type LibraryReader interface {
	// ListFilenames returns every filename in the library.
	ListFilenames(ctx context.Context) ([]string, error)
}
