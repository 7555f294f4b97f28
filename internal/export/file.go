package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/scry-import/internal/domain"
	"github.com/phrazzld/scry-import/internal/store"
)

// ErrNothingToExport is returned by WriteFile when no artifacts are given.
var ErrNothingToExport = errors.New("no artifacts to export")

const filenameLayout = "20060102-150405"

// Document is the on-disk shape of an export file.
type Document struct {
	ExportedAt time.Time         `json:"exported_at"`
	Count      int               `json:"count"`
	Artifacts  []domain.Artifact `json:"artifacts"`
}

// FileExporter writes artifacts-<timestamp>.json files into a directory.
type FileExporter struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

var _ store.ArtifactStore = (*FileExporter)(nil)

// NewFileExporter creates the export directory if needed.
func NewFileExporter(dir string, logger *slog.Logger) (*FileExporter, error) {
	if dir == "" {
		return nil, errors.New("export directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &FileExporter{
		dir:    dir,
		logger: logger.With("component", "file_exporter"),
		now:    time.Now,
	}, nil
}

// SaveArtifacts implements store.ArtifactStore.
func (e *FileExporter) SaveArtifacts(ctx context.Context, artifacts []domain.Artifact) (int, error) {
	if len(artifacts) == 0 {
		return 0, nil
	}
	if _, err := e.WriteFile(ctx, artifacts); err != nil {
		return 0, err
	}
	return len(artifacts), nil
}

// WriteFile validates artifacts and writes them as one document, returning
// the file path. The file appears atomically.
func (e *FileExporter) WriteFile(ctx context.Context, artifacts []domain.Artifact) (string, error) {
	if len(artifacts) == 0 {
		return "", ErrNothingToExport
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for i := range artifacts {
		if err := artifacts[i].Validate(); err != nil {
			return "", fmt.Errorf("%w: %s: %v", store.ErrInvalidEntity, artifacts[i].Filename, err)
		}
	}

	now := e.now().UTC()
	doc := Document{ExportedAt: now, Count: len(artifacts), Artifacts: artifacts}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode artifacts: %w", err)
	}

	path := filepath.Join(e.dir, fmt.Sprintf("artifacts-%s.json", now.Format(filenameLayout)))
	tmp, err := os.CreateTemp(e.dir, ".artifacts-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("failed to finalise export file: %w", err)
	}

	e.logger.Info("artifacts exported", "path", path, "artifact_count", len(artifacts))
	return path, nil
}
