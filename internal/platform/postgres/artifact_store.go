package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-import/internal/domain"
	"github.com/phrazzld/scry-import/internal/platform/logger"
	"github.com/phrazzld/scry-import/internal/queue"
	"github.com/phrazzld/scry-import/internal/store"
)

const upsertExerciseQuery = `
	INSERT INTO exercises (id, item_id, filename, filename_key, title, kind, subject, content, media_ref, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (filename_key) DO UPDATE SET
		id = EXCLUDED.id,
		item_id = EXCLUDED.item_id,
		filename = EXCLUDED.filename,
		title = EXCLUDED.title,
		kind = EXCLUDED.kind,
		subject = EXCLUDED.subject,
		content = EXCLUDED.content,
		media_ref = EXCLUDED.media_ref,
		updated_at = EXCLUDED.updated_at
`

// ArtifactStore implements store.ArtifactStore and store.LibraryReader
// on top of the exercises table.
type ArtifactStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ store.ArtifactStore = (*ArtifactStore)(nil)
	_ store.LibraryReader = (*ArtifactStore)(nil)
)

// NewArtifactStore creates a PostgreSQL artifact store.
// If logger is nil, a default logger will be used.
func NewArtifactStore(db *sql.DB, logger *slog.Logger) *ArtifactStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactStore{
		db:     db,
		logger: logger.With(slog.String("component", "artifact_store")),
		now:    time.Now,
	}
}

// SaveArtifacts implements store.ArtifactStore. All artifacts are validated
// before the transaction starts and are written atomically.
func (s *ArtifactStore) SaveArtifacts(ctx context.Context, artifacts []domain.Artifact) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(artifacts) == 0 {
		return 0, nil
	}

	for i := range artifacts {
		if err := artifacts[i].Validate(); err != nil {
			log.Warn("artifact validation failed",
				slog.String("artifact_id", artifacts[i].ID.String()),
				slog.String("error", err.Error()))
			return 0, fmt.Errorf("%w: %s: %v", store.ErrInvalidEntity, artifacts[i].Filename, err)
		}
	}

	rows := make([][]any, 0, len(artifacts))
	updatedAt := s.now().UTC()
	for _, a := range artifacts {
		content, err := json.Marshal(a.Exercise)
		if err != nil {
			return 0, store.NewOpError("artifact", "save", "failed to encode exercise", err)
		}
		rows = append(rows, []any{
			a.ID,
			a.ItemID,
			a.Filename,
			queue.NormalizeKey(a.Filename),
			a.Exercise.Title,
			string(a.Exercise.Kind),
			a.Exercise.Subject,
			content,
			a.MediaRef,
			a.CreatedAt,
			updatedAt,
		})
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertExerciseQuery)
		if err != nil {
			return MapError(err)
		}
		defer func() { _ = stmt.Close() }()

		for _, args := range rows {
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return MapError(err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to save artifacts",
			slog.Int("artifact_count", len(artifacts)),
			slog.String("error", err.Error()))
		return 0, store.NewOpError("artifact", "save", "upsert failed", err)
	}

	log.Info("artifacts saved", slog.Int("artifact_count", len(artifacts)))
	return len(artifacts), nil
}

// ListFilenames implements store.LibraryReader.
func (s *ArtifactStore) ListFilenames(ctx context.Context) ([]string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `SELECT filename FROM exercises ORDER BY filename`)
	if err != nil {
		log.Error("failed to list library filenames", slog.String("error", err.Error()))
		return nil, store.NewOpError("artifact", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var filenames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, store.NewOpError("artifact", "list", "scan failed", MapError(err))
		}
		filenames = append(filenames, name)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewOpError("artifact", "list", "iteration failed", MapError(err))
	}

	log.Debug("listed library filenames", slog.Int("count", len(filenames)))
	return filenames, nil
}
