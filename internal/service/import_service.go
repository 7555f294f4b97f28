package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-import/internal/domain"
	"github.com/phrazzld/scry-import/internal/queue"
	"github.com/phrazzld/scry-import/internal/store"
)

// ExportResult reports the outcome of an export.
type ExportResult struct {
	Exported     int            `json:"exported"`
	Destinations map[string]int `json:"destinations"`
	Harvested    int            `json:"harvested"`
}

// Option configures an ImportService.
type Option func(*ImportService)

// WithLibrary sets the reader used to reject payloads already in the library.
func WithLibrary(library store.LibraryReader) Option {
	return func(s *ImportService) { s.library = library }
}

// WithExporter registers a named artifact destination.
func WithExporter(name string, exporter store.ArtifactStore) Option {
	return func(s *ImportService) {
		if exporter != nil {
			s.exporters[name] = exporter
		}
	}
}

// ImportService coordinates a queue with its library and exporters.
type ImportService struct {
	queue     *queue.Queue
	library   store.LibraryReader
	exporters map[string]store.ArtifactStore
	logger    *slog.Logger

	mu      sync.Mutex
	done    chan struct{}
	cancel  context.CancelFunc
	last    *queue.RunResult
	lastErr error
}

// NewImportService creates a service around q.
func NewImportService(q *queue.Queue, logger *slog.Logger, opts ...Option) (*ImportService, error) {
	if q == nil {
		return nil, &ImportServiceError{Operation: "create_service", Message: "queue cannot be nil"}
	}
	if logger == nil {
		return nil, &ImportServiceError{Operation: "create_service", Message: "logger cannot be nil"}
	}

	s := &ImportService{
		queue:     q,
		exporters: make(map[string]store.ArtifactStore),
		logger:    logger.With("component", "import_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Queue returns the underlying queue.
func (s *ImportService) Queue() *queue.Queue {
	return s.queue
}

// Submit loads the library and offers payloads to the queue.
func (s *ImportService) Submit(ctx context.Context, payloads []queue.Payload) (queue.SubmitResult, error) {
	library, err := s.loadLibrary(ctx)
	if err != nil {
		return queue.SubmitResult{}, NewImportServiceError("submit", "failed to load library", err)
	}

	res := s.queue.Submit(ctx, payloads, library)
	s.logger.Info("payloads submitted",
		"accepted", len(res.Accepted),
		"rejected", len(res.Rejected))
	return res, nil
}

func (s *ImportService) loadLibrary(ctx context.Context) (queue.Library, error) {
	if s.library == nil {
		return queue.NewLibrarySet(), nil
	}
	names, err := s.library.ListFilenames(ctx)
	if err != nil {
		return nil, err
	}
	return queue.NewLibrarySet(names...), nil
}

// StartRun starts a run in the background and returns immediately. The run
// keeps the values of ctx but not its cancellation; use Cancel or Shutdown to
// end it early.
func (s *ImportService) StartRun(ctx context.Context, retryErrorsOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil || s.queue.Running() {
		return queue.ErrRunInProgress
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.done = done
	s.cancel = cancel

	go func() {
		defer close(done)
		defer cancel()

		res, err := s.queue.Run(runCtx, retryErrorsOnly)

		s.mu.Lock()
		if err != nil {
			s.lastErr = err
		} else {
			s.last = &res
			s.lastErr = nil
		}
		s.done = nil
		s.cancel = nil
		s.mu.Unlock()

		if err != nil {
			s.logger.Error("background run failed to start", "error", err)
		}
	}()

	s.logger.Info("background run started", "retry_errors_only", retryErrorsOnly)
	return nil
}

// Wait blocks until the current background run ends or ctx is done, and
// returns the latest run result.
func (s *ImportService) Wait(ctx context.Context) (queue.RunResult, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return queue.RunResult{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != nil {
		return queue.RunResult{}, NewImportServiceError("run", "run did not start", s.lastErr)
	}
	if s.last == nil {
		return queue.RunResult{}, ErrNoRunYet
	}
	return *s.last, nil
}

// LastResult returns the result of the most recently finished run.
func (s *ImportService) LastResult() (queue.RunResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return queue.RunResult{}, false
	}
	return *s.last, true
}

// Stop requests a resumable stop of the active run.
func (s *ImportService) Stop() error {
	return NewImportServiceError("stop", "stop request failed", s.queue.RequestStop())
}

// SkipWait cuts the current retry wait short.
func (s *ImportService) SkipWait() error {
	return NewImportServiceError("skip_wait", "skip request failed", s.queue.SkipWait())
}

// Cancel aborts the active run. The item being analysed is left stopped.
func (s *ImportService) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		s.logger.Warn("cancelling active run")
		cancel()
	}
}

// Remove deletes an item from the queue.
func (s *ImportService) Remove(id uuid.UUID) error {
	return NewImportServiceError("remove", "failed to remove item", s.queue.Remove(id))
}

// Clear empties the queue.
func (s *ImportService) Clear() error {
	return NewImportServiceError("clear", "failed to clear queue", s.queue.Clear())
}

// Items returns a snapshot of the queue.
func (s *ImportService) Items() []queue.Item {
	return s.queue.Items()
}

// Stats returns item counts per status.
func (s *ImportService) Stats() queue.Stats {
	return s.queue.Stats()
}

// Running reports whether a run owns the queue.
func (s *ImportService) Running() bool {
	return s.queue.Running()
}

// Artifacts collects the artifacts of completed items.
func (s *ImportService) Artifacts(includeHarvested bool) []domain.Artifact {
	return s.queue.Collect(queue.CollectOptions{IncludeHarvested: includeHarvested})
}

// Export sends unharvested artifacts to every exporter. Items are marked
// harvested only when all exporters succeed, so a failed export can be
// retried.
func (s *ImportService) Export(ctx context.Context) (ExportResult, error) {
	if len(s.exporters) == 0 {
		return ExportResult{}, ErrNoExporters
	}

	artifacts := s.Artifacts(false)
	if len(artifacts) == 0 {
		return ExportResult{}, ErrNothingToExport
	}

	names := make([]string, 0, len(s.exporters))
	for name := range s.exporters {
		names = append(names, name)
	}
	sort.Strings(names)

	res := ExportResult{Exported: len(artifacts), Destinations: make(map[string]int, len(names))}
	for _, name := range names {
		n, err := s.exporters[name].SaveArtifacts(ctx, artifacts)
		if err != nil {
			s.logger.Error("export failed", "exporter", name, "error", err)
			return res, NewImportServiceError("export", "exporter "+name+" failed", err)
		}
		res.Destinations[name] = n
	}

	ids := make([]uuid.UUID, len(artifacts))
	for i, a := range artifacts {
		ids[i] = a.ID
	}
	res.Harvested = s.queue.MarkHarvested(ids)

	s.logger.Info("artifacts exported",
		"artifact_count", res.Exported,
		"exporters", len(names),
		"harvested", res.Harvested)
	return res, nil
}

// Shutdown requests a stop and waits for the active run to end. If ctx ends
// first the run is cancelled.
func (s *ImportService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	_ = s.queue.RequestStop()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.Cancel()
		<-done
		return ctx.Err()
	}
}
