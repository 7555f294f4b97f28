package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-import/internal/domain"
	"github.com/phrazzld/scry-import/internal/generation"
	"github.com/phrazzld/scry-import/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAnalyzer struct {
	AnalyzeFn func(ctx context.Context, img generation.Image) (*domain.Result, error)
}

func (m *mockAnalyzer) Analyze(ctx context.Context, img generation.Image) (*domain.Result, error) {
	return m.AnalyzeFn(ctx, img)
}

type mockLibrary struct {
	ListFilenamesFn func(ctx context.Context) ([]string, error)
}

func (m *mockLibrary) ListFilenames(ctx context.Context) ([]string, error) {
	return m.ListFilenamesFn(ctx)
}

type mockExporter struct {
	mu              sync.Mutex
	saved           [][]domain.Artifact
	SaveArtifactsFn func(ctx context.Context, artifacts []domain.Artifact) (int, error)
}

func (m *mockExporter) SaveArtifacts(ctx context.Context, artifacts []domain.Artifact) (int, error) {
	m.mu.Lock()
	m.saved = append(m.saved, artifacts)
	m.mu.Unlock()
	if m.SaveArtifactsFn != nil {
		return m.SaveArtifactsFn(ctx, artifacts)
	}
	return len(artifacts), nil
}

func succeeding() *mockAnalyzer {
	return &mockAnalyzer{AnalyzeFn: func(_ context.Context, img generation.Image) (*domain.Result, error) {
		return &domain.Result{
			Exercise: &domain.Exercise{
				Title:     "Exercise " + img.Filename,
				Kind:      domain.KindShortAnswer,
				Questions: []domain.Question{{Prompt: "Why?"}},
			},
			MediaRef: "media/" + img.Filename,
		}, nil
	}}
}

// blocking returns an analyzer that holds every call until release is closed
// or the call's context ends.
func blocking(release <-chan struct{}, started chan<- struct{}) *mockAnalyzer {
	inner := succeeding()
	return &mockAnalyzer{AnalyzeFn: func(ctx context.Context, img generation.Image) (*domain.Result, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
			return inner.AnalyzeFn(ctx, img)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, a generation.Analyzer, opts ...Option) *ImportService {
	t.Helper()
	p := queue.DefaultPolicy()
	p.Cooldown = 0
	p.Tick = time.Millisecond
	q, err := queue.New(a, p, testLogger())
	require.NoError(t, err)
	s, err := NewImportService(q, testLogger(), opts...)
	require.NoError(t, err)
	return s
}

func payloads(names ...string) []queue.Payload {
	out := make([]queue.Payload, len(names))
	for i, n := range names {
		out[i] = queue.Payload{Filename: n, MIMEType: "image/png", Data: []byte{1}}
	}
	return out
}

func TestNewImportService_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewImportService(nil, testLogger())
	var svcErr *ImportServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "create_service", svcErr.Operation)
}

func TestImportService_Submit(t *testing.T) {
	t.Parallel()

	t.Run("rejects library duplicates", func(t *testing.T) {
		lib := &mockLibrary{ListFilenamesFn: func(context.Context) ([]string, error) {
			return []string{"Old.PNG"}, nil
		}}
		s := newService(t, succeeding(), WithLibrary(lib))

		res, err := s.Submit(context.Background(), payloads("old.png", "new.png"))
		require.NoError(t, err)
		require.Len(t, res.Accepted, 1)
		assert.Equal(t, "new.png", res.Accepted[0].Payload.Filename)
		require.Len(t, res.Rejected, 1)
		assert.ErrorIs(t, res.Rejected[0].Err, queue.ErrDuplicatePayload)
	})

	t.Run("library failure is wrapped", func(t *testing.T) {
		dbErr := errors.New("connection refused")
		lib := &mockLibrary{ListFilenamesFn: func(context.Context) ([]string, error) { return nil, dbErr }}
		s := newService(t, succeeding(), WithLibrary(lib))

		_, err := s.Submit(context.Background(), payloads("a.png"))
		var svcErr *ImportServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, "submit", svcErr.Operation)
		assert.ErrorIs(t, err, dbErr)
		assert.Empty(t, s.Items())
	})
}

func TestImportService_RunAndWait(t *testing.T) {
	t.Parallel()

	s := newService(t, succeeding())
	_, err := s.Submit(context.Background(), payloads("a.png", "b.png"))
	require.NoError(t, err)

	_, ok := s.LastResult()
	assert.False(t, ok)
	_, err = s.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNoRunYet)

	require.NoError(t, s.StartRun(context.Background(), false))
	res, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queue.TerminationFinished, res.Reason)
	assert.Equal(t, 2, res.Succeeded)

	last, ok := s.LastResult()
	require.True(t, ok)
	assert.Equal(t, res.ID, last.ID)
	assert.False(t, s.Running())
	assert.Equal(t, 2, s.Stats().Count(queue.StatusDone))
	assert.Len(t, s.Artifacts(false), 2)
}

func TestImportService_StartRun_RejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s := newService(t, blocking(release, started))
	_, err := s.Submit(context.Background(), payloads("a.png"))
	require.NoError(t, err)

	require.NoError(t, s.StartRun(context.Background(), false))
	<-started
	assert.ErrorIs(t, s.StartRun(context.Background(), false), queue.ErrRunInProgress)

	close(release)
	res, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
}

func TestImportService_RunOutlivesRequestContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s := newService(t, blocking(release, started))
	_, err := s.Submit(context.Background(), payloads("a.png"))
	require.NoError(t, err)

	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.StartRun(reqCtx, false))
	<-started
	cancel()
	close(release)

	res, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queue.TerminationFinished, res.Reason)
}

func TestImportService_StopAndSkip(t *testing.T) {
	t.Parallel()

	s := newService(t, succeeding())
	assert.ErrorIs(t, s.Stop(), queue.ErrNoRunInProgress)
	assert.ErrorIs(t, s.SkipWait(), queue.ErrNoRunInProgress)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s = newService(t, blocking(release, started))
	_, err := s.Submit(context.Background(), payloads("a.png", "b.png"))
	require.NoError(t, err)
	require.NoError(t, s.StartRun(context.Background(), false))
	<-started

	assert.ErrorIs(t, s.SkipWait(), queue.ErrNotWaiting)
	require.NoError(t, s.Stop())
	close(release)

	res, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queue.TerminationCancelled, res.Reason)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, s.Stats().Count(queue.StatusPending))
}

func TestImportService_Shutdown(t *testing.T) {
	t.Parallel()

	assert.NoError(t, newService(t, succeeding()).Shutdown(context.Background()))

	started := make(chan struct{}, 1)
	s := newService(t, blocking(make(chan struct{}), started))
	_, err := s.Submit(context.Background(), payloads("a.png"))
	require.NoError(t, err)
	require.NoError(t, s.StartRun(context.Background(), false))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	res, ok := s.LastResult()
	require.True(t, ok)
	assert.Equal(t, queue.TerminationCancelled, res.Reason)
	assert.Equal(t, 1, s.Stats().Count(queue.StatusStopped))
}

func TestImportService_Export(t *testing.T) {
	t.Parallel()

	t.Run("no exporters", func(t *testing.T) {
		s := newService(t, succeeding())
		_, err := s.Export(context.Background())
		assert.ErrorIs(t, err, ErrNoExporters)
	})

	t.Run("exports once and marks harvested", func(t *testing.T) {
		files, db := &mockExporter{}, &mockExporter{}
		s := newService(t, succeeding(), WithExporter("file", files), WithExporter("postgres", db))

		_, err := s.Export(context.Background())
		assert.ErrorIs(t, err, ErrNothingToExport)

		_, err = s.Submit(context.Background(), payloads("a.png", "b.png"))
		require.NoError(t, err)
		require.NoError(t, s.StartRun(context.Background(), false))
		_, err = s.Wait(context.Background())
		require.NoError(t, err)

		res, err := s.Export(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, res.Exported)
		assert.Equal(t, 2, res.Harvested)
		assert.Equal(t, map[string]int{"file": 2, "postgres": 2}, res.Destinations)
		require.Len(t, files.saved, 1)
		require.Len(t, db.saved, 1)

		_, err = s.Export(context.Background())
		assert.ErrorIs(t, err, ErrNothingToExport)
		assert.Len(t, s.Artifacts(true), 2)
	})

	t.Run("failed exporter leaves items unharvested", func(t *testing.T) {
		boom := errors.New("disk full")
		bad := &mockExporter{SaveArtifactsFn: func(context.Context, []domain.Artifact) (int, error) { return 0, boom }}
		s := newService(t, succeeding(), WithExporter("file", bad))

		_, err := s.Submit(context.Background(), payloads("a.png"))
		require.NoError(t, err)
		require.NoError(t, s.StartRun(context.Background(), false))
		_, err = s.Wait(context.Background())
		require.NoError(t, err)

		_, err = s.Export(context.Background())
		var svcErr *ImportServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.ErrorIs(t, err, boom)
		assert.Len(t, s.Artifacts(false), 1)
	})
}

func TestImportService_Maintenance(t *testing.T) {
	t.Parallel()

	s := newService(t, succeeding())
	res, err := s.Submit(context.Background(), payloads("a.png", "b.png"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(res.Accepted[0].ID))
	assert.ErrorIs(t, s.Remove(uuid.New()), queue.ErrItemNotFound)
	assert.Len(t, s.Items(), 1)

	require.NoError(t, s.Clear())
	assert.Empty(t, s.Items())
}

func TestNewImportServiceError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewImportServiceError("op", "msg", nil))
	assert.Same(t, queue.ErrItemNotFound, NewImportServiceError("op", "msg", queue.ErrItemNotFound))

	err := NewImportServiceError("export", "failed", errors.New("boom"))
	assert.EqualError(t, err, "import service export failed: failed: boom")
}
