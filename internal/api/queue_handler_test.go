package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-import/internal/api/shared"
	"github.com/phrazzld/scry-import/internal/domain"
	"github.com/phrazzld/scry-import/internal/queue"
	"github.com/phrazzld/scry-import/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockImportService implements ImportService with overridable functions.
type mockImportService struct {
	SubmitFn     func(ctx context.Context, payloads []queue.Payload) (queue.SubmitResult, error)
	StartRunFn   func(ctx context.Context, retryErrorsOnly bool) error
	StopFn       func() error
	SkipWaitFn   func() error
	RemoveFn     func(id uuid.UUID) error
	ItemsFn      func() []queue.Item
	LastResultFn func() (queue.RunResult, bool)
	ArtifactsFn  func(includeHarvested bool) []domain.Artifact
	ExportFn     func(ctx context.Context) (service.ExportResult, error)
}

func (m *mockImportService) Submit(ctx context.Context, p []queue.Payload) (queue.SubmitResult, error) {
	return m.SubmitFn(ctx, p)
}
func (m *mockImportService) StartRun(ctx context.Context, retry bool) error {
	return m.StartRunFn(ctx, retry)
}
func (m *mockImportService) Stop() error { return m.StopFn() }
func (m *mockImportService) SkipWait() error { return m.SkipWaitFn() }
func (m *mockImportService) Remove(id uuid.UUID) error { return m.RemoveFn(id) }
func (m *mockImportService) Items() []queue.Item {
	if m.ItemsFn == nil {
		return nil
	}
	return m.ItemsFn()
}
func (m *mockImportService) Stats() queue.Stats {
	return queue.Stats{Total: len(m.Items()), ByStatus: map[queue.Status]int{}}
}
func (m *mockImportService) Running() bool { return false }
func (m *mockImportService) LastResult() (queue.RunResult, bool) {
	if m.LastResultFn == nil {
		return queue.RunResult{}, false
	}
	return m.LastResultFn()
}
func (m *mockImportService) Artifacts(all bool) []domain.Artifact { return m.ArtifactsFn(all) }
func (m *mockImportService) Export(ctx context.Context) (service.ExportResult, error) {
	return m.ExportFn(ctx)
}

func newTestRouter(svc ImportService) http.Handler {
	h := NewQueueHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Route("/api/queue", h.Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		fw, err := mw.CreateFormFile(uploadFormField, name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestQueueHandler_SubmitItems(t *testing.T) {
	t.Parallel()

	t.Run("accepted and rejected files", func(t *testing.T) {
		var got []queue.Payload
		svc := &mockImportService{SubmitFn: func(_ context.Context, p []queue.Payload) (queue.SubmitResult, error) {
			got = p
			return queue.SubmitResult{
				Accepted: []queue.Item{queue.NewItem(p[0])},
				Rejected: []queue.Rejection{{Filename: "dup.png", Reason: "duplicate payload: already queued"}},
			}, nil
		}}

		body, ct := multipartBody(t, map[string][]byte{"page1.png": pngHeader})
		rec := do(t, newTestRouter(svc), http.MethodPost, "/api/queue/items", body, ct)

		require.Equal(t, http.StatusCreated, rec.Code)
		require.Len(t, got, 1)
		assert.Equal(t, "page1.png", got[0].Filename)
		assert.Equal(t, "image/png", got[0].MIMEType)
		assert.Equal(t, pngHeader, got[0].Data)

		var resp SubmitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Accepted, 1)
		assert.Equal(t, "pending", resp.Accepted[0].Status)
		require.Len(t, resp.Rejected, 1)
		assert.Equal(t, "dup.png", resp.Rejected[0].Filename)
	})

	t.Run("no files", func(t *testing.T) {
		body, ct := multipartBody(t, nil)
		rec := do(t, newTestRouter(&mockImportService{}), http.MethodPost, "/api/queue/items", body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No files uploaded", decodeError(t, rec).Error)
	})

	t.Run("not multipart", func(t *testing.T) {
		rec := do(t, newTestRouter(&mockImportService{}), http.MethodPost, "/api/queue/items",
			strings.NewReader(`{}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("library failure does not leak", func(t *testing.T) {
		svc := &mockImportService{SubmitFn: func(context.Context, []queue.Payload) (queue.SubmitResult, error) {
			return queue.SubmitResult{}, &service.ImportServiceError{
				Operation: "submit",
				Message:   "failed to load library",
				Err:       errors.New("dial tcp 10.0.0.5:5432: connection refused"),
			}
		}}
		body, ct := multipartBody(t, map[string][]byte{"a.png": pngHeader})
		rec := do(t, newTestRouter(svc), http.MethodPost, "/api/queue/items", body, ct)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to submit files", decodeError(t, rec).Error)
		assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	})
}

func TestQueueHandler_GetQueue(t *testing.T) {
	t.Parallel()

	done := queue.NewItem(queue.Payload{Filename: "a.png", Data: []byte{1}})
	done.Status = queue.StatusDone
	done.ArtifactID = uuid.New()
	done.CompletedAt = time.Now().UTC()
	done.Result = &domain.Result{
		Exercise: &domain.Exercise{Title: "T", Kind: domain.KindOpen, Questions: []domain.Question{{Prompt: "Q"}}},
		MediaRef: "media/a.png",
	}
	waiting := queue.NewItem(queue.Payload{Filename: "b.png", Data: []byte{1}})
	waiting.Status = queue.StatusWaiting
	waiting.WaitRemaining = 17
	waiting.WaitReason = "rate_limited"

	runID := uuid.New()
	svc := &mockImportService{
		ItemsFn: func() []queue.Item { return []queue.Item{done, waiting} },
		LastResultFn: func() (queue.RunResult, bool) {
			return queue.RunResult{ID: runID, Reason: queue.TerminationQuotaExhausted, Attempts: 6}, true
		},
	}

	rec := do(t, newTestRouter(svc), http.MethodGet, "/api/queue/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, done.ArtifactID.String(), resp.Items[0].ArtifactID)
	assert.Equal(t, "media/a.png", resp.Items[0].MediaRef)
	assert.NotNil(t, resp.Items[0].CompletedAt)
	assert.Equal(t, 17, resp.Items[1].WaitRemaining)
	assert.Empty(t, resp.Items[1].ArtifactID)
	require.NotNil(t, resp.LastRun)
	assert.Equal(t, "quota_exhausted", resp.LastRun.Reason)
	assert.Equal(t, runID.String(), resp.LastRun.ID)
}

func TestQueueHandler_StartRun(t *testing.T) {
	t.Parallel()

	t.Run("retry errors only", func(t *testing.T) {
		var gotRetry bool
		svc := &mockImportService{StartRunFn: func(_ context.Context, retry bool) error {
			gotRetry = retry
			return nil
		}}
		rec := do(t, newTestRouter(svc), http.MethodPost, "/api/queue/run",
			strings.NewReader(`{"retry_errors_only":true}`), "application/json")
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.True(t, gotRetry)
	})

	t.Run("empty body", func(t *testing.T) {
		called := false
		svc := &mockImportService{StartRunFn: func(_ context.Context, retry bool) error {
			called = true
			assert.False(t, retry)
			return nil
		}}
		rec := do(t, newTestRouter(svc), http.MethodPost, "/api/queue/run", nil, "")
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.True(t, called)
	})

	t.Run("already running", func(t *testing.T) {
		svc := &mockImportService{StartRunFn: func(context.Context, bool) error { return queue.ErrRunInProgress }}
		rec := do(t, newTestRouter(svc), http.MethodPost, "/api/queue/run", nil, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "A run is already in progress", decodeError(t, rec).Error)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := do(t, newTestRouter(&mockImportService{}), http.MethodPost, "/api/queue/run",
			strings.NewReader(`{"mode":1}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestQueueHandler_StopAndSkip(t *testing.T) {
	t.Parallel()

	svc := &mockImportService{
		StopFn:     func() error { return nil },
		SkipWaitFn: func() error { return queue.ErrNotWaiting },
	}
	router := newTestRouter(svc)

	assert.Equal(t, http.StatusAccepted, do(t, router, http.MethodPost, "/api/queue/stop", nil, "").Code)

	rec := do(t, router, http.MethodPost, "/api/queue/skip-wait", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "No item is waiting", decodeError(t, rec).Error)

	svc.StopFn = func() error { return queue.ErrNoRunInProgress }
	assert.Equal(t, http.StatusConflict, do(t, router, http.MethodPost, "/api/queue/stop", nil, "").Code)
}

func TestQueueHandler_RemoveItem(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &mockImportService{RemoveFn: func(got uuid.UUID) error {
		if got == id {
			return nil
		}
		return queue.ErrItemNotFound
	}}
	router := newTestRouter(svc)

	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/api/queue/items/"+id.String(), nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/api/queue/items/"+uuid.NewString(), nil, "").Code)

	rec := do(t, router, http.MethodDelete, "/api/queue/items/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid ID", decodeError(t, rec).Error)
}

func TestQueueHandler_ListArtifacts(t *testing.T) {
	t.Parallel()

	var gotAll []bool
	svc := &mockImportService{ArtifactsFn: func(all bool) []domain.Artifact {
		gotAll = append(gotAll, all)
		return []domain.Artifact{{ID: uuid.New(), Filename: "a.png"}}
	}}
	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/api/queue/artifacts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ArtifactsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	do(t, router, http.MethodGet, "/api/queue/artifacts?all=true", nil, "")
	assert.Equal(t, []bool{false, true}, gotAll)
}

func TestQueueHandler_Export(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		result     service.ExportResult
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "exported",
			result:     service.ExportResult{Exported: 2, Harvested: 2, Destinations: map[string]int{"file": 2}},
			wantStatus: http.StatusOK,
			wantBody:   `"exported":2`,
		},
		{name: "nothing to export", err: service.ErrNothingToExport, wantStatus: http.StatusOK, wantBody: `"exported":0`},
		{name: "not configured", err: service.ErrNoExporters, wantStatus: http.StatusServiceUnavailable, wantBody: "Export is not configured"},
		{
			name:       "exporter failure",
			err:        &service.ImportServiceError{Operation: "export", Message: "exporter postgres failed", Err: errors.New("password=hunter2")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Failed to export artifacts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockImportService{ExportFn: func(context.Context) (service.ExportResult, error) {
				return tt.result, tt.err
			}}
			rec := do(t, newTestRouter(svc), http.MethodPost, "/api/queue/export", nil, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotContains(t, rec.Body.String(), "hunter2")
		})
	}
}
