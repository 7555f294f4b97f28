package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-import/internal/api/shared"
	"github.com/phrazzld/scry-import/internal/domain"
	"github.com/phrazzld/scry-import/internal/platform/logger"
	"github.com/phrazzld/scry-import/internal/queue"
	"github.com/phrazzld/scry-import/internal/service"
)

const (
	// uploadFormField is the multipart field carrying image files.
	uploadFormField = "files"
	// maxUploadBytes bounds a whole upload request.
	maxUploadBytes = 64 << 20
	// multipartMemory is the part of an upload kept in memory before spilling to disk.
	multipartMemory = 16 << 20
)

// ImportService is the subset of the import service the handlers use.
type ImportService interface {
	Submit(ctx context.Context, payloads []queue.Payload) (queue.SubmitResult, error)
	StartRun(ctx context.Context, retryErrorsOnly bool) error
	Stop() error
	SkipWait() error
	Remove(id uuid.UUID) error
	Items() []queue.Item
	Stats() queue.Stats
	Running() bool
	LastResult() (queue.RunResult, bool)
	Artifacts(includeHarvested bool) []domain.Artifact
	Export(ctx context.Context) (service.ExportResult, error)
}

// QueueHandler handles /api/queue requests.
type QueueHandler struct {
	service ImportService
	logger  *slog.Logger
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(svc ImportService, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{
		service: svc,
		logger:  logger.With("component", "queue_handler"),
	}
}

// Routes registers the queue endpoints on r, which is expected to be mounted
// at /api/queue.
func (h *QueueHandler) Routes(r chi.Router) {
	r.Get("/", h.GetQueue)
	r.Post("/items", h.SubmitItems)
	r.Delete("/items/{id}", h.RemoveItem)
	r.Post("/run", h.StartRun)
	r.Post("/stop", h.Stop)
	r.Post("/skip-wait", h.SkipWait)
	r.Get("/artifacts", h.ListArtifacts)
	r.Post("/export", h.Export)
}

// SubmitItems handles POST /api/queue/items with multipart image uploads.
func (h *QueueHandler) SubmitItems(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		log.Debug("failed to parse multipart upload", "error", err)
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid multipart upload")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadFormField]
	if len(headers) == 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "No files uploaded")
		return
	}

	payloads := make([]queue.Payload, 0, len(headers))
	for _, fh := range headers {
		p, err := readPayload(fh)
		if err != nil {
			log.Warn("failed to read uploaded file", "filename", fh.Filename, "error", err)
			shared.RespondWithError(w, r, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}
		payloads = append(payloads, p)
	}

	res, err := h.service.Submit(r.Context(), payloads)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit files")
		return
	}

	resp := SubmitResponse{
		Accepted: itemsToResponse(res.Accepted),
		Rejected: make([]RejectionResponse, len(res.Rejected)),
	}
	for i, rej := range res.Rejected {
		resp.Rejected[i] = RejectionResponse{Filename: rej.Filename, Reason: rej.Reason}
	}

	status := http.StatusCreated
	if len(res.Accepted) == 0 {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, resp)
}

func readPayload(fh *multipart.FileHeader) (queue.Payload, error) {
	f, err := fh.Open()
	if err != nil {
		return queue.Payload{}, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return queue.Payload{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return queue.Payload{Filename: fh.Filename, MIMEType: mimeType, Data: data}, nil
}

// GetQueue handles GET /api/queue.
func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	resp := QueueResponse{
		Running: h.service.Running(),
		Stats:   h.service.Stats(),
		Items:   itemsToResponse(h.service.Items()),
	}
	if last, ok := h.service.LastResult(); ok {
		resp.LastRun = runToSummary(last)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// StartRun handles POST /api/queue/run. The run continues after the response.
func (h *QueueHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	if err := h.service.StartRun(r.Context(), req.RetryErrorsOnly); err != nil {
		HandleAPIError(w, r, err, "Failed to start run")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, map[string]any{
		"running":           true,
		"retry_errors_only": req.RetryErrorsOnly,
	})
}

// Stop handles POST /api/queue/stop.
func (h *QueueHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Stop(); err != nil {
		HandleAPIError(w, r, err, "Failed to stop run")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SkipWait handles POST /api/queue/skip-wait.
func (h *QueueHandler) SkipWait(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SkipWait(); err != nil {
		HandleAPIError(w, r, err, "Failed to skip wait")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// RemoveItem handles DELETE /api/queue/items/{id}.
func (h *QueueHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.service.Remove(id); err != nil {
		HandleAPIError(w, r, err, "Failed to remove item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListArtifacts handles GET /api/queue/artifacts. With ?all=true artifacts
// already exported are included.
func (h *QueueHandler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts := h.service.Artifacts(queryBool(r, "all"))
	shared.RespondWithJSON(w, r, http.StatusOK, ArtifactsResponse{Count: len(artifacts), Artifacts: artifacts})
}

// Export handles POST /api/queue/export.
func (h *QueueHandler) Export(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Export(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNothingToExport) {
			shared.RespondWithJSON(w, r, http.StatusOK, ExportResponse{Destinations: map[string]int{}})
			return
		}
		HandleAPIError(w, r, err, "Failed to export artifacts")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, res)
}
