package api

import (
	"time"

	"github.com/phrazzld/scry-import/internal/domain"
	"github.com/phrazzld/scry-import/internal/queue"
	"github.com/phrazzld/scry-import/internal/service"
)

// RunRequest is the optional body of POST /api/queue/run.
type RunRequest struct {
	RetryErrorsOnly bool `json:"retry_errors_only"`
}

// ItemResponse is the public view of a queue item.
type ItemResponse struct {
	ID            string           `json:"id"`
	Filename      string           `json:"filename"`
	Status        string           `json:"status"`
	RetryCount    int              `json:"retry_count"`
	WaitRemaining int              `json:"wait_remaining,omitempty"`
	WaitReason    string           `json:"wait_reason,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	Exercise      *domain.Exercise `json:"exercise,omitempty"`
	MediaRef      string           `json:"media_ref,omitempty"`
	ArtifactID    string           `json:"artifact_id,omitempty"`
	Harvested     bool             `json:"harvested,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

// RejectionResponse explains why an uploaded file was not queued.
type RejectionResponse struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// SubmitResponse is returned by POST /api/queue/items.
type SubmitResponse struct {
	Accepted []ItemResponse      `json:"accepted"`
	Rejected []RejectionResponse `json:"rejected"`
}

// RunSummary is the public view of a finished run.
type RunSummary struct {
	ID              string    `json:"id"`
	Reason          string    `json:"reason"`
	RetryErrorsOnly bool      `json:"retry_errors_only"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Attempts        int       `json:"attempts"`
	Succeeded       int       `json:"succeeded"`
	Failed          int       `json:"failed"`
	Retried         int       `json:"retried"`
}

// QueueResponse is returned by GET /api/queue.
type QueueResponse struct {
	Running bool           `json:"running"`
	Stats   queue.Stats    `json:"stats"`
	Items   []ItemResponse `json:"items"`
	LastRun *RunSummary    `json:"last_run,omitempty"`
}

// ArtifactsResponse is returned by GET /api/queue/artifacts.
type ArtifactsResponse struct {
	Count     int               `json:"count"`
	Artifacts []domain.Artifact `json:"artifacts"`
}

// ExportResponse is returned by POST /api/queue/export.
type ExportResponse = service.ExportResult

func itemToResponse(it queue.Item) ItemResponse {
	resp := ItemResponse{
		ID:            it.ID.String(),
		Filename:      it.Payload.Filename,
		Status:        string(it.Status),
		RetryCount:    it.RetryCount,
		WaitRemaining: it.WaitRemaining,
		WaitReason:    it.WaitReason,
		ErrorMessage:  it.ErrorMessage,
		Harvested:     it.Harvested,
		CreatedAt:     it.CreatedAt,
	}
	if it.Result != nil {
		resp.Exercise = it.Result.Exercise
		resp.MediaRef = it.Result.MediaRef
	}
	if it.Status == queue.StatusDone {
		resp.ArtifactID = it.ArtifactID.String()
		completed := it.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

func itemsToResponse(items []queue.Item) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i, it := range items {
		out[i] = itemToResponse(it)
	}
	return out
}

func runToSummary(res queue.RunResult) *RunSummary {
	return &RunSummary{
		ID:              res.ID.String(),
		Reason:          string(res.Reason),
		RetryErrorsOnly: res.RetryErrorsOnly,
		StartedAt:       res.StartedAt,
		FinishedAt:      res.FinishedAt,
		Attempts:        res.Attempts,
		Succeeded:       res.Succeeded,
		Failed:          res.Failed,
		Retried:         res.Retried,
	}
}
