package queue

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-import/internal/domain"
	"github.com/phrazzld/scry-import/internal/generation"
)

// Status represents the current state of a queue item
type Status string

// Possible item status values
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
	StatusWaiting    Status = "waiting"
	StatusStopped    Status = "stopped"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusWaiting,
	StatusDone,
	StatusError,
	StatusStopped,
}

// Active reports whether the item is owned by a run or waiting to be picked up.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusWaiting:
		return true
	}
	return false
}

// Payload is the immutable input of an item: one image and its filename.
// Data is shared between snapshots and must never be modified.
type Payload struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type,omitempty"`
	Data     []byte `json:"-"`
}

// Key is the identity used for duplicate detection: the trimmed,
// case-insensitive filename.
func (p Payload) Key() string {
	return NormalizeKey(p.Filename)
}

// Image converts the payload into the analyzer's input type.
func (p Payload) Image() generation.Image {
	return generation.Image{Filename: p.Filename, Data: p.Data, MIMEType: p.MIMEType}
}

// NormalizeKey maps a filename to its duplicate-detection key.
func NormalizeKey(filename string) string {
	return strings.ToLower(strings.TrimSpace(filename))
}

// Item is one unit of work tracked through the queue.
type Item struct {
	ID      uuid.UUID `json:"id"`
	Payload Payload   `json:"payload"`
	Status  Status    `json:"status"`

	// Result is set only while Status is StatusDone.
	Result *domain.Result `json:"result,omitempty"`

	// ErrorMessage is a redacted, truncated reason. It is set on error,
	// waiting and stopped items.
	ErrorMessage string `json:"error_message,omitempty"`

	// RetryCount counts transient retries of this item. It only grows, except
	// through an explicit reset of failed items.
	RetryCount int `json:"retry_count"`

	// WaitRemaining and WaitReason describe the countdown of a waiting item.
	WaitRemaining int    `json:"wait_remaining,omitempty"`
	WaitReason    string `json:"wait_reason,omitempty"`

	// ArtifactID is assigned when the item reaches StatusDone so that repeated
	// collections yield the same artifact.
	ArtifactID  uuid.UUID `json:"artifact_id"`
	Harvested   bool      `json:"harvested"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewItem creates a pending item for payload.
func NewItem(payload Payload) Item {
	return Item{
		ID:        uuid.New(),
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a copy of the item that shares only the immutable payload bytes.
func (i Item) Clone() Item {
	i.Result = i.Result.Clone()
	return i
}

// Stats summarises a queue by status.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}

// Count returns the number of items in status s.
func (s Stats) Count(status Status) int {
	return s.ByStatus[status]
}

func computeStats(items []*Item) Stats {
	st := Stats{Total: len(items), ByStatus: make(map[Status]int, len(Statuses))}
	for _, s := range Statuses {
		st.ByStatus[s] = 0
	}
	for _, it := range items {
		st.ByStatus[it.Status]++
	}
	return st
}
