package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of a QueueEvent.
type Type string

const (
	// ItemSubmitted is emitted once per accepted payload.
	ItemSubmitted Type = "item.submitted"
	// ItemRejected is emitted for a payload refused at submission.
	ItemRejected Type = "item.rejected"
	// ItemTransitioned is emitted on every status change of an item.
	ItemTransitioned Type = "item.transitioned"
	// WaitTick is emitted once per countdown tick while an item is waiting.
	WaitTick Type = "item.wait_tick"
	// RunStarted is emitted when the driver takes ownership of the queue.
	RunStarted Type = "run.started"
	// RunFinished is emitted when the driver releases the queue.
	RunFinished Type = "run.finished"
)

// QueueEvent describes one observation of queue activity. Fields that do not
// apply to an event type are left at their zero value.
type QueueEvent struct {
	ID   uuid.UUID `json:"id"`
	Type Type      `json:"type"`

	ItemID   uuid.UUID `json:"item_id,omitempty"`
	Filename string    `json:"filename,omitempty"`

	// From and To are item statuses for ItemTransitioned.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	RetryCount    int    `json:"retry_count,omitempty"`
	WaitRemaining int    `json:"wait_remaining,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Message       string `json:"message,omitempty"`

	// Elapsed is the analysis latency for transitions out of processing and
	// the run duration for RunFinished.
	Elapsed time.Duration `json:"elapsed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewQueueEvent creates a QueueEvent of the given type with a fresh ID and timestamp.
func NewQueueEvent(eventType Type) *QueueEvent {
	return &QueueEvent{
		ID:        uuid.New(),
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that can handle events.
// Handlers are called synchronously from the queue driver and must return quickly.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *QueueEvent) error
}

// HandlerFunc adapts an ordinary function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *QueueEvent) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *QueueEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows the queue to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *QueueEvent) error
}
