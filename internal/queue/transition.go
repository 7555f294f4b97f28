package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-import/internal/domain"
)

// Action is an input to the item state machine.
type Action string

const (
	// ActionStart moves a pending item into processing.
	ActionStart Action = "start"
	// ActionSucceed records a result on a processing item.
	ActionSucceed Action = "succeed"
	// ActionFail marks a processing item as permanently failed.
	ActionFail Action = "fail"
	// ActionWait parks a processing item behind a countdown.
	ActionWait Action = "wait"
	// ActionTick updates the countdown of a waiting item.
	ActionTick Action = "tick"
	// ActionRetry returns a waiting item to pending with one more retry counted.
	ActionRetry Action = "retry"
	// ActionStop parks a waiting or processing item as resumable.
	ActionStop Action = "stop"
	// ActionRevert returns a processing item to pending untouched.
	ActionRevert Action = "revert"
	// ActionResume returns a stopped item to pending, keeping its retry count.
	ActionResume Action = "resume"
	// ActionReset returns an error or stopped item to pending with a clean slate.
	ActionReset Action = "reset"
)

// Event carries an action and the data it needs.
type Event struct {
	Action Action

	// Result and ArtifactID are used by ActionSucceed.
	Result     *domain.Result
	ArtifactID uuid.UUID

	// Message is used by ActionFail, ActionWait and ActionStop.
	Message string

	// Reason and Remaining are used by ActionWait and ActionTick.
	Reason    string
	Remaining int

	At time.Time
}

// allowedFrom lists, per action, the statuses it may be applied to.
var allowedFrom = map[Action][]Status{
	ActionStart:   {StatusPending},
	ActionSucceed: {StatusProcessing},
	ActionFail:    {StatusProcessing},
	ActionWait:    {StatusProcessing},
	ActionTick:    {StatusWaiting},
	ActionRetry:   {StatusWaiting},
	ActionStop:    {StatusWaiting, StatusProcessing},
	ActionRevert:  {StatusProcessing},
	ActionResume:  {StatusStopped},
	ActionReset:   {StatusError, StatusStopped},
}

// CanApply reports whether action is allowed from status.
func CanApply(status Status, action Action) bool {
	for _, s := range allowedFrom[action] {
		if s == status {
			return true
		}
	}
	return false
}

// Apply computes the item that results from applying ev to item. It performs no
// I/O and does not modify its argument. An action that is not allowed from the
// item's status yields ErrInvalidTransition and the item unchanged.
func Apply(item Item, ev Event) (Item, error) {
	if !CanApply(item.Status, ev.Action) {
		return item, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev.Action, item.Status)
	}

	next := item
	switch ev.Action {
	case ActionStart:
		next.Status = StatusProcessing
		next.ErrorMessage = ""

	case ActionSucceed:
		if !ev.Result.Complete() {
			return item, fmt.Errorf("%w: succeed requires a complete result", ErrInvalidTransition)
		}
		next.Status = StatusDone
		next.Result = ev.Result
		next.ErrorMessage = ""
		next.ArtifactID = ev.ArtifactID
		next.Harvested = false
		next.CompletedAt = ev.At

	case ActionFail:
		next.Status = StatusError
		next.ErrorMessage = ev.Message
		next.CompletedAt = ev.At

	case ActionWait:
		next.Status = StatusWaiting
		next.ErrorMessage = ev.Message
		next.WaitReason = ev.Reason
		next.WaitRemaining = ev.Remaining

	case ActionTick:
		next.WaitRemaining = ev.Remaining

	case ActionRetry:
		next.Status = StatusPending
		next.RetryCount = item.RetryCount + 1
		clearWait(&next)
		next.ErrorMessage = ""

	case ActionStop:
		next.Status = StatusStopped
		next.ErrorMessage = ev.Message

	case ActionRevert:
		next.Status = StatusPending
		clearWait(&next)

	case ActionResume:
		next.Status = StatusPending
		next.ErrorMessage = ""
		clearWait(&next)

	case ActionReset:
		next.Status = StatusPending
		next.ErrorMessage = ""
		next.RetryCount = 0
		next.CompletedAt = time.Time{}
		clearWait(&next)
	}

	return next, nil
}

func clearWait(it *Item) {
	it.WaitRemaining = 0
	it.WaitReason = ""
}
