package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-import/internal/events"
	"github.com/phrazzld/scry-import/internal/generation"
	"github.com/phrazzld/scry-import/internal/redact"
)

// Termination is the reason a run ended.
type Termination string

const (
	// TerminationFinished means every reachable item was attempted.
	TerminationFinished Termination = "finished"
	// TerminationCancelled means a stop was requested or the context ended.
	TerminationCancelled Termination = "cancelled"
	// TerminationQuotaExhausted means the consecutive rate-limit ceiling was hit.
	// Callers typically prompt for new credentials before running again.
	TerminationQuotaExhausted Termination = "quota_exhausted"
)

// Messages stored on items by the driver.
const (
	msgStopped         = "cancelled, resumable"
	msgTooManyAttempts = "too many attempts"
)

// RunResult summarises one driver invocation.
type RunResult struct {
	ID              uuid.UUID   `json:"id"`
	Reason          Termination `json:"reason"`
	RetryErrorsOnly bool        `json:"retry_errors_only"`
	StartedAt       time.Time   `json:"started_at"`
	FinishedAt      time.Time   `json:"finished_at"`

	Attempts  int `json:"attempts"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Retried   int `json:"retried"`

	// Items is the item list as the run left it.
	Items []Item `json:"items"`
}

// Run processes pending items in index order until none remain, a stop is
// requested, ctx ends, or the consecutive rate-limit ceiling is reached.
//
// Stopped items are resumed as pending first. With retryErrorsOnly, error and
// stopped items are reset to pending with a zero retry count instead.
//
// Per-item failures are recorded on the items. The only error returned is
// ErrRunInProgress when another run already owns the queue.
func (q *Queue) Run(ctx context.Context, retryErrorsOnly bool) (RunResult, error) {
	q.mu.Lock()
	if q.run != nil {
		q.mu.Unlock()
		return RunResult{}, ErrRunInProgress
	}
	run := &runState{id: uuid.New()}
	q.run = run
	q.mu.Unlock()

	log := q.logger.With("run_id", run.id)
	res := RunResult{ID: run.id, RetryErrorsOnly: retryErrorsOnly, StartedAt: q.now()}

	defer func() {
		q.mu.Lock()
		if q.run == run {
			q.run = nil
		}
		q.mu.Unlock()
	}()

	q.prepare(ctx, retryErrorsOnly)

	start := events.NewQueueEvent(events.RunStarted)
	start.Reason = runMode(retryErrorsOnly)
	q.emit(ctx, start)
	log.Info("queue run started", "retry_errors_only", retryErrorsOnly, "pending", q.Stats().Count(StatusPending))

	res.Reason = q.drive(ctx, run, &res, log)

	q.mu.Lock()
	res.Items = q.snapshotLocked()
	q.mu.Unlock()
	res.FinishedAt = q.now()

	finish := events.NewQueueEvent(events.RunFinished)
	finish.Reason = string(res.Reason)
	finish.Elapsed = res.FinishedAt.Sub(res.StartedAt)
	q.emit(ctx, finish)

	log.Info("queue run finished",
		"reason", res.Reason,
		"attempts", res.Attempts,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"retried", res.Retried,
		"duration_ms", finish.Elapsed.Milliseconds())

	return res, nil
}

// prepare returns stopped items to pending, or resets failed ones.
func (q *Queue) prepare(ctx context.Context, retryErrorsOnly bool) {
	q.mu.Lock()
	targets := make([]*Item, 0)
	for _, it := range q.items {
		if it.Status == StatusStopped || (retryErrorsOnly && it.Status == StatusError) {
			targets = append(targets, it)
		}
	}
	q.mu.Unlock()

	action := ActionResume
	if retryErrorsOnly {
		action = ActionReset
	}
	for _, it := range targets {
		_, _ = q.transition(ctx, it, Event{Action: action})
	}
}

func (q *Queue) drive(ctx context.Context, run *runState, res *RunResult, log *slog.Logger) Termination {
	for i := 0; ; {
		q.mu.Lock()
		if i >= len(q.items) {
			q.mu.Unlock()
			return TerminationFinished
		}
		it := q.items[i]
		status := it.Status
		q.mu.Unlock()

		if status != StatusPending {
			i++
			continue
		}
		if run.stopRequested.Load() || ctx.Err() != nil {
			return TerminationCancelled
		}
		if run.consecutive >= q.policy.MaxConsecutiveRateLimits {
			log.Warn("consecutive rate limit ceiling reached, aborting run",
				"consecutive", run.consecutive)
			return TerminationQuotaExhausted
		}

		snap, err := q.transition(ctx, it, Event{Action: ActionStart})
		if err != nil {
			i++
			continue
		}
		res.Attempts++
		itemLog := log.With("item_id", snap.ID, "filename", snap.Payload.Filename)

		started := time.Now()
		result, err := q.analyzer.Analyze(ctx, snap.Payload.Image())
		elapsed := time.Since(started)

		if err == nil && !result.Complete() {
			err = fmt.Errorf("%w: analyzer returned an incomplete result", generation.ErrInvalidResponse)
		}

		if err == nil {
			_, _ = q.transition(ctx, it, Event{
				Action:     ActionSucceed,
				Result:     result,
				ArtifactID: uuid.New(),
				At:         q.now(),
			}, withElapsed(elapsed))
			res.Succeeded++
			run.consecutive = 0
			itemLog.Debug("item analyzed", "elapsed_ms", elapsed.Milliseconds())

			if q.policy.Cooldown > 0 && !run.stopRequested.Load() && q.hasPendingAfter(i) {
				// ctx errors surface at the top of the loop
				_ = q.sleep(ctx, q.policy.Cooldown)
			}
			i++
			continue
		}

		if ctx.Err() != nil {
			_, _ = q.transition(ctx, it, Event{Action: ActionStop, Message: msgStopped}, withElapsed(elapsed))
			itemLog.Info("item stopped by shutdown")
			return TerminationCancelled
		}

		class := Classify(err)
		msg := redact.Message(err, q.policy.ErrorMessageMaxLength)

		if !class.Transient() {
			_, _ = q.transition(ctx, it, Event{Action: ActionFail, Message: msg, At: q.now()}, withElapsed(elapsed))
			res.Failed++
			itemLog.Warn("item failed permanently", "error", redact.Error(err))
			i++
			continue
		}

		if q.policy.countsTowardHardStop(class) {
			run.consecutive++
		}

		if snap.RetryCount >= q.policy.MaxRetries {
			_, _ = q.transition(ctx, it, Event{
				Action:  ActionFail,
				Message: redact.Truncate(msgTooManyAttempts+": "+msg, q.policy.ErrorMessageMaxLength),
				At:      q.now(),
			}, withElapsed(elapsed))
			res.Failed++
			itemLog.Warn("retry budget exhausted",
				"error_class", class.String(),
				"retry_count", snap.RetryCount)
			i++
			continue
		}

		if run.consecutive >= q.policy.MaxConsecutiveRateLimits {
			_, _ = q.transition(ctx, it, Event{Action: ActionRevert}, withElapsed(elapsed))
			log.Warn("consecutive rate limit ceiling reached, aborting run",
				"consecutive", run.consecutive,
				"item_id", snap.ID)
			return TerminationQuotaExhausted
		}

		seconds := q.policy.WaitSeconds(class, snap.RetryCount)
		_, _ = q.transition(ctx, it, Event{
			Action:    ActionWait,
			Message:   msg,
			Reason:    class.String(),
			Remaining: seconds,
		}, withElapsed(elapsed))
		itemLog.Warn("transient failure, waiting before retry",
			"error_class", class.String(),
			"retry_count", snap.RetryCount,
			"wait_seconds", seconds)

		outcome := q.waiter.Wait(ctx, seconds, run.stopRequested.Load, func(remaining int) {
			if remaining == seconds {
				return
			}
			_, _ = q.transition(ctx, it, Event{Action: ActionTick, Remaining: remaining})
		})

		if outcome == WaitCancelled {
			_, _ = q.transition(ctx, it, Event{Action: ActionStop, Message: msgStopped})
			itemLog.Info("wait cancelled, item left resumable")
			return TerminationCancelled
		}

		_, _ = q.transition(ctx, it, Event{Action: ActionRetry})
		res.Retried++
		itemLog.Debug("retrying item", "wait_outcome", outcome.String())
		// same index: the retried item goes before any later item
	}
}

func (q *Queue) hasPendingAfter(i int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items[i+1:] {
		if it.Status == StatusPending {
			return true
		}
	}
	return false
}

type transitionOption func(*events.QueueEvent)

func withElapsed(d time.Duration) transitionOption {
	return func(ev *events.QueueEvent) { ev.Elapsed = d }
}

// transition applies ev to it under the lock and publishes the change.
func (q *Queue) transition(ctx context.Context, it *Item, ev Event, opts ...transitionOption) (Item, error) {
	q.mu.Lock()
	from := it.Status
	next, err := Apply(*it, ev)
	if err == nil {
		*it = next
	}
	snap := it.Clone()
	q.mu.Unlock()

	if err != nil {
		q.logger.Error("rejected item transition", "item_id", snap.ID, "error", err)
		return snap, err
	}

	var qe *events.QueueEvent
	if ev.Action == ActionTick {
		qe = events.NewQueueEvent(events.WaitTick)
	} else {
		qe = events.NewQueueEvent(events.ItemTransitioned)
		qe.From = string(from)
	}
	qe.ItemID = snap.ID
	qe.Filename = snap.Payload.Filename
	qe.To = string(snap.Status)
	qe.RetryCount = snap.RetryCount
	qe.WaitRemaining = snap.WaitRemaining
	qe.Reason = snap.WaitReason
	qe.Message = snap.ErrorMessage
	for _, opt := range opts {
		opt(qe)
	}
	q.emit(ctx, qe)

	return snap, nil
}

func runMode(retryErrorsOnly bool) string {
	if retryErrorsOnly {
		return "retry_errors"
	}
	return "all_pending"
}
