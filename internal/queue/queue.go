package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-import/internal/events"
	"github.com/phrazzld/scry-import/internal/generation"
)

// Library is the set of filenames already persisted downstream. Has receives
// keys produced by NormalizeKey.
type Library interface {
	Has(key string) bool
}

// LibrarySet is an in-memory Library.
type LibrarySet map[string]struct{}

// NewLibrarySet builds a LibrarySet from raw filenames.
func NewLibrarySet(filenames ...string) LibrarySet {
	s := make(LibrarySet, len(filenames))
	for _, f := range filenames {
		s[NormalizeKey(f)] = struct{}{}
	}
	return s
}

// Has implements Library.
func (s LibrarySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Rejection describes a payload refused by Submit.
type Rejection struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

// SubmitResult lists the outcome of a Submit call.
type SubmitResult struct {
	Accepted []Item      `json:"accepted"`
	Rejected []Rejection `json:"rejected"`
}

// Option configures a Queue.
type Option func(*Queue)

// WithEmitter publishes queue lifecycle events to emitter.
func WithEmitter(emitter events.EventEmitter) Option {
	return func(q *Queue) { q.emitter = emitter }
}

// WithSleep replaces the function used for the post-success cooldown.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(q *Queue) { q.sleep = sleep }
}

// WithClock replaces the time source used for item timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Queue owns an ordered list of items and the single run that may process them.
type Queue struct {
	analyzer generation.Analyzer
	policy   Policy
	logger   *slog.Logger
	emitter  events.EventEmitter
	waiter   *Waiter
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time

	mu    sync.Mutex
	items []*Item
	run   *runState
}

// runState is the token held by the active run.
type runState struct {
	id            uuid.UUID
	stopRequested atomic.Bool
	// consecutive is only touched by the driver goroutine.
	consecutive int
}

// New creates an empty Queue.
func New(analyzer generation.Analyzer, policy Policy, logger *slog.Logger, opts ...Option) (*Queue, error) {
	if analyzer == nil {
		return nil, ErrNilAnalyzer
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		analyzer: analyzer,
		policy:   policy,
		logger:   logger.With("component", "import_queue"),
		waiter:   NewWaiter(policy.Tick),
		sleep:    sleepContext,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Policy returns the policy the queue was created with.
func (q *Queue) Policy() Policy {
	return q.policy
}

// Submit appends a pending item for every acceptable payload. A payload is
// rejected when it has no filename or data, when its key repeats within the
// batch, when a queued item with the same key is not in error, or when library
// already contains it. A payload whose key belongs to an errored item replaces
// that item at the same position, so a key is never queued twice. Submit is
// allowed while a run is in progress; the run reaches new items after the
// existing ones.
func (q *Queue) Submit(ctx context.Context, payloads []Payload, library Library) SubmitResult {
	q.mu.Lock()
	res := q.appendLocked(payloads, library)
	q.mu.Unlock()

	q.emitSubmission(ctx, res)
	return res
}

// Replace swaps the whole item list for the given payloads.
func (q *Queue) Replace(ctx context.Context, payloads []Payload, library Library) (SubmitResult, error) {
	q.mu.Lock()
	if q.run != nil {
		q.mu.Unlock()
		return SubmitResult{}, ErrRunInProgress
	}
	q.items = nil
	res := q.appendLocked(payloads, library)
	q.mu.Unlock()

	q.emitSubmission(ctx, res)
	return res, nil
}

func (q *Queue) appendLocked(payloads []Payload, library Library) SubmitResult {
	res := SubmitResult{Accepted: []Item{}, Rejected: []Rejection{}}

	queued := make(map[string]bool, len(q.items))
	errored := make(map[string]int)
	for i, it := range q.items {
		if it.Status == StatusError {
			errored[it.Payload.Key()] = i
		} else {
			queued[it.Payload.Key()] = true
		}
	}
	batch := make(map[string]bool, len(payloads))

	for _, p := range payloads {
		key := p.Key()
		var err error
		switch {
		case key == "" || len(p.Data) == 0:
			err = fmt.Errorf("%w: filename and data are required", ErrInvalidPayload)
		case batch[key]:
			err = fmt.Errorf("%w: repeated in batch", ErrDuplicatePayload)
		case queued[key]:
			err = fmt.Errorf("%w: already queued", ErrDuplicatePayload)
		case library != nil && library.Has(key):
			err = fmt.Errorf("%w: already in library", ErrDuplicatePayload)
		}
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{Filename: p.Filename, Reason: err.Error(), Err: err})
			continue
		}

		batch[key] = true
		it := NewItem(p)
		it.CreatedAt = q.now()
		if i, ok := errored[key]; ok {
			q.items[i] = &it
		} else {
			q.items = append(q.items, &it)
		}
		res.Accepted = append(res.Accepted, it.Clone())
	}
	return res
}

// Remove deletes one item. It is refused while a run is in progress.
func (q *Queue) Remove(id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.run != nil {
		return ErrRunInProgress
	}
	for i, it := range q.items {
		if it.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

// Clear deletes every item. It is refused while a run is in progress.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.run != nil {
		return ErrRunInProgress
	}
	q.items = nil
	return nil
}

// Items returns a snapshot of every item in queue order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Queue) snapshotLocked() []Item {
	out := make([]Item, len(q.items))
	for i, it := range q.items {
		out[i] = it.Clone()
	}
	return out
}

// Item returns a snapshot of one item.
func (q *Queue) Item(id uuid.UUID) (Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.ID == id {
			return it.Clone(), nil
		}
	}
	return Item{}, ErrItemNotFound
}

// Stats returns item counts per status.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return computeStats(q.items)
}

// Running reports whether a run currently owns the queue.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.run != nil
}

// RequestStop asks the active run to stop at its next suspension point. The
// analysis call in flight, if any, is allowed to finish.
func (q *Queue) RequestStop() error {
	q.mu.Lock()
	run := q.run
	q.mu.Unlock()
	if run == nil {
		return ErrNoRunInProgress
	}
	if !run.stopRequested.Swap(true) {
		q.logger.Info("stop requested", "run_id", run.id)
	}
	return nil
}

// SkipWait ends the countdown of the waiting item so it is retried immediately.
func (q *Queue) SkipWait() error {
	if !q.Running() {
		return ErrNoRunInProgress
	}
	if !q.waiter.Skip() {
		return ErrNotWaiting
	}
	q.logger.Info("wait skipped by operator")
	return nil
}

func (q *Queue) emitSubmission(ctx context.Context, res SubmitResult) {
	for _, it := range res.Accepted {
		ev := events.NewQueueEvent(events.ItemSubmitted)
		ev.ItemID = it.ID
		ev.Filename = it.Payload.Filename
		ev.To = string(it.Status)
		q.emit(ctx, ev)
	}
	for _, r := range res.Rejected {
		ev := events.NewQueueEvent(events.ItemRejected)
		ev.Filename = r.Filename
		ev.Message = r.Reason
		q.emit(ctx, ev)
	}
	if len(res.Rejected) > 0 {
		q.logger.Info("payloads rejected at submission",
			"accepted", len(res.Accepted),
			"rejected", len(res.Rejected))
	}
}

func (q *Queue) emit(ctx context.Context, ev *events.QueueEvent) {
	if q.emitter == nil {
		return
	}
	if err := q.emitter.EmitEvent(ctx, ev); err != nil {
		q.logger.Debug("event handler returned error", "event_type", ev.Type, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
