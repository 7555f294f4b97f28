package events

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

type subscription struct {
	handler EventHandler
	types   []Type
}

func (s subscription) wants(t Type) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// Dispatcher fans queue events out to subscribed handlers synchronously, in
// subscription order.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

// NewDispatcher returns a Dispatcher with no subscribers.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger.With("component", "event_dispatcher")}
}

// Subscribe registers h for the given event types, or for every type when
// none are given.
func (d *Dispatcher) Subscribe(h EventHandler, types ...Type) {
	d.mu.Lock()
	d.subs = append(d.subs, subscription{handler: h, types: types})
	n := len(d.subs)
	d.mu.Unlock()

	d.logger.Debug("event handler subscribed", "subscriber_count", n, "types", types)
}

// EmitEvent delivers event to every interested handler. A failing handler
// does not stop delivery; all failures are joined into the returned error.
func (d *Dispatcher) EmitEvent(ctx context.Context, event *QueueEvent) error {
	d.mu.RLock()
	subs := slices.Clone(d.subs)
	d.mu.RUnlock()

	var errs []error
	for i, s := range subs {
		if !s.wants(event.Type) {
			continue
		}
		if err := s.handler.HandleEvent(ctx, event); err != nil {
			d.logger.Error("event handler failed",
				"error", err,
				"subscriber", i,
				"event_id", event.ID,
				"event_type", event.Type)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
