package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/phrazzld/scry-import/internal/events"
	"github.com/phrazzld/scry-import/internal/queue"
)

// progressPrinter writes one line per noteworthy queue event.
type progressPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

// HandleEvent implements events.EventHandler.
func (p *progressPrinter) HandleEvent(_ context.Context, e *events.QueueEvent) error {
	line := formatEvent(e)
	if line == "" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.out, line)
	return err
}

func formatEvent(e *events.QueueEvent) string {
	switch e.Type {
	case events.ItemRejected:
		return fmt.Sprintf("skip   %s: %s", e.Filename, e.Reason)
	case events.ItemTransitioned:
		switch queue.Status(e.To) {
		case queue.StatusProcessing:
			return fmt.Sprintf("start  %s", e.Filename)
		case queue.StatusDone:
			return fmt.Sprintf("done   %s (%s)", e.Filename, e.Elapsed.Round(time.Millisecond))
		case queue.StatusError:
			return fmt.Sprintf("error  %s: %s", e.Filename, e.Message)
		case queue.StatusWaiting:
			return fmt.Sprintf("wait   %s: %s, retrying in %ds (enter s to skip)", e.Filename, e.Reason, e.WaitRemaining)
		case queue.StatusStopped:
			return fmt.Sprintf("stop   %s", e.Filename)
		}
	case events.WaitTick:
		if e.WaitRemaining > 0 && e.WaitRemaining%10 == 0 {
			return fmt.Sprintf("wait   %s: %ds left", e.Filename, e.WaitRemaining)
		}
	case events.RunFinished:
		return fmt.Sprintf("run %s after %s", e.Reason, e.Elapsed.Round(time.Millisecond))
	}
	return ""
}
