package runner

import (
	"time"

	"github.com/joss/chore/internal/summary"
)

// EventKind identifies a task lifecycle notification.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventCached  EventKind = "cached"
	EventSuccess EventKind = "success"
	EventFailed  EventKind = "failed"
	EventSkipped EventKind = "skipped"
)

// Event is one task lifecycle notification, consumed by the progress
// UI and by log followers.
type Event struct {
	Kind        EventKind
	TaskID      string
	CacheStatus summary.CacheStatus
	Duration    time.Duration
	Err         error
}

// EventSink receives lifecycle events. Implementations must be safe
// for concurrent use; sibling tasks interleave arbitrarily.
type EventSink interface {
	TaskEvent(Event)
}

// emit sends an event when a sink is configured.
func emit(sink EventSink, e Event) {
	if sink != nil {
		sink.TaskEvent(e)
	}
}
