package workqueue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the pool state change behind a DispatchEvent.
type EventKind int

const (
	EventInserted EventKind = iota
	EventStarted
	EventFinished
	EventCleared
	EventWorkerStarted
	EventWorkerStopped
	EventShutdown
)

func (k EventKind) String() string {
	switch k {
	case EventInserted:
		return "inserted"
	case EventStarted:
		return "started"
	case EventFinished:
		return "finished"
	case EventCleared:
		return "cleared"
	case EventWorkerStarted:
		return "worker_started"
	case EventWorkerStopped:
		return "worker_stopped"
	case EventShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// DispatchEvent is a point-in-time snapshot of the pool taken right after a
// state change. Counts from concurrent events may be observed out of order.
type DispatchEvent struct {
	Kind     EventKind
	Running  int
	Pending  int
	Workers  int
	ItemID   uuid.UUID
	ItemName string
	// Dropped is set on EventCleared and EventShutdown.
	Dropped int
	// Panicked is set on EventFinished when the item panicked.
	Panicked bool
	Time     time.Time
}

// Label renders the compact "[busy/workers]" task indicator, where busy
// counts running and pending items.
func (e DispatchEvent) Label() string {
	return fmt.Sprintf("[%d/%d]", e.Running+e.Pending, e.Workers)
}

// DispatchFunc receives dispatch events. It runs on the goroutine that
// changed the pool state and must not block or call back into the pool.
type DispatchFunc func(DispatchEvent)
