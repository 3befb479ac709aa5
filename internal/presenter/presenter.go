// Package presenter owns the presentation model.
//
// Worker goroutines never touch the model. They hand updates to the
// Presenter, which applies them one at a time on its own goroutine,
// publishes an immutable snapshot for readers and fans events out to
// subscribers. An update bound to a guarded object is dropped on the loop if
// the object has been invalidated by the time the update is applied, so a
// result computed just before a rescan can never resurrect a cleared row.
package presenter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/onvifmesh-go/pkg/guard"
)

// ErrStopped is returned when posting to a presenter that has stopped.
var ErrStopped = errors.New("presenter: stopped")

// Update is one change to the view.
type Update struct {
	// Kind names the change in emitted events (e.g. "row.thumbnail").
	Kind string
	// Subject is the device or prompt ID the change concerns.
	Subject string
	// Owner, if set, must still be valid when the update is applied.
	Owner guard.Guarded
	Apply func(v *View)

	done chan struct{}
}

// Event is emitted to subscribers after an update has been applied.
type Event struct {
	Kind    string    `json:"kind"`
	Subject string    `json:"subject,omitempty"`
	Version uint64    `json:"version"`
	Row     *Row      `json:"row,omitempty"`
	Time    time.Time `json:"time"`
}

// Stats are presenter counters.
type Stats struct {
	Applied uint64 `json:"applied"`
	Stale   uint64 `json:"stale"`
	Dropped uint64 `json:"dropped"`
}

type subscriber struct {
	ch      chan Event
	dropped atomic.Uint64
}

// Presenter applies updates on a single goroutine.
type Presenter struct {
	updates chan Update
	logger  *slog.Logger

	snapshot atomic.Pointer[Snapshot]

	subMu sync.RWMutex
	subs  map[string]*subscriber

	applied atomic.Uint64
	stale   atomic.Uint64
	dropped atomic.Uint64

	lifeMu   sync.Mutex
	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a presenter with room for buffer pending updates.
func New(buffer int, logger *slog.Logger) *Presenter {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Presenter{
		updates: make(chan Update, buffer),
		logger:  logger,
		subs:    make(map[string]*subscriber),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	p.snapshot.Store(newView().snapshot(0))
	return p
}

// Run applies updates until ctx is done or Stop is called.
func (p *Presenter) Run(ctx context.Context) {
	p.lifeMu.Lock()
	select {
	case <-p.stop:
		p.lifeMu.Unlock()
		return
	default:
	}
	p.started = true
	p.lifeMu.Unlock()

	defer close(p.done)
	defer p.stopOnce.Do(func() { close(p.stop) })

	view := newView()
	var version uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case u := <-p.updates:
			version = p.apply(view, version, u)
		}
	}
}

func (p *Presenter) apply(view *View, version uint64, u Update) uint64 {
	if u.done != nil {
		defer close(u.done)
	}
	if u.Apply == nil {
		return version
	}
	if u.Owner != nil && !u.Owner.IsValid() {
		p.stale.Add(1)
		p.logger.Debug("dropping update for invalidated object",
			"kind", u.Kind,
			"subject", u.Subject)
		return version
	}

	u.Apply(view)
	version++
	p.applied.Add(1)

	snap := view.snapshot(version)
	p.snapshot.Store(snap)

	ev := Event{Kind: u.Kind, Subject: u.Subject, Version: version, Time: time.Now()}
	if row, ok := snap.Row(u.Subject); ok {
		ev.Row = &row
	}
	p.publish(ev)
	return version
}

// Post hands an update to the loop, blocking while the buffer is full.
func (p *Presenter) Post(u Update) error {
	select {
	case <-p.stop:
		return ErrStopped
	default:
	}
	select {
	case p.updates <- u:
		return nil
	case <-p.stop:
		return ErrStopped
	}
}

// TryPost hands an update to the loop without blocking. Updates that do not
// fit are dropped and counted.
func (p *Presenter) TryPost(u Update) bool {
	select {
	case <-p.stop:
		return false
	default:
	}
	select {
	case p.updates <- u:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

// Flush waits until every update posted before the call has been applied.
func (p *Presenter) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := p.Post(Update{Kind: "flush", done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the latest applied view.
func (p *Presenter) Snapshot() *Snapshot {
	return p.snapshot.Load()
}

// Subscribe registers a subscriber and returns its event channel. Events
// that do not fit in the buffer are dropped for that subscriber only.
func (p *Presenter) Subscribe(id string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	s := &subscriber{ch: make(chan Event, buffer)}

	p.subMu.Lock()
	if old, ok := p.subs[id]; ok {
		close(old.ch)
	}
	p.subs[id] = s
	p.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.subMu.Lock()
			if cur, ok := p.subs[id]; ok && cur == s {
				delete(p.subs, id)
				close(s.ch)
			}
			p.subMu.Unlock()
		})
	}
	return s.ch, cancel
}

func (p *Presenter) publish(ev Event) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()

	for _, s := range p.subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
		}
	}
}

// Stop ends the loop and waits for it to exit.
func (p *Presenter) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })

	p.lifeMu.Lock()
	started := p.started
	p.lifeMu.Unlock()
	if started {
		<-p.done
	}

	p.subMu.Lock()
	for id, s := range p.subs {
		close(s.ch)
		delete(p.subs, id)
	}
	p.subMu.Unlock()
}

// Stats returns presenter counters.
func (p *Presenter) Stats() Stats {
	return Stats{
		Applied: p.applied.Load(),
		Stale:   p.stale.Load(),
		Dropped: p.dropped.Load(),
	}
}
