// Package workqueue provides a FIFO work queue drained by a pool of worker
// goroutines.
//
// Work items are closures. Each worker takes one item, runs it to
// completion and only then asks for the next one, so a slow item pins one
// worker and nothing else. Items never get aborted by the queue: Clear drops
// what has not started yet, and started items always finish.
//
// Pools report every state change through dispatch events carrying the
// running, pending and worker counts at that instant.
package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by Queue and Pool.
var (
	ErrQueueClosed = errors.New("workqueue: queue is closed")
	ErrQueueFull   = errors.New("workqueue: queue is full")
)

// Func is the body of a work item.
//
// The context is cancelled only when a pool shutdown deadline expires;
// items are expected to return promptly once it is done.
type Func func(ctx context.Context)

// Item is one schedulable unit of work. Items are immutable once enqueued.
type Item struct {
	ID         uuid.UUID
	Name       string
	Fn         Func
	EnqueuedAt time.Time

	// OnDrop, if set, runs when Clear or Close drops the item before it
	// started. It runs without the queue lock held and must not block.
	OnDrop func()
}

// NewItem creates an item with a fresh ID.
func NewItem(name string, fn Func) Item {
	return Item{
		ID:         uuid.New(),
		Name:       name,
		Fn:         fn,
		EnqueuedAt: time.Now(),
	}
}

// Queue is a thread-safe FIFO of pending items.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []Item
	head     int
	closed   bool
	capacity int
}

// NewQueue creates an empty queue. A capacity of zero means unbounded.
func NewQueue(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Insert appends an item to the tail.
func (q *Queue) Insert(item Item) error {
	if item.Fn == nil {
		return fmt.Errorf("workqueue: item %q has no func", item.Name)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.capacity > 0 && q.lenLocked() >= q.capacity {
		return fmt.Errorf("%w: capacity %d reached", ErrQueueFull, q.capacity)
	}

	q.items = append(q.items, item)
	q.cond.Signal()
	return nil
}

// Pop removes and returns the head item, blocking until one is available.
// It returns false once the queue is closed.
func (q *Queue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.lenLocked() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return Item{}, false
	}

	item := q.items[q.head]
	q.items[q.head] = Item{}
	q.head++
	q.compactLocked()
	return item, true
}

// TryPop is the non-blocking variant of Pop.
func (q *Queue) TryPop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.lenLocked() == 0 {
		return Item{}, false
	}
	item := q.items[q.head]
	q.items[q.head] = Item{}
	q.head++
	q.compactLocked()
	return item, true
}

// Clear drops every item that has not been popped yet and returns how many
// were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	n, hooks := q.clearLocked()
	q.mu.Unlock()

	runDropHooks(hooks)
	return n
}

// Close permanently closes the queue, drops pending items and wakes every
// blocked Pop. It returns the number of dropped items.
func (q *Queue) Close() int {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0
	}
	q.closed = true
	n, hooks := q.clearLocked()
	q.cond.Broadcast()
	q.mu.Unlock()

	runDropHooks(hooks)
	return n
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) lenLocked() int {
	return len(q.items) - q.head
}

// clearLocked empties the queue and returns the drop hooks of the removed
// items for the caller to run once the lock is released.
func (q *Queue) clearLocked() (int, []func()) {
	n := q.lenLocked()
	var hooks []func()
	for _, item := range q.items[q.head:] {
		if item.OnDrop != nil {
			hooks = append(hooks, item.OnDrop)
		}
	}
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
	return n, hooks
}

func runDropHooks(hooks []func()) {
	for _, fn := range hooks {
		fn()
	}
}

// compactLocked reclaims the consumed prefix once it dominates the slice.
func (q *Queue) compactLocked() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}
