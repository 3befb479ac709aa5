package workqueue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config holds pool configuration.
type Config struct {
	// Workers is the number of workers started by Start.
	// Zero or negative falls back to 1.
	Workers int

	// MaxPending bounds the queue. Zero means unbounded.
	MaxPending int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Workers: 8,
	}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Running  int    `json:"running"`
	Pending  int    `json:"pending"`
	Workers  int    `json:"workers"`
	Executed uint64 `json:"executed"`
	Panicked uint64 `json:"panicked"`
	Dropped  uint64 `json:"dropped"`
	Closed   bool   `json:"closed"`
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithDispatch registers a dispatch listener at construction time.
func WithDispatch(fn DispatchFunc) Option {
	return func(p *Pool) {
		p.listeners = append(p.listeners, fn)
	}
}

type (
	workerIDKey struct{}
	itemIDKey   struct{}
)

// WorkerID returns the ID of the worker running the item that owns ctx.
func WorkerID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(workerIDKey{}).(int)
	return id, ok
}

// ItemID returns the ID of the item that owns ctx.
func ItemID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(itemIDKey{}).(uuid.UUID)
	return id, ok
}

// Pool runs items from one Queue on a growing set of workers.
type Pool struct {
	cfg    Config
	queue  *Queue
	logger *slog.Logger

	// ctx is handed to items; it is cancelled when a shutdown deadline expires.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running  atomic.Int64
	workers  atomic.Int64
	nextID   atomic.Int64
	executed atomic.Uint64
	panicked atomic.Uint64
	dropped  atomic.Uint64

	listenersMu sync.RWMutex
	listeners   []DispatchFunc

	// lifecycleMu orders StartWorker against Shutdown so no worker is added
	// after the WaitGroup is being waited on.
	lifecycleMu  sync.Mutex
	shutdownOnce sync.Once
	stopped      chan struct{}
}

// NewPool creates a pool. No worker runs until Start or StartWorker.
func NewPool(cfg Config, opts ...Option) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:     cfg,
		queue:   NewQueue(cfg.MaxPending),
		logger:  slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.Workers <= 0 {
		p.logger.Warn("invalid worker count specified, using default",
			"specified_count", cfg.Workers,
			"default_count", 1)
		p.cfg.Workers = 1
	}
	return p
}

// Start launches the configured number of workers.
func (p *Pool) Start() error {
	for i := 0; i < p.cfg.Workers; i++ {
		if err := p.StartWorker(); err != nil {
			return err
		}
	}
	p.logger.Info("worker pool started", "workers", p.cfg.Workers)
	return nil
}

// StartWorker adds one worker to the pool.
func (p *Pool) StartWorker() error {
	p.lifecycleMu.Lock()
	if p.queue.Closed() {
		p.lifecycleMu.Unlock()
		return ErrQueueClosed
	}
	id := int(p.nextID.Add(1))
	p.wg.Add(1)
	p.workers.Add(1)
	p.lifecycleMu.Unlock()

	go p.work(id)

	p.emit(DispatchEvent{Kind: EventWorkerStarted})
	return nil
}

// Submit enqueues fn under the given step name.
func (p *Pool) Submit(name string, fn Func) (uuid.UUID, error) {
	return p.SubmitItem(NewItem(name, fn))
}

// SubmitItem enqueues a prepared item. A missing ID or enqueue time is
// filled in. The item's OnDrop does not run when SubmitItem fails.
func (p *Pool) SubmitItem(item Item) (uuid.UUID, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}
	if err := p.queue.Insert(item); err != nil {
		return uuid.Nil, err
	}
	p.emit(DispatchEvent{Kind: EventInserted, ItemID: item.ID, ItemName: item.Name})
	return item.ID, nil
}

// Clear drops every item that has not started. Running items finish.
func (p *Pool) Clear() int {
	n := p.queue.Clear()
	p.dropped.Add(uint64(n))
	p.emit(DispatchEvent{Kind: EventCleared, Dropped: n})
	if n > 0 {
		p.logger.Debug("work queue cleared", "dropped", n)
	}
	return n
}

// Shutdown closes the queue, drops pending items and waits for running
// items and workers to finish. Items submitted during shutdown fail with
// ErrQueueClosed. If ctx expires first, the items' context is cancelled and
// ctx.Err() is returned; workers still exit once their items return.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.lifecycleMu.Lock()
		n := p.queue.Close()
		p.lifecycleMu.Unlock()

		p.dropped.Add(uint64(n))
		p.emit(DispatchEvent{Kind: EventShutdown, Dropped: n})
		p.logger.Info("worker pool shutting down",
			"dropped", n,
			"running", p.running.Load())

		go func() {
			p.wg.Wait()
			p.cancel()
			close(p.stopped)
		}()
	})

	select {
	case <-p.stopped:
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		p.logger.Warn("worker pool shutdown timed out",
			"running", p.running.Load())
		return ctx.Err()
	}
}

// Done is closed once every worker has exited after Shutdown.
func (p *Pool) Done() <-chan struct{} {
	return p.stopped
}

// OnDispatch registers a dispatch listener.
func (p *Pool) OnDispatch(fn DispatchFunc) {
	p.listenersMu.Lock()
	p.listeners = append(p.listeners, fn)
	p.listenersMu.Unlock()
}

// Stats returns the current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Running:  int(p.running.Load()),
		Pending:  p.queue.Len(),
		Workers:  int(p.workers.Load()),
		Executed: p.executed.Load(),
		Panicked: p.panicked.Load(),
		Dropped:  p.dropped.Load(),
		Closed:   p.queue.Closed(),
	}
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	defer func() {
		p.workers.Add(-1)
		p.emit(DispatchEvent{Kind: EventWorkerStopped})
	}()

	ctx := context.WithValue(p.ctx, workerIDKey{}, id)
	for {
		item, ok := p.queue.Pop()
		if !ok {
			return
		}

		p.running.Add(1)
		p.emit(DispatchEvent{Kind: EventStarted, ItemID: item.ID, ItemName: item.Name})

		panicked := p.execute(ctx, id, item)

		p.running.Add(-1)
		p.executed.Add(1)
		p.emit(DispatchEvent{
			Kind:     EventFinished,
			ItemID:   item.ID,
			ItemName: item.Name,
			Panicked: panicked,
		})
	}
}

// execute runs one item, containing any panic to that item.
func (p *Pool) execute(ctx context.Context, workerID int, item Item) (panicked bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			p.panicked.Add(1)
			p.logger.Error("work item panicked",
				"item_id", item.ID,
				"step", item.Name,
				"worker_id", workerID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()

	item.Fn(context.WithValue(ctx, itemIDKey{}, item.ID))

	p.logger.Debug("work item finished",
		"item_id", item.ID,
		"step", item.Name,
		"worker_id", workerID,
		"queued_for", start.Sub(item.EnqueuedAt),
		"duration", time.Since(start))
	return false
}

func (p *Pool) emit(ev DispatchEvent) {
	ev.Running = int(p.running.Load())
	ev.Pending = p.queue.Len()
	ev.Workers = int(p.workers.Load())
	ev.Time = time.Now()

	p.listenersMu.RLock()
	listeners := make([]DispatchFunc, len(p.listeners))
	copy(listeners, p.listeners)
	p.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
