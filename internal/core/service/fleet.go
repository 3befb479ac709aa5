package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/onvifmesh-go/internal/core/domain"
	"github.com/yndnr/onvifmesh-go/internal/onvif"
	"github.com/yndnr/onvifmesh-go/internal/player"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
	"github.com/yndnr/onvifmesh-go/internal/storage"
	"github.com/yndnr/onvifmesh-go/internal/telemetry/logger"
	"github.com/yndnr/onvifmesh-go/internal/telemetry/metric"
	"github.com/yndnr/onvifmesh-go/pkg/cmap"
	"github.com/yndnr/onvifmesh-go/pkg/guard"
	"github.com/yndnr/onvifmesh-go/pkg/registry"
	"github.com/yndnr/onvifmesh-go/pkg/workqueue"
)

// Step outcomes reported to Metrics.
const (
	OutcomeOK      = "ok"
	OutcomeStale   = "stale"
	OutcomeFailed  = "failed"
	OutcomeAuth    = "auth_required"
	OutcomeSkipped = "skipped"
	OutcomeDropped = "dropped"
)

// Inventory persists manually added devices and their credentials.
type Inventory interface {
	SaveDevice(ctx context.Context, rec storage.DeviceRecord) error
	ListDevices(ctx context.Context) ([]storage.DeviceRecord, error)
	DeleteDevice(ctx context.Context, endpoint string) error
	CanStoreCredentials() bool
	SaveCredentials(ctx context.Context, endpoint string, creds onvif.Credentials) error
	LoadCredentials(ctx context.Context, endpoint string) (onvif.Credentials, error)
}

// Metrics receives workflow observations.
type Metrics interface {
	ObservePool(ev workqueue.DispatchEvent)
	ObserveStep(step, outcome string, elapsed time.Duration)
	ObserveScan()
}

type nopMetrics struct{}

func (nopMetrics) ObservePool(workqueue.DispatchEvent) {}

func (nopMetrics) ObserveStep(string, string, time.Duration) {}

func (nopMetrics) ObserveScan() {}

// Config holds fleet behaviour settings.
type Config struct {
	// DiscoveryRepeat is the number of discovery requests sent per scan.
	DiscoveryRepeat int
	// DiscoveryTimeout bounds one scan.
	DiscoveryTimeout time.Duration
	// CallTimeout bounds every protocol call made by a step.
	CallTimeout time.Duration
	// ScanRate and ScanBurst limit how often a scan may be requested.
	ScanRate  float64
	ScanBurst int
	// StreamRetries bounds how often a failed stream is reopened before
	// the player is left stopped. Zero disables retries.
	StreamRetries int
	// StreamRetryDelay is the pause before a failed stream is reopened.
	StreamRetryDelay time.Duration
}

// DefaultConfig returns the default fleet configuration.
func DefaultConfig() Config {
	return Config{
		DiscoveryRepeat:  2,
		DiscoveryTimeout: 3 * time.Second,
		CallTimeout:      10 * time.Second,
		ScanRate:         0.2,
		ScanBurst:        2,
		StreamRetries:    3,
		StreamRetryDelay: time.Second,
	}
}

// Deps are the collaborators of a FleetService. Pool, Presenter, Factory,
// Discoverer and Player are required.
type Deps struct {
	Pool       *workqueue.Pool
	Presenter  *presenter.Presenter
	Factory    onvif.Factory
	Discoverer onvif.Discoverer
	Player     player.Player
	Resolver   Resolver
	Inventory  Inventory
	Metrics    Metrics
	Logger     *slog.Logger
}

// pendingPrompt is a credentials request waiting for an answer. Login
// prompts reference a registered device; add prompts own a client that is
// not yet part of the fleet.
type pendingPrompt struct {
	prompt presenter.Prompt
	device *domain.Device
	client onvif.Client
}

// FleetService manages the device fleet.
type FleetService struct {
	cfg        Config
	pool       *workqueue.Pool
	presenter  *presenter.Presenter
	factory    onvif.Factory
	discoverer onvif.Discoverer
	player     player.Player
	resolver   Resolver
	inventory  Inventory
	metrics    Metrics
	logger     *slog.Logger

	devices *registry.Registry[*domain.Device]
	prompts *cmap.Map[string, *pendingPrompt]
	limiter *rate.Limiter

	// fleetMu serialises scans, admissions and selection changes.
	fleetMu  sync.Mutex
	scan     *guard.Guard
	selected *domain.Device
	closed   bool

	// streamFailures counts failures of the current stream; a fresh
	// play resets it.
	streamFailures atomic.Int32
}

// NewFleetService creates a FleetService and subscribes it to pool
// dispatch notifications.
func NewFleetService(cfg Config, deps Deps) *FleetService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Resolver == nil {
		deps.Resolver = DNSResolver{}
	}
	if cfg.DiscoveryRepeat <= 0 {
		cfg.DiscoveryRepeat = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	limit := rate.Inf
	if cfg.ScanRate > 0 {
		limit = rate.Limit(cfg.ScanRate)
	}
	if cfg.ScanBurst <= 0 {
		cfg.ScanBurst = 1
	}
	if cfg.StreamRetries < 0 {
		cfg.StreamRetries = 0
	}

	s := &FleetService{
		cfg:        cfg,
		pool:       deps.Pool,
		presenter:  deps.Presenter,
		factory:    deps.Factory,
		discoverer: deps.Discoverer,
		player:     deps.Player,
		resolver:   deps.Resolver,
		inventory:  deps.Inventory,
		metrics:    deps.Metrics,
		logger:     deps.Logger.With("component", "fleet"),
		devices:    registry.New(func(d *domain.Device) string { return d.Endpoint }),
		prompts:    cmap.New[string, *pendingPrompt](),
		limiter:    rate.NewLimiter(limit, cfg.ScanBurst),
		scan:       new(guard.Guard),
	}
	s.pool.OnDispatch(s.onDispatch)
	s.player.OnFailure(s.streamFailed)
	return s
}

// onDispatch mirrors pool state into metrics and the task indicator. It
// runs on whichever goroutine changed the pool and must not block.
func (s *FleetService) onDispatch(ev workqueue.DispatchEvent) {
	s.metrics.ObservePool(ev)
	s.presenter.TryPost(presenter.Update{
		Kind: "tasks",
		Apply: func(v *presenter.View) {
			v.SetTasks(presenter.Tasks{
				Label:   ev.Label(),
				Running: ev.Running,
				Pending: ev.Pending,
				Workers: ev.Workers,
			})
		},
	})
}

// ============================================================================
// Lifecycle
// ============================================================================

// Shutdown stops accepting work, invalidates the fleet and drains the pool.
func (s *FleetService) Shutdown(ctx context.Context) error {
	s.fleetMu.Lock()
	s.closed = true
	s.scan.Invalidate()
	n := s.devices.Clear()
	s.selected = nil
	s.fleetMu.Unlock()

	s.player.Stop()
	for _, p := range s.prompts.Values() {
		if p.client != nil {
			_ = p.client.Close()
		}
	}
	s.prompts.Clear()

	s.logger.Info("fleet shutting down", "devices", n)
	return s.pool.Shutdown(ctx)
}

// Ready reports whether the service accepts requests.
func (s *FleetService) Ready() error {
	if s.isClosed() {
		return domain.ErrShuttingDown
	}
	return nil
}

func (s *FleetService) isClosed() bool {
	s.fleetMu.Lock()
	defer s.fleetMu.Unlock()
	return s.closed
}

// ============================================================================
// Read side
// ============================================================================

// Snapshot returns the latest presentation view.
func (s *FleetService) Snapshot() *presenter.Snapshot {
	return s.presenter.Snapshot()
}

// Device returns the presentation row of a device.
func (s *FleetService) Device(id string) (presenter.Row, error) {
	row, ok := s.presenter.Snapshot().Row(id)
	if !ok {
		return presenter.Row{}, domain.ErrDeviceNotFound.WithDetails(id)
	}
	return row, nil
}

// Prompts returns pending credential prompts.
func (s *FleetService) Prompts() []presenter.Prompt {
	return s.presenter.Snapshot().Prompts
}

// PoolStats returns worker pool counters.
func (s *FleetService) PoolStats() workqueue.Stats {
	return s.pool.Stats()
}

// PlayerStatus returns the player state.
func (s *FleetService) PlayerStatus() player.Status {
	return s.player.Status()
}

// Subscribe streams presenter events.
func (s *FleetService) Subscribe(id string, buffer int) (<-chan presenter.Event, func()) {
	return s.presenter.Subscribe(id, buffer)
}

// DeviceCount returns the number of registered devices.
func (s *FleetService) DeviceCount() int {
	return s.devices.Count()
}

// FleetSample implements metric.FleetSource.
func (s *FleetService) FleetSample() metric.FleetSample {
	var out metric.FleetSample
	for _, d := range s.devices.Snapshot() {
		out.Devices++
		if d.AuthState() == domain.AuthRequired {
			out.AuthRequired++
		}
	}
	out.Prompts = s.prompts.Count()

	ps := s.presenter.Stats()
	out.ViewVersion = s.presenter.Snapshot().Version
	out.StaleUpdates = ps.Stale
	out.DroppedUpdates = ps.Dropped
	return out
}

func (s *FleetService) deviceByID(id string) (*domain.Device, bool) {
	return s.devices.Find(func(d *domain.Device) bool { return d.ID == id })
}

// ============================================================================
// Step plumbing
// ============================================================================

// submitStep queues one guarded workflow step for d. fn runs with a
// reference held and returns the step outcome.
func (s *FleetService) submitStep(step string, d *domain.Device, fn func(ctx context.Context, d *domain.Device) string) {
	_, err := s.pool.Submit(step, func(ctx context.Context) {
		start := time.Now()
		ctx = logger.WithStep(ctx, step, d.ID)
		if !d.AddRef() {
			s.logger.DebugContext(ctx, "step aborted", "error", domain.ErrInvalidated)
			s.metrics.ObserveStep(step, OutcomeStale, time.Since(start))
			return
		}
		defer d.Unref()

		outcome := fn(ctx, d)
		if outcome == OutcomeStale {
			s.logger.DebugContext(ctx, "step result discarded", "error", domain.ErrInvalidated)
		}
		s.metrics.ObserveStep(step, outcome, time.Since(start))
	})
	if err != nil {
		s.logger.Debug("step not queued", "step", step, "device_id", d.ID, "error", err)
	}
}

// submit queues an unguarded step.
func (s *FleetService) submit(step string, fn func(ctx context.Context) string) error {
	return s.submitDroppable(step, fn, nil)
}

// submitDroppable is submit with a hook that runs if a rescan or shutdown
// drops the item before it starts.
func (s *FleetService) submitDroppable(step string, fn func(ctx context.Context) string, onDrop func()) error {
	item := workqueue.NewItem(step, func(ctx context.Context) {
		start := time.Now()
		s.metrics.ObserveStep(step, fn(ctx), time.Since(start))
	})
	if onDrop != nil {
		item.OnDrop = func() {
			onDrop()
			s.metrics.ObserveStep(step, OutcomeDropped, 0)
		}
	}
	_, err := s.pool.SubmitItem(item)
	if err != nil {
		return domain.ErrShuttingDown.WithCause(err)
	}
	return nil
}

func (s *FleetService) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.CallTimeout)
}

// publish hands an update for d to the presenter. The presenter drops it if
// d has been invalidated by the time it is applied.
func (s *FleetService) publish(d *domain.Device, kind string, apply func(v *presenter.View)) {
	u := presenter.Update{Kind: kind, Apply: apply}
	if d != nil {
		u.Subject = d.ID
		u.Owner = d
	}
	if err := s.presenter.Post(u); err != nil {
		s.logger.Debug("update not posted", "kind", kind, "error", err)
	}
}

// publishRow applies fn to d's row if it is still present.
func (s *FleetService) publishRow(d *domain.Device, kind string, fn func(r *presenter.Row)) {
	s.publish(d, kind, func(v *presenter.View) {
		if r := v.Row(d.ID); r != nil {
			fn(r)
			r.UpdatedAt = time.Now()
		}
	})
}

func (s *FleetService) notice(level, msg string) {
	s.publish(nil, "notice", func(v *presenter.View) { v.AddNotice(level, msg) })
}

func failureText(d *domain.Device) string {
	if err := d.LastError(); err != nil {
		return err.Error()
	}
	return ""
}
