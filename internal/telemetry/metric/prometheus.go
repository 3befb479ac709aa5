package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/onvifmesh-go/internal/player"
	"github.com/yndnr/onvifmesh-go/pkg/workqueue"
)

const namespace = "onvifmesh"

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Pool metrics
	PoolRunning    prometheus.Gauge
	PoolPending    prometheus.Gauge
	PoolWorkers    prometheus.Gauge
	DispatchEvents *prometheus.CounterVec

	// Workflow metrics
	Steps        *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	Scans        prometheus.Counter

	// Player metrics
	PlayerPlaying     prometheus.Gauge
	PlayerTransitions *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with Go and process collectors and every
// application instrument registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		PoolRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "running",
			Help: "Work items currently executing",
		}),
		PoolPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "pending",
			Help: "Work items waiting in the queue",
		}),
		PoolWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "workers",
			Help: "Worker goroutines started",
		}),
		DispatchEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "dispatch_events_total",
			Help: "Pool state changes by kind",
		}, []string{"kind"}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "workflow", Name: "steps_total",
			Help: "Workflow steps by name and outcome",
		}, []string{"step", "outcome"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "workflow", Name: "step_duration_seconds",
			Help:    "Workflow step latency",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"step"}),
		Scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "discovery", Name: "scans_total",
			Help: "Discovery scans started",
		}),
		PlayerPlaying: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "player", Name: "playing",
			Help: "1 while a stream is playing",
		}),
		PlayerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "player", Name: "transitions_total",
			Help: "Player state transitions by resulting state",
		}, []string{"state"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Admin API requests by method, route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "Admin API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.PoolRunning, r.PoolPending, r.PoolWorkers, r.DispatchEvents,
		r.Steps, r.StepDuration, r.Scans,
		r.PlayerPlaying, r.PlayerTransitions,
		r.RequestsTotal, r.RequestDuration,
	)
	return r
}

// Registerer exposes the underlying registry for components that register
// their own instruments.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Gatherer exposes the underlying registry for tests and custom handlers.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObservePool records a pool dispatch event. It is safe to use as a
// workqueue.DispatchFunc.
func (r *Registry) ObservePool(ev workqueue.DispatchEvent) {
	r.PoolRunning.Set(float64(ev.Running))
	r.PoolPending.Set(float64(ev.Pending))
	r.PoolWorkers.Set(float64(ev.Workers))
	r.DispatchEvents.WithLabelValues(ev.Kind.String()).Inc()
}

// ObserveStep records one workflow step.
func (r *Registry) ObserveStep(step, outcome string, elapsed time.Duration) {
	r.Steps.WithLabelValues(step, outcome).Inc()
	r.StepDuration.WithLabelValues(step).Observe(elapsed.Seconds())
}

// ObserveScan counts a discovery scan.
func (r *Registry) ObserveScan() {
	r.Scans.Inc()
}

// ObservePlayer records a player transition. It is safe to use as a
// player.Listener.
func (r *Registry) ObservePlayer(st player.Status) {
	playing := 0.0
	if st.State == player.StatePlaying {
		playing = 1
	}
	r.PlayerPlaying.Set(playing)
	r.PlayerTransitions.WithLabelValues(string(st.State)).Inc()
}

// ObserveRequest records one admin API request.
func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
