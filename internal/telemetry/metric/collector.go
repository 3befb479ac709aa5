package metric

import "github.com/prometheus/client_golang/prometheus"

// FleetSample is the fleet state read at scrape time.
type FleetSample struct {
	Devices        int
	AuthRequired   int
	Prompts        int
	ViewVersion    uint64
	StaleUpdates   uint64
	DroppedUpdates uint64
}

// FleetSource produces a FleetSample.
type FleetSource interface {
	FleetSample() FleetSample
}

// Collector samples fleet state on every scrape.
type Collector struct {
	src FleetSource

	devices      *prometheus.Desc
	authRequired *prometheus.Desc
	prompts      *prometheus.Desc
	viewVersion  *prometheus.Desc
	stale        *prometheus.Desc
	dropped      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector reading from src.
func NewCollector(src FleetSource) *Collector {
	return &Collector{
		src: src,
		devices: prometheus.NewDesc(namespace+"_fleet_devices",
			"Devices in the registry", nil, nil),
		authRequired: prometheus.NewDesc(namespace+"_fleet_auth_required_devices",
			"Devices whose last call was rejected for credentials", nil, nil),
		prompts: prometheus.NewDesc(namespace+"_fleet_pending_prompts",
			"Prompts waiting for an answer", nil, nil),
		viewVersion: prometheus.NewDesc(namespace+"_presenter_view_version",
			"Version of the latest applied view", nil, nil),
		stale: prometheus.NewDesc(namespace+"_presenter_stale_updates_total",
			"Updates dropped because their device was invalidated", nil, nil),
		dropped: prometheus.NewDesc(namespace+"_presenter_dropped_updates_total",
			"Updates dropped because the presenter buffer was full", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.devices
	ch <- c.authRequired
	ch <- c.prompts
	ch <- c.viewVersion
	ch <- c.stale
	ch <- c.dropped
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.FleetSample()
	ch <- prometheus.MustNewConstMetric(c.devices, prometheus.GaugeValue, float64(s.Devices))
	ch <- prometheus.MustNewConstMetric(c.authRequired, prometheus.GaugeValue, float64(s.AuthRequired))
	ch <- prometheus.MustNewConstMetric(c.prompts, prometheus.GaugeValue, float64(s.Prompts))
	ch <- prometheus.MustNewConstMetric(c.viewVersion, prometheus.GaugeValue, float64(s.ViewVersion))
	ch <- prometheus.MustNewConstMetric(c.stale, prometheus.CounterValue, float64(s.StaleUpdates))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.DroppedUpdates))
}
