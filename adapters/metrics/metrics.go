// Package metrics provides Prometheus metrics collection for maxrange.
package metrics

import (
	"time"

	"github.com/artpar/maxrange/domain/ranges"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "maxrange"

// Collector holds all Prometheus metrics for maxrange.
type Collector struct {
	// Invocation metrics
	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration prometheus.Histogram
	DevicesProcessed   prometheus.Counter

	// Scan metrics
	EventsScanned *prometheus.CounterVec
	BadDistances  prometheus.Counter

	// Store metrics
	StoreDuration     *prometheus.HistogramVec
	AggregatesWritten *prometheus.CounterVec
	ReportsPublished  *prometheus.CounterVec

	// HTTP trigger metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a collector registered with the default Prometheus registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		InvocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of invocations by outcome",
			},
			[]string{"outcome"},
		),
		InvocationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Invocation duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		DevicesProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "devices_processed_total",
				Help:      "Total number of devices scanned",
			},
		),
		EventsScanned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_scanned_total",
				Help:      "Ride events seen by the segmentation scan, by outcome",
			},
			[]string{"outcome"},
		),
		BadDistances: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bad_distances_total",
				Help:      "Trip distances that failed to parse and counted as zero",
			},
		),
		StoreDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_duration_seconds",
				Help:      "Store call duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"op", "status"},
		),
		AggregatesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "aggregates_written_total",
				Help:      "Aggregates persisted, by kind",
			},
			[]string{"kind"},
		),
		ReportsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_published_total",
				Help:      "Reports handed to the publisher, by status",
			},
			[]string{"status"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path", "status"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
	}
}

// ObserveScan records one device's scan statistics.
func (c *Collector) ObserveScan(s ranges.ScanStats) {
	if c == nil {
		return
	}
	c.DevicesProcessed.Inc()
	c.EventsScanned.WithLabelValues("qualifying").Add(float64(s.Qualifying))
	c.EventsScanned.WithLabelValues("skipped_year").Add(float64(s.SkippedYear))
	c.EventsScanned.WithLabelValues("skipped_filter").Add(float64(s.SkippedFilter))
	c.EventsScanned.WithLabelValues("malformed").Add(float64(s.Malformed))
	c.BadDistances.Add(float64(s.BadDistances))
}

// ObserveStore records a store call.
func (c *Collector) ObserveStore(op string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.StoreDuration.WithLabelValues(op, statusOf(err)).Observe(d.Seconds())
}

// ObserveInvocation records a finished invocation.
func (c *Collector) ObserveInvocation(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.InvocationsTotal.WithLabelValues(outcome).Inc()
	c.InvocationDuration.Observe(d.Seconds())
}

// ObserveWrite counts a persisted aggregate.
func (c *Collector) ObserveWrite(kind string) {
	if c == nil {
		return
	}
	c.AggregatesWritten.WithLabelValues(kind).Inc()
}

// ObservePublish counts a publish attempt.
func (c *Collector) ObservePublish(err error) {
	if c == nil {
		return
	}
	c.ReportsPublished.WithLabelValues(statusOf(err)).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
