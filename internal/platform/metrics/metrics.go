// Package metrics exposes Prometheus instrumentation for queue activity.
package metrics

import (
	"context"
	"net/http"

	"github.com/phrazzld/scry-import/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector turns queue events into Prometheus series. It implements
// events.EventHandler so it can be registered on an emitter.
type Collector struct {
	registry *prometheus.Registry

	// ItemsSubmitted counts accepted and rejected submissions.
	ItemsSubmitted *prometheus.CounterVec
	// Transitions counts item status changes.
	Transitions *prometheus.CounterVec
	// Waits counts entries into the waiting state by error class.
	Waits *prometheus.CounterVec
	// AnalysisLatency observes the duration of analyzer calls by outcome.
	AnalysisLatency *prometheus.HistogramVec
	// WaitRemaining is the countdown of the item currently waiting.
	WaitRemaining prometheus.Gauge
	// RunsFinished counts completed runs by termination reason.
	RunsFinished *prometheus.CounterVec
	// RunDuration observes wall-clock run duration.
	RunDuration prometheus.Histogram
	// RunActive is 1 while a run owns the queue.
	RunActive prometheus.Gauge
}

// NewCollector registers the queue metrics on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		ItemsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scry_import_items_submitted_total",
				Help: "Total number of payloads offered to the queue",
			},
			[]string{"outcome"},
		),
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scry_import_item_transitions_total",
				Help: "Total number of item status transitions",
			},
			[]string{"from", "to"},
		),
		Waits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scry_import_waits_total",
				Help: "Total number of retry waits entered",
			},
			[]string{"class"},
		),
		AnalysisLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scry_import_analysis_latency_seconds",
				Help:    "Analyzer call latency in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"outcome"},
		),
		WaitRemaining: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scry_import_wait_remaining_seconds",
				Help: "Seconds remaining on the current retry wait",
			},
		),
		RunsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scry_import_runs_finished_total",
				Help: "Total number of queue runs by termination reason",
			},
			[]string{"reason"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scry_import_run_duration_seconds",
				Help:    "Queue run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		RunActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scry_import_run_active",
				Help: "Whether a queue run is in progress",
			},
		),
	}
}

// Registry returns the registry holding the collector's series.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// HandleEvent implements events.EventHandler.
func (c *Collector) HandleEvent(_ context.Context, ev *events.QueueEvent) error {
	switch ev.Type {
	case events.ItemSubmitted:
		c.ItemsSubmitted.WithLabelValues("accepted").Inc()
	case events.ItemRejected:
		c.ItemsSubmitted.WithLabelValues("rejected").Inc()
	case events.ItemTransitioned:
		c.Transitions.WithLabelValues(ev.From, ev.To).Inc()
		if ev.From == "processing" && ev.Elapsed > 0 {
			c.AnalysisLatency.WithLabelValues(ev.To).Observe(ev.Elapsed.Seconds())
		}
		switch {
		case ev.To == "waiting":
			c.Waits.WithLabelValues(ev.Reason).Inc()
			c.WaitRemaining.Set(float64(ev.WaitRemaining))
		case ev.From == "waiting":
			c.WaitRemaining.Set(0)
		}
	case events.WaitTick:
		c.WaitRemaining.Set(float64(ev.WaitRemaining))
	case events.RunStarted:
		c.RunActive.Set(1)
	case events.RunFinished:
		c.RunActive.Set(0)
		c.WaitRemaining.Set(0)
		c.RunsFinished.WithLabelValues(ev.Reason).Inc()
		c.RunDuration.Observe(ev.Elapsed.Seconds())
	}
	return nil
}
