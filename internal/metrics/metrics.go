// Package metrics exposes conversion counters in Prometheus format. Batch
// runs write them to a node_exporter textfile instead of serving them.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for conversion runs.
type Metrics struct {
	registry        *prometheus.Registry
	linesTotal      prometheus.Counter
	commentsTotal   prometheus.Counter
	droppedTotal    *prometheus.CounterVec
	outOfOrderTotal prometheus.Counter
	archivedTotal   prometheus.Counter
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Gauge
	lastRunComments prometheus.Gauge
	lastSuccess     prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		linesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatconv",
			Name:      "lines_total",
			Help:      "Input lines read",
		}),
		commentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatconv",
			Name:      "comments_total",
			Help:      "Comments emitted",
		}),
		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatconv",
			Name:      "dropped_lines_total",
			Help:      "Input lines dropped, by reason",
		}, []string{"reason"}),
		outOfOrderTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatconv",
			Name:      "out_of_order_comments_total",
			Help:      "Comments sent earlier than the comment before them",
		}),
		archivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatconv",
			Name:      "archived_comments_total",
			Help:      "Comments handed to the SQLite archive",
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatconv",
			Name:      "runs_total",
			Help:      "Conversion runs, by result",
		}, []string{"result"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatconv",
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last conversion run",
		}),
		lastRunComments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatconv",
			Name:      "last_run_comments",
			Help:      "Comments written by the last conversion run",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatconv",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
	}

	registry.MustRegister(
		m.linesTotal,
		m.commentsTotal,
		m.droppedTotal,
		m.outOfOrderTotal,
		m.archivedTotal,
		m.runsTotal,
		m.runDuration,
		m.lastRunComments,
		m.lastSuccess,
	)

	return m
}

// Gatherer returns the registry backing these metrics.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// IncLines increments the line counter.
func (m *Metrics) IncLines() {
	if m == nil {
		return
	}
	m.linesTotal.Inc()
}

// IncComments increments the emitted comment counter.
func (m *Metrics) IncComments() {
	if m == nil {
		return
	}
	m.commentsTotal.Inc()
}

// IncDropped increments the drop counter for reason.
func (m *Metrics) IncDropped(reason string) {
	if m == nil {
		return
	}
	m.droppedTotal.WithLabelValues(reason).Inc()
}

// AddOutOfOrder adds n out-of-order comments.
func (m *Metrics) AddOutOfOrder(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.outOfOrderTotal.Add(float64(n))
}

// IncArchived increments the archived comment counter.
func (m *Metrics) IncArchived() {
	if m == nil {
		return
	}
	m.archivedTotal.Inc()
}

// ObserveRun records the outcome of a finished run.
func (m *Metrics) ObserveRun(dur time.Duration, comments int, err error) {
	if m == nil {
		return
	}
	m.runDuration.Set(dur.Seconds())
	if err != nil {
		m.runsTotal.WithLabelValues("error").Inc()
		return
	}
	m.runsTotal.WithLabelValues("ok").Inc()
	m.lastRunComments.Set(float64(comments))
	m.lastSuccess.SetToCurrentTime()
}

// WriteFile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return errors.Wrap(prometheus.WriteToTextfile(path, m.registry), "write metrics textfile")
}
