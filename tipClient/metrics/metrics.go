// Package metrics exposes tip flow metrics for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/megavibe/megavibe-node/tipClient/orchestrator"
)

const namespace = "mvtip"

// Metrics is an orchestrator observer that counts tips and statuses
type Metrics struct {
	registry *prometheus.Registry

	statuses  *prometheus.CounterVec
	outcomes  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	volumeUSD *prometheus.CounterVec

	mu      sync.Mutex
	started map[string]time.Time
}

// New registers the tip metrics on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tip_statuses_total",
			Help:      "Statuses emitted by tip flows.",
		}, []string{"path", "status"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tips_total",
			Help:      "Tips that reached a terminal status.",
		}, []string{"path", "source_chain", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tip_duration_seconds",
			Help:      "Time from the first to the terminal status of a tip.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"path", "outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tips_in_flight",
			Help:      "Tips that have not reached a terminal status.",
		}),
		volumeUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tip_volume_usd_total",
			Help:      "USD value of completed tips.",
		}, []string{"path"}),
		started: make(map[string]time.Time),
	}

	m.registry.MustRegister(
		m.statuses,
		m.outcomes,
		m.duration,
		m.inFlight,
		m.volumeUSD,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the tip metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnStatus implements orchestrator.Observer
func (m *Metrics) OnStatus(requestID string, req orchestrator.TipRequest, status orchestrator.TransferStatus) {
	path := string(req.PathFor())
	m.statuses.WithLabelValues(path, string(status.Kind)).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	startedAt, tracked := m.started[requestID]
	if !tracked && !status.Kind.IsTerminal() {
		m.started[requestID] = status.Timestamp
		m.inFlight.Inc()
		return
	}
	if !status.Kind.IsTerminal() {
		return
	}

	outcome := "success"
	if status.Kind == orchestrator.StatusFailed {
		outcome = "failure"
	}
	m.outcomes.WithLabelValues(path, strconv.FormatInt(req.SourceChainID, 10), outcome).Inc()
	if status.Kind == orchestrator.StatusCompleted {
		m.volumeUSD.WithLabelValues(path).Add(req.AmountUSD.InexactFloat64())
	}
	if tracked {
		m.duration.WithLabelValues(path, outcome).Observe(status.Timestamp.Sub(startedAt).Seconds())
		delete(m.started, requestID)
		m.inFlight.Dec()
	}
}
