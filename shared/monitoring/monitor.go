package monitoring

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// UnhealthyAfter is the number of consecutive server-side failures after
// which the service reports itself unhealthy.
const UnhealthyAfter = 3

// Failure kinds caused by the caller or the video itself. They are counted
// but never affect health.
var clientKinds = map[string]bool{
	"invalid_url": true,
	"no_content":  true,
	"canceled":    true,
}

// Monitor tracks analysis outcomes for the health endpoint and exports them
// as Prometheus metrics on its own registry.
type Monitor struct {
	logger *slog.Logger

	mu                  sync.Mutex
	lastSuccess         time.Time
	lastFailure         time.Time
	lastFailureKind     string
	consecutiveFailures int

	registry  *prometheus.Registry
	analyses  *prometheus.CounterVec
	fallbacks prometheus.Counter
	latency   *prometheus.HistogramVec
}

func NewMonitor(logger *slog.Logger) *Monitor {
	m := &Monitor{
		logger:   logger,
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tubecritique_analyses_total",
			Help: "Video analyses by outcome and mode or failure kind.",
		}, []string{"outcome", "detail"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tubecritique_transcript_fallbacks_total",
			Help: "Native video analyses that fell back to the transcript.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tubecritique_analysis_duration_seconds",
			Help:    "End to end analysis latency.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.analyses,
		m.fallbacks,
		m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Monitor) RecordSuccess(mode string, duration time.Duration) {
	m.mu.Lock()
	m.lastSuccess = time.Now()
	m.consecutiveFailures = 0
	m.mu.Unlock()

	m.analyses.WithLabelValues("success", mode).Inc()
	m.latency.WithLabelValues("success").Observe(duration.Seconds())
	m.logger.Debug("analysis recorded", "outcome", "success", "mode", mode, "duration", duration)
}

// RecordFallback counts a native failure that was retried with the transcript.
func (m *Monitor) RecordFallback(cause error) {
	m.fallbacks.Inc()
	m.logger.Debug("transcript fallback recorded", "cause", cause)
}

func (m *Monitor) RecordFailure(kind string, err error, duration time.Duration) {
	m.analyses.WithLabelValues("failure", kind).Inc()
	m.latency.WithLabelValues("failure").Observe(duration.Seconds())

	if clientKinds[kind] {
		return
	}

	m.mu.Lock()
	m.lastFailure = time.Now()
	m.lastFailureKind = kind
	m.consecutiveFailures++
	failures := m.consecutiveFailures
	m.mu.Unlock()

	if failures == UnhealthyAfter {
		m.logger.Error("service unhealthy", "consecutive_failures", failures, "kind", kind, "error", err)
	}
}

// IsHealthy is true until UnhealthyAfter server-side failures happen in a row.
func (m *Monitor) IsHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveFailures < UnhealthyAfter
}

func (m *Monitor) StatusSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastSuccess.IsZero() && m.lastFailure.IsZero() {
		return "No analyses yet"
	}
	if m.consecutiveFailures == 0 {
		return fmt.Sprintf("Last success: %s", m.lastSuccess.Format("Jan 2 15:04"))
	}
	return fmt.Sprintf("Last failure (%s): %s, %d in a row",
		m.lastFailureKind, m.lastFailure.Format("Jan 2 15:04"), m.consecutiveFailures)
}
