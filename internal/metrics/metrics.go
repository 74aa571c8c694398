// Package metrics provides the Prometheus metrics of the orchestrator.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/timmy/immiframe/internal/domain"
)

const namespace = "immiframe"

// Metrics holds every collector. All methods are safe on a nil receiver so
// callers that do not export metrics can pass nil.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec   // runs by status and trigger
	RunDuration     prometheus.Histogram     // wall time per run
	TriggersSkipped *prometheus.CounterVec   // triggers dropped by single-flight
	AssetsFetched   *prometheus.CounterVec   // fetch attempts by result
	FetchDuration   prometheus.Histogram     // per-asset fetch latency
	ThemeAttempts   *prometheus.CounterVec   // strategy attempts by source and outcome
	NotifyFailures  prometheus.Counter       // runs whose notify failed
	LastSuccess     prometheus.Gauge         // unix time of the last committed run
	NextFire        prometheus.Gauge         // unix time of the next scheduled run
	PublishedAssets prometheus.Gauge         // files in the current generation
	MirrorFailures  prometheus.Counter       // failed mirror uploads
	StateErrors     *prometheus.CounterVec   // state database failures by operation
	HTTPRequests    *prometheus.CounterVec   // status API requests
	HTTPDuration    *prometheus.HistogramVec // status API latency

	registry *prometheus.Registry
}

// New creates the metrics and registers them, plus Go runtime collectors,
// on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}

	m.RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Number of completed runs by status and trigger",
	}, []string{"status", "trigger"})

	m.RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a run",
		Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300},
	})

	m.TriggersSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "triggers_skipped_total",
		Help:      "Triggers dropped because a run was already in flight",
	}, []string{"trigger"})

	m.AssetsFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "asset_fetches_total",
		Help:      "Asset fetch attempts by result",
	}, []string{"result"})

	m.FetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "asset_fetch_duration_seconds",
		Help:      "Latency of a single asset fetch",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	m.ThemeAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "theme_attempts_total",
		Help:      "Theme strategy attempts by source and outcome",
	}, []string{"source", "outcome"})

	m.NotifyFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notify_failures_total",
		Help:      "Committed runs whose notification failed",
	})

	m.LastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_commit_timestamp_seconds",
		Help:      "Unix time of the last committed generation",
	})

	m.NextFire = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "next_run_timestamp_seconds",
		Help:      "Unix time of the next scheduled run",
	})

	m.PublishedAssets = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "published_assets",
		Help:      "Number of files in the current generation",
	})

	m.MirrorFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mirror_failures_total",
		Help:      "Generations that failed to mirror to object storage",
	})

	m.StateErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_errors_total",
		Help:      "State database failures by operation",
	}, []string{"operation"})

	m.HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Status API requests by route, method and status code",
	}, []string{"route", "method", "code"})

	m.HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Status API latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	for _, c := range []prometheus.Collector{
		m.RunsTotal, m.RunDuration, m.TriggersSkipped, m.AssetsFetched, m.FetchDuration,
		m.ThemeAttempts, m.NotifyFailures, m.LastSuccess, m.NextFire, m.PublishedAssets,
		m.MirrorFailures, m.StateErrors, m.HTTPRequests, m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(o *domain.RunOutcome) {
	if m == nil || o == nil {
		return
	}
	m.RunsTotal.WithLabelValues(string(o.Status), o.Trigger).Inc()
	m.RunDuration.Observe(o.Duration().Seconds())
	if o.Committed() {
		m.LastSuccess.Set(float64(o.FinishedAt.Unix()))
		m.PublishedAssets.Set(float64(o.Cached))
	}
}

// SkipTrigger records a trigger refused by single-flight.
func (m *Metrics) SkipTrigger(trigger string) {
	if m == nil {
		return
	}
	m.TriggersSkipped.WithLabelValues(trigger).Inc()
}

// ObserveFetch records one asset fetch.
func (m *Metrics) ObserveFetch(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.AssetsFetched.WithLabelValues(result).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

// ObserveTheme records one theme strategy attempt.
func (m *Metrics) ObserveTheme(source, outcome string) {
	if m == nil {
		return
	}
	m.ThemeAttempts.WithLabelValues(source, outcome).Inc()
}

// NotifyFailed records a failed notification.
func (m *Metrics) NotifyFailed() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}

// MirrorFailed records a failed mirror publish.
func (m *Metrics) MirrorFailed() {
	if m == nil {
		return
	}
	m.MirrorFailures.Inc()
}

// StateError records a state database failure.
func (m *Metrics) StateError(operation string) {
	if m == nil {
		return
	}
	m.StateErrors.WithLabelValues(operation).Inc()
}

// SetNextFire records the next scheduled run time.
func (m *Metrics) SetNextFire(t time.Time) {
	if m == nil {
		return
	}
	m.NextFire.Set(float64(t.Unix()))
}

// ObserveHTTP records one status API request.
func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, fmt.Sprint(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
