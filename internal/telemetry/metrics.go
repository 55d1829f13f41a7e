// Package telemetry holds the Prometheus collectors of the service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Refresh outcomes.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultCollapsed = "collapsed"
)

// MetricsRegistry holds all collectors exported on /metrics.
type MetricsRegistry struct {
	// Upstream request metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec

	// Enrichment failures (per-coin stats)
	StatsFailures prometheus.Counter

	// Refresh lifecycle
	RefreshDuration  *prometheus.HistogramVec
	Refreshes        *prometheus.CounterVec
	RefreshInFlight  prometheus.Gauge
	SnapshotFetched  prometheus.Gauge
	SnapshotCoins    prometheus.Gauge
	SnapshotOps      prometheus.Gauge
	SnapshotStatsHit prometheus.Gauge

	// Circuit breaker state per endpoint (0=closed, 1=half-open, 2=open)
	BreakerState *prometheus.GaugeVec

	// Inbound API
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetricsRegistry creates the collectors and registers them with reg.
// When reg is nil a private registry is used.
func NewMetricsRegistry(reg *prometheus.Registry) *MetricsRegistry {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &MetricsRegistry{
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stablewatch_upstream_requests_total",
				Help: "Backend requests by endpoint and status code (0 for transport errors)",
			},
			[]string{"endpoint", "code"},
		),

		UpstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stablewatch_upstream_request_duration_seconds",
				Help:    "Backend request latency in seconds",
				Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint"},
		),

		StatsFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stablewatch_stats_fetch_failures_total",
				Help: "Per-stablecoin stats requests that failed and were left out of a snapshot",
			},
		),

		RefreshDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stablewatch_refresh_duration_seconds",
				Help:    "Duration of snapshot refreshes in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"result"},
		),

		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stablewatch_refreshes_total",
				Help: "Snapshot refresh attempts by result",
			},
			[]string{"result"},
		),

		RefreshInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stablewatch_refresh_in_flight",
				Help: "1 while a snapshot refresh is running",
			},
		),

		SnapshotFetched: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stablewatch_snapshot_fetched_timestamp_seconds",
				Help: "Unix time at which the current snapshot was assembled",
			},
		),

		SnapshotCoins: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stablewatch_snapshot_stablecoins",
				Help: "Stablecoins in the current snapshot",
			},
		),

		SnapshotOps: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stablewatch_snapshot_operations",
				Help: "Operations in the current snapshot",
			},
		),

		SnapshotStatsHit: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stablewatch_snapshot_stats_entries",
				Help: "Stablecoins with stats in the current snapshot",
			},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stablewatch_circuit_breaker_state",
				Help: "Circuit breaker state per backend endpoint (0=closed, 1=half-open, 2=open)",
			},
			[]string{"endpoint"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stablewatch_http_requests_total",
				Help: "API requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stablewatch_http_request_duration_seconds",
				Help:    "API request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		gatherer: reg,
	}

	reg.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.StatsFailures,
		m.RefreshDuration,
		m.Refreshes,
		m.RefreshInFlight,
		m.SnapshotFetched,
		m.SnapshotCoins,
		m.SnapshotOps,
		m.SnapshotStatsHit,
		m.BreakerState,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

// RecordUpstream records one backend request. code is 0 when no response
// was received.
func (m *MetricsRegistry) RecordUpstream(endpoint string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	m.UpstreamDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordHTTP records one served API request.
func (m *MetricsRegistry) RecordHTTP(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordStatsFailure counts one dropped per-coin stats entry.
func (m *MetricsRegistry) RecordStatsFailure() {
	if m == nil {
		return
	}
	m.StatsFailures.Inc()
}

// RecordBreakerState exports a breaker state change.
func (m *MetricsRegistry) RecordBreakerState(endpoint string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(endpoint).Set(state)
}

// RecordSnapshot exports the shape of a freshly assembled snapshot.
func (m *MetricsRegistry) RecordSnapshot(fetchedAt time.Time, coins, ops, stats int) {
	if m == nil {
		return
	}
	m.SnapshotFetched.Set(float64(fetchedAt.Unix()))
	m.SnapshotCoins.Set(float64(coins))
	m.SnapshotOps.Set(float64(ops))
	m.SnapshotStatsHit.Set(float64(stats))
}

// RefreshTimer tracks one refresh attempt.
type RefreshTimer struct {
	metrics *MetricsRegistry
	start   time.Time
}

// StartRefresh marks a refresh as in flight.
func (m *MetricsRegistry) StartRefresh() *RefreshTimer {
	if m != nil {
		m.RefreshInFlight.Set(1)
	}
	return &RefreshTimer{metrics: m, start: time.Now()}
}

// Stop records the outcome of the refresh.
func (rt *RefreshTimer) Stop(result string) {
	duration := time.Since(rt.start)
	if rt.metrics != nil {
		rt.metrics.RefreshInFlight.Set(0)
		rt.metrics.RefreshDuration.WithLabelValues(result).Observe(duration.Seconds())
		rt.metrics.Refreshes.WithLabelValues(result).Inc()
	}

	log.Debug().
		Str("result", result).
		Dur("duration", duration).
		Msg("Snapshot refresh finished")
}

// RecordCollapsed counts a refresh trigger that was dropped because another
// refresh was running.
func (m *MetricsRegistry) RecordCollapsed() {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(ResultCollapsed).Inc()
}

// Counters is a point-in-time read of the cumulative counters, reported on
// /health.
type Counters struct {
	UpstreamRequests float64            `json:"upstream_requests"`
	UpstreamFailures float64            `json:"upstream_failures"` // transport errors, 429 and 5xx
	StatsFailures    float64            `json:"stats_fetch_failures"`
	Refreshes        map[string]float64 `json:"refreshes"`
}

// Counters sums the counter vectors across their labels.
func (m *MetricsRegistry) Counters() Counters {
	out := Counters{Refreshes: map[string]float64{}}
	if m == nil {
		return out
	}

	for _, metric := range collectMetrics(m.UpstreamRequests) {
		value := metric.GetCounter().GetValue()
		out.UpstreamRequests += value
		if code := labelValue(metric, "code"); isFailureCode(code) {
			out.UpstreamFailures += value
		}
	}
	for _, metric := range collectMetrics(m.StatsFailures) {
		out.StatsFailures += metric.GetCounter().GetValue()
	}
	for _, metric := range collectMetrics(m.Refreshes) {
		out.Refreshes[labelValue(metric, "result")] += metric.GetCounter().GetValue()
	}
	return out
}

func collectMetrics(c prometheus.Collector) []*dto.Metric {
	ch := make(chan prometheus.Metric)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	var out []*dto.Metric
	for metric := range ch {
		pb := &dto.Metric{}
		if err := metric.Write(pb); err != nil {
			log.Debug().Err(err).Msg("Failed to read metric")
			continue
		}
		out = append(out, pb)
	}
	return out
}

func labelValue(metric *dto.Metric, name string) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}

func isFailureCode(code string) bool {
	n, err := strconv.Atoi(code)
	if err != nil {
		return false
	}
	return n == 0 || n == http.StatusTooManyRequests || n >= 500
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
