package http

import (
	"net/http"
	"runtime"
	"time"

	"github.com/sawpanic/stablewatch/internal/infrastructure/providers"
	"github.com/sawpanic/stablewatch/internal/refresh"
	"github.com/sawpanic/stablewatch/internal/telemetry"
)

// Health states.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthStarting = "starting"
)

// UpstreamHealth reports backend client health.
type UpstreamHealth interface {
	Health() providers.BackendHealth
}

// CounterSource reports cumulative request and refresh counters.
type CounterSource interface {
	Counters() telemetry.Counters
}

// HealthHandler provides system health status endpoint
type HealthHandler struct {
	dashboard Dashboard
	upstream  UpstreamHealth
	counters  CounterSource
	startTime time.Time
	version   string
	now       func() time.Time
}

// NewHealthHandler creates a new health handler. upstream and counters may be
// nil.
func NewHealthHandler(dashboard Dashboard, upstream UpstreamHealth, counters CounterSource, version string) *HealthHandler {
	return &HealthHandler{
		dashboard: dashboard,
		upstream:  upstream,
		counters:  counters,
		startTime: time.Now(),
		version:   version,
		now:       time.Now,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"` // "ok", "degraded", "starting"
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Version   string    `json:"version"`

	Refresh  RefreshHealth            `json:"refresh"`
	Upstream *providers.BackendHealth `json:"upstream,omitempty"`
	Counters *telemetry.Counters      `json:"counters,omitempty"`
	System   SystemInfo               `json:"system"`
}

// RefreshHealth summarises the refresh controller
type RefreshHealth struct {
	State       refresh.State `json:"state"`
	Loading     bool          `json:"loading"`
	LastUpdated *time.Time    `json:"lastUpdated"`
	SnapshotAge string        `json:"snapshotAge,omitempty"`
	Error       *string       `json:"error"`
}

// SystemInfo provides system-level information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
}

// ServeHTTP implements the health check endpoint. Degraded still answers
// 200; only a service that has never produced a snapshot answers 503.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	view := h.dashboard.View()

	resp := HealthResponse{
		Status:    HealthOK,
		Timestamp: now.UTC(),
		Uptime:    now.Sub(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		Refresh: RefreshHealth{
			State:       view.State,
			Loading:     view.Loading,
			LastUpdated: view.LastUpdated,
			Error:       view.Error,
		},
		System: SystemInfo{
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	}
	if view.LastUpdated != nil {
		resp.Refresh.SnapshotAge = now.Sub(*view.LastUpdated).Round(time.Second).String()
	}
	if h.upstream != nil {
		upstream := h.upstream.Health()
		resp.Upstream = &upstream
	}
	if h.counters != nil {
		counters := h.counters.Counters()
		resp.Counters = &counters
	}

	status := http.StatusOK
	if view.Snapshot == nil {
		// Nothing to serve yet; a failed first refresh is degraded, not starting.
		status = http.StatusServiceUnavailable
		resp.Status = HealthStarting
		if view.State == refresh.StateError {
			resp.Status = HealthDegraded
		}
	} else if view.State == refresh.StateError || (resp.Upstream != nil && resp.Upstream.Degraded) {
		resp.Status = HealthDegraded
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	writeJSON(w, status, resp)
}
