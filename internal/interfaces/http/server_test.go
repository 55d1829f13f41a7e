package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stablewatch/internal/domain"
	"github.com/sawpanic/stablewatch/internal/infrastructure/providers"
	"github.com/sawpanic/stablewatch/internal/refresh"
	"github.com/sawpanic/stablewatch/internal/summary"
	"github.com/sawpanic/stablewatch/internal/telemetry"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeDashboard struct {
	view     refresh.View
	triggers int
	busy     bool
}

func (f *fakeDashboard) View() refresh.View { return f.view }

func (f *fakeDashboard) Trigger() bool {
	f.triggers++
	return !f.busy
}

type fakeUpstream struct{ health providers.BackendHealth }

func (f fakeUpstream) Health() providers.BackendHealth { return f.health }

func sampleSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		Stablecoins: []domain.StablecoinRecord{
			{StablecoinID: "a", Symbol: "BRLA", Status: domain.StatusDeployed, CreatedAt: "2025-01-01T00:00:00Z"},
			{StablecoinID: "b", Symbol: "USDX", Status: domain.StatusRegistered, CreatedAt: "2025-02-01T00:00:00Z"},
		},
		Operations: []domain.OperationRecord{
			{OperationID: "1", StablecoinID: "a", OperationType: domain.OperationDeposit, Amount: "100", Status: "minted", CreatedAt: "2025-06-15T10:00:00Z"},
			{OperationID: "2", StablecoinID: "a", OperationType: domain.OperationWithdraw, Amount: 40, Status: "withdraw_successful", CreatedAt: "2025-06-14T10:00:00Z"},
			{OperationID: "3", StablecoinID: "b", OperationType: domain.OperationDeposit, Amount: "25", Status: "payment_pending", CreatedAt: "2025-06-15T11:00:00Z"},
		},
		StatsByStablecoin: map[string]domain.StablecoinStats{
			"a": {StablecoinID: "a", Stats: domain.StatsBody{Volume: domain.VolumeTotals{NetVolume: 60}}},
		},
		FetchedAt: now.Add(-time.Minute),
	}
}

func readyView() refresh.View {
	snap := sampleSnapshot()
	fetched := snap.FetchedAt
	return refresh.View{Snapshot: snap, State: refresh.StateReady, LastUpdated: &fetched}
}

func newTestServer(dash *fakeDashboard, upstream UpstreamHealth) (*Server, *telemetry.MetricsRegistry) {
	metrics := telemetry.NewMetricsRegistry(prometheus.NewRegistry())
	handlers := NewHandlers(dash, 10)
	handlers.now = func() time.Time { return now }
	health := NewHealthHandler(dash, upstream, metrics, "v-test")
	health.now = func() time.Time { return now }
	return NewServer(DefaultServerConfig(), handlers, health, metrics), metrics
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func TestDashboardEndpoint(t *testing.T) {
	s, _ := newTestServer(&fakeDashboard{view: readyView()}, nil)

	rec := do(t, s, "GET", "/api/dashboard")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, "ready", body["state"])
	assert.Equal(t, false, body["loading"])
	assert.Nil(t, body["error"])
	snap := body["snapshot"].(map[string]any)
	assert.Len(t, snap["stablecoins"], 2)
	assert.Contains(t, snap, "statsByStablecoin")
	assert.Contains(t, snap, "fetchedAt")
}

func TestDashboardEndpoint_BeforeFirstSnapshot(t *testing.T) {
	s, _ := newTestServer(&fakeDashboard{view: refresh.View{State: refresh.StateLoading, Loading: true}}, nil)

	rec := do(t, s, "GET", "/api/dashboard")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	decode(t, rec, &body)
	assert.Nil(t, body["snapshot"])
	assert.Equal(t, true, body["loading"])
}

func TestRefreshEndpoint(t *testing.T) {
	dash := &fakeDashboard{view: readyView()}
	s, _ := newTestServer(dash, nil)

	rec := do(t, s, "POST", "/api/dashboard/refresh")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	dash.busy = true
	rec = do(t, s, "POST", "/api/dashboard/refresh")
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body RefreshResponse
	decode(t, rec, &body)
	assert.False(t, body.Started)
	assert.Equal(t, 2, dash.triggers)
}

func TestOverviewEndpoint(t *testing.T) {
	s, _ := newTestServer(&fakeDashboard{view: readyView()}, nil)

	rec := do(t, s, "GET", "/api/overview?days=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var body OverviewResponse
	decode(t, rec, &body)
	assert.Equal(t, 3, body.WindowDays)
	assert.Equal(t, 3, body.Metrics.Total)
	assert.Equal(t, 125.0, body.Metrics.DepositVolume)
	assert.Equal(t, 40.0, body.Metrics.WithdrawVolume)
	assert.Equal(t, 85.0, body.Metrics.NetVolume)
	require.Len(t, body.Timeline, 3)
	assert.Equal(t, "Jun 15", body.Timeline[2].Label)
	assert.Equal(t, 125.0, body.Timeline[2].Deposits)
	assert.Equal(t, 40.0, body.Timeline[1].Withdrawals)
	assert.Len(t, body.StatusBreakdown, 3)
}

func TestOverviewEndpoint_DefaultAndInvalidDays(t *testing.T) {
	s, _ := newTestServer(&fakeDashboard{view: readyView()}, nil)

	var body OverviewResponse
	rec := do(t, s, "GET", "/api/overview")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Len(t, body.Timeline, 10)

	for _, days := range []string{"0", "-1", "abc", "91"} {
		rec := do(t, s, "GET", "/api/overview?days="+days)
		assert.Equal(t, http.StatusBadRequest, rec.Code, days)

		var errBody ErrorResponse
		decode(t, rec, &errBody)
		assert.Equal(t, "invalid_days", errBody.Code)
		assert.NotEmpty(t, errBody.RequestID)
	}
}

func TestOverviewEndpoint_NoSnapshot(t *testing.T) {
	msg := "upstream unavailable: list stablecoins: HTTP 503"
	s, _ := newTestServer(&fakeDashboard{view: refresh.View{State: refresh.StateError, Error: &msg}}, nil)

	rec := do(t, s, "GET", "/api/overview")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "snapshot_unavailable", body.Code)
	assert.Contains(t, body.Message, "HTTP 503")
}

func TestStablecoinsEndpoint(t *testing.T) {
	s, _ := newTestServer(&fakeDashboard{view: readyView()}, nil)

	rec := do(t, s, "GET", "/api/stablecoins")
	require.Equal(t, http.StatusOK, rec.Code)

	var body StablecoinsResponse
	decode(t, rec, &body)
	assert.Equal(t, 2, body.KPIs.Total)
	assert.Equal(t, 1, body.KPIs.Active)
	assert.Equal(t, 1, body.KPIs.AwaitingDeployment)
	assert.Equal(t, 60.0, body.KPIs.TotalNetVolume)

	require.Len(t, body.Stablecoins, 2)
	a, b := body.Stablecoins[0], body.Stablecoins[1]
	assert.Equal(t, "a", a.StablecoinID)
	assert.True(t, a.HasStats)
	assert.Equal(t, 60.0, a.CirculatingSupply)
	assert.Equal(t, 100.0, a.MintedLast24h)
	assert.Equal(t, "2 hours ago", a.ActivityLabel)

	assert.False(t, b.HasStats)
	assert.Equal(t, 0.0, b.CirculatingSupply)
	assert.Equal(t, 1, b.PendingRequests)
	assert.Equal(t, 25.0, b.MintedLast24h)
	assert.Equal(t, "1 hour ago", b.ActivityLabel)
}

func TestStablecoinDetailEndpoint(t *testing.T) {
	s, _ := newTestServer(&fakeDashboard{view: readyView()}, nil)

	rec := do(t, s, "GET", "/api/stablecoins/a?days=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body StablecoinDetailResponse
	decode(t, rec, &body)
	assert.Equal(t, "BRLA", body.Stablecoin.Symbol)
	require.NotNil(t, body.Stats)
	assert.Equal(t, 60.0, body.Stats.Stats.Volume.NetVolume.Float64())
	assert.Equal(t, 2, body.Metrics.Total)
	assert.Len(t, body.Timeline, 2)
	assert.Len(t, body.Operations, 2)
	assert.Equal(t, summary.Summary{
		StablecoinID:      "a",
		Symbol:            "BRLA",
		Status:            domain.StatusDeployed,
		MintedLast24h:     100,
		LastActivity:      "2025-06-15T10:00:00Z",
		CirculatingSupply: 60,
		HasStats:          true,
	}, body.Card.Summary)
}

func TestStablecoinDetailEndpoint_NotFound(t *testing.T) {
	s, _ := newTestServer(&fakeDashboard{view: readyView()}, nil)

	rec := do(t, s, "GET", "/api/stablecoins/zzz")

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "stablecoin_not_found", body.Code)
	assert.Equal(t, "Not Found", body.Error)
}

func TestUnknownEndpoint(t *testing.T) {
	s, _ := newTestServer(&fakeDashboard{view: readyView()}, nil)

	rec := do(t, s, "GET", "/api/nope")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "endpoint_not_found", body.Code)
	assert.NotEqual(t, "unknown", body.RequestID)
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		view       refresh.View
		upstream   UpstreamHealth
		wantStatus string
		wantCode   int
	}{
		{"starting", refresh.View{State: refresh.StateLoading, Loading: true}, nil, HealthStarting, http.StatusServiceUnavailable},
		{"ok", readyView(), nil, HealthOK, http.StatusOK},
		{"refresh_failed", func() refresh.View {
			v := readyView()
			msg := "boom"
			v.State, v.Error = refresh.StateError, &msg
			return v
		}(), nil, HealthDegraded, http.StatusOK},
		{"first_refresh_failed", refresh.View{State: refresh.StateError}, nil, HealthDegraded, http.StatusServiceUnavailable},
		{"upstream_degraded", readyView(), fakeUpstream{providers.BackendHealth{Degraded: true}}, HealthDegraded, http.StatusOK},
		{"upstream_degraded_while_starting", refresh.View{State: refresh.StateLoading, Loading: true}, fakeUpstream{providers.BackendHealth{Degraded: true}}, HealthStarting, http.StatusServiceUnavailable},
		{"failed_refresh_and_upstream_degraded", func() refresh.View {
			v := readyView()
			msg := "boom"
			v.State, v.Error = refresh.StateError, &msg
			return v
		}(), fakeUpstream{providers.BackendHealth{Degraded: true}}, HealthDegraded, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(&fakeDashboard{view: tt.view}, tt.upstream)

			rec := do(t, s, "GET", "/health")

			assert.Equal(t, tt.wantCode, rec.Code)
			var body HealthResponse
			decode(t, rec, &body)
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, "v-test", body.Version)
			require.NotNil(t, body.Counters)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, metrics := newTestServer(&fakeDashboard{view: readyView()}, nil)

	do(t, s, "GET", "/api/stablecoins/a")
	do(t, s, "GET", "/api/stablecoins/b")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/api/stablecoins/{id}", "200")))

	rec := do(t, s, "GET", "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "stablewatch_http_requests_total"))
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(&fakeDashboard{view: readyView()}, nil)

	req := httptest.NewRequest("GET", "/api/dashboard", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/api/dashboard", nil)
	req.Header.Set("Origin", "http://localhost.evil.com")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDPropagation(t *testing.T) {
	s, _ := newTestServer(&fakeDashboard{view: readyView()}, nil)

	req := httptest.NewRequest("GET", "/api/stablecoins/missing", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc123", rec.Header().Get("X-Request-ID"))
	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "abc123", body.RequestID)
}
