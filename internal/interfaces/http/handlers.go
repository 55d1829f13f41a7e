package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/stablewatch/internal/domain"
	"github.com/sawpanic/stablewatch/internal/metrics"
	"github.com/sawpanic/stablewatch/internal/refresh"
	"github.com/sawpanic/stablewatch/internal/summary"
)

// MaxTimelineDays bounds the days query parameter.
const MaxTimelineDays = 90

// Dashboard is the refresh controller as seen by the API.
type Dashboard interface {
	View() refresh.View
	Trigger() bool
}

// Handlers serves the dashboard API from the current snapshot. Every request
// computes its figures at request time.
type Handlers struct {
	dashboard    Dashboard
	timelineDays int
	now          func() time.Time
}

func NewHandlers(dashboard Dashboard, timelineDays int) *Handlers {
	if timelineDays <= 0 {
		timelineDays = metrics.DefaultTimelineDays
	}
	return &Handlers{
		dashboard:    dashboard,
		timelineDays: timelineDays,
		now:          time.Now,
	}
}

// Dashboard handles GET /api/dashboard
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.dashboard.View())
}

// Refresh handles POST /api/dashboard/refresh
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.dashboard.Trigger() {
		h.writeJSON(w, http.StatusConflict, RefreshResponse{
			Started: false,
			State:   refresh.StateLoading,
			Message: "a refresh is already in flight",
		})
		return
	}
	h.writeJSON(w, http.StatusAccepted, RefreshResponse{
		Started: true,
		State:   refresh.StateLoading,
		Message: "refresh started",
	})
}

// Overview handles GET /api/overview?days=N
func (h *Handlers) Overview(w http.ResponseWriter, r *http.Request) {
	days, ok := h.parseDays(w, r)
	if !ok {
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	now := h.now().UTC()
	h.writeJSON(w, http.StatusOK, OverviewResponse{
		GeneratedAt:     now,
		FetchedAt:       snap.FetchedAt,
		WindowDays:      days,
		Metrics:         metrics.ComputeOperationMetrics(snap.Operations),
		Timeline:        metrics.BuildTimeline(snap.Operations, days, now),
		StatusBreakdown: metrics.StatusBreakdown(snap.Operations),
	})
}

// Stablecoins handles GET /api/stablecoins
func (h *Handlers) Stablecoins(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	now := h.now().UTC()
	summaries := summary.BuildAll(snap, now)
	cards := make([]StablecoinCard, 0, len(summaries))
	for _, s := range summaries {
		cards = append(cards, card(s, now))
	}

	h.writeJSON(w, http.StatusOK, StablecoinsResponse{
		GeneratedAt: now,
		FetchedAt:   snap.FetchedAt,
		KPIs:        metrics.ComputeStablecoinKPIs(snap),
		Stablecoins: cards,
	})
}

// Stablecoin handles GET /api/stablecoins/{id}
func (h *Handlers) Stablecoin(w http.ResponseWriter, r *http.Request) {
	days, ok := h.parseDays(w, r)
	if !ok {
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	coin, found := snap.Stablecoin(id)
	if !found {
		h.writeError(w, r, http.StatusNotFound, "stablecoin_not_found",
			"No stablecoin with id "+strconv.Quote(id)+" in the current snapshot")
		return
	}

	now := h.now().UTC()
	stats := snap.Stats(id)
	ops := metrics.ForStablecoin(snap.Operations, id)

	h.writeJSON(w, http.StatusOK, StablecoinDetailResponse{
		GeneratedAt:     now,
		FetchedAt:       snap.FetchedAt,
		Stablecoin:      coin,
		Stats:           stats,
		Card:            card(summary.Build(coin, stats, snap.Operations, now), now),
		Metrics:         metrics.ComputeOperationMetrics(ops),
		Timeline:        metrics.BuildTimeline(ops, days, now),
		StatusBreakdown: metrics.StatusBreakdown(ops),
		Operations:      ops,
	})
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

func card(s summary.Summary, now time.Time) StablecoinCard {
	return StablecoinCard{Summary: s, ActivityLabel: summary.RelativeLabel(s.LastActivity, now)}
}

// snapshot writes 503 and returns false when nothing has been fetched yet.
func (h *Handlers) snapshot(w http.ResponseWriter, r *http.Request) (*domain.Snapshot, bool) {
	view := h.dashboard.View()
	if view.Snapshot != nil {
		return view.Snapshot, true
	}

	msg := "No snapshot has been fetched yet"
	if view.Error != nil {
		msg = "No snapshot available: " + *view.Error
	}
	h.writeError(w, r, http.StatusServiceUnavailable, "snapshot_unavailable", msg)
	return nil, false
}

func (h *Handlers) parseDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return h.timelineDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > MaxTimelineDays {
		h.writeError(w, r, http.StatusBadRequest, "invalid_days",
			"days must be an integer between 1 and "+strconv.Itoa(MaxTimelineDays))
		return 0, false
	}
	return days, true
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

// writeJSON writes JSON response with proper error handling
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes standardized error response
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: RequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}
