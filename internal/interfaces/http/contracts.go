package http

import (
	"time"

	"github.com/sawpanic/stablewatch/internal/domain"
	"github.com/sawpanic/stablewatch/internal/metrics"
	"github.com/sawpanic/stablewatch/internal/refresh"
	"github.com/sawpanic/stablewatch/internal/summary"
)

// RefreshResponse answers POST /api/dashboard/refresh
type RefreshResponse struct {
	Started bool          `json:"started"`
	State   refresh.State `json:"state"`
	Message string        `json:"message"`
}

// OverviewResponse aggregates every operation of the snapshot
type OverviewResponse struct {
	GeneratedAt     time.Time                `json:"generatedAt"`
	FetchedAt       time.Time                `json:"fetchedAt"`
	WindowDays      int                      `json:"windowDays"`
	Metrics         metrics.OperationMetrics `json:"metrics"`
	Timeline        []metrics.TimelinePoint  `json:"timeline"`
	StatusBreakdown []metrics.StatusCount    `json:"statusBreakdown"`
}

// StablecoinCard is a summary plus its human activity label
type StablecoinCard struct {
	summary.Summary
	ActivityLabel string `json:"activityLabel"`
}

// StablecoinsResponse lists every coin with headline figures
type StablecoinsResponse struct {
	GeneratedAt time.Time              `json:"generatedAt"`
	FetchedAt   time.Time              `json:"fetchedAt"`
	KPIs        metrics.StablecoinKPIs `json:"kpis"`
	Stablecoins []StablecoinCard       `json:"stablecoins"`
}

// StablecoinDetailResponse is everything known about one coin
type StablecoinDetailResponse struct {
	GeneratedAt     time.Time                `json:"generatedAt"`
	FetchedAt       time.Time                `json:"fetchedAt"`
	Stablecoin      domain.StablecoinRecord  `json:"stablecoin"`
	Stats           *domain.StablecoinStats  `json:"stats"`
	Card            StablecoinCard           `json:"summary"`
	Metrics         metrics.OperationMetrics `json:"metrics"`
	Timeline        []metrics.TimelinePoint  `json:"timeline"`
	StatusBreakdown []metrics.StatusCount    `json:"statusBreakdown"`
	Operations      []domain.OperationRecord `json:"operations"`
}

// ErrorResponse represents API error responses
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}
