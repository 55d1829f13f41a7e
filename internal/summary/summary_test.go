package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stablewatch/internal/domain"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func ts(t time.Time) string { return t.Format(time.RFC3339) }

func coinA() domain.StablecoinRecord {
	return domain.StablecoinRecord{
		StablecoinID: "A",
		Symbol:       "BRLA",
		Status:       domain.StatusDeployed,
		CreatedAt:    "2025-01-01T00:00:00Z",
		UpdatedAt:    "2025-02-01T00:00:00Z",
	}
}

func deposit(coin string, amount any, created string) domain.OperationRecord {
	return domain.OperationRecord{
		OperationID:   "op",
		StablecoinID:  coin,
		OperationType: domain.OperationDeposit,
		Amount:        amount,
		Status:        "minted",
		CreatedAt:     created,
	}
}

func TestBuild_NoStatsRecentDeposit(t *testing.T) {
	ops := []domain.OperationRecord{deposit("A", "100", ts(now.Add(-2*time.Hour)))}

	s := Build(coinA(), nil, ops, now)

	assert.Equal(t, 0.0, s.CirculatingSupply)
	assert.Equal(t, 100.0, s.MintedLast24h)
	assert.False(t, s.HasStats)
	assert.Equal(t, ts(now.Add(-2*time.Hour)), s.LastActivity)
}

func TestBuild_NoStatsOldDeposit(t *testing.T) {
	ops := []domain.OperationRecord{deposit("A", "100", ts(now.Add(-25*time.Hour)))}

	s := Build(coinA(), nil, ops, now)

	assert.Equal(t, 0.0, s.CirculatingSupply)
	assert.Equal(t, 0.0, s.MintedLast24h)
}

func TestBuild_WindowIsRelativeToBuildTime(t *testing.T) {
	ops := []domain.OperationRecord{deposit("A", 10, ts(now.Add(-23*time.Hour)))}

	assert.Equal(t, 10.0, Build(coinA(), nil, ops, now).MintedLast24h)
	assert.Equal(t, 0.0, Build(coinA(), nil, ops, now.Add(2*time.Hour)).MintedLast24h)
}

func TestBuild_MintedLast24h(t *testing.T) {
	ops := []domain.OperationRecord{
		deposit("A", "10", ts(now.Add(-24*time.Hour))),
		deposit("A", 5.5, ts(now.Add(-time.Minute))),
		deposit("A", "2", ts(now.Add(time.Hour))),
		deposit("A", "bad", ts(now.Add(-time.Minute))),
		deposit("A", "1000", "not a date"),
		deposit("B", "1000", ts(now)),
		{StablecoinID: "A", OperationType: domain.OperationWithdraw, Amount: "7", CreatedAt: ts(now)},
	}

	s := Build(coinA(), nil, ops, now)

	assert.Equal(t, 17.5, s.MintedLast24h)
}

func TestBuild_PendingRequests(t *testing.T) {
	ops := []domain.OperationRecord{
		{StablecoinID: "A", Status: "payment_pending"},
		{StablecoinID: "A", Status: "minting_in_progress"},
		{StablecoinID: "A", Status: "minted_pending_notification"},
		{StablecoinID: "A", Status: "pending_failed"},
		{StablecoinID: "B", Status: "payment_pending"},
	}

	assert.Equal(t, 2, Build(coinA(), nil, ops, now).PendingRequests)
}

func TestBuild_WithStats(t *testing.T) {
	stats := &domain.StablecoinStats{
		StablecoinID: "A",
		Stats: domain.StatsBody{
			Volume:          domain.VolumeTotals{TotalDeposits: 500, TotalWithdrawals: 200, NetVolume: 300},
			LatestOperation: &domain.LatestOperation{CreatedAt: "2025-06-10T00:00:00Z"},
		},
	}
	ops := []domain.OperationRecord{deposit("A", "100", ts(now))}

	s := Build(coinA(), stats, ops, now)

	assert.True(t, s.HasStats)
	assert.Equal(t, 300.0, s.CirculatingSupply)
	assert.Equal(t, "2025-06-10T00:00:00Z", s.LastActivity)
	assert.Equal(t, 100.0, s.MintedLast24h)
}

func TestBuild_LastActivityFallbacks(t *testing.T) {
	older := deposit("A", 1, "2025-06-01T00:00:00Z")
	newer := deposit("A", 1, "2025-06-03T00:00:00Z")

	t.Run("newest_operation", func(t *testing.T) {
		s := Build(coinA(), &domain.StablecoinStats{}, []domain.OperationRecord{older, newer}, now)
		assert.Equal(t, "2025-06-03T00:00:00Z", s.LastActivity)
	})

	t.Run("unparseable_operation_timestamp", func(t *testing.T) {
		s := Build(coinA(), nil, []domain.OperationRecord{deposit("A", 1, "sometime")}, now)
		assert.Equal(t, "sometime", s.LastActivity)
	})

	t.Run("updated_at", func(t *testing.T) {
		s := Build(coinA(), nil, nil, now)
		assert.Equal(t, "2025-02-01T00:00:00Z", s.LastActivity)
	})

	t.Run("created_at", func(t *testing.T) {
		coin := coinA()
		coin.UpdatedAt = ""
		s := Build(coin, nil, nil, now)
		assert.Equal(t, "2025-01-01T00:00:00Z", s.LastActivity)
	})
}

func TestBuildAll(t *testing.T) {
	snap := &domain.Snapshot{
		Stablecoins: []domain.StablecoinRecord{coinA(), {StablecoinID: "B", Symbol: "USDX"}},
		Operations:  []domain.OperationRecord{deposit("B", "40", ts(now))},
		StatsByStablecoin: map[string]domain.StablecoinStats{
			"A": {Stats: domain.StatsBody{Volume: domain.VolumeTotals{NetVolume: 9}}},
		},
	}

	all := BuildAll(snap, now)

	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].StablecoinID)
	assert.Equal(t, 9.0, all[0].CirculatingSupply)
	assert.Equal(t, "B", all[1].StablecoinID)
	assert.Equal(t, 40.0, all[1].MintedLast24h)
	assert.False(t, all[1].HasStats)
	assert.Empty(t, BuildAll(nil, now))
}

func TestRelativeLabel(t *testing.T) {
	tests := []struct {
		name string
		ts   string
		want string
	}{
		{"empty", "", LabelNoActivity},
		{"garbage", "soon", LabelDateUnavailable},
		{"now", ts(now), "now"},
		{"minutes_ago", ts(now.Add(-5 * time.Minute)), "5 minutes ago"},
		{"one_minute_ago", ts(now.Add(-time.Minute)), "1 minute ago"},
		{"hours_ago", ts(now.Add(-3 * time.Hour)), "3 hours ago"},
		{"days_ago", ts(now.Add(-72 * time.Hour)), "3 days ago"},
		{"in_hours", ts(now.Add(2 * time.Hour)), "in 2 hours"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RelativeLabel(tt.ts, now))
		})
	}
}
