// Package summary derives the per-stablecoin activity card.
package summary

import (
	"time"

	"github.com/sawpanic/stablewatch/internal/classify"
	"github.com/sawpanic/stablewatch/internal/domain"
	"github.com/sawpanic/stablewatch/internal/metrics"
	"github.com/sawpanic/stablewatch/internal/numeric"
)

// MintWindow is the rolling window of MintedLast24h.
const MintWindow = 24 * time.Hour

// Summary is the activity of one stablecoin.
type Summary struct {
	StablecoinID      string  `json:"stablecoinId"`
	Symbol            string  `json:"symbol"`
	Status            string  `json:"status"`
	PendingRequests   int     `json:"pendingRequests"`
	MintedLast24h     float64 `json:"mintedLast24h"`
	LastActivity      string  `json:"lastActivity"`
	CirculatingSupply float64 `json:"circulatingSupply"`
	HasStats          bool    `json:"hasStats"`
}

// Build summarises one coin at instant now. stats may be nil.
//
// The 24h mint window is relative to now, not to when the snapshot was
// fetched, so the same data can summarise differently at two instants.
// Circulating supply comes only from stats and is 0 without them.
func Build(coin domain.StablecoinRecord, stats *domain.StablecoinStats, ops []domain.OperationRecord, now time.Time) Summary {
	coinOps := metrics.ForStablecoin(ops, coin.StablecoinID)

	s := Summary{
		StablecoinID: coin.StablecoinID,
		Symbol:       coin.Symbol,
		Status:       coin.Status,
		HasStats:     stats != nil,
	}

	for _, op := range coinOps {
		if classify.IsPending(op.Status) {
			s.PendingRequests++
		}
		if op.IsDeposit() && withinWindow(op, now) {
			s.MintedLast24h += numeric.ToNumber(op.Amount)
		}
	}

	s.LastActivity = lastActivity(coin, stats, coinOps)
	if stats != nil {
		s.CirculatingSupply = stats.Stats.Volume.NetVolume.Float64()
	}
	return s
}

// BuildAll summarises every coin of the snapshot, in snapshot order.
func BuildAll(snap *domain.Snapshot, now time.Time) []Summary {
	if snap == nil {
		return []Summary{}
	}
	out := make([]Summary, 0, len(snap.Stablecoins))
	for _, coin := range snap.Stablecoins {
		out = append(out, Build(coin, snap.Stats(coin.StablecoinID), snap.Operations, now))
	}
	return out
}

// Future timestamps count as inside the window.
func withinWindow(op domain.OperationRecord, now time.Time) bool {
	created, ok := op.CreatedTime()
	if !ok {
		return false
	}
	return now.Sub(created) <= MintWindow
}

// lastActivity picks the first non-empty of: the latest operation from stats,
// the newest matching operation, the coin's updated_at, the coin's created_at.
func lastActivity(coin domain.StablecoinRecord, stats *domain.StablecoinStats, coinOps []domain.OperationRecord) string {
	if stats != nil && stats.Stats.LatestOperation != nil && stats.Stats.LatestOperation.CreatedAt != "" {
		return stats.Stats.LatestOperation.CreatedAt
	}
	if newest := newestCreatedAt(coinOps); newest != "" {
		return newest
	}
	if coin.UpdatedAt != "" {
		return coin.UpdatedAt
	}
	return coin.CreatedAt
}

// newestCreatedAt returns the raw created_at of the most recent operation.
// When no timestamp parses it falls back to the first non-empty one.
func newestCreatedAt(ops []domain.OperationRecord) string {
	var (
		newest    time.Time
		newestRaw string
		firstRaw  string
	)
	for _, op := range ops {
		if op.CreatedAt == "" {
			continue
		}
		if firstRaw == "" {
			firstRaw = op.CreatedAt
		}
		created, ok := op.CreatedTime()
		if ok && (newestRaw == "" || created.After(newest)) {
			newest = created
			newestRaw = op.CreatedAt
		}
	}
	if newestRaw != "" {
		return newestRaw
	}
	return firstRaw
}
