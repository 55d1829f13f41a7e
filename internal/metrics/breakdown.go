package metrics

import (
	"sort"
	"strings"

	"github.com/sawpanic/stablewatch/internal/classify"
	"github.com/sawpanic/stablewatch/internal/domain"
)

// StatusCount is how many operations carry one raw status.
type StatusCount struct {
	Status string         `json:"status"`
	Label  string         `json:"label"`
	Class  classify.Class `json:"class"`
	Count  int            `json:"count"`
	Share  float64        `json:"share"`
}

// StatusBreakdown counts operations per raw status, most frequent first.
// Ties are ordered by status.
func StatusBreakdown(ops []domain.OperationRecord) []StatusCount {
	counts := make(map[string]int)
	for _, op := range ops {
		counts[op.Status]++
	}

	breakdown := make([]StatusCount, 0, len(counts))
	for status, count := range counts {
		breakdown = append(breakdown, StatusCount{
			Status: status,
			Label:  strings.ReplaceAll(status, "_", " "),
			Class:  classify.Classify(status),
			Count:  count,
			Share:  float64(count) / float64(len(ops)),
		})
	}

	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Count != breakdown[j].Count {
			return breakdown[i].Count > breakdown[j].Count
		}
		return breakdown[i].Status < breakdown[j].Status
	})
	return breakdown
}

// StablecoinKPIs are the headline figures of the stablecoins tab.
type StablecoinKPIs struct {
	Total              int     `json:"total"`
	Active             int     `json:"active"`
	AwaitingDeployment int     `json:"awaitingDeployment"`
	WithStats          int     `json:"withStats"`
	TotalNetVolume     float64 `json:"totalNetVolume"`
}

// ComputeStablecoinKPIs counts coins by deployment state and sums the net
// volume reported by the stats that are present.
func ComputeStablecoinKPIs(snap *domain.Snapshot) StablecoinKPIs {
	var k StablecoinKPIs
	if snap == nil {
		return k
	}
	k.Total = len(snap.Stablecoins)
	for _, coin := range snap.Stablecoins {
		switch {
		case coin.IsDeployed():
			k.Active++
		case coin.Status == domain.StatusRegistered:
			k.AwaitingDeployment++
		}
	}
	for _, st := range snap.StatsByStablecoin {
		k.TotalNetVolume += st.Stats.Volume.NetVolume.Float64()
		k.WithStats++
	}
	return k
}
