// Package gateway assembles a dashboard snapshot from the three backend
// sources.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/stablewatch/internal/domain"
	"github.com/sawpanic/stablewatch/internal/telemetry"
)

// ErrUpstreamUnavailable is returned when either list call fails. No partial
// snapshot is produced in that case.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

const (
	DefaultStablecoinLimit = 100
	DefaultOperationLimit  = 200
	DefaultStatsTimeout    = 10 * time.Second
)

// Source is the backend as seen by the gateway.
type Source interface {
	ListStablecoins(ctx context.Context, limit int) (domain.Page[domain.StablecoinRecord], error)
	ListOperations(ctx context.Context, limit int) (domain.Page[domain.OperationRecord], error)
	GetStats(ctx context.Context, stablecoinID string) (domain.StablecoinStats, error)
}

type Config struct {
	StablecoinLimit int
	OperationLimit  int
	// StatsTimeout bounds each per-coin stats call on its own.
	StatsTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		StablecoinLimit: DefaultStablecoinLimit,
		OperationLimit:  DefaultOperationLimit,
		StatsTimeout:    DefaultStatsTimeout,
	}
}

type Gateway struct {
	source  Source
	config  Config
	metrics *telemetry.MetricsRegistry
	now     func() time.Time
}

func New(source Source, config Config, metrics *telemetry.MetricsRegistry) *Gateway {
	if config.StablecoinLimit <= 0 {
		config.StablecoinLimit = DefaultStablecoinLimit
	}
	if config.OperationLimit <= 0 {
		config.OperationLimit = DefaultOperationLimit
	}
	if config.StatsTimeout <= 0 {
		config.StatsTimeout = DefaultStatsTimeout
	}
	return &Gateway{
		source:  source,
		config:  config,
		metrics: metrics,
		now:     time.Now,
	}
}

// AssembleSnapshot lists stablecoins and operations concurrently, then
// fetches stats for every listed coin concurrently. A failed list call fails
// the whole assembly; a failed stats call only leaves that coin without
// stats.
func (g *Gateway) AssembleSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	start := time.Now()

	var (
		coins []domain.StablecoinRecord
		ops   []domain.OperationRecord
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		page, err := g.source.ListStablecoins(egCtx, g.config.StablecoinLimit)
		if err != nil {
			return fmt.Errorf("%w: list stablecoins: %w", ErrUpstreamUnavailable, err)
		}
		coins = page.Data
		return nil
	})
	eg.Go(func() error {
		page, err := g.source.ListOperations(egCtx, g.config.OperationLimit)
		if err != nil {
			return fmt.Errorf("%w: list operations: %w", ErrUpstreamUnavailable, err)
		}
		ops = page.Data
		return nil
	})
	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Snapshot assembly failed")
		return nil, err
	}

	if coins == nil {
		coins = []domain.StablecoinRecord{}
	}
	if ops == nil {
		ops = []domain.OperationRecord{}
	}

	stats := g.fetchStats(ctx, coins)

	snap := &domain.Snapshot{
		Stablecoins:       coins,
		Operations:        ops,
		StatsByStablecoin: stats,
		FetchedAt:         g.now().UTC(),
	}

	g.metrics.RecordSnapshot(snap.FetchedAt, len(coins), len(ops), len(stats))
	log.Info().
		Int("stablecoins", len(coins)).
		Int("operations", len(ops)).
		Int("stats", len(stats)).
		Dur("duration", time.Since(start)).
		Msg("Snapshot assembled")

	return snap, nil
}

type statsResult struct {
	id    string
	stats domain.StablecoinStats
	err   error
}

// fetchStats never fails: coins whose call errors are left out of the map.
// Calls do not cancel each other.
func (g *Gateway) fetchStats(ctx context.Context, coins []domain.StablecoinRecord) map[string]domain.StablecoinStats {
	ids := uniqueIDs(coins)
	results := make([]statsResult, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, g.config.StatsTimeout)
			defer cancel()

			stats, err := g.source.GetStats(callCtx, id)
			results[i] = statsResult{id: id, stats: stats, err: err}
		}(i, id)
	}
	wg.Wait()

	out := make(map[string]domain.StablecoinStats, len(ids))
	for _, r := range results {
		if r.err != nil {
			g.metrics.RecordStatsFailure()
			log.Warn().
				Err(r.err).
				Str("stablecoin_id", r.id).
				Msg("Stats unavailable, leaving coin without enrichment")
			continue
		}
		out[r.id] = r.stats
	}
	return out
}

func uniqueIDs(coins []domain.StablecoinRecord) []string {
	seen := make(map[string]struct{}, len(coins))
	ids := make([]string, 0, len(coins))
	for _, coin := range coins {
		if _, ok := seen[coin.StablecoinID]; ok {
			continue
		}
		seen[coin.StablecoinID] = struct{}{}
		ids = append(ids, coin.StablecoinID)
	}
	return ids
}
