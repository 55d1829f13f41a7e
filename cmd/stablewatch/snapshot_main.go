package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/stablewatch/internal/domain"
	"github.com/sawpanic/stablewatch/internal/metrics"
	"github.com/sawpanic/stablewatch/internal/summary"
)

type snapshotReport struct {
	FetchedAt       time.Time                `json:"fetchedAt"`
	KPIs            metrics.StablecoinKPIs   `json:"kpis"`
	Metrics         metrics.OperationMetrics `json:"metrics"`
	Timeline        []metrics.TimelinePoint  `json:"timeline"`
	StatusBreakdown []metrics.StatusCount    `json:"statusBreakdown"`
	Stablecoins     []summary.Summary        `json:"stablecoins"`
	MissingStats    []string                 `json:"missingStats"`
}

func newSnapshotCmd(flags *globalFlags) *cobra.Command {
	var (
		days int
		raw  bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch one snapshot and print derived metrics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.Metrics.TimelineDays
			}
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}

			comps, err := buildComponents(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, cfg.Refresh.Timeout)
			defer cancel()

			snap, err := comps.gateway.AssembleSnapshot(ctx)
			if err != nil {
				return err
			}

			if raw {
				return writeIndented(cmd.OutOrStdout(), snap)
			}
			return writeIndented(cmd.OutOrStdout(), buildReport(snap, days, time.Now().UTC()))
		},
	}

	cmd.Flags().IntVar(&days, "days", 10, "Timeline window in days")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the raw snapshot instead of derived metrics")
	return cmd
}

func buildReport(snap *domain.Snapshot, days int, now time.Time) snapshotReport {
	missing := []string{}
	for _, coin := range snap.Stablecoins {
		if snap.Stats(coin.StablecoinID) == nil {
			missing = append(missing, coin.StablecoinID)
		}
	}

	return snapshotReport{
		FetchedAt:       snap.FetchedAt,
		KPIs:            metrics.ComputeStablecoinKPIs(snap),
		Metrics:         metrics.ComputeOperationMetrics(snap.Operations),
		Timeline:        metrics.BuildTimeline(snap.Operations, days, now),
		StatusBreakdown: metrics.StatusBreakdown(snap.Operations),
		Stablecoins:     summary.BuildAll(snap, now),
		MissingStats:    missing,
	}
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
