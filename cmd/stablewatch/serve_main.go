package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/stablewatch/internal/config"
	httpapi "github.com/sawpanic/stablewatch/internal/interfaces/http"
	"github.com/sawpanic/stablewatch/internal/refresh"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the refresh loop and the dashboard API",
		Long: `Fetches a snapshot at startup and then on every refresh interval, and
serves /api/dashboard, /api/overview, /api/stablecoins, /health and /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Listen host")
	cmd.Flags().IntVar(&port, "port", 8080, "Listen port (overrides HTTP_PORT)")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	comps, err := buildComponents(cfg)
	if err != nil {
		return err
	}

	controller := refresh.NewController(comps.gateway, refresh.Config{
		Interval: cfg.Refresh.Interval,
		Timeout:  cfg.Refresh.Timeout,
	}, comps.metrics)

	handlers := httpapi.NewHandlers(controller, cfg.Metrics.TimelineDays)
	health := httpapi.NewHealthHandler(controller, comps.backend, comps.metrics, version)
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, handlers, health, comps.metrics)

	if err := server.CheckPortAvailable(); err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go controller.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
