package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/sawpanic/stablewatch/internal/config"
)

const (
	appName = "stablewatch"
	version = "v1.0.0"
)

// Persistent flags shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	baseURL    string
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&g.configPath, "config", "c", "", "Path to YAML config file")
	fs.StringVar(&g.logLevel, "log-level", "", "Log level (trace|debug|info|warn|error), overrides config")
	fs.StringVar(&g.baseURL, "base-url", "", "Backend base URL, overrides config and "+config.EnvBaseURL)
}

func main() {
	setupLogging(os.Stderr)

	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Stablecoin operations dashboard backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `stablewatch aggregates stablecoin programs, their deposit/withdrawal
operations and per-coin stats from the backend into periodically refreshed
snapshots, and serves derived metrics to the dashboard over HTTP.`,
	}
	flags.register(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCmd(flags))
	rootCmd.AddCommand(newSnapshotCmd(flags))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// setupLogging writes human readable logs to a terminal and JSON otherwise.
func setupLogging(out *os.File) {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(out.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// loadConfig resolves file, environment and flag values, in that order.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath, config.Overrides{
		BaseURL:  flags.baseURL,
		LogLevel: flags.logLevel,
	})
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	log.Debug().
		Str("base_url", cfg.Upstream.BaseURL).
		Str("api_key", cfg.Upstream.RedactedAPIKey()).
		Dur("refresh_interval", cfg.Refresh.Interval).
		Msg("Configuration loaded")

	return cfg, nil
}
