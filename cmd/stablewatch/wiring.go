package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sawpanic/stablewatch/internal/config"
	"github.com/sawpanic/stablewatch/internal/gateway"
	"github.com/sawpanic/stablewatch/internal/infrastructure/httpclient"
	"github.com/sawpanic/stablewatch/internal/infrastructure/providers"
	"github.com/sawpanic/stablewatch/internal/telemetry"
)

type components struct {
	metrics *telemetry.MetricsRegistry
	backend *providers.BackendClient
	gateway *gateway.Gateway
}

func buildComponents(cfg *config.Config) (*components, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetricsRegistry(reg)

	up := cfg.Upstream
	backend, err := providers.NewBackendClient(providers.BackendConfig{
		BaseURL: up.BaseURL,
		APIKey:  up.APIKey,
		Client: httpclient.ClientConfig{
			MaxConcurrency: up.MaxConcurrency,
			RequestTimeout: up.RequestTimeout,
			MaxRetries:     up.MaxRetries,
			BackoffBase:    up.Backoff.Base,
			BackoffMax:     up.Backoff.Max,
			UserAgent:      up.UserAgent,
		},
		RPS:   up.RPS,
		Burst: up.Burst,
		Breaker: &providers.CircuitBreakerConfig{
			MaxRequests:         up.Circuit.MaxRequests,
			Interval:            up.Circuit.Interval,
			Timeout:             up.Circuit.Timeout,
			ErrorRateThreshold:  up.Circuit.ErrorRateThreshold,
			ConsecutiveFailures: up.Circuit.ConsecutiveFailures,
		},
	}, metrics)
	if err != nil {
		return nil, err
	}

	gw := gateway.New(backend, gateway.Config{
		StablecoinLimit: up.StablecoinLimit,
		OperationLimit:  up.OperationLimit,
		StatsTimeout:    up.StatsTimeout,
	}, metrics)

	return &components{metrics: metrics, backend: backend, gateway: gw}, nil
}
