// Package providers talks to the stablecoin backend.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/stablewatch/internal/domain"
	"github.com/sawpanic/stablewatch/internal/infrastructure/httpclient"
	"github.com/sawpanic/stablewatch/internal/telemetry"
)

// Backend endpoints, relative to the base URL.
const (
	EndpointStablecoins = "list-client-stablecoins"
	EndpointOperations  = "list-client-operations"
	EndpointStats       = "get-stablecoin-stats"
)

// Endpoints lists every backend endpoint.
var Endpoints = []string{EndpointStablecoins, EndpointOperations, EndpointStats}

type BackendConfig struct {
	BaseURL string
	APIKey  string

	Client  httpclient.ClientConfig
	RPS     float64
	Burst   int
	Breaker *CircuitBreakerConfig
}

// BackendClient fetches raw records. Every request carries the API key and
// passes through a rate limiter and a per-endpoint circuit breaker.
type BackendClient struct {
	baseURL  *url.URL
	apiKey   string
	client   *httpclient.ClientPool
	breakers *CircuitBreakerManager
	limiter  *RateLimiter
	metrics  *telemetry.MetricsRegistry

	mu             sync.RWMutex
	degraded       bool
	degradedReason string
}

func NewBackendClient(config BackendConfig, metrics *telemetry.MetricsRegistry) (*BackendClient, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", config.BaseURL)
	}

	c := &BackendClient{
		baseURL:  base,
		apiKey:   config.APIKey,
		client:   httpclient.NewClientPool(config.Client),
		breakers: NewCircuitBreakerManager(),
		limiter:  NewRateLimiter(config.RPS, config.Burst),
		metrics:  metrics,
	}

	c.breakers.OnStateChange(func(endpoint string, state gobreaker.State) {
		c.metrics.RecordBreakerState(endpoint, BreakerStateValue(state))
	})
	for _, endpoint := range Endpoints {
		breaker := DefaultBreakerConfig(endpoint)
		if config.Breaker != nil {
			b := *config.Breaker
			b.Name = endpoint
			breaker = &b
		}
		c.breakers.InitializeEndpoint(endpoint, breaker)
		c.metrics.RecordBreakerState(endpoint, 0)
	}

	return c, nil
}

// ListStablecoins returns one page of at most limit stablecoins.
func (c *BackendClient) ListStablecoins(ctx context.Context, limit int) (domain.Page[domain.StablecoinRecord], error) {
	var page domain.Page[domain.StablecoinRecord]
	err := c.get(ctx, EndpointStablecoins, url.Values{"limit": {strconv.Itoa(limit)}}, &page)
	if page.Data == nil {
		page.Data = []domain.StablecoinRecord{}
	}
	return page, err
}

// ListOperations returns one page of at most limit operations.
func (c *BackendClient) ListOperations(ctx context.Context, limit int) (domain.Page[domain.OperationRecord], error) {
	var page domain.Page[domain.OperationRecord]
	err := c.get(ctx, EndpointOperations, url.Values{"limit": {strconv.Itoa(limit)}}, &page)
	if page.Data == nil {
		page.Data = []domain.OperationRecord{}
	}
	return page, err
}

// GetStats returns the precomputed stats of one stablecoin.
func (c *BackendClient) GetStats(ctx context.Context, stablecoinID string) (domain.StablecoinStats, error) {
	var stats domain.StablecoinStats
	err := c.get(ctx, EndpointStats, url.Values{"stablecoin_id": {stablecoinID}}, &stats)
	if err == nil && stats.StablecoinID == "" {
		stats.StablecoinID = stablecoinID
	}
	return stats, err
}

func (c *BackendClient) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	target := c.baseURL.JoinPath(endpoint)
	target.RawQuery = query.Encode()

	_, err := c.breakers.Execute(endpoint, func() (interface{}, error) {
		return nil, c.fetch(ctx, endpoint, target.String(), out)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %s: %w", ErrBackend, endpoint, err)
		}
		c.setDegraded(endpoint, err)
		return err
	}
	c.clearDegraded()
	return nil
}

func (c *BackendClient) fetch(ctx context.Context, endpoint, target string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBackend, endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBackend, endpoint, err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(ctx, req)
	duration := time.Since(start)

	if err != nil {
		c.metrics.RecordUpstream(endpoint, 0, duration)
		log.Error().Err(err).Str("endpoint", endpoint).Dur("duration", duration).Msg("Backend request failed")
		return fmt.Errorf("%w: %s: %w", ErrBackend, endpoint, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordUpstream(endpoint, resp.StatusCode, duration)
	c.limiter.UpdateFromHeaders(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: truncate(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %w", ErrBackend, endpoint, err)
	}

	log.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("Backend request completed")

	return nil
}

func (c *BackendClient) setDegraded(endpoint string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.degraded = true
	c.degradedReason = fmt.Sprintf("%s: %v", endpoint, err)
}

func (c *BackendClient) clearDegraded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.degraded = false
	c.degradedReason = ""
}

// Health reports whether the last request failed, the state of every
// breaker, the rate budget and the pool counters.
func (c *BackendClient) Health() BackendHealth {
	c.mu.RLock()
	degraded, reason := c.degraded, c.degradedReason
	c.mu.RUnlock()

	return BackendHealth{
		Degraded: degraded,
		Reason:   reason,
		Breakers: c.breakers.Statuses(),
		Budget:   c.limiter.GetBudgetStatus(),
		Pool:     c.client.GetStats(),
	}
}

type BackendHealth struct {
	Degraded bool                      `json:"degraded"`
	Reason   string                    `json:"reason,omitempty"`
	Breakers map[string]*BreakerStatus `json:"breakers"`
	Budget   RLBudget                  `json:"budget"`
	Pool     httpclient.ClientStats    `json:"pool"`
}
