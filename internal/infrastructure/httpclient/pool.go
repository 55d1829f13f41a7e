// Package httpclient is the bounded, retrying HTTP client used for backend
// calls.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type ClientConfig struct {
	MaxConcurrency int
	RequestTimeout time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	UserAgent      string

	// Transport overrides the default transport when set.
	Transport http.RoundTripper
}

// DefaultClientConfig matches the backend's documented limits.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxConcurrency: 8,
		RequestTimeout: 10 * time.Second,
		MaxRetries:     2,
		BackoffBase:    250 * time.Millisecond,
		BackoffMax:     4 * time.Second,
		UserAgent:      "stablewatch/1.0",
	}
}

// ClientPool limits concurrent requests and retries transient failures.
type ClientPool struct {
	config    ClientConfig
	semaphore chan struct{}
	client    *http.Client
	mu        sync.RWMutex
	stats     ClientStats
}

type ClientStats struct {
	TotalRequests   int64         `json:"total_requests"`
	SuccessRequests int64         `json:"success_requests"`
	FailedRequests  int64         `json:"failed_requests"`
	RetriedRequests int64         `json:"retried_requests"`
	TotalLatency    time.Duration `json:"total_latency_ns"`
}

func NewClientPool(config ClientConfig) *ClientPool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &ClientPool{
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrency),
		client: &http.Client{
			Timeout:   config.RequestTimeout,
			Transport: config.Transport,
		},
	}
}

// Do sends req, retrying network errors and 429/502/503/504 responses with
// exponential backoff. The returned response is the caller's to close. When
// the last attempt still gets a retryable status that response is returned
// so the caller sees the real code.
func (cp *ClientPool) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	select {
	case cp.semaphore <- struct{}{}:
		defer func() { <-cp.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if cp.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", cp.config.UserAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= cp.config.MaxRetries; attempt++ {
		if attempt > 0 {
			cp.record(func(s *ClientStats) { s.RetriedRequests++ })

			backoff := cp.calculateBackoff(attempt)
			log.Debug().
				Dur("backoff", backoff).
				Int("attempt", attempt).
				Str("url", req.URL.String()).
				Err(lastErr).
				Msg("Retrying backend request")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		start := time.Now()
		resp, err := cp.client.Do(req.Clone(ctx))
		latency := time.Since(start)

		if err != nil {
			lastErr = err
			cp.record(func(s *ClientStats) {
				s.TotalRequests++
				s.FailedRequests++
				s.TotalLatency += latency
			})
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isRetryableError(err) {
				continue
			}
			return nil, err
		}

		if isRetryableStatus(resp.StatusCode) && attempt < cp.config.MaxRetries {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
			cp.record(func(s *ClientStats) {
				s.TotalRequests++
				s.FailedRequests++
				s.TotalLatency += latency
			})
			continue
		}

		cp.record(func(s *ClientStats) {
			s.TotalRequests++
			s.SuccessRequests++
			s.TotalLatency += latency
		})
		return resp, nil
	}

	return nil, lastErr
}

func (cp *ClientPool) calculateBackoff(attempt int) time.Duration {
	backoff := cp.config.BackoffBase * time.Duration(1<<uint(attempt-1))
	if cp.config.BackoffMax > 0 && backoff > cp.config.BackoffMax {
		backoff = cp.config.BackoffMax
	}

	// up to 10% jitter
	jitter := time.Duration(rand.Float64() * 0.1 * float64(backoff))
	return backoff + jitter
}

func (cp *ClientPool) GetStats() ClientStats {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.stats
}

func (cp *ClientPool) record(update func(*ClientStats)) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	update(&cp.stats)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, retryable := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"network is unreachable",
		"eof",
	} {
		if strings.Contains(msg, retryable) {
			return true
		}
	}
	return false
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
