package providers

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// CircuitBreakerManager keeps one breaker per backend endpoint so a failing
// stats endpoint cannot block the list endpoints.
type CircuitBreakerManager struct {
	breakers map[string]*gobreaker.CircuitBreaker
	configs  map[string]*CircuitBreakerConfig
	observer func(endpoint string, state gobreaker.State)
	mutex    sync.RWMutex
}

type CircuitBreakerConfig struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ErrorRateThreshold  float64
	ConsecutiveFailures uint32
}

type BreakerStatus struct {
	Name                string           `json:"name"`
	State               string           `json:"state"`
	Counts              gobreaker.Counts `json:"counts"`
	ErrorRate           float64          `json:"error_rate"`
	ConsecutiveFailures uint32           `json:"consecutive_failures"`
}

func NewCircuitBreakerManager() *CircuitBreakerManager {
	return &CircuitBreakerManager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		configs:  make(map[string]*CircuitBreakerConfig),
	}
}

// OnStateChange registers a callback invoked after every transition.
func (cbm *CircuitBreakerManager) OnStateChange(fn func(endpoint string, state gobreaker.State)) {
	cbm.mutex.Lock()
	defer cbm.mutex.Unlock()
	cbm.observer = fn
}

func (cbm *CircuitBreakerManager) InitializeEndpoint(endpoint string, config *CircuitBreakerConfig) {
	cbm.mutex.Lock()
	defer cbm.mutex.Unlock()

	cbm.configs[endpoint] = config
	cbm.breakers[endpoint] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:          config.Name,
		MaxRequests:   config.MaxRequests,
		Interval:      config.Interval,
		Timeout:       config.Timeout,
		ReadyToTrip:   createTripCondition(config),
		OnStateChange: cbm.createStateChangeHandler(endpoint),
		IsSuccessful:  isBreakerSuccess,
	})
}

func (cbm *CircuitBreakerManager) Execute(endpoint string, fn func() (interface{}, error)) (interface{}, error) {
	cbm.mutex.RLock()
	breaker, exists := cbm.breakers[endpoint]
	cbm.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("circuit breaker not found for endpoint: %s", endpoint)
	}

	return breaker.Execute(fn)
}

func (cbm *CircuitBreakerManager) GetStatus(endpoint string) *BreakerStatus {
	cbm.mutex.RLock()
	defer cbm.mutex.RUnlock()

	breaker, exists := cbm.breakers[endpoint]
	if !exists {
		return nil
	}

	counts := breaker.Counts()
	var errorRate float64
	if counts.Requests > 0 {
		errorRate = float64(counts.TotalFailures) / float64(counts.Requests) * 100
	}

	return &BreakerStatus{
		Name:                cbm.configs[endpoint].Name,
		State:               breaker.State().String(),
		Counts:              counts,
		ErrorRate:           errorRate,
		ConsecutiveFailures: counts.ConsecutiveFailures,
	}
}

// Statuses returns the status of every breaker keyed by endpoint.
func (cbm *CircuitBreakerManager) Statuses() map[string]*BreakerStatus {
	cbm.mutex.RLock()
	endpoints := make([]string, 0, len(cbm.breakers))
	for endpoint := range cbm.breakers {
		endpoints = append(endpoints, endpoint)
	}
	cbm.mutex.RUnlock()

	out := make(map[string]*BreakerStatus, len(endpoints))
	for _, endpoint := range endpoints {
		out[endpoint] = cbm.GetStatus(endpoint)
	}
	return out
}

func createTripCondition(config *CircuitBreakerConfig) func(counts gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if config.ErrorRateThreshold > 0 && counts.Requests >= 10 {
			errorRate := float64(counts.TotalFailures) / float64(counts.Requests) * 100
			if errorRate >= config.ErrorRateThreshold {
				return true
			}
		}
		return config.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= config.ConsecutiveFailures
	}
}

func (cbm *CircuitBreakerManager) createStateChangeHandler(endpoint string) func(name string, from, to gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		event := log.Info()
		if to == gobreaker.StateOpen {
			event = log.Warn()
		}
		event.
			Str("endpoint", endpoint).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")

		cbm.mutex.RLock()
		observer := cbm.observer
		cbm.mutex.RUnlock()
		if observer != nil {
			observer(endpoint, to)
		}
	}
}

// Client errors (4xx except 429) mean the request was wrong, not that the
// backend is down.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var statusErr *StatusError
	if asStatusError(err, &statusErr) {
		return statusErr.Code >= 400 && statusErr.Code < 500 && statusErr.Code != 429
	}
	return false
}

// BreakerStateValue maps a state to the gauge encoding used in telemetry.
func BreakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// DefaultBreakerConfig is used for every backend endpoint unless configured.
func DefaultBreakerConfig(endpoint string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:                endpoint,
		MaxRequests:         2,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ErrorRateThreshold:  50.0,
		ConsecutiveFailures: 5,
	}
}
