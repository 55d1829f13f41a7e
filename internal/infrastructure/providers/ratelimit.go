package providers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimiter paces outbound requests with a token bucket and backs off
// further when the backend answers with Retry-After.
type RateLimiter struct {
	limiter     *rate.Limiter
	baseLimit   rate.Limit
	budget      RLBudget
	restoreTime time.Time
	mutex       sync.Mutex
}

type RLBudget struct {
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetTime  time.Time `json:"reset_time"`
	LastUpdate time.Time `json:"last_update"`
	Throttled  bool      `json:"throttled"`
}

// throttledLimit is applied while a Retry-After window is open.
const throttledLimit = rate.Limit(0.5)

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter:   rate.NewLimiter(limit, burst),
		baseLimit: limit,
		budget:    RLBudget{Limit: -1, Remaining: -1},
	}
}

// Wait blocks until a request may be sent or ctx ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.restoreIfDue(time.Now())
	if err := rl.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// UpdateFromHeaders records the rate limit headers of a backend response.
func (rl *RateLimiter) UpdateFromHeaders(h http.Header) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	if v, err := strconv.Atoi(h.Get("X-RateLimit-Limit")); err == nil {
		rl.budget.Limit = v
	}
	if v, err := strconv.Atoi(h.Get("X-RateLimit-Remaining")); err == nil {
		rl.budget.Remaining = v
	}
	if v, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		rl.budget.ResetTime = time.Unix(v, 0)
	}

	if seconds, err := strconv.Atoi(h.Get("Retry-After")); err == nil && seconds > 0 {
		rl.restoreTime = now.Add(time.Duration(seconds) * time.Second)
		rl.budget.Throttled = true
		rl.limiter.SetLimit(throttledLimit)
		log.Warn().
			Int("retry_after_s", seconds).
			Msg("Backend asked to slow down, throttling requests")
	}

	rl.budget.LastUpdate = now
}

func (rl *RateLimiter) restoreIfDue(now time.Time) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if rl.budget.Throttled && !now.Before(rl.restoreTime) {
		rl.limiter.SetLimit(rl.baseLimit)
		rl.budget.Throttled = false
		log.Info().Msg("Backend request rate restored")
	}
}

// GetBudgetStatus returns a copy of the last known budget.
func (rl *RateLimiter) GetBudgetStatus() RLBudget {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return rl.budget
}
