// Package refresh keeps the current snapshot and replaces it periodically or
// on demand.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/stablewatch/internal/domain"
	"github.com/sawpanic/stablewatch/internal/telemetry"
)

// ErrRefreshInFlight is returned by RefreshNow when another refresh is
// already running. The running refresh is not affected.
var ErrRefreshInFlight = errors.New("refresh already in flight")

const (
	DefaultInterval = 60 * time.Second
	DefaultTimeout  = 30 * time.Second
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Assembler builds a new snapshot.
type Assembler interface {
	AssembleSnapshot(ctx context.Context) (*domain.Snapshot, error)
}

// View is what consumers see. Snapshot is the last good snapshot and may be
// present together with Error when the latest refresh failed.
type View struct {
	Snapshot    *domain.Snapshot `json:"snapshot"`
	Loading     bool             `json:"loading"`
	Error       *string          `json:"error"`
	State       State            `json:"state"`
	LastUpdated *time.Time       `json:"lastUpdated"`
}

type Config struct {
	Interval time.Duration
	// Timeout bounds a single refresh.
	Timeout time.Duration
}

type Controller struct {
	source  Assembler
	config  Config
	metrics *telemetry.MetricsRegistry

	mu       sync.RWMutex
	snapshot *domain.Snapshot
	loading  bool
	lastErr  error
	state    State
	baseCtx  context.Context
}

func NewController(source Assembler, config Config, metrics *telemetry.MetricsRegistry) *Controller {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Controller{
		source:  source,
		config:  config,
		metrics: metrics,
		state:   StateIdle,
		baseCtx: context.Background(),
	}
}

// View returns the current state.
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v := View{
		Snapshot: c.snapshot,
		Loading:  c.loading,
		State:    c.state,
	}
	if c.lastErr != nil {
		msg := c.lastErr.Error()
		v.Error = &msg
	}
	if c.snapshot != nil {
		fetched := c.snapshot.FetchedAt
		v.LastUpdated = &fetched
	}
	return v
}

// Snapshot returns the last good snapshot or nil.
func (c *Controller) Snapshot() *domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Trigger starts a refresh in the background and reports whether it did. It
// returns false without side effects when a refresh is already running.
func (c *Controller) Trigger() bool {
	if !c.begin() {
		return false
	}
	c.mu.RLock()
	ctx := c.baseCtx
	c.mu.RUnlock()

	go c.refresh(ctx)
	return true
}

// RefreshNow runs a refresh and waits for it.
func (c *Controller) RefreshNow(ctx context.Context) error {
	if !c.begin() {
		return ErrRefreshInFlight
	}
	return c.refresh(ctx)
}

// Run refreshes once immediately, then every interval until ctx is done.
// Triggers from other goroutines use ctx while Run is active.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	log.Info().Dur("interval", c.config.Interval).Msg("Snapshot refresh loop started")

	c.tick(ctx)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Snapshot refresh loop stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Controller) tick(ctx context.Context) {
	if err := c.RefreshNow(ctx); err != nil && !errors.Is(err, ErrRefreshInFlight) {
		log.Debug().Err(err).Msg("Scheduled refresh failed")
	}
}

func (c *Controller) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loading {
		c.metrics.RecordCollapsed()
		log.Debug().Msg("Refresh already in flight, trigger ignored")
		return false
	}
	c.loading = true
	c.state = StateLoading
	return true
}

func (c *Controller) refresh(ctx context.Context) error {
	timer := c.metrics.StartRefresh()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	snap, err := c.source.AssembleSnapshot(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.loading = false
	if err != nil {
		c.lastErr = err
		c.state = StateError
		timer.Stop(telemetry.ResultError)
		log.Warn().
			Err(err).
			Bool("has_previous", c.snapshot != nil).
			Msg("Snapshot refresh failed, keeping previous snapshot")
		return err
	}

	c.snapshot = snap
	c.lastErr = nil
	c.state = StateReady
	timer.Stop(telemetry.ResultSuccess)
	return nil
}
