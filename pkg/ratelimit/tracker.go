package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrBlocked is returned by Wait when the announced cool-down is longer than
// the tracker is willing to wait.
var ErrBlocked = errors.New("rate limit cool-down in effect")

// Prometheus metrics for rate limit tracking.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covid_rate_limit_waits_total",
		Help: "Total number of requests that waited for a cool-down to expire",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covid_rate_limit_blocks_total",
		Help: "Total number of requests refused because of a cool-down",
	})

	rateLimitCooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "covid_rate_limit_cooldowns_total",
		Help: "Total number of 429 cool-downs recorded",
	})
)

// Config holds tracker configuration.
type Config struct {
	// RequestsPerSecond paces outgoing requests. 0 disables pacing.
	RequestsPerSecond float64

	// Burst is the limiter burst size (minimum 1).
	Burst int

	// MaxWait is the longest Wait sleeps for a cool-down.
	MaxWait time.Duration
}

// DefaultConfig returns a polite configuration for a public API.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 5,
		Burst:             1,
		MaxWait:           DefaultMaxWait,
	}
}

// Tracker gates requests on the local pace and the shared cool-down.
type Tracker struct {
	store   Store
	limiter *rate.Limiter
	maxWait time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewTracker creates a tracker. A nil store falls back to a MemoryStore.
func NewTracker(store Store, cfg Config, logger zerolog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.MaxWait < 0 {
		cfg.MaxWait = 0
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Tracker{
		store:   store,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		maxWait: cfg.MaxWait,
		logger:  logger,
		now:     time.Now,
	}
}

// GetState returns the recorded cool-down, or nil.
func (t *Tracker) GetState(ctx context.Context) (*ThrottleState, error) {
	state, err := t.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get throttle state: %w", err)
	}
	return state, nil
}

// Wait blocks until a request may be sent.
//
// A cool-down no longer than MaxWait is slept through; a longer one returns
// ErrBlocked. Store failures are logged and do not block the request.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Throttle state unavailable, continuing without it")
	}

	now := t.now()
	if state.IsBlocked(now) {
		remaining := state.TimeUntilUnblocked(now)
		if remaining > t.maxWait {
			rateLimitBlocksTotal.Inc()
			t.logger.Warn().
				Dur("wait_duration", remaining).
				Time("blocked_until", state.BlockedUntil).
				Msg("API cool-down active - refusing request")
			return fmt.Errorf("%w for another %s", ErrBlocked, remaining.Round(time.Second))
		}

		rateLimitWaitsTotal.Inc()
		t.logger.Info().
			Dur("wait_duration", remaining).
			Msg("API cool-down active - waiting")

		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// RecordRetryAfter stores a cool-down from a 429 response's Retry-After header.
func (t *Tracker) RecordRetryAfter(ctx context.Context, statusCode int, retryAfter string) error {
	now := t.now()
	wait := ParseRetryAfter(retryAfter, now)

	state := &ThrottleState{
		BlockedUntil: now.Add(wait),
		LastUpdate:   now,
		StatusCode:   statusCode,
	}

	if err := t.store.Set(ctx, state); err != nil {
		return fmt.Errorf("store throttle state: %w", err)
	}

	rateLimitCooldownsTotal.Inc()
	t.logger.Warn().
		Int("status_code", statusCode).
		Dur("retry_after", wait).
		Time("blocked_until", state.BlockedUntil).
		Msg("API requested cool-down")

	return nil
}
