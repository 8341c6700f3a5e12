package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/telemetry"
)

// Config tunes the circuit breaker.
type Config struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

// DefaultConfig returns the settings used for the extraction provider.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		MinRequests:      5,
		FailureRatio:     0.6,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

func (c Config) normalize() Config {
	if c.MinRequests == 0 {
		c.MinRequests = 5
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = 0.6
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxCalls == 0 {
		c.HalfOpenMaxCalls = 1
	}
	return c
}

// Breaker runs calls through a single circuit breaker. Calls are attempted once.
type Breaker struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreaker builds a breaker named after the guarded operation.
// ignore reports errors that should not count as failures (e.g. caller cancellation).
func NewBreaker(name string, cfg Config, ignore func(error) bool) *Breaker {
	cfg = cfg.normalize()
	name = strings.TrimSpace(name)
	if name == "" {
		name = "unknown"
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return ignore != nil && ignore(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.IncBreakerTransition(from.String(), to.String())
			telemetry.Warn("circuit_breaker.state_change", map[string]any{
				"operation": name,
				"from":      from.String(),
				"to":        to.String(),
			})
		},
	}
	return &Breaker{cfg: cfg, breaker: gobreaker.NewCircuitBreaker[any](settings)}
}

// Execute calls fn unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if b == nil || !b.cfg.Enabled {
		return fn(ctx)
	}
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// State returns the current breaker state name.
func (b *Breaker) State() string {
	if b == nil || !b.cfg.Enabled {
		return "disabled"
	}
	return b.breaker.State().String()
}

// IsCircuitOpen reports whether err was produced by an open or saturated breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
