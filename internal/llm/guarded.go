package llm

import (
	"context"
	"errors"

	"invoice-backend/internal/shared/apperr"
	"invoice-backend/internal/shared/resilience"
)

// Guarded wraps an Extractor with a circuit breaker. Each call is attempted once.
type Guarded struct {
	next    Extractor
	breaker *resilience.Breaker
}

// NewGuarded returns next protected by a breaker built from cfg.
func NewGuarded(next Extractor, cfg resilience.Config) *Guarded {
	return &Guarded{
		next: next,
		breaker: resilience.NewBreaker("llm.extract", cfg, func(err error) bool {
			return errors.Is(err, context.Canceled)
		}),
	}
}

// Extract forwards to the wrapped extractor unless the circuit is open.
func (g *Guarded) Extract(ctx context.Context, input Input) (string, error) {
	var out string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.next.Extract(ctx, input)
		return err
	})
	if err != nil {
		if resilience.IsCircuitOpen(err) {
			return "", apperr.WrapError(apperr.ErrExtractionUnavailable, "llm.extract", err)
		}
		return "", err
	}
	return out, nil
}

var _ Extractor = (*Guarded)(nil)
