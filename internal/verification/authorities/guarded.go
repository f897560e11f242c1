package authorities

import (
	"context"
	"errors"

	"drivematch/pkg/platform/circuit"
)

// Guarded wraps an authority with a circuit breaker. While the breaker is
// open, checks fail immediately with ErrorOutage and the inner authority is
// not called. Only infrastructure failures (timeout, outage, internal) count
// against the breaker; an authority that answers "no" is healthy.
type Guarded struct {
	Authority
	breaker *circuit.Breaker
}

func NewGuarded(inner Authority, breaker *circuit.Breaker) *Guarded {
	return &Guarded{Authority: inner, breaker: breaker}
}

// Guard wraps inner with a breaker named after its id.
func Guard(inner Authority, opts ...circuit.Option) *Guarded {
	return NewGuarded(inner, circuit.New(inner.ID(), opts...))
}

func (g *Guarded) Breaker() *circuit.Breaker { return g.breaker }

func (g *Guarded) Check(ctx context.Context, subject Subject) (*Evidence, error) {
	if !g.breaker.Allow() {
		return nil, NewAuthorityError(ErrorOutage, g.ID(), "circuit open", nil)
	}

	evidence, err := g.Authority.Check(ctx, subject)
	switch {
	case err == nil:
		g.breaker.RecordSuccess()
	case errors.Is(err, context.Canceled):
		// caller walked away; says nothing about the authority
	case countsAgainstBreaker(GetCategory(err)):
		g.breaker.RecordFailure()
	default:
		g.breaker.RecordSuccess()
	}
	return evidence, err
}

func countsAgainstBreaker(c ErrorCategory) bool {
	return c == ErrorTimeout || c == ErrorOutage || c == ErrorInternal
}
