package authorities

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Simulated stands in for a real authority: it waits Latency, then refuses
// the subject with probability FailureRate. No network calls are made.
type Simulated struct {
	id          string
	caps        Capabilities
	latency     time.Duration
	failureRate float64
	roll        func() float64
	now         func() time.Time
}

type SimulatedOption func(*Simulated)

func WithLatency(d time.Duration) SimulatedOption {
	return func(s *Simulated) { s.latency = d }
}

// WithFailureRate sets the refusal probability, clamped to [0, 1].
func WithFailureRate(rate float64) SimulatedOption {
	return func(s *Simulated) {
		switch {
		case rate < 0:
			rate = 0
		case rate > 1:
			rate = 1
		}
		s.failureRate = rate
	}
}

// WithRoll replaces the random source. roll must return values in [0, 1).
func WithRoll(roll func() float64) SimulatedOption {
	return func(s *Simulated) { s.roll = roll }
}

func WithSimulatedClock(now func() time.Time) SimulatedOption {
	return func(s *Simulated) { s.now = now }
}

func NewSimulated(authorityID string, kind Kind, filters []string, opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		id: authorityID,
		caps: Capabilities{
			Protocol: ProtocolSimulated,
			Kind:     kind,
			Version:  "v1.0.0",
			Filters:  filters,
		},
		latency:     2 * time.Second,
		failureRate: 0.05,
		roll:        rand.Float64,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulated) ID() string                 { return s.id }
func (s *Simulated) Capabilities() Capabilities { return s.caps }

func (s *Simulated) Check(ctx context.Context, subject Subject) (*Evidence, error) {
	if !s.caps.Accepts(subject) {
		return nil, NewAuthorityError(ErrorBadData, s.id, "subject has none of the required fields", nil)
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.roll() < s.failureRate {
		return nil, NewAuthorityError(ErrorRejected, s.id, "subject could not be verified", nil)
	}

	data := make(map[string]any, len(s.caps.Filters)+1)
	for _, f := range s.caps.Filters {
		if v := subject.Fields[f]; v != "" {
			data[f] = v
		}
	}
	data["valid"] = true
	return &Evidence{
		AuthorityID: s.id,
		Kind:        s.caps.Kind,
		Confidence:  1.0,
		Data:        data,
		CheckedAt:   s.now(),
		Metadata:    map[string]string{"protocol": string(s.caps.Protocol)},
	}, nil
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return NewAuthorityError(ErrorTimeout, s.id, "no answer before deadline", ctx.Err())
		}
		return ctx.Err()
	}
}

func (s *Simulated) Health(ctx context.Context) error {
	return ctx.Err()
}
