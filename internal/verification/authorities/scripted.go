package authorities

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Scripted answers from a fixed queue of outcomes, one per call. A nil entry
// means success. When the queue is exhausted the last outcome repeats; an
// empty queue always succeeds. Useful for walkthroughs and tests that need a
// deterministic failure at a chosen step.
type Scripted struct {
	id   string
	caps Capabilities

	mu       sync.Mutex
	outcomes []error
	calls    int
	subjects []Subject

	// Gate, when set, blocks every Check until it is closed or the context ends.
	Gate chan struct{}
}

func NewScripted(authorityID string, kind Kind, outcomes ...error) *Scripted {
	return &Scripted{
		id: authorityID,
		caps: Capabilities{
			Protocol: ProtocolSimulated,
			Kind:     kind,
			Version:  "v1.0.0",
			Filters: []string{
				FieldIDNumber, FieldTaxID, FieldRegistryNumber, FieldMedicalClearance,
				FieldLicenseNumber, FieldRegistrationNumber, FieldDrivingPermitNumber,
			},
		},
		outcomes: outcomes,
	}
}

// Failing returns a scripted authority that always refuses with category.
func Failing(authorityID string, kind Kind, category ErrorCategory) *Scripted {
	return NewScripted(authorityID, kind, NewAuthorityError(category, authorityID, "scripted failure", nil))
}

func (s *Scripted) ID() string                 { return s.id }
func (s *Scripted) Capabilities() Capabilities { return s.caps }

func (s *Scripted) Check(ctx context.Context, subject Subject) (*Evidence, error) {
	s.mu.Lock()
	outcome := s.next()
	s.calls++
	s.subjects = append(s.subjects, subject)
	gate := s.Gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, NewAuthorityError(ErrorTimeout, s.id, "no answer before deadline", ctx.Err())
			}
			return nil, ctx.Err()
		}
	}
	if outcome != nil {
		return nil, outcome
	}
	return &Evidence{
		AuthorityID: s.id,
		Kind:        s.caps.Kind,
		Confidence:  1.0,
		Data:        map[string]any{"valid": true},
		CheckedAt:   time.Now(),
	}, nil
}

func (s *Scripted) next() error {
	if len(s.outcomes) == 0 {
		return nil
	}
	if s.calls < len(s.outcomes) {
		return s.outcomes[s.calls]
	}
	return s.outcomes[len(s.outcomes)-1]
}

// Calls returns how many checks were made.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Subjects returns a copy of every subject checked, in call order.
func (s *Scripted) Subjects() []Subject {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Subject, len(s.subjects))
	copy(out, s.subjects)
	return out
}

func (s *Scripted) Health(context.Context) error { return nil }
