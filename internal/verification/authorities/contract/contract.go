// Package contract holds reusable checks every Authority implementation must pass.
package contract

import (
	"context"
	"testing"

	"drivematch/internal/verification/authorities"
)

// CheckTest is one successful-check case.
type CheckTest struct {
	Name         string
	Authority    authorities.Authority
	Subject      authorities.Subject
	ExpectedKind authorities.Kind
	ValidateFunc func(evidence *authorities.Evidence) error
}

// Suite runs a set of CheckTests against one authority id.
type Suite struct {
	AuthorityID string
	Tests       []CheckTest
}

func (s *Suite) Run(t *testing.T) {
	for _, test := range s.Tests {
		t.Run(test.Name, func(t *testing.T) {
			evidence, err := test.Authority.Check(context.Background(), test.Subject)
			if err != nil {
				t.Fatalf("authority check failed: %v", err)
			}
			if evidence.AuthorityID != s.AuthorityID {
				t.Errorf("expected authority ID %s, got %s", s.AuthorityID, evidence.AuthorityID)
			}
			if evidence.Kind != test.ExpectedKind {
				t.Errorf("expected kind %s, got %s", test.ExpectedKind, evidence.Kind)
			}
			if evidence.Confidence < 0 || evidence.Confidence > 1.0 {
				t.Errorf("confidence %f out of range [0, 1]", evidence.Confidence)
			}
			if evidence.CheckedAt.IsZero() {
				t.Error("CheckedAt not set")
			}
			if test.ValidateFunc != nil {
				if err := test.ValidateFunc(evidence); err != nil {
					t.Errorf("custom validation failed: %v", err)
				}
			}
		})
	}
}

// CapabilityTest validates declared capabilities.
type CapabilityTest struct {
	Authority authorities.Authority
}

func (ct *CapabilityTest) Run(t *testing.T) {
	caps := ct.Authority.Capabilities()
	if caps.Protocol == "" {
		t.Error("protocol not set")
	}
	if caps.Kind == "" {
		t.Error("kind not set")
	}
	if caps.Version == "" {
		t.Error("version not set")
	}
	if len(caps.Filters) == 0 {
		t.Error("no filters declared")
	}
}

// ErrorTest validates that a failing check follows the taxonomy.
type ErrorTest struct {
	Name          string
	Authority     authorities.Authority
	Subject       authorities.Subject
	ExpectedError authorities.ErrorCategory
	ExpectedRetry bool
}

func (et *ErrorTest) Run(t *testing.T) {
	t.Run(et.Name, func(t *testing.T) {
		_, err := et.Authority.Check(context.Background(), et.Subject)
		if err == nil {
			t.Fatal("expected error but got none")
		}
		if got := authorities.GetCategory(err); got != et.ExpectedError {
			t.Errorf("expected error category %s, got %s", et.ExpectedError, got)
		}
		if got := authorities.IsRetryable(err); got != et.ExpectedRetry {
			t.Errorf("expected retryable=%v, got %v", et.ExpectedRetry, got)
		}
	})
}
