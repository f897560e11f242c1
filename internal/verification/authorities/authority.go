// Package authorities models the external bodies a verification step consults:
// the digital identity service, the national driving registry, the instructor
// credential board and the medical aptitude registry.
package authorities

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	id "drivematch/pkg/domain"
)

type Protocol string

const (
	ProtocolHTTP      Protocol = "http"
	ProtocolSOAP      Protocol = "soap"
	ProtocolSimulated Protocol = "simulated"
)

// Kind identifies what an authority attests.
type Kind string

const (
	KindIdentity             Kind = "identity"
	KindDrivingRegistry      Kind = "driving_registry"
	KindInstructorCredential Kind = "instructor_credential"
	KindMedicalAptitude      Kind = "medical_aptitude"
)

// Subject field keys.
const (
	FieldIDNumber            = "id_number"
	FieldTaxID               = "tax_id"
	FieldRegistryNumber      = "registry_number"
	FieldMedicalClearance    = "medical_clearance_ref"
	FieldLicenseNumber       = "license_number"
	FieldRegistrationNumber  = "registration_number"
	FieldDrivingPermitNumber = "driving_permit_number"
)

// Capabilities describes what an authority accepts.
type Capabilities struct {
	Protocol Protocol
	Kind     Kind
	Version  string
	// Filters lists the subject fields the authority can key a lookup on.
	// At least one must be present for a check to proceed.
	Filters []string
}

// Accepts reports whether subject carries at least one usable filter.
func (c Capabilities) Accepts(subject Subject) bool {
	for _, f := range c.Filters {
		if subject.Fields[f] != "" {
			return true
		}
	}
	return false
}

// Subject is the person being checked.
type Subject struct {
	Actor  id.ActorType
	Fields map[string]string
}

// Evidence is the attestation an authority returns on success.
type Evidence struct {
	AuthorityID string
	Kind        Kind
	Confidence  float64
	Data        map[string]any
	CheckedAt   time.Time
	Metadata    map[string]string
}

// Authority is the interface every verification source implements.
type Authority interface {
	ID() string
	Capabilities() Capabilities
	// Check attests the subject. Failures are *AuthorityError values.
	Check(ctx context.Context, subject Subject) (*Evidence, error)
	Health(ctx context.Context) error
}

// Registry maintains the configured authorities.
type Registry struct {
	mu          sync.RWMutex
	authorities map[string]Authority
}

func NewRegistry() *Registry {
	return &Registry{authorities: make(map[string]Authority)}
}

// Register adds an authority. IDs are unique.
func (r *Registry) Register(a Authority) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.authorities[a.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrAuthorityDuplicate, a.ID())
	}
	r.authorities[a.ID()] = a
	return nil
}

func (r *Registry) Get(authorityID string) (Authority, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.authorities[authorityID]
	return a, ok
}

// ForKind returns the first authority (by id) that attests kind.
func (r *Registry) ForKind(kind Kind) (Authority, error) {
	list := r.ListByKind(kind)
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: kind %s", ErrAuthorityNotFound, kind)
	}
	return list[0], nil
}

// ListByKind returns the authorities for kind, ordered by id.
func (r *Registry) ListByKind(kind Kind) []Authority {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Authority
	for _, a := range r.authorities {
		if a.Capabilities().Kind == kind {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// All returns every authority ordered by id.
func (r *Registry) All() []Authority {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Authority, 0, len(r.authorities))
	for _, a := range r.authorities {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// HealthReport checks every authority and returns the failures by id.
func (r *Registry) HealthReport(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for _, a := range r.All() {
		if err := a.Health(ctx); err != nil {
			failures[a.ID()] = err
		}
	}
	return failures
}
