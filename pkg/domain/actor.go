package domain

import dErrors "drivematch/pkg/domain-errors"

// ActorType tells whether a session belongs to someone looking for lessons or
// to an instructor offering them.
// Invariant: set once per session; changing it requires a session reset.
type ActorType string

const (
	ActorSeeker   ActorType = "seeker"
	ActorProvider ActorType = "provider"
)

var validActorTypes = map[ActorType]bool{
	ActorSeeker:   true,
	ActorProvider: true,
}

// ParseActorType constructs an ActorType from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseActorType(s string) (ActorType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "actor type cannot be empty")
	}
	a := ActorType(s)
	if !a.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid actor type %q", s)
	}
	return a, nil
}

func (a ActorType) IsValid() bool { return validActorTypes[a] }

func (a ActorType) String() string { return string(a) }
