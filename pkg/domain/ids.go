package domain

import (
	"github.com/google/uuid"

	dErrors "drivematch/pkg/domain-errors"
)

// SessionID identifies one onboarding session.
// Invariant: a parsed SessionID is never the nil UUID.
type SessionID uuid.UUID

// ProviderID identifies a provider listed in the directory.
type ProviderID uuid.UUID

// NewSessionID returns a fresh random session id.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewProviderID returns a fresh random provider id.
func NewProviderID() ProviderID { return ProviderID(uuid.New()) }

// ParseSessionID parses external input into a SessionID.
//
// Errors: CodeInvalidInput when the value is empty, malformed or the nil UUID.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	return SessionID(u), err
}

// ParseProviderID parses external input into a ProviderID.
//
// Errors: CodeInvalidInput when the value is empty, malformed or the nil UUID.
func ParseProviderID(s string) (ProviderID, error) {
	u, err := parseUUID(s, "provider id")
	return ProviderID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", field)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be nil", field)
	}
	return u, nil
}

func (id SessionID) String() string  { return uuid.UUID(id).String() }
func (id SessionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ProviderID) String() string { return uuid.UUID(id).String() }
func (id ProviderID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed ids travel through JSON and YAML as plain UUID strings.
func (id ProviderID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText validates the id at the ingestion boundary.
func (id *ProviderID) UnmarshalText(b []byte) error {
	parsed, err := ParseProviderID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ScreenID is an opaque screen token agreed with the presentation layer.
type ScreenID string

func (s ScreenID) String() string { return string(s) }
