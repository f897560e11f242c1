package audit

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"

	id "drivematch/pkg/domain"
)

// EventCategory classifies audit events so sinks can route them separately.
type EventCategory string

const (
	// CategoryCompliance covers outcomes with regulatory weight, such as
	// identity and credential verification results.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers token and session misuse.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine onboarding activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	SessionID id.SessionID
	// Actor is the session's actor type when known.
	Actor    string
	Action   string
	Decision string
	Reason   string
	// Step names the verification step for verification events.
	Step      string
	RequestID string
	// SubjectHash is a keyed hash of the document number under verification,
	// so the trail is traceable without storing the raw number.
	SubjectHash string
}

type AuditEvent string

const (
	EventSessionStarted AuditEvent = "session_started"
	EventSessionReset   AuditEvent = "session_reset"
	EventActorSelected  AuditEvent = "actor_selected"
	EventProfileMerged  AuditEvent = "profile_merged"
	EventTokenRejected  AuditEvent = "token_rejected"

	EventVerificationStarted  AuditEvent = "verification_started"
	EventVerificationPassed   AuditEvent = "verification_passed"
	EventVerificationFailed   AuditEvent = "verification_failed"
	EventVerificationCanceled AuditEvent = "verification_canceled"

	EventProviderSelected   AuditEvent = "provider_selected"
	EventLessonScheduled    AuditEvent = "lesson_scheduled"
	EventLiveSessionStarted AuditEvent = "live_session_started"
	EventLiveSessionEnded   AuditEvent = "live_session_ended"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventVerificationPassed: CategoryCompliance,
	EventVerificationFailed: CategoryCompliance,

	EventTokenRejected: CategorySecurity,
	EventSessionReset:  CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Appender receives audit events.
type Appender interface {
	Append(ctx context.Context, event Event) error
}

// Store persists audit events and lists them back per session.
type Store interface {
	Appender
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]Event, error)
}

// HashSubject returns a hex blake2b-256 digest of a document number keyed
// with key. An empty subject hashes to "".
func HashSubject(key []byte, subject string) string {
	if subject == "" {
		return ""
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// only returned for keys longer than 64 bytes
		h, _ = blake2b.New256(key[:blake2b.Size])
	}
	h.Write([]byte(subject))
	return hex.EncodeToString(h.Sum(nil))
}
