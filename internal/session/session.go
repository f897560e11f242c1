// Package session owns the per-session context that ties navigation, the
// profile aggregate and the verification pipeline together, and the Service
// the presentation layer drives.
package session

import (
	"sync"
	"time"

	"drivematch/internal/navigation"
	profile "drivematch/internal/profile/models"
	"drivematch/internal/session/models"
	"drivematch/internal/verification"
	id "drivematch/pkg/domain"
)

// Session is the explicit session-scoped context. All fields below mu are
// guarded by it; Service holds it for the whole of each user operation.
type Session struct {
	ID        id.SessionID
	CreatedAt time.Time
	Device    string

	mu       sync.Mutex
	nav      *navigation.Controller
	profile  *profile.Profile
	pipeline *verification.Pipeline
	// runDone is closed when the latest started run delivered its result.
	runDone    chan struct{}
	lastResult *verification.Result
	// touched is the request time of the last operation on the session.
	touched time.Time
}

func newSession(sessionID id.SessionID, now time.Time, device string) *Session {
	return &Session{
		ID:        sessionID,
		CreatedAt: now,
		Device:    device,
		nav:       navigation.NewController(),
		profile:   profile.New(),
		touched:   now,
	}
}

// reset abandons every piece of in-progress state.
func (s *Session) reset() {
	if s.pipeline != nil {
		s.pipeline.Cancel()
	}
	s.nav.Reset()
	s.profile = profile.New()
	s.pipeline = nil
	s.runDone = nil
	s.lastResult = nil
}

// verified is derived from the pipeline statuses only.
func (s *Session) verified() bool {
	return s.pipeline != nil && s.pipeline.Passed()
}

// checkedFields are the profile values the authorities check. A change to
// any of them voids the previous outcome.
func (s *Session) checkedFields() map[string]string {
	subject, err := verification.SubjectFromProfile(s.profile)
	if err != nil {
		return nil
	}
	return subject.Fields
}

// leave cancels a pending run when the user navigates off the validation
// screen.
func (s *Session) leave(from id.ScreenID) {
	if from == navigation.ScreenDocumentValidation && s.pipeline != nil {
		s.pipeline.Cancel()
	}
}

func (s *Session) snapshot(now time.Time) *models.Snapshot {
	return &models.Snapshot{
		SessionID: s.ID,
		Actor:     s.profile.Actor,
		History:   s.nav.History(),
		Profile:   s.profile.Clone(),
		Device:    s.Device,
		CreatedAt: s.CreatedAt,
		SavedAt:   now,
	}
}

func restore(snap *models.Snapshot) (*Session, error) {
	s := newSession(snap.SessionID, snap.CreatedAt, snap.Device)
	if len(snap.History) > 0 {
		if err := s.nav.Restore(snap.History); err != nil {
			return nil, err
		}
	}
	if snap.Profile != nil {
		s.profile = snap.Profile.Clone()
	}
	return s, nil
}

// View is the read model of a session returned to the presentation layer.
type View struct {
	SessionID id.SessionID     `json:"session_id"`
	Actor     id.ActorType     `json:"actor,omitempty"`
	Screen    id.ScreenID      `json:"screen"`
	History   []id.ScreenID    `json:"history"`
	CanGoBack bool             `json:"can_go_back"`
	Verified  bool             `json:"verified"`
	Missing   []string         `json:"missing_fields,omitempty"`
	Device    string           `json:"device,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	Profile   *profile.Profile `json:"profile,omitempty"`
}

func (s *Session) view() *View {
	_, canGoBack := s.nav.Previous()
	return &View{
		SessionID: s.ID,
		Actor:     s.profile.Actor,
		Screen:    s.nav.Current(),
		History:   s.nav.History(),
		CanGoBack: canGoBack,
		Verified:  s.verified(),
		Missing:   s.profile.MissingFields(),
		Device:    s.Device,
		CreatedAt: s.CreatedAt,
		Profile:   s.profile.Clone(),
	}
}

// VerificationView is the per-step progress of the latest run.
type VerificationView struct {
	Steps         []verification.StepRecord `json:"steps"`
	Running       bool                      `json:"running"`
	Passed        bool                      `json:"passed"`
	FailedStep    verification.StepID       `json:"failed_step,omitempty"`
	FailureReason string                    `json:"failure_reason,omitempty"`
	Retryable     bool                      `json:"retryable,omitempty"`
	Generation    uint64                    `json:"generation"`
}

func (s *Session) verificationView() *VerificationView {
	if s.pipeline == nil {
		return &VerificationView{Steps: []verification.StepRecord{}}
	}
	v := &VerificationView{
		Steps:      s.pipeline.StepStatuses(),
		Running:    s.pipeline.Running(),
		Passed:     s.pipeline.Passed(),
		Generation: s.pipeline.Generation(),
	}
	if r := s.lastResult; r != nil && !v.Running && r.Generation == v.Generation && !r.Passed {
		v.FailedStep = r.FailedStep
		v.FailureReason = r.FailureReason
		v.Retryable = r.Retryable
	}
	return v
}
