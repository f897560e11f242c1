package models

import (
	"time"

	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
)

// Profile is the aggregate of one actor's onboarding data, owned by a single
// session.
//
// Invariants:
//   - Actor is set once; only Reset on the owning session clears it
//   - exactly one of Seeker or Provider is non-nil once Actor is set, matching it
//   - for categories other than B the transmission is always manual
//   - a provider's vehicle year satisfies the category age rule as of the
//     merge that set it, and is never in the future
//   - at most one live session is active
//
// Fields change only through Merge and the explicit activity methods.
type Profile struct {
	Actor     id.ActorType     `json:"actor"`
	Seeker    *SeekerProfile   `json:"seeker,omitempty"`
	Provider  *ProviderProfile `json:"provider,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Documents are the seeker's identity and licensing documents.
type Documents struct {
	IDNumber            string `json:"id_number,omitempty"`
	TaxID               string `json:"tax_id,omitempty"`
	ProofOfResidenceRef string `json:"proof_of_residence_ref,omitempty"`
	MedicalClearanceRef string `json:"medical_clearance_ref,omitempty"`
	RegistryNumber      string `json:"registry_number,omitempty"`
}

type SeekerProfile struct {
	Documents        Documents         `json:"documents"`
	Category         id.Category       `json:"category,omitempty"`
	Transmission     id.Transmission   `json:"transmission,omitempty"`
	SelectedProvider *ProviderSnapshot `json:"selected_provider,omitempty"`
	ScheduledLessons []Lesson          `json:"scheduled_lessons,omitempty"`
	ActiveSession    *LiveSession      `json:"active_session,omitempty"`
}

// Credentials are the provider's professional registrations.
type Credentials struct {
	LicenseNumber       string `json:"license_number,omitempty"`
	RegistrationNumber  string `json:"registration_number,omitempty"`
	DrivingPermitNumber string `json:"driving_permit_number,omitempty"`
}

type Vehicle struct {
	Model        string          `json:"model,omitempty"`
	Year         int             `json:"year,omitempty"`
	Plate        string          `json:"plate,omitempty"`
	Category     id.Category     `json:"category,omitempty"`
	Transmission id.Transmission `json:"transmission,omitempty"`
}

// AvailabilityWindow is one weekly slot; Start and End are "HH:MM".
type AvailabilityWindow struct {
	Weekday id.Weekday `json:"weekday"`
	Start   string     `json:"start"`
	End     string     `json:"end"`
}

type ProviderProfile struct {
	Credentials   Credentials          `json:"credentials"`
	Vehicle       Vehicle              `json:"vehicle"`
	HourlyPrice   float64              `json:"hourly_price,omitempty"`
	Availability  []AvailabilityWindow `json:"availability,omitempty"`
	ActiveSession *LiveSession         `json:"active_session,omitempty"`
}

// ProviderSnapshot is the copy of a directory listing a seeker picked.
type ProviderSnapshot struct {
	ID           id.ProviderID   `json:"id"`
	Name         string          `json:"name"`
	HourlyPrice  float64         `json:"hourly_price"`
	VehicleModel string          `json:"vehicle_model,omitempty"`
	Transmission id.Transmission `json:"transmission,omitempty"`
	Rating       float64         `json:"rating,omitempty"`
}

// Lesson is a booked lesson; Date is midnight UTC of the lesson day.
type Lesson struct {
	ProviderID   id.ProviderID `json:"provider_id"`
	ProviderName string        `json:"provider_name"`
	Date         time.Time     `json:"date"`
	TimeSlot     string        `json:"time_slot"`
	Price        float64       `json:"price"`
}

// LiveSession is a lesson in progress.
type LiveSession struct {
	CounterpartName string    `json:"counterpart_name"`
	StartedAt       time.Time `json:"started_at"`
}

// New returns an empty profile with no actor chosen.
func New() *Profile {
	return &Profile{}
}

// CanSelectActor checks the set-once rule.
func (p *Profile) CanSelectActor(actor id.ActorType) error {
	if !actor.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid actor type %q", actor)
	}
	if p.Actor != "" && p.Actor != actor {
		return dErrors.New(dErrors.CodeInvariantViolation, "actor type already set; reset the session to change it")
	}
	return nil
}

// SelectActor sets the actor type and its empty section. Selecting the same
// actor again is a no-op.
func (p *Profile) SelectActor(actor id.ActorType, now time.Time) error {
	if err := p.CanSelectActor(actor); err != nil {
		return err
	}
	if p.Actor == actor {
		return nil
	}
	p.Actor = actor
	switch actor {
	case id.ActorSeeker:
		p.Seeker = &SeekerProfile{}
	case id.ActorProvider:
		p.Provider = &ProviderProfile{}
	}
	p.UpdatedAt = now
	return nil
}

// Clone returns a deep copy safe to hand to callers.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	if p.Seeker != nil {
		s := *p.Seeker
		if s.SelectedProvider != nil {
			sp := *s.SelectedProvider
			s.SelectedProvider = &sp
		}
		s.ScheduledLessons = append([]Lesson(nil), s.ScheduledLessons...)
		if s.ActiveSession != nil {
			ls := *s.ActiveSession
			s.ActiveSession = &ls
		}
		out.Seeker = &s
	}
	if p.Provider != nil {
		pr := *p.Provider
		pr.Availability = append([]AvailabilityWindow(nil), pr.Availability...)
		if pr.ActiveSession != nil {
			ls := *pr.ActiveSession
			pr.ActiveSession = &ls
		}
		out.Provider = &pr
	}
	return &out
}
