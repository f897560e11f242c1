package verification

import (
	"time"

	"drivematch/internal/profile/models"
	"drivematch/internal/verification/authorities"
	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
)

type StepID string

const (
	StepGovIdentity          StepID = "gov-identity"
	StepDrivingRegistry      StepID = "driving-registry"
	StepInstructorCredential StepID = "instructor-credential"
	StepMedicalAptitude      StepID = "medical-aptitude"
)

// Status is the lifecycle of one step within one run.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StepDefinition is the static description of a step.
type StepDefinition struct {
	ID          StepID
	Label       string
	Description string
	Kind        authorities.Kind
}

var (
	govIdentity = StepDefinition{
		ID:          StepGovIdentity,
		Label:       "Digital identity",
		Description: "Checking digital identity",
		Kind:        authorities.KindIdentity,
	}
	drivingRegistry = StepDefinition{
		ID:          StepDrivingRegistry,
		Label:       "Driving registry",
		Description: "Querying the national driving registry",
		Kind:        authorities.KindDrivingRegistry,
	}
	instructorCredential = StepDefinition{
		ID:          StepInstructorCredential,
		Label:       "Instructor credential",
		Description: "Checking professional registration",
		Kind:        authorities.KindInstructorCredential,
	}
	medicalAptitude = StepDefinition{
		ID:          StepMedicalAptitude,
		Label:       "Medical aptitude",
		Description: "Checking the learner's medical clearance",
		Kind:        authorities.KindMedicalAptitude,
	}
)

// StepsFor returns the fixed step order for actor.
func StepsFor(actor id.ActorType) ([]StepDefinition, error) {
	switch actor {
	case id.ActorSeeker:
		return []StepDefinition{govIdentity, drivingRegistry, medicalAptitude}, nil
	case id.ActorProvider:
		return []StepDefinition{govIdentity, drivingRegistry, instructorCredential}, nil
	default:
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "no verification steps for actor %q", actor)
	}
}

// StepRecord is the observable state of one step in the current run.
type StepRecord struct {
	ID              StepID                    `json:"id"`
	Label           string                    `json:"label"`
	Description     string                    `json:"description"`
	Status          Status                    `json:"status"`
	FailureReason   string                    `json:"failure_reason,omitempty"`
	FailureCategory authorities.ErrorCategory `json:"failure_category,omitempty"`
	Retryable       bool                      `json:"retryable,omitempty"`
	StartedAt       *time.Time                `json:"started_at,omitempty"`
	FinishedAt      *time.Time                `json:"finished_at,omitempty"`
}

func idleRecords(defs []StepDefinition) []StepRecord {
	records := make([]StepRecord, len(defs))
	for i, d := range defs {
		records[i] = StepRecord{ID: d.ID, Label: d.Label, Description: d.Description, Status: StatusIdle}
	}
	return records
}

// SubjectFromProfile extracts the fields the authorities key on.
func SubjectFromProfile(p *models.Profile) (authorities.Subject, error) {
	if p == nil || p.Actor == "" {
		return authorities.Subject{}, dErrors.New(dErrors.CodePreconditionFailed, "actor type not selected")
	}
	fields := make(map[string]string)
	switch p.Actor {
	case id.ActorSeeker:
		if p.Seeker == nil {
			break
		}
		d := p.Seeker.Documents
		put(fields, authorities.FieldIDNumber, d.IDNumber)
		put(fields, authorities.FieldTaxID, d.TaxID)
		put(fields, authorities.FieldRegistryNumber, d.RegistryNumber)
		put(fields, authorities.FieldMedicalClearance, d.MedicalClearanceRef)
	case id.ActorProvider:
		if p.Provider == nil {
			break
		}
		c := p.Provider.Credentials
		put(fields, authorities.FieldLicenseNumber, c.LicenseNumber)
		put(fields, authorities.FieldRegistrationNumber, c.RegistrationNumber)
		put(fields, authorities.FieldDrivingPermitNumber, c.DrivingPermitNumber)
	}
	return authorities.Subject{Actor: p.Actor, Fields: fields}, nil
}

func put(fields map[string]string, key, value string) {
	if value != "" {
		fields[key] = value
	}
}

// primaryField is the document number hashed into audit events.
func primaryField(s authorities.Subject) string {
	for _, key := range []string{authorities.FieldTaxID, authorities.FieldDrivingPermitNumber, authorities.FieldIDNumber, authorities.FieldLicenseNumber} {
		if v := s.Fields[key]; v != "" {
			return v
		}
	}
	return ""
}
