package models

import (
	id "drivematch/pkg/domain"
)

// Step names an onboarding form whose fields are checked together.
type Step string

const (
	StepSeekerDocuments      Step = "documents"
	StepSeekerCategory       Step = "category"
	StepProviderCredentials  Step = "credentials"
	StepProviderVehicle      Step = "vehicle"
	StepProviderAvailability Step = "availability"
)

// StepsFor lists the onboarding steps of an actor in order.
func StepsFor(actor id.ActorType) []Step {
	switch actor {
	case id.ActorSeeker:
		return []Step{StepSeekerDocuments, StepSeekerCategory}
	case id.ActorProvider:
		return []Step{StepProviderCredentials, StepProviderVehicle, StepProviderAvailability}
	default:
		return nil
	}
}

// MissingFor returns the names of required fields still empty for step. A
// step that does not belong to the profile's actor reports nothing missing.
func (p *Profile) MissingFor(step Step) []string {
	var missing []string
	add := func(empty bool, name string) {
		if empty {
			missing = append(missing, name)
		}
	}

	switch {
	case p.Seeker != nil && step == StepSeekerDocuments:
		d := p.Seeker.Documents
		add(d.IDNumber == "", "id_number")
		add(d.TaxID == "", "tax_id")
		add(d.RegistryNumber == "", "registry_number")
		add(d.MedicalClearanceRef == "", "medical_clearance_ref")
	case p.Seeker != nil && step == StepSeekerCategory:
		add(p.Seeker.Category == "", "category")
		add(p.Seeker.Transmission == "", "transmission")
	case p.Provider != nil && step == StepProviderCredentials:
		c := p.Provider.Credentials
		add(c.LicenseNumber == "", "license_number")
		add(c.RegistrationNumber == "", "registration_number")
		add(c.DrivingPermitNumber == "", "driving_permit_number")
	case p.Provider != nil && step == StepProviderVehicle:
		v := p.Provider.Vehicle
		add(v.Model == "", "vehicle_model")
		add(v.Year == 0, "vehicle_year")
		add(v.Plate == "", "vehicle_plate")
		add(v.Category == "", "vehicle_category")
		add(v.Transmission == "", "vehicle_transmission")
	case p.Provider != nil && step == StepProviderAvailability:
		add(p.Provider.HourlyPrice <= 0, "hourly_price")
		add(len(p.Provider.Availability) == 0, "availability")
	}
	return missing
}

// MissingFields returns every missing field across the actor's steps, or
// "actor" when no actor is chosen yet.
func (p *Profile) MissingFields() []string {
	if p.Actor == "" {
		return []string{"actor"}
	}
	var missing []string
	for _, step := range StepsFor(p.Actor) {
		missing = append(missing, p.MissingFor(step)...)
	}
	return missing
}

func (p *Profile) IsComplete() bool {
	return len(p.MissingFields()) == 0
}

// IsStepComplete reports whether step has every required field.
func (p *Profile) IsStepComplete(step Step) bool {
	return len(p.MissingFor(step)) == 0
}
