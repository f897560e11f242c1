package models

import (
	"strconv"
	"strings"
	"time"

	"drivematch/internal/eligibility"
	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
)

// Patch is a partial update submitted by one onboarding step. Nil fields are
// left untouched; set fields overwrite earlier values.
type Patch struct {
	Seeker   *SeekerPatch
	Provider *ProviderPatch
}

type SeekerPatch struct {
	IDNumber            *string
	TaxID               *string
	ProofOfResidenceRef *string
	MedicalClearanceRef *string
	RegistryNumber      *string
	Category            *id.Category
	Transmission        *id.Transmission
}

type ProviderPatch struct {
	LicenseNumber       *string
	RegistrationNumber  *string
	DrivingPermitNumber *string

	VehicleModel        *string
	VehicleYear         *int
	VehiclePlate        *string
	VehicleCategory     *id.Category
	VehicleTransmission *id.Transmission

	HourlyPrice *float64
	// Availability replaces the whole window list when non-nil.
	Availability *[]AvailabilityWindow
}

const (
	minIDNumberLen    = 9
	taxIDDigits       = 11
	registryNumberLen = 11
)

// Merge applies patch atomically: either every field is applied or, on a
// contract violation, the profile is left unchanged and the error returned.
// currentYear drives the vehicle age rule.
//
// Setting a category other than B forces the transmission to manual. An
// explicit automatic transmission together with such a category is rejected.
// Switching to B keeps whatever transmission was already chosen.
func (p *Profile) Merge(patch Patch, currentYear int, now time.Time) error {
	if p.Actor == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "actor type must be selected before merging profile data")
	}
	if patch.Seeker != nil && p.Actor != id.ActorSeeker {
		return dErrors.New(dErrors.CodeInvariantViolation, "seeker fields cannot be merged into a provider profile")
	}
	if patch.Provider != nil && p.Actor != id.ActorProvider {
		return dErrors.New(dErrors.CodeInvariantViolation, "provider fields cannot be merged into a seeker profile")
	}

	switch {
	case patch.Seeker != nil:
		next := *p.Seeker
		if err := mergeSeeker(&next, patch.Seeker); err != nil {
			return err
		}
		p.Seeker.Documents = next.Documents
		p.Seeker.Category = next.Category
		p.Seeker.Transmission = next.Transmission
	case patch.Provider != nil:
		next := *p.Provider
		if err := mergeProvider(&next, patch.Provider, currentYear); err != nil {
			return err
		}
		p.Provider.Credentials = next.Credentials
		p.Provider.Vehicle = next.Vehicle
		p.Provider.HourlyPrice = next.HourlyPrice
		p.Provider.Availability = next.Availability
	default:
		return nil
	}
	p.UpdatedAt = now
	return nil
}

func mergeSeeker(s *SeekerProfile, patch *SeekerPatch) error {
	if v := patch.IDNumber; v != nil {
		n := strings.TrimSpace(*v)
		if n != "" && len(n) < minIDNumberLen {
			return dErrors.Newf(dErrors.CodeValidation, "id number must have at least %d characters", minIDNumberLen)
		}
		s.Documents.IDNumber = n
	}
	if v := patch.TaxID; v != nil {
		n := strings.TrimSpace(*v)
		if n != "" && len(digitsOnly(n)) != taxIDDigits {
			return dErrors.Newf(dErrors.CodeValidation, "tax id must have %d digits", taxIDDigits)
		}
		s.Documents.TaxID = n
	}
	if v := patch.RegistryNumber; v != nil {
		n := strings.TrimSpace(*v)
		if n != "" && len(n) != registryNumberLen {
			return dErrors.Newf(dErrors.CodeValidation, "registry number must have exactly %d characters", registryNumberLen)
		}
		s.Documents.RegistryNumber = n
	}
	if v := patch.ProofOfResidenceRef; v != nil {
		s.Documents.ProofOfResidenceRef = strings.TrimSpace(*v)
	}
	if v := patch.MedicalClearanceRef; v != nil {
		s.Documents.MedicalClearanceRef = strings.TrimSpace(*v)
	}

	category, transmission, err := resolveGearbox(s.Category, s.Transmission, patch.Category, patch.Transmission)
	if err != nil {
		return err
	}
	s.Category = category
	s.Transmission = transmission
	return nil
}

func mergeProvider(pr *ProviderProfile, patch *ProviderPatch, currentYear int) error {
	if v := patch.LicenseNumber; v != nil {
		pr.Credentials.LicenseNumber = strings.TrimSpace(*v)
	}
	if v := patch.RegistrationNumber; v != nil {
		pr.Credentials.RegistrationNumber = strings.TrimSpace(*v)
	}
	if v := patch.DrivingPermitNumber; v != nil {
		pr.Credentials.DrivingPermitNumber = strings.TrimSpace(*v)
	}

	if v := patch.VehicleModel; v != nil {
		pr.Vehicle.Model = strings.TrimSpace(*v)
	}
	if v := patch.VehiclePlate; v != nil {
		pr.Vehicle.Plate = strings.ToUpper(strings.TrimSpace(*v))
	}
	category, transmission, err := resolveGearbox(pr.Vehicle.Category, pr.Vehicle.Transmission, patch.VehicleCategory, patch.VehicleTransmission)
	if err != nil {
		return err
	}
	pr.Vehicle.Category = category
	pr.Vehicle.Transmission = transmission

	if v := patch.VehicleYear; v != nil {
		pr.Vehicle.Year = *v
	}
	// Re-checked on category changes too: a 2008 truck stops being valid
	// when the vehicle is re-registered as category B.
	if patch.VehicleYear != nil || patch.VehicleCategory != nil {
		if err := validateVehicleYear(pr.Vehicle, currentYear); err != nil {
			return err
		}
	}

	if v := patch.HourlyPrice; v != nil {
		if *v <= 0 {
			return dErrors.New(dErrors.CodeValidation, "hourly price must be greater than zero")
		}
		pr.HourlyPrice = *v
	}
	if v := patch.Availability; v != nil {
		windows := append([]AvailabilityWindow(nil), (*v)...)
		for i, w := range windows {
			if err := w.Validate(); err != nil {
				return dErrors.Wrap(err, dErrors.CodeValidation, "availability window "+strconv.Itoa(i))
			}
		}
		pr.Availability = windows
	}
	return nil
}

// resolveGearbox merges a category/transmission pair under the rule that
// only category B lets the user choose.
func resolveGearbox(curCat id.Category, curTr id.Transmission, patchCat *id.Category, patchTr *id.Transmission) (id.Category, id.Transmission, error) {
	category, transmission := curCat, curTr
	if patchCat != nil {
		if !patchCat.IsValid() {
			return "", "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid category %q", *patchCat)
		}
		category = *patchCat
	}
	if patchTr != nil {
		if !patchTr.IsValid() {
			return "", "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid transmission %q", *patchTr)
		}
		transmission = *patchTr
	}
	if category == "" {
		return category, transmission, nil
	}

	implied, forced, err := eligibility.ImpliedTransmission(category)
	if err != nil {
		return "", "", err
	}
	if !forced {
		return category, transmission, nil
	}
	if patchTr != nil && *patchTr != implied {
		return "", "", dErrors.Newf(dErrors.CodeInvariantViolation,
			"transmission is fixed to %s for category %s", implied, category)
	}
	return category, implied, nil
}

func validateVehicleYear(v Vehicle, currentYear int) error {
	if v.Year == 0 {
		return nil
	}
	if v.Year > currentYear {
		return dErrors.Newf(dErrors.CodeValidation, "vehicle year %d is in the future", v.Year)
	}
	if v.Category == "" {
		return nil
	}
	ok, err := eligibility.IsVehicleYearValid(v.Year, v.Category, currentYear)
	if err != nil {
		return err
	}
	if !ok {
		minYear := eligibility.MustMinAllowedVehicleYear(v.Category, currentYear)
		return dErrors.Newf(dErrors.CodeValidation,
			"vehicle year %d is too old for category %s; minimum is %d", v.Year, v.Category, minYear)
	}
	return nil
}

// Validate checks the weekday and that Start < End, both "HH:MM".
func (w AvailabilityWindow) Validate() error {
	if !w.Weekday.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid weekday %q", w.Weekday)
	}
	start, err := ParseClock(w.Start)
	if err != nil {
		return err
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return err
	}
	if start >= end {
		return dErrors.New(dErrors.CodeValidation, "start time must be before end time")
	}
	return nil
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeValidation, "invalid time %q, expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
