package handler

import (
	"strings"
	"time"

	discovery "drivematch/internal/discovery/models"
	profile "drivematch/internal/profile/models"
	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
)

type actorRequest struct {
	Actor string `json:"actor"`

	actor id.ActorType
}

func (r *actorRequest) Validate() error {
	a, err := id.ParseActorType(strings.ToLower(strings.TrimSpace(r.Actor)))
	if err != nil {
		return err
	}
	r.actor = a
	return nil
}

type navigateRequest struct {
	Screen string `json:"screen"`
}

func (r *navigateRequest) Validate() error {
	if strings.TrimSpace(r.Screen) == "" {
		return dErrors.New(dErrors.CodeValidation, "screen is required")
	}
	return nil
}

type seekerPatchRequest struct {
	IDNumber            *string `json:"id_number"`
	TaxID               *string `json:"tax_id"`
	ProofOfResidenceRef *string `json:"proof_of_residence_ref"`
	MedicalClearanceRef *string `json:"medical_clearance_ref"`
	RegistryNumber      *string `json:"registry_number"`
	Category            *string `json:"category"`
	Transmission        *string `json:"transmission"`
}

type windowRequest struct {
	Weekday string `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type providerPatchRequest struct {
	LicenseNumber       *string          `json:"license_number"`
	RegistrationNumber  *string          `json:"registration_number"`
	DrivingPermitNumber *string          `json:"driving_permit_number"`
	VehicleModel        *string          `json:"vehicle_model"`
	VehicleYear         *int             `json:"vehicle_year"`
	VehiclePlate        *string          `json:"vehicle_plate"`
	VehicleCategory     *string          `json:"vehicle_category"`
	VehicleTransmission *string          `json:"vehicle_transmission"`
	HourlyPrice         *float64         `json:"hourly_price"`
	Availability        *[]windowRequest `json:"availability"`
}

// profilePatchRequest is the wire form of profile.Patch. Enum fields arrive
// as strings and are parsed at this boundary.
type profilePatchRequest struct {
	Seeker   *seekerPatchRequest   `json:"seeker"`
	Provider *providerPatchRequest `json:"provider"`

	patch profile.Patch
}

func (r *profilePatchRequest) Validate() error {
	if r.Seeker == nil && r.Provider == nil {
		return dErrors.New(dErrors.CodeValidation, "patch must contain seeker or provider fields")
	}
	if r.Seeker != nil {
		sp := &profile.SeekerPatch{
			IDNumber:            r.Seeker.IDNumber,
			TaxID:               r.Seeker.TaxID,
			ProofOfResidenceRef: r.Seeker.ProofOfResidenceRef,
			MedicalClearanceRef: r.Seeker.MedicalClearanceRef,
			RegistryNumber:      r.Seeker.RegistryNumber,
		}
		var err error
		if sp.Category, err = parseOptional(r.Seeker.Category, id.ParseCategory); err != nil {
			return err
		}
		if sp.Transmission, err = parseOptional(r.Seeker.Transmission, id.ParseTransmission); err != nil {
			return err
		}
		r.patch.Seeker = sp
	}
	if r.Provider != nil {
		p := r.Provider
		pp := &profile.ProviderPatch{
			LicenseNumber:       p.LicenseNumber,
			RegistrationNumber:  p.RegistrationNumber,
			DrivingPermitNumber: p.DrivingPermitNumber,
			VehicleModel:        p.VehicleModel,
			VehicleYear:         p.VehicleYear,
			VehiclePlate:        p.VehiclePlate,
			HourlyPrice:         p.HourlyPrice,
		}
		var err error
		if pp.VehicleCategory, err = parseOptional(p.VehicleCategory, id.ParseCategory); err != nil {
			return err
		}
		if pp.VehicleTransmission, err = parseOptional(p.VehicleTransmission, id.ParseTransmission); err != nil {
			return err
		}
		if p.Availability != nil {
			windows := make([]profile.AvailabilityWindow, 0, len(*p.Availability))
			for _, w := range *p.Availability {
				day, err := id.ParseWeekday(w.Weekday)
				if err != nil {
					return err
				}
				windows = append(windows, profile.AvailabilityWindow{Weekday: day, Start: w.Start, End: w.End})
			}
			pp.Availability = &windows
		}
		r.patch.Provider = pp
	}
	return nil
}

func parseOptional[T any](raw *string, parse func(string) (T, error)) (*T, error) {
	if raw == nil {
		return nil, nil
	}
	v, err := parse(*raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type discoveryRequest struct {
	Transmission string              `json:"transmission"`
	MinRating    *float64            `json:"min_rating"`
	AvailableNow bool                `json:"available_now"`
	MaxPrice     *float64            `json:"max_price"`
	Origin       *discovery.Position `json:"origin"`
	RadiusKm     *float64            `json:"radius_km"`
	Gender       string              `json:"gender"`
	Name         string              `json:"name"`
	SortBy       string              `json:"sort_by"`

	filters discovery.Filters
}

func (r *discoveryRequest) Validate() error {
	f := discovery.Filters{
		MinRating:    r.MinRating,
		AvailableNow: r.AvailableNow,
		MaxPrice:     r.MaxPrice,
		Origin:       r.Origin,
		RadiusKm:     r.RadiusKm,
		Gender:       r.Gender,
		NameQuery:    r.Name,
	}
	if strings.TrimSpace(r.Transmission) != "" {
		t, err := id.ParseTransmission(r.Transmission)
		if err != nil {
			return err
		}
		f.Transmission = t
	}
	key, ok := discovery.ParseSortKey(r.SortBy)
	if !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unsupported sort %q", r.SortBy)
	}
	f.SortBy = key
	r.filters = f
	return nil
}

type providerRequest struct {
	ProviderID string `json:"provider_id"`

	providerID id.ProviderID
}

func (r *providerRequest) Validate() error {
	pid, err := id.ParseProviderID(strings.TrimSpace(r.ProviderID))
	if err != nil {
		return err
	}
	r.providerID = pid
	return nil
}

type scheduleRequest struct {
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`

	date time.Time
}

func (r *scheduleRequest) Validate() error {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(r.Date))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "date must be YYYY-MM-DD")
	}
	if strings.TrimSpace(r.TimeSlot) == "" {
		return dErrors.New(dErrors.CodeValidation, "time_slot is required")
	}
	r.date = d
	return nil
}

type liveStartRequest struct {
	Counterpart string `json:"counterpart"`
}

type liveEndRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type sessionCreatedResponse struct {
	SessionID id.SessionID `json:"session_id"`
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresIn int          `json:"expires_in"`
	Session   any          `json:"session"`
}

type cancelResponse struct {
	Canceled     bool `json:"canceled"`
	Verification any  `json:"verification"`
}
