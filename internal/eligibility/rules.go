// Package eligibility holds the pure, category-dependent rules shared by the
// profile aggregate and the discovery engine.
//
// The rules are total over the closed category set. An unrecognized category
// is a caller contract violation: the error-returning functions report it as
// CodeInvariantViolation and the Must variants panic.
package eligibility

import (
	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
)

const (
	// maxAgeLightVehicle applies to B and, as a usable default, to A.
	maxAgeLightVehicle = 12
	// maxAgeHeavyVehicle applies to trucks, buses and combinations (C, D, E).
	maxAgeHeavyVehicle = 20
)

var maxVehicleAge = map[id.Category]int{
	id.CategoryA: maxAgeLightVehicle,
	id.CategoryB: maxAgeLightVehicle,
	id.CategoryC: maxAgeHeavyVehicle,
	id.CategoryD: maxAgeHeavyVehicle,
	id.CategoryE: maxAgeHeavyVehicle,
}

func unknownCategory(c id.Category) error {
	return dErrors.Newf(dErrors.CodeInvariantViolation, "unrecognized category %q", c)
}

// MaxVehicleAge returns the oldest vehicle age, in years, accepted for
// lessons of category c.
func MaxVehicleAge(c id.Category) (int, error) {
	age, ok := maxVehicleAge[c]
	if !ok {
		return 0, unknownCategory(c)
	}
	return age, nil
}

// MinAllowedVehicleYear returns the oldest model year accepted for category c.
func MinAllowedVehicleYear(c id.Category, currentYear int) (int, error) {
	age, err := MaxVehicleAge(c)
	if err != nil {
		return 0, err
	}
	return currentYear - age, nil
}

// IsVehicleYearValid reports year >= MinAllowedVehicleYear(c, currentYear).
func IsVehicleYearValid(year int, c id.Category, currentYear int) (bool, error) {
	minYear, err := MinAllowedVehicleYear(c, currentYear)
	if err != nil {
		return false, err
	}
	return year >= minYear, nil
}

// ImpliedTransmission returns Manual for A, C, D and E. For B the learner
// chooses, so ok is false.
func ImpliedTransmission(c id.Category) (t id.Transmission, ok bool, err error) {
	if !c.IsValid() {
		return "", false, unknownCategory(c)
	}
	if c == id.CategoryB {
		return "", false, nil
	}
	return id.TransmissionManual, true, nil
}

// TransmissionSelectable reports whether the user may pick the gearbox.
func TransmissionSelectable(c id.Category) bool {
	return c == id.CategoryB
}

func MustMaxVehicleAge(c id.Category) int {
	age, err := MaxVehicleAge(c)
	if err != nil {
		panic(err)
	}
	return age
}

func MustMinAllowedVehicleYear(c id.Category, currentYear int) int {
	y, err := MinAllowedVehicleYear(c, currentYear)
	if err != nil {
		panic(err)
	}
	return y
}

func MustIsVehicleYearValid(year int, c id.Category, currentYear int) bool {
	ok, err := IsVehicleYearValid(year, c, currentYear)
	if err != nil {
		panic(err)
	}
	return ok
}
