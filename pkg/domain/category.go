package domain

import (
	"strings"

	dErrors "drivematch/pkg/domain-errors"
)

// Category is a driving licence category.
// Invariant: one of A, B, C, D, E. Construct via ParseCategory at ingestion
// boundaries; casting bypasses validation.
type Category string

const (
	CategoryA Category = "A"
	CategoryB Category = "B"
	CategoryC Category = "C"
	CategoryD Category = "D"
	CategoryE Category = "E"
)

var validCategories = map[Category]bool{
	CategoryA: true,
	CategoryB: true,
	CategoryC: true,
	CategoryD: true,
	CategoryE: true,
}

// Categories lists every category in licence order.
func Categories() []Category {
	return []Category{CategoryA, CategoryB, CategoryC, CategoryD, CategoryE}
}

// ParseCategory accepts upper or lower case letters and surrounding spaces.
//
// Errors: CodeInvalidInput when the value is not a known category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if c == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "category cannot be empty")
	}
	if !c.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid category %q", s)
	}
	return c, nil
}

func (c Category) IsValid() bool { return validCategories[c] }

func (c Category) String() string { return string(c) }

// Transmission is the gearbox type of a vehicle.
type Transmission string

const (
	TransmissionManual    Transmission = "manual"
	TransmissionAutomatic Transmission = "automatic"
)

// ParseTransmission constructs a Transmission from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseTransmission(s string) (Transmission, error) {
	t := Transmission(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "transmission cannot be empty")
	}
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid transmission %q", s)
	}
	return t, nil
}

func (t Transmission) IsValid() bool {
	return t == TransmissionManual || t == TransmissionAutomatic
}

func (t Transmission) String() string { return string(t) }
