package models

import (
	"slices"
	"strings"

	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
	platformstrings "drivematch/pkg/platform/strings"
)

// Position is a WGS84 coordinate in decimal degrees.
type Position struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Candidate is one provider listing as the directory reports it.
type Candidate struct {
	ID           id.ProviderID   `json:"id" yaml:"id"`
	Name         string          `json:"name" yaml:"name"`
	Gender       string          `json:"gender,omitempty" yaml:"gender"`
	Categories   []id.Category   `json:"categories" yaml:"categories"`
	Transmission id.Transmission `json:"transmission" yaml:"transmission"`
	HourlyPrice  float64         `json:"hourly_price" yaml:"hourly_price"`
	VehicleModel string          `json:"vehicle_model" yaml:"vehicle_model"`
	VehicleYear  int             `json:"vehicle_year" yaml:"vehicle_year"`
	Rating       float64         `json:"rating" yaml:"rating"`
	ReviewCount  int             `json:"review_count" yaml:"review_count"`
	Position     Position        `json:"position" yaml:"position"`
	AvailableNow bool            `json:"available_now" yaml:"available_now"`
}

// Serves reports whether the candidate teaches category c.
func (c Candidate) Serves(category id.Category) bool {
	return slices.Contains(c.Categories, category)
}

// MatchesName reports whether query is a case-insensitive substring of the name.
func (c Candidate) MatchesName(query string) bool {
	return strings.Contains(strings.ToLower(c.Name), strings.ToLower(strings.TrimSpace(query)))
}

type SortKey string

const (
	SortNone     SortKey = ""
	SortPrice    SortKey = "price"
	SortRating   SortKey = "rating"
	SortDistance SortKey = "distance"
)

// ParseSortKey accepts "", price, rating or distance.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNone, SortPrice, SortRating, SortDistance:
		return k, true
	default:
		return SortNone, false
	}
}

// Filters are the optional constraints a seeker applies. Zero values and nil
// pointers mean "not set".
type Filters struct {
	Transmission id.Transmission `json:"transmission,omitempty"`
	MinRating    *float64        `json:"min_rating,omitempty"`
	AvailableNow bool            `json:"available_now,omitempty"`
	MaxPrice     *float64        `json:"max_price,omitempty"`
	Origin       *Position       `json:"origin,omitempty"`
	RadiusKm     *float64        `json:"radius_km,omitempty"`
	Gender       string          `json:"gender,omitempty"`
	NameQuery    string          `json:"name_query,omitempty"`
	SortBy       SortKey         `json:"sort_by,omitempty"`
}

// ParseCategories normalizes raw category codes from a directory source.
// Duplicates and blanks are dropped; an empty result is invalid.
func ParseCategories(raw []string) ([]id.Category, error) {
	codes := platformstrings.DedupeAndTrimUpper(raw)
	if len(codes) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "listing serves no category")
	}
	out := make([]id.Category, 0, len(codes))
	for _, code := range codes {
		c, err := id.ParseCategory(code)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
