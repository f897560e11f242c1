// Package discovery matches seekers to provider listings.
package discovery

import (
	"cmp"
	"math"
	"slices"

	"drivematch/internal/discovery/models"
	"drivematch/internal/eligibility"
	id "drivematch/pkg/domain"
)

const earthRadiusKm = 6371.0

// Filter returns the candidates that satisfy every rule, in input order
// unless filters.SortBy asks for a stable sort. The input is never modified.
//
// An unknown category yields an empty result rather than an error: the
// directory simply has nothing to offer.
func Filter(candidates []models.Candidate, category id.Category, filters models.Filters, currentYear int) []models.Candidate {
	if _, err := eligibility.MaxVehicleAge(category); err != nil {
		return []models.Candidate{}
	}

	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Serves(category) {
			continue
		}
		if filters.Transmission != "" && c.Transmission != filters.Transmission {
			continue
		}
		if ok, _ := eligibility.IsVehicleYearValid(c.VehicleYear, category, currentYear); !ok {
			continue
		}
		if filters.MinRating != nil && c.Rating < *filters.MinRating {
			continue
		}
		if filters.AvailableNow && !c.AvailableNow {
			continue
		}
		if filters.MaxPrice != nil && c.HourlyPrice > *filters.MaxPrice {
			continue
		}
		if filters.Origin != nil && filters.RadiusKm != nil &&
			DistanceKm(*filters.Origin, c.Position) > *filters.RadiusKm {
			continue
		}
		if filters.Gender != "" && c.Gender != filters.Gender {
			continue
		}
		if filters.NameQuery != "" && !c.MatchesName(filters.NameQuery) {
			continue
		}
		out = append(out, c)
	}

	sortCandidates(out, filters)
	return out
}

func sortCandidates(out []models.Candidate, filters models.Filters) {
	switch filters.SortBy {
	case models.SortPrice:
		slices.SortStableFunc(out, func(a, b models.Candidate) int {
			return cmp.Compare(a.HourlyPrice, b.HourlyPrice)
		})
	case models.SortRating:
		slices.SortStableFunc(out, func(a, b models.Candidate) int {
			return cmp.Compare(b.Rating, a.Rating)
		})
	case models.SortDistance:
		if filters.Origin == nil {
			return
		}
		origin := *filters.Origin
		slices.SortStableFunc(out, func(a, b models.Candidate) int {
			return cmp.Compare(DistanceKm(origin, a.Position), DistanceKm(origin, b.Position))
		})
	}
}

// DistanceKm is the great-circle distance between a and b (haversine).
func DistanceKm(a, b models.Position) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
