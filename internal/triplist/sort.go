package triplist

import (
	"cmp"
	"slices"

	"github.com/ukydev/cabtrips/internal/models"
)

// Sort returns a copy of trips ordered by spec. The sort is stable, so trips
// with equal keys keep their input order in either direction.
func Sort(trips []models.Trip, spec models.SortSpec) []models.Trip {
	out := slices.Clone(trips)
	if out == nil {
		out = []models.Trip{}
	}
	compare := comparator(spec.Key)
	if spec.Dir == models.Ascending {
		slices.SortStableFunc(out, compare)
	} else {
		slices.SortStableFunc(out, func(a, b models.Trip) int { return compare(b, a) })
	}
	return out
}

func comparator(key models.SortKey) func(a, b models.Trip) int {
	switch key {
	case models.SortByFare:
		return func(a, b models.Trip) int { return cmp.Compare(a.Fare, b.Fare) }
	case models.SortByDistance:
		return func(a, b models.Trip) int { return cmp.Compare(a.DistanceKm, b.DistanceKm) }
	case models.SortByRating:
		return func(a, b models.Trip) int { return cmp.Compare(a.Rating, b.Rating) }
	default:
		return func(a, b models.Trip) int { return a.StartTime.Compare(b.StartTime) }
	}
}
