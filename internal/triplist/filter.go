package triplist

import (
	"strings"
	"time"

	"github.com/ukydev/cabtrips/internal/models"
)

// Predicate keeps a trip when it returns true.
type Predicate func(models.Trip) bool

// Stages returns the predicates for c in their fixed order: search, date
// range, status, payment method, fare bounds. Criteria that do not restrict
// anything contribute no stage.
func Stages(c models.FilterCriteria, now time.Time) []Predicate {
	var stages []Predicate

	if term := strings.ToLower(strings.TrimSpace(c.Search)); term != "" {
		stages = append(stages, func(t models.Trip) bool { return matchesSearch(t, term) })
	}

	if w, ok := RangeWindow(c, now); ok {
		stages = append(stages, func(t models.Trip) bool {
			return !t.StartTime.IsZero() && w.Contains(t.StartTime)
		})
	}

	if s := strings.ToLower(strings.TrimSpace(c.Status)); s != "" && s != models.FilterAll {
		stages = append(stages, func(t models.Trip) bool { return string(t.Status) == s })
	}

	if p := strings.ToLower(strings.TrimSpace(c.Payment)); p != "" && p != models.FilterAll {
		stages = append(stages, func(t models.Trip) bool { return string(t.PaymentMethod) == p })
	}

	if c.MinFare > 0 {
		lo := c.MinFare
		stages = append(stages, func(t models.Trip) bool { return t.Fare >= lo })
	}
	if c.MaxFare > 0 {
		hi := c.MaxFare
		stages = append(stages, func(t models.Trip) bool { return t.Fare <= hi })
	}

	return stages
}

// Filter returns the trips matching c in their original order. The input
// slice is never modified.
func Filter(trips []models.Trip, c models.FilterCriteria, now time.Time) []models.Trip {
	out := make([]models.Trip, len(trips))
	copy(out, trips)
	for _, keep := range Stages(c, now) {
		kept := out[:0:0]
		for _, t := range out {
			if keep(t) {
				kept = append(kept, t)
			}
		}
		out = kept
	}
	return out
}

// matchesSearch reports whether the lowered term occurs in the passenger
// name, pickup or drop address, or trip id.
func matchesSearch(t models.Trip, lowered string) bool {
	for _, field := range []string{t.Passenger, t.Pickup.Line, t.Drop.Line, t.ID} {
		if strings.Contains(strings.ToLower(field), lowered) {
			return true
		}
	}
	return false
}

// ValidateCriteria checks criteria submitted by a user.
func ValidateCriteria(c models.FilterCriteria) error {
	errs := models.ValidationErrors{}

	switch c.Range {
	case "", models.RangeAll, models.RangeToday, models.RangeWeek, models.RangeMonth:
	case models.RangeCustom:
		if c.From != nil && c.To != nil && c.To.Before(*c.From) {
			errs.Add("to", "must not be before from")
		}
	default:
		errs.Add("range", "must be one of all, today, week, month, custom")
	}

	if s := strings.ToLower(strings.TrimSpace(c.Status)); s != "" && s != models.FilterAll && !knownStatus(s) {
		errs.Add("status", "unknown status")
	}
	if p := strings.ToLower(strings.TrimSpace(c.Payment)); p != "" && p != models.FilterAll && !knownPayment(p) {
		errs.Add("payment", "unknown payment method")
	}

	if c.MinFare < 0 {
		errs.Add("min_fare", "must not be negative")
	}
	if c.MaxFare < 0 {
		errs.Add("max_fare", "must not be negative")
	}
	if c.MinFare > 0 && c.MaxFare > 0 && c.MaxFare < c.MinFare {
		errs.Add("max_fare", "must not be less than min_fare")
	}
	return errs.Err()
}

func knownStatus(s string) bool {
	if s == string(models.StatusUnknown) {
		return true
	}
	for _, st := range models.Statuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

func knownPayment(p string) bool {
	if p == string(models.PaymentUnknown) {
		return true
	}
	for _, pm := range models.PaymentMethods {
		if string(pm) == p {
			return true
		}
	}
	return false
}
