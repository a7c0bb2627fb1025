package models

import "time"

// DateRange selects the time window a trip list is narrowed to.
type DateRange string

const (
	RangeAll    DateRange = "all"
	RangeToday  DateRange = "today"
	RangeWeek   DateRange = "week" // rolling 7 days ending now
	RangeMonth  DateRange = "month"
	RangeCustom DateRange = "custom"
)

// FilterAll is the sentinel that disables the status and payment filters.
const FilterAll = "all"

// FilterCriteria narrows a trip list. The zero value matches everything.
type FilterCriteria struct {
	Range   DateRange  `json:"range,omitempty"`
	From    *time.Time `json:"from,omitempty"` // custom range start, day granularity
	To      *time.Time `json:"to,omitempty"`   // custom range end, inclusive to 23:59:59.999
	Status  string     `json:"status,omitempty"`
	Payment string     `json:"payment,omitempty"`
	MinFare float64    `json:"min_fare,omitempty"`
	MaxFare float64    `json:"max_fare,omitempty"`
	Search  string     `json:"search,omitempty"`
}

// SortKey is the field a trip list is ordered by.
type SortKey string

const (
	SortByDate     SortKey = "date"
	SortByFare     SortKey = "fare"
	SortByDistance SortKey = "distance"
	SortByRating   SortKey = "rating"
)

// IsValid reports whether k is one of the supported keys.
func (k SortKey) IsValid() bool {
	switch k {
	case SortByDate, SortByFare, SortByDistance, SortByRating:
		return true
	default:
		return false
	}
}

// SortDirection is ascending or descending.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// SortSpec is a sort key and direction.
type SortSpec struct {
	Key SortKey       `json:"key"`
	Dir SortDirection `json:"dir"`
}

// DefaultSort puts the most recent trip first.
var DefaultSort = SortSpec{Key: SortByDate, Dir: Descending}

// Toggle returns the spec after the user selects key: the same key flips
// direction, a new key starts descending.
func (s SortSpec) Toggle(key SortKey) SortSpec {
	if s.Key == key {
		if s.Dir == Descending {
			return SortSpec{Key: key, Dir: Ascending}
		}
		return SortSpec{Key: key, Dir: Descending}
	}
	return SortSpec{Key: key, Dir: Descending}
}
