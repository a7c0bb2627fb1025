package triplist

import (
	"time"

	"github.com/ukydev/cabtrips/internal/models"
)

// Clock returns the current time. Views take one so tests can pin "now".
type Clock func() time.Time

// TimeWindow is an inclusive time interval. A zero bound is open.
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// RangeWindow resolves a date-range selector against now. The boolean is
// false when the selector does not restrict anything.
func RangeWindow(c models.FilterCriteria, now time.Time) (TimeWindow, bool) {
	switch c.Range {
	case models.RangeToday:
		return TimeWindow{From: startOfDay(now), To: now}, true
	case models.RangeWeek:
		return TimeWindow{From: now.Add(-7 * 24 * time.Hour), To: now}, true
	case models.RangeMonth:
		y, m, _ := now.Date()
		return TimeWindow{From: time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), To: now}, true
	case models.RangeCustom:
		var w TimeWindow
		if c.From != nil {
			w.From = startOfDay(c.From.In(now.Location()))
		}
		if c.To != nil {
			w.To = endOfDay(c.To.In(now.Location()))
		}
		return w, !w.From.IsZero() || !w.To.IsZero()
	default:
		return TimeWindow{}, false
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}
