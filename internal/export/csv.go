// Package export writes filtered trip lists as CSV and XLSX downloads.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ukydev/cabtrips/internal/models"
)

// TimeLayout is how start and end times appear in exports.
const TimeLayout = "2006-01-02 15:04:05"

// Header is the fixed column order of every export.
var Header = []string{
	"Trip ID",
	"Passenger",
	"Pickup",
	"Drop",
	"Start Time",
	"End Time",
	"Distance (km)",
	"Duration (min)",
	"Fare",
	"Tip",
	"Status",
	"Payment Method",
	"Rating",
}

// Formatter renders trips as text columns.
type Formatter struct {
	Location *time.Location // zone for times, UTC when nil
}

// Row returns the formatted columns for t, matching Header.
func (f Formatter) Row(t models.Trip) []string {
	return []string{
		t.ID,
		t.Passenger,
		t.Pickup.Line,
		t.Drop.Line,
		f.formatTime(t.StartTime),
		f.formatEnd(t.EndTime),
		formatFloat(t.DistanceKm, 2),
		formatFloat(t.DurationMin, 0),
		formatFloat(t.Fare, 2),
		formatFloat(t.Tip, 2),
		string(t.Status),
		string(t.PaymentMethod),
		formatRating(t.Rating),
	}
}

func (f Formatter) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimeLayout)
}

func (f Formatter) formatEnd(t *time.Time) string {
	if t == nil {
		return ""
	}
	return f.formatTime(*t)
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func formatRating(r float64) string {
	if r <= 0 {
		return ""
	}
	return strconv.FormatFloat(r, 'f', 1, 64)
}

// CSV renders trips with a header row. Every field is quoted with embedded
// quotes doubled, and rows are joined by "\n" with no trailing newline.
func (f Formatter) CSV(trips []models.Trip) string {
	lines := make([]string, 0, len(trips)+1)
	lines = append(lines, csvLine(Header))
	for _, t := range trips {
		lines = append(lines, csvLine(f.Row(t)))
	}
	return strings.Join(lines, "\n")
}

// WriteCSV writes the CSV rendering of trips to w.
func (f Formatter) WriteCSV(w io.Writer, trips []models.Trip) error {
	if _, err := io.WriteString(w, f.CSV(trips)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func csvLine(fields []string) string {
	quoted := make([]string, len(fields))
	for i, field := range fields {
		quoted[i] = `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}

// Filename is the download name for a role's export taken at now, for
// example trips-driver-20240315.csv.
func Filename(role models.Role, now time.Time, ext string) string {
	return fmt.Sprintf("trips-%s-%s.%s", role, now.Format("20060102"), strings.TrimPrefix(ext, "."))
}
