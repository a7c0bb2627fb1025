package export

import (
	"fmt"
	"io"

	"github.com/ukydev/cabtrips/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	tripsSheet   = "Trips"
	summarySheet = "Summary"
)

// colWidth sets the width of columns From through To.
type colWidth struct {
	From, To string
	Width    float64
}

// layoutSheet styles the header row up to lastCol and sizes the columns.
func layoutSheet(book *excelize.File, sheet string, style int, lastCol string, widths []colWidth) error {
	if err := book.SetCellStyle(sheet, "A1", lastCol+"1", style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for _, cw := range widths {
		if err := book.SetColWidth(sheet, cw.From, cw.To, cw.Width); err != nil {
			return fmt.Errorf("size %s columns %s:%s: %w", sheet, cw.From, cw.To, err)
		}
	}
	return nil
}

// WriteXLSX writes a workbook with a Trips sheet holding the same columns as
// the CSV export and a Summary sheet with the aggregate statistics.
func (f Formatter) WriteXLSX(w io.Writer, trips []models.Trip, stats models.AggregateStats) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", tripsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := book.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DCE6F1"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := book.SetSheetRow(tripsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(Header))
	if err != nil {
		return fmt.Errorf("header width: %w", err)
	}
	if err := layoutSheet(book, tripsSheet, headerStyle, lastCol, []colWidth{
		{"A", "A", 16},
		{"B", "D", 30},
		{"E", "F", 20},
		{"G", lastCol, 14},
	}); err != nil {
		return err
	}

	for i, t := range trips {
		text := f.Row(t)
		row := []any{
			text[0], text[1], text[2], text[3], text[4], text[5],
			t.DistanceKm, t.DurationMin, t.Fare, t.Tip,
			text[10], text[11],
		}
		if t.IsRated() {
			row = append(row, t.Rating)
		} else {
			row = append(row, "")
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		if err := book.SetSheetRow(tripsSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := book.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	summary := [][]any{
		{"Metric", "Value"},
		{"Total Trips", stats.TotalTrips},
		{"Completed Trips", stats.CompletedTrips},
		{"Cancelled Trips", stats.CancelledTrips},
		{"Total Earnings", stats.TotalEarnings},
		{"Total Tips", stats.TotalTips},
		{"Total Distance (km)", stats.TotalDistance},
		{"Total Duration (min)", stats.TotalDuration},
		{"Average Fare", stats.AvgFare},
		{"Average Rating", stats.AvgRating},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("summary row %d: %w", i+1, err)
		}
		if err := book.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	if err := layoutSheet(book, summarySheet, headerStyle, "B", []colWidth{{"A", "A", 24}}); err != nil {
		return err
	}

	if err := book.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
