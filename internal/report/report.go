// Package report renders attendance records for export.
package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"cloud.google.com/go/civil"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Header is the first row of every CSV export.
var Header = []string{"Name", "ID", "Date", "Time In"}

// WriteCSV writes records in the given order, preceded by Header.
func WriteCSV(w io.Writer, records []database.AttendanceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.SubjectName, rec.SubjectID, rec.Date.String(), rec.TimeIn}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %s/%s: %w", rec.SubjectID, rec.Date, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Filename returns the download name for an export of [start, end].
func Filename(start, end civil.Date) string {
	if start == end {
		return fmt.Sprintf("attendance_%s.csv", start)
	}
	return fmt.Sprintf("attendance_%s_%s.csv", start, end)
}

// DaySummary counts distinct attendees for one day.
type DaySummary struct {
	Date    string `json:"date"`
	Present int    `json:"present"`
}

// Summarize counts records per day. records must be ordered by date.
func Summarize(records []database.AttendanceRecord) []DaySummary {
	summaries := []DaySummary{}
	for _, rec := range records {
		date := rec.Date.String()
		if n := len(summaries); n > 0 && summaries[n-1].Date == date {
			summaries[n-1].Present++
			continue
		}
		summaries = append(summaries, DaySummary{Date: date, Present: 1})
	}
	return summaries
}
