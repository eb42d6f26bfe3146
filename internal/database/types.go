package database

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
)

// Subject represents a registered student in the gallery
type Subject struct {
	ID        string // unique, case-sensitive
	Name      string
	Class     string // optional class label
	ImagePath string // stored registration face crop
	Signature fingerprint.Signature
	CreatedAt time.Time
}

// AttendanceRecord is one row of the per-day attendance ledger
type AttendanceRecord struct {
	SubjectID   string
	SubjectName string // joined from subjects for reports, empty if the subject is gone
	Date        civil.Date
	TimeIn      string // HH:MM:SS wall clock
}

// Less orders records by date, then time_in, then subject ID.
func (r AttendanceRecord) Less(other AttendanceRecord) bool {
	if r.Date != other.Date {
		return r.Date.Before(other.Date)
	}
	if r.TimeIn != other.TimeIn {
		return r.TimeIn < other.TimeIn
	}
	return r.SubjectID < other.SubjectID
}

// InRange reports whether the record's date lies in [start, end].
func (r AttendanceRecord) InRange(start, end civil.Date) bool {
	return !r.Date.Before(start) && !r.Date.After(end)
}
