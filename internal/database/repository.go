package database

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
)

// SubjectReader provides read-only access to registered subjects
type SubjectReader interface {
	// GetAllSubjects returns every registered subject ordered by ID
	GetAllSubjects(ctx context.Context) ([]Subject, error)
	// GetSubject retrieves a subject by ID, returns nil if not found
	GetSubject(ctx context.Context, id string) (*Subject, error)
}

// SubjectWriter provides write access to registered subjects
type SubjectWriter interface {
	SubjectReader

	// AddSubject stores a new subject. Returns false if the ID is already taken.
	AddSubject(ctx context.Context, s Subject) (bool, error)

	// UpdateSubject overwrites name, class, image path and signature of an existing subject.
	// Returns ErrNotFound if the subject does not exist.
	UpdateSubject(ctx context.Context, s Subject) error

	// DeleteSubject removes a subject together with its attendance records.
	// Returns ErrNotFound if the subject does not exist.
	DeleteSubject(ctx context.Context, id string) error
}

// NearestFinder is implemented by stores that can rank subjects by signature distance themselves.
type NearestFinder interface {
	// NearestSubjects returns up to limit subjects closest to sig, closest first
	NearestSubjects(ctx context.Context, sig fingerprint.Signature, limit int) ([]Subject, error)
}

// AttendanceReader provides read-only access to the attendance ledger
type AttendanceReader interface {
	// HasAttendance checks if a record exists for the subject on the given day
	HasAttendance(ctx context.Context, subjectID string, date civil.Date) (bool, error)
	// QueryBetween returns records with start <= date <= end ordered by date, time_in
	QueryBetween(ctx context.Context, start, end civil.Date) ([]AttendanceRecord, error)
}

// AttendanceWriter provides append-only write access to the attendance ledger
type AttendanceWriter interface {
	AttendanceReader

	// InsertAttendance appends a record unless one already exists for (subject, date).
	// Returns false when the uniqueness constraint rejected the row.
	InsertAttendance(ctx context.Context, rec AttendanceRecord) (bool, error)
}

// Store is a complete backend for the gallery and the ledger
type Store interface {
	SubjectWriter
	AttendanceWriter

	// Close releases the backend's resources
	Close() error
}
