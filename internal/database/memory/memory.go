// Package memory provides an in-process implementation of database.Store.
// It backs the memory store backend and serves as the test double for the other packages.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/kozaktomas/face-attendance/internal/database"
)

type attendanceKey struct {
	subjectID string
	date      civil.Date
}

// Store keeps subjects and attendance records in maps guarded by a single lock.
type Store struct {
	mu         sync.RWMutex
	subjects   map[string]database.Subject
	attendance map[attendanceKey]database.AttendanceRecord

	// Error injection
	GetError    error
	AddError    error
	UpdateError error
	DeleteError error
	HasError    error
	InsertError error
	QueryError  error

	// InsertCalls counts InsertAttendance invocations, including rejected ones
	InsertCalls int
}

// New creates an empty store
func New() *Store {
	return &Store{
		subjects:   make(map[string]database.Subject),
		attendance: make(map[attendanceKey]database.AttendanceRecord),
	}
}

// GetAllSubjects returns all subjects ordered by ID
func (s *Store) GetAllSubjects(ctx context.Context) ([]database.Subject, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	subjects := make([]database.Subject, 0, len(s.subjects))
	for _, subject := range s.subjects {
		subjects = append(subjects, subject)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })
	return subjects, nil
}

// GetSubject retrieves a subject by ID
func (s *Store) GetSubject(ctx context.Context, id string) (*database.Subject, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	subject, ok := s.subjects[id]
	if !ok {
		return nil, nil
	}
	return &subject, nil
}

// AddSubject stores a new subject
func (s *Store) AddSubject(ctx context.Context, subject database.Subject) (bool, error) {
	if s.AddError != nil {
		return false, s.AddError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subjects[subject.ID]; ok {
		return false, nil
	}
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now()
	}
	s.subjects[subject.ID] = subject
	return true, nil
}

// UpdateSubject overwrites an existing subject, keeping its creation time
func (s *Store) UpdateSubject(ctx context.Context, subject database.Subject) error {
	if s.UpdateError != nil {
		return s.UpdateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.subjects[subject.ID]
	if !ok {
		return database.ErrNotFound
	}
	subject.CreatedAt = existing.CreatedAt
	s.subjects[subject.ID] = subject
	return nil
}

// DeleteSubject removes a subject and its attendance records
func (s *Store) DeleteSubject(ctx context.Context, id string) error {
	if s.DeleteError != nil {
		return s.DeleteError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subjects[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.subjects, id)
	for key := range s.attendance {
		if key.subjectID == id {
			delete(s.attendance, key)
		}
	}
	return nil
}

// HasAttendance checks whether a record exists for the subject on the date
func (s *Store) HasAttendance(ctx context.Context, subjectID string, date civil.Date) (bool, error) {
	if s.HasError != nil {
		return false, s.HasError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.attendance[attendanceKey{subjectID: subjectID, date: date}]
	return ok, nil
}

// InsertAttendance appends a record unless (subject, date) is already present
func (s *Store) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InsertCalls++

	if s.InsertError != nil {
		return false, s.InsertError
	}

	key := attendanceKey{subjectID: rec.SubjectID, date: rec.Date}
	if _, ok := s.attendance[key]; ok {
		return false, nil
	}
	rec.SubjectName = ""
	s.attendance[key] = rec
	return true, nil
}

// QueryBetween returns records in [start, end] ordered by date, time_in
func (s *Store) QueryBetween(ctx context.Context, start, end civil.Date) ([]database.AttendanceRecord, error) {
	if s.QueryError != nil {
		return nil, s.QueryError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []database.AttendanceRecord
	for _, rec := range s.attendance {
		if !rec.InRange(start, end) {
			continue
		}
		if subject, ok := s.subjects[rec.SubjectID]; ok {
			rec.SubjectName = subject.Name
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Less(records[j]) })
	return records, nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

var _ database.Store = (*Store)(nil)
