package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/pgvector/pgvector-go"
)

// Store implements database.Store on PostgreSQL.
// Signatures are kept as 64-dimensional bit vectors so pgvector can rank them by L1 distance.
type Store struct {
	pool *Pool
}

// NewStore creates a PostgreSQL store on top of a migrated pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// GetAllSubjects returns all subjects ordered by ID.
func (s *Store) GetAllSubjects(ctx context.Context) ([]database.Subject, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, class, image_path, signature, created_at
		FROM subjects
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	var subjects []database.Subject
	for rows.Next() {
		subject, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, *subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return subjects, nil
}

// GetSubject retrieves a subject by ID, returns nil if not found.
func (s *Store) GetSubject(ctx context.Context, id string) (*database.Subject, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, class, image_path, signature, created_at
		FROM subjects
		WHERE id = $1
	`, id)

	subject, err := scanSubject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return subject, nil
}

// NearestSubjects returns up to limit subjects ranked by L1 distance to the signature.
// On 0/1 vectors the L1 distance equals the Hamming distance of the signatures.
func (s *Store) NearestSubjects(ctx context.Context, sig fingerprint.Signature, limit int) ([]database.Subject, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, class, image_path, signature, created_at
		FROM subjects
		ORDER BY signature <+> $1::vector, id
		LIMIT $2
	`, pgvector.NewVector(sig.Vector()), limit)
	if err != nil {
		return nil, fmt.Errorf("query nearest subjects: %w", err)
	}
	defer rows.Close()

	var subjects []database.Subject
	for rows.Next() {
		subject, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, *subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nearest subjects: %w", err)
	}
	return subjects, nil
}

// AddSubject inserts a subject. Returns false if the ID already exists.
func (s *Store) AddSubject(ctx context.Context, subject database.Subject) (bool, error) {
	createdAt := subject.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.pool.Exec(ctx, `
		INSERT INTO subjects (id, name, class, image_path, signature, created_at)
		VALUES ($1, $2, $3, $4, $5::vector, $6)
		ON CONFLICT (id) DO NOTHING
	`, subject.ID, subject.Name, subject.Class, subject.ImagePath,
		pgvector.NewVector(subject.Signature.Vector()), createdAt)
	if err != nil {
		return false, fmt.Errorf("insert subject: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateSubject overwrites the mutable fields of an existing subject.
func (s *Store) UpdateSubject(ctx context.Context, subject database.Subject) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE subjects
		SET name = $2, class = $3, image_path = $4, signature = $5::vector
		WHERE id = $1
	`, subject.ID, subject.Name, subject.Class, subject.ImagePath,
		pgvector.NewVector(subject.Signature.Vector()))
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return requireAffected(result)
}

// DeleteSubject removes a subject; its attendance rows go with it via ON DELETE CASCADE.
func (s *Store) DeleteSubject(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, "DELETE FROM subjects WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return requireAffected(result)
}

// HasAttendance checks if the subject has a record for the date.
func (s *Store) HasAttendance(ctx context.Context, subjectID string, date civil.Date) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM attendance WHERE subject_id = $1 AND attendance_date = $2)",
		subjectID, date.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendance exists: %w", err)
	}
	return exists, nil
}

// InsertAttendance appends a record; the (subject_id, attendance_date) constraint rejects duplicates.
func (s *Store) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	result, err := s.pool.Exec(ctx, `
		INSERT INTO attendance (subject_id, attendance_date, time_in)
		VALUES ($1, $2, $3)
		ON CONFLICT (subject_id, attendance_date) DO NOTHING
	`, rec.SubjectID, rec.Date.String(), rec.TimeIn)
	if hasCode(err, codeForeignKeyViolation) {
		return false, fmt.Errorf("insert attendance for %s: %w", rec.SubjectID, database.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("insert attendance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return affected > 0, nil
}

// QueryBetween returns records in [start, end] joined with subject names.
func (s *Store) QueryBetween(ctx context.Context, start, end civil.Date) ([]database.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.subject_id, COALESCE(s.name, ''), to_char(a.attendance_date, 'YYYY-MM-DD'), a.time_in
		FROM attendance a
		LEFT JOIN subjects s ON s.id = a.subject_id
		WHERE a.attendance_date BETWEEN $1 AND $2
		ORDER BY a.attendance_date, a.time_in, a.subject_id
	`, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		var date string
		if err := rows.Scan(&rec.SubjectID, &rec.SubjectName, &date, &rec.TimeIn); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		rec.Date, err = civil.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parse attendance date %q: %w", date, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubject(row rowScanner) (*database.Subject, error) {
	var subject database.Subject
	var vec pgvector.Vector
	err := row.Scan(&subject.ID, &subject.Name, &subject.Class, &subject.ImagePath, &vec, &subject.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan subject: %w", err)
	}

	sig, err := fingerprint.FromVector(vec.Slice())
	if err != nil {
		return nil, fmt.Errorf("decode signature of %s: %w", subject.ID, err)
	}
	subject.Signature = sig
	return &subject, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

var _ database.Store = (*Store)(nil)
