// Package sqlite implements database.Store with gorm on an embedded SQLite file.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// SubjectModel is the subjects table row
type SubjectModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"not null"`
	Class     string `gorm:"not null;default:''"`
	ImagePath string `gorm:"not null;default:''"`
	Signature string `gorm:"size:16;not null"` // hex form of fingerprint.Signature
	CreatedAt time.Time
}

func (SubjectModel) TableName() string {
	return "subjects"
}

// AttendanceModel is the attendance table row. (subject_id, date) is unique.
type AttendanceModel struct {
	ID        uint   `gorm:"primaryKey"`
	SubjectID string `gorm:"size:64;not null;uniqueIndex:attendance_subject_date,priority:1"`
	Date      string `gorm:"size:10;not null;uniqueIndex:attendance_subject_date,priority:2;index"` // YYYY-MM-DD
	TimeIn    string `gorm:"size:8;not null"`
	CreatedAt time.Time
}

func (AttendanceModel) TableName() string {
	return "attendance"
}

// Store implements database.Store on gorm
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite file and migrates the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:" databases shared.
	sqlDB.SetMaxOpenConns(1)

	return New(db)
}

// New wraps an existing gorm connection and migrates the schema
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&SubjectModel{}, &AttendanceModel{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func toSubjectModel(s database.Subject) SubjectModel {
	return SubjectModel{
		ID:        s.ID,
		Name:      s.Name,
		Class:     s.Class,
		ImagePath: s.ImagePath,
		Signature: s.Signature.String(),
		CreatedAt: s.CreatedAt,
	}
}

func (m SubjectModel) toEntity() (database.Subject, error) {
	sig, err := fingerprint.ParseSignature(m.Signature)
	if err != nil {
		return database.Subject{}, fmt.Errorf("subject %s: %w", m.ID, err)
	}
	return database.Subject{
		ID:        m.ID,
		Name:      m.Name,
		Class:     m.Class,
		ImagePath: m.ImagePath,
		Signature: sig,
		CreatedAt: m.CreatedAt,
	}, nil
}

// GetAllSubjects returns all subjects ordered by ID
func (s *Store) GetAllSubjects(ctx context.Context) ([]database.Subject, error) {
	var rows []SubjectModel
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}

	out := make([]database.Subject, 0, len(rows))
	for _, m := range rows {
		subject, err := m.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, subject)
	}
	return out, nil
}

// GetSubject retrieves a subject by ID, returns nil if not found
func (s *Store) GetSubject(ctx context.Context, id string) (*database.Subject, error) {
	var m SubjectModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query subject: %w", err)
	}

	subject, err := m.toEntity()
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

// AddSubject inserts a subject. Returns false if the ID already exists.
func (s *Store) AddSubject(ctx context.Context, subject database.Subject) (bool, error) {
	m := toSubjectModel(subject)
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if result.Error != nil {
		return false, fmt.Errorf("insert subject: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// UpdateSubject overwrites the mutable fields of an existing subject
func (s *Store) UpdateSubject(ctx context.Context, subject database.Subject) error {
	result := s.db.WithContext(ctx).Model(&SubjectModel{}).Where("id = ?", subject.ID).Updates(map[string]any{
		"name":       subject.Name,
		"class":      subject.Class,
		"image_path": subject.ImagePath,
		"signature":  subject.Signature.String(),
	})
	if result.Error != nil {
		return fmt.Errorf("update subject: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// DeleteSubject removes a subject and its attendance records in one transaction
func (s *Store) DeleteSubject(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subject_id = ?", id).Delete(&AttendanceModel{}).Error; err != nil {
			return fmt.Errorf("delete attendance: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&SubjectModel{})
		if result.Error != nil {
			return fmt.Errorf("delete subject: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return database.ErrNotFound
		}
		return nil
	})
}

// HasAttendance checks if the subject has a record for the date
func (s *Store) HasAttendance(ctx context.Context, subjectID string, date civil.Date) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&AttendanceModel{}).
		Where("subject_id = ? AND date = ?", subjectID, date.String()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check attendance exists: %w", err)
	}
	return count > 0, nil
}

// InsertAttendance appends a record; the unique index rejects a second row for the same day
func (s *Store) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	m := AttendanceModel{
		SubjectID: rec.SubjectID,
		Date:      rec.Date.String(),
		TimeIn:    rec.TimeIn,
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject_id"}, {Name: "date"}},
		DoNothing: true,
	}).Create(&m)
	if result.Error != nil {
		return false, fmt.Errorf("insert attendance: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

type attendanceRow struct {
	SubjectID   string
	SubjectName string
	Date        string
	TimeIn      string
}

// QueryBetween returns records in [start, end] joined with subject names.
// ISO dates compare correctly as strings.
func (s *Store) QueryBetween(ctx context.Context, start, end civil.Date) ([]database.AttendanceRecord, error) {
	var rows []attendanceRow
	err := s.db.WithContext(ctx).
		Table("attendance AS a").
		Select("a.subject_id, COALESCE(s.name, '') AS subject_name, a.date, a.time_in").
		Joins("LEFT JOIN subjects s ON s.id = a.subject_id").
		Where("a.date BETWEEN ? AND ?", start.String(), end.String()).
		Order("a.date, a.time_in, a.subject_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}

	out := make([]database.AttendanceRecord, 0, len(rows))
	for _, r := range rows {
		date, err := civil.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("parse attendance date %q: %w", r.Date, err)
		}
		out = append(out, database.AttendanceRecord{
			SubjectID:   r.SubjectID,
			SubjectName: r.SubjectName,
			Date:        date,
			TimeIn:      r.TimeIn,
		})
	}
	return out, nil
}

// Close closes the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

var _ database.Store = (*Store)(nil)
