// Package ledger enforces at most one attendance record per subject per day.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/logger"
	"go.uber.org/zap"
)

// ErrInvalidRange is returned when a range starts after it ends.
var ErrInvalidRange = errors.New("start date is after end date")

// RecordStatus is the result of RecordIfAbsent.
type RecordStatus int

const (
	Inserted RecordStatus = iota + 1
	AlreadyPresent
)

func (s RecordStatus) String() string {
	switch s {
	case Inserted:
		return "inserted"
	case AlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}

// Ledger serializes check-then-insert per (subject, date). The store's uniqueness
// constraint remains the authoritative guard; the presence cache only short-circuits
// repeated marks.
type Ledger struct {
	store database.AttendanceWriter
	cache PresenceCache
	locks *keyedMutex
}

// New creates a ledger. A nil cache falls back to an in-process one.
func New(store database.AttendanceWriter, cache PresenceCache) *Ledger {
	if cache == nil {
		cache = NewMemoryPresence()
	}
	return &Ledger{
		store: store,
		cache: cache,
		locks: newKeyedMutex(),
	}
}

// RecordIfAbsent inserts a record for (subjectID, date) unless one exists.
// Concurrent calls for the same pair produce exactly one Inserted.
func (l *Ledger) RecordIfAbsent(ctx context.Context, subjectID string, date civil.Date, timeIn string) (RecordStatus, error) {
	if l.cachedPresent(ctx, subjectID, date) {
		return AlreadyPresent, nil
	}

	unlock := l.locks.lock(presenceKey(subjectID, date))
	defer unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	present, err := l.store.HasAttendance(ctx, subjectID, date)
	if err != nil {
		return 0, fmt.Errorf("check attendance: %w", err)
	}
	if present {
		l.remember(ctx, subjectID, date)
		return AlreadyPresent, nil
	}

	inserted, err := l.store.InsertAttendance(ctx, database.AttendanceRecord{
		SubjectID: subjectID,
		Date:      date,
		TimeIn:    timeIn,
	})
	if err != nil {
		return 0, fmt.Errorf("insert attendance: %w", err)
	}
	l.remember(ctx, subjectID, date)

	if !inserted {
		// Another writer sharing the store won the race.
		return AlreadyPresent, nil
	}
	return Inserted, nil
}

// QueryRange returns records with start <= date <= end sorted by (date, time_in).
// It returns an empty slice, not an error, when nothing falls in range.
func (l *Ledger) QueryRange(ctx context.Context, start, end civil.Date) ([]database.AttendanceRecord, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}

	records, err := l.store.QueryBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}

	out := make([]database.AttendanceRecord, 0, len(records))
	for _, rec := range records {
		if rec.InRange(start, end) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// Preload warms the presence cache with the records of one day.
func (l *Ledger) Preload(ctx context.Context, date civil.Date) error {
	records, err := l.store.QueryBetween(ctx, date, date)
	if err != nil {
		return fmt.Errorf("preload attendance: %w", err)
	}
	for _, rec := range records {
		l.remember(ctx, rec.SubjectID, rec.Date)
	}
	logger.Debug("presence cache preloaded", zap.String("date", date.String()), zap.Int("records", len(records)))
	return nil
}

// ForgetSubject drops cached presence of a subject on every day.
// Called when the subject's attendance rows are removed, so a later mark consults the store.
func (l *Ledger) ForgetSubject(ctx context.Context, subjectID string) {
	if err := l.cache.ForgetSubject(ctx, subjectID); err != nil {
		logger.Warn("presence cache forget failed", zap.String("subject_id", subjectID), zap.Error(err))
	}
}

func (l *Ledger) cachedPresent(ctx context.Context, subjectID string, date civil.Date) bool {
	present, err := l.cache.Has(ctx, subjectID, date)
	if err != nil {
		logger.Warn("presence cache lookup failed", zap.String("subject_id", subjectID), zap.Error(err))
		return false
	}
	return present
}

func (l *Ledger) remember(ctx context.Context, subjectID string, date civil.Date) {
	if err := l.cache.Mark(ctx, subjectID, date); err != nil {
		logger.Warn("presence cache update failed", zap.String("subject_id", subjectID), zap.Error(err))
	}
}

func presenceKey(subjectID string, date civil.Date) string {
	return date.String() + "/" + subjectID
}
