// Package attendance runs face and manual attendance attempts against the gallery and the ledger.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/logger"
	"go.uber.org/zap"
)

// Options configure a Coordinator.
type Options struct {
	Threshold int              // maximum Hamming distance for a match
	Now       func() time.Time // clock for time_in, defaults to time.Now
}

// Coordinator owns the attendance pipeline:
// capture, locate, extract, match and record.
type Coordinator struct {
	registry  *gallery.Registry
	locator   facedetect.Locator
	ledger    *ledger.Ledger
	log       *Log
	threshold int
	now       func() time.Time
}

// NewCoordinator wires the pipeline. locator may be nil when only manual marks are used.
func NewCoordinator(registry *gallery.Registry, locator facedetect.Locator, l *ledger.Ledger, log *Log, opts Options) *Coordinator {
	if log == nil {
		log = NewLog(constants.AttendanceLogSize)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		registry:  registry,
		locator:   locator,
		ledger:    l,
		log:       log,
		threshold: opts.Threshold,
		now:       now,
	}
}

// Registry returns the gallery registry.
func (c *Coordinator) Registry() *gallery.Registry {
	return c.registry
}

// Ledger returns the attendance ledger.
func (c *Coordinator) Ledger() *ledger.Ledger {
	return c.ledger
}

// Log returns the attendance log.
func (c *Coordinator) Log() *Log {
	return c.log
}

// Today returns the current calendar day on the coordinator's clock.
func (c *Coordinator) Today() civil.Date {
	return civil.DateOf(c.now())
}

// AttemptFromStream reads one frame from stream and runs the face pipeline on it.
func (c *Coordinator) AttemptFromStream(ctx context.Context, stream capture.Stream, date civil.Date) Outcome {
	o := c.newOutcome(SourceFace, date)

	frame, err := stream.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return c.finish(o, OutcomeCancelled, ctx.Err())
		}
		return c.finish(o, OutcomeCaptureFailed, err)
	}
	return c.attempt(ctx, o, frame)
}

// AttemptFaceAttendance runs the face pipeline on an already captured frame.
// The ledger is written only after the match is fully resolved.
func (c *Coordinator) AttemptFaceAttendance(ctx context.Context, frame image.Image, date civil.Date) Outcome {
	return c.attempt(ctx, c.newOutcome(SourceFace, date), frame)
}

func (c *Coordinator) attempt(ctx context.Context, o Outcome, frame image.Image) Outcome {
	if frame == nil || frame.Bounds().Empty() {
		return c.finish(o, OutcomeCaptureFailed, errors.New("empty frame"))
	}
	o.Stage = StageFrameCaptured

	if c.locator == nil {
		return c.finish(o, OutcomeDetectorUnavailable, facedetect.ErrNoCascade)
	}
	regions := c.locator.Locate(frame)
	o.Faces = len(regions)
	switch len(regions) {
	case 0:
		return c.finish(o, OutcomeNoFace, nil)
	case 1:
	default:
		return c.finish(o, OutcomeMultipleFaces, nil)
	}
	o.Stage = StageRegionLocated

	sig, err := fingerprint.Extract(regions[0].Crop(frame))
	if err != nil {
		return c.finish(o, OutcomeNoFace, err)
	}
	o.Stage = StageSignatureComputed

	g := c.registry.Current()
	result := gallery.Match(sig, g, c.threshold)
	o.Stage = StageMatchEvaluated
	if result.Kind != gallery.Matched {
		return c.finish(o, OutcomeNoMatch, nil)
	}

	o.SubjectID = result.SubjectID
	o.Distance = result.Distance
	if s, ok := g.Get(result.SubjectID); ok {
		o.SubjectName = s.Name
	}
	return c.record(ctx, o)
}

// MarkManual records attendance for subjectID on date without face matching.
func (c *Coordinator) MarkManual(ctx context.Context, subjectID string, date civil.Date) Outcome {
	o := c.newOutcome(SourceManual, date)
	o.SubjectID = subjectID

	s, ok := c.registry.Current().Get(subjectID)
	if !ok {
		return c.finish(o, OutcomeSubjectNotFound, nil)
	}
	o.SubjectName = s.Name
	o.Stage = StageMatchEvaluated
	return c.record(ctx, o)
}

// Report returns the records of [start, end] ordered by date and time_in.
func (c *Coordinator) Report(ctx context.Context, start, end civil.Date) ([]database.AttendanceRecord, error) {
	return c.ledger.QueryRange(ctx, start, end)
}

// DeleteSubject removes a subject with its attendance and drops its cached presence.
func (c *Coordinator) DeleteSubject(ctx context.Context, id string) error {
	if err := c.registry.Delete(ctx, id); err != nil {
		return err
	}
	c.ledger.ForgetSubject(ctx, id)
	return nil
}

// ReloadGallery refreshes the gallery from the store. Subjects that disappeared or were
// registered again since the last snapshot lose their cached presence, because the store
// no longer holds their earlier attendance.
func (c *Coordinator) ReloadGallery(ctx context.Context) error {
	before := c.registry.Current()
	if err := c.registry.Reload(ctx); err != nil {
		return err
	}
	after := c.registry.Current()

	for _, s := range before.Subjects() {
		if now, ok := after.Get(s.ID); !ok || !now.CreatedAt.Equal(s.CreatedAt) {
			c.ledger.ForgetSubject(ctx, s.ID)
		}
	}
	return nil
}

func (c *Coordinator) record(ctx context.Context, o Outcome) Outcome {
	if err := ctx.Err(); err != nil {
		return c.finish(o, OutcomeCancelled, err)
	}

	date, err := civil.ParseDate(o.Date)
	if err != nil {
		return c.finish(o, OutcomeStoreFailure, fmt.Errorf("parse date: %w", err))
	}
	timeIn := c.now().Format(constants.TimeLayout)

	status, err := c.ledger.RecordIfAbsent(ctx, o.SubjectID, date, timeIn)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return c.finish(o, OutcomeCancelled, err)
		}
		return c.finish(o, OutcomeStoreFailure, err)
	}
	o.Stage = StageLedgerUpdated

	if status == ledger.AlreadyPresent {
		return c.finish(o, OutcomeAlreadyMarked, nil)
	}

	o.TimeIn = timeIn
	c.log.Append(Entry{
		AttemptID:   o.AttemptID,
		SubjectID:   o.SubjectID,
		SubjectName: o.SubjectName,
		Date:        o.Date,
		TimeIn:      timeIn,
		Source:      o.Source,
	})
	return c.finish(o, OutcomeMarked, nil)
}

func (c *Coordinator) newOutcome(source string, date civil.Date) Outcome {
	return Outcome{
		AttemptID: uuid.NewString(),
		Source:    source,
		Stage:     StageIdle,
		Date:      date.String(),
	}
}

// finish stamps the outcome, logs it and publishes it to log listeners.
func (c *Coordinator) finish(o Outcome, kind OutcomeKind, err error) Outcome {
	o.Kind = kind
	o.Message = kind.Message()
	o.At = c.now()
	o.Err = err
	if err != nil {
		o.Error = err.Error()
	}

	fields := []zap.Field{
		zap.String("attempt_id", o.AttemptID),
		zap.String("outcome", string(kind)),
		zap.String("source", o.Source),
		zap.String("date", o.Date),
	}
	if o.SubjectID != "" {
		fields = append(fields, zap.String("subject_id", o.SubjectID))
	}

	switch kind {
	case OutcomeMarked:
		logger.Info("attendance marked", append(fields, zap.String("time_in", o.TimeIn), zap.Int("distance", o.Distance))...)
	case OutcomeAlreadyMarked:
		logger.Info("attendance already marked", fields...)
	case OutcomeStoreFailure:
		logger.Error("attendance store failure", append(fields, zap.Error(err))...)
	case OutcomeDetectorUnavailable:
		logger.Error("face detector unavailable", append(fields, zap.Error(err))...)
	case OutcomeCaptureFailed:
		logger.Warn("frame capture failed", append(fields, zap.Error(err))...)
	default:
		logger.Debug("attendance attempt ended", append(fields, zap.Int("faces", o.Faces))...)
	}

	c.log.Publish(Event{Type: string(kind), Message: o.Message, Data: o})
	return o
}
