package attendance

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"cloud.google.com/go/civil"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Poller reads frames at a fixed interval and feeds the newest one to the coordinator.
// Reading and matching run in separate goroutines joined by a one-slot mailbox, so a
// slow match drops stale frames instead of delaying the camera.
type Poller struct {
	coord    *Coordinator
	source   capture.Source
	interval time.Duration

	// Date picks the attendance day for each attempt, defaults to the coordinator's today
	Date func() civil.Date

	// OnOutcome receives every outcome that differs from the previous one
	OnOutcome func(Outcome)
}

// NewPoller creates a poller over source.
func NewPoller(coord *Coordinator, source capture.Source, interval time.Duration) *Poller {
	return &Poller{
		coord:    coord,
		source:   source,
		interval: interval,
		Date:     coord.Today,
	}
}

// Run polls until ctx is cancelled or an attempt is cancelled underneath a live ctx.
// The stream is closed before Run returns.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("invalid poll interval %v", p.interval)
	}

	stream, err := p.source.Open(ctx)
	if err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}
	defer stream.Close()

	mailbox := make(chan image.Image, 1)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.read(gctx, stream, mailbox)
	})
	g.Go(func() error {
		return p.match(gctx, mailbox)
	})

	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Poller) read(ctx context.Context, stream capture.Stream, mailbox chan image.Image) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame, err := stream.Read(ctx)
		switch {
		case err == nil:
		case errors.Is(err, capture.ErrNoFrame):
			continue
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, capture.ErrClosed):
			return err
		default:
			logger.Warn("frame read failed", zap.Error(err))
			continue
		}

		// Replace any frame the matcher has not picked up yet.
		select {
		case <-mailbox:
		default:
		}
		mailbox <- frame
	}
}

func (p *Poller) match(ctx context.Context, mailbox chan image.Image) error {
	var last Outcome
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-mailbox:
			o := p.coord.AttemptFaceAttendance(ctx, frame, p.Date())
			if o.Kind == OutcomeCancelled {
				if err := ctx.Err(); err != nil {
					return err
				}
				return fmt.Errorf("attempt %s cancelled by the store: %w", o.AttemptID, o.Err)
			}
			if p.OnOutcome != nil && (o.Kind != last.Kind || o.SubjectID != last.SubjectID) {
				p.OnOutcome(o)
			}
			last = o
		}
	}
}
