// Package capture supplies raster frames from cameras and frame directories.
package capture

import (
	"context"
	"errors"
	"image"

	"github.com/kozaktomas/face-attendance/internal/config"
)

var (
	// ErrNoFrame is returned when a source has no new frame to offer
	ErrNoFrame = errors.New("no frame available")

	// ErrClosed is returned when reading from a closed stream
	ErrClosed = errors.New("frame stream is closed")

	// ErrNotConfigured is returned when no camera is configured
	ErrNotConfigured = errors.New("no camera configured")
)

// Source opens frame streams.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open handle on a source. Close releases it.
type Stream interface {
	Read(ctx context.Context) (image.Image, error)
	Close() error
}

// FromConfig builds the configured source wrapped so only one stream is open at a time.
// A snapshot URL takes precedence over a frame directory.
func FromConfig(cfg *config.CameraConfig) (*Exclusive, error) {
	switch {
	case cfg.URL != "":
		return NewExclusive(NewHTTPSource(cfg.URL, nil)), nil
	case cfg.Dir != "":
		return NewExclusive(NewDirSource(cfg.Dir)), nil
	default:
		return nil, ErrNotConfigured
	}
}
