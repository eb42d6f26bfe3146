package capture

import (
	"context"
	"image"
	"sync"
)

// Exclusive wraps a Source so at most one stream is open. Opening a new stream
// closes the previous one first.
type Exclusive struct {
	source Source

	mu      sync.Mutex
	current *exclusiveStream
}

// NewExclusive wraps source.
func NewExclusive(source Source) *Exclusive {
	return &Exclusive{source: source}
}

// Open releases any open stream and opens a new one.
func (e *Exclusive) Open(ctx context.Context) (Stream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil {
		e.current.release()
		e.current = nil
	}

	inner, err := e.source.Open(ctx)
	if err != nil {
		return nil, err
	}
	e.current = &exclusiveStream{owner: e, inner: inner}
	return e.current, nil
}

// Close releases the open stream, if any.
func (e *Exclusive) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return nil
	}
	err := e.current.release()
	e.current = nil
	return err
}

type exclusiveStream struct {
	owner *Exclusive
	inner Stream

	once sync.Once
	err  error
}

func (s *exclusiveStream) Read(ctx context.Context) (image.Image, error) {
	return s.inner.Read(ctx)
}

// Close releases the handle and gives up ownership if it is still current.
func (s *exclusiveStream) Close() error {
	s.owner.mu.Lock()
	if s.owner.current == s {
		s.owner.current = nil
	}
	s.owner.mu.Unlock()
	return s.release()
}

func (s *exclusiveStream) release() error {
	s.once.Do(func() { s.err = s.inner.Close() })
	return s.err
}
