package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func writeFrame(t *testing.T, dir, name string, w int, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pngBytes(t, w, w), 0o644); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestDirSource_ReadsNewFramesOnly(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeFrame(t, dir, "old.png", 8, base)

	stream, err := NewDirSource(dir).Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stream.Close()

	if _, err := stream.Read(ctx); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame for pre-existing frame, got %v", err)
	}

	writeFrame(t, dir, "new.png", 16, base.Add(time.Minute))
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)

	img, err := stream.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if img.Bounds().Dx() != 16 {
		t.Errorf("expected the 16px frame, got %dpx", img.Bounds().Dx())
	}

	if _, err := stream.Read(ctx); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame after consuming the frame, got %v", err)
	}
}

func TestDirSource_MissingDirectory(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "missing")).Open(context.Background())
	if err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestDirSource_ReadAfterClose(t *testing.T) {
	ctx := context.Background()
	stream, err := NewDirSource(t.TempDir()).Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	stream.Close()

	if _, err := stream.Read(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestHTTPSource(t *testing.T) {
	frame := pngBytes(t, 12, 12)
	var status atomic.Int32
	status.Store(http.StatusOK)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		code := int(status.Load())
		w.WriteHeader(code)
		if code == http.StatusOK {
			w.Write(frame)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	stream, err := NewHTTPSource(server.URL, server.Client()).Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	img, err := stream.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if img.Bounds().Dx() != 12 {
		t.Errorf("expected 12px frame, got %dpx", img.Bounds().Dx())
	}

	status.Store(http.StatusNoContent)
	if _, err := stream.Read(ctx); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame on 204, got %v", err)
	}

	status.Store(http.StatusServiceUnavailable)
	if _, err := stream.Read(ctx); err == nil {
		t.Error("expected error on 503")
	}

	stream.Close()
	if _, err := stream.Read(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

// countingSource tracks how many streams are open at once.
type countingSource struct {
	mu      sync.Mutex
	open    int
	maxOpen int
	opened  int
}

func (c *countingSource) Open(context.Context) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open++
	c.opened++
	c.maxOpen = max(c.maxOpen, c.open)
	return &countingStream{src: c}, nil
}

type countingStream struct {
	src *countingSource
}

func (s *countingStream) Read(context.Context) (image.Image, error) {
	return nil, ErrNoFrame
}

func (s *countingStream) Close() error {
	s.src.mu.Lock()
	defer s.src.mu.Unlock()
	s.src.open--
	return nil
}

func TestExclusive_ClosesPreviousStream(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{}
	ex := NewExclusive(src)

	first, _ := ex.Open(ctx)
	second, _ := ex.Open(ctx)

	if src.open != 1 || src.maxOpen != 1 {
		t.Errorf("expected one open stream at a time, open=%d max=%d", src.open, src.maxOpen)
	}

	// Closing the superseded handle must not release twice or touch the new one.
	first.Close()
	if src.open != 1 {
		t.Errorf("expected second stream to stay open, open=%d", src.open)
	}

	second.Close()
	if src.open != 0 {
		t.Errorf("expected all streams closed, open=%d", src.open)
	}
}

func TestExclusive_Close(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{}
	ex := NewExclusive(src)

	stream, _ := ex.Open(ctx)
	if err := ex.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if src.open != 0 {
		t.Errorf("expected stream released, open=%d", src.open)
	}
	stream.Close()
	if src.open != 0 {
		t.Errorf("expected no double release, open=%d", src.open)
	}
}

func TestFromConfig(t *testing.T) {
	if _, err := FromConfig(&config.CameraConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}

	ex, err := FromConfig(&config.CameraConfig{URL: "http://camera.local/snapshot.jpg", Dir: "/ignored"})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if _, ok := ex.source.(*HTTPSource); !ok {
		t.Errorf("expected HTTP source to take precedence, got %T", ex.source)
	}

	ex, err = FromConfig(&config.CameraConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if _, ok := ex.source.(*DirSource); !ok {
		t.Errorf("expected dir source, got %T", ex.source)
	}
}
