package capture

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/fingerprint"
)

var frameExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
}

// DirSource reads frames a camera drops into a directory. Each read returns the
// newest image written since the previous read.
type DirSource struct {
	dir string
}

// NewDirSource creates a source over dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Open checks the directory exists and starts a stream. Frames already present
// when the stream opens are not returned.
func (s *DirSource) Open(ctx context.Context) (Stream, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("open frame directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open frame directory: %s is not a directory", s.dir)
	}

	stream := &dirStream{dir: s.dir}
	if path, mod, err := stream.newest(); err == nil && path != "" {
		stream.lastPath, stream.lastMod = path, mod
	}
	return stream, nil
}

type dirStream struct {
	dir string

	mu       sync.Mutex
	closed   bool
	lastPath string
	lastMod  time.Time
}

func (s *dirStream) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	path, mod, err := s.newest()
	if err != nil {
		return nil, err
	}
	if path == "" || (path == s.lastPath && !mod.After(s.lastMod)) || mod.Before(s.lastMod) {
		return nil, ErrNoFrame
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", path, err)
	}
	img, err := fingerprint.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", filepath.Base(path), err)
	}

	s.lastPath, s.lastMod = path, mod
	return img, nil
}

// newest returns the most recently modified frame file, or "" if there is none.
func (s *dirStream) newest() (string, time.Time, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("list frame directory: %w", err)
	}

	var path string
	var mod time.Time
	for _, e := range entries {
		if e.IsDir() || !frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if path == "" || info.ModTime().After(mod) {
			path, mod = filepath.Join(s.dir, e.Name()), info.ModTime()
		}
	}
	return path, mod, nil
}

func (s *dirStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
