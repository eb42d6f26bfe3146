package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
)

// HTTPSource fetches still frames from a network camera's snapshot URL.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a snapshot source. A nil client uses one with constants.CaptureTimeout.
func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: constants.CaptureTimeout}
	}
	return &HTTPSource{url: url, client: client}
}

// Open returns a stream; the camera is contacted on the first read.
func (s *HTTPSource) Open(ctx context.Context) (Stream, error) {
	return &httpStream{source: s}, nil
}

type httpStream struct {
	source *HTTPSource

	mu     sync.Mutex
	closed bool
}

func (s *httpStream) Read(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.source.url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := s.source.client.Do(req) //nolint:gosec // URL comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("could not fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, ErrNoFrame
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot request failed with status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("could not read snapshot: %w", err)
	}
	return fingerprint.Decode(data)
}

func (s *httpStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 1024))
	if err != nil {
		return "(could not read error body)"
	}
	return string(body)
}
