package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database/memory"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// fakeLocator returns fixed regions regardless of the frame
type fakeLocator struct {
	regions []facedetect.Region
}

func (f *fakeLocator) Locate(image.Image) []facedetect.Region {
	return f.regions
}

// testEnv bundles the pipeline behind the handlers
type testEnv struct {
	store    *memory.Store
	locator  *fakeLocator
	registry *gallery.Registry
	coord    *attendance.Coordinator
}

// newTestEnv wires an in-memory pipeline whose clock reads 2024-05-01 08:15:30.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	locator := &fakeLocator{regions: []facedetect.Region{{X: 8, Y: 8, Width: 48, Height: 48}}}
	registry, err := gallery.NewRegistry(context.Background(), store, locator, gallery.Options{FacesDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}

	clock := func() time.Time { return time.Date(2024, 5, 1, 8, 15, 30, 0, time.Local) }
	coord := attendance.NewCoordinator(registry, locator, ledger.New(store, nil), attendance.NewLog(10),
		attendance.Options{Threshold: 10, Now: clock})

	return &testEnv{store: store, locator: locator, registry: registry, coord: coord}
}

// register adds a subject through the registry using testFaceImage
func (e *testEnv) register(t *testing.T, id, name string) {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, "/api/v1/subjects",
		map[string]string{"id": id, "name": name, "class": "4.A"}, testPNG(t))
	recorder := httptest.NewRecorder()
	NewSubjectsHandler(e.registry, e.coord).Create(recorder, req)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("failed to register %s: %d %s", id, recorder.Code, recorder.Body.String())
	}
}

// testFaceImage draws a diagonal gradient
func testFaceImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			v := uint8(x*2 + y)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// testPNG encodes testFaceImage
func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testFaceImage()); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// multipartRequest builds a multipart form request. image is omitted when nil.
func multipartRequest(t *testing.T, method, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", "face.png")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(image)
	}
	mw.Close()

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// jsonRequest builds a request with a JSON body
func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
