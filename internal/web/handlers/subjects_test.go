package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
)

func TestSubjectsHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	handler := NewSubjectsHandler(env.registry, env.coord)

	req := multipartRequest(t, http.MethodPost, "/api/v1/subjects",
		map[string]string{"id": "S1", "name": "Alice", "class": "4.A"}, testPNG(t))
	recorder := httptest.NewRecorder()

	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)
	var resp RegistrationResponse
	parseJSONResponse(t, recorder, &resp)

	if resp.Subject.ID != "S1" || resp.Subject.Name != "Alice" || resp.Subject.Class != "4.A" {
		t.Errorf("unexpected subject %+v", resp.Subject)
	}
	if !resp.Subject.HasImage {
		t.Error("expected stored face image")
	}
	if resp.Region.Width != 48 {
		t.Errorf("expected detected region width 48, got %d", resp.Region.Width)
	}

	stored, err := env.store.GetSubject(context.Background(), "S1")
	if err != nil || stored == nil {
		t.Fatalf("expected subject in store, got %v (%v)", stored, err)
	}
	if _, err := os.Stat(stored.ImagePath); err != nil {
		t.Errorf("expected face crop on disk: %v", err)
	}
}

func TestSubjectsHandler_Create_Errors(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		image    bool
		regions  []facedetect.Region
		status   int
		errorMsg string
	}{
		{
			name:     "missing id",
			fields:   map[string]string{"name": "Alice"},
			image:    true,
			status:   http.StatusBadRequest,
			errorMsg: "id is required",
		},
		{
			name:     "missing image",
			fields:   map[string]string{"id": "S1", "name": "Alice"},
			status:   http.StatusBadRequest,
			errorMsg: "image is required",
		},
		{
			name:    "no face",
			fields:  map[string]string{"id": "S1", "name": "Alice"},
			image:   true,
			regions: []facedetect.Region{},
			status:  http.StatusUnprocessableEntity,
		},
		{
			name:    "two faces",
			fields:  map[string]string{"id": "S1", "name": "Alice"},
			image:   true,
			regions: []facedetect.Region{{X: 0, Y: 0, Width: 30, Height: 30}, {X: 32, Y: 32, Width: 30, Height: 30}},
			status:  http.StatusUnprocessableEntity,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tc.regions != nil {
				env.locator.regions = tc.regions
			}
			var img []byte
			if tc.image {
				img = testPNG(t)
			}

			recorder := httptest.NewRecorder()
			NewSubjectsHandler(env.registry, env.coord).Create(recorder,
				multipartRequest(t, http.MethodPost, "/api/v1/subjects", tc.fields, img))

			assertStatusCode(t, recorder, tc.status)
			if tc.errorMsg != "" {
				assertJSONError(t, recorder, tc.errorMsg)
			}
			if env.registry.Current().Len() != 0 {
				t.Error("gallery must stay empty")
			}
		})
	}
}

func TestSubjectsHandler_Create_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "S1", "Alice")

	recorder := httptest.NewRecorder()
	NewSubjectsHandler(env.registry, env.coord).Create(recorder,
		multipartRequest(t, http.MethodPost, "/api/v1/subjects",
			map[string]string{"id": "S1", "name": "Bob"}, testPNG(t)))

	assertStatusCode(t, recorder, http.StatusConflict)
	if s, _ := env.registry.Current().Get("S1"); s.Name != "Alice" {
		t.Errorf("duplicate must not overwrite, got name %s", s.Name)
	}
}

func TestSubjectsHandler_ListAndSearch(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "S1", "Zoë Nováková")
	env.register(t, "S2", "Bob")
	handler := NewSubjectsHandler(env.registry, env.coord)

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/subjects", nil))
	var all []SubjectResponse
	parseJSONResponse(t, recorder, &all)
	if len(all) != 2 || all[0].ID != "S1" {
		t.Errorf("expected 2 subjects ordered by ID, got %+v", all)
	}

	recorder = httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/subjects?q=novakova", nil))
	var found []SubjectResponse
	parseJSONResponse(t, recorder, &found)
	if len(found) != 1 || found[0].ID != "S1" {
		t.Errorf("expected diacritic-insensitive match on S1, got %+v", found)
	}
}

func TestSubjectsHandler_Get(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "S1", "Alice")
	handler := NewSubjectsHandler(env.registry, env.coord)

	recorder := httptest.NewRecorder()
	handler.Get(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/subjects/S1", nil),
		map[string]string{"id": "S1"}))
	assertStatusCode(t, recorder, http.StatusOK)

	recorder = httptest.NewRecorder()
	handler.Get(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/subjects/S9", nil),
		map[string]string{"id": "S9"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "subject not found")
}

func TestSubjectsHandler_Update(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "S1", "Alice")
	handler := NewSubjectsHandler(env.registry, env.coord)

	req := jsonRequest(t, http.MethodPut, "/api/v1/subjects/S1", map[string]string{"name": "Alice Smith"})
	recorder := httptest.NewRecorder()
	handler.Update(recorder, requestWithChiParams(req, map[string]string{"id": "S1"}))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp SubjectResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Name != "Alice Smith" {
		t.Errorf("expected updated name, got %s", resp.Name)
	}
	if resp.Class != "4.A" {
		t.Errorf("class must be kept when omitted, got '%s'", resp.Class)
	}
}

func TestSubjectsHandler_Update_Invalid(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "S1", "Alice")
	handler := NewSubjectsHandler(env.registry, env.coord)

	req := jsonRequest(t, http.MethodPut, "/api/v1/subjects/S1", map[string]string{"name": ""})
	recorder := httptest.NewRecorder()
	handler.Update(recorder, requestWithChiParams(req, map[string]string{"id": "S1"}))
	assertStatusCode(t, recorder, http.StatusBadRequest)

	req = jsonRequest(t, http.MethodPut, "/api/v1/subjects/S9", map[string]string{"name": "Bob"})
	recorder = httptest.NewRecorder()
	handler.Update(recorder, requestWithChiParams(req, map[string]string{"id": "S9"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestSubjectsHandler_Delete(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "S1", "Alice")
	may1 := civil.Date{Year: 2024, Month: 5, Day: 1}
	env.coord.MarkManual(context.Background(), "S1", may1)
	handler := NewSubjectsHandler(env.registry, env.coord)

	recorder := httptest.NewRecorder()
	handler.Delete(recorder, requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/api/v1/subjects/S1", nil),
		map[string]string{"id": "S1"}))
	assertStatusCode(t, recorder, http.StatusNoContent)

	records, err := env.coord.Report(context.Background(), may1, may1)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected attendance to be deleted with the subject, got %d rows", len(records))
	}

	recorder = httptest.NewRecorder()
	handler.Delete(recorder, requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/api/v1/subjects/S1", nil),
		map[string]string{"id": "S1"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestSubjectsHandler_Reload(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "S1", "Alice")

	recorder := httptest.NewRecorder()
	NewSubjectsHandler(env.registry, env.coord).Reload(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/gallery/reload", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp map[string]int
	parseJSONResponse(t, recorder, &resp)
	if resp["subjects"] != 1 {
		t.Errorf("expected 1 subject, got %d", resp["subjects"])
	}
}
