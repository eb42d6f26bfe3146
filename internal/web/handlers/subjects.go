package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/logger"
	"go.uber.org/zap"
)

// SubjectResponse represents a registered subject in API responses
type SubjectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Class     string `json:"class,omitempty"`
	Signature string `json:"signature"`
	HasImage  bool   `json:"has_image"`
	CreatedAt string `json:"created_at,omitempty"`
}

func subjectToResponse(s database.Subject) SubjectResponse {
	resp := SubjectResponse{
		ID:        s.ID,
		Name:      s.Name,
		Class:     s.Class,
		Signature: s.Signature.String(),
		HasImage:  s.ImagePath != "",
	}
	if !s.CreatedAt.IsZero() {
		resp.CreatedAt = s.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

// RegistrationResponse is returned after a successful registration
type RegistrationResponse struct {
	Subject    SubjectResponse     `json:"subject"`
	Region     facedetect.Region   `json:"region"`
	Lookalikes []gallery.Lookalike `json:"lookalikes"`
}

// SubjectsHandler handles subject management endpoints.
type SubjectsHandler struct {
	registry   *gallery.Registry
	maintainer SubjectMaintainer
}

// SubjectMaintainer changes the gallery together with the attendance state it affects.
type SubjectMaintainer interface {
	DeleteSubject(ctx context.Context, id string) error
	ReloadGallery(ctx context.Context) error
}

// NewSubjectsHandler creates a new subjects handler.
func NewSubjectsHandler(registry *gallery.Registry, maintainer SubjectMaintainer) *SubjectsHandler {
	return &SubjectsHandler{registry: registry, maintainer: maintainer}
}

// List returns all subjects, or those matching the q query parameter
func (h *SubjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	subjects := h.registry.Current().Search(r.URL.Query().Get("q"))

	response := make([]SubjectResponse, len(subjects))
	for i := range subjects {
		response[i] = subjectToResponse(subjects[i])
	}
	respondJSON(w, http.StatusOK, response)
}

// Get returns a single subject by ID
func (h *SubjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	subject, ok := h.registry.Current().Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "subject not found")
		return
	}
	respondJSON(w, http.StatusOK, subjectToResponse(subject))
}

// CreateSubjectRequest holds the form fields of a registration
type CreateSubjectRequest struct {
	ID    string `json:"id" validate:"required,subject_id"`
	Name  string `json:"name" validate:"required,max=200"`
	Class string `json:"class" validate:"max=100"`
}

// Create registers a subject from a multipart form with id, name, class and image
func (h *SubjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	req := CreateSubjectRequest{
		ID:    strings.TrimSpace(r.FormValue("id")),
		Name:  strings.TrimSpace(r.FormValue("name")),
		Class: strings.TrimSpace(r.FormValue("class")),
	}
	if msg := validateStruct(req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	img, err := readFormImage(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to decode image")
		return
	}
	if img == nil {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}

	reg, err := h.registry.Register(r.Context(), database.Subject{ID: req.ID, Name: req.Name, Class: req.Class}, img)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error("registration failed", zap.String("subject_id", sanitizeForLog(req.ID)), zap.Error(err))
			respondError(w, status, "failed to register subject")
			return
		}
		respondError(w, status, err.Error())
		return
	}

	lookalikes := reg.Lookalikes
	if lookalikes == nil {
		lookalikes = []gallery.Lookalike{}
	}
	respondJSON(w, http.StatusCreated, RegistrationResponse{
		Subject:    subjectToResponse(reg.Subject),
		Region:     reg.Region,
		Lookalikes: lookalikes,
	})
}

// UpdateSubjectRequest represents the request body for updating a subject
type UpdateSubjectRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitnil,min=1,max=200"`
	Class *string `json:"class,omitempty" validate:"omitnil,max=100"`
}

// Update changes name and class. A multipart request may carry a new image.
func (h *SubjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, ok := h.registry.Current().Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "subject not found")
		return
	}

	var req UpdateSubjectRequest
	var img image.Image
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
			respondError(w, http.StatusBadRequest, "failed to parse multipart form")
			return
		}
		if values, ok := r.MultipartForm.Value["name"]; ok && len(values) > 0 {
			req.Name = &values[0]
		}
		if values, ok := r.MultipartForm.Value["class"]; ok && len(values) > 0 {
			req.Class = &values[0]
		}
		var err error
		if img, err = readFormImage(r, "image"); err != nil {
			respondError(w, http.StatusBadRequest, "failed to decode image")
			return
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if msg := validateStruct(req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	name, class := current.Name, current.Class
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	if req.Class != nil {
		class = strings.TrimSpace(*req.Class)
	}

	updated, err := h.registry.Update(r.Context(), id, name, class, img)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error("subject update failed", zap.String("subject_id", sanitizeForLog(id)), zap.Error(err))
			respondError(w, status, "failed to update subject")
			return
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, subjectToResponse(*updated))
}

// Delete removes a subject and its attendance
func (h *SubjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.maintainer.DeleteSubject(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "subject not found")
			return
		}
		logger.Error("subject delete failed", zap.String("subject_id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete subject")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reload rebuilds the gallery snapshot from the store
func (h *SubjectsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.maintainer.ReloadGallery(r.Context()); err != nil {
		logger.Error("gallery reload failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to reload gallery")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"subjects": h.registry.Current().Len()})
}
