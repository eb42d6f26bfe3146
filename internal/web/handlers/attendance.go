package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/logger"
	"go.uber.org/zap"
)

// AttendanceHandler handles attendance attempts and the attendance log.
type AttendanceHandler struct {
	coord  *attendance.Coordinator
	camera capture.Source
}

// NewAttendanceHandler creates a new attendance handler. camera may be nil.
func NewAttendanceHandler(coord *attendance.Coordinator, camera capture.Source) *AttendanceHandler {
	return &AttendanceHandler{coord: coord, camera: camera}
}

// outcomeStatus maps an outcome to an HTTP status. Rejections are normal results, only
// infrastructure failures are reported as errors.
func outcomeStatus(kind attendance.OutcomeKind) int {
	switch kind {
	case attendance.OutcomeMarked:
		return http.StatusCreated
	case attendance.OutcomeSubjectNotFound:
		return http.StatusNotFound
	case attendance.OutcomeStoreFailure, attendance.OutcomeDetectorUnavailable:
		return http.StatusInternalServerError
	case attendance.OutcomeCaptureFailed:
		return http.StatusBadGateway
	case attendance.OutcomeCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}

// Face runs face attendance on an uploaded image (multipart: image, optional date)
func (h *AttendanceHandler) Face(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	date, err := parseDate(r.FormValue("date"), h.coord.Today())
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be a YYYY-MM-DD date")
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

	o := h.coord.AttemptFaceAttendance(r.Context(), img, date)
	respondJSON(w, outcomeStatus(o.Kind), o)
}

// Capture grabs a frame from the configured camera and runs face attendance on it
func (h *AttendanceHandler) Capture(w http.ResponseWriter, r *http.Request) {
	if h.camera == nil {
		respondError(w, http.StatusServiceUnavailable, capture.ErrNotConfigured.Error())
		return
	}

	date, err := parseDate(r.URL.Query().Get("date"), h.coord.Today())
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be a YYYY-MM-DD date")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.CaptureTimeout)
	defer cancel()

	stream, err := h.camera.Open(ctx)
	if err != nil {
		logger.Warn("camera open failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "failed to open camera")
		return
	}
	defer stream.Close()

	o := h.coord.AttemptFromStream(ctx, stream, date)
	respondJSON(w, outcomeStatus(o.Kind), o)
}

// ManualRequest represents the request body for a manual mark
type ManualRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// Manual marks a subject present without face matching
func (h *AttendanceHandler) Manual(w http.ResponseWriter, r *http.Request) {
	var req ManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if msg := validateStruct(req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	date, err := parseDate(req.Date, h.coord.Today())
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be a YYYY-MM-DD date")
		return
	}

	o := h.coord.MarkManual(r.Context(), req.SubjectID, date)
	respondJSON(w, outcomeStatus(o.Kind), o)
}

// Log returns the most recent marks, newest first
func (h *AttendanceHandler) Log(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = constants.DefaultHandlerPageSize
	}
	respondJSON(w, http.StatusOK, h.coord.Log().Recent(limit))
}

// Events streams attempt outcomes over SSE until the client disconnects
func (h *AttendanceHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamLogEvents(w, r, h.coord.Log())
}
