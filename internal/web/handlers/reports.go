package handlers

import (
	"errors"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/logger"
	"github.com/kozaktomas/face-attendance/internal/report"
	"go.uber.org/zap"
)

// ReportsHandler serves attendance reports.
type ReportsHandler struct {
	coord *attendance.Coordinator
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(coord *attendance.Coordinator) *ReportsHandler {
	return &ReportsHandler{coord: coord}
}

// RecordResponse is one attendance row in API responses
type RecordResponse struct {
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	Date        string `json:"date"`
	TimeIn      string `json:"time_in"`
}

// ReportResponse is the JSON form of a report
type ReportResponse struct {
	Start   string              `json:"start"`
	End     string              `json:"end"`
	Records []RecordResponse    `json:"records"`
	Days    []report.DaySummary `json:"days"`
}

// Get returns records in [start, end] as JSON or CSV (format=csv). Both dates default to today.
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	today := h.coord.Today()

	start, err := parseDate(query.Get("start"), today)
	if err != nil {
		respondError(w, http.StatusBadRequest, "start must be a YYYY-MM-DD date")
		return
	}
	end, err := parseDate(query.Get("end"), start)
	if err != nil {
		respondError(w, http.StatusBadRequest, "end must be a YYYY-MM-DD date")
		return
	}

	format := query.Get("format")
	if format != "" && format != "json" && format != "csv" {
		respondError(w, http.StatusBadRequest, "format must be json or csv")
		return
	}

	records, err := h.coord.Report(r.Context(), start, end)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidRange) {
			respondError(w, http.StatusBadRequest, "start must not be after end")
			return
		}
		logger.Error("report query failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to query attendance")
		return
	}

	if format == "csv" {
		writeCSVReport(w, records, start, end)
		return
	}

	response := ReportResponse{
		Start:   start.String(),
		End:     end.String(),
		Records: make([]RecordResponse, len(records)),
		Days:    report.Summarize(records),
	}
	for i, rec := range records {
		response.Records[i] = RecordResponse{
			SubjectID:   rec.SubjectID,
			SubjectName: rec.SubjectName,
			Date:        rec.Date.String(),
			TimeIn:      rec.TimeIn,
		}
	}
	respondJSON(w, http.StatusOK, response)
}

func writeCSVReport(w http.ResponseWriter, records []database.AttendanceRecord, start, end civil.Date) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(start, end)+`"`)
	w.WriteHeader(http.StatusOK)
	if err := report.WriteCSV(w, records); err != nil {
		logger.Warn("csv export interrupted", zap.Error(err))
	}
}
