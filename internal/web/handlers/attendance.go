package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/classtrack/attendance/internal/attendance"
	"github.com/classtrack/attendance/internal/store"
)

// AttendanceHandler handles the capture and reporting endpoints.
type AttendanceHandler struct {
	service  *attendance.Service
	reporter *attendance.Reporter
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(service *attendance.Service, reporter *attendance.Reporter) *AttendanceHandler {
	return &AttendanceHandler{
		service:  service,
		reporter: reporter,
	}
}

// SubmitPhoto accepts a multipart group photo and runs the full recognition
// pipeline. The response carries the session outcome including per-student
// marks; a detector outage still returns the failed session id.
func (h *AttendanceHandler) SubmitPhoto(w http.ResponseWriter, r *http.Request) {
	classID, ok := parseClassID(w, r.FormValue("class_id"))
	if !ok {
		return
	}
	teacherID := r.FormValue("teacher_id")
	if teacherID == "" {
		respondError(w, http.StatusBadRequest, "teacher_id is required")
		return
	}

	photo, err := readPhoto(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.SubmitFacePhoto(r.Context(), classID, teacherID, photo)
	if err != nil {
		log.Printf("photo session for class %d failed: %v", classID, err)
		if result != nil {
			respondJSON(w, http.StatusBadGateway, result)
			return
		}
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type qrRequest struct {
	Payload   string `json:"payload"`
	ClassID   int64  `json:"class_id"`
	TeacherID string `json:"teacher_id"`
}

// SubmitQR marks a student present from a scanned QR payload.
func (h *AttendanceHandler) SubmitQR(w http.ResponseWriter, r *http.Request) {
	var req qrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	outcome, err := h.service.SubmitQRScan(r.Context(), req.Payload, req.ClassID, req.TeacherID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

type manualRequest struct {
	StudentID string `json:"student_id"`
	ClassID   int64  `json:"class_id"`
	TeacherID string `json:"teacher_id"`
	Status    string `json:"status"`
	Notes     string `json:"notes"`
}

// SubmitManual applies a teacher's explicit present or absent mark.
func (h *AttendanceHandler) SubmitManual(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	status := store.Status(req.Status)
	if !status.Valid() {
		respondError(w, http.StatusBadRequest, "status must be present or absent")
		return
	}

	outcome, err := h.service.SubmitManual(r.Context(), req.StudentID, req.ClassID, req.TeacherID, status, req.Notes)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

// Rollup returns the daily class roster with derived absences.
func (h *AttendanceHandler) Rollup(w http.ResponseWriter, r *http.Request) {
	classID, ok := parseClassID(w, r.URL.Query().Get("class_id"))
	if !ok {
		return
	}

	date, ok := parseDateParam(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	rollup, err := h.reporter.Daily(r.Context(), classID, date)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rollup)
}

// Summary returns per-student attendance percentages over a date range.
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	classID, ok := parseClassID(w, r.URL.Query().Get("class_id"))
	if !ok {
		return
	}

	from, ok := parseDateParam(w, r.URL.Query().Get("from"))
	if !ok {
		return
	}
	to, ok := parseDateParam(w, r.URL.Query().Get("to"))
	if !ok {
		return
	}

	rows, err := h.reporter.Summary(r.Context(), classID, from, to)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"class_id": classID,
		"from":     from,
		"to":       to,
		"rows":     rows,
	})
}

func parseClassID(w http.ResponseWriter, raw string) (int64, bool) {
	classID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || classID <= 0 {
		respondError(w, http.StatusBadRequest, "class_id must be a positive integer")
		return 0, false
	}
	return classID, true
}

func parseDateParam(w http.ResponseWriter, raw string) (store.Date, bool) {
	if raw == "" {
		return store.Today(), true
	}
	date, err := store.ParseDate(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be formatted YYYY-MM-DD")
		return "", false
	}
	return date, true
}
