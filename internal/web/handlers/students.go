package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classtrack/attendance/internal/attendance"
	"github.com/classtrack/attendance/internal/store"
)

// StudentsHandler handles roster and enrollment endpoints.
type StudentsHandler struct {
	store   *store.Store
	service *attendance.Service
}

// NewStudentsHandler creates a new students handler.
func NewStudentsHandler(st *store.Store, service *attendance.Service) *StudentsHandler {
	return &StudentsHandler{
		store:   st,
		service: service,
	}
}

type createStudentRequest struct {
	StudentID  string `json:"student_id"`
	FullName   string `json:"full_name"`
	ClassID    int64  `json:"class_id"`
	RollNumber int    `json:"roll_number"`
}

// Create registers a new student.
func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	switch {
	case req.StudentID == "":
		respondError(w, http.StatusBadRequest, "student_id is required")
		return
	case req.FullName == "":
		respondError(w, http.StatusBadRequest, "full_name is required")
		return
	case req.ClassID <= 0:
		respondError(w, http.StatusBadRequest, "class_id must be a positive integer")
		return
	case req.RollNumber <= 0:
		respondError(w, http.StatusBadRequest, "roll_number must be a positive integer")
		return
	}

	student := &store.Student{
		ID:         req.StudentID,
		FullName:   req.FullName,
		ClassID:    req.ClassID,
		RollNumber: req.RollNumber,
		Active:     true,
	}
	if err := h.store.Students.Create(r.Context(), student); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, student)
}

// List returns the students of a class. Deactivated students are included
// only when all=true.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	classID, ok := parseClassID(w, r.URL.Query().Get("class_id"))
	if !ok {
		return
	}
	activeOnly := r.URL.Query().Get("all") != "true"

	students, err := h.store.Students.ListByClass(r.Context(), classID, activeOnly)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, students)
}

// Get returns one student with their enrolled template count.
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	student, err := h.store.Students.Get(r.Context(), studentID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	templates, err := h.store.Templates.ByStudent(r.Context(), studentID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"student":        student,
		"face_templates": len(templates),
	})
}

// Search finds students by name, ignoring case and diacritics.
func (h *StudentsHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "q is required")
		return
	}

	students, err := h.store.Students.Search(r.Context(), query)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, students)
}

// Deactivate retires a student and drops their face templates so they can
// no longer be matched or marked.
func (h *StudentsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	if err := h.store.Students.Deactivate(r.Context(), studentID); err != nil {
		respondDomainError(w, err)
		return
	}
	if err := h.service.RemoveFace(r.Context(), studentID); err != nil {
		log.Printf("removing templates for deactivated student %s: %v", sanitizeForLog(studentID), err)
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// EnrollFace registers a face template from a single-face photo.
func (h *StudentsHandler) EnrollFace(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	photo, err := readPhoto(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tpl, err := h.service.EnrollFace(r.Context(), studentID, photo)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"template_id": tpl.ID,
		"student_id":  tpl.StudentID,
		"dim":         tpl.Dim,
	})
}

// RemoveFace deletes all templates of a student.
func (h *StudentsHandler) RemoveFace(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")

	if err := h.service.RemoveFace(r.Context(), studentID); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
