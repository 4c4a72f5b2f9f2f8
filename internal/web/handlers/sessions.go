package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/classtrack/attendance/internal/store"
)

// SessionsHandler exposes the capture session audit trail.
type SessionsHandler struct {
	store *store.Store
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(st *store.Store) *SessionsHandler {
	return &SessionsHandler{store: st}
}

const defaultSessionLimit = 20

// List returns the most recent sessions of a class.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	classID, ok := parseClassID(w, r.URL.Query().Get("class_id"))
	if !ok {
		return
	}

	limit := defaultSessionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions.ListByClass(r.Context(), classID, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sessions)
}

// Get returns one session by id.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, session)
}
