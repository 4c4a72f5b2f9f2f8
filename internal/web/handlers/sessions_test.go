package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/classtrack/attendance/internal/store"
)

func seedSession(t *testing.T, st *store.Store, classID int64) *store.Session {
	t.Helper()
	session := &store.Session{
		ID:        uuid.NewString(),
		ClassID:   classID,
		TeacherID: "TCH001",
		Date:      store.Today(),
		PhotoRef:  "ref",
		Status:    store.SessionCompleted,
	}
	if err := st.Sessions.Create(context.Background(), session); err != nil {
		t.Fatal(err)
	}
	return session
}

func TestSessionsHandler_List(t *testing.T) {
	f := newFixture(t)
	handler := NewSessionsHandler(f.store)

	seedSession(t, f.store, 7)
	seedSession(t, f.store, 7)
	seedSession(t, f.store, 9)

	req := httptest.NewRequest("GET", "/api/v1/sessions?class_id=7", nil)
	recorder := httptest.NewRecorder()

	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var sessions []store.Session
	parseJSONResponse(t, recorder, &sessions)
	if len(sessions) != 2 {
		t.Errorf("expected 2 sessions for class 7, got %d", len(sessions))
	}
}

func TestSessionsHandler_List_Limit(t *testing.T) {
	f := newFixture(t)
	handler := NewSessionsHandler(f.store)

	for i := 0; i < 5; i++ {
		seedSession(t, f.store, 7)
	}

	req := httptest.NewRequest("GET", "/api/v1/sessions?class_id=7&limit=3", nil)
	recorder := httptest.NewRecorder()

	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var sessions []store.Session
	parseJSONResponse(t, recorder, &sessions)
	if len(sessions) != 3 {
		t.Errorf("expected 3 sessions, got %d", len(sessions))
	}
}

func TestSessionsHandler_Get(t *testing.T) {
	f := newFixture(t)
	handler := NewSessionsHandler(f.store)

	session := seedSession(t, f.store, 7)

	req := requestWithChiParams(
		httptest.NewRequest("GET", "/api/v1/sessions/"+session.ID, nil),
		map[string]string{"id": session.ID},
	)
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var got store.Session
	parseJSONResponse(t, recorder, &got)
	if got.ID != session.ID || got.Status != store.SessionCompleted {
		t.Errorf("unexpected session %+v", got)
	}
}

func TestSessionsHandler_Get_NotFound(t *testing.T) {
	f := newFixture(t)
	handler := NewSessionsHandler(f.store)

	req := requestWithChiParams(
		httptest.NewRequest("GET", "/api/v1/sessions/"+uuid.NewString(), nil),
		map[string]string{"id": uuid.NewString()},
	)
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}
