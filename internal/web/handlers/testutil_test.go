package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/classtrack/attendance/internal/attendance"
	"github.com/classtrack/attendance/internal/matcher"
	"github.com/classtrack/attendance/internal/store"
	"github.com/classtrack/attendance/internal/store/mock"
)

// fakeDetector returns canned embeddings or a canned error.
type fakeDetector struct {
	embeddings [][]float32
	err        error
}

func (f *fakeDetector) Detect(ctx context.Context, photo []byte) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.embeddings, nil
}

// fixture bundles a service over mock stores for handler tests.
type fixture struct {
	store    *store.Store
	service  *attendance.Service
	reporter *attendance.Reporter
	detector *fakeDetector
}

// newFixture seeds two active students in class 7.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := mock.NewStore(2)
	ledger := attendance.NewLedger(st.Records)
	processor := attendance.NewProcessor(st.Templates, st.Sessions, ledger, matcher.Config{Tolerance: 0.6, AmbiguityMargin: 0.05})
	detector := &fakeDetector{}
	index := store.NewTemplateIndex()
	service := attendance.NewService(st, processor, ledger, detector, index, 2, 0.1)
	reporter := attendance.NewReporter(st.Students, st.Records)

	for _, s := range []store.Student{
		{ID: "STU001", FullName: "Asha Verma", ClassID: 7, RollNumber: 1, Active: true},
		{ID: "STU002", FullName: "Rohan Gupta", ClassID: 7, RollNumber: 2, Active: true},
	} {
		if err := st.Students.Create(context.Background(), &s); err != nil {
			t.Fatal(err)
		}
	}

	return &fixture{store: st, service: service, reporter: reporter, detector: detector}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest builds a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// photoRequest builds a multipart request with a photo part and form fields
func photoRequest(t *testing.T, path string, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	part, err := writer.CreateFormFile("photo", "class.jpg")
	if err != nil {
		t.Fatalf("failed to create photo part: %v", err)
	}
	if _, err := io.WriteString(part, "fake-jpeg-bytes"); err != nil {
		t.Fatalf("failed to write photo part: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
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
