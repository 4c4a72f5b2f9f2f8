// Package store defines the persisted data model and storage contracts for
// the attendance service. Concrete backends live in the postgres, legacy and
// mock subpackages.
package store

import (
	"time"
)

// Date is a calendar day in ISO format (2006-01-02). Attendance records are
// keyed by (student, Date) and sessions are grouped by it.
type Date string

const dateLayout = "2006-01-02"

// DateOf truncates a timestamp to its calendar day in the local timezone.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// Today returns the current calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate validates an ISO formatted day string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", err
	}
	return DateOf(t), nil
}

// Time returns the day as a midnight timestamp, for storage in DATE columns.
func (d Date) Time() time.Time {
	t, _ := time.Parse(dateLayout, string(d))
	return t
}

func (d Date) String() string {
	return string(d)
}

// Method identifies how an attendance mark was produced. The three methods
// form a closed set ordered by authority: manual marks outrank QR scans,
// which outrank face recognition.
type Method string

const (
	MethodFace   Method = "face_recognition"
	MethodQR     Method = "qr_code"
	MethodManual Method = "manual"
)

// Rank returns the precedence of the method. Higher outranks lower.
func (m Method) Rank() int {
	switch m {
	case MethodManual:
		return 2
	case MethodQR:
		return 1
	case MethodFace:
		return 0
	}
	return -1
}

// Valid reports whether m is one of the three known methods.
func (m Method) Valid() bool {
	return m.Rank() >= 0
}

// Status is the attendance state recorded for a student on a day.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// Student is an enrolled pupil. Face templates are owned exclusively by the
// student and live in the template store.
type Student struct {
	ID         string // external identifier, unique and stable (e.g. "STU2024001")
	FullName   string
	ClassID    int64
	RollNumber int // unique within the class
	Active     bool
	CreatedAt  time.Time
}

// Template is a stored reference face embedding for a student.
type Template struct {
	ID        int64
	StudentID string
	Embedding []float32
	Dim       int
	CreatedAt time.Time
}

// SessionStatus is the lifecycle state of a capture session.
// pending and processing are never re-entered; completed and failed are
// terminal. A retry always creates a new session row.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// Session is one group-photo capture event. Sessions are immutable audit
// records: they are never deleted, only superseded by newer sessions for the
// same class and date.
type Session struct {
	ID         string // uuid
	ClassID    int64
	TeacherID  string
	Date       Date
	PhotoRef   string
	Status     SessionStatus
	Detected   int // faces found in the photo, frozen on completion
	Recognized int // faces resolved to students, frozen on completion
	CreatedAt  time.Time
	FinishedAt *time.Time // set on completed/failed
}

// Record is the single authoritative attendance row for a (student, day)
// pair. At most one record exists per key; conflicting marks mutate it in
// place under the ledger's precedence policy.
type Record struct {
	StudentID  string
	Date       Date
	Status     Status
	Method     Method
	Confidence float64 // meaningful only for face_recognition, range [0,1]
	Verified   bool
	Notes      string
	SessionID  string // originating session, empty for qr/manual marks
	MarkedAt   time.Time
}
