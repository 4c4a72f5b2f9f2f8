package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDimensionMismatch is returned by template stores when a registered
// embedding does not match the store's fixed width.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrTerminalSession is returned when transitioning a session that already
// reached completed or failed; those states are never left.
var ErrTerminalSession = errors.New("session already in a terminal state")

// StudentStore persists the student roster.
type StudentStore interface {
	Create(ctx context.Context, s *Student) error
	// Get returns the student by external ID. Returns ErrNotFound if missing.
	Get(ctx context.Context, studentID string) (*Student, error)
	// ListByClass returns students of a class ordered by roll number.
	// When activeOnly is set, deactivated students are skipped.
	ListByClass(ctx context.Context, classID int64, activeOnly bool) ([]Student, error)
	// Search finds students whose name matches the query, ignoring case and
	// diacritics.
	Search(ctx context.Context, query string) ([]Student, error)
	// Deactivate clears the active flag. The caller is responsible for
	// removing the student's face templates.
	Deactivate(ctx context.Context, studentID string) error
}

// TemplateStore persists face embedding templates. All templates share one
// fixed embedding width; registering a mismatched width fails.
type TemplateStore interface {
	// Register appends a template to the student's set.
	Register(ctx context.Context, studentID string, embedding []float32) (*Template, error)
	// All returns every stored template. Callers load the snapshot once at
	// the start of a matching run; concurrent writes are not part of a
	// consistent session.
	All(ctx context.Context) ([]Template, error)
	// ByStudent returns the templates of one student.
	ByStudent(ctx context.Context, studentID string) ([]Template, error)
	// Remove deletes all templates for a student.
	Remove(ctx context.Context, studentID string) error
	Count(ctx context.Context) (int64, error)
}

// SessionStore persists capture sessions.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// Transition moves the session to a new lifecycle status and, for
	// terminal states, freezes the detected/recognized counts.
	Transition(ctx context.Context, id string, status SessionStatus, detected, recognized int) error
	// ListByClass returns the most recent sessions for a class.
	ListByClass(ctx context.Context, classID int64, limit int) ([]Session, error)
}

// RecordStore persists attendance records with at most one row per
// (student, date) key.
type RecordStore interface {
	// Mutate runs fn with the current record for the key, serialized against
	// concurrent writers of the same key, and persists the record fn
	// returns. fn receives nil if no record exists yet; returning nil leaves
	// the store untouched. The backend must additionally enforce the
	// (student, date) uniqueness with a storage-level constraint.
	Mutate(ctx context.Context, studentID string, date Date, fn func(existing *Record) (*Record, error)) error
	// Get returns the record for the key. Returns ErrNotFound if missing.
	Get(ctx context.Context, studentID string, date Date) (*Record, error)
	// ListByDate returns the records of a class for one day, joined against
	// the roster, ordered by roll number.
	ListByDate(ctx context.Context, classID int64, date Date) ([]Record, error)
	// ListByStudent returns a student's records within the inclusive range.
	ListByStudent(ctx context.Context, studentID string, from, to Date) ([]Record, error)
}

// NearestSearcher is implemented by template stores that can answer
// nearest-neighbor queries themselves (e.g. pgvector ordering). It serves as
// the duplicate-guard fallback when no in-memory index is loaded.
type NearestSearcher interface {
	Nearest(ctx context.Context, embedding []float32, k int) ([]Neighbor, error)
}

// Store bundles the four repositories of one backend.
type Store struct {
	Students  StudentStore
	Templates TemplateStore
	Sessions  SessionStore
	Records   RecordStore
}
