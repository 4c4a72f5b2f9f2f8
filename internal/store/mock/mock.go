// Package mock provides in-memory implementations of the store interfaces
// for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/classtrack/attendance/internal/store"
)

// NewStore bundles fresh in-memory repositories with the given embedding
// width.
func NewStore(dim int) *store.Store {
	return &store.Store{
		Students:  NewStudentStore(),
		Templates: NewTemplateStore(dim),
		Sessions:  NewSessionStore(),
		Records:   NewRecordStore(),
	}
}

// StudentStore is an in-memory store.StudentStore.
type StudentStore struct {
	mu       sync.RWMutex
	students map[string]*store.Student

	// Error injection
	CreateError error
	GetError    error
	ListError   error
}

// NewStudentStore creates an empty student store.
func NewStudentStore() *StudentStore {
	return &StudentStore{students: make(map[string]*store.Student)}
}

func (m *StudentStore) Create(ctx context.Context, s *store.Student) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.students[s.ID]; exists {
		return fmt.Errorf("student %s already exists", s.ID)
	}
	for _, other := range m.students {
		if other.ClassID == s.ClassID && other.RollNumber == s.RollNumber {
			return fmt.Errorf("roll number %d already taken in class %d", s.RollNumber, s.ClassID)
		}
	}
	copied := *s
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	m.students[s.ID] = &copied
	return nil
}

func (m *StudentStore) Get(ctx context.Context, studentID string) (*store.Student, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[studentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *StudentStore) ListByClass(ctx context.Context, classID int64, activeOnly bool) ([]store.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []store.Student
	for _, s := range m.students {
		if s.ClassID != classID {
			continue
		}
		if activeOnly && !s.Active {
			continue
		}
		result = append(result, *s)
	}
	sortStudents(result)
	return result, nil
}

func (m *StudentStore) Search(ctx context.Context, query string) ([]store.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	normalized := store.NormalizeName(query)
	var result []store.Student
	for _, s := range m.students {
		if store.NormalizeName(s.FullName) == normalized {
			result = append(result, *s)
		}
	}
	sortStudents(result)
	return result, nil
}

func (m *StudentStore) Deactivate(ctx context.Context, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok {
		return store.ErrNotFound
	}
	s.Active = false
	return nil
}

func sortStudents(students []store.Student) {
	for i := 1; i < len(students); i++ {
		for j := i; j > 0 && students[j].RollNumber < students[j-1].RollNumber; j-- {
			students[j], students[j-1] = students[j-1], students[j]
		}
	}
}

// TemplateStore is an in-memory store.TemplateStore with a fixed embedding
// width.
type TemplateStore struct {
	mu        sync.RWMutex
	templates []store.Template
	nextID    int64
	dim       int

	// Error injection
	RegisterError error
	AllError      error
}

// NewTemplateStore creates an empty template store expecting the given
// embedding width.
func NewTemplateStore(dim int) *TemplateStore {
	return &TemplateStore{dim: dim, nextID: 1}
}

func (m *TemplateStore) Register(ctx context.Context, studentID string, embedding []float32) (*store.Template, error) {
	if m.RegisterError != nil {
		return nil, m.RegisterError
	}
	if len(embedding) != m.dim {
		return nil, fmt.Errorf("registering template for %s: %w (got %d, want %d)",
			studentID, store.ErrDimensionMismatch, len(embedding), m.dim)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl := store.Template{
		ID:        m.nextID,
		StudentID: studentID,
		Embedding: append([]float32(nil), embedding...),
		Dim:       len(embedding),
		CreatedAt: time.Now(),
	}
	m.nextID++
	m.templates = append(m.templates, tpl)
	return &tpl, nil
}

func (m *TemplateStore) All(ctx context.Context) ([]store.Template, error) {
	if m.AllError != nil {
		return nil, m.AllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]store.Template(nil), m.templates...), nil
}

func (m *TemplateStore) ByStudent(ctx context.Context, studentID string) ([]store.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []store.Template
	for _, tpl := range m.templates {
		if tpl.StudentID == studentID {
			result = append(result, tpl)
		}
	}
	return result, nil
}

func (m *TemplateStore) Remove(ctx context.Context, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.templates[:0]
	for _, tpl := range m.templates {
		if tpl.StudentID != studentID {
			kept = append(kept, tpl)
		}
	}
	m.templates = kept
	return nil
}

func (m *TemplateStore) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.templates)), nil
}

// SessionStore is an in-memory store.SessionStore enforcing the session
// lifecycle rules.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*store.Session

	// Error injection
	CreateError     error
	TransitionError error
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*store.Session)}
}

func (m *SessionStore) Create(ctx context.Context, s *store.Session) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.sessions[s.ID] = &copied
	return nil
}

func (m *SessionStore) Get(ctx context.Context, id string) (*store.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *SessionStore) Transition(ctx context.Context, id string, status store.SessionStatus, detected, recognized int) error {
	if m.TransitionError != nil {
		return m.TransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if s.Status == store.SessionCompleted || s.Status == store.SessionFailed {
		return store.ErrTerminalSession
	}
	s.Status = status
	if status == store.SessionCompleted || status == store.SessionFailed {
		s.Detected = detected
		s.Recognized = recognized
		now := time.Now()
		s.FinishedAt = &now
	}
	return nil
}

func (m *SessionStore) ListByClass(ctx context.Context, classID int64, limit int) ([]store.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []store.Session
	for _, s := range m.sessions {
		if s.ClassID == classID {
			result = append(result, *s)
		}
	}
	// Newest first.
	for i := 1; i < len(result); i++ {
		for j := i; j > 0 && result[j].CreatedAt.After(result[j-1].CreatedAt); j-- {
			result[j], result[j-1] = result[j-1], result[j]
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// RecordStore is an in-memory store.RecordStore. A single mutex serializes
// all mutations, which trivially satisfies the per-key single-writer
// contract.
type RecordStore struct {
	mu      sync.Mutex
	records map[recordKey]*store.Record

	// ClassOf maps students to classes for ListByDate; populated by tests
	// or left empty when class filtering is not exercised.
	ClassOf map[string]int64

	// Error injection
	MutateError error
}

type recordKey struct {
	studentID string
	date      store.Date
}

// NewRecordStore creates an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[recordKey]*store.Record),
		ClassOf: make(map[string]int64),
	}
}

func (m *RecordStore) Mutate(ctx context.Context, studentID string, date store.Date, fn func(existing *store.Record) (*store.Record, error)) error {
	if m.MutateError != nil {
		return m.MutateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := recordKey{studentID, date}
	var existing *store.Record
	if current, ok := m.records[key]; ok {
		copied := *current
		existing = &copied
	}

	updated, err := fn(existing)
	if err != nil {
		return err
	}
	if updated != nil {
		copied := *updated
		m.records[key] = &copied
	}
	return nil
}

func (m *RecordStore) Get(ctx context.Context, studentID string, date store.Date) (*store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[recordKey{studentID, date}]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (m *RecordStore) ListByDate(ctx context.Context, classID int64, date store.Date) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []store.Record
	for key, rec := range m.records {
		if key.date != date {
			continue
		}
		if class, ok := m.ClassOf[key.studentID]; ok && class != classID {
			continue
		}
		result = append(result, *rec)
	}
	return result, nil
}

func (m *RecordStore) ListByStudent(ctx context.Context, studentID string, from, to store.Date) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []store.Record
	for key, rec := range m.records {
		if key.studentID != studentID {
			continue
		}
		if key.date < from || key.date > to {
			continue
		}
		result = append(result, *rec)
	}
	return result, nil
}

// Count returns the number of stored records, for uniqueness assertions.
func (m *RecordStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
