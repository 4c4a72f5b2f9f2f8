package attendance

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/classtrack/attendance/internal/matcher"
	"github.com/classtrack/attendance/internal/store"
)

// SessionResult is what one photo capture produced, reported regardless of
// success or failure classification so the caller can audit and follow up
// (e.g. prompt a QR fallback for unresolved faces).
type SessionResult struct {
	SessionID  string          `json:"session_id"`
	Status     store.SessionStatus `json:"status"`
	Detected   int             `json:"detected"`
	Recognized int             `json:"recognized"`
	Unresolved int             `json:"unresolved"`
	Marks      []Outcome       `json:"marks"`
}

// Processor drives one photo-capture session through its lifecycle:
// pending -> processing -> completed|failed. Sessions are immutable audit
// rows; a retry never reuses a session, it creates a new one.
type Processor struct {
	templates store.TemplateStore
	sessions  store.SessionStore
	ledger    *Ledger
	matching  matcher.Config
	now       func() time.Time
}

// NewProcessor creates a session processor.
func NewProcessor(templates store.TemplateStore, sessions store.SessionStore, ledger *Ledger, matching matcher.Config) *Processor {
	return &Processor{
		templates: templates,
		sessions:  sessions,
		ledger:    ledger,
		matching:  matching,
		now:       time.Now,
	}
}

// Begin creates the pending session row for a submitted photo.
func (p *Processor) Begin(ctx context.Context, classID int64, teacherID, photoRef string) (*store.Session, error) {
	session := &store.Session{
		ID:        uuid.NewString(),
		ClassID:   classID,
		TeacherID: teacherID,
		Date:      store.DateOf(p.now()),
		PhotoRef:  photoRef,
		Status:    store.SessionPending,
		CreatedAt: p.now(),
	}
	if err := p.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

// Process matches the detected embeddings against a template snapshot loaded
// once for the run, commits each resolved face through the ledger and
// completes the session. The detected/recognized counts are frozen at the
// values observed here and never updated retroactively.
//
// Zero detected faces is a valid outcome, not a failure. Individual
// unresolved faces never fail the session either; committed marks stand even
// when other faces in the same photo stay unresolved.
func (p *Processor) Process(ctx context.Context, session *store.Session, embeddings [][]float32) (*SessionResult, error) {
	if err := p.sessions.Transition(ctx, session.ID, store.SessionProcessing, 0, 0); err != nil {
		return nil, fmt.Errorf("session %s to processing: %w", session.ID, err)
	}

	snapshot, err := p.loadTemplates(ctx)
	if err != nil {
		p.fail(ctx, session.ID)
		return nil, err
	}

	result := matcher.Match(snapshot, embeddings, p.matching)

	marks := make([]Outcome, 0, len(result.Assignments))
	for _, a := range result.Assignments {
		outcome, err := p.ledger.Mark(ctx, MarkRequest{
			StudentID:  a.StudentID,
			Date:       session.Date,
			Status:     store.StatusPresent,
			Method:     store.MethodFace,
			Confidence: a.Confidence,
			SessionID:  session.ID,
		})
		if err != nil {
			// One bad mark must not take down the rest of the class.
			log.Printf("session %s: mark for student %s failed: %v", session.ID, a.StudentID, err)
			continue
		}
		marks = append(marks, outcome)
	}

	detected := len(embeddings)
	recognized := len(result.Assignments)
	if err := p.sessions.Transition(ctx, session.ID, store.SessionCompleted, detected, recognized); err != nil {
		return nil, fmt.Errorf("session %s to completed: %w", session.ID, err)
	}

	return &SessionResult{
		SessionID:  session.ID,
		Status:     store.SessionCompleted,
		Detected:   detected,
		Recognized: recognized,
		Unresolved: result.Unresolved,
		Marks:      marks,
	}, nil
}

// Fail marks the session failed after a total pipeline fault. Marks already
// committed for this session are left in place.
func (p *Processor) Fail(ctx context.Context, sessionID string) {
	p.fail(ctx, sessionID)
}

func (p *Processor) fail(ctx context.Context, sessionID string) {
	if err := p.sessions.Transition(ctx, sessionID, store.SessionFailed, 0, 0); err != nil {
		log.Printf("session %s to failed: %v", sessionID, err)
	}
}

// loadTemplates snapshots the template store into the matcher's input shape.
// The snapshot is taken once per run; concurrent template writes are not
// part of this session.
func (p *Processor) loadTemplates(ctx context.Context) (map[string][][]float32, error) {
	templates, err := p.templates.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading template snapshot: %w", err)
	}

	snapshot := make(map[string][][]float32)
	for _, tpl := range templates {
		snapshot[tpl.StudentID] = append(snapshot[tpl.StudentID], tpl.Embedding)
	}
	return snapshot, nil
}
