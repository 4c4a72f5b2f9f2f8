package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/classtrack/attendance/internal/store"
)

// SessionRepository persists capture sessions.
type SessionRepository struct {
	pool *Pool
}

func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session *store.Session) error {
	query := `
		INSERT INTO attendance_sessions
			(id, class_id, teacher_id, session_date, photo_ref, status, detected, recognized)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		session.ID,
		session.ClassID,
		session.TeacherID,
		session.Date.Time(),
		session.PhotoRef,
		string(session.Status),
		session.Detected,
		session.Recognized,
	).Scan(&session.CreatedAt)
	if err != nil {
		return fmt.Errorf("could not create session: %w", err)
	}

	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*store.Session, error) {
	query := `
		SELECT id, class_id, teacher_id, session_date, photo_ref,
		       status, detected, recognized, created_at, finished_at
		FROM attendance_sessions
		WHERE id = $1`

	session, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("could not load session: %w", err)
	}

	return session, nil
}

// Transition moves the session into the given status. Rows already in a
// terminal status are excluded by the WHERE clause so a finished session can
// never be reopened, even by racing workers.
func (r *SessionRepository) Transition(ctx context.Context, id string, status store.SessionStatus, detected, recognized int) error {
	query := `
		UPDATE attendance_sessions
		SET status = $2,
		    detected = $3,
		    recognized = $4,
		    finished_at = CASE WHEN $2 IN ('completed', 'failed') THEN NOW() ELSE finished_at END
		WHERE id = $1
		  AND status NOT IN ('completed', 'failed')`

	res, err := r.pool.Exec(ctx, query, id, string(status), detected, recognized)
	if err != nil {
		return fmt.Errorf("could not transition session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not check transition result: %w", err)
	}

	if affected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return store.ErrTerminalSession
	}

	return nil
}

func (r *SessionRepository) ListByClass(ctx context.Context, classID int64, limit int) ([]store.Session, error) {
	query := `
		SELECT id, class_id, teacher_id, session_date, photo_ref,
		       status, detected, recognized, created_at, finished_at
		FROM attendance_sessions
		WHERE class_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, classID, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []store.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}

	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*store.Session, error) {
	var session store.Session
	var date time.Time
	var status string
	var finishedAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.ClassID,
		&session.TeacherID,
		&date,
		&session.PhotoRef,
		&status,
		&session.Detected,
		&session.Recognized,
		&session.CreatedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	session.Date = store.DateOf(date)
	session.Status = store.SessionStatus(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		session.FinishedAt = &t
	}

	return &session, nil
}
