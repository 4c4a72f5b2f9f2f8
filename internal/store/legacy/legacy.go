// Package legacy reads the retired MySQL attendance database so historical
// marks can be imported into the current store.
package legacy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/classtrack/attendance/internal/store"
)

// Pool manages a MySQL connection pool against the legacy schema.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MySQL connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("legacy MySQL DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Student is a roster row from the legacy schema.
type Student struct {
	ID         string
	FullName   string
	ClassID    int64
	RollNumber int
	Active     bool
}

// Mark is one attendance row from the legacy schema. Confidence is only
// present for face recognition rows.
type Mark struct {
	StudentID  string
	Date       store.Date
	Status     store.Status
	Method     store.Method
	Confidence float64
	Notes      string
	MarkedAt   time.Time
}

// Students returns the legacy roster ordered by class and roll number.
func (p *Pool) Students(ctx context.Context) ([]Student, error) {
	query := `
		SELECT student_id, full_name, class_id, roll_number, is_active
		FROM students
		ORDER BY class_id, roll_number`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query legacy students: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.FullName, &s.ClassID, &s.RollNumber, &s.Active); err != nil {
			return nil, fmt.Errorf("scan legacy student: %w", err)
		}
		students = append(students, s)
	}

	return students, rows.Err()
}

// CountMarks returns the number of attendance rows to import, for progress
// reporting.
func (p *Pool) CountMarks(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count legacy marks: %w", err)
	}
	return count, nil
}

// Marks streams the legacy attendance rows through fn in (student, date)
// order. Rows with a status or method the current model does not know are
// skipped and counted in the returned total. The DSN must carry
// parseTime=true so DATE and TIMESTAMP columns scan as time.Time.
func (p *Pool) Marks(ctx context.Context, fn func(Mark) error) (skipped int64, err error) {
	query := `
		SELECT s.student_id, a.attendance_date, a.status, a.method,
		       a.confidence_score, COALESCE(a.notes, ''), a.created_at
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		ORDER BY s.student_id, a.attendance_date`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("query legacy marks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Mark
		var date time.Time
		var status, method string
		var confidence sql.NullFloat64

		if err := rows.Scan(&m.StudentID, &date, &status, &method, &confidence, &m.Notes, &m.MarkedAt); err != nil {
			return skipped, fmt.Errorf("scan legacy mark: %w", err)
		}

		m.Date = store.DateOf(date)
		m.Status = store.Status(status)
		m.Method = store.Method(method)
		m.Confidence = confidence.Float64
		if !m.Status.Valid() || !m.Method.Valid() {
			skipped++
			continue
		}

		if err := fn(m); err != nil {
			return skipped, err
		}
	}

	return skipped, rows.Err()
}
