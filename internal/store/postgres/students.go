package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/classtrack/attendance/internal/store"
)

// StudentRepository provides PostgreSQL-backed roster storage.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// Create inserts a new student. Duplicate student IDs or duplicate roll
// numbers within a class fail on the table's unique constraints.
func (r *StudentRepository) Create(ctx context.Context, s *store.Student) error {
	query := `
		INSERT INTO students (student_id, full_name, class_id, roll_number, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query, s.ID, s.FullName, s.ClassID, s.RollNumber, s.Active).
		Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create student %s: %w", s.ID, err)
	}
	return nil
}

// Get returns the student by external ID.
func (r *StudentRepository) Get(ctx context.Context, studentID string) (*store.Student, error) {
	query := `
		SELECT student_id, full_name, class_id, roll_number, active, created_at
		FROM students
		WHERE student_id = $1
	`
	var s store.Student
	err := r.pool.QueryRow(ctx, query, studentID).
		Scan(&s.ID, &s.FullName, &s.ClassID, &s.RollNumber, &s.Active, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get student %s: %w", studentID, err)
	}
	return &s, nil
}

// ListByClass returns students of a class ordered by roll number.
func (r *StudentRepository) ListByClass(ctx context.Context, classID int64, activeOnly bool) ([]store.Student, error) {
	query := `
		SELECT student_id, full_name, class_id, roll_number, active, created_at
		FROM students
		WHERE class_id = $1 AND ($2 = FALSE OR active)
		ORDER BY roll_number
	`
	rows, err := r.pool.Query(ctx, query, classID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list students of class %d: %w", classID, err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// Search finds students by name, ignoring case and diacritics. The input is
// normalized in Go and compared against the same normalization done in SQL,
// so "jan-novak" matches "Jan Novák".
func (r *StudentRepository) Search(ctx context.Context, queryName string) ([]store.Student, error) {
	normalized := store.NormalizeName(queryName)

	query := `
		SELECT student_id, full_name, class_id, roll_number, active, created_at
		FROM students
		WHERE LOWER(REPLACE(unaccent(full_name), '-', ' ')) = $1
		ORDER BY class_id, roll_number
	`
	rows, err := r.pool.Query(ctx, query, normalized)
	if err != nil {
		return nil, fmt.Errorf("search students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// Deactivate clears the active flag without deleting historical records.
func (r *StudentRepository) Deactivate(ctx context.Context, studentID string) error {
	result, err := r.pool.Exec(ctx, "UPDATE students SET active = FALSE WHERE student_id = $1", studentID)
	if err != nil {
		return fmt.Errorf("deactivate student %s: %w", studentID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanStudents(rows *sql.Rows) ([]store.Student, error) {
	var students []store.Student
	for rows.Next() {
		var s store.Student
		if err := rows.Scan(&s.ID, &s.FullName, &s.ClassID, &s.RollNumber, &s.Active, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}
