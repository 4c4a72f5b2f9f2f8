package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/classtrack/attendance/internal/store"
)

// TemplateRepository provides PostgreSQL-backed face template storage with a
// fixed embedding width enforced both here and by the vector column type.
type TemplateRepository struct {
	pool *Pool
	dim  int
}

// NewTemplateRepository creates a new PostgreSQL template repository.
func NewTemplateRepository(pool *Pool, dim int) *TemplateRepository {
	return &TemplateRepository{pool: pool, dim: dim}
}

// Register appends a template to the student's set.
func (r *TemplateRepository) Register(ctx context.Context, studentID string, embedding []float32) (*store.Template, error) {
	if len(embedding) != r.dim {
		return nil, fmt.Errorf("registering template for %s: %w (got %d, want %d)",
			studentID, store.ErrDimensionMismatch, len(embedding), r.dim)
	}

	query := `
		INSERT INTO face_templates (student_id, embedding, dim)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	tpl := &store.Template{
		StudentID: studentID,
		Embedding: embedding,
		Dim:       len(embedding),
	}
	err := r.pool.QueryRow(ctx, query, studentID, pgvector.NewVector(embedding), len(embedding)).
		Scan(&tpl.ID, &tpl.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("register template for %s: %w", studentID, err)
	}
	return tpl, nil
}

// All returns every stored template. Matching runs snapshot this once at the
// start of a session.
func (r *TemplateRepository) All(ctx context.Context) ([]store.Template, error) {
	query := `
		SELECT id, student_id, embedding, dim, created_at
		FROM face_templates
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	return scanTemplates(rows)
}

// ByStudent returns the templates of one student.
func (r *TemplateRepository) ByStudent(ctx context.Context, studentID string) ([]store.Template, error) {
	query := `
		SELECT id, student_id, embedding, dim, created_at
		FROM face_templates
		WHERE student_id = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("query templates for %s: %w", studentID, err)
	}
	defer rows.Close()

	return scanTemplates(rows)
}

// Remove deletes all templates for a student.
func (r *TemplateRepository) Remove(ctx context.Context, studentID string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM face_templates WHERE student_id = $1", studentID); err != nil {
		return fmt.Errorf("remove templates for %s: %w", studentID, err)
	}
	return nil
}

// Count returns the number of stored templates.
func (r *TemplateRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_templates").Scan(&count); err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return count, nil
}

// Nearest returns the k templates closest to the query embedding by L2
// distance, computed by pgvector. Used as the duplicate guard fallback when
// no in-memory index is loaded.
func (r *TemplateRepository) Nearest(ctx context.Context, embedding []float32, k int) ([]store.Neighbor, error) {
	if len(embedding) != r.dim {
		return nil, fmt.Errorf("nearest templates: %w (got %d, want %d)",
			store.ErrDimensionMismatch, len(embedding), r.dim)
	}

	query := `
		SELECT id, student_id, embedding <-> $1 AS distance
		FROM face_templates
		ORDER BY embedding <-> $1
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("nearest templates: %w", err)
	}
	defer rows.Close()

	var neighbors []store.Neighbor
	for rows.Next() {
		var n store.Neighbor
		if err := rows.Scan(&n.TemplateID, &n.StudentID, &n.Distance); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbors: %w", err)
	}
	return neighbors, nil
}

func scanTemplates(rows *sql.Rows) ([]store.Template, error) {
	var templates []store.Template
	for rows.Next() {
		var tpl store.Template
		var vec pgvector.Vector
		if err := rows.Scan(&tpl.ID, &tpl.StudentID, &vec, &tpl.Dim, &tpl.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		tpl.Embedding = vec.Slice()
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return templates, nil
}
