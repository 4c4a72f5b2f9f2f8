package postgres

import (
	"context"
	"fmt"
)

// Migrate creates the schema. The template table's vector width is fixed at
// creation time from embeddingDim; changing the deployed width requires
// re-enrolling every face, so it is deliberately not migrated in place.
//
// The primary key on attendance_records(student_id, record_date) is the
// storage-level backstop for the one-record-per-student-per-day invariant,
// independent of the ledger's own locking.
func Migrate(ctx context.Context, pool *Pool, embeddingDim int) error {
	for _, ext := range []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		"CREATE EXTENSION IF NOT EXISTS unaccent",
	} {
		if _, err := pool.Exec(ctx, ext); err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS students (
			id           BIGSERIAL PRIMARY KEY,
			student_id   VARCHAR(64) NOT NULL UNIQUE,
			full_name    VARCHAR(255) NOT NULL,
			class_id     BIGINT NOT NULL,
			roll_number  INTEGER NOT NULL,
			active       BOOLEAN NOT NULL DEFAULT TRUE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (class_id, roll_number)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS face_templates (
			id           BIGSERIAL PRIMARY KEY,
			student_id   VARCHAR(64) NOT NULL REFERENCES students(student_id) ON DELETE CASCADE,
			embedding    vector(%d) NOT NULL,
			dim          INTEGER NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, embeddingDim),
		`CREATE INDEX IF NOT EXISTS face_templates_student_idx ON face_templates (student_id)`,
		`CREATE TABLE IF NOT EXISTS attendance_sessions (
			id           UUID PRIMARY KEY,
			class_id     BIGINT NOT NULL,
			teacher_id   VARCHAR(64) NOT NULL,
			session_date DATE NOT NULL,
			photo_ref    VARCHAR(255) NOT NULL,
			status       VARCHAR(16) NOT NULL,
			detected     INTEGER NOT NULL DEFAULT 0,
			recognized   INTEGER NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			finished_at  TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS attendance_sessions_class_idx
			ON attendance_sessions (class_id, session_date, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS attendance_records (
			student_id   VARCHAR(64) NOT NULL REFERENCES students(student_id),
			record_date  DATE NOT NULL,
			status       VARCHAR(8) NOT NULL,
			method       VARCHAR(32) NOT NULL,
			confidence   DOUBLE PRECISION,
			verified     BOOLEAN NOT NULL DEFAULT FALSE,
			notes        TEXT NOT NULL DEFAULT '',
			session_id   UUID REFERENCES attendance_sessions(id),
			marked_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (student_id, record_date)
		)`,
		`CREATE INDEX IF NOT EXISTS attendance_records_date_idx ON attendance_records (record_date)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}
