package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/classtrack/attendance/internal/store"
)

// RecordRepository persists attendance records. The table's composite
// primary key (student_id, record_date) guarantees at most one row per key
// regardless of how the ledger above it behaves.
type RecordRepository struct {
	pool *Pool
}

func NewRecordRepository(pool *Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

// Mutate serializes writers of the same (student, date) key with a
// transaction-scoped advisory lock, then applies fn to the current row and
// upserts the result. The advisory lock also covers the not-yet-inserted
// case, where SELECT FOR UPDATE alone has no row to lock.
func (r *RecordRepository) Mutate(ctx context.Context, studentID string, date store.Date, fn func(existing *store.Record) (*store.Record, error)) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	lock := `SELECT pg_advisory_xact_lock(hashtext($1 || '@' || $2))`
	if _, err := tx.ExecContext(ctx, lock, studentID, string(date)); err != nil {
		return fmt.Errorf("could not lock record key: %w", err)
	}

	query := `
		SELECT student_id, record_date, status, method, confidence,
		       verified, notes, session_id, marked_at
		FROM attendance_records
		WHERE student_id = $1 AND record_date = $2
		FOR UPDATE`

	var existing *store.Record
	rec, err := scanRecord(tx.QueryRowContext(ctx, query, studentID, date.Time()))
	switch {
	case err == nil:
		existing = rec
	case errors.Is(err, sql.ErrNoRows):
		// first mark for the key
	default:
		return fmt.Errorf("could not load record: %w", err)
	}

	updated, err := fn(existing)
	if err != nil {
		return err
	}
	if updated == nil {
		return tx.Commit()
	}

	upsert := `
		INSERT INTO attendance_records
			(student_id, record_date, status, method, confidence, verified, notes, session_id, marked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (student_id, record_date) DO UPDATE SET
			status     = EXCLUDED.status,
			method     = EXCLUDED.method,
			confidence = EXCLUDED.confidence,
			verified   = EXCLUDED.verified,
			notes      = EXCLUDED.notes,
			session_id = EXCLUDED.session_id,
			marked_at  = EXCLUDED.marked_at`

	_, err = tx.ExecContext(ctx, upsert,
		updated.StudentID,
		updated.Date.Time(),
		string(updated.Status),
		string(updated.Method),
		nullConfidence(updated),
		updated.Verified,
		updated.Notes,
		nullSessionID(updated),
		updated.MarkedAt,
	)
	if err != nil {
		return fmt.Errorf("could not store record: %w", err)
	}

	return tx.Commit()
}

func (r *RecordRepository) Get(ctx context.Context, studentID string, date store.Date) (*store.Record, error) {
	query := `
		SELECT student_id, record_date, status, method, confidence,
		       verified, notes, session_id, marked_at
		FROM attendance_records
		WHERE student_id = $1 AND record_date = $2`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, studentID, date.Time()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("could not load record: %w", err)
	}

	return rec, nil
}

func (r *RecordRepository) ListByDate(ctx context.Context, classID int64, date store.Date) ([]store.Record, error) {
	query := `
		SELECT r.student_id, r.record_date, r.status, r.method, r.confidence,
		       r.verified, r.notes, r.session_id, r.marked_at
		FROM attendance_records r
		JOIN students s ON s.student_id = r.student_id
		WHERE s.class_id = $1 AND r.record_date = $2
		ORDER BY s.roll_number`

	return r.queryRecords(ctx, query, classID, date.Time())
}

func (r *RecordRepository) ListByStudent(ctx context.Context, studentID string, from, to store.Date) ([]store.Record, error) {
	query := `
		SELECT student_id, record_date, status, method, confidence,
		       verified, notes, session_id, marked_at
		FROM attendance_records
		WHERE student_id = $1 AND record_date BETWEEN $2 AND $3
		ORDER BY record_date`

	return r.queryRecords(ctx, query, studentID, from.Time(), to.Time())
}

func (r *RecordRepository) queryRecords(ctx context.Context, query string, args ...any) ([]store.Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not list records: %w", err)
	}
	defer rows.Close()

	var records []store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan record: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

func scanRecord(row rowScanner) (*store.Record, error) {
	var rec store.Record
	var date time.Time
	var status, method string
	var confidence sql.NullFloat64
	var sessionID sql.NullString

	err := row.Scan(
		&rec.StudentID,
		&date,
		&status,
		&method,
		&confidence,
		&rec.Verified,
		&rec.Notes,
		&sessionID,
		&rec.MarkedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Date = store.DateOf(date)
	rec.Status = store.Status(status)
	rec.Method = store.Method(method)
	rec.Confidence = confidence.Float64
	rec.SessionID = sessionID.String

	return &rec, nil
}

// Confidence is only meaningful for face recognition; other methods store
// NULL so reports cannot mistake a zero for a real score.
func nullConfidence(rec *store.Record) sql.NullFloat64 {
	if rec.Method != store.MethodFace {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: rec.Confidence, Valid: true}
}

func nullSessionID(rec *store.Record) sql.NullString {
	if rec.SessionID == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: rec.SessionID, Valid: true}
}
