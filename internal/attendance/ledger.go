package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/classtrack/attendance/internal/store"
)

// MarkResult classifies what a mark attempt did to the ledger.
type MarkResult string

const (
	MarkCreated  MarkResult = "created"
	MarkUpdated  MarkResult = "updated"
	MarkRejected MarkResult = "rejected"
)

// Rejection reasons reported in Outcome.Reason.
const (
	// ReasonLockedByHigherAuthority: the existing record is verified and the
	// incoming method does not strictly outrank it.
	ReasonLockedByHigherAuthority = "locked-by-higher-authority"
	// ReasonOutrankedByExisting: the existing record's method outranks the
	// incoming one (e.g. a face mark arriving after a QR scan).
	ReasonOutrankedByExisting = "outranked-by-existing-method"
)

// MarkRequest is one attendance mark attempt.
type MarkRequest struct {
	StudentID  string
	Date       store.Date
	Status     store.Status
	Method     store.Method
	Confidence float64 // face_recognition only
	SessionID  string  // originating session, empty for qr/manual
	Notes      string
}

// Outcome reports how the ledger handled a mark attempt. A precedence loss
// is an expected business outcome, not an error, so it surfaces here as
// MarkRejected with a reason instead of failing the call.
type Outcome struct {
	StudentID  string       `json:"student_id"`
	Result     MarkResult   `json:"result"`
	Reason     string       `json:"reason,omitempty"`
	Status     store.Status `json:"status"`
	Method     store.Method `json:"method"`
	Confidence float64      `json:"confidence,omitempty"`
	Verified   bool         `json:"verified"`
}

// Ledger enforces the one-record-per-student-per-day invariant and the
// method precedence policy (manual > qr_code > face_recognition). Per-key
// serialization is delegated to RecordStore.Mutate, whose backends lock the
// row for the duration of the mutation; a storage-level unique constraint on
// (student, date) backstops the invariant.
type Ledger struct {
	records store.RecordStore
	now     func() time.Time
}

// NewLedger creates a ledger over the given record store.
func NewLedger(records store.RecordStore) *Ledger {
	return &Ledger{records: records, now: time.Now}
}

// Mark applies one attendance mark under the precedence policy and returns
// what happened. Only invalid input or storage failure produce an error.
func (l *Ledger) Mark(ctx context.Context, req MarkRequest) (Outcome, error) {
	if err := l.validate(req); err != nil {
		return Outcome{}, err
	}

	var outcome Outcome
	err := l.records.Mutate(ctx, req.StudentID, req.Date, func(existing *store.Record) (*store.Record, error) {
		record, result := l.apply(existing, req)
		outcome = l.outcomeFor(req, existing, record, result)
		return record, nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("marking attendance for %s on %s: %w", req.StudentID, req.Date, err)
	}
	return outcome, nil
}

func (l *Ledger) validate(req MarkRequest) error {
	if req.StudentID == "" {
		return validationErrorf("student ID is required")
	}
	if req.Date == "" {
		return validationErrorf("date is required")
	}
	if !req.Method.Valid() {
		return validationErrorf("unknown marking method %q", req.Method)
	}
	if !req.Status.Valid() {
		return validationErrorf("unknown attendance status %q", req.Status)
	}
	// Face recognition and QR scans can only ever assert presence; explicit
	// absence is a manual action.
	if req.Status == store.StatusAbsent && req.Method != store.MethodManual {
		return validationErrorf("method %s cannot mark a student absent", req.Method)
	}
	if req.Method == store.MethodFace && (req.Confidence < 0 || req.Confidence > 1) {
		return validationErrorf("confidence %f outside [0,1]", req.Confidence)
	}
	return nil
}

// apply decides the new record for the key, or nil to leave the existing row
// untouched. It runs inside the store's per-key critical section.
func (l *Ledger) apply(existing *store.Record, req MarkRequest) (*store.Record, MarkResult) {
	if existing == nil {
		return l.build(req), MarkCreated
	}

	if existing.Verified {
		if req.Method.Rank() > existing.Method.Rank() {
			return l.build(req), MarkUpdated
		}
		return nil, MarkRejected
	}

	switch {
	case req.Method.Rank() > existing.Method.Rank():
		return l.build(req), MarkUpdated
	case req.Method.Rank() < existing.Method.Rank():
		return nil, MarkRejected
	case req.Method == store.MethodFace:
		// Repeated face marks are idempotent: status stays, confidence only
		// moves up.
		if req.Confidence > existing.Confidence {
			updated := *existing
			updated.Confidence = req.Confidence
			updated.SessionID = req.SessionID
			updated.MarkedAt = l.now()
			return &updated, MarkUpdated
		}
		return nil, MarkUpdated
	default:
		// Repeated QR scans refresh the record.
		return l.build(req), MarkUpdated
	}
}

func (l *Ledger) build(req MarkRequest) *store.Record {
	record := &store.Record{
		StudentID: req.StudentID,
		Date:      req.Date,
		Status:    req.Status,
		Method:    req.Method,
		Verified:  req.Method == store.MethodManual,
		Notes:     req.Notes,
		SessionID: req.SessionID,
		MarkedAt:  l.now(),
	}
	if req.Method == store.MethodFace {
		record.Confidence = req.Confidence
	}
	return record
}

func (l *Ledger) outcomeFor(req MarkRequest, existing, applied *store.Record, result MarkResult) Outcome {
	if result == MarkRejected {
		reason := ReasonOutrankedByExisting
		if existing.Verified {
			reason = ReasonLockedByHigherAuthority
		}
		return Outcome{
			StudentID:  req.StudentID,
			Result:     MarkRejected,
			Reason:     reason,
			Status:     existing.Status,
			Method:     existing.Method,
			Confidence: existing.Confidence,
			Verified:   existing.Verified,
		}
	}

	record := applied
	if record == nil {
		record = existing // idempotent face mark without a confidence bump
	}
	return Outcome{
		StudentID:  record.StudentID,
		Result:     result,
		Status:     record.Status,
		Method:     record.Method,
		Confidence: record.Confidence,
		Verified:   record.Verified,
	}
}
