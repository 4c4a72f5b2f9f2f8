package attendance

import (
	"context"
	"sync"
	"testing"

	"github.com/classtrack/attendance/internal/store"
	"github.com/classtrack/attendance/internal/store/mock"
)

const testDate = store.Date("2024-09-01")

func mark(t *testing.T, l *Ledger, method store.Method, status store.Status, confidence float64) Outcome {
	t.Helper()
	outcome, err := l.Mark(context.Background(), MarkRequest{
		StudentID:  "STU001",
		Date:       testDate,
		Status:     status,
		Method:     method,
		Confidence: confidence,
	})
	if err != nil {
		t.Fatalf("Mark(%s) failed: %v", method, err)
	}
	return outcome
}

func TestLedgerFirstMarkCreates(t *testing.T) {
	records := mock.NewRecordStore()
	ledger := NewLedger(records)

	outcome := mark(t, ledger, store.MethodFace, store.StatusPresent, 0.8)

	if outcome.Result != MarkCreated {
		t.Errorf("expected created, got %s", outcome.Result)
	}
	if outcome.Verified {
		t.Error("face mark must not be verified")
	}
	rec, err := records.Get(context.Background(), "STU001", testDate)
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if rec.Method != store.MethodFace || rec.Confidence != 0.8 {
		t.Errorf("unexpected stored record %+v", rec)
	}
}

func TestLedgerPrecedenceEscalation(t *testing.T) {
	// face -> qr -> manual ends as a verified manual record.
	records := mock.NewRecordStore()
	ledger := NewLedger(records)

	mark(t, ledger, store.MethodFace, store.StatusPresent, 0.7)
	qr := mark(t, ledger, store.MethodQR, store.StatusPresent, 0)
	if qr.Result != MarkUpdated {
		t.Errorf("qr over face: expected updated, got %s", qr.Result)
	}
	manual := mark(t, ledger, store.MethodManual, store.StatusPresent, 0)
	if manual.Result != MarkUpdated {
		t.Errorf("manual over qr: expected updated, got %s", manual.Result)
	}

	rec, _ := records.Get(context.Background(), "STU001", testDate)
	if rec.Method != store.MethodManual || !rec.Verified {
		t.Errorf("expected verified manual record, got %+v", rec)
	}
	if records.Count() != 1 {
		t.Errorf("uniqueness violated: %d records for one key", records.Count())
	}
}

func TestLedgerManualLocksRecord(t *testing.T) {
	// A verified manual absent record rejects a later face mark and stays
	// untouched.
	records := mock.NewRecordStore()
	ledger := NewLedger(records)

	mark(t, ledger, store.MethodManual, store.StatusAbsent, 0)
	outcome := mark(t, ledger, store.MethodFace, store.StatusPresent, 0.9)

	if outcome.Result != MarkRejected {
		t.Fatalf("expected rejected, got %s", outcome.Result)
	}
	if outcome.Reason != ReasonLockedByHigherAuthority {
		t.Errorf("expected reason %q, got %q", ReasonLockedByHigherAuthority, outcome.Reason)
	}

	rec, _ := records.Get(context.Background(), "STU001", testDate)
	if rec.Status != store.StatusAbsent || rec.Method != store.MethodManual || !rec.Verified {
		t.Errorf("locked record was modified: %+v", rec)
	}
}

func TestLedgerManualOverManualRejected(t *testing.T) {
	records := mock.NewRecordStore()
	ledger := NewLedger(records)

	mark(t, ledger, store.MethodManual, store.StatusPresent, 0)
	outcome := mark(t, ledger, store.MethodManual, store.StatusAbsent, 0)

	if outcome.Result != MarkRejected {
		t.Errorf("manual does not strictly outrank manual: expected rejected, got %s", outcome.Result)
	}
}

func TestLedgerFaceCannotOverwriteQR(t *testing.T) {
	records := mock.NewRecordStore()
	ledger := NewLedger(records)

	mark(t, ledger, store.MethodQR, store.StatusPresent, 0)
	outcome := mark(t, ledger, store.MethodFace, store.StatusPresent, 0.95)

	if outcome.Result != MarkRejected {
		t.Fatalf("expected rejected, got %s", outcome.Result)
	}
	if outcome.Reason != ReasonOutrankedByExisting {
		t.Errorf("expected reason %q, got %q", ReasonOutrankedByExisting, outcome.Reason)
	}
	rec, _ := records.Get(context.Background(), "STU001", testDate)
	if rec.Method != store.MethodQR {
		t.Errorf("qr record was overwritten by face: %+v", rec)
	}
}

func TestLedgerFaceOverFaceIdempotent(t *testing.T) {
	records := mock.NewRecordStore()
	ledger := NewLedger(records)

	mark(t, ledger, store.MethodFace, store.StatusPresent, 0.6)

	lower := mark(t, ledger, store.MethodFace, store.StatusPresent, 0.4)
	if lower.Result != MarkUpdated {
		t.Errorf("repeat face mark: expected updated outcome, got %s", lower.Result)
	}
	rec, _ := records.Get(context.Background(), "STU001", testDate)
	if rec.Confidence != 0.6 {
		t.Errorf("lower confidence must not replace higher: got %f", rec.Confidence)
	}

	mark(t, ledger, store.MethodFace, store.StatusPresent, 0.85)
	rec, _ = records.Get(context.Background(), "STU001", testDate)
	if rec.Confidence != 0.85 {
		t.Errorf("higher confidence should win: got %f", rec.Confidence)
	}
	if records.Count() != 1 {
		t.Errorf("uniqueness violated: %d records", records.Count())
	}
}

func TestLedgerValidation(t *testing.T) {
	ledger := NewLedger(mock.NewRecordStore())

	tests := []struct {
		name string
		req  MarkRequest
	}{
		{"missing student", MarkRequest{Date: testDate, Status: store.StatusPresent, Method: store.MethodManual}},
		{"missing date", MarkRequest{StudentID: "STU001", Status: store.StatusPresent, Method: store.MethodManual}},
		{"unknown method", MarkRequest{StudentID: "STU001", Date: testDate, Status: store.StatusPresent, Method: "telepathy"}},
		{"unknown status", MarkRequest{StudentID: "STU001", Date: testDate, Status: "late", Method: store.MethodManual}},
		{"qr cannot mark absent", MarkRequest{StudentID: "STU001", Date: testDate, Status: store.StatusAbsent, Method: store.MethodQR}},
		{"face cannot mark absent", MarkRequest{StudentID: "STU001", Date: testDate, Status: store.StatusAbsent, Method: store.MethodFace}},
		{"confidence out of range", MarkRequest{StudentID: "STU001", Date: testDate, Status: store.StatusPresent, Method: store.MethodFace, Confidence: 1.5}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.Mark(context.Background(), tc.req)
			if !IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestLedgerConcurrentMarksSingleRecord(t *testing.T) {
	// All three methods race for the same key; exactly one record must
	// result and it must end as the highest-authority method.
	records := mock.NewRecordStore()
	ledger := NewLedger(records)

	var wg sync.WaitGroup
	requests := []MarkRequest{
		{StudentID: "STU001", Date: testDate, Status: store.StatusPresent, Method: store.MethodFace, Confidence: 0.9},
		{StudentID: "STU001", Date: testDate, Status: store.StatusPresent, Method: store.MethodQR},
		{StudentID: "STU001", Date: testDate, Status: store.StatusPresent, Method: store.MethodManual},
	}
	for i := 0; i < 10; i++ {
		for _, req := range requests {
			wg.Add(1)
			go func(req MarkRequest) {
				defer wg.Done()
				if _, err := ledger.Mark(context.Background(), req); err != nil {
					t.Errorf("concurrent mark failed: %v", err)
				}
			}(req)
		}
	}
	wg.Wait()

	if records.Count() != 1 {
		t.Fatalf("uniqueness violated under concurrency: %d records", records.Count())
	}
	rec, _ := records.Get(context.Background(), "STU001", testDate)
	if rec.Method != store.MethodManual || !rec.Verified {
		t.Errorf("expected the manual mark to end on top, got %+v", rec)
	}
}
