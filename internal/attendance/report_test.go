package attendance

import (
	"context"
	"testing"

	"github.com/classtrack/attendance/internal/store"
	"github.com/classtrack/attendance/internal/store/mock"
)

func newTestReporter(t *testing.T) (*Reporter, *mock.StudentStore, *mock.RecordStore) {
	t.Helper()
	students := mock.NewStudentStore()
	records := mock.NewRecordStore()

	roster := []store.Student{
		{ID: "STU001", FullName: "Asha Verma", ClassID: 7, RollNumber: 1, Active: true},
		{ID: "STU002", FullName: "Rohan Gupta", ClassID: 7, RollNumber: 2, Active: true},
		{ID: "STU003", FullName: "Meera Patel", ClassID: 7, RollNumber: 3, Active: true},
		{ID: "STU004", FullName: "Old Student", ClassID: 7, RollNumber: 4, Active: false},
	}
	for _, s := range roster {
		if err := students.Create(context.Background(), &s); err != nil {
			t.Fatal(err)
		}
		records.ClassOf[s.ID] = s.ClassID
	}
	return NewReporter(students, records), students, records
}

func markPresent(t *testing.T, records *mock.RecordStore, studentID string, date store.Date, method store.Method) {
	t.Helper()
	err := records.Mutate(context.Background(), studentID, date, func(existing *store.Record) (*store.Record, error) {
		return &store.Record{
			StudentID: studentID,
			Date:      date,
			Status:    store.StatusPresent,
			Method:    method,
		}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDailyRollupDerivesAbsence(t *testing.T) {
	reporter, _, records := newTestReporter(t)
	date := store.Date("2024-09-02")

	markPresent(t, records, "STU001", date, store.MethodFace)
	markPresent(t, records, "STU002", date, store.MethodQR)

	rollup, err := reporter.Daily(context.Background(), 7, date)
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}

	// Three active students: two present, one derived absent. The inactive
	// student does not appear at all.
	if rollup.Present != 2 || rollup.Absent != 1 {
		t.Errorf("present/absent = %d/%d; want 2/1", rollup.Present, rollup.Absent)
	}
	if len(rollup.Entries) != 3 {
		t.Fatalf("expected 3 roster entries, got %d", len(rollup.Entries))
	}

	// Roster order by roll number.
	for i, want := range []string{"STU001", "STU002", "STU003"} {
		if rollup.Entries[i].Student.ID != want {
			t.Errorf("entry %d = %s; want %s", i, rollup.Entries[i].Student.ID, want)
		}
	}

	missing := rollup.Entries[2]
	if missing.Status != store.StatusAbsent || !missing.Derived {
		t.Errorf("student without a record should be derived absent, got %+v", missing)
	}
	if rollup.Entries[0].Derived || rollup.Entries[1].Derived {
		t.Error("stored records must not be flagged as derived")
	}
}

func TestLateMarkConvertsImplicitAbsence(t *testing.T) {
	reporter, _, records := newTestReporter(t)
	date := store.Date("2024-09-02")

	before, err := reporter.Daily(context.Background(), 7, date)
	if err != nil {
		t.Fatal(err)
	}
	if before.Present != 0 || before.Absent != 3 {
		t.Fatalf("expected empty day to be all derived absent, got %d/%d", before.Present, before.Absent)
	}

	// Absence is a view, not a row: a late mark flips it without conflict.
	markPresent(t, records, "STU003", date, store.MethodManual)

	after, err := reporter.Daily(context.Background(), 7, date)
	if err != nil {
		t.Fatal(err)
	}
	if after.Present != 1 || after.Absent != 2 {
		t.Errorf("late mark not reflected: %d/%d", after.Present, after.Absent)
	}
}

func TestSummary(t *testing.T) {
	reporter, _, records := newTestReporter(t)

	days := []store.Date{"2024-09-02", "2024-09-03", "2024-09-04"}
	for _, d := range days {
		markPresent(t, records, "STU001", d, store.MethodFace)
	}
	markPresent(t, records, "STU002", days[0], store.MethodQR)
	err := records.Mutate(context.Background(), "STU002", days[1], func(existing *store.Record) (*store.Record, error) {
		return &store.Record{
			StudentID: "STU002", Date: days[1],
			Status: store.StatusAbsent, Method: store.MethodManual, Verified: true,
		}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	rows, err := reporter.Summary(context.Background(), 7, days[0], days[2])
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 roster rows, got %d", len(rows))
	}

	byID := make(map[string]SummaryRow)
	for _, row := range rows {
		byID[row.Student.ID] = row
	}

	full := byID["STU001"]
	if full.TotalDays != 3 || full.PresentDays != 3 || full.Percentage != 100 {
		t.Errorf("STU001 summary %+v", full)
	}

	half := byID["STU002"]
	if half.TotalDays != 2 || half.PresentDays != 1 || half.AbsentDays != 1 || half.Percentage != 50 {
		t.Errorf("STU002 summary %+v", half)
	}

	// No records at all: totals stay zero rather than being classified.
	none := byID["STU003"]
	if none.TotalDays != 0 || none.Percentage != 0 {
		t.Errorf("STU003 summary %+v", none)
	}
}
