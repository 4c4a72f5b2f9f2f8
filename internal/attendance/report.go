package attendance

import (
	"context"
	"fmt"

	"github.com/classtrack/attendance/internal/store"
)

// Reporter builds attendance views. Absence is derived here at query time by
// set difference over the roster; the ledger never writes synthetic absence
// rows, so a late mark can still turn an implicit absence into a present
// record.
type Reporter struct {
	students store.StudentStore
	records  store.RecordStore
}

// NewReporter creates a reporter over the roster and record stores.
func NewReporter(students store.StudentStore, records store.RecordStore) *Reporter {
	return &Reporter{students: students, records: records}
}

// RollupEntry is one student's state for a day.
type RollupEntry struct {
	Student    store.Student `json:"student"`
	Status     store.Status  `json:"status"`
	Method     store.Method  `json:"method,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Verified   bool          `json:"verified"`
	Derived    bool          `json:"derived"` // true when absence is inferred from a missing record
}

// DailyRollup is a class's attendance for one day, roster-ordered.
type DailyRollup struct {
	ClassID int64         `json:"class_id"`
	Date    store.Date    `json:"date"`
	Present int           `json:"present"`
	Absent  int           `json:"absent"`
	Entries []RollupEntry `json:"entries"`
}

// Daily returns the rollup for a class and day. Active students without a
// record are reported absent with Derived set.
func (r *Reporter) Daily(ctx context.Context, classID int64, date store.Date) (*DailyRollup, error) {
	roster, err := r.students.ListByClass(ctx, classID, true)
	if err != nil {
		return nil, fmt.Errorf("loading roster for class %d: %w", classID, err)
	}

	records, err := r.records.ListByDate(ctx, classID, date)
	if err != nil {
		return nil, fmt.Errorf("loading records for class %d on %s: %w", classID, date, err)
	}
	byStudent := make(map[string]*store.Record, len(records))
	for i := range records {
		byStudent[records[i].StudentID] = &records[i]
	}

	rollup := &DailyRollup{ClassID: classID, Date: date, Entries: make([]RollupEntry, 0, len(roster))}
	for _, student := range roster {
		entry := RollupEntry{Student: student}
		if rec, ok := byStudent[student.ID]; ok {
			entry.Status = rec.Status
			entry.Method = rec.Method
			entry.Confidence = rec.Confidence
			entry.Verified = rec.Verified
		} else {
			entry.Status = store.StatusAbsent
			entry.Derived = true
		}
		if entry.Status == store.StatusPresent {
			rollup.Present++
		} else {
			rollup.Absent++
		}
		rollup.Entries = append(rollup.Entries, entry)
	}
	return rollup, nil
}

// SummaryRow aggregates one student's attendance over a date range. Only
// days with a stored record count toward the totals; days with no record at
// all are not retroactively classified.
type SummaryRow struct {
	Student     store.Student `json:"student"`
	TotalDays   int           `json:"total_days"`
	PresentDays int           `json:"present_days"`
	AbsentDays  int           `json:"absent_days"`
	Percentage  float64       `json:"percentage"`
}

// Summary aggregates attendance for every active student of a class within
// the inclusive date range.
func (r *Reporter) Summary(ctx context.Context, classID int64, from, to store.Date) ([]SummaryRow, error) {
	roster, err := r.students.ListByClass(ctx, classID, true)
	if err != nil {
		return nil, fmt.Errorf("loading roster for class %d: %w", classID, err)
	}

	rows := make([]SummaryRow, 0, len(roster))
	for _, student := range roster {
		records, err := r.records.ListByStudent(ctx, student.ID, from, to)
		if err != nil {
			return nil, fmt.Errorf("loading history for student %s: %w", student.ID, err)
		}

		row := SummaryRow{Student: student}
		for _, rec := range records {
			row.TotalDays++
			if rec.Status == store.StatusPresent {
				row.PresentDays++
			} else {
				row.AbsentDays++
			}
		}
		if row.TotalDays > 0 {
			row.Percentage = float64(row.PresentDays) * 100 / float64(row.TotalDays)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
