package domain

import (
	"log/slog"
	"time"

	m "qtsync.dev/pkg/qtsync/internal/model"
)

// Notes attached to records whose outcome was not reported by the runner.
const (
	NoteSkipped        = "test or its containing group was skipped."
	NoteSetupFailed    = "test was not started because a setup step failed."
	NoteEndedUnsettled = "test ended without a pass or fail result."
)

// Accumulator builds one TestRecord per externally identified test from the
// runner's lifecycle events. It is driven from a single goroutine.
type Accumulator interface {
	Start(title string, at time.Time)
	Pass(title string, at time.Time)
	Fail(title, detail string, at time.Time)
	Pending(title string, at time.Time)
	End(title string, at time.Time)
	// Has reports whether a record exists for the test case id.
	Has(testCaseID string) bool
	// Merge adds records whose test case id is not yet known and returns how many were added.
	Merge(records []m.TestRecord) int
	// Records returns a copy of all records in first-seen order.
	Records() []m.TestRecord
}

type accumulator struct {
	enabled func() bool
	records map[string]*m.TestRecord
	order   []string
	// skipped holds started tests the runner later reported as pending.
	skipped map[string]bool
}

// NewAccumulator constructs an Accumulator. New records are only created while
// enabled reports true; existing records keep receiving updates.
func NewAccumulator(enabled func() bool) Accumulator {
	if enabled == nil {
		enabled = func() bool { return true }
	}

	return &accumulator{
		enabled: enabled,
		records: map[string]*m.TestRecord{},
		skipped: map[string]bool{},
	}
}

func (a *accumulator) Start(title string, at time.Time) {
	id, ok := ExtractTestCaseID(title)
	if !ok {
		return
	}

	if _, exists := a.records[id]; exists {
		slog.Debug("test started again", "testCaseID", id, "title", title)
		return
	}

	if !a.enabled() {
		return
	}

	a.add(&m.TestRecord{TestCaseID: id, Title: title, Status: m.StatusUnset, StartedAt: at})
}

func (a *accumulator) Pass(title string, at time.Time) {
	record := a.lookup(title)
	if record == nil {
		return
	}

	if record.Status == m.StatusUnset {
		record.Status = m.StatusPassed
	}

	record.EndedAt = at
}

func (a *accumulator) Fail(title, detail string, at time.Time) {
	record := a.lookup(title)
	if record == nil {
		return
	}

	if record.Status != m.StatusFailed {
		record.Status = m.StatusFailed
		record.Note = detail
	}

	record.EndedAt = at
}

func (a *accumulator) Pending(title string, at time.Time) {
	id, ok := ExtractTestCaseID(title)
	if !ok {
		return
	}

	if _, exists := a.records[id]; exists {
		a.skipped[id] = true
		return
	}

	if !a.enabled() {
		return
	}

	a.add(&m.TestRecord{
		TestCaseID: id,
		Title:      title,
		Status:     m.StatusPending,
		StartedAt:  at,
		EndedAt:    at,
		Note:       NoteSkipped,
	})
}

func (a *accumulator) End(title string, at time.Time) {
	record := a.lookup(title)
	if record == nil {
		return
	}

	record.EndedAt = at

	if record.Status != m.StatusUnset {
		return
	}

	record.Status = m.StatusPending
	record.Note = NoteEndedUnsettled

	if a.skipped[record.TestCaseID] {
		record.Note = NoteSkipped
	}
}

func (a *accumulator) Has(testCaseID string) bool {
	_, ok := a.records[testCaseID]
	return ok
}

func (a *accumulator) Merge(records []m.TestRecord) int {
	added := 0

	for i := range records {
		if a.Has(records[i].TestCaseID) {
			continue
		}

		record := records[i]
		a.add(&record)
		added++
	}

	return added
}

func (a *accumulator) Records() []m.TestRecord {
	out := make([]m.TestRecord, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.records[id])
	}

	return out
}

func (a *accumulator) lookup(title string) *m.TestRecord {
	id, ok := ExtractTestCaseID(title)
	if !ok {
		return nil
	}

	return a.records[id]
}

func (a *accumulator) add(record *m.TestRecord) {
	a.records[record.TestCaseID] = record
	a.order = append(a.order, record.TestCaseID)
}
