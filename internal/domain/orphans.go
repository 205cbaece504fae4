package domain

import (
	"time"

	m "qtsync.dev/pkg/qtsync/internal/model"
)

// RecoverOrphans walks a snapshot of the suite tree and synthesizes a record for
// every identified test that known does not report. Tests that are pending, or
// live in a pending suite, become PENDING; every other orphan never started
// because a setup step failed and becomes FAILED. Traversal is depth-first with
// a suite's own tests visited before its child suites.
func RecoverOrphans(root *m.Suite, known func(testCaseID string) bool, runStart, runEnd time.Time) []m.TestRecord {
	if root == nil {
		return nil
	}

	walker := orphanWalker{
		known:    known,
		seen:     map[string]struct{}{},
		runStart: runStart,
		runEnd:   runEnd,
	}
	walker.visit(root.Clone(), false)

	return walker.records
}

type orphanWalker struct {
	known    func(string) bool
	seen     map[string]struct{}
	runStart time.Time
	runEnd   time.Time
	records  []m.TestRecord
}

func (w *orphanWalker) visit(suite *m.Suite, skipped bool) {
	skipped = skipped || suite.Pending

	for _, test := range suite.Tests {
		id, ok := ExtractTestCaseID(test.Title)
		if !ok {
			continue
		}

		if _, dup := w.seen[id]; dup || (w.known != nil && w.known(id)) {
			continue
		}

		w.seen[id] = struct{}{}
		w.records = append(w.records, w.synthesize(id, test, skipped))
	}

	for _, child := range suite.Suites {
		w.visit(child, skipped)
	}
}

func (w *orphanWalker) synthesize(id string, test m.Test, skipped bool) m.TestRecord {
	record := m.TestRecord{
		TestCaseID: id,
		Title:      test.Title,
		StartedAt:  w.runStart,
		EndedAt:    w.runEnd,
		Synthetic:  true,
	}

	if skipped || test.Pending {
		record.Status = m.StatusPending
		record.Note = NoteSkipped
	} else {
		record.Status = m.StatusFailed
		record.Note = NoteSetupFailed
	}

	return record
}
