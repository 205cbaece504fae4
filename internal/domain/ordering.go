package domain

import (
	"sort"

	m "qtsync.dev/pkg/qtsync/internal/model"
)

// submissionRank orders pending first and failed last.
func submissionRank(status m.Status) int {
	switch status {
	case m.StatusPending:
		return 0
	case m.StatusFailed:
		return 2
	case m.StatusPassed, m.StatusUnset:
	}

	return 1
}

// SubmissionOrder reports whether a must be submitted before b.
// Records of equal rank are unordered; SortForSubmission keeps their input order.
func SubmissionOrder(a, b m.TestRecord) bool {
	return submissionRank(a.Status) < submissionRank(b.Status)
}

// SortForSubmission sorts records in place: pending, then passed and the rest, then failed.
func SortForSubmission(records []m.TestRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return SubmissionOrder(records[i], records[j])
	})
}
