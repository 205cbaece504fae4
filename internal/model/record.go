package model

import "time"

// Status is the disposition of a tracked test.
type Status int

const (
	// StatusUnset means no outcome has been observed yet.
	StatusUnset Status = iota
	// StatusPassed means the runner reported a pass.
	StatusPassed
	// StatusFailed means the runner reported a failure, or a setup step prevented the test.
	StatusFailed
	// StatusPending means the test was skipped or ended without an outcome.
	StatusPending
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusPending:
		return "pending"
	case StatusUnset:
		return "unset"
	}

	return "unknown"
}

// MarshalText encodes the status by name so summaries stay readable.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name written by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "passed":
		*s = StatusPassed
	case "failed":
		*s = StatusFailed
	case "pending":
		*s = StatusPending
	default:
		*s = StatusUnset
	}

	return nil
}

// TestRecord accumulates the outcome of one externally identified test.
type TestRecord struct {
	TestCaseID string    `yaml:"test_case_id"`
	Title      string    `yaml:"title"`
	Status     Status    `yaml:"status"`
	StartedAt  time.Time `yaml:"started_at"`
	EndedAt    time.Time `yaml:"ended_at"`
	Note       string    `yaml:"note,omitempty"`
	Synthetic  bool      `yaml:"synthetic,omitempty"`
}

// TestRun is a remote placeholder for one scheduled execution of a test case.
type TestRun struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// RunMapping maps a test case id to its test run in a suite.
type RunMapping map[string]TestRun

// SuiteResolution is the destination suite of a sync and its known test runs.
type SuiteResolution struct {
	SuiteID string
	Runs    RunMapping
}

// SubmissionOutcome describes what happened to a record during publishing.
type SubmissionOutcome string

const (
	// SubmissionSubmitted means the execution log was accepted by the remote system.
	SubmissionSubmitted SubmissionOutcome = "submitted"
	// SubmissionSkipped means no destination test run was available.
	SubmissionSkipped SubmissionOutcome = "skipped"
	// SubmissionFailed means a remote call for this record failed.
	SubmissionFailed SubmissionOutcome = "failed"
	// SubmissionNotSent means publishing was disabled or the suite never resolved.
	SubmissionNotSent SubmissionOutcome = "not-sent"
)

// Submission pairs a record with its publishing outcome.
type Submission struct {
	Record  TestRecord        `yaml:"record"`
	RunID   string            `yaml:"run_id,omitempty"`
	Outcome SubmissionOutcome `yaml:"outcome"`
	Error   string            `yaml:"error,omitempty"`
}

// Summary is the persisted result of one sync.
type Summary struct {
	SyncID      string       `yaml:"sync_id"`
	SuiteID     string       `yaml:"suite_id,omitempty"`
	ReportURL   string       `yaml:"report_url,omitempty"`
	StartedAt   time.Time    `yaml:"started_at"`
	FinishedAt  time.Time    `yaml:"finished_at"`
	Publishing  bool         `yaml:"publishing"`
	Error       string       `yaml:"error,omitempty"`
	Submissions []Submission `yaml:"submissions"`
}

// Count returns how many submissions ended with the given outcome.
func (s Summary) Count(outcome SubmissionOutcome) int {
	n := 0

	for _, sub := range s.Submissions {
		if sub.Outcome == outcome {
			n++
		}
	}

	return n
}
