package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"qtsync.dev/pkg/qtsync/internal/adapter"
	m "qtsync.dev/pkg/qtsync/internal/model"
)

const executionDateLayout = "2006-01-02T15:04:05.000Z07:00"

// Scheduler publishes accumulated records once the run has ended.
type Scheduler interface {
	// Submit sorts records, waits for the suite resolution and posts one execution
	// log per record, strictly one at a time. A failed resolution aborts the whole
	// batch and is returned; per-record failures are reported in the submissions.
	Submit(ctx context.Context, records []m.TestRecord, resolution *Resolution) ([]m.Submission, error)
}

type scheduler struct {
	cfg      *m.Config
	client   adapter.QTestClient
	runCache map[string]m.TestRun
}

// NewScheduler constructs a Scheduler for one sync.
func NewScheduler(cfg *m.Config, client adapter.QTestClient) Scheduler {
	return &scheduler{
		cfg:      cfg,
		client:   client,
		runCache: map[string]m.TestRun{},
	}
}

func (s *scheduler) Submit(ctx context.Context, records []m.TestRecord, resolution *Resolution) ([]m.Submission, error) {
	ordered := append([]m.TestRecord(nil), records...)
	SortForSubmission(ordered)

	if resolution == nil {
		return notSent(ordered, ErrResolutionFailed), fmt.Errorf("%w: no resolution", ErrResolutionFailed)
	}

	suite, err := resolution.Await(ctx)
	if err != nil {
		return notSent(ordered, err), err
	}

	submissions := make([]m.Submission, 0, len(ordered))

	for _, record := range ordered {
		submissions = append(submissions, s.submitOne(ctx, suite, record))
	}

	return submissions, nil
}

func (s *scheduler) submitOne(ctx context.Context, suite m.SuiteResolution, record m.TestRecord) m.Submission {
	submission := m.Submission{Record: record}

	run, ok, err := s.destination(ctx, suite, record.TestCaseID)
	if err != nil {
		slog.Error("failed to create test run", "suiteID", suite.SuiteID, "testCaseID", record.TestCaseID, "error", err)
		submission.Outcome = m.SubmissionFailed
		submission.Error = err.Error()

		return submission
	}

	if !ok {
		slog.Debug("no test run for test case", "testCaseID", record.TestCaseID)
		submission.Outcome = m.SubmissionSkipped

		return submission
	}

	submission.RunID = run.ID
	log := buildExecutionLog(s.cfg, record, run)

	if err := s.client.PostExecutionLog(ctx, run.ID, log); err != nil {
		slog.Error("failed to post test log", "runID", run.ID, "testCaseID", record.TestCaseID, "payload", log, "error", err)
		submission.Outcome = m.SubmissionFailed
		submission.Error = err.Error()

		return submission
	}

	slog.Debug("posted test log", "runID", run.ID, "testCaseID", record.TestCaseID, "status", log.Status)
	submission.Outcome = m.SubmissionSubmitted

	return submission
}

// destination resolves the test run a record is published to. The boolean is
// false when no run exists and run creation is disabled.
func (s *scheduler) destination(ctx context.Context, suite m.SuiteResolution, testCaseID string) (m.TestRun, bool, error) {
	if run, ok := suite.Runs[testCaseID]; ok {
		return run, true, nil
	}

	if run, ok := s.runCache[testCaseID]; ok {
		return run, true, nil
	}

	if !s.cfg.CreateTestRuns {
		return m.TestRun{}, false, nil
	}

	run, err := s.client.CreateTestRun(ctx, suite.SuiteID, testCaseID)
	if err != nil {
		return m.TestRun{}, false, err
	}

	s.runCache[testCaseID] = run

	return run, true, nil
}

func buildExecutionLog(cfg *m.Config, record m.TestRecord, run m.TestRun) m.ExecutionLog {
	state := cfg.StateFor(record.Status)
	ids := fmt.Sprintf("testRunId: '%s', testCaseId: '%s'", run.ID, record.TestCaseID)

	note := record.Title + " \n" + ids
	if record.Note != "" {
		note += "\n" + record.Note
	}

	name := run.Name
	if name == "" {
		name = record.Title
	}

	endedAt := record.EndedAt
	if endedAt.IsZero() {
		endedAt = record.StartedAt
	}

	return m.ExecutionLog{
		Name:              name,
		BuildURL:          cfg.BuildURL,
		AutomationContent: ids,
		Note:              note,
		ExeStartDate:      formatExecutionDate(record.StartedAt),
		ExeEndDate:        formatExecutionDate(endedAt),
		Status:            state,
		TestStepLogs: []m.TestStepLog{{
			Description:    record.Title,
			ExpectedResult: "",
			ActualResult:   record.Note,
			Status:         state,
		}},
	}
}

func formatExecutionDate(t time.Time) string {
	return t.UTC().Format(executionDateLayout)
}

func notSent(records []m.TestRecord, cause error) []m.Submission {
	submissions := make([]m.Submission, 0, len(records))
	for _, record := range records {
		submissions = append(submissions, m.Submission{Record: record, Outcome: m.SubmissionNotSent, Error: cause.Error()})
	}

	return submissions
}
