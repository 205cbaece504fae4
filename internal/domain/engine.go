package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"qtsync.dev/pkg/qtsync/internal/adapter"
	"qtsync.dev/pkg/qtsync/internal/controller"
	m "qtsync.dev/pkg/qtsync/internal/model"
)

// Engine turns runner lifecycle events into published execution logs.
// Apply and Finish must be called from a single goroutine; Close may be called
// from anywhere, any number of times.
type Engine interface {
	// Begin starts suite resolution. It is idempotent and also triggered by run-start.
	Begin(ctx context.Context)
	// Apply feeds one runner event to the engine. A run-end event triggers Finish.
	Apply(ctx context.Context, event m.Event) error
	// Finish recovers orphans and publishes every record. It runs once; later
	// calls return the first result.
	Finish(ctx context.Context) (m.Summary, error)
	// Close prints the report location once, after Finish has submitted the
	// records. Calls before that are no-ops.
	Close()
	// Resolution returns the suite resolution, or nil before Begin.
	Resolution() *Resolution
}

// EngineOption customizes an engine.
type EngineOption func(*engine)

// WithSyncID tags the engine's summary and logs.
func WithSyncID(id string) EngineOption {
	return func(e *engine) {
		e.syncID = id
	}
}

// WithClock replaces the time source used for events without a timestamp.
func WithClock(now func() time.Time) EngineOption {
	return func(e *engine) {
		e.now = now
	}
}

func withShutdownRegistry(registry *shutdownRegistry) EngineOption {
	return func(e *engine) {
		e.shutdown = registry
	}
}

type engine struct {
	cfg       *m.Config
	ui        controller.UI
	resolver  Resolver
	scheduler Scheduler
	acc       Accumulator
	shutdown  *shutdownRegistry
	now       func() time.Time
	syncID    string

	configErr  error
	resolution *Resolution

	root        *m.Suite
	suiteStarts []time.Time
	runStart    time.Time
	runEnd      time.Time

	finished   bool
	summary    m.Summary
	summaryErr error

	submitted atomic.Bool
	closeOnce sync.Once
}

// NewEngine constructs an Engine for one sync.
func NewEngine(cfg *m.Config, client adapter.QTestClient, ui controller.UI, opts ...EngineOption) Engine {
	e := &engine{
		cfg:       cfg,
		ui:        ui,
		resolver:  NewResolver(cfg, client),
		scheduler: NewScheduler(cfg, client),
		shutdown:  processShutdown,
		now:       time.Now,
		configErr: cfg.Validate(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.acc = NewAccumulator(e.publishing)

	return e
}

func (e *engine) Resolution() *Resolution {
	return e.resolution
}

// publishing reports whether new records may still be published.
func (e *engine) publishing() bool {
	if e.configErr != nil {
		return false
	}

	return e.resolution == nil || e.resolution.State() != ResolutionFailed
}

func (e *engine) Begin(ctx context.Context) {
	if e.resolution != nil {
		return
	}

	if e.configErr != nil {
		slog.Warn("remote publishing disabled", "syncID", e.syncID, "error", e.configErr)
		e.ui.Warn(ctx, "disabled: "+e.configErr.Error())
		e.resolution = FailedResolution(e.configErr)

		return
	}

	switch e.cfg.Strategy() {
	case m.StrategyExistingSuite:
		e.ui.Info(ctx, "getting test runs of test suite "+e.cfg.SuiteID)
	case m.StrategyNewSuite:
		e.ui.Info(ctx, fmt.Sprintf("creating test suite %q under %s %s", e.cfg.SuiteName, e.cfg.ParentType, e.cfg.ParentID))
	case m.StrategyNone:
	}

	e.resolution = e.resolver.Resolve(ctx)
	e.shutdown.register(e.Close)
}

func (e *engine) Apply(ctx context.Context, event m.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	at := event.Time
	if at.IsZero() {
		at = e.now()
	}

	switch event.Kind {
	case m.EventRunStart:
		e.Begin(ctx)
		e.runStart = at
		e.ui.RunStarted(ctx)

	case m.EventSuiteStart:
		e.suiteStarted(ctx, event.Suite, at)

	case m.EventSuiteEnd:
		e.suiteEnded(ctx, event.Suite, at)

	case m.EventHookStart:
		if !isGlobalHook(event.Hook) {
			e.ui.HookStarted(ctx, event.Hook.Title)
		}

	case m.EventHookEnd:
		if !isGlobalHook(event.Hook) {
			e.ui.HookEnded(ctx, event.Hook.Title, time.Duration(event.Hook.Duration)*time.Millisecond)
		}

	case m.EventTestStart:
		e.ui.TestStarted(ctx, event.Test.Title)
		e.acc.Start(event.Test.Title, at)

	case m.EventTestPass:
		e.ui.TestPassed(ctx, *event.Test)
		e.acc.Pass(event.Test.Title, at)

	case m.EventTestFail:
		detail := event.Err.Detail()
		e.ui.TestFailed(ctx, *event.Test, detail)
		e.acc.Fail(event.Test.Title, detail, at)

	case m.EventTestPending:
		e.ui.TestPending(ctx, *event.Test)
		e.acc.Pending(event.Test.Title, at)

	case m.EventTestEnd:
		e.acc.End(event.Test.Title, at)

	case m.EventRunEnd:
		if event.Suite != nil && event.Suite.Root {
			e.root = event.Suite.Clone()
		}

		e.runEnd = at
		e.ui.RunEnded(ctx, e.runEnd.Sub(e.runStart))

		if _, err := e.Finish(ctx); err != nil {
			slog.Warn("results were not published", "syncID", e.syncID, "error", err)
		}
	}

	return nil
}

func (e *engine) suiteStarted(ctx context.Context, suite *m.Suite, at time.Time) {
	if suite.Root {
		e.root = suite.Clone()
		return
	}

	e.suiteStarts = append(e.suiteStarts, at)
	e.ui.SuiteStarted(ctx, suite.Title, len(e.suiteStarts))
}

func (e *engine) suiteEnded(ctx context.Context, suite *m.Suite, at time.Time) {
	if suite.Root || len(e.suiteStarts) == 0 {
		return
	}

	depth := len(e.suiteStarts)
	started := e.suiteStarts[depth-1]
	e.suiteStarts = e.suiteStarts[:depth-1]

	e.ui.SuiteEnded(ctx, suite.Title, depth, at.Sub(started))
}

func (e *engine) Finish(ctx context.Context) (m.Summary, error) {
	if e.finished {
		return e.summary, e.summaryErr
	}

	e.finished = true
	e.Begin(ctx)

	if e.runEnd.IsZero() {
		e.runEnd = e.now()
	}

	if e.runStart.IsZero() {
		e.runStart = e.runEnd
	}

	if e.publishing() && e.root != nil {
		orphans := RecoverOrphans(e.root, e.acc.Has, e.runStart, e.runEnd)
		if added := e.acc.Merge(orphans); added > 0 {
			slog.Info("recovered orphan tests", "syncID", e.syncID, "count", added)
		}
	}

	submissions, err := e.scheduler.Submit(ctx, e.acc.Records(), e.resolution)
	if err != nil && !errors.Is(err, e.configErr) {
		e.ui.Warn(ctx, "results were not submitted: "+err.Error())
	}

	e.summary = e.buildSummary(submissions, err)
	e.summaryErr = err
	e.submitted.Store(true)

	if displayErr := e.ui.DisplaySummary(ctx, e.summary); displayErr != nil {
		slog.Warn("failed to display summary", "error", displayErr)
	}

	return e.summary, err
}

func (e *engine) buildSummary(submissions []m.Submission, err error) m.Summary {
	summary := m.Summary{
		SyncID:      e.syncID,
		StartedAt:   e.runStart,
		FinishedAt:  e.runEnd,
		Submissions: submissions,
	}

	if value, ok := e.resolution.Value(); ok {
		summary.SuiteID = value.SuiteID
		summary.ReportURL = e.cfg.ReportURL(value.SuiteID)
		summary.Publishing = true
	}

	if err != nil {
		summary.Error = err.Error()
	}

	return summary
}

func (e *engine) Close() {
	// Shutdown hooks may fire while events are still being applied.
	if !e.submitted.Load() {
		return
	}

	e.closeOnce.Do(func() {
		if e.cfg.HideResultURL || e.resolution == nil {
			return
		}

		value, ok := e.resolution.Value()
		if !ok {
			return
		}

		e.ui.ResultURL(context.Background(), e.cfg.ReportURL(value.SuiteID))
	})
}

func isGlobalHook(hook *m.Hook) bool {
	return strings.Contains(hook.Title, "Global")
}
