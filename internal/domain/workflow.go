package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"qtsync.dev/pkg/qtsync/internal/adapter"
	"qtsync.dev/pkg/qtsync/internal/controller"
	m "qtsync.dev/pkg/qtsync/internal/model"
	"qtsync.dev/pkg/qtsync/pkg/journal"
)

const eventBuffer = 256

// ErrInterrupted is returned by Sync when a shutdown signal stopped the event
// stream and the source reported no error of its own.
var ErrInterrupted = errors.New("sync interrupted")

// SyncArgs contains the arguments of a single sync.
type SyncArgs struct {
	Config *m.Config
	Source adapter.EventSource
	// Reports is the directory the summary is written to. Empty disables it.
	Reports string
	// Journal is the file every event is recorded to. Empty disables it.
	Journal string
}

// ViewArgs contains the arguments for displaying a previous sync.
type ViewArgs struct {
	Reports string
}

// Workflow defines the top-level operations of the CLI.
type Workflow interface {
	// Sync streams runner events through an engine and publishes the results.
	// The returned error is the event source's own error (for example the
	// runner's exit status); publishing problems are reported in the summary.
	Sync(ctx context.Context, args SyncArgs) (m.Summary, error)
	// View displays the most recent saved summary.
	View(ctx context.Context, args ViewArgs) error
}

// ClientFactory builds the remote client for a configuration.
type ClientFactory func(cfg *m.Config) adapter.QTestClient

// UIFactory builds the console UI for a configuration.
type UIFactory func(cfg *m.Config) controller.UI

type workflow struct {
	adapter.ReportStore
	newClient ClientFactory
	newUI     UIFactory
	shutdown  *shutdownRegistry
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(reportStore adapter.ReportStore, newClient ClientFactory, newUI UIFactory) Workflow {
	return &workflow{
		ReportStore: reportStore,
		newClient:   newClient,
		newUI:       newUI,
		shutdown:    processShutdown,
	}
}

func (w *workflow) Sync(ctx context.Context, args SyncArgs) (m.Summary, error) {
	if args.Config == nil {
		return m.Summary{}, errors.New("sync requires a configuration")
	}

	if args.Source == nil {
		return m.Summary{}, errors.New("sync requires an event source")
	}

	syncID := uuid.NewString()
	ui := w.newUI(args.Config)

	engine := NewEngine(args.Config, w.newClient(args.Config), ui,
		WithSyncID(syncID), withShutdownRegistry(w.shutdown))

	slog.Info("sync started", "syncID", syncID, "strategy", args.Config.Strategy())

	recorder := w.openJournal(args.Journal)
	engine.Begin(ctx)

	events := make(chan m.Event, eventBuffer)
	group, groupCtx := errgroup.WithContext(ctx)

	// A shutdown signal stops only the source; collected events are still published.
	streamCtx, stopStream := context.WithCancel(groupCtx)
	defer stopStream()

	var interrupted atomic.Bool

	w.shutdown.register(func() {
		if streamCtx.Err() != nil {
			return
		}

		interrupted.Store(true)
		ui.Warn(ctx, "interrupted: stopping the runner and publishing collected results")
		stopStream()
	})

	group.Go(func() error {
		defer close(events)

		return args.Source.Stream(streamCtx, func(event m.Event) error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			case events <- event:
				return nil
			}
		})
	})

	group.Go(func() error {
		for event := range events {
			if event.Time.IsZero() {
				event.Time = time.Now()
			}

			recorder = record(recorder, event)

			if err := engine.Apply(ctx, event); err != nil {
				slog.Warn("ignoring event", "syncID", syncID, "event", event.Kind, "error", err)
			}
		}

		return nil
	})

	streamErr := group.Wait()
	if interrupted.Load() && (streamErr == nil || errors.Is(streamErr, context.Canceled)) {
		streamErr = ErrInterrupted
	}

	if streamErr != nil {
		slog.Info("event stream ended with error", "syncID", syncID, "error", streamErr)
	}

	closeJournal(recorder)

	summary, err := engine.Finish(ctx)
	if err != nil {
		slog.Warn("sync finished without publishing", "syncID", syncID, "error", err)
	}

	engine.Close()

	if args.Reports != "" {
		path, saveErr := w.SaveSummary(args.Reports, summary)
		if saveErr != nil {
			ui.Warn(ctx, fmt.Sprintf("failed to save summary: %v", saveErr))
		} else {
			slog.Info("summary saved", "syncID", syncID, "path", path)
		}
	}

	slog.Info("sync finished", "syncID", syncID,
		"submitted", summary.Count(m.SubmissionSubmitted),
		"failed", summary.Count(m.SubmissionFailed),
		"skipped", summary.Count(m.SubmissionSkipped),
		"notSent", summary.Count(m.SubmissionNotSent),
	)

	return summary, streamErr
}

func (w *workflow) View(ctx context.Context, args ViewArgs) error {
	summary, err := w.LoadLatest(args.Reports)
	if err != nil {
		return fmt.Errorf("load summary: %w", err)
	}

	ui := w.newUI(&m.Config{})
	if summary.ReportURL != "" {
		ui.ResultURL(ctx, summary.ReportURL)
	}

	if err := ui.DisplaySummary(ctx, summary); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	return nil
}

func (w *workflow) openJournal(path string) journal.Journal[m.Event] {
	if path == "" {
		return nil
	}

	j, err := journal.Create[m.Event](path)
	if err != nil {
		slog.Warn("event journal disabled", "path", path, "error", err)
		return nil
	}

	return j
}

// record appends event to j and disables the journal after the first failure.
func record(j journal.Journal[m.Event], event m.Event) journal.Journal[m.Event] {
	if j == nil {
		return nil
	}

	if err := j.Append(event); err != nil {
		slog.Warn("event journal disabled", "path", j.Path(), "error", err)
		closeJournal(j)

		return nil
	}

	return j
}

func closeJournal(j journal.Journal[m.Event]) {
	if j == nil {
		return
	}

	if err := j.Close(); err != nil {
		slog.Warn("failed to close event journal", "path", j.Path(), "error", err)
	}
}
