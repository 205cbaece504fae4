// Package controller provides the console output of a sync: the live event log,
// diagnostics and the final summary table.
package controller

import (
	"context"
	"time"

	m "qtsync.dev/pkg/qtsync/internal/model"
)

// Option configures a console UI.
type Option func(*options)

type options struct {
	eventLog bool
	warnings bool
}

// WithEventLog enables echoing every runner event.
func WithEventLog(enabled bool) Option {
	return func(o *options) {
		o.eventLog = enabled
	}
}

// WithWarnings toggles warning output.
func WithWarnings(enabled bool) Option {
	return func(o *options) {
		o.warnings = enabled
	}
}

// UI defines the console output of a sync.
// Implementations must tolerate concurrent calls from a shutdown hook.
type UI interface {
	RunStarted(ctx context.Context)
	RunEnded(ctx context.Context, elapsed time.Duration)
	SuiteStarted(ctx context.Context, title string, depth int)
	SuiteEnded(ctx context.Context, title string, depth int, elapsed time.Duration)
	HookStarted(ctx context.Context, title string)
	HookEnded(ctx context.Context, title string, duration time.Duration)
	TestStarted(ctx context.Context, title string)
	TestPassed(ctx context.Context, test m.Test)
	TestFailed(ctx context.Context, test m.Test, detail string)
	TestPending(ctx context.Context, test m.Test)
	Info(ctx context.Context, msg string)
	Warn(ctx context.Context, msg string)
	ResultURL(ctx context.Context, url string)
	DisplaySummary(ctx context.Context, summary m.Summary) error
}
