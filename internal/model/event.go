// Package model defines the data structures shared by the qtsync engine and its adapters.
package model

import (
	"fmt"
	"time"
)

// EventKind names a test runner lifecycle event.
type EventKind string

// Runner lifecycle events, in the order a runner usually emits them.
const (
	EventRunStart    EventKind = "run-start"
	EventSuiteStart  EventKind = "suite-start"
	EventHookStart   EventKind = "hook-start"
	EventHookEnd     EventKind = "hook-end"
	EventTestStart   EventKind = "test-start"
	EventTestPass    EventKind = "test-pass"
	EventTestFail    EventKind = "test-fail"
	EventTestPending EventKind = "test-pending"
	EventTestEnd     EventKind = "test-end"
	EventSuiteEnd    EventKind = "suite-end"
	EventRunEnd      EventKind = "run-end"
)

var knownEventKinds = map[EventKind]struct{}{
	EventRunStart:    {},
	EventSuiteStart:  {},
	EventHookStart:   {},
	EventHookEnd:     {},
	EventTestStart:   {},
	EventTestPass:    {},
	EventTestFail:    {},
	EventTestPending: {},
	EventTestEnd:     {},
	EventSuiteEnd:    {},
	EventRunEnd:      {},
}

// Valid reports whether k is one of the known lifecycle events.
func (k EventKind) Valid() bool {
	_, ok := knownEventKinds[k]
	return ok
}

// Event is a single lifecycle notification from the test runner.
type Event struct {
	Kind  EventKind  `json:"event"`
	Test  *Test      `json:"test,omitempty"`
	Suite *Suite     `json:"suite,omitempty"`
	Hook  *Hook      `json:"hook,omitempty"`
	Err   *TestError `json:"error,omitempty"`
	Time  time.Time  `json:"time,omitempty"`
}

// Validate checks that the payload required by the event kind is present.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown event %q", e.Kind)
	}

	switch e.Kind {
	case EventTestStart, EventTestPass, EventTestFail, EventTestPending, EventTestEnd:
		if e.Test == nil {
			return fmt.Errorf("event %q requires a test", e.Kind)
		}
	case EventSuiteStart, EventSuiteEnd:
		if e.Suite == nil {
			return fmt.Errorf("event %q requires a suite", e.Kind)
		}
	case EventHookStart, EventHookEnd:
		if e.Hook == nil {
			return fmt.Errorf("event %q requires a hook", e.Kind)
		}
	case EventRunStart, EventRunEnd:
	}

	return nil
}

// Test is the runner's view of a single test case.
type Test struct {
	Title    string `json:"title"`
	Duration int64  `json:"duration,omitempty"` // milliseconds
	Pending  bool   `json:"pending,omitempty"`
}

// Hook is a setup or teardown step (before, beforeEach, after, afterEach).
type Hook struct {
	Title    string `json:"title"`
	Duration int64  `json:"duration,omitempty"` // milliseconds
}

// TestError carries failure details reported with a test-fail event.
type TestError struct {
	Message string `json:"message,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// Detail returns the most descriptive failure text available.
func (e *TestError) Detail() string {
	if e == nil {
		return ""
	}

	if e.Stack != "" {
		return e.Stack
	}

	return e.Message
}
