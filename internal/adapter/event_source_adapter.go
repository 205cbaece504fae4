package adapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	m "qtsync.dev/pkg/qtsync/internal/model"
	"qtsync.dev/pkg/qtsync/pkg/journal"
)

const (
	maxEventLineSize = 4 << 20

	// runnerStopGrace is how long a cancelled runner may take to exit after
	// being interrupted before it is killed.
	runnerStopGrace = 10 * time.Second
)

// EmitFunc receives decoded runner events in stream order.
type EmitFunc func(event m.Event) error

// EventSource abstracts where runner lifecycle events come from.
type EventSource interface {
	// Stream decodes events and passes them to emit until the stream ends.
	// An error returned by emit stops the stream and is returned as-is.
	Stream(ctx context.Context, emit EmitFunc) error
}

// ReaderEventSource decodes JSON-lines events from a reader (file or stdin).
type ReaderEventSource struct {
	reader io.Reader
}

// NewReaderEventSource constructs a ReaderEventSource over r.
func NewReaderEventSource(r io.Reader) *ReaderEventSource {
	return &ReaderEventSource{reader: r}
}

// Stream implements EventSource.
func (s *ReaderEventSource) Stream(ctx context.Context, emit EmitFunc) error {
	return decodeEvents(ctx, s.reader, emit, nil)
}

// CommandEventSource runs the test runner as a child process and decodes the
// events it writes to stdout. Lines that are not events are copied to Output.
type CommandEventSource struct {
	name   string
	args   []string
	dir    string
	output io.Writer
	errOut io.Writer
}

// NewCommandEventSource constructs a CommandEventSource for the given command line.
func NewCommandEventSource(command []string, dir string, output, errOut io.Writer) *CommandEventSource {
	source := &CommandEventSource{dir: dir, output: output, errOut: errOut}
	if len(command) > 0 {
		source.name = command[0]
		source.args = command[1:]
	}

	return source
}

// Stream implements EventSource. When the runner exits non-zero the returned
// error wraps its *exec.ExitError so callers can propagate the exit code.
func (s *CommandEventSource) Stream(ctx context.Context, emit EmitFunc) error {
	if s.name == "" {
		return errors.New("no runner command given")
	}

	cmd := exec.CommandContext(ctx, s.name, s.args...)
	cmd.Dir = s.dir
	cmd.Stderr = s.errOut
	cmd.WaitDelay = runnerStopGrace
	cmd.Cancel = func() error {
		slog.Info("stopping runner", "command", s.name, "pid", cmd.Process.Pid)

		if err := cmd.Process.Signal(os.Interrupt); err != nil {
			return cmd.Process.Kill()
		}

		return nil
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("runner stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start runner %q: %w", s.name, err)
	}

	slog.Info("runner started", "command", s.name, "args", s.args, "pid", cmd.Process.Pid)

	decodeErr := decodeEvents(ctx, stdout, emit, s.output)
	if decodeErr != nil {
		// Unblock the runner if it is still writing.
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()

	// After cancellation the runner's own exit status is the interesting error.
	if decodeErr != nil && (ctx.Err() == nil || waitErr == nil) {
		return decodeErr
	}

	if waitErr != nil {
		slog.Info("runner exited with error", "command", s.name, "error", waitErr)
		return fmt.Errorf("runner %q: %w", s.name, waitErr)
	}

	return nil
}

func decodeEvents(ctx context.Context, r io.Reader, emit EmitFunc, passthrough io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLineSize)

	lineNo := 0

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())

		if len(line) == 0 {
			continue
		}

		event, ok := parseEventLine(line, lineNo)
		if !ok {
			if passthrough != nil {
				_, _ = fmt.Fprintf(passthrough, "%s\n", scanner.Bytes())
			}

			continue
		}

		if err := emit(event); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}

	return nil
}

func parseEventLine(line []byte, lineNo int) (m.Event, bool) {
	if line[0] != '{' {
		slog.Debug("skipping non-event line", "line", lineNo)
		return m.Event{}, false
	}

	var event m.Event
	if err := json.Unmarshal(line, &event); err != nil {
		slog.Warn("skipping malformed event", "line", lineNo, "error", err)
		return m.Event{}, false
	}

	if err := event.Validate(); err != nil {
		slog.Warn("skipping invalid event", "line", lineNo, "error", err)
		return m.Event{}, false
	}

	if event.Suite != nil {
		event.Suite.LinkParents()
	}

	return event, true
}

// JournalEventSource replays events recorded by a previous run.
type JournalEventSource struct {
	path string
}

// NewJournalEventSource constructs a JournalEventSource for the journal at path.
func NewJournalEventSource(path string) *JournalEventSource {
	return &JournalEventSource{path: path}
}

// Stream implements EventSource.
func (s *JournalEventSource) Stream(ctx context.Context, emit EmitFunc) error {
	events, err := journal.Open[m.Event](s.path)
	if err != nil {
		return fmt.Errorf("open journal %s: %w", s.path, err)
	}

	defer func() {
		if err := events.Close(); err != nil {
			slog.Warn("failed to close journal", "path", s.path, "error", err)
		}
	}()

	slog.Info("replaying journal", "path", s.path, "events", events.Len())

	return events.Range(func(_ uint64, event m.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if event.Suite != nil {
			event.Suite.LinkParents()
		}

		return emit(event)
	})
}
