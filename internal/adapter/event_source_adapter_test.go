package adapter

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "qtsync.dev/pkg/qtsync/internal/model"
	"qtsync.dev/pkg/qtsync/pkg/journal"
)

const sampleStream = `{"event":"run-start"}
{"event":"suite-start","suite":{"title":"","root":true,"suites":[{"title":"auth","tests":[{"title":"checks login @qTest[TC-1]"}]}]}}
not an event
{"event":"test-start","test":{"title":"checks login @qTest[TC-1]"}}
{"event":"bogus"}
{"event":"test-fail","test":{"title":"checks login @qTest[TC-1]","duration":12},"error":{"message":"timeout","stack":"Error: timeout"}}
{"event":"test-end","test":{"title":"checks login @qTest[TC-1]"}}

{"event":"run-end"}
`

func collect(t *testing.T, source EventSource) []m.Event {
	t.Helper()

	var events []m.Event

	err := source.Stream(context.Background(), func(event m.Event) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)

	return events
}

func TestReaderEventSource_Stream(t *testing.T) {
	events := collect(t, NewReaderEventSource(strings.NewReader(sampleStream)))

	kinds := make([]m.EventKind, 0, len(events))
	for _, event := range events {
		kinds = append(kinds, event.Kind)
	}

	assert.Equal(t, []m.EventKind{
		m.EventRunStart,
		m.EventSuiteStart,
		m.EventTestStart,
		m.EventTestFail,
		m.EventTestEnd,
		m.EventRunEnd,
	}, kinds)

	root := events[1].Suite
	require.NotNil(t, root)
	require.Len(t, root.Suites, 1)
	assert.Same(t, root, root.Suites[0].Parent(), "parent links are restored")

	assert.Equal(t, "Error: timeout", events[3].Err.Detail())
	assert.Equal(t, int64(12), events[3].Test.Duration)
}

func TestReaderEventSource_EmitErrorStopsStream(t *testing.T) {
	stop := errors.New("stop")
	calls := 0

	err := NewReaderEventSource(strings.NewReader(sampleStream)).Stream(context.Background(), func(m.Event) error {
		calls++
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestReaderEventSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewReaderEventSource(strings.NewReader(sampleStream)).Stream(ctx, func(m.Event) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCommandEventSource_Stream(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	var output, errOut bytes.Buffer

	source := NewCommandEventSource([]string{"sh", "-c", `printf '%s\n' 'runner banner' '{"event":"run-start"}' '{"event":"run-end"}'`}, "", &output, &errOut)
	events := collect(t, source)

	require.Len(t, events, 2)
	assert.Equal(t, m.EventRunStart, events[0].Kind)
	assert.Equal(t, m.EventRunEnd, events[1].Kind)
	assert.Contains(t, output.String(), "runner banner")
}

func TestCommandEventSource_ExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	source := NewCommandEventSource([]string{"sh", "-c", `echo '{"event":"run-start"}'; exit 3`}, "", &bytes.Buffer{}, &bytes.Buffer{})

	var events []m.Event

	err := source.Stream(context.Background(), func(event m.Event) error {
		events = append(events, event)
		return nil
	})
	require.Error(t, err)

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
	assert.Len(t, events, 1)
}

func TestCommandEventSource_CancelInterruptsRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	script := `trap 'exit 130' INT; echo '{"event":"run-start"}'; sleep 5 >/dev/null 2>&1 & wait`
	source := NewCommandEventSource([]string{"sh", "-c", script}, "", &bytes.Buffer{}, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events []m.Event

	err := source.Stream(ctx, func(event m.Event) error {
		events = append(events, event)
		cancel()

		return nil
	})

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 130, exitErr.ExitCode())
	assert.Len(t, events, 1)
}

func TestCommandEventSource_NoCommand(t *testing.T) {
	err := NewCommandEventSource(nil, "", nil, nil).Stream(context.Background(), func(m.Event) error { return nil })
	assert.Error(t, err)
}

func TestJournalEventSource_Replay(t *testing.T) {
	recorded := collect(t, NewReaderEventSource(strings.NewReader(sampleStream)))

	path := filepath.Join(t.TempDir(), "events.gob")
	events, err := journal.Create[m.Event](path)
	require.NoError(t, err)

	for _, event := range recorded {
		require.NoError(t, events.Append(event))
	}

	require.NoError(t, events.Close())

	replayed := collect(t, NewJournalEventSource(path))
	require.Len(t, replayed, len(recorded))

	for i := range recorded {
		assert.Equal(t, recorded[i].Kind, replayed[i].Kind)
	}

	root := replayed[1].Suite
	require.NotNil(t, root)
	require.Len(t, root.Suites, 1)
	assert.Same(t, root, root.Suites[0].Parent())
	assert.Equal(t, "timeout", replayed[3].Err.Message)
}

func TestJournalEventSource_Missing(t *testing.T) {
	err := NewJournalEventSource(filepath.Join(t.TempDir(), "missing.gob")).Stream(context.Background(), func(m.Event) error {
		return nil
	})
	assert.Error(t, err)
}
