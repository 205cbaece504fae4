package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "qtsync.dev/pkg/qtsync/internal/model"
)

const (
	testPad = 5
	hookPad = 4

	logPrefix = "qtsync:"
)

// SimpleUI writes line-oriented output to the command's writers.
type SimpleUI struct {
	out    io.Writer
	errOut io.Writer
	opts   options
	mu     sync.Mutex

	passed  lipgloss.Style
	failed  lipgloss.Style
	faint   lipgloss.Style
	link    lipgloss.Style
	warning lipgloss.Style
}

// NewSimpleUI creates a SimpleUI bound to cmd's output streams. Warnings are on
// and the event log is off unless options say otherwise.
func NewSimpleUI(cmd *cobra.Command, opts ...Option) *SimpleUI {
	return NewWriterUI(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts...)
}

// NewWriterUI creates a SimpleUI over explicit writers.
func NewWriterUI(out, errOut io.Writer, opts ...Option) *SimpleUI {
	o := options{warnings: true}
	for _, opt := range opts {
		opt(&o)
	}

	renderer := lipgloss.NewRenderer(out)

	return &SimpleUI{
		out:     out,
		errOut:  errOut,
		opts:    o,
		passed:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		failed:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		faint:   renderer.NewStyle().Faint(true),
		link:    renderer.NewStyle().Underline(true),
		warning: renderer.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

// RunStarted prints the run banner.
func (s *SimpleUI) RunStarted(ctx context.Context) {
	s.event(ctx, 0, "\nTests execution started...\n")
}

// RunEnded prints the run duration.
func (s *SimpleUI) RunEnded(ctx context.Context, elapsed time.Duration) {
	s.event(ctx, 0, "\nTests execution finished. "+durationMsg(elapsed))
}

// SuiteStarted prints a suite title, indented below the top level.
func (s *SimpleUI) SuiteStarted(ctx context.Context, title string, depth int) {
	if depth <= 1 {
		s.event(ctx, 0, title)
		return
	}

	s.event(ctx, 1, title)
}

// SuiteEnded prints the duration of top-level suites.
func (s *SimpleUI) SuiteEnded(ctx context.Context, _ string, depth int, elapsed time.Duration) {
	if depth > 1 {
		return
	}

	s.event(ctx, 0, "SUITE END "+durationMsg(elapsed)+"\n")
}

// HookStarted prints a hook title.
func (s *SimpleUI) HookStarted(ctx context.Context, title string) {
	s.event(ctx, hookPad, "~ "+title)
}

// HookEnded prints the hook duration.
func (s *SimpleUI) HookEnded(ctx context.Context, _ string, duration time.Duration) {
	s.event(ctx, hookPad, "~ DONE "+durationMsg(duration))
}

// TestStarted prints a test title.
func (s *SimpleUI) TestStarted(ctx context.Context, title string) {
	s.event(ctx, testPad, "> "+title)
}

// TestPassed prints a pass marker.
func (s *SimpleUI) TestPassed(ctx context.Context, test m.Test) {
	s.event(ctx, testPad, s.passed.Render("✓ PASSED")+" "+durationMsg(millis(test.Duration)))
	s.event(ctx, 1, "")
}

// TestFailed prints a failure marker and the failure detail.
func (s *SimpleUI) TestFailed(ctx context.Context, test m.Test, detail string) {
	s.event(ctx, testPad, s.failed.Render("x FAILED")+" "+durationMsg(millis(test.Duration)))

	for _, line := range strings.Split(detail, "\n") {
		s.event(ctx, testPad+2, s.failed.UnsetBold().Render(line))
	}

	s.event(ctx, 1, "")
}

// TestPending prints a pending marker.
func (s *SimpleUI) TestPending(ctx context.Context, test m.Test) {
	s.event(ctx, testPad, s.faint.Render("- PENDING: "+test.Title))
	s.event(ctx, 1, "")
}

// Info prints a progress message. It is always shown.
func (s *SimpleUI) Info(ctx context.Context, msg string) {
	if ctx.Err() != nil {
		return
	}

	s.printf(s.out, "%s %s\n", logPrefix, msg)
}

// Warn prints a diagnostic to the error stream unless warnings are hidden.
func (s *SimpleUI) Warn(ctx context.Context, msg string) {
	if ctx.Err() != nil || !s.opts.warnings {
		return
	}

	s.printf(s.errOut, "%s\n", s.warning.Render(logPrefix+" "+msg))
}

// ResultURL prints where the published results can be found.
func (s *SimpleUI) ResultURL(ctx context.Context, url string) {
	if ctx.Err() != nil {
		return
	}

	s.printf(s.out, "\nResults submitted to qTest %s\n", s.link.Render(url))
}

// DisplaySummary prints a table of records and their publishing outcome.
func (s *SimpleUI) DisplaySummary(ctx context.Context, summary m.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf(s.out, "\n%s", RenderSummaryTable(summary))

	return nil
}

// RenderSummaryTable formats a summary as a plain text table.
func RenderSummaryTable(summary m.Summary) string {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Test Case", "Status", "Run", "Outcome", "Title"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT,
	})

	for _, sub := range summary.Submissions {
		status := sub.Record.Status.String()
		if sub.Record.Synthetic {
			status += "*"
		}

		table.Append([]string{sub.Record.TestCaseID, status, sub.RunID, string(sub.Outcome), sub.Record.Title})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total %d", len(summary.Submissions)),
		"",
		"",
		fmt.Sprintf("%d submitted", summary.Count(m.SubmissionSubmitted)),
		"",
	})

	table.Render()

	return buf.String()
}

func (s *SimpleUI) event(ctx context.Context, pad int, msg string) {
	if ctx.Err() != nil || !s.opts.eventLog {
		return
	}

	prefix := ""
	if pad > 0 {
		prefix = "|" + strings.Repeat(" ", pad)
	}

	s.printf(s.out, "%s%s\n", prefix, msg)
}

func (s *SimpleUI) printf(w io.Writer, format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = fmt.Fprintf(w, format, args...)
}

func durationMsg(d time.Duration) string {
	return fmt.Sprintf("(%dms)", d.Milliseconds())
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
