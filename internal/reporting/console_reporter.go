package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"mentorctl/internal/backend"
	"mentorctl/internal/model"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const nameWidth = 40

var (
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	fatalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")).Bold(true).Padding(0, 1)
)

// ConsoleReporter prints run events as they happen.
type ConsoleReporter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// NewConsoleReporter creates a reporter writing to out.
func NewConsoleReporter(out io.Writer, verbose bool) *ConsoleReporter {
	return &ConsoleReporter{out: out, verbose: verbose}
}

// Attach subscribes the reporter to bus. A nil filter reports every run.
func (c *ConsoleReporter) Attach(bus EventBus, filter EventFilter) *EventSubscription {
	return bus.Subscribe(filter, c.Handle)
}

// Handle renders one event.
func (c *ConsoleReporter) Handle(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := event.(type) {
	case *RunEvent:
		switch e.Type() {
		case EventTypeRunStarted:
			fmt.Fprintf(c.out, "%s (%d tests)\n", titleStyle.Render(e.Suite), e.Total)
		case EventTypeRunCancelled:
			fmt.Fprintln(c.out, warnStyle.Render("Run cancelled, remaining tests skipped"))
		}
	case *BackupEvent:
		switch e.Type() {
		case EventTypeBackupCaptured:
			fmt.Fprintf(c.out, "%s %s\n", dimStyle.Render("backup"), formatCounts(e))
		case EventTypeBackupFailed:
			fmt.Fprintf(c.out, "%s %s\n", failStyle.Render("backup failed:"), e.Error)
		case EventTypeRestoreCompleted:
			fmt.Fprintln(c.out, dimStyle.Render("backend restored"))
		case EventTypeRestoreFailed:
			fmt.Fprintf(c.out, "%s %s\n", fatalStyle.Render("RESTORE FAILED"), e.Error)
		}
	case *TestEvent:
		name := padName(e.TestName)
		switch e.Type() {
		case EventTypeTestRunning:
			if c.verbose {
				fmt.Fprintf(c.out, "  %s %s\n", dimStyle.Render("..."), name)
			}
		case EventTypeTestRetrying:
			fmt.Fprintf(c.out, "  %s %s attempt %d: %s\n", warnStyle.Render("RETRY"), name, e.Attempt, e.Error)
		case EventTypeTestSucceeded:
			fmt.Fprintf(c.out, "  %s %s %s\n", passStyle.Render("PASS "), name, dimStyle.Render(formatDuration(e.Duration)))
		case EventTypeTestFailed:
			fmt.Fprintf(c.out, "  %s %s %s\n", failStyle.Render("FAIL "), name, dimStyle.Render(formatDuration(e.Duration)))
			if e.Error != "" {
				fmt.Fprintf(c.out, "        %s\n", e.Error)
			}
		}
	}
}

// PrintSummary writes the final state of a run.
func PrintSummary(w io.Writer, suite model.TestSuite) {
	status := passStyle.Render(strings.ToUpper(string(suite.Status)))
	if suite.Status == model.SuiteError {
		status = failStyle.Render(strings.ToUpper(string(suite.Status)))
	}
	fmt.Fprintf(w, "\n%s %s: %d passed, %d failed, %d total in %s\n",
		status, suite.Name, suite.PassedTests, suite.FailedTests, suite.TotalTests, formatDuration(suite.Duration))

	if skipped := suite.TotalTests - suite.Finished(); skipped > 0 {
		fmt.Fprintf(w, "%s\n", warnStyle.Render(fmt.Sprintf("%d tests not run", skipped)))
	}
	for _, t := range suite.Tests {
		if t.Status != model.TestError || t.Diagnostics == nil || t.Diagnostics.Diff == "" {
			continue
		}
		fmt.Fprintf(w, "\n%s (%s/%s)\n%s\n", t.Name, t.Diagnostics.Collection, t.Diagnostics.Key, t.Diagnostics.Diff)
	}
	if f := suite.Fatal; f != nil {
		fmt.Fprintf(w, "\n%s %s\n", fatalStyle.Render(string(f.Kind)), f.Message)
		if f.Kind == model.FatalRestore {
			fmt.Fprintf(w, "The backend still holds test data in %v. Restore it manually.\n", f.Pending)
		}
	}
}

// SummaryText is a plain single-line summary for clipboards and tool output.
func SummaryText(suite model.TestSuite) string {
	s := fmt.Sprintf("%s [%s] %s: %d/%d passed, %d failed",
		suite.Name, suite.ID, suite.Status, suite.PassedTests, suite.TotalTests, suite.FailedTests)
	if suite.Fatal != nil {
		s += fmt.Sprintf(" (%s: %s)", suite.Fatal.Kind, suite.Fatal.Message)
	}
	return s
}

func padName(name string) string {
	if runewidth.StringWidth(name) > nameWidth {
		name = runewidth.Truncate(name, nameWidth, "…")
	}
	return runewidth.FillRight(name, nameWidth)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return d.Round(time.Millisecond).String()
}

func formatCounts(e *BackupEvent) string {
	parts := make([]string, 0, len(e.Counts))
	for _, c := range backend.AllCollections {
		if n, ok := e.Counts[c]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", c, n))
		}
	}
	return strings.Join(parts, " ")
}
