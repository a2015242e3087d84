package tui

import (
	"fmt"
	"strings"
	"time"

	"mentorctl/internal/model"
	"mentorctl/internal/reporting"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	nameWidth   = 36
	logPaneRows = 8
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	fatalStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")).Padding(0, 1)
	statusStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("14"))
	paneStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)

var summaryText = reporting.SummaryText

// View renders the run.
func (m *Model) View() string {
	var b strings.Builder
	s := m.suite

	header := titleStyle.Render(s.Name)
	if !m.finished {
		header = m.spinner.View() + " " + header
	}
	b.WriteString(header + " " + m.renderSuiteStatus() + "\n")
	if s.Description != "" {
		b.WriteString(dimStyle.Render(s.Description) + "\n")
	}
	b.WriteString(fmt.Sprintf("%d/%d done  %s  %s\n\n",
		s.Finished(), s.TotalTests,
		passStyle.Render(fmt.Sprintf("%d passed", s.PassedTests)),
		failStyle.Render(fmt.Sprintf("%d failed", s.FailedTests))))

	for _, t := range s.Tests {
		b.WriteString(m.renderTest(t) + "\n")
	}

	if f := s.Fatal; f != nil {
		b.WriteString("\n" + fatalStyle.Render(string(f.Kind)) + " " + f.Message + "\n")
		if len(f.Pending) > 0 {
			b.WriteString(failStyle.Render(fmt.Sprintf("collections still holding test data: %v", f.Pending)) + "\n")
		}
	}

	if m.showLog && len(m.logLines) > 0 {
		b.WriteString("\n" + paneStyle.Width(m.paneWidth()).Render(strings.Join(m.tailLog(), "\n")) + "\n")
	}

	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderSuiteStatus() string {
	s := m.suite
	switch {
	case s.Status == model.SuiteCompleted:
		return passStyle.Render("completed")
	case s.Status == model.SuiteError && s.Cancelled:
		return failStyle.Render("cancelled")
	case s.Status == model.SuiteError:
		return failStyle.Render("error")
	case m.run.CancelRequested():
		return runningStyle.Render("cancelling")
	default:
		return runningStyle.Render(string(s.Status))
	}
}

func (m *Model) renderTest(t model.TestResult) string {
	name := runewidth.FillRight(runewidth.Truncate(t.Name, nameWidth, "…"), nameWidth)
	var icon, detail string
	switch t.Status {
	case model.TestRunning:
		icon = runningStyle.Render(m.spinner.View())
		if t.Attempts > 1 {
			detail = dimStyle.Render(fmt.Sprintf("attempt %d", t.Attempts))
		}
	case model.TestSuccess:
		icon = passStyle.Render("✓")
		detail = dimStyle.Render(t.Duration.Round(time.Millisecond).String())
	case model.TestError:
		icon = failStyle.Render("✗")
		if t.Error != nil {
			detail = failStyle.Render(t.Error.Message)
		}
	default:
		icon = dimStyle.Render("·")
	}
	return fmt.Sprintf(" %s %s %s", icon, name, detail)
}

func (m *Model) tailLog() []string {
	lines := m.logLines
	if len(lines) > logPaneRows {
		lines = lines[len(lines)-logPaneRows:]
	}
	width := m.paneWidth() - 4
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = runewidth.Truncate(l, width, "…")
	}
	return out
}

func (m *Model) paneWidth() int {
	if m.width <= 0 {
		return 100
	}
	return m.width - 2
}
