package tui

import (
	"time"

	"mentorctl/internal/harness"
	"mentorctl/internal/model"
	"mentorctl/pkg/logging"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// MaxLogLines bounds the log pane history.
const MaxLogLines = 200

// Run is the view's dependency on a run handle.
type Run interface {
	Snapshot() model.TestSuite
	Subscribe() (<-chan model.TestSuite, func())
	Cancel()
	CancelRequested() bool
	Done() <-chan struct{}
}

var _ Run = (*harness.RunHandle)(nil)

type snapshotMsg model.TestSuite

type runDoneMsg struct{}

type logMsg logging.LogEntry

type logClosedMsg struct{}

type clearStatusMsg struct{ seq int }

// Model is the Bubble Tea model of the run view.
type Model struct {
	run         Run
	snapshots   <-chan model.TestSuite
	unsubscribe func()
	logs        <-chan logging.LogEntry

	suite    model.TestSuite
	logLines []string
	showLog  bool
	showHelp bool
	quitting bool
	finished bool

	status    string
	statusSeq int

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	width   int
	height  int

	// copy writes to the system clipboard. Tests replace it.
	copy func(string) error
}

// NewModel builds the view for run. logs may be nil.
func NewModel(run Run, logs <-chan logging.LogEntry) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle

	snapshots, unsubscribe := run.Subscribe()
	return &Model{
		run:         run,
		snapshots:   snapshots,
		unsubscribe: unsubscribe,
		logs:        logs,
		suite:       run.Snapshot(),
		showLog:     true,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		spinner:     s,
		copy:        clipboard.WriteAll,
	}
}

// Suite returns the last snapshot the view received.
func (m *Model) Suite() model.TestSuite {
	return m.suite
}

// Init starts the spinner and the listeners.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForSnapshot(), m.waitForLog())
}

func (m *Model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.snapshots
		if !ok {
			<-m.run.Done()
			return runDoneMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m *Model) waitForLog() tea.Cmd {
	if m.logs == nil {
		return nil
	}
	return func() tea.Msg {
		entry, ok := <-m.logs
		if !ok {
			return logClosedMsg{}
		}
		return logMsg(entry)
	}
}

func (m *Model) setStatus(text string) tea.Cmd {
	m.status = text
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg { return clearStatusMsg{seq: seq} })
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		m.suite = model.TestSuite(msg)
		return m, m.waitForSnapshot()

	case runDoneMsg:
		m.suite = m.run.Snapshot()
		m.finished = true
		m.unsubscribe()
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case logMsg:
		m.appendLog(logging.LogEntry(msg).String())
		return m, m.waitForLog()

	case logClosedMsg:
		m.logs = nil
		return m, nil

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
		return m, nil

	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.finished {
			return m, tea.Quit
		}
		m.quitting = true
		m.run.Cancel()
		return m, m.setStatus("Cancelling, waiting for restore...")

	case key.Matches(msg, m.keys.Cancel):
		if m.finished {
			return m, nil
		}
		if m.run.CancelRequested() {
			return m, m.setStatus("Cancellation already requested")
		}
		m.run.Cancel()
		return m, m.setStatus("Cancellation requested; the current test will finish first")

	case key.Matches(msg, m.keys.Copy):
		if err := m.copy(summaryText(m.suite)); err != nil {
			m.appendLog("copy failed: " + err.Error())
			return m, m.setStatus("Copy failed")
		}
		return m, m.setStatus("Summary copied to clipboard")

	case key.Matches(msg, m.keys.ToggleLog):
		m.showLog = !m.showLog
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil
	}
	return m, nil
}

func (m *Model) appendLog(line string) {
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > MaxLogLines {
		m.logLines = m.logLines[len(m.logLines)-MaxLogLines:]
	}
}
