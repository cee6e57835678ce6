// Package tui renders live run progress with Bubble Tea. It consumes
// task lifecycle events from the runner and draws currently running
// tasks, recent completions, and aggregate counters.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joss/chore/internal/runner"
	"github.com/joss/chore/internal/summary"
	"github.com/joss/chore/internal/text"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	cachedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("37"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// recentLimit caps the completed-task scrollback shown above the
// running set.
const recentLimit = 8

type taskMsg runner.Event
type doneMsg struct{}

// Progress is a live progress display. It implements runner.EventSink;
// events may arrive from any goroutine.
type Progress struct {
	program *tea.Program
}

// NewProgress creates a progress display for a run of total tasks.
// onInterrupt is called when the user presses ctrl+c; it should cancel
// the run (the display itself keeps going until Finish).
func NewProgress(total int, onInterrupt func()) *Progress {
	m := newModel(total, onInterrupt)
	return &Progress{program: tea.NewProgram(m)}
}

// Run blocks until the display exits. Call from its own goroutine.
func (p *Progress) Run() error {
	_, err := p.program.Run()
	return err
}

// TaskEvent forwards a runner event into the display.
func (p *Progress) TaskEvent(e runner.Event) {
	p.program.Send(taskMsg(e))
}

// Finish tells the display the run is over.
func (p *Progress) Finish() {
	p.program.Send(doneMsg{})
}

type model struct {
	spinner spinner.Model

	total   int
	done    int
	cached  int
	failed  int
	started time.Time

	running map[string]time.Time
	recent  []string

	onInterrupt func()
	interrupted bool
	quitting    bool
}

func newModel(total int, onInterrupt func()) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return model{
		spinner:     s,
		total:       total,
		started:     time.Now(),
		running:     make(map[string]time.Time),
		onInterrupt: onInterrupt,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.onInterrupt != nil && !m.interrupted {
				m.interrupted = true
				m.onInterrupt()
			}
			return m, nil
		case "q":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case taskMsg:
		return m.applyEvent(runner.Event(msg)), nil

	case doneMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) applyEvent(e runner.Event) model {
	switch e.Kind {
	case runner.EventStarted:
		m.running[e.TaskID] = time.Now()

	case runner.EventCached:
		delete(m.running, e.TaskID)
		m.done++
		m.cached++
		note := "cache hit"
		if e.CacheStatus == summary.CacheRemote {
			note = "cache hit (remote)"
		}
		m.recent = m.push(cachedStyle.Render("» ") + e.TaskID + dimStyle.Render("  "+note))

	case runner.EventSuccess:
		delete(m.running, e.TaskID)
		m.done++
		line := runningStyle.Render("✓ ") + e.TaskID
		if e.Duration > 0 {
			line += dimStyle.Render("  " + text.FormatDuration(e.Duration))
		}
		m.recent = m.push(line)

	case runner.EventFailed:
		delete(m.running, e.TaskID)
		m.done++
		m.failed++
		line := failedStyle.Render("✗ ") + e.TaskID
		if e.Err != nil {
			line += dimStyle.Render("  " + text.Truncate(e.Err.Error(), 60))
		}
		m.recent = m.push(line)

	case runner.EventSkipped:
		m.done++
		m.recent = m.push(dimStyle.Render("- " + e.TaskID + "  skipped"))
	}
	return m
}

func (m model) push(line string) []string {
	recent := append(m.recent, line)
	if len(recent) > recentLimit {
		recent = recent[len(recent)-recentLimit:]
	}
	return recent
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n\n",
		titleStyle.Render("chore"),
		dimStyle.Render(fmt.Sprintf("%d/%d tasks  %s elapsed",
			m.done, m.total, text.FormatDuration(time.Since(m.started)))))

	for _, line := range m.recent {
		sb.WriteString(line + "\n")
	}

	ids := make([]string, 0, len(m.running))
	for id := range m.running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(&sb, "%s %s %s\n",
			m.spinner.View(), id,
			dimStyle.Render(text.FormatDuration(time.Since(m.running[id]))))
	}

	if m.failed > 0 {
		sb.WriteString("\n" + failedStyle.Render(fmt.Sprintf("%d failed", m.failed)) + "\n")
	}
	if m.interrupted {
		sb.WriteString("\n" + failedStyle.Render("canceling...") + "\n")
	}
	sb.WriteString(dimStyle.Render("\nq to hide, ctrl+c to cancel\n"))
	return sb.String()
}
