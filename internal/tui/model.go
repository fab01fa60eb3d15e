// Package tui renders live agent progress in the terminal. The model is fed
// exclusively by bus events, so it never touches plan or terminal state
// directly.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/Iron-Ham/aide/internal/event"
)

const (
	defaultDescriptionLines = 6
	terminalTailLines       = 5
)

// eventMsg carries a bus event into the Bubble Tea loop.
type eventMsg struct{ event.Event }

// stepView is the rendered state of one plan step.
type stepView struct {
	id          string
	index       int
	title       string
	description string
	complete    bool
}

// Options configures the viewer.
type Options struct {
	// MaxDescriptionLines caps how much of each step description is shown.
	MaxDescriptionLines int
	// QuitOnFinish exits the program when the agent finishes.
	QuitOnFinish bool
}

// Model is the Bubble Tea model for the plan viewer.
type Model struct {
	opts    Options
	spinner spinner.Model
	width   int

	sessionID string
	status    string
	steps     []stepView // ordered by index
	answer    strings.Builder
	terminal  []string
	command   string

	finished bool
	success  bool
	reason   string
	quitting bool
}

// NewModel creates a viewer model.
func NewModel(opts Options) Model {
	if opts.MaxDescriptionLines <= 0 {
		opts.MaxDescriptionLines = defaultDescriptionLines
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return Model{opts: opts, spinner: s, status: "idle"}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m = m.apply(msg.Event)
		if m.finished && m.opts.QuitOnFinish {
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

// apply folds one bus event into the model.
func (m Model) apply(e event.Event) Model {
	switch e := e.(type) {
	case event.PlanStepAddedEvent:
		m.sessionID = e.SessionID
		m.upsert(stepView{id: e.StepID, index: e.Index, title: e.Title, description: e.Description})
	case event.PlanStepChangedEvent:
		if s := m.step(e.Index); s != nil {
			s.description = e.Description
		}
	case event.PlanStepCompletedEvent:
		if s := m.step(e.Index); s != nil {
			s.complete = true
		}
	case event.AgentTextEvent:
		m.sessionID = e.SessionID
		m.answer.WriteString(e.Delta)
	case event.AgentFinishedEvent:
		m.finished = true
		m.success = e.Success
		m.reason = e.Reason
	case event.ContextKeyChangedEvent:
		if e.Key == "aide.probe.status" {
			m.status = fmt.Sprint(e.NewValue)
		}
	case event.TerminalStartedEvent:
		m.command = e.Command
		m.terminal = nil
	case event.TerminalLineEvent:
		m.terminal = append(m.terminal, e.Line)
		if len(m.terminal) > terminalTailLines {
			m.terminal = m.terminal[len(m.terminal)-terminalTailLines:]
		}
	case event.TerminalCompletedEvent:
		m.terminal = append(m.terminal, fmt.Sprintf("[exit %d]", e.ExitCode))
	}
	return m
}

// upsert inserts s in index order. The steps slice is copied first so that
// earlier Model values stay unchanged.
func (m *Model) upsert(s stepView) {
	steps := make([]stepView, 0, len(m.steps)+1)
	inserted := false
	for _, cur := range m.steps {
		if cur.index == s.index {
			return
		}
		if !inserted && cur.index > s.index {
			steps = append(steps, s)
			inserted = true
		}
		steps = append(steps, cur)
	}
	if !inserted {
		steps = append(steps, s)
	}
	m.steps = steps
}

func (m *Model) step(index int) *stepView {
	for i := range m.steps {
		if m.steps[i].index == index {
			m.steps = append([]stepView(nil), m.steps...)
			return &m.steps[i]
		}
	}
	return nil
}

// activeIndex returns the highest-indexed incomplete step, or -1.
func (m Model) activeIndex() int {
	for i := len(m.steps) - 1; i >= 0; i-- {
		if !m.steps[i].complete {
			return m.steps[i].index
		}
	}
	return -1
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	header := titleStyle.Render("aide")
	if m.sessionID != "" {
		header += mutedStyle.Render(" · " + m.sessionID)
	}
	header += "  " + statusStyle(m.status).Render(m.status)
	b.WriteString(header + "\n\n")

	if len(m.steps) == 0 && !m.finished {
		b.WriteString(m.spinner.View() + mutedStyle.Render(" waiting for the agent's plan") + "\n")
	}

	active := m.activeIndex()
	for _, s := range m.steps {
		b.WriteString(m.renderStep(s, s.index == active && !m.finished))
	}

	if len(m.terminal) > 0 {
		body := strings.Join(m.terminal, "\n")
		if m.command != "" {
			body = textStyle.Render("$ "+m.command) + "\n" + body
		}
		b.WriteString("\n" + terminalStyle.Render(body) + "\n")
	}

	if m.answer.Len() > 0 {
		b.WriteString("\n" + textStyle.Render(strings.TrimSpace(m.answer.String())) + "\n")
	}

	if m.finished {
		if m.success {
			b.WriteString("\n" + completeMarkStyle.Render("✓ finished") + mutedStyle.Render(" ("+m.reason+")") + "\n")
		} else {
			b.WriteString("\n" + errorStyle.Render("✗ failed: "+m.reason) + "\n")
		}
	} else {
		b.WriteString("\n" + mutedStyle.Render("q to quit") + "\n")
	}
	return m.fit(b.String())
}

// fit truncates every line to the window width once it is known.
func (m Model) fit(view string) string {
	if m.width <= 0 {
		return view
	}
	lines := strings.Split(view, "\n")
	for i, line := range lines {
		lines[i] = ansi.Truncate(line, m.width, "…")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStep(s stepView, active bool) string {
	var mark string
	switch {
	case s.complete:
		mark = completeMarkStyle.Render("✓")
	case active:
		mark = m.spinner.View()
	default:
		mark = pendingMarkStyle.Render("○")
	}

	title := s.title
	desc := s.description
	if title == "" {
		title, desc, _ = strings.Cut(strings.TrimSpace(desc), "\n")
	}
	line := fmt.Sprintf("%s %s %s\n", mark, mutedStyle.Render(fmt.Sprintf("%d.", s.index+1)), stepTitleStyle.Render(title))

	desc = strings.TrimSpace(desc)
	if desc == "" || s.complete {
		return line
	}
	lines := strings.Split(desc, "\n")
	if len(lines) > m.opts.MaxDescriptionLines {
		lines = append(lines[:m.opts.MaxDescriptionLines], "…")
	}
	return line + descriptionStyle.Render(strings.Join(lines, "\n")) + "\n"
}
