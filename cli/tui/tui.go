package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/trelay/railstream/stream"
	"github.com/trelay/railstream/types"
)

const maxBarWidth = 60

type progressMsg types.ProgressSnapshot

type settledMsg types.Outcome

// Model is the Bubble Tea model for a live analysis session.
type Model struct {
	route    string
	bar      progress.Model
	latest   *types.ProgressSnapshot
	outcome  *types.Outcome
	width    int
	quitting bool
	cancel   func()
}

// NewModel creates a session progress model. cancel is invoked when the
// user aborts; it may be nil.
func NewModel(route string, cancel func()) Model {
	return Model{
		route:  route,
		bar:    progress.New(progress.WithDefaultGradient()),
		cancel: cancel,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 4; w > 0 && w < maxBarWidth {
			m.bar.Width = w
		} else {
			m.bar.Width = maxBarWidth
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			if m.outcome == nil && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case progressMsg:
		snap := types.ProgressSnapshot(msg)
		m.latest = &snap
		return m, nil

	case settledMsg:
		outcome := types.Outcome(msg)
		m.outcome = &outcome
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting && m.outcome == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Analyzing " + m.route))
	b.WriteString("\n\n")

	switch {
	case m.outcome != nil:
		b.WriteString(m.renderOutcome())
	case m.latest != nil:
		b.WriteString(m.renderProgress())
	default:
		b.WriteString(StepStyle.Render("connecting"))
	}

	if m.outcome == nil {
		b.WriteString(HelpStyle.Render("\nPress q or Ctrl+C to cancel"))
	}
	return b.String()
}

func (m Model) renderProgress() string {
	var b strings.Builder
	b.WriteString(StepStyle.Render(m.latest.Step))
	if m.latest.Message != "" {
		b.WriteString("  ")
		b.WriteString(MessageStyle.Render(m.latest.Message))
	}
	if pct := m.latest.Percent(); pct >= 0 {
		b.WriteString("\n")
		b.WriteString(m.bar.ViewAs(pct / 100))
		b.WriteString(fmt.Sprintf("  %d/%d", m.latest.Current, m.latest.Total))
	}
	return b.String()
}

func (m Model) renderOutcome() string {
	style := OutcomeStyle(string(m.outcome.Status))
	switch m.outcome.Status {
	case types.OutcomeSuccess:
		return style.Render("Analysis complete")
	case types.OutcomeCancelled:
		return style.Render("Analysis cancelled")
	default:
		msg := m.outcome.Message
		if msg == "" {
			msg = "analysis failed"
		}
		return style.Render("Analysis failed: " + msg)
	}
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "cancel"),
	),
}

// Run drives the progress view for a started session and returns its
// outcome. The session keeps running if the user quits early; Run then
// waits for the cancellation to settle.
func Run(route string, session *stream.Session) (types.Outcome, error) {
	model := NewModel(route, session.Cancel)
	p := tea.NewProgram(model)

	session.Subscribe(stream.SubscriberFuncs{
		Progress: func(snap types.ProgressSnapshot) { p.Send(progressMsg(snap)) },
		Settled:  func(outcome types.Outcome) { p.Send(settledMsg(outcome)) },
	})

	final, err := p.Run()
	if err != nil {
		return types.Outcome{}, err
	}
	if m, ok := final.(Model); ok && m.outcome != nil {
		return *m.outcome, nil
	}
	return session.Wait(context.Background())
}
