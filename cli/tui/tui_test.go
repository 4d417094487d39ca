package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/trelay/railstream/types"
)

func TestModel_ViewBeforeFirstEvent(t *testing.T) {
	m := NewModel("Brighton → London Victoria", nil)

	view := m.View()
	if !strings.Contains(view, "Analyzing Brighton → London Victoria") {
		t.Errorf("view missing title:\n%s", view)
	}
	if !strings.Contains(view, "connecting") {
		t.Errorf("view missing connecting state:\n%s", view)
	}
}

func TestModel_ProgressUpdatesView(t *testing.T) {
	m := NewModel("Brighton → London Victoria", nil)

	updated, _ := m.Update(progressMsg{
		Step:    "processing_journeys",
		Message: "Processed 5/10 journeys (50%)",
		Current: 5,
		Total:   10,
	})
	m = updated.(Model)

	view := m.View()
	if !strings.Contains(view, "processing_journeys") {
		t.Errorf("view missing step:\n%s", view)
	}
	if !strings.Contains(view, "5/10") {
		t.Errorf("view missing counts:\n%s", view)
	}
}

func TestModel_PhaseOnlyProgressHasNoBar(t *testing.T) {
	m := NewModel("route", nil)

	updated, _ := m.Update(progressMsg{Step: "initializing", Message: "Starting..."})
	m = updated.(Model)

	view := m.View()
	if !strings.Contains(view, "initializing") {
		t.Errorf("view missing step:\n%s", view)
	}
	if strings.Contains(view, "0/0") {
		t.Errorf("indeterminate phase should not render counts:\n%s", view)
	}
}

func TestModel_SettledQuits(t *testing.T) {
	m := NewModel("route", nil)

	updated, cmd := m.Update(settledMsg{Status: types.OutcomeSuccess})
	m = updated.(Model)
	if cmd == nil {
		t.Fatal("settlement should quit the program")
	}
	if !strings.Contains(m.View(), "Analysis complete") {
		t.Errorf("view missing success banner:\n%s", m.View())
	}
}

func TestModel_FailureBannerCarriesMessage(t *testing.T) {
	m := NewModel("route", nil)

	updated, _ := m.Update(settledMsg{Status: types.OutcomeFailure, Message: "no service data found"})
	m = updated.(Model)
	if !strings.Contains(m.View(), "no service data found") {
		t.Errorf("view missing failure message:\n%s", m.View())
	}
}

func TestModel_QuitKeyCancels(t *testing.T) {
	cancelled := false
	m := NewModel("route", func() { cancelled = true })

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = updated.(Model)
	if cmd == nil {
		t.Fatal("quit key should quit the program")
	}
	if !cancelled {
		t.Error("quit before settlement should cancel the session")
	}
	if m.View() != "" {
		t.Errorf("view after quit = %q, want empty", m.View())
	}
}

func TestModel_QuitAfterSettlementDoesNotCancel(t *testing.T) {
	cancelled := false
	m := NewModel("route", func() { cancelled = true })

	updated, _ := m.Update(settledMsg{Status: types.OutcomeSuccess})
	m = updated.(Model)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = updated.(Model)

	if cancelled {
		t.Error("quit after settlement should not cancel")
	}
}

func TestModel_WindowSizeBoundsBar(t *testing.T) {
	m := NewModel("route", nil)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 200, Height: 50})
	m = updated.(Model)
	if m.bar.Width != maxBarWidth {
		t.Errorf("bar width = %d, want %d", m.bar.Width, maxBarWidth)
	}

	updated, _ = m.Update(tea.WindowSizeMsg{Width: 30, Height: 50})
	m = updated.(Model)
	if m.bar.Width != 26 {
		t.Errorf("bar width = %d, want 26", m.bar.Width)
	}
}
