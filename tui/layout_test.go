package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"focus-flow/app"
	"focus-flow/model"
)

func TestPaneWidthsPreferWideTaskPanel(t *testing.T) {
	s := app.NewSession(model.NewState(), nil)
	defer s.Close()
	m := NewModel(s, "")
	m.width = 120

	viewW := m.viewportWidth()
	main, side := m.paneWidths(viewW, 1)
	if main <= side {
		t.Fatalf("expected task panel to be wider than side panel (main=%d side=%d)", main, side)
	}
	if main+side+1 != viewW {
		t.Fatalf("expected pane widths to fill available width=%d, got main=%d side=%d", viewW, main, side)
	}
}

func TestPaneWidthsSmallTerminalStillValid(t *testing.T) {
	s := app.NewSession(model.NewState(), nil)
	defer s.Close()
	m := NewModel(s, "")
	m.width = 48

	viewW := m.viewportWidth()
	main, side := m.paneWidths(viewW, 1)
	if main < 12 || side < 10 {
		t.Fatalf("expected minimum usable pane widths, got main=%d side=%d", main, side)
	}
	if main+side+1 > viewW {
		t.Fatalf("expected panes not to exceed viewport width=%d, got main=%d side=%d", viewW, main, side)
	}
}

func TestViewRendersPanels(t *testing.T) {
	s := app.NewSession(model.NewState(), nil)
	defer s.Close()
	m := NewModel(s, "")
	m.width, m.height = 110, 30

	out := m.View()
	for _, want := range []string{"focus-flow", "Tasks", "Focus timer", "Brain dump", "25:00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected view to contain %q", want)
		}
	}
}

func TestFooterTruncatesLongStatus(t *testing.T) {
	s := app.NewSession(model.NewState(), nil)
	defer s.Close()
	m := NewModel(s, "")
	m.width = 40

	out := m.renderFooter(strings.Repeat("x", 100), lipgloss.NewStyle(), "? shortcuts")
	if !strings.Contains(out, "…") {
		t.Fatalf("expected truncated status, got %q", out)
	}
}
