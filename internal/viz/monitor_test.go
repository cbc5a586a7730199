package viz

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/octoarm/internal/config"
	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/experiment"
)

func newMonitor(t *testing.T, maxIter int) Monitor {
	t.Helper()
	cfg := config.GetPreset("straight")
	cfg.Algorithm.MaxIterNumber = maxIter
	cfg.Algorithm.ActivationDiffTolerance = 1e-300
	exp, err := experiment.New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewMonitor(exp)
}

func tickN(m Monitor, n int) Monitor {
	for i := 0; i < n; i++ {
		next, _ := m.Update(TickMsg(time.Now()))
		m = next.(Monitor)
	}
	return m
}

func TestMonitorSteps(t *testing.T) {
	m := tickN(newMonitor(t, 5), 3)
	if got := m.driver.Iterations(); got != 3 {
		t.Errorf("expected 3 iterations, got %d", got)
	}
	if len(m.logDiff) != 3 {
		t.Errorf("expected 3 history entries, got %d", len(m.logDiff))
	}
	if !strings.Contains(m.View(), "ITERATING") {
		t.Error("expected iterating status in view")
	}
}

func TestMonitorStopsAtLimit(t *testing.T) {
	m := tickN(newMonitor(t, 2), 5)
	if got := m.driver.Iterations(); got != 2 {
		t.Errorf("expected 2 iterations, got %d", got)
	}
	if m.Status() != control.MaxIterReached {
		t.Errorf("expected max_iter_reached, got %s", m.Status())
	}
	if m.Err() != nil {
		t.Errorf("unexpected error %v", m.Err())
	}
	if !strings.Contains(m.View(), "MAX_ITER_REACHED") {
		t.Error("expected final status in view")
	}
}

func TestMonitorPause(t *testing.T) {
	m := newMonitor(t, 5)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m = tickN(next.(Monitor), 3)
	if got := m.driver.Iterations(); got != 0 {
		t.Errorf("expected no iterations while paused, got %d", got)
	}
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("expected paused status in view")
	}
}

func TestMonitorQuit(t *testing.T) {
	m := newMonitor(t, 5)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestThemeCycle(t *testing.T) {
	m := newMonitor(t, 5)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	if got := next.(Monitor).theme.Name; got != Themes[1].Name {
		t.Errorf("expected theme %s, got %s", Themes[1].Name, got)
	}
	if GetTheme("missing").Name != Themes[0].Name {
		t.Error("expected fallback to the first theme")
	}
}

func TestSparkline(t *testing.T) {
	tests := []struct {
		values   []float64
		width    int
		expected string
	}{
		{[]float64{0, 0.5, 1}, 10, " ▄█"},
		{[]float64{-1, 2}, 10, " █"},
		{[]float64{1, 1, 1, 1}, 2, "██"},
		{nil, 10, ""},
	}
	for _, tt := range tests {
		if got := Sparkline(tt.values, tt.width); got != tt.expected {
			t.Errorf("Sparkline(%v, %d) = %q, want %q", tt.values, tt.width, got, tt.expected)
		}
	}
}
