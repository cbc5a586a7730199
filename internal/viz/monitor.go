package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/experiment"
)

const (
	historyCapacity = 400
	tickInterval    = time.Second / 30
	sparkWidth      = 50
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Monitor advances an experiment by StepsPerTick iterations per tick until it
// converges, reaches its iteration limit or fails.
type Monitor struct {
	exp          *experiment.Experiment
	driver       *control.ForwardBackward
	title        string
	running      bool
	done         bool
	status       control.Status
	err          error
	logDiff      []float64
	theme        Theme
	style        styles
	StepsPerTick int
}

func NewMonitor(exp *experiment.Experiment) Monitor {
	cfg := exp.Config()
	return Monitor{
		exp:          exp,
		driver:       exp.Driver(),
		title:        fmt.Sprintf("%s muscles → %s target", cfg.Muscles.Layout, cfg.Target.Kind),
		running:      true,
		status:       exp.Driver().Status(),
		logDiff:      make([]float64, 0, historyCapacity),
		theme:        Themes[0],
		style:        newStyles(Themes[0]),
		StepsPerTick: 1,
	}
}

func (m Monitor) Init() tea.Cmd { return tick() }

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "t":
			m.theme = nextTheme(m.theme)
			m.style = newStyles(m.theme)
		}
	case TickMsg:
		if m.running && !m.done {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

// Err is the error that stopped the iteration, if any.
func (m Monitor) Err() error { return m.err }

func (m Monitor) Status() control.Status { return m.status }

func (m *Monitor) step() {
	cfg := m.driver.Config()
	for i := 0; i < m.StepsPerTick; i++ {
		if m.driver.Status() == control.Converged {
			m.finish(control.Converged)
			return
		}
		if m.driver.Iterations() >= cfg.MaxIterNumber {
			m.finish(control.MaxIterReached)
			return
		}
		if err := m.driver.Step(); err != nil {
			m.err = err
			m.done = true
			return
		}
		m.status = m.driver.Status()
		m.logDiff = append(m.logDiff, math.Log10(math.Max(m.driver.ActivationDiff(), 1e-300)))
		if len(m.logDiff) > historyCapacity {
			m.logDiff = m.logDiff[1:]
		}
	}
}

func (m *Monitor) finish(s control.Status) {
	m.status = s
	m.done = true
}

func (m Monitor) statusLine() string {
	switch {
	case m.err != nil:
		return m.style.failed.Render("FAILED: " + m.err.Error())
	case m.done:
		return m.style.converged.Render(strings.ToUpper(m.status.String()))
	case !m.running:
		return m.style.paused.Render("PAUSED")
	default:
		return m.style.running.Render("ITERATING")
	}
}

func (m Monitor) row(label, value string) string {
	return m.style.label.Render(label) + m.style.value.Render(value) + "\n"
}

func (m Monitor) View() string {
	var s strings.Builder
	s.WriteString(m.style.header.Render(m.title) + "\n")
	s.WriteString(m.statusLine() + "\n\n")

	tip := m.exp.Rod().Tip()
	s.WriteString(m.row("Iteration", fmt.Sprintf("%d / %d", m.driver.Iterations(), m.driver.Config().MaxIterNumber)))
	s.WriteString(m.row("Activation Δ", fmt.Sprintf("%.3e", m.driver.ActivationDiff())))
	s.WriteString(m.row("Tolerance", fmt.Sprintf("%.1e", m.driver.Config().ActivationDiffTolerance)))
	s.WriteString(m.row("Tip", fmt.Sprintf("(%.4f, %.4f, %.4f)", tip.X, tip.Y, tip.Z)))

	if len(m.logDiff) > 1 {
		chart := asciigraph.Plot(m.logDiff, asciigraph.Height(8), asciigraph.Width(sparkWidth), asciigraph.Caption("log10 activation Δ"))
		s.WriteString(m.style.graph.Render(chart) + "\n")
	}

	s.WriteString("\nACTIVATIONS\n")
	for i, mus := range m.driver.Muscles() {
		s.WriteString(m.style.label.Render(mus.Name()) + Sparkline(m.driver.Activations()[i], sparkWidth) + "\n")
	}

	s.WriteString(m.style.help.Render("SP:Pause T:Theme Q:Quit"))
	return m.style.panel.Render(s.String())
}
