package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/contsim/internal/continuation"
)

const (
	width           = 60
	height          = 20
	historyCapacity = 400
	maxStepsPerTick = 64
)

type TickMsg time.Time

// Model steps a started continuation driver on every tick and draws the
// branch as it grows.
type Model struct {
	ctx      context.Context
	driver   *continuation.Driver
	term     continuation.Terminator
	title    string
	measure  Measure
	maxSteps int

	width, height int
	running       bool
	perTick       int
	theme         int
	frame         int
	showHelp      bool

	phase      continuation.Phase
	iterations []float64
	lambdas    []float64
	seen       int
}

// NewModel wraps a driver that has already been started. maxSteps only
// scales the progress bar; term decides when the branch halts.
func NewModel(ctx context.Context, d *continuation.Driver, term continuation.Terminator, title string, maxSteps int) Model {
	m := Model{
		ctx:      ctx,
		driver:   d,
		term:     term,
		title:    title,
		measure:  NormMeasure,
		maxSteps: maxSteps,
		width:    width,
		height:   height,
		running:  true,
		perTick:  4,
		phase:    d.Phase(),
	}
	m.collect()
	return m
}

func (m Model) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Halted() bool { return m.phase == continuation.Halted }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "n":
			m.advance(1)
		case "+", "=":
			m.perTick = min(m.perTick*2, maxStepsPerTick)
		case "-":
			m.perTick = max(m.perTick/2, 1)
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
		case "?":
			m.showHelp = !m.showHelp
		}
	case tea.WindowSizeMsg:
		m.width = max(msg.Width-60, 20)
		m.height = max(msg.Height-6, 8)
	case TickMsg:
		m.frame++
		if m.running {
			m.advance(m.perTick)
		}
		return m, tick()
	}
	return m, nil
}

// advance performs up to n state machine transitions.
func (m *Model) advance(n int) {
	for i := 0; i < n && m.phase != continuation.Halted; i++ {
		phase, err := m.driver.Step(m.ctx, m.term)
		if err != nil {
			break
		}
		m.phase = phase
	}
	m.collect()
}

func (m *Model) collect() {
	points := m.driver.Points()
	for ; m.seen < len(points); m.seen++ {
		p := points[m.seen]
		m.iterations = append(m.iterations, float64(p.Iterations))
		m.lambdas = append(m.lambdas, p.Lambda())
	}
	if n := len(m.lambdas); n > historyCapacity {
		m.lambdas = m.lambdas[n-historyCapacity:]
		m.iterations = m.iterations[n-historyCapacity:]
	}
}

func (m Model) status() string {
	switch {
	case m.phase == continuation.Halted:
		reason := string(m.driver.Result().Reason)
		return StatusHalted.Render("HALTED " + reason)
	case !m.running:
		return StatusPaused.Render("PAUSED")
	default:
		return StatusRunning.Render(AnimatedSpinner(m.frame) + " " + strings.ToUpper(m.phase.String()))
	}
}

func (m Model) View() string {
	theme := Themes[m.theme]
	res := m.driver.Result()
	points := m.driver.Points()

	d := NewDiagram(m.width, m.height, m.measure)
	d.AddBranch(points)
	for _, r := range res.Bifurcations {
		d.AddBifurcation(r)
	}
	diagram := canvasStyle.Render(lipgloss.NewStyle().Foreground(theme.Branch).Render(d.Render()))

	var s strings.Builder
	s.WriteString(GradientText(strings.ToUpper(m.title), theme.Title, theme.Branch) + "\n")
	s.WriteString(m.status() + "\n\n")

	if len(points) > 0 {
		last := points[len(points)-1]
		row := func(label, value string) {
			s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
		}
		row("λ", fmt.Sprintf("%.6g", last.Lambda()))
		row("|u|", fmt.Sprintf("%.6g", last.Norm()))
		row("s", fmt.Sprintf("%.4f", last.Arclength))
		row("ds", fmt.Sprintf("%.3g", m.driver.StepSize()))
		row("points", fmt.Sprintf("%d", len(points)))
		row("rejected", fmt.Sprintf("%d", len(res.Rejections)))
		if stable, known := last.Stable(); known {
			row("stable", fmt.Sprintf("%t (%d unstable)", stable, last.Unstable))
		}
		if m.maxSteps > 0 {
			row("progress", ProgressBar(len(points)-1, m.maxSteps, 20))
		}
	}

	s.WriteString("\n" + labelStyle.Render("newton") + SparklineChart(m.iterations, 30) + "\n")
	if len(m.lambdas) > 1 {
		chart := asciigraph.Plot(m.lambdas, asciigraph.Height(5), asciigraph.Width(30), asciigraph.Caption("λ per step"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	s.WriteString("\n" + Separator(40) + "\n")
	bifs := res.Bifurcations
	if len(bifs) > 5 {
		bifs = bifs[len(bifs)-5:]
	}
	if len(bifs) == 0 {
		s.WriteString(Subtle.Render("no bifurcations yet") + "\n")
	}
	for _, r := range bifs {
		kind := theme.KindStyle(r.Kind).Render(fmt.Sprintf("%c %-12s", KindMark(r.Kind), r.Kind))
		s.WriteString(fmt.Sprintf("%s λ=%.6g\n", kind, r.Lambda()))
	}
	if len(res.Seeds) > 0 {
		s.WriteString(Subtle.Render(fmt.Sprintf("%d branch seeds", len(res.Seeds))) + "\n")
	}
	if res.Err != nil {
		s.WriteString(lipgloss.NewStyle().Foreground(theme.Error).Render(res.Error) + "\n")
	}

	s.WriteString(helpStyle.Render(fmt.Sprintf("SP:pause N:step +/-:speed(%d) T:theme(%s) Q:quit", m.perTick, theme.Name)))
	stats := statsStyle.Render(s.String())
	view := lipgloss.JoinHorizontal(lipgloss.Top, diagram, stats)
	if m.showHelp {
		return helpOverlay + "\n" + view
	}
	return view
}

const helpOverlay = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space  - Pause/Resume continuation  ║
║  N      - Single state transition    ║
║  + / -  - Transitions per frame      ║
║  T      - Cycle themes               ║
║  Q      - Quit                       ║
║  ?      - Toggle this help           ║
╚══════════════════════════════════════╝`

// RunLive shows a started driver until the user quits.
func RunLive(ctx context.Context, d *continuation.Driver, term continuation.Terminator, title string, maxSteps int) error {
	_, err := tea.NewProgram(NewModel(ctx, d, term, title, maxSteps), tea.WithAltScreen()).Run()
	return err
}
