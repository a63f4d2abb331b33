package viz

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/contsim/internal/config"
	"github.com/san-kum/contsim/internal/continuation"
	"github.com/san-kum/contsim/internal/experiment"
	"github.com/san-kum/contsim/internal/linalg"
)

const (
	stateProblems = iota
	statePresets
	stateLive
)

var (
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	descStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff"))
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// App lets the user pick a problem and preset, then runs the live view.
type App struct {
	ctx      context.Context
	reg      *experiment.Registry
	state    int
	cursor   int
	problems []string
	presets  []string
	problem  string
	err      error
	live     Model
}

func NewApp(ctx context.Context, reg *experiment.Registry) App {
	return App{ctx: ctx, reg: reg, problems: reg.ListProblems()}
}

func (a App) Init() tea.Cmd { return nil }

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.state == stateLive {
		if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
			a.state, a.cursor = statePresets, 0
			return a, nil
		}
		next, cmd := a.live.Update(msg)
		a.live = next.(Model)
		return a, cmd
	}

	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}
	items := a.problems
	if a.state == statePresets {
		items = a.presets
	}
	switch k.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "esc":
		a.state, a.cursor, a.err = stateProblems, 0, nil
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(items)-1 {
			a.cursor++
		}
	case "enter", " ":
		if len(items) == 0 {
			break
		}
		if a.state == stateProblems {
			a.problem = items[a.cursor]
			a.presets = config.ListPresets(a.problem)
			a.state, a.cursor = statePresets, 0
			break
		}
		return a.start(items[a.cursor])
	}
	return a, nil
}

func (a App) start(preset string) (tea.Model, tea.Cmd) {
	cfg := config.GetPreset(a.problem, preset)
	d, err := StartDriver(a.ctx, a.reg, cfg, quietLogger())
	if err != nil {
		a.err = err
		return a, nil
	}
	a.err = nil
	a.live = NewModel(a.ctx, d, cfg.Terminator(), a.problem+" / "+preset, cfg.Stop.MaxSteps)
	a.state = stateLive
	return a, a.live.Init()
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// StartDriver builds the configured problem and starts a driver on it.
func StartDriver(ctx context.Context, reg *experiment.Registry, cfg *config.Config, log *logrus.Entry) (*continuation.Driver, error) {
	if cfg == nil {
		return nil, errors.New("viz: no configuration")
	}
	prob, err := reg.GetProblem(cfg.Problem, cfg.Params)
	if err != nil {
		return nil, err
	}
	u0, err := cfg.InitialState(prob.Dim())
	if err != nil {
		return nil, err
	}
	d, err := continuation.NewDriver(prob, linalg.NewDense(), cfg.Continuation, continuation.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := d.Start(ctx, u0, cfg.Start.Lambda); err != nil {
		return nil, err
	}
	return d, nil
}

func (a App) View() string {
	switch a.state {
	case stateLive:
		return a.live.View()
	case statePresets:
		return a.menu(strings.ToUpper(a.problem), a.reg.Describe(a.problem), a.presets, func(string) string { return "" })
	default:
		return a.menu("CONTSIM", "numerical continuation", a.problems, a.reg.Describe)
	}
}

func (a App) menu(title, subtitle string, items []string, describe func(string) string) string {
	var b strings.Builder
	b.WriteString("\n\n    " + GradientText(title, "#00cccc", "#ff00ff") + "\n    " + Subtle.Render(subtitle) + "\n    " + Separator(28) + "\n\n")
	for i, name := range items {
		desc := describe(name)
		if len([]rune(desc)) > 48 {
			desc = string([]rune(desc)[:45]) + "..."
		}
		if i == a.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", cursorStyle.Render("▸"), selectedStyle.Render(fmt.Sprintf("%-14s", name)), descStyle.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("      %s  %s\n", idleStyle.Render(fmt.Sprintf("%-14s", name)), idleStyle.Render(desc)))
		}
	}
	if a.err != nil {
		b.WriteString("\n    " + errStyle.Render(a.err.Error()) + "\n")
	}
	b.WriteString("\n    " + KeyHint.Render("j/k") + Subtle.Render(" navigate  ") + KeyHint.Render("enter") + Subtle.Render(" select  ") +
		KeyHint.Render("esc") + Subtle.Render(" back  ") + KeyHint.Render("q") + Subtle.Render(" quit") + "\n")
	return b.String()
}

func RunInteractive(ctx context.Context, reg *experiment.Registry) error {
	_, err := tea.NewProgram(NewApp(ctx, reg), tea.WithAltScreen()).Run()
	return err
}
