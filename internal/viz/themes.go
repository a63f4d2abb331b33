package viz

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/contsim/internal/bifurcation"
)

// Theme colors the live view.
type Theme struct {
	Name        string
	Title       lipgloss.Color
	Branch      lipgloss.Color
	Text        lipgloss.Color
	Muted       lipgloss.Color
	Fold        lipgloss.Color
	BranchPoint lipgloss.Color
	Hopf        lipgloss.Color
	Error       lipgloss.Color
}

var (
	ThemeCyberpunk = Theme{
		Name:        "cyberpunk",
		Title:       lipgloss.Color("#00ffff"),
		Branch:      lipgloss.Color("#ff00ff"),
		Text:        lipgloss.Color("#ffffff"),
		Muted:       lipgloss.Color("#666666"),
		Fold:        lipgloss.Color("#ffff00"),
		BranchPoint: lipgloss.Color("#00ff00"),
		Hopf:        lipgloss.Color("#ff8800"),
		Error:       lipgloss.Color("#ff0000"),
	}

	ThemeRetroGreen = Theme{
		Name:        "retro",
		Title:       lipgloss.Color("#88ff88"),
		Branch:      lipgloss.Color("#00ff00"),
		Text:        lipgloss.Color("#00ff00"),
		Muted:       lipgloss.Color("#005500"),
		Fold:        lipgloss.Color("#ffff00"),
		BranchPoint: lipgloss.Color("#88ff88"),
		Hopf:        lipgloss.Color("#00cc00"),
		Error:       lipgloss.Color("#ff0000"),
	}

	ThemeOcean = Theme{
		Name:        "ocean",
		Title:       lipgloss.Color("#00a8cc"),
		Branch:      lipgloss.Color("#0077be"),
		Text:        lipgloss.Color("#e0f0ff"),
		Muted:       lipgloss.Color("#4488aa"),
		Fold:        lipgloss.Color("#ffd700"),
		BranchPoint: lipgloss.Color("#00ff88"),
		Hopf:        lipgloss.Color("#ffcc00"),
		Error:       lipgloss.Color("#ff4444"),
	}

	Themes = []Theme{ThemeCyberpunk, ThemeRetroGreen, ThemeOcean}
)

// GetTheme returns a theme by name, the first theme when unknown.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// KindStyle colors a bifurcation kind.
func (t Theme) KindStyle(k bifurcation.Kind) lipgloss.Style {
	c := t.Muted
	switch k {
	case bifurcation.Fold:
		c = t.Fold
	case bifurcation.BranchPoint:
		c = t.BranchPoint
	case bifurcation.Hopf:
		c = t.Hopf
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}
