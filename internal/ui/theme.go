package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors used by the browser.
type Theme struct {
	Name string

	Background string
	Surface    string
	SurfaceAlt string

	SelectionBg   string
	SelectionText string

	Border      string
	BorderFocus string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string

	// StatusColors maps view values (lead stages, install states, ...) to
	// chip colors.
	StatusColors map[string]string
}

// Styles is the lipgloss rendering of a Theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style

	Header lipgloss.Style
	Footer lipgloss.Style
	Logo   lipgloss.Style
	Prompt lipgloss.Style

	statusColors map[string]string
	background   string
	muted        string
}

// Styles returns lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Text:        lipgloss.NewStyle().Foreground(lipgloss.Color(t.Text)),
		MutedText:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		FaintText:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Faint)),
		AccentText:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)),
		SuccessText: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Success)),
		WarningText: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Warning)),
		DangerText:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Danger)),

		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),
		Footer: lipgloss.NewStyle().
			Background(lipgloss.Color(t.SurfaceAlt)).
			Foreground(lipgloss.Color(t.Muted)).
			Padding(0, 1),
		Logo: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)).
			Bold(true),
		Prompt: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)),

		statusColors: t.StatusColors,
		background:   t.Background,
		muted:        t.Muted,
	}
}

// StatusStyle returns the chip style for a view value.
func (s Styles) StatusStyle(status string) lipgloss.Style {
	color := s.statusColors[status]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.background)).
		Background(lipgloss.Color(color)).
		Padding(0, 1)
}

// TableStyles returns bubbles table styles matching the theme.
func (t Theme) TableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(t.Border)).
		BorderBottom(true).
		Foreground(lipgloss.Color(t.Accent)).
		Bold(true)
	s.Cell = s.Cell.Foreground(lipgloss.Color(t.Text))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color(t.SelectionText)).
		Background(lipgloss.Color(t.SelectionBg)).
		Bold(false)
	return s
}

var themes = map[string]Theme{
	"Dracula": draculaTheme(),
	"Slate":   slateTheme(),
}

var themeOrder = []string{"Dracula", "Slate"}

// GetTheme returns a theme by name, falling back to Dracula.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return draculaTheme()
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

func draculaTheme() Theme {
	// https://draculatheme.com/spec
	return Theme{
		Name: "Dracula",

		Background: "#191A21",
		Surface:    "#282A36",
		SurfaceAlt: "#21222C",

		SelectionBg:   "#44475A",
		SelectionText: "#F8F8F2",

		Border:      "#44475A",
		BorderFocus: "#BD93F9",

		Text:    "#F8F8F2",
		Muted:   "#6272A4",
		Faint:   "#44475A",
		Accent:  "#BD93F9",
		Success: "#50FA7B",
		Warning: "#FFB86C",
		Danger:  "#FF5555",

		StatusColors: map[string]string{
			"new":         "#8BE9FD",
			"contacted":   "#BD93F9",
			"quoted":      "#FF79C6",
			"won":         "#50FA7B",
			"lost":        "#FF5555",
			"scheduled":   "#8BE9FD",
			"in_progress": "#FFB86C",
			"completed":   "#50FA7B",
			"cancelled":   "#6272A4",
			"open":        "#FFB86C",
			"closed":      "#6272A4",
		},
	}
}

func slateTheme() Theme {
	// Tailwind slate/sky palette
	return Theme{
		Name: "Slate",

		Background: "#020617",
		Surface:    "#0f172a",
		SurfaceAlt: "#1e293b",

		SelectionBg:   "#0284c7",
		SelectionText: "#f8fafc",

		Border:      "#334155",
		BorderFocus: "#38bdf8",

		Text:    "#f1f5f9",
		Muted:   "#94a3b8",
		Faint:   "#64748b",
		Accent:  "#38bdf8",
		Success: "#22c55e",
		Warning: "#f59e0b",
		Danger:  "#ef4444",

		StatusColors: map[string]string{
			"new":         "#06b6d4",
			"contacted":   "#8b5cf6",
			"quoted":      "#ec4899",
			"won":         "#16a34a",
			"lost":        "#dc2626",
			"scheduled":   "#0284c7",
			"in_progress": "#f59e0b",
			"completed":   "#22c55e",
			"cancelled":   "#64748b",
			"open":        "#ea580c",
			"closed":      "#64748b",
		},
	}
}
