package ui

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for the rack UI.
type Theme struct {
	Title    lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
	Dim      lipgloss.Style
	Label    lipgloss.Style
	Focused  lipgloss.Style
	BarFill  lipgloss.Style
	BarEmpty lipgloss.Style
	Dragging lipgloss.Style
	Dialog   lipgloss.Style
	Button   lipgloss.Style
	Selected lipgloss.Style
}

// NewTheme returns the default palette, adjusted for the terminal background.
func NewTheme(dark bool) Theme {
	purple := lipgloss.Color("#874BFD")
	fg := lipgloss.Color("#FAFAFA")
	dim := lipgloss.Color("#888888")
	if !dark {
		fg = lipgloss.Color("#1A1A1A")
		dim = lipgloss.Color("#666666")
	}

	return Theme{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(fg).
			Background(purple).
			Padding(0, 1),
		Status:   lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		Dim:      lipgloss.NewStyle().Foreground(dim),
		Label:    lipgloss.NewStyle().Foreground(fg),
		Focused:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5C07B")),
		BarFill:  lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		BarEmpty: lipgloss.NewStyle().Foreground(lipgloss.Color("#444444")),
		Dragging: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		Dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple).
			Padding(1, 2),
		Button:   lipgloss.NewStyle().Foreground(dim).Padding(0, 2),
		Selected: lipgloss.NewStyle().Foreground(fg).Background(purple).Padding(0, 2),
	}
}
