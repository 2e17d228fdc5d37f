package console

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	colorPrimary = lipgloss.Color("#2196F3")
	colorAccent  = lipgloss.Color("#8BC34A")
	colorMuted   = lipgloss.Color("#6b7685")
	colorBorder  = lipgloss.Color("#2a3850")
	colorDanger  = lipgloss.Color("#e53935")
	colorWarning = lipgloss.Color("#FFC107")
	colorText    = lipgloss.Color("#f2f2f2")
)

// Styles holds every style the console renders with.
type Styles struct {
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	FilterBar lipgloss.Style
	Footer    lipgloss.Style
	Status    lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Menu      lipgloss.Style
	MenuItem  lipgloss.Style
	MenuPick  lipgloss.Style
	Grid      table.Styles
}

// DefaultStyles returns the dark console theme.
func DefaultStyles() Styles {
	grid := table.DefaultStyles()
	grid.Header = grid.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true)
	grid.Selected = grid.Selected.
		Foreground(colorText).
		Background(colorPrimary).
		Bold(false)

	return Styles{
		Tab:       lipgloss.NewStyle().Padding(0, 2).Foreground(colorMuted),
		ActiveTab: lipgloss.NewStyle().Padding(0, 2).Foreground(colorText).Background(colorPrimary).Bold(true),
		FilterBar: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1),
		Footer:    lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
		Status:    lipgloss.NewStyle().Foreground(colorMuted),
		Muted:     lipgloss.NewStyle().Foreground(colorMuted),
		Error:     lipgloss.NewStyle().Foreground(colorDanger).Bold(true),
		Success:   lipgloss.NewStyle().Foreground(colorAccent),
		Warning:   lipgloss.NewStyle().Foreground(colorWarning),
		Menu:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorPrimary).Padding(0, 1),
		MenuItem:  lipgloss.NewStyle().PaddingLeft(2),
		MenuPick:  lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
		Grid:      grid,
	}
}
