package cli

import "github.com/charmbracelet/lipgloss"

var (
	colorTeal = lipgloss.Color("#14B8A6")
	colorGray = lipgloss.Color("#6B7280")
	colorRed  = lipgloss.Color("#F87171")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	idStyle     = lipgloss.NewStyle().Foreground(colorGray)
	dimStyle    = lipgloss.NewStyle().Foreground(colorGray)
	okStyle     = lipgloss.NewStyle().Foreground(colorTeal)
	errorStyle  = lipgloss.NewStyle().Foreground(colorRed)
	bodyStyle   = lipgloss.NewStyle().PaddingLeft(2)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)
