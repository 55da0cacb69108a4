package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Static styles for content elements
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true).
			Padding(0, 1)

	StatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	TokenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFEAA7")).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#626262")).
			Width(5).
			Height(1).
			Align(lipgloss.Center)

	movingBoxStyle   = boxStyle.BorderForeground(lipgloss.Color("#FFEAA7"))
	pickableBoxStyle = boxStyle.BorderForeground(lipgloss.Color("#7D56F4"))
	winBoxStyle      = boxStyle.BorderForeground(lipgloss.Color("#04B575"))
	loseBoxStyle     = boxStyle.BorderForeground(lipgloss.Color("#FF6B6B"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#626262")).
			Padding(0, 1)
)

// DisableColor renders every style without colour, for dumb terminals and
// captured output.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
