package popup

import "github.com/charmbracelet/lipgloss"

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	mutedGray  = lipgloss.Color("#6B7280")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true).
			Padding(0, 1)

	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			Foreground(salmonPink).
			Bold(true)

	onStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Bold(true)

	offStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	dimStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Faint(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true).
			PaddingLeft(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1)
)
