package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	colorRed     = lipgloss.Color("#ff5555")
	colorGreen   = lipgloss.Color("#50fa7b")
	colorYellow  = lipgloss.Color("#f1fa8c")
	colorBlue    = lipgloss.Color("#8be9fd")
	colorPurple  = lipgloss.Color("#bd93f9")
	colorDim     = lipgloss.Color("#6272a4")
	colorFg      = lipgloss.Color("#f8f8f2")
	colorBgLight = lipgloss.Color("#343746")
)

// Style definitions.
var (
	riskHighStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	riskMediumStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	riskLowStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	metaKeyStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	fileHeaderStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	hunkHeaderStyle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true)

	lineNumberStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(4).
			Align(lipgloss.Right)

	addedLineStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	deletedLineStyle = lipgloss.NewStyle().
				Foreground(colorRed)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Background(colorBgLight).
			Padding(0, 1)

	helpBarStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)
