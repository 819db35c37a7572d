package tui

import "github.com/charmbracelet/lipgloss"

// Palette taken from the lamp's brand colors.
var (
	colorGreen500 = lipgloss.AdaptiveColor{Light: "#2f6b4f", Dark: "#4caf7d"}
	colorLight0   = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#ffffff"}
	colorLight100 = lipgloss.AdaptiveColor{Light: "#eef3ef", Dark: "#26302a"}
	colorMuted    = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}
	colorFocus    = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}
)

var (
	styleSplash = lipgloss.NewStyle().
			Foreground(colorGreen500).
			Bold(true)

	styleSection = lipgloss.NewStyle().
			Background(colorLight100).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorLight100).
			Padding(0, 2).
			MarginBottom(1)

	styleSectionFocused = styleSection.
				BorderForeground(colorFocus)

	styleButton = lipgloss.NewStyle().
			Foreground(colorLight0).
			Background(colorGreen500).
			Bold(true).
			Padding(0, 3)

	styleButtonFocused = styleButton.
				Underline(true).
				Background(colorFocus)

	styleLabel = lipgloss.NewStyle().
			Foreground(colorGreen500).
			Bold(true)

	styleStatus = lipgloss.NewStyle().
			Padding(0, 1)

	styleFooter = lipgloss.NewStyle().
			Foreground(colorMuted)
)
