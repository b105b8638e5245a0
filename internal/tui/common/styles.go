package common

import "github.com/charmbracelet/lipgloss"

// Color palette. Each color has a light and a dark terminal variant.
var (
	// Key colors
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"} // Teal
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"} // Amber
	ColorOnPrimary = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#042F2E"} // Text on teal

	// Status colors
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#C2410C", Dark: "#FB923C"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}

	// Neutral colors
	ColorSubtle     = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#64748B"}
	ColorMuted      = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#94A3B8"}
	ColorBorder     = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#334155"}
	ColorForeground = lipgloss.AdaptiveColor{Light: "#0F172A", Dark: "#F1F5F9"}
)

// Base styles
var (
	// Title styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			MarginBottom(1)

	// Text styles
	MutedTextStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	SuccessTextStyle = lipgloss.NewStyle().
				Foreground(ColorSuccess)

	WarningTextStyle = lipgloss.NewStyle().
				Foreground(ColorWarning)

	PrimaryTextStyle = lipgloss.NewStyle().
				Foreground(ColorPrimary)

	// Container styles
	BoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2)

	FocusedBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(1, 2)

	// Help styles
	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	HelpDescStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	HelpSepStyle = lipgloss.NewStyle().
			Foreground(ColorBorder)
)

// Logo returns the ckcli ASCII art logo
func Logo() string {
	logo := `
      _        _ _
  ___| | _____| (_)
 / __| |/ / __| | |
| (__|   < (__| | |
 \___|_|\_\___|_|_|
`
	return lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Render(logo)
}

// FormatHelp formats a help line with key and description
func FormatHelp(key, desc string) string {
	return HelpKeyStyle.Render(key) +
		HelpSepStyle.Render(" ") +
		HelpDescStyle.Render(desc)
}
