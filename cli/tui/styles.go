// Package tui provides Bubble Tea views for the teewire CLI.
//
// TUI rules:
//   - TUI is opt-in only (--tui flag)
//   - TUI is read-only (inspect and invoke --stats)
//   - TUI uses the same reader payloads as non-TUI rendering
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette. Parameter kinds are colored by the direction data flows.
var (
	titleColor   = lipgloss.Color("#0EA5E9") // Sky
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
	textColor    = lipgloss.Color("#F9FAFB")

	inputColor  = lipgloss.Color("#3B82F6") // Blue: caller to service
	outputColor = lipgloss.Color("#F472B6") // Pink: service to caller
	inoutColor  = lipgloss.Color("#A78BFA") // Violet: both ways
)

// kindWidth fits the longest kind name, memref_partial_output.
const kindWidth = 22

// Styles for TUI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(titleColor).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(16)

	ValueStyle = lipgloss.NewStyle().
			Foreground(textColor)

	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	// BoxStyle frames a whole view.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	// CounterBoxStyle frames one metric counter.
	CounterBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)

	CounterLabelStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Align(lipgloss.Center)

	CounterValueStyle = lipgloss.NewStyle().
				Bold(true).
				Align(lipgloss.Center)
)

// KindStyle returns the style for a parameter kind name: input kinds in
// blue, output kinds in pink, bidirectional kinds in violet. Whole
// registered memory takes its direction from the memory flags, which the
// kind does not carry, so it is shown as bidirectional.
func KindStyle(kind string) lipgloss.Style {
	base := lipgloss.NewStyle().Width(kindWidth)
	switch {
	case strings.HasSuffix(kind, "_input"):
		return base.Foreground(inputColor)
	case strings.HasSuffix(kind, "_output"):
		return base.Foreground(outputColor)
	case strings.HasSuffix(kind, "_inout"), kind == "memref_whole":
		return base.Foreground(inoutColor)
	default:
		return base.Foreground(mutedColor)
	}
}

// ResultStyle returns a style for a result code name.
func ResultStyle(result string) lipgloss.Style {
	switch result {
	case "SUCCESS":
		return SuccessStyle
	case "":
		return ValueStyle
	case "SHORT_BUFFER", "CANCEL":
		return WarningStyle
	default:
		return ErrorStyle
	}
}
