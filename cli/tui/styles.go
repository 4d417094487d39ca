// Package tui provides the Bubble Tea progress view for the railstream CLI.
//
// The view is opt-in (--tui flag) and consumes the same session events as
// the plain progress printer; no TUI-exclusive data exists.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	errorColor   = lipgloss.Color("#EF4444") // Red
	warningColor = lipgloss.Color("#F59E0B") // Amber
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for TUI components.
var (
	// TitleStyle for the route header.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// StepStyle for the current phase label.
	StepStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// MessageStyle for the progress message.
	MessageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// SuccessStyle for the success banner.
	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor)

	// ErrorStyle for the failure banner.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	// CancelledStyle for the cancellation banner.
	CancelledStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warningColor)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// OutcomeStyle returns the banner style for an outcome status.
func OutcomeStyle(status string) lipgloss.Style {
	switch status {
	case "success":
		return SuccessStyle
	case "cancelled":
		return CancelledStyle
	default:
		return ErrorStyle
	}
}
