// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spice-insights/internal/model"
)

var (
	// PrimaryColor is the main theme color.
	PrimaryColor = lipgloss.Color("#7c3aed")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#10b981")
	// ErrorColor indicates errors or failure messages.
	ErrorColor = lipgloss.Color("#ef4444")
	// InfoColor indicates work in progress.
	InfoColor = lipgloss.Color("#3b82f6")
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("241")

	// HeaderStyle is used for table headers and labels.
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	// AnswerStyle formats chat answers.
	AnswerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#fafafa"))
	// SQLStyle formats generated statements.
	SQLStyle = lipgloss.NewStyle().Foreground(SubtleColor)
	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
)

// StatusStyle colors a job status.
func StatusStyle(status model.JobStatus) lipgloss.Style {
	switch status {
	case model.JobDone:
		return lipgloss.NewStyle().Foreground(SuccessColor)
	case model.JobFailed:
		return lipgloss.NewStyle().Foreground(ErrorColor)
	case model.JobRunning:
		return lipgloss.NewStyle().Foreground(InfoColor)
	default:
		return lipgloss.NewStyle().Foreground(SubtleColor)
	}
}

// FormatError renders an error line.
func FormatError(message string) string {
	return ErrorStyle.Render("Error: " + message)
}
