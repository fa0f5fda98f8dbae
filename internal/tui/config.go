package tui

import "github.com/charmbracelet/lipgloss"

// Config holds the chat console settings.
type Config struct {
	Theme Theme
	// UserID scopes questions when the project filters by user.
	UserID string
	// ShowSQL prints the generated statement under each answer.
	ShowSQL bool
	Width   int
	Height  int
}

// DefaultConfig returns the default console settings.
func DefaultConfig() Config {
	return Config{
		Theme:  DefaultTheme(),
		Width:  100,
		Height: 30,
	}
}

// Theme defines the visual style of the console.
type Theme struct {
	Title    lipgloss.Style
	Question lipgloss.Style
	Answer   lipgloss.Style
	SQL      lipgloss.Style
	Error    lipgloss.Style
	Status   lipgloss.Style
	Box      lipgloss.Style
}

// DefaultTheme is the violet palette used across spice.
func DefaultTheme() Theme {
	return Theme{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#fafafa")).
			Background(lipgloss.Color("#7c3aed")).
			Padding(0, 1),
		Question: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#a78bfa")),
		Answer: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fafafa")),
		SQL: lipgloss.NewStyle().
			Background(lipgloss.Color("#262626")).
			Foreground(lipgloss.Color("#e5e5e5")).
			Padding(0, 1),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ef4444")),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#737373")),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#404040")).
			Padding(0, 1),
	}
}
