package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the console.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	title := m.config.Theme.Title.Render("spice chat")
	input := m.config.Theme.Box.Width(max(m.width-2, 10)).Render(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.viewport.View(),
		input,
		m.renderStatus(),
	)
}

func (m Model) renderTranscript() string {
	theme := m.config.Theme
	if len(m.exchanges) == 0 {
		return theme.Status.Render("Ask a question to get started.")
	}

	width := max(m.viewport.Width, 20)
	var b strings.Builder
	for i, ex := range m.exchanges {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(theme.Question.Render("You: " + ex.question))
		b.WriteString("\n")

		switch {
		case ex.pending:
			b.WriteString(theme.Status.Render("Thinking..."))
		case ex.err != "":
			b.WriteString(theme.Error.Render("Error: " + ex.err))
		default:
			b.WriteString(theme.Answer.Width(width).Render(ex.answer))
			if m.config.ShowSQL && ex.sql != "" {
				b.WriteString("\n")
				b.WriteString(theme.SQL.Render(ex.sql))
			}
		}
		if !ex.pending && ex.took > 0 {
			b.WriteString("\n")
			b.WriteString(theme.Status.Render(fmt.Sprintf("(%s)", ex.took.Round(10*time.Millisecond))))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderStatus() string {
	parts := make([]string, 0, len(m.keymap.ShortHelp()))
	for _, binding := range m.keymap.ShortHelp() {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	status := strings.Join(parts, " • ")
	if m.config.ShowSQL {
		status = "SQL on • " + status
	}
	return m.config.Theme.Status.Render(status)
}
