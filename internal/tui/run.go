package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the console and blocks until the user quits or ctx ends.
func Run(ctx context.Context, asker Asker, cfg Config) error {
	if asker == nil {
		return fmt.Errorf("chat service is required")
	}

	p := tea.NewProgram(NewModel(ctx, asker, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("chat console failed: %w", err)
	}
	return nil
}
