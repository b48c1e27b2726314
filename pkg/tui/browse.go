package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
)

// Browse runs the browser full screen until the user quits.
func Browse(ctx context.Context, c *catalog.Catalog) error {
	p := tea.NewProgram(NewModel(ctx, c), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "error running browser")
	}
	return nil
}
