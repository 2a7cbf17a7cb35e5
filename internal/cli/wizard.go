package cli

import (
	"fmt"

	"github.com/alexanderramin/rollup/internal/cli/formatter"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// rollupHuhTheme returns a custom huh theme using the formatter's Gruvbox palette.
func rollupHuhTheme() *huh.Theme {
	t := huh.ThemeBase()

	// Focused state: orange accent
	t.Focused.Title = lipgloss.NewStyle().Foreground(formatter.ColorHeader).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Focused.FocusedButton = lipgloss.NewStyle().Foreground(formatter.ColorFg).Background(formatter.ColorHeader).Padding(0, 1)
	t.Focused.BlurredButton = lipgloss.NewStyle().Foreground(formatter.ColorDim).Padding(0, 1)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	return t
}

// wizardConfirm creates a huh yes/no form.
func wizardConfirm(title, description string, result *bool) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Apply").
				Negative("Cancel").
				Value(result),
		),
	).WithTheme(rollupHuhTheme()).WithShowHelp(false)
}

func (app *App) confirm(title, description string) (bool, error) {
	if app.Confirm != nil {
		return app.Confirm(title, description)
	}
	var ok bool
	if err := wizardConfirm(title, description, &ok).Run(); err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return ok, nil
}

func (app *App) interactive() bool {
	return app.IsInteractive != nil && app.IsInteractive()
}
