package main

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hashsafe/hashsafe/internal/clipboard"
	"github.com/hashsafe/hashsafe/internal/engine"
	"github.com/hashsafe/hashsafe/internal/tui"
)

// runInteractive starts the shell. A signal that ends the program is not
// an error.
func runInteractive(ctx context.Context, eng *engine.Engine) error {
	_, err := tui.Run(ctx, eng, clipboard.New())
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
