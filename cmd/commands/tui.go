package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"focus-flow/focus"
	"focus-flow/tui"
)

// NewTUICommand returns the tui subcommand.
func NewTUICommand() *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Launch the interactive TUI",
		Action: runTUI,
	}
}

func runTUI(ctx context.Context, cmd *cli.Command) error {
	e, err := openEnv(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil {
			fmt.Fprintln(os.Stderr, "close:", cerr)
		}
	}()

	e.logger.Info("tui starting", "backend", e.cfg.Storage.Backend, "path", e.cfg.Storage.Path)
	p := tea.NewProgram(tui.NewModel(e.session, e.status).WithFocusFeed(e.feed), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

func bellCues() focus.Cues {
	return tui.Bell(os.Stderr)
}
