package commands

import (
	"github.com/urfave/cli/v3"

	"focus-flow/config"
)

// NewRootCommand returns the top-level CLI command. Without a subcommand it
// opens the TUI.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "focusflow",
		Usage: "Plan a few daily priorities and work through them with a focus timer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: runTUI,
		Commands: []*cli.Command{
			NewTUICommand(),
			NewAddCommand(),
			NewListCommand(),
			NewToggleCommand(),
			NewTomorrowCommand(),
			NewCarryOverCommand(),
			NewStreakCommand(),
			NewDumpCommand(),
			NewConfigCommand(),
		},
	}
}
