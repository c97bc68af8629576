package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"focus-flow/config"
)

// NewConfigCommand returns the config subcommand.
func NewConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a config file with the default settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
				},
				Action: runConfigInit,
			},
		},
	}
}

func runConfigInit(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}

	cfg := config.Default()
	// Keep the key out of the file; it is read from the environment.
	cfg.Assistant.APIKey = ""
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
