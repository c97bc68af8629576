package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"focus-flow/datekey"
)

// NewStreakCommand returns the streak subcommand.
func NewStreakCommand() *cli.Command {
	return &cli.Command{
		Name:   "streak",
		Usage:  "Show the completion streak",
		Action: runStreak,
	}
}

func runStreak(ctx context.Context, cmd *cli.Command) error {
	e, err := openEnv(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	stored, shown := e.session.Streak()
	fmt.Printf("Current streak: %d %s\n", shown, plural(shown, "day", "days"))
	fmt.Printf("Longest streak: %d %s\n", stored.Longest, plural(stored.Longest, "day", "days"))
	if stored.LastCompletedDate != nil {
		fmt.Printf("Last completion: %s\n", datekey.Human(*stored.LastCompletedDate, e.session.Today()))
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
