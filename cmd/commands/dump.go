package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
)

// NewDumpCommand returns the dump subcommand.
func NewDumpCommand() *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "Capture undated thoughts in the brain dump",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List captured thoughts",
				Action: runDumpList,
			},
			{
				Name:      "add",
				Usage:     "Capture a thought",
				ArgsUsage: "<text>",
				Action:    runDumpAdd,
			},
			{
				Name:      "move",
				Usage:     "Turn a thought into a task for today",
				ArgsUsage: "<number>",
				Action:    runDumpMove,
			},
		},
		DefaultCommand: "list",
	}
}

func runDumpList(ctx context.Context, cmd *cli.Command) error {
	e, err := openEnv(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	items := e.session.BrainDump()
	if len(items) == 0 {
		fmt.Println("Brain dump is empty.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tTHOUGHT")
	for i, item := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, shortID(item.ID), item.Text)
	}
	return w.Flush()
}

func runDumpAdd(ctx context.Context, cmd *cli.Command) error {
	text := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("usage: focusflow dump add <text>")
	}

	e, err := openEnv(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	item, err := e.session.AddBrainDump(text)
	if err != nil {
		return fmt.Errorf("add thought: %w", err)
	}
	fmt.Printf("Captured %q\n", item.Text)
	return nil
}

func runDumpMove(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.Args().First()
	if ref == "" {
		return fmt.Errorf("usage: focusflow dump move <number>")
	}

	e, err := openEnv(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	items := e.session.BrainDump()
	var n int
	if _, err := fmt.Sscanf(ref, "%d", &n); err != nil || n < 1 || n > len(items) {
		return fmt.Errorf("no thought number %s", ref)
	}
	task, err := e.session.MoveBrainDumpToToday(items[n-1].ID)
	if err != nil {
		return fmt.Errorf("move thought: %w", err)
	}
	fmt.Printf("%q added to %s\n", task.Text, e.session.ViewDate())
	return nil
}
