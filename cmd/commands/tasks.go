package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"focus-flow/app"
	"focus-flow/datekey"
	"focus-flow/model"
)

func newDateFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "date",
		Aliases: []string{"d"},
		Usage:   "Day to work on (YYYY-MM-DD, default today)",
	}
}

// NewAddCommand returns the add subcommand.
func NewAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a task",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			newDateFlag(),
			&cli.StringFlag{Name: "category", Usage: "Task category"},
			&cli.StringFlag{Name: "due", Usage: "Due date (YYYY-MM-DD)"},
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Add even when the day is full"},
		},
		Action: runAdd,
	}
}

// NewListCommand returns the list subcommand.
func NewListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the tasks of a day",
		Flags: []cli.Flag{
			newDateFlag(),
			&cli.StringFlag{Name: "category", Usage: "Only show this category"},
		},
		Action: runList,
	}
}

// NewToggleCommand returns the toggle subcommand.
func NewToggleCommand() *cli.Command {
	return &cli.Command{
		Name:      "toggle",
		Usage:     "Mark a task done or open again",
		ArgsUsage: "<number|task_id>",
		Flags:     []cli.Flag{newDateFlag()},
		Action:    runToggle,
	}
}

// NewTomorrowCommand returns the tomorrow subcommand.
func NewTomorrowCommand() *cli.Command {
	return &cli.Command{
		Name:      "tomorrow",
		Usage:     "Continue an unfinished task tomorrow",
		ArgsUsage: "<number|task_id>",
		Flags:     []cli.Flag{newDateFlag()},
		Action:    runTomorrow,
	}
}

// NewCarryOverCommand returns the carryover subcommand.
func NewCarryOverCommand() *cli.Command {
	return &cli.Command{
		Name:  "carryover",
		Usage: "Move unfinished tasks from the last planned day to today",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Only show what would move"},
		},
		Action: runCarryOver,
	}
}

func runAdd(ctx context.Context, cmd *cli.Command) error {
	text := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("usage: focusflow add <text>")
	}

	e, err := openEnv(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	day, err := targetDate(e.session, cmd)
	if err != nil {
		return err
	}
	limit := e.session.DailyLimit()
	if limit > 0 && len(e.session.TasksOn(day)) >= limit && !cmd.Bool("force") {
		return fmt.Errorf("%s already has %d tasks; focus works best with a short list (use --force to add anyway)",
			day, limit)
	}

	task, err := e.session.AddTaskOn(day, text, cmd.String("category"), cmd.String("due"))
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}
	fmt.Printf("Added %q to %s (%s)\n", task.Text, day, shortID(task.ID))
	return nil
}

func runList(ctx context.Context, cmd *cli.Command) error {
	e, err := openEnv(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := viewDate(e.session, cmd); err != nil {
		return err
	}
	if e.status != "" {
		fmt.Fprintln(os.Stderr, e.status)
	}

	day := e.session.ViewDate()
	list := e.session.Tasks(cmd.String("category"))
	fmt.Printf("%s (%s)\n", datekey.Long(day), datekey.Human(day, e.session.Today()))
	if msg := e.session.CarryOverMessage(); msg != "" {
		fmt.Printf("↪ %s (run: focusflow carryover)\n", msg)
	}
	if len(list) == 0 {
		fmt.Println("No tasks.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tDONE\tTASK\tCATEGORY\tDUE")
	for i, t := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			shortID(t.ID),
			checkbox(t.Completed),
			t.Text,
			dash(t.Category),
			dash(t.DueDate),
		)
		for _, st := range t.Subtasks {
			fmt.Fprintf(w, "\t\t\t  %s %s\t\t\n", checkbox(st.Completed), st.Text)
		}
	}
	return w.Flush()
}

func runToggle(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.Args().First()
	if ref == "" {
		return fmt.Errorf("usage: focusflow toggle <number|task_id>")
	}

	e, err := openEnv(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	day, err := targetDate(e.session, cmd)
	if err != nil {
		return err
	}
	task, err := resolveTask(e.session.TasksOn(day), ref)
	if err != nil {
		return err
	}
	if err := e.session.ToggleTaskOn(day, task.ID); err != nil {
		return fmt.Errorf("toggle task: %w", err)
	}
	if task.Completed {
		fmt.Printf("Reopened %q\n", task.Text)
		return nil
	}
	fmt.Printf("Done: %q\n", task.Text)
	printEncouragement(ctx, e)
	return nil
}

func runTomorrow(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.Args().First()
	if ref == "" {
		return fmt.Errorf("usage: focusflow tomorrow <number|task_id>")
	}

	e, err := openEnv(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := viewDate(e.session, cmd); err != nil {
		return err
	}
	task, err := resolveTask(e.session.Tasks(""), ref)
	if err != nil {
		return err
	}
	if task.Completed {
		return fmt.Errorf("task %q is already done", task.Text)
	}
	if err := e.session.ContinueTomorrow(task.ID); err != nil {
		return fmt.Errorf("continue tomorrow: %w", err)
	}
	fmt.Printf("%q continues on %s\n", task.Text, datekey.Shift(e.session.ViewDate(), 1))
	return nil
}

func runCarryOver(ctx context.Context, cmd *cli.Command) error {
	e, err := openEnv(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	msg := e.session.CarryOverMessage()
	if msg == "" {
		fmt.Println("Nothing to carry over.")
		return nil
	}
	fmt.Println(msg)
	if cmd.Bool("dry-run") {
		return nil
	}
	moved, err := e.session.CarryOver()
	if err != nil {
		return fmt.Errorf("carry over: %w", err)
	}
	fmt.Printf("Moved %d tasks to %s\n", moved, e.session.ViewDate())
	return nil
}

func viewDate(s *app.Session, cmd *cli.Command) error {
	if !cmd.IsSet("date") {
		return nil
	}
	return s.SetViewDate(cmd.String("date"))
}

// targetDate is the --date value or today. Unlike viewDate it leaves the
// session's view and timer alone.
func targetDate(s *app.Session, cmd *cli.Command) (string, error) {
	if !cmd.IsSet("date") {
		return s.Today(), nil
	}
	day := cmd.String("date")
	if !datekey.Valid(day) {
		return "", fmt.Errorf("%w: %q", app.ErrInvalidDate, day)
	}
	return day, nil
}

// resolveTask accepts a 1-based position, a full id or a unique id prefix.
func resolveTask(list []model.Task, ref string) (model.Task, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(list) {
			return model.Task{}, fmt.Errorf("no task number %d (day has %d tasks)", n, len(list))
		}
		return list[n-1], nil
	}
	var found []model.Task
	for _, t := range list {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			found = append(found, t)
		}
	}
	switch len(found) {
	case 0:
		return model.Task{}, fmt.Errorf("%w: task %q", app.ErrNotFound, ref)
	case 1:
		return found[0], nil
	default:
		return model.Task{}, fmt.Errorf("task id %q is ambiguous", ref)
	}
}

// printEncouragement waits for the completion message within the assistant timeout.
func printEncouragement(ctx context.Context, e *env) {
	wait := e.cfg.Assistant.Timeout
	if wait <= 0 {
		wait = 5 * time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case msg := <-e.session.Encouragements():
		fmt.Println("🎉 " + msg.Message)
	case <-timer.C:
	case <-ctx.Done():
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
