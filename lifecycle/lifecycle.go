// Package lifecycle moves tasks across days: carry-over of unfinished work
// from past days and the per-task continue-tomorrow split.
package lifecycle

import (
	"fmt"
	"sort"
	"time"

	"focus-flow/datekey"
	"focus-flow/model"
	"focus-flow/tasks"
)

// DoneForTodaySuffix marks the part of a split task that was finished today.
const DoneForTodaySuffix = " (Done for today)"

// Candidate is the nearest past day that still has unfinished tasks.
type Candidate struct {
	SourceKey  string
	SourceDate time.Time
	Unfinished []model.Task
}

// Dismissed is the session-scoped set of source days the user declined to carry over.
type Dismissed map[string]struct{}

func NewDismissed() Dismissed { return Dismissed{} }

func (d Dismissed) Add(key string) { d[key] = struct{}{} }

func (d Dismissed) Has(key string) bool {
	_, ok := d[key]
	return ok
}

func (d Dismissed) Len() int { return len(d) }

// DetectCarryOver scans days strictly before today, newest first, skipping
// dismissed ones, and returns the first that has an unfinished task.
func DetectCarryOver(m model.TasksByDate, today string, dismissed Dismissed) (Candidate, bool) {
	keys := make([]string, 0, len(m))
	for key := range m {
		if key < today && !dismissed.Has(key) {
			keys = append(keys, key)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	for _, key := range keys {
		unfinished := unfinishedOf(m[key])
		if len(unfinished) == 0 {
			continue
		}
		date, err := datekey.Parse(key)
		if err != nil {
			date = time.Time{}
		}
		return Candidate{SourceKey: key, SourceDate: date, Unfinished: unfinished}, true
	}
	return Candidate{}, false
}

// CarryOver moves every unfinished task of sourceKey onto today as fresh
// clones and leaves only the completed tasks behind. It returns the moved
// originals so callers can release anything bound to their ids.
func CarryOver(m model.TasksByDate, today, sourceKey string) (model.TasksByDate, []model.Task) {
	if sourceKey == today {
		return m, nil
	}
	source := m[sourceKey]
	moved := unfinishedOf(source)
	if len(moved) == 0 {
		return m, nil
	}

	kept := make([]model.Task, 0, len(source)-len(moved))
	for _, t := range source {
		if t.Completed {
			kept = append(kept, t)
		}
	}
	target := make([]model.Task, 0, len(m[today])+len(moved))
	target = append(target, m[today]...)
	for _, t := range moved {
		target = append(target, t.Clone(true))
	}

	out := tasks.WithDays(m, map[string][]model.Task{
		sourceKey: kept,
		today:     target,
	})
	return out, moved
}

// Message is the prompt shown for a carry-over candidate.
func Message(c Candidate, today string) string {
	count := len(c.Unfinished)
	noun := "task"
	if count != 1 {
		noun = "tasks"
	}
	from := "from " + datekey.Human(c.SourceKey, today)
	return fmt.Sprintf("Move %d unfinished %s %s to today?", count, noun, from)
}

// Outcome is the result of ContinueTomorrow.
type Outcome struct {
	Tasks       model.TasksByDate
	Changed     bool
	Split       bool
	TomorrowKey string
	// Moved is the task appended to tomorrow.
	Moved model.Task
	// Completed is today's finished half of a split; nil when the whole task moved.
	Completed *model.Task
}

// ContinueTomorrow pushes an open task to the day after dateKey. With
// partial subtask progress the task is split: tomorrow gets the open
// subtasks, today's task keeps the done ones and is marked complete.
// Otherwise the whole task moves.
func ContinueTomorrow(m model.TasksByDate, dateKey, taskID string) Outcome {
	noop := Outcome{Tasks: m}
	task, ok := tasks.Find(m, dateKey, taskID)
	if !ok || task.Completed {
		return noop
	}
	tomorrow := datekey.Shift(dateKey, 1)
	if tomorrow == "" {
		return noop
	}

	var done, open []model.Subtask
	for _, st := range task.Subtasks {
		if st.Completed {
			done = append(done, st)
		} else {
			open = append(open, st)
		}
	}

	if len(done) > 0 && len(open) > 0 {
		next := task.Clone(true)
		next.Completed = false
		next.Subtasks = make([]model.Subtask, 0, len(open))
		for _, st := range open {
			st.ID = model.NewID()
			next.Subtasks = append(next.Subtasks, st)
		}

		finished := task.Clone(false)
		finished.Text += DoneForTodaySuffix
		finished.Completed = true
		finished.Subtasks = done

		today := cloneReplacing(m[dateKey], taskID, &finished)
		out := tasks.WithDays(m, map[string][]model.Task{
			dateKey:  today,
			tomorrow: appendTask(m[tomorrow], next),
		})
		return Outcome{
			Tasks:       out,
			Changed:     true,
			Split:       true,
			TomorrowKey: tomorrow,
			Moved:       next,
			Completed:   &finished,
		}
	}

	next := task.Clone(true)
	next.Completed = false
	out := tasks.WithDays(m, map[string][]model.Task{
		dateKey:  cloneReplacing(m[dateKey], taskID, nil),
		tomorrow: appendTask(m[tomorrow], next),
	})
	return Outcome{Tasks: out, Changed: true, TomorrowKey: tomorrow, Moved: next}
}

func unfinishedOf(list []model.Task) []model.Task {
	var out []model.Task
	for _, t := range list {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

func appendTask(list []model.Task, t model.Task) []model.Task {
	out := make([]model.Task, 0, len(list)+1)
	out = append(out, list...)
	return append(out, t)
}

// cloneReplacing copies list with taskID swapped for repl, or dropped when repl is nil.
func cloneReplacing(list []model.Task, taskID string, repl *model.Task) []model.Task {
	out := make([]model.Task, 0, len(list))
	for _, t := range list {
		if t.ID != taskID {
			out = append(out, t)
			continue
		}
		if repl != nil {
			out = append(out, *repl)
		}
	}
	return out
}
