// Package tasks holds the date-keyed task store operations.
//
// Every operation is a pure transition: the input map is never modified and
// the returned map shares every day list except the one that changed.
// Unknown task or subtask ids are no-ops.
package tasks

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"focus-flow/model"
)

var ErrEmptyText = errors.New("task text must not be empty")

// Change is the result of a single-day mutation.
type Change struct {
	Tasks   model.TasksByDate
	Changed bool
	// Completed is set when the mutation flipped a task from open to done.
	Completed *model.Task
}

func unchanged(m model.TasksByDate) Change {
	return Change{Tasks: m}
}

// Add appends a new open task to dateKey.
func Add(m model.TasksByDate, dateKey, text, category, dueDate string) (model.TasksByDate, model.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return m, model.Task{}, ErrEmptyText
	}
	task := model.Task{
		ID:       model.NewID(),
		Text:     text,
		Subtasks: []model.Subtask{},
		Category: strings.TrimSpace(category),
		DueDate:  strings.TrimSpace(dueDate),
	}
	list := append(cloneList(m[dateKey]), task)
	return withDay(m, dateKey, list), task, nil
}

// Toggle flips a task and forces every subtask to the new value.
func Toggle(m model.TasksByDate, dateKey, taskID string) Change {
	return update(m, dateKey, taskID, func(t *model.Task) {
		t.Completed = !t.Completed
		for i := range t.Subtasks {
			t.Subtasks[i].Completed = t.Completed
		}
	})
}

// Delete removes a task from dateKey.
func Delete(m model.TasksByDate, dateKey, taskID string) Change {
	list := m[dateKey]
	idx := indexOf(list, taskID)
	if idx == -1 {
		return unchanged(m)
	}
	out := make([]model.Task, 0, len(list)-1)
	out = append(out, list[:idx]...)
	out = append(out, list[idx+1:]...)
	return Change{Tasks: withDay(m, dateKey, out), Changed: true}
}

// AddSubtask appends one open subtask.
func AddSubtask(m model.TasksByDate, dateKey, taskID, text string) Change {
	return AddSubtasks(m, dateKey, taskID, []string{text})
}

// AddSubtasks appends open subtasks, skipping blank texts. An empty
// expansion leaves the store untouched.
func AddSubtasks(m model.TasksByDate, dateKey, taskID string, texts []string) Change {
	subs := make([]model.Subtask, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		subs = append(subs, model.Subtask{ID: model.NewID(), Text: text})
	}
	if len(subs) == 0 {
		return unchanged(m)
	}
	return update(m, dateKey, taskID, func(t *model.Task) {
		t.Subtasks = append(t.Subtasks, subs...)
	})
}

// ToggleSubtask flips one subtask and recomputes the parent flag.
func ToggleSubtask(m model.TasksByDate, dateKey, taskID, subtaskID string) Change {
	task, ok := Find(m, dateKey, taskID)
	if !ok || subtaskIndex(task.Subtasks, subtaskID) == -1 {
		return unchanged(m)
	}
	return update(m, dateKey, taskID, func(t *model.Task) {
		i := subtaskIndex(t.Subtasks, subtaskID)
		t.Subtasks[i].Completed = !t.Subtasks[i].Completed
		t.Completed = t.SubtasksDone()
	})
}

// DeleteSubtask removes one subtask. The parent flag is left as is.
func DeleteSubtask(m model.TasksByDate, dateKey, taskID, subtaskID string) Change {
	task, ok := Find(m, dateKey, taskID)
	if !ok || subtaskIndex(task.Subtasks, subtaskID) == -1 {
		return unchanged(m)
	}
	return update(m, dateKey, taskID, func(t *model.Task) {
		i := subtaskIndex(t.Subtasks, subtaskID)
		t.Subtasks = append(t.Subtasks[:i], t.Subtasks[i+1:]...)
	})
}

// SetDueDate sets or clears (nil or blank) the due date.
func SetDueDate(m model.TasksByDate, dateKey, taskID string, dueDate *string) Change {
	value := ""
	if dueDate != nil {
		value = strings.TrimSpace(*dueDate)
	}
	return update(m, dateKey, taskID, func(t *model.Task) {
		t.DueDate = value
	})
}

func SetNotes(m model.TasksByDate, dateKey, taskID, notes string) Change {
	return update(m, dateKey, taskID, func(t *model.Task) {
		t.Notes = notes
	})
}

// Reorder moves draggedID to droppedOnID's position.
func Reorder(m model.TasksByDate, dateKey, draggedID, droppedOnID string) Change {
	list := m[dateKey]
	from := indexOf(list, draggedID)
	to := indexOf(list, droppedOnID)
	if from == -1 || to == -1 || from == to {
		return unchanged(m)
	}
	out := cloneList(list)
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]model.Task{moved}, out[to:]...)...)
	return Change{Tasks: withDay(m, dateKey, out), Changed: true}
}

// Find returns a copy of the task with taskID on dateKey.
func Find(m model.TasksByDate, dateKey, taskID string) (model.Task, bool) {
	list := m[dateKey]
	idx := indexOf(list, taskID)
	if idx == -1 {
		return model.Task{}, false
	}
	return list[idx].Clone(false), true
}

// Categories returns the sorted distinct categories across every day.
func Categories(m model.TasksByDate) []string {
	seen := make(map[string]struct{})
	for _, list := range m {
		for _, t := range list {
			if t.Category != "" {
				seen[t.Category] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// FilterByCategory keeps tasks of one category; an empty category keeps all.
func FilterByCategory(list []model.Task, category string) []model.Task {
	if category == "" {
		return cloneList(list)
	}
	out := make([]model.Task, 0, len(list))
	for _, t := range list {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Progress counts completed and total tasks.
func Progress(list []model.Task) (done, total int) {
	for _, t := range list {
		if t.Completed {
			done++
		}
	}
	return done, len(list)
}

// ShareText builds the plain-text progress summary for one day.
func ShareText(dateLabel string, list []model.Task) string {
	done, total := Progress(list)
	var b strings.Builder
	fmt.Fprintf(&b, "My Focus Flow Progress for %s\n", dateLabel)
	fmt.Fprintf(&b, "Completed %d of %d tasks!\n\n", done, total)
	if total == 0 {
		b.WriteString("No tasks for today.")
	} else {
		if done > 0 {
			b.WriteString("✅ Completed:\n")
			for _, t := range list {
				if t.Completed {
					fmt.Fprintf(&b, "- %s\n", t.Text)
				}
			}
		}
		if done < total {
			b.WriteString("\n◻️ To Do:\n")
			for _, t := range list {
				if !t.Completed {
					fmt.Fprintf(&b, "- %s\n", t.Text)
				}
			}
		}
	}
	b.WriteString("\nShared from the Focus Flow app.")
	return b.String()
}

func update(m model.TasksByDate, dateKey, taskID string, fn func(*model.Task)) Change {
	list := m[dateKey]
	idx := indexOf(list, taskID)
	if idx == -1 {
		return unchanged(m)
	}
	before := list[idx].Completed
	out := cloneList(list)
	out[idx] = out[idx].Clone(false)
	fn(&out[idx])

	ch := Change{Tasks: withDay(m, dateKey, out), Changed: true}
	if !before && out[idx].Completed {
		done := out[idx].Clone(false)
		ch.Completed = &done
	}
	return ch
}

// withDay returns a shallow copy of m with dateKey replaced.
func withDay(m model.TasksByDate, dateKey string, list []model.Task) model.TasksByDate {
	out := make(model.TasksByDate, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[dateKey] = list
	return out
}

// WithDays is withDay for several days at once.
func WithDays(m model.TasksByDate, days map[string][]model.Task) model.TasksByDate {
	out := make(model.TasksByDate, len(m)+len(days))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range days {
		out[k] = v
	}
	return out
}

func cloneList(list []model.Task) []model.Task {
	out := make([]model.Task, len(list))
	copy(out, list)
	return out
}

func indexOf(list []model.Task, taskID string) int {
	if taskID == "" {
		return -1
	}
	for i := range list {
		if list[i].ID == taskID {
			return i
		}
	}
	return -1
}

func subtaskIndex(list []model.Subtask, subtaskID string) int {
	if subtaskID == "" {
		return -1
	}
	for i := range list {
		if list[i].ID == subtaskID {
			return i
		}
	}
	return -1
}
