package model

import "github.com/google/uuid"

// Persisted state keys in the key-value store.
const (
	KeyTasksByDate = "tasksByDate"
	KeyBrainDump   = "brainDumpTasks"
	KeyStreak      = "streakData"
)

// Subtask is one step of a task. Its id is unique within the parent task.
type Subtask struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Task is a daily priority.
type Task struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	Subtasks  []Subtask `json:"subtasks"`
	Category  string    `json:"category,omitempty"`
	DueDate   string    `json:"dueDate,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// Clone deep copies the task. With freshIDs the task and every subtask get new ids.
func (t Task) Clone(freshIDs bool) Task {
	out := t
	out.Subtasks = make([]Subtask, len(t.Subtasks))
	copy(out.Subtasks, t.Subtasks)
	if freshIDs {
		out.ID = NewID()
		for i := range out.Subtasks {
			out.Subtasks[i].ID = NewID()
		}
	}
	return out
}

// SubtasksDone reports whether subtasks are non-empty and all completed.
func (t Task) SubtasksDone() bool {
	if len(t.Subtasks) == 0 {
		return false
	}
	for _, st := range t.Subtasks {
		if !st.Completed {
			return false
		}
	}
	return true
}

// TasksByDate maps a YYYY-MM-DD day key to its ordered task list.
type TasksByDate map[string][]Task

// BrainDumpTask is an undated captured thought.
type BrainDumpTask struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// StreakData tracks consecutive days with at least one completion.
type StreakData struct {
	Current           int     `json:"current"`
	Longest           int     `json:"longest"`
	LastCompletedDate *string `json:"lastCompletedDate"`
}

// Phase is the focus timer mode.
type Phase string

const (
	PhaseWork  Phase = "work"
	PhaseBreak Phase = "break"
)

// FocusSession is a snapshot of the focus timer.
type FocusSession struct {
	Active               bool   `json:"active"`
	Phase                Phase  `json:"phase"`
	RemainingSeconds     int    `json:"remainingSeconds"`
	PhaseDurationSeconds int    `json:"phaseDurationSeconds"`
	BoundTaskID          string `json:"boundTaskId,omitempty"`
	BoundTaskLabel       string `json:"boundTaskLabel,omitempty"`
}

// Bound reports whether a task is attached to the session.
func (s FocusSession) Bound() bool {
	return s.BoundTaskID != ""
}

// AppState is the full persisted snapshot.
type AppState struct {
	TasksByDate TasksByDate     `json:"tasksByDate"`
	BrainDump   []BrainDumpTask `json:"brainDumpTasks"`
	Streak      StreakData      `json:"streakData"`
}

// NewState returns an initialized empty state.
func NewState() AppState {
	return AppState{
		TasksByDate: TasksByDate{},
		BrainDump:   []BrainDumpTask{},
		Streak:      StreakData{},
	}
}

// NewID mints an opaque unique identifier.
func NewID() string {
	return uuid.NewString()
}
