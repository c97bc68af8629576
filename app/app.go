// Package app holds the session controller: the one owner of the task
// snapshot, the focus timer and the ephemeral carry-over dismissals.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"focus-flow/assist"
	"focus-flow/datekey"
	"focus-flow/focus"
	"focus-flow/lifecycle"
	"focus-flow/model"
	"focus-flow/store"
	"focus-flow/streak"
	"focus-flow/tasks"
)

const (
	DefaultDailyLimit     = 5
	encouragementBuffer   = 8
	suggestionDefaultWait = 30 * time.Second
)

var (
	ErrInvalidTask = tasks.ErrEmptyText
	ErrInvalidDate = errors.New("invalid date key")
	ErrNotFound    = errors.New("item not found")
)

// Encouragement is the message produced after a task completion.
type Encouragement struct {
	TaskID   string
	TaskText string
	Message  string
}

type Option func(*Session)

func WithClock(c datekey.Clock) Option { return func(s *Session) { s.clock = c } }

func WithAssistant(a assist.Assistant) Option { return func(s *Session) { s.assistant = a } }

// WithEngine replaces the default focus engine.
func WithEngine(e *focus.Engine) Option { return func(s *Session) { s.engine = e } }

func WithDailyLimit(n int) Option { return func(s *Session) { s.dailyLimit = n } }

func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.log = l } }

// Session holds domain rules and in-memory state. Every mutation replaces
// whole maps and is saved before the call returns.
type Session struct {
	mu         sync.Mutex
	state      model.AppState
	dismissed  lifecycle.Dismissed
	viewKey    string
	today      string
	kv         store.KV
	engine     *focus.Engine
	assistant  assist.Assistant
	clock      datekey.Clock
	log        *slog.Logger
	dailyLimit int
	rollover   *Rollover
	streak     streak.Tracker

	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	encouragements chan Encouragement
}

// NewSession creates a session over state. kv may be nil, in which case nothing is saved.
func NewSession(state model.AppState, kv store.KV, opts ...Option) *Session {
	s := &Session{
		state:          normalizeState(state),
		dismissed:      lifecycle.NewDismissed(),
		kv:             kv,
		assistant:      assist.Fallback{},
		clock:          datekey.RealClock{},
		log:            slog.Default(),
		dailyLimit:     DefaultDailyLimit,
		rollover:       mustRollover(RolloverSpec),
		encouragements: make(chan Encouragement, encouragementBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = focus.New(focus.WithClock(s.clock), focus.WithLogger(s.log))
	}
	s.streak = streak.Tracker{Clock: s.clock}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.today = datekey.Today(s.clock)
	s.viewKey = s.today
	return s
}

// Close stops the focus timer and waits for in-flight assistant calls.
func (s *Session) Close() error {
	s.engine.Close()
	s.cancel()
	s.wg.Wait()
	if s.kv != nil {
		return s.kv.Close()
	}
	return nil
}

// Encouragements delivers completion messages. Messages are dropped when
// nobody drains the channel.
func (s *Session) Encouragements() <-chan Encouragement {
	return s.encouragements
}

// State returns a copy of the persisted snapshot.
func (s *Session) State() model.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

func (s *Session) Today() string {
	return datekey.Today(s.clock)
}

func (s *Session) ViewDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewKey
}

// SetViewDate switches the viewed day. The focus timer is reset.
func (s *Session) SetViewDate(key string) error {
	if !datekey.Valid(key) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setViewLocked(key)
	return nil
}

func (s *Session) PrevDay() { s.shiftView(-1) }

func (s *Session) NextDay() { s.shiftView(1) }

func (s *Session) GoToday() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setViewLocked(datekey.Today(s.clock))
}

func (s *Session) shiftView(days int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setViewLocked(datekey.Shift(s.viewKey, days))
}

// setViewLocked resets the timer even when key is already in view.
func (s *Session) setViewLocked(key string) {
	if key == "" {
		return
	}
	s.viewKey = key
	s.engine.Reset()
	s.log.Debug("view date changed", "date", key)
}

// Tasks returns the viewed day's tasks, optionally filtered by category.
func (s *Session) Tasks(category string) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTasks(tasks.FilterByCategory(s.state.TasksByDate[s.viewKey], category))
}

// TasksOn returns a copy of the tasks stored under dateKey.
func (s *Session) TasksOn(dateKey string) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTasks(s.state.TasksByDate[dateKey])
}

// NeedsOverloadConfirm reports whether the viewed day is at its soft limit.
// The limit is advisory; AddTask never enforces it.
func (s *Session) NeedsOverloadConfirm() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyLimit > 0 && len(s.state.TasksByDate[s.viewKey]) >= s.dailyLimit
}

func (s *Session) DailyLimit() int { return s.dailyLimit }

func (s *Session) AddTask(text, category, dueDate string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addTaskLocked(s.viewKey, text, category, dueDate)
}

// AddTaskOn appends a task to an explicit day.
func (s *Session) AddTaskOn(dateKey, text, category, dueDate string) (model.Task, error) {
	if !datekey.Valid(dateKey) {
		return model.Task{}, fmt.Errorf("%w: %q", ErrInvalidDate, dateKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addTaskLocked(dateKey, text, category, dueDate)
}

func (s *Session) addTaskLocked(dateKey, text, category, dueDate string) (model.Task, error) {
	if d := strings.TrimSpace(dueDate); d != "" && !datekey.Valid(d) {
		return model.Task{}, fmt.Errorf("%w: due %q", ErrInvalidDate, d)
	}
	next, task, err := tasks.Add(s.state.TasksByDate, dateKey, text, category, dueDate)
	if err != nil {
		return model.Task{}, err
	}
	s.state.TasksByDate = next
	s.log.Info("task added", "date", dateKey, "task_id", task.ID)
	return task, s.persistLocked()
}

// ToggleTask flips a task on the viewed day. A timer bound to it is reset.
func (s *Session) ToggleTask(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toggleLocked(s.viewKey, taskID)
}

// ToggleTaskOn flips a task on an explicit day.
func (s *Session) ToggleTaskOn(dateKey, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toggleLocked(dateKey, taskID)
}

func (s *Session) toggleLocked(dateKey, taskID string) error {
	ch := tasks.Toggle(s.state.TasksByDate, dateKey, taskID)
	if !ch.Changed {
		return nil
	}
	s.engine.UnbindIf(taskID)
	return s.applyLocked(ch)
}

func (s *Session) DeleteTask(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := tasks.Delete(s.state.TasksByDate, s.viewKey, taskID)
	if !ch.Changed {
		return nil
	}
	s.engine.UnbindIf(taskID)
	return s.applyLocked(ch)
}

func (s *Session) AddSubtask(taskID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(tasks.AddSubtask(s.state.TasksByDate, s.viewKey, taskID, text))
}

func (s *Session) ToggleSubtask(taskID, subtaskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(tasks.ToggleSubtask(s.state.TasksByDate, s.viewKey, taskID, subtaskID))
}

func (s *Session) DeleteSubtask(taskID, subtaskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(tasks.DeleteSubtask(s.state.TasksByDate, s.viewKey, taskID, subtaskID))
}

// SuggestSubtasks asks the assistant for steps and appends them to the task.
// It blocks on the assistant without holding the session lock and returns
// how many subtasks were added.
func (s *Session) SuggestSubtasks(ctx context.Context, taskID string) (int, error) {
	s.mu.Lock()
	dateKey := s.viewKey
	task, ok := tasks.Find(s.state.TasksByDate, dateKey, taskID)
	s.mu.Unlock()
	if !ok {
		return 0, nil
	}
	if _, has := ctx.Deadline(); !has {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, suggestionDefaultWait)
		defer cancel()
	}

	suggestions := s.assistant.Subtasks(ctx, task.Text)

	s.mu.Lock()
	defer s.mu.Unlock()
	ch := tasks.AddSubtasks(s.state.TasksByDate, dateKey, taskID, suggestions)
	if !ch.Changed {
		return 0, nil
	}
	after, _ := tasks.Find(ch.Tasks, dateKey, taskID)
	return len(after.Subtasks) - len(task.Subtasks), s.applyLocked(ch)
}

// SetDueDate sets or clears (nil) a due date.
func (s *Session) SetDueDate(taskID string, dueDate *string) error {
	if dueDate != nil && strings.TrimSpace(*dueDate) != "" && !datekey.Valid(strings.TrimSpace(*dueDate)) {
		return fmt.Errorf("%w: %q", ErrInvalidDate, *dueDate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(tasks.SetDueDate(s.state.TasksByDate, s.viewKey, taskID, dueDate))
}

func (s *Session) SetNotes(taskID, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(tasks.SetNotes(s.state.TasksByDate, s.viewKey, taskID, notes))
}

// Reorder moves draggedID onto droppedOnID's slot.
func (s *Session) Reorder(draggedID, droppedOnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(tasks.Reorder(s.state.TasksByDate, s.viewKey, draggedID, droppedOnID))
}

// CarryOverCandidate finds the nearest earlier day with unfinished tasks,
// relative to the viewed day.
func (s *Session) CarryOverCandidate() (lifecycle.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lifecycle.DetectCarryOver(s.state.TasksByDate, s.viewKey, s.dismissed)
}

// CarryOverMessage is the prompt for the current candidate, or "" when there is none.
func (s *Session) CarryOverMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := lifecycle.DetectCarryOver(s.state.TasksByDate, s.viewKey, s.dismissed)
	if !ok {
		return ""
	}
	return lifecycle.Message(c, s.viewKey)
}

// CarryOver moves the candidate's unfinished tasks onto the viewed day and
// returns how many moved.
func (s *Session) CarryOver() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := lifecycle.DetectCarryOver(s.state.TasksByDate, s.viewKey, s.dismissed)
	if !ok {
		return 0, nil
	}
	next, moved := lifecycle.CarryOver(s.state.TasksByDate, s.viewKey, c.SourceKey)
	if len(moved) == 0 {
		return 0, nil
	}
	for _, t := range moved {
		s.engine.UnbindIf(t.ID)
	}
	s.state.TasksByDate = next
	s.log.Info("carried over tasks", "from", c.SourceKey, "to", s.viewKey, "count", len(moved))
	return len(moved), s.persistLocked()
}

// DismissCarryOver hides the current candidate for the rest of the session.
func (s *Session) DismissCarryOver() {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := lifecycle.DetectCarryOver(s.state.TasksByDate, s.viewKey, s.dismissed)
	if !ok {
		return
	}
	s.dismissed.Add(c.SourceKey)
	s.log.Debug("carry-over dismissed", "source", c.SourceKey)
}

// ContinueTomorrow pushes an open task to the next day. A partially done
// task is split and its finished half counts as a completion.
func (s *Session) ContinueTomorrow(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lifecycle.ContinueTomorrow(s.state.TasksByDate, s.viewKey, taskID)
	if !out.Changed {
		return nil
	}
	s.engine.UnbindIf(taskID)
	s.state.TasksByDate = out.Tasks
	s.log.Info("task continued tomorrow", "task_id", taskID, "to", out.TomorrowKey, "split", out.Split)
	if out.Completed != nil {
		s.completedLocked(*out.Completed)
	}
	return s.persistLocked()
}

// Streak returns the stored streak and the value to display today.
func (s *Session) Streak() (model.StreakData, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := copyStreak(s.state.Streak)
	return data, s.streak.Effective(data)
}

func (s *Session) BrainDump() []model.BrainDumpTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.BrainDumpTask, len(s.state.BrainDump))
	copy(out, s.state.BrainDump)
	return out
}

func (s *Session) AddBrainDump(text string) (model.BrainDumpTask, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.BrainDumpTask{}, ErrInvalidTask
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item := model.BrainDumpTask{ID: model.NewID(), Text: text}
	next := make([]model.BrainDumpTask, 0, len(s.state.BrainDump)+1)
	next = append(next, s.state.BrainDump...)
	s.state.BrainDump = append(next, item)
	return item, s.persistLocked()
}

func (s *Session) DeleteBrainDump(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.removeBrainDumpLocked(id) {
		return nil
	}
	return s.persistLocked()
}

// MoveBrainDumpToToday turns a brain-dump entry into a task on the viewed day.
func (s *Session) MoveBrainDumpToToday(id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var item *model.BrainDumpTask
	for i := range s.state.BrainDump {
		if s.state.BrainDump[i].ID == id {
			found := s.state.BrainDump[i]
			item = &found
			break
		}
	}
	if item == nil {
		return model.Task{}, fmt.Errorf("%w: brain dump %q", ErrNotFound, id)
	}
	next, task, err := tasks.Add(s.state.TasksByDate, s.viewKey, item.Text, "", "")
	if err != nil {
		return model.Task{}, err
	}
	s.state.TasksByDate = next
	s.removeBrainDumpLocked(id)
	return task, s.persistLocked()
}

func (s *Session) removeBrainDumpLocked(id string) bool {
	next := make([]model.BrainDumpTask, 0, len(s.state.BrainDump))
	for _, item := range s.state.BrainDump {
		if item.ID != id {
			next = append(next, item)
		}
	}
	if len(next) == len(s.state.BrainDump) {
		return false
	}
	s.state.BrainDump = next
	return true
}

// StartFocus binds the focus timer to an open task on the viewed day.
func (s *Session) StartFocus(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := tasks.Find(s.state.TasksByDate, s.viewKey, taskID)
	if !ok || task.Completed {
		return false
	}
	s.engine.Start(task.ID, task.Text)
	return true
}

func (s *Session) Focus() model.FocusSession { return s.engine.Snapshot() }

func (s *Session) FocusState() focus.State { return s.engine.State() }

func (s *Session) FocusProgress() float64 { return s.engine.Progress() }

func (s *Session) PauseOrResumeFocus() { s.engine.PauseOrResume() }

func (s *Session) ResetFocus() { s.engine.Reset() }

// AdjustFocus changes a paused work phase by deltaMinutes.
func (s *Session) AdjustFocus(deltaMinutes int) bool { return s.engine.Adjust(deltaMinutes) }

// Categories lists every category in use.
func (s *Session) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tasks.Categories(s.state.TasksByDate)
}

// ShareText summarizes the viewed day.
func (s *Session) ShareText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tasks.ShareText(datekey.Long(s.viewKey), s.state.TasksByDate[s.viewKey])
}

// NextRollover is the next local midnight after now.
func (s *Session) NextRollover(now time.Time) time.Time {
	return s.rollover.Next(now)
}

// HandleRollover re-reads the calendar day. A view that was on the old
// today follows to the new one; the focus timer keeps running.
func (s *Session) HandleRollover() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := datekey.Today(s.clock)
	if today == s.today {
		return false
	}
	prev := s.today
	s.today = today
	if s.viewKey == prev {
		s.viewKey = today
	}
	s.log.Info("day rolled over", "from", prev, "to", today)
	return true
}

func (s *Session) applyLocked(ch tasks.Change) error {
	if !ch.Changed {
		return nil
	}
	s.state.TasksByDate = ch.Tasks
	if ch.Completed != nil {
		s.completedLocked(*ch.Completed)
	}
	return s.persistLocked()
}

// completedLocked records the streak and requests an encouragement in the
// background. The caller persists.
func (s *Session) completedLocked(task model.Task) {
	if next, changed := s.streak.RecordCompletion(s.state.Streak); changed {
		s.state.Streak = next
		s.log.Info("streak updated", "current", next.Current, "longest", next.Longest)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		msg := s.assistant.Encouragement(s.ctx, task.Text, task.Subtasks)
		select {
		case s.encouragements <- Encouragement{TaskID: task.ID, TaskText: task.Text, Message: msg}:
		default:
			s.log.Warn("encouragement dropped", "task_id", task.ID)
		}
	}()
}

func (s *Session) persistLocked() error {
	if s.kv == nil {
		return nil
	}
	if err := store.Save(s.kv, s.state); err != nil {
		s.log.Error("persist state failed", "error", err)
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func normalizeState(state model.AppState) model.AppState {
	if state.TasksByDate == nil {
		state.TasksByDate = model.TasksByDate{}
	}
	if state.BrainDump == nil {
		state.BrainDump = []model.BrainDumpTask{}
	}
	return state
}

func copyState(state model.AppState) model.AppState {
	out := model.AppState{
		TasksByDate: make(model.TasksByDate, len(state.TasksByDate)),
		BrainDump:   make([]model.BrainDumpTask, len(state.BrainDump)),
		Streak:      copyStreak(state.Streak),
	}
	for k, list := range state.TasksByDate {
		out.TasksByDate[k] = cloneTasks(list)
	}
	copy(out.BrainDump, state.BrainDump)
	return out
}

func cloneTasks(list []model.Task) []model.Task {
	out := make([]model.Task, len(list))
	for i, t := range list {
		out[i] = t.Clone(false)
	}
	return out
}

func copyStreak(data model.StreakData) model.StreakData {
	if data.LastCompletedDate != nil {
		day := *data.LastCompletedDate
		data.LastCompletedDate = &day
	}
	return data
}
