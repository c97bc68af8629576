// Package focus implements the Pomodoro focus timer.
//
// The countdown is derived from a wall-clock target instant rather than from
// counting ticks, so a late or throttled tick never loses time: every tick
// recomputes the remaining seconds from the clock.
package focus

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"focus-flow/datekey"
	"focus-flow/model"
)

// Cue is an audio-style side effect fired at timer transitions.
type Cue int

const (
	CueStart Cue = iota
	CueEnd
)

func (c Cue) String() string {
	if c == CueEnd {
		return "end"
	}
	return "start"
}

// Cues receives fire-and-forget cues. Play must not block.
type Cues interface {
	Play(Cue)
}

// CueFunc adapts a function to Cues.
type CueFunc func(Cue)

func (f CueFunc) Play(c Cue) { f(c) }

type silentCues struct{}

func (silentCues) Play(Cue) {}

// Timer is a pending tick.
type Timer interface {
	Stop() bool
}

// Scheduler arranges for f to run once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// State is the engine's position in the work/break state machine.
type State int

const (
	Idle State = iota
	WorkRunning
	WorkPaused
	BreakRunning
	BreakPaused
)

func (s State) String() string {
	switch s {
	case WorkRunning:
		return "work-running"
	case WorkPaused:
		return "work-paused"
	case BreakRunning:
		return "break-running"
	case BreakPaused:
		return "break-paused"
	default:
		return "idle"
	}
}

// Durations configures phase lengths and the manual adjustment bounds.
type Durations struct {
	Work    time.Duration
	Break   time.Duration
	MinWork time.Duration
	MaxWork time.Duration
}

func DefaultDurations() Durations {
	return Durations{
		Work:    25 * time.Minute,
		Break:   5 * time.Minute,
		MinWork: 5 * time.Minute,
		MaxWork: 90 * time.Minute,
	}
}

const tickInterval = time.Second

type Option func(*Engine)

func WithClock(c datekey.Clock) Option { return func(e *Engine) { e.clock = c } }

func WithScheduler(s Scheduler) Option { return func(e *Engine) { e.sched = s } }

func WithCues(c Cues) Option { return func(e *Engine) { e.cues = c } }

func WithDurations(d Durations) Option { return func(e *Engine) { e.durations = d } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithObserver registers a callback receiving a snapshot after every change.
// It runs outside the engine lock.
func WithObserver(fn func(model.FocusSession)) Option {
	return func(e *Engine) { e.observer = fn }
}

// Engine is the single focus timer of a session. All methods are safe for
// concurrent use; ticks arrive on scheduler goroutines.
type Engine struct {
	mu        sync.Mutex
	clock     datekey.Clock
	sched     Scheduler
	cues      Cues
	durations Durations
	log       *slog.Logger
	observer  func(model.FocusSession)

	session model.FocusSession
	engaged bool
	target  time.Time
	pending Timer
	gen     uint64
}

func New(opts ...Option) *Engine {
	e := &Engine{
		clock:     datekey.RealClock{},
		sched:     realScheduler{},
		cues:      silentCues{},
		durations: DefaultDurations(),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.session = e.idle()
	return e
}

func (e *Engine) idle() model.FocusSession {
	work := seconds(e.durations.Work)
	return model.FocusSession{
		Phase:                model.PhaseWork,
		RemainingSeconds:     work,
		PhaseDurationSeconds: work,
	}
}

// Snapshot returns the current session.
func (e *Engine) Snapshot() model.FocusSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	if !e.engaged {
		return Idle
	}
	switch {
	case e.session.Phase == model.PhaseBreak && e.session.Active:
		return BreakRunning
	case e.session.Phase == model.PhaseBreak:
		return BreakPaused
	case e.session.Active:
		return WorkRunning
	default:
		return WorkPaused
	}
}

// Progress is the elapsed fraction of the current phase in [0, 1].
func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.PhaseDurationSeconds <= 0 {
		return 0
	}
	p := 1 - float64(e.session.RemainingSeconds)/float64(e.session.PhaseDurationSeconds)
	return math.Max(0, math.Min(1, p))
}

// Start binds taskID and begins a fresh work phase, discarding any running countdown.
func (e *Engine) Start(taskID, label string) {
	e.mu.Lock()
	work := seconds(e.durations.Work)
	e.session = model.FocusSession{
		Active:               true,
		Phase:                model.PhaseWork,
		RemainingSeconds:     work,
		PhaseDurationSeconds: work,
		BoundTaskID:          taskID,
		BoundTaskLabel:       label,
	}
	e.engaged = true
	e.armLocked(e.durations.Work)
	snap := e.session
	e.mu.Unlock()

	e.log.Debug("focus started", "task_id", taskID)
	e.emit(snap, CueStart)
}

// PauseOrResume toggles the countdown. Resuming re-arms the target from the
// frozen remaining time. It does nothing while idle.
func (e *Engine) PauseOrResume() {
	e.mu.Lock()
	if !e.engaged {
		e.mu.Unlock()
		return
	}
	var cues []Cue
	if e.session.Active {
		e.disarmLocked()
		e.session.Active = false
	} else {
		e.session.Active = true
		e.armLocked(time.Duration(e.session.RemainingSeconds) * time.Second)
		cues = append(cues, CueStart)
	}
	snap := e.session
	e.mu.Unlock()

	e.log.Debug("focus toggled", "active", snap.Active, "remaining", snap.RemainingSeconds)
	e.emit(snap, cues...)
}

// Reset returns to idle and cancels any pending tick.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.resetLocked()
	snap := e.session
	e.mu.Unlock()
	e.emit(snap)
}

func (e *Engine) resetLocked() {
	e.disarmLocked()
	e.engaged = false
	e.target = time.Time{}
	e.session = e.idle()
}

// UnbindIf resets the engine when it is bound to taskID.
func (e *Engine) UnbindIf(taskID string) bool {
	if taskID == "" {
		return false
	}
	e.mu.Lock()
	if e.session.BoundTaskID != taskID {
		e.mu.Unlock()
		return false
	}
	e.resetLocked()
	snap := e.session
	e.mu.Unlock()

	e.log.Debug("focus unbound", "task_id", taskID)
	e.emit(snap)
	return true
}

// Adjust shifts a paused work phase by deltaMinutes, clamped to the
// configured bounds. The result becomes the new full-progress basis.
func (e *Engine) Adjust(deltaMinutes int) bool {
	e.mu.Lock()
	if e.session.Active || e.session.Phase != model.PhaseWork {
		e.mu.Unlock()
		return false
	}
	next := e.session.RemainingSeconds + deltaMinutes*60
	next = clampInt(next, seconds(e.durations.MinWork), seconds(e.durations.MaxWork))
	e.session.RemainingSeconds = next
	e.session.PhaseDurationSeconds = next
	snap := e.session
	e.mu.Unlock()

	e.emit(snap)
	return true
}

// Close cancels any pending tick.
func (e *Engine) Close() {
	e.mu.Lock()
	e.disarmLocked()
	e.mu.Unlock()
}

// armLocked sets the target d from now and schedules the next tick.
func (e *Engine) armLocked(d time.Duration) {
	e.target = e.clock.Now().Add(d)
	e.scheduleLocked()
}

// scheduleLocked replaces any pending tick with a single new one.
func (e *Engine) scheduleLocked() {
	e.disarmLocked()
	gen := e.gen
	e.pending = e.sched.AfterFunc(tickInterval, func() { e.tick(gen) })
}

// disarmLocked cancels the pending tick. Bumping gen also invalidates a
// tick that already fired and is waiting on the lock.
func (e *Engine) disarmLocked() {
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
	e.gen++
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || !e.session.Active {
		e.mu.Unlock()
		return
	}
	e.pending = nil

	now := e.clock.Now()
	remaining := int(math.Round(float64(e.target.Sub(now)) / float64(time.Second)))
	if remaining < 0 {
		remaining = 0
	}

	var cues []Cue
	if remaining == 0 {
		cues = append(cues, CueEnd)
		next, d := model.PhaseBreak, e.durations.Break
		if e.session.Phase == model.PhaseBreak {
			next, d = model.PhaseWork, e.durations.Work
		}
		e.session.Phase = next
		e.session.RemainingSeconds = seconds(d)
		e.session.PhaseDurationSeconds = seconds(d)
		e.target = now.Add(d)
		cues = append(cues, CueStart)
		e.log.Info("focus phase switched", "phase", next, "task_id", e.session.BoundTaskID)
	} else {
		e.session.RemainingSeconds = remaining
	}
	e.scheduleLocked()
	snap := e.session
	e.mu.Unlock()

	e.emit(snap, cues...)
}

func (e *Engine) emit(snap model.FocusSession, cues ...Cue) {
	for _, c := range cues {
		e.cues.Play(c)
	}
	if e.observer != nil {
		e.observer(snap)
	}
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
