package focus

import (
	"sync"
	"testing"
	"time"

	"focus-flow/datekey"
	"focus-flow/model"
)

type fakeTimer struct {
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler never runs anything on its own; tests fire pending ticks.
type fakeScheduler struct {
	mu      sync.Mutex
	pending []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(_ time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{f: f}
	s.pending = append(s.pending, t)
	return t
}

func (s *fakeScheduler) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}

// fire runs every live pending tick once.
func (s *fakeScheduler) fire() {
	s.mu.Lock()
	due := make([]*fakeTimer, 0, len(s.pending))
	for _, t := range s.pending {
		if !t.stopped {
			t.stopped = true
			due = append(due, t)
		}
	}
	s.pending = nil
	s.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type cueRecorder struct {
	mu     sync.Mutex
	starts int
	ends   int
}

func (r *cueRecorder) Play(c Cue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == CueEnd {
		r.ends++
	} else {
		r.starts++
	}
}

func (r *cueRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.ends
}

func (r *cueRecorder) reset() {
	r.mu.Lock()
	r.starts, r.ends = 0, 0
	r.mu.Unlock()
}

type harness struct {
	engine *Engine
	clock  *datekey.FakeClock
	sched  *fakeScheduler
	cues   *cueRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock: datekey.NewFakeClock(time.Date(2026, 10, 17, 9, 0, 0, 0, time.Local)),
		sched: &fakeScheduler{},
		cues:  &cueRecorder{},
	}
	h.engine = New(WithClock(h.clock), WithScheduler(h.sched), WithCues(h.cues))
	t.Cleanup(h.engine.Close)
	return h
}

func TestNewEngineStartsIdle(t *testing.T) {
	h := newHarness(t)
	s := h.engine.Snapshot()
	if h.engine.State() != Idle {
		t.Fatalf("expected idle, got %s", h.engine.State())
	}
	if s.Active || s.Phase != model.PhaseWork || s.RemainingSeconds != 25*60 || s.PhaseDurationSeconds != 25*60 || s.Bound() {
		t.Fatalf("unexpected idle session: %+v", s)
	}
}

func TestStartBindsTaskAndPlaysStartCue(t *testing.T) {
	h := newHarness(t)
	h.engine.Start("t1", "Task A")

	s := h.engine.Snapshot()
	if !s.Active || s.BoundTaskID != "t1" || s.BoundTaskLabel != "Task A" {
		t.Fatalf("unexpected session after start: %+v", s)
	}
	if h.engine.State() != WorkRunning {
		t.Fatalf("expected work-running, got %s", h.engine.State())
	}
	if starts, ends := h.cues.counts(); starts != 1 || ends != 0 {
		t.Fatalf("expected one start cue, got starts=%d ends=%d", starts, ends)
	}
	if h.sched.live() != 1 {
		t.Fatalf("expected exactly one pending tick, got %d", h.sched.live())
	}
}

func TestCountdownFollowsWallClockNotTickCount(t *testing.T) {
	h := newHarness(t)
	h.engine.Start("t1", "Task A")

	h.clock.Advance(time.Second)
	h.sched.fire()
	if got := h.engine.Snapshot().RemainingSeconds; got != 25*60-1 {
		t.Fatalf("expected %d, got %d", 25*60-1, got)
	}

	// A throttled tab: one tick arrives ten minutes late.
	h.clock.Advance(10 * time.Minute)
	h.sched.fire()
	if got := h.engine.Snapshot().RemainingSeconds; got != 15*60-1 {
		t.Fatalf("expected drift-corrected %d, got %d", 15*60-1, got)
	}

	h.clock.Advance(400 * time.Millisecond)
	h.sched.fire()
	if got := h.engine.Snapshot().RemainingSeconds; got != 15*60-1 {
		t.Fatalf("expected rounding to keep %d, got %d", 15*60-1, got)
	}
	if h.sched.live() != 1 {
		t.Fatalf("expected exactly one pending tick, got %d", h.sched.live())
	}
}

func TestWorkPhaseAutoSwitchesToBreak(t *testing.T) {
	h := newHarness(t)
	h.engine.Start("t1", "Task A")
	h.cues.reset()

	h.clock.Advance(25 * time.Minute)
	h.sched.fire()

	s := h.engine.Snapshot()
	if s.Phase != model.PhaseBreak || s.RemainingSeconds != 5*60 || s.PhaseDurationSeconds != 5*60 {
		t.Fatalf("expected fresh break phase, got %+v", s)
	}
	if !s.Active {
		t.Fatalf("expected the break to start automatically")
	}
	if s.BoundTaskID != "t1" || s.BoundTaskLabel != "Task A" {
		t.Fatalf("expected bound task kept for display during break, got %+v", s)
	}
	if starts, ends := h.cues.counts(); starts != 1 || ends != 1 {
		t.Fatalf("expected one end cue and one start cue, got starts=%d ends=%d", starts, ends)
	}
	if h.engine.State() != BreakRunning {
		t.Fatalf("expected break-running, got %s", h.engine.State())
	}
}

func TestBreakPhaseAutoSwitchesBackToWork(t *testing.T) {
	h := newHarness(t)
	h.engine.Start("t1", "Task A")
	h.clock.Advance(25 * time.Minute)
	h.sched.fire()

	h.clock.Advance(5 * time.Minute)
	h.sched.fire()

	s := h.engine.Snapshot()
	if s.Phase != model.PhaseWork || s.RemainingSeconds != 25*60 || !s.Active {
		t.Fatalf("expected running work phase, got %+v", s)
	}
	if s.BoundTaskID != "t1" {
		t.Fatalf("expected same bound task after break, got %q", s.BoundTaskID)
	}
}

func TestPhaseSwitchRearmsFromSwitchInstant(t *testing.T) {
	h := newHarness(t)
	h.engine.Start("t1", "Task A")

	// Tick arrives three minutes after the work phase should have ended.
	h.clock.Advance(28 * time.Minute)
	h.sched.fire()
	h.clock.Advance(time.Minute)
	h.sched.fire()

	if got := h.engine.Snapshot().RemainingSeconds; got != 4*60 {
		t.Fatalf("expected break re-armed for full duration from switch, got %d", got)
	}
}

func TestPauseFreezesAndResumeRearms(t *testing.T) {
	h := newHarness(t)
	h.engine.Start("t1", "Task A")
	h.clock.Advance(5 * time.Minute)
	h.sched.fire()

	h.engine.PauseOrResume()
	if h.engine.State() != WorkPaused {
		t.Fatalf("expected work-paused, got %s", h.engine.State())
	}
	if h.sched.live() != 0 {
		t.Fatalf("expected no pending tick while paused, got %d", h.sched.live())
	}

	h.clock.Advance(time.Hour)
	if got := h.engine.Snapshot().RemainingSeconds; got != 20*60 {
		t.Fatalf("expected frozen remaining 20m, got %d", got)
	}

	h.cues.reset()
	h.engine.PauseOrResume()
	if starts, _ := h.cues.counts(); starts != 1 {
		t.Fatalf("expected start cue on resume, got %d", starts)
	}
	h.clock.Advance(time.Minute)
	h.sched.fire()
	if got := h.engine.Snapshot().RemainingSeconds; got != 19*60 {
		t.Fatalf("expected countdown to continue from frozen value, got %d", got)
	}
}

func TestPauseDuringBreak(t *testing.T) {
	h := newHarness(t)
	h.engine.Start("t1", "Task A")
	h.clock.Advance(25 * time.Minute)
	h.sched.fire()

	h.engine.PauseOrResume()
	if h.engine.State() != BreakPaused {
		t.Fatalf("expected break-paused, got %s", h.engine.State())
	}
	if h.engine.Adjust(5) {
		t.Fatalf("adjust must be rejected during break")
	}
	h.engine.PauseOrResume()
	if h.engine.State() != BreakRunning {
		t.Fatalf("expected break-running, got %s", h.engine.State())
	}
}

func TestResetCancelsPendingTick(t *testing.T) {
	h := newHarness(t)
	h.engine.Start("t1", "Task A")
	h.engine.Reset()

	if h.sched.live() != 0 {
		t.Fatalf("expected reset to cancel the pending tick")
	}
	h.clock.Advance(30 * time.Minute)
	h.sched.fire()

	s := h.engine.Snapshot()
	if h.engine.State() != Idle || s.Active || s.Bound() || s.RemainingSeconds != 25*60 {
		t.Fatalf("stale tick resurrected the session: %+v", s)
	}
}

func TestStaleTickAfterRestartIsIgnored(t *testing.T) {
	h := newHarness(t)
	sched := h.sched
	h.engine.Start("t1", "Task A")

	// Capture the first tick before the restart replaces it.
	sched.mu.Lock()
	stale := sched.pending[0]
	sched.mu.Unlock()

	h.clock.Advance(10 * time.Minute)
	h.engine.Start("t2", "Task B")

	h.clock.Advance(30 * time.Second)
	stale.f()

	s := h.engine.Snapshot()
	if s.BoundTaskID != "t2" || s.RemainingSeconds != 25*60 {
		t.Fatalf("stale tick must not touch the restarted session: %+v", s)
	}
}

func TestStartWhileRunningRebinds(t *testing.T) {
	h := newHarness(t)
	h.engine.Start("t1", "Task A")
	h.clock.Advance(7 * time.Minute)
	h.sched.fire()

	h.engine.Start("t2", "Task B")
	s := h.engine.Snapshot()
	if s.BoundTaskID != "t2" || s.RemainingSeconds != 25*60 || s.PhaseDurationSeconds != 25*60 {
		t.Fatalf("expected fresh work phase for new task, got %+v", s)
	}
	if h.sched.live() != 1 {
		t.Fatalf("expected exactly one pending tick, got %d", h.sched.live())
	}
}

func TestAdjustClampsAndResetsProgressBasis(t *testing.T) {
	h := newHarness(t)
	h.engine.Start("t1", "Task A")
	h.engine.PauseOrResume()

	if !h.engine.Adjust(5) {
		t.Fatalf("expected adjust to apply while paused in work")
	}
	s := h.engine.Snapshot()
	if s.RemainingSeconds != 30*60 || s.PhaseDurationSeconds != 30*60 {
		t.Fatalf("expected 30m/30m, got %+v", s)
	}
	if h.engine.Progress() != 0 {
		t.Fatalf("expected full progress ring after adjust, got %v", h.engine.Progress())
	}

	for i := 0; i < 20; i++ {
		h.engine.Adjust(5)
	}
	if got := h.engine.Snapshot().RemainingSeconds; got != 90*60 {
		t.Fatalf("expected cap at 90m, got %d", got)
	}

	for i := 0; i < 40; i++ {
		h.engine.Adjust(-5)
	}
	if got := h.engine.Snapshot().RemainingSeconds; got != 5*60 {
		t.Fatalf("expected floor at 5m, got %d", got)
	}
}

func TestAdjustRejectedWhileRunning(t *testing.T) {
	h := newHarness(t)
	h.engine.Start("t1", "Task A")
	if h.engine.Adjust(5) {
		t.Fatalf("adjust must be rejected while running")
	}
	if got := h.engine.Snapshot().RemainingSeconds; got != 25*60 {
		t.Fatalf("expected unchanged remaining, got %d", got)
	}
}

func TestUnbindIfOnlyResetsMatchingTask(t *testing.T) {
	h := newHarness(t)
	h.engine.Start("t1", "Task A")

	if h.engine.UnbindIf("other") {
		t.Fatalf("unbind must ignore other tasks")
	}
	if h.engine.State() != WorkRunning {
		t.Fatalf("expected session untouched")
	}
	if !h.engine.UnbindIf("t1") {
		t.Fatalf("expected unbind for bound task")
	}
	if h.engine.State() != Idle || h.sched.live() != 0 {
		t.Fatalf("expected idle with no pending tick")
	}
}

func TestPauseOrResumeIgnoredWhenIdle(t *testing.T) {
	h := newHarness(t)
	h.engine.PauseOrResume()
	if h.engine.State() != Idle || h.sched.live() != 0 {
		t.Fatalf("expected idle engine to ignore pause/resume")
	}
}

func TestObserverReceivesSnapshots(t *testing.T) {
	var mu sync.Mutex
	var seen []model.FocusSession
	clock := datekey.NewFakeClock(time.Date(2026, 10, 17, 9, 0, 0, 0, time.Local))
	sched := &fakeScheduler{}
	e := New(
		WithClock(clock),
		WithScheduler(sched),
		WithDurations(Durations{Work: 2 * time.Minute, Break: time.Minute, MinWork: time.Minute, MaxWork: 10 * time.Minute}),
		WithObserver(func(s model.FocusSession) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		}),
	)
	defer e.Close()

	e.Start("t1", "Task A")
	clock.Advance(2 * time.Minute)
	sched.fire()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected two snapshots, got %d", len(seen))
	}
	if seen[1].Phase != model.PhaseBreak || seen[1].RemainingSeconds != 60 {
		t.Fatalf("unexpected last snapshot: %+v", seen[1])
	}
}
