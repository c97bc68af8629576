package datekey

import (
	"sync"
	"time"
)

// Layout is the canonical calendar-day key format.
const Layout = "2006-01-02"

// Clock abstracts wall-clock reads so day math and timers are testable.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FakeClock is deterministic and test-friendly.
type FakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{t: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Of returns the local calendar day of t as a key.
func Of(t time.Time) string {
	return t.In(time.Local).Format(Layout)
}

// Parse returns local noon of the day named by key.
// Noon keeps AddDate arithmetic clear of DST transitions.
func Parse(key string) (time.Time, error) {
	day, err := time.ParseInLocation(Layout, key, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(12 * time.Hour), nil
}

// Valid reports whether key is a well-formed day key.
func Valid(key string) bool {
	_, err := Parse(key)
	return err == nil
}

// Shift returns the key days away from key, or "" when key is invalid.
func Shift(key string, days int) string {
	day, err := Parse(key)
	if err != nil {
		return ""
	}
	return Of(day.AddDate(0, 0, days))
}

func Today(c Clock) string { return Of(c.Now()) }

// Human renders key relative to another day key: "today", "yesterday",
// "tomorrow", or a "January 2" style date.
func Human(key, relativeTo string) string {
	switch key {
	case relativeTo:
		return "today"
	case Shift(relativeTo, -1):
		return "yesterday"
	case Shift(relativeTo, 1):
		return "tomorrow"
	}
	day, err := Parse(key)
	if err != nil {
		return key
	}
	return day.Format("January 2")
}

// Long renders key as "Monday, January 2".
func Long(key string) string {
	day, err := Parse(key)
	if err != nil {
		return key
	}
	return day.Format("Monday, January 2")
}
