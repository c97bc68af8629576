package datekey

import (
	"testing"
	"time"
)

func TestOfUsesLocalCalendarDay(t *testing.T) {
	ts := time.Date(2026, 3, 9, 23, 59, 0, 0, time.Local)
	if got := Of(ts); got != "2026-03-09" {
		t.Fatalf("expected 2026-03-09, got %q", got)
	}
}

func TestShiftCrossesMonthAndYear(t *testing.T) {
	cases := []struct {
		key  string
		days int
		want string
	}{
		{"2026-01-31", 1, "2026-02-01"},
		{"2026-01-01", -1, "2025-12-31"},
		{"2024-02-28", 1, "2024-02-29"},
		{"2026-03-29", 0, "2026-03-29"},
		{"not-a-date", 1, ""},
	}
	for _, tc := range cases {
		if got := Shift(tc.key, tc.days); got != tc.want {
			t.Fatalf("Shift(%q, %d): want %q, got %q", tc.key, tc.days, tc.want, got)
		}
	}
}

func TestTodayFollowsClock(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 10, 17, 8, 0, 0, 0, time.Local))
	if Today(clock) != "2026-10-17" {
		t.Fatalf("unexpected today: %s", Today(clock))
	}

	clock.Advance(20 * time.Hour)
	if Today(clock) != "2026-10-18" {
		t.Fatalf("expected clock advance to roll the day, got %s", Today(clock))
	}
}

func TestHumanRelativeLabels(t *testing.T) {
	ref := "2026-10-17"
	if got := Human("2026-10-16", ref); got != "yesterday" {
		t.Fatalf("expected yesterday, got %q", got)
	}
	if got := Human("2026-10-18", ref); got != "tomorrow" {
		t.Fatalf("expected tomorrow, got %q", got)
	}
	if got := Human("2026-10-02", ref); got != "October 2" {
		t.Fatalf("expected October 2, got %q", got)
	}
}

func TestValid(t *testing.T) {
	if !Valid("2026-10-17") {
		t.Fatalf("expected valid key")
	}
	if Valid("2026-13-01") || Valid("") {
		t.Fatalf("expected invalid keys to be rejected")
	}
}
