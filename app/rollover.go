package app

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// RolloverSpec fires at local midnight.
const RolloverSpec = "0 0 * * *"

// Rollover tells when the calendar day changes.
type Rollover struct {
	raw      string
	schedule cron.Schedule
}

// ParseRollover parses a standard 5-field cron expression.
func ParseRollover(expr string) (*Rollover, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse rollover %q: %w", expr, err)
	}
	return &Rollover{raw: expr, schedule: schedule}, nil
}

func mustRollover(expr string) *Rollover {
	r, err := ParseRollover(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// Next returns the next activation strictly after t.
func (r *Rollover) Next(t time.Time) time.Time {
	return r.schedule.Next(t)
}

func (r *Rollover) String() string {
	return r.raw
}
