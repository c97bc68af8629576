package streak

import (
	"focus-flow/datekey"
	"focus-flow/model"
)

// Record applies one completion event on day today. It counts at most once
// per calendar day; the bool reports whether data changed.
func Record(data model.StreakData, today string) (model.StreakData, bool) {
	last := ""
	if data.LastCompletedDate != nil {
		last = *data.LastCompletedDate
	}
	if last == today {
		return data, false
	}

	current := 1
	if last != "" && last == datekey.Shift(today, -1) {
		current = data.Current + 1
	}
	longest := data.Longest
	if current > longest {
		longest = current
	}
	day := today
	return model.StreakData{
		Current:           current,
		Longest:           longest,
		LastCompletedDate: &day,
	}, true
}

// Effective is the streak worth displaying on today: a streak whose last
// completion is older than yesterday has lapsed and shows as zero.
func Effective(data model.StreakData, today string) int {
	if data.LastCompletedDate == nil {
		return 0
	}
	last := *data.LastCompletedDate
	if last == today || last == datekey.Shift(today, -1) {
		return data.Current
	}
	return 0
}

// Tracker binds Record to a clock.
type Tracker struct {
	Clock datekey.Clock
}

func (t Tracker) RecordCompletion(data model.StreakData) (model.StreakData, bool) {
	return Record(data, datekey.Today(t.clock()))
}

func (t Tracker) Effective(data model.StreakData) int {
	return Effective(data, datekey.Today(t.clock()))
}

func (t Tracker) clock() datekey.Clock {
	if t.Clock == nil {
		return datekey.RealClock{}
	}
	return t.Clock
}
