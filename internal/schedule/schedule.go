// Package schedule expands a habit selection into concrete reminder slots.
// Everything here is pure.
package schedule

import (
	"errors"
	"fmt"

	"intent-bot/internal/model"
)

// ErrEmptyRange is returned when a template range does not start before it
// ends.
var ErrEmptyRange = errors.New("schedule: start must be before end")

// Slot is one weekly trigger: a weekday and a time on it.
type Slot struct {
	Day  model.Weekday
	Time model.TimeOfDay
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %s", s.Day, s.Time)
}

// Expand returns the cross product of days and times. Days are visited in
// calendar order and times in the given order, so the i-th notification id
// of a habit always maps to the same slot. Repeated days or times yield one
// slot each.
func Expand(days []model.Weekday, times []model.TimeOfDay) []Slot {
	days = model.NormalizeWeekdays(days)
	times = model.UniqueTimes(times)
	slots := make([]Slot, 0, len(days)*len(times))
	for _, d := range days {
		for _, t := range times {
			slots = append(slots, Slot{Day: d, Time: t})
		}
	}
	return slots
}

// Count is len(Expand(days, times)).
func Count(days []model.Weekday, times []model.TimeOfDay) int {
	return len(model.NormalizeWeekdays(days)) * len(model.UniqueTimes(times))
}

// Between generates template times: starting at start it advances by step
// and appends each value, stopping once the previous value has passed end.
// The last value may therefore lie past end. Values past midnight wrap.
func Between(start, end model.TimeOfDay, step model.Step) ([]model.TimeOfDay, error) {
	if !start.Before(end) {
		return nil, ErrEmptyRange
	}
	inc := int(step.Duration().Minutes())
	if inc <= 0 {
		return nil, fmt.Errorf("schedule: invalid step %q", step)
	}

	var times []model.TimeOfDay
	for at := start.Minutes(); at <= end.Minutes(); {
		at += inc
		times = append(times, model.NewTimeOfDay(at))
	}
	return times, nil
}
