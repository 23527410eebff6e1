package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// TimeOfDay is a wall clock time with minute precision. The calendar date is
// irrelevant for reminders.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// NewTimeOfDay builds a value from minutes since midnight, wrapping past
// midnight in either direction.
func NewTimeOfDay(minutes int) TimeOfDay {
	minutes %= minutesPerDay
	if minutes < 0 {
		minutes += minutesPerDay
	}
	return TimeOfDay{Hour: minutes / 60, Minute: minutes % 60}
}

// TimeOfDayOf extracts the clock part of t.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseTimeOfDay parses "HH:MM" (also "H:MM" and "HH.MM").
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ".", ":"))
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// ParseTimesOfDay parses a comma or space separated list, keeping order.
// A repeated time is kept once.
func ParseTimesOfDay(s string) ([]TimeOfDay, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("no times in %q", s)
	}
	times := make([]TimeOfDay, 0, len(fields))
	for _, f := range fields {
		t, err := ParseTimeOfDay(f)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return UniqueTimes(times), nil
}

// UniqueTimes drops repeated times, keeping the first of each in order.
func UniqueTimes(times []TimeOfDay) []TimeOfDay {
	out := make([]TimeOfDay, 0, len(times))
	seen := make(map[TimeOfDay]bool, len(times))
	for _, t := range times {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Add returns t shifted by d, wrapping around midnight.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return NewTimeOfDay(t.Minutes() + int(d/time.Minute))
}

// Before reports whether t is earlier in the day than u.
func (t TimeOfDay) Before(u TimeOfDay) bool {
	return t.Minutes() < u.Minutes()
}

// Valid reports whether both fields are within range.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// On places t on the date of day in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
