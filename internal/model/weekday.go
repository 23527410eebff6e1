package model

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is a short weekday symbol as shown in the week strip.
type Weekday string

const (
	Sunday    Weekday = "Sun"
	Monday    Weekday = "Mon"
	Tuesday   Weekday = "Tue"
	Wednesday Weekday = "Wed"
	Thursday  Weekday = "Thu"
	Friday    Weekday = "Fri"
	Saturday  Weekday = "Sat"
)

// AllWeekdays lists the symbols in calendar order, Sunday first.
var AllWeekdays = []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// Number returns the calendar weekday number, 1 for Sunday through 7 for
// Saturday. Unknown symbols return 0.
func (w Weekday) Number() int {
	for i, d := range AllWeekdays {
		if d == w {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether w is one of the seven symbols.
func (w Weekday) Valid() bool {
	return w.Number() != 0
}

// Time converts the symbol to a time.Weekday.
func (w Weekday) Time() time.Weekday {
	return time.Weekday(w.Number() - 1)
}

// WeekdayOf returns the symbol for t's day.
func WeekdayOf(t time.Time) Weekday {
	return AllWeekdays[int(t.Weekday())]
}

// ParseWeekday accepts short or long English names in any case.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for _, d := range AllWeekdays {
			short := strings.ToLower(string(d))
			if s == short || (strings.HasPrefix(s, short) && strings.HasPrefix(strings.ToLower(d.Time().String()), s)) {
				return d, nil
			}
		}
	}
	return "", fmt.Errorf("invalid weekday %q", s)
}

// ParseWeekdays parses a comma or space separated list. "everyday" and
// "daily" expand to all seven days.
func ParseWeekdays(s string) ([]Weekday, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	var days []Weekday
	for _, f := range fields {
		switch strings.ToLower(f) {
		case "everyday", "daily", "all":
			days = append(days, AllWeekdays...)
			continue
		}
		d, err := ParseWeekday(f)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no weekdays in %q", s)
	}
	return NormalizeWeekdays(days), nil
}

// NormalizeWeekdays drops duplicates and unknown symbols and returns the
// remainder in calendar order.
func NormalizeWeekdays(days []Weekday) []Weekday {
	seen := make(map[Weekday]bool, len(days))
	for _, d := range days {
		seen[d] = true
	}
	out := make([]Weekday, 0, len(seen))
	for _, d := range AllWeekdays {
		if seen[d] {
			out = append(out, d)
		}
	}
	return out
}
