package notify

import (
	"errors"
	"fmt"
	"time"

	"intent-bot/internal/model"
)

// ErrInvalidTrigger is returned for triggers that can never fire.
var ErrInvalidTrigger = errors.New("notify: invalid trigger")

// Trigger describes when a notification fires: weekly on a weekday at a
// time, or once after a delay.
type Trigger struct {
	Weekday int // 1 = Sunday ... 7 = Saturday
	Hour    int
	Minute  int
	Repeats bool
	After   time.Duration
}

// Weekly fires every week on day at t.
func Weekly(day model.Weekday, t model.TimeOfDay) Trigger {
	return Trigger{Weekday: day.Number(), Hour: t.Hour, Minute: t.Minute, Repeats: true}
}

// After fires once, d from the moment it is scheduled.
func After(d time.Duration) Trigger {
	return Trigger{After: d}
}

// Validate checks ranges for the trigger kind.
func (t Trigger) Validate() error {
	if !t.Repeats {
		if t.After <= 0 {
			return fmt.Errorf("%w: non-positive delay %s", ErrInvalidTrigger, t.After)
		}
		return nil
	}
	if t.Weekday < 1 || t.Weekday > 7 {
		return fmt.Errorf("%w: weekday %d", ErrInvalidTrigger, t.Weekday)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("%w: time %02d:%02d", ErrInvalidTrigger, t.Hour, t.Minute)
	}
	return nil
}

// cronSpec renders a weekly trigger in the seconds-first cron format:
// second minute hour dom month dow, with Sunday as 0.
func (t Trigger) cronSpec() string {
	return fmt.Sprintf("0 %d %d * * %d", t.Minute, t.Hour, t.Weekday-1)
}

func (t Trigger) String() string {
	if !t.Repeats {
		return "once after " + t.After.String()
	}
	if t.Weekday < 1 || t.Weekday > 7 {
		return fmt.Sprintf("weekly day%d %02d:%02d", t.Weekday, t.Hour, t.Minute)
	}
	return fmt.Sprintf("weekly %s %02d:%02d", model.AllWeekdays[t.Weekday-1], t.Hour, t.Minute)
}

// onceSchedule yields a single activation time and nothing afterwards.
type onceSchedule struct {
	at time.Time
}

func (s onceSchedule) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		return s.at
	}
	return time.Time{}
}
