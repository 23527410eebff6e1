package model

import "time"

// Habit is a recurring user task with optional reminders.
type Habit struct {
	ID              uint        `gorm:"primaryKey"`
	UserID          uint        `gorm:"index"`
	Title           string      `gorm:"not null"`
	Color           Color
	WeekDays        []Weekday   `gorm:"serializer:json"`
	IsReminderOn    bool        `gorm:"default:false"`
	ReminderText    string
	ReminderTimes   []TimeOfDay `gorm:"serializer:json"`
	NotificationIDs []string    `gorm:"serializer:json"`
	DateAdded       time.Time   `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ExpectedNotifications is the number of registered triggers the habit must
// own: one per (weekday, time) pair while reminders are on.
func (h Habit) ExpectedNotifications() int {
	if !h.IsReminderOn {
		return 0
	}
	return len(NormalizeWeekdays(h.WeekDays)) * len(UniqueTimes(h.ReminderTimes))
}

// Consistent reports whether NotificationIDs matches ExpectedNotifications.
func (h Habit) Consistent() bool {
	return len(h.NotificationIDs) == h.ExpectedNotifications()
}

// Everyday reports whether the habit is active on all seven days.
func (h Habit) Everyday() bool {
	return len(NormalizeWeekdays(h.WeekDays)) == len(AllWeekdays)
}

// ActiveOn reports whether the habit includes the given day.
func (h Habit) ActiveOn(day Weekday) bool {
	for _, d := range h.WeekDays {
		if d == day {
			return true
		}
	}
	return false
}
