package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"intent-bot/internal/model"
)

// HabitLister is the read side of the habit store.
type HabitLister interface {
	ListByUser(ctx context.Context, userID uint) ([]model.Habit, error)
}

// SummaryService renders habits as chat cards and the daily digest.
type SummaryService struct {
	habits HabitLister
}

func NewSummaryService(habits HabitLister) *SummaryService {
	return &SummaryService{habits: habits}
}

// Home lists every habit as a card with the current week strip.
func (s *SummaryService) Home(ctx context.Context, user model.User, now time.Time) (string, error) {
	habits, err := s.habits.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if len(habits) == 0 {
		return "No habits yet. Send /newhabit or /template to add one.", nil
	}

	var b strings.Builder
	b.WriteString("🏠 <b>Intent</b>\n\n")
	for _, h := range habits {
		b.WriteString(HabitCard(h, now))
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), nil
}

// Today is the digest of habits scheduled for now's weekday.
func (s *SummaryService) Today(ctx context.Context, user model.User, now time.Time) (string, error) {
	habits, err := s.habits.ListByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}

	today := model.WeekdayOf(now)
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 <b>Today</b> · %s %s\n\n", today, now.Format("02.01.2006")))

	count := 0
	for _, h := range habits {
		if !h.ActiveOn(today) {
			continue
		}
		count++
		b.WriteString(fmt.Sprintf("%s %s", h.Color.Emoji(), html.EscapeString(h.Title)))
		if h.IsReminderOn {
			b.WriteString(" · 🔔 " + joinTimes(h.ReminderTimes))
		}
		b.WriteByte('\n')
	}
	if count == 0 {
		b.WriteString("— nothing planned for today\n")
	}
	return strings.TrimSpace(b.String()), nil
}

// HabitCard renders one habit: title, frequency, the current week with
// active days marked, and reminder times.
func HabitCard(h model.Habit, now time.Time) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s <b>%s</b>", h.Color.Emoji(), html.EscapeString(h.Title)))
	if h.IsReminderOn {
		b.WriteString(" 🔔")
	}
	b.WriteString(fmt.Sprintf(" · <i>%s</i> · #%d\n", Frequency(h), h.ID))

	b.WriteString("<code>")
	start := WeekStart(now)
	var days, dates []string
	for i, d := range model.AllWeekdays {
		date := start.AddDate(0, 0, i)
		mark := " "
		if h.ActiveOn(d) {
			mark = "•"
		}
		days = append(days, fmt.Sprintf("%-4s", string(d)))
		dates = append(dates, fmt.Sprintf("%s%-3s", mark, date.Format("02")))
	}
	b.WriteString(strings.Join(days, ""))
	b.WriteByte('\n')
	b.WriteString(strings.Join(dates, ""))
	b.WriteString("</code>\n")

	if h.IsReminderOn && len(h.ReminderTimes) > 0 {
		b.WriteString(fmt.Sprintf("⏰ %s — %s\n", joinTimes(h.ReminderTimes), html.EscapeString(h.ReminderText)))
	}
	return b.String()
}

// Frequency is "Everyday" or "N time(s) a week".
func Frequency(h model.Habit) string {
	count := len(model.NormalizeWeekdays(h.WeekDays))
	if count == len(model.AllWeekdays) {
		return "Everyday"
	}
	unit := "times"
	if count == 1 {
		unit = "time"
	}
	return fmt.Sprintf("%d %s a week", count, unit)
}

// WeekStart is midnight of the Sunday that begins now's week.
func WeekStart(now time.Time) time.Time {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -int(now.Weekday()))
}

func joinTimes(times []model.TimeOfDay) string {
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
