package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"intent-bot/internal/model"
	"intent-bot/internal/schedule"
)

// TemplateDraft is the shortcut form: a daily habit whose reminders are
// spread from Start to End every Step.
type TemplateDraft struct {
	Title        string      `validate:"required"`
	Color        model.Color `validate:"required,swatch"`
	ReminderText string      `validate:"required"`
	Start        model.TimeOfDay
	End          model.TimeOfDay
	Step         model.Step `validate:"required,step"`
}

// NewTemplateDraft starts with both ends at now, which is not committable
// until the user moves one of them.
func NewTemplateDraft(now time.Time) TemplateDraft {
	t := model.TimeOfDayOf(now)
	return TemplateDraft{
		Color: model.DefaultColor,
		Start: t,
		End:   t,
		Step:  model.StepHour,
	}
}

func (t *TemplateDraft) SetTitle(title string) {
	t.Title = strings.TrimSpace(title)
}

func (t *TemplateDraft) SetReminderText(text string) {
	t.ReminderText = strings.TrimSpace(text)
}

// Validate checks the fields and that the range is not empty.
func (t TemplateDraft) Validate() error {
	if err := draftValidate.Struct(t); err != nil {
		return err
	}
	if !t.Start.Before(t.End) {
		return schedule.ErrEmptyRange
	}
	return nil
}

func (t TemplateDraft) CanCommit() bool {
	return t.Validate() == nil
}

// Times previews the generated reminder times.
func (t TemplateDraft) Times() ([]model.TimeOfDay, error) {
	return schedule.Between(t.Start, t.End, t.Step)
}

// Draft converts the template to a regular draft covering every weekday.
func (t TemplateDraft) Draft() (Draft, error) {
	if err := t.Validate(); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	times, err := t.Times()
	if err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return Draft{
		Title:         t.Title,
		Color:         t.Color,
		WeekDays:      append([]model.Weekday(nil), model.AllWeekdays...),
		ReminderOn:    true,
		ReminderText:  t.ReminderText,
		ReminderTimes: times,
	}, nil
}

// CommitTemplate creates a habit from a template. It shares Commit's
// quota check and rollback.
func (s *Session) CommitTemplate(ctx context.Context, t TemplateDraft) (*model.Habit, error) {
	draft, err := t.Draft()
	if err != nil {
		s.fail(err)
		commitsTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}
	s.BeginCreate()
	if err := s.Update(func(d *Draft) { *d = draft }); err != nil {
		return nil, err
	}
	habit, err := s.Commit(ctx)
	if err != nil {
		s.mu.Lock()
		s.resetLocked()
		s.lastErr = err
		s.full = errors.Is(err, ErrQuotaExceeded)
		s.mu.Unlock()
		return nil, err
	}
	return habit, nil
}
