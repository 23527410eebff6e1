package service

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"intent-bot/internal/model"
	"intent-bot/internal/schedule"
)

var draftValidate *validator.Validate

func init() {
	draftValidate = validator.New()
	_ = draftValidate.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		return model.Weekday(fl.Field().String()).Valid()
	})
	_ = draftValidate.RegisterValidation("swatch", func(fl validator.FieldLevel) bool {
		return model.Color(fl.Field().String()).Valid()
	})
	_ = draftValidate.RegisterValidation("step", func(fl validator.FieldLevel) bool {
		return model.Step(fl.Field().String()).Duration() > 0
	})
}

// Draft is the in-progress state of a habit being created or edited.
type Draft struct {
	Title         string            `validate:"required"`
	Color         model.Color       `validate:"required,swatch"`
	WeekDays      []model.Weekday   `validate:"min=1,dive,weekday"`
	ReminderOn    bool
	ReminderText  string            `validate:"required_if=ReminderOn true"`
	ReminderTimes []model.TimeOfDay `validate:"min=1"`
}

// NewDraft returns the defaults of a fresh habit: no title, the first
// palette color, no days, reminders off and a single time of now.
func NewDraft(now time.Time) Draft {
	return Draft{
		Color:         model.DefaultColor,
		ReminderTimes: []model.TimeOfDay{model.TimeOfDayOf(now)},
	}
}

// DraftFromHabit copies a stored habit. A habit without times gets a single
// time of now so the draft never has an empty list.
func DraftFromHabit(h model.Habit, now time.Time) Draft {
	d := Draft{
		Title:         h.Title,
		Color:         h.Color,
		WeekDays:      slices.Clone(h.WeekDays),
		ReminderOn:    h.IsReminderOn,
		ReminderText:  h.ReminderText,
		ReminderTimes: model.UniqueTimes(h.ReminderTimes),
	}
	if !d.Color.Valid() {
		d.Color = model.DefaultColor
	}
	if len(d.ReminderTimes) == 0 {
		d.ReminderTimes = []model.TimeOfDay{model.TimeOfDayOf(now)}
	}
	return d
}

// Validate reports the first missing piece.
func (d Draft) Validate() error {
	return draftValidate.Struct(d)
}

// CanCommit gates the done button. It does not look at the quota.
func (d Draft) CanCommit() bool {
	return d.Validate() == nil
}

// TriggerCount is the number of notifications committing would register.
func (d Draft) TriggerCount() int {
	if !d.ReminderOn {
		return 0
	}
	return schedule.Count(d.WeekDays, d.ReminderTimes)
}

func (d *Draft) SetTitle(title string) {
	d.Title = strings.TrimSpace(title)
}

func (d *Draft) SetColor(c model.Color) {
	if !c.Valid() {
		c = model.DefaultColor
	}
	d.Color = c
}

// ToggleWeekDay adds day when absent, removes it otherwise.
func (d *Draft) ToggleWeekDay(day model.Weekday) {
	if i := slices.Index(d.WeekDays, day); i >= 0 {
		d.WeekDays = slices.Delete(d.WeekDays, i, i+1)
		return
	}
	d.WeekDays = model.NormalizeWeekdays(append(d.WeekDays, day))
}

func (d *Draft) SetWeekDays(days []model.Weekday) {
	d.WeekDays = model.NormalizeWeekdays(days)
}

func (d *Draft) SetReminder(on bool) {
	d.ReminderOn = on
}

func (d *Draft) SetReminderText(text string) {
	d.ReminderText = strings.TrimSpace(text)
}

// AddTime appends a reminder time unless it is already there.
func (d *Draft) AddTime(t model.TimeOfDay) {
	if slices.Contains(d.ReminderTimes, t) {
		return
	}
	d.ReminderTimes = append(d.ReminderTimes, t)
}

// SetTime replaces the time at index i. Setting it to a time held by
// another entry merges the two.
func (d *Draft) SetTime(i int, t model.TimeOfDay) error {
	if i < 0 || i >= len(d.ReminderTimes) {
		return fmt.Errorf("no reminder time at index %d", i)
	}
	d.ReminderTimes[i] = t
	d.ReminderTimes = model.UniqueTimes(d.ReminderTimes)
	return nil
}

// RemoveTime drops the time at index i. The last time cannot be removed.
func (d *Draft) RemoveTime(i int) error {
	if i < 0 || i >= len(d.ReminderTimes) {
		return fmt.Errorf("no reminder time at index %d", i)
	}
	if len(d.ReminderTimes) == 1 {
		return fmt.Errorf("at least one reminder time is required")
	}
	d.ReminderTimes = slices.Delete(d.ReminderTimes, i, i+1)
	return nil
}

// SetTimes replaces every reminder time, dropping repeats. An empty list is
// ignored.
func (d *Draft) SetTimes(times []model.TimeOfDay) {
	if len(times) == 0 {
		return
	}
	d.ReminderTimes = model.UniqueTimes(times)
}

func (d Draft) clone() Draft {
	d.WeekDays = slices.Clone(d.WeekDays)
	d.ReminderTimes = slices.Clone(d.ReminderTimes)
	return d
}

// apply copies the draft onto a habit record.
func (d Draft) apply(h *model.Habit) {
	h.Title = d.Title
	h.Color = d.Color
	h.WeekDays = model.NormalizeWeekdays(d.WeekDays)
	h.IsReminderOn = d.ReminderOn
	h.ReminderText = d.ReminderText
	h.ReminderTimes = model.UniqueTimes(d.ReminderTimes)
}
