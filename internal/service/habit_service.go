package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"intent-bot/internal/logger"
	"intent-bot/internal/model"
	"intent-bot/internal/notify"
	"intent-bot/internal/repository"
	"intent-bot/internal/schedule"
)

// DefaultTitle heads every habit notification.
const DefaultTitle = "Intent"

// scheduleConcurrency bounds parallel Schedule calls within one commit.
const scheduleConcurrency = 8

// HabitStore persists habits. FindByID reports a missing habit with an
// error matching repository.ErrNotFound.
type HabitStore interface {
	Create(ctx context.Context, habit *model.Habit) error
	Save(ctx context.Context, habit *model.Habit) error
	Delete(ctx context.Context, userID, habitID uint) error
	FindByID(ctx context.Context, userID, habitID uint) (*model.Habit, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Habit, error)
}

// Notifier is the notification center as seen by the habit scheduler.
// PendingCounter.Pending lets the quota tell live ids from stale ones.
type Notifier interface {
	PendingCounter
	RequestAccess(ctx context.Context, owner int64) (bool, error)
	Schedule(ctx context.Context, n notify.Notification) error
	Cancel(ctx context.Context, ids []string)
}

// Options tune a HabitService.
type Options struct {
	// Cap is the quota; DefaultCap when zero.
	Cap int
	// Title is the notification title; DefaultTitle when empty.
	Title string
}

// HabitService turns drafts into persisted habits with registered
// notifications. Commits, deletes and restores run under the quota's hold,
// the same one timers take, so a quota check and the schedules it admits
// cannot interleave with another writer.
type HabitService struct {
	habits   HabitStore
	notifier Notifier
	quota    *QuotaTracker
	title    string

	now   func() time.Time
	newID func() string
}

func NewHabitService(habits HabitStore, notifier Notifier, opts Options) *HabitService {
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}
	return &HabitService{
		habits:   habits,
		notifier: notifier,
		quota:    NewQuotaTracker(notifier, opts.Cap),
		title:    title,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Quota exposes the admission control shared by habits and timers.
func (s *HabitService) Quota() *QuotaTracker {
	return s.quota
}

// NewSession opens an edit surface for user. Notification access is asked
// for once here; a failed probe counts as denied.
func (s *HabitService) NewSession(ctx context.Context, user model.User) *Session {
	access, err := s.notifier.RequestAccess(ctx, user.ChatID())
	if err != nil {
		logger.Warn("notification access probe failed", "user", user.TelegramID, "err", err)
		access = false
	}
	return &Session{svc: s, user: user, access: access}
}

func (s *HabitService) List(ctx context.Context, user model.User) ([]model.Habit, error) {
	return s.habits.ListByUser(ctx, user.ID)
}

func (s *HabitService) Get(ctx context.Context, user model.User, habitID uint) (*model.Habit, error) {
	habit, err := s.habits.FindByID(ctx, user.ID, habitID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrHabitNotFound
	}
	return habit, err
}

// DeleteHabit removes the record and then cancels the notifications it
// holds, whether or not reminders are on. The habit is read under the hold,
// so the ids cancelled are the ones stored at that moment. Deleting an
// already deleted habit succeeds without touching anything else. When the
// row cannot be removed its notifications stay registered.
func (s *HabitService) DeleteHabit(ctx context.Context, user model.User, habitID uint) (err error) {
	defer func() { deletesTotal.WithLabelValues(outcome(err)).Inc() }()

	release := s.quota.Hold()
	defer release()

	habit, err := s.habits.FindByID(ctx, user.ID, habitID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := s.habits.Delete(ctx, user.ID, habit.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.notifier.Cancel(context.WithoutCancel(ctx), habit.NotificationIDs)
	logger.Info("habit deleted", "user", user.TelegramID, "habit", habit.ID, "cancelled", len(habit.NotificationIDs))
	return nil
}

// commit is the transactional core of Session.Commit: quota check, schedule
// new triggers, persist, then cancel the superseded triggers. On any failure
// the triggers scheduled by this attempt are cancelled and the stored habit
// and its old triggers are left as they were.
func (s *HabitService) commit(ctx context.Context, user model.User, draft Draft, editID uint) (habit *model.Habit, err error) {
	defer func() { commitsTotal.WithLabelValues(outcome(err)).Inc() }()

	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	release := s.quota.Hold()
	defer release()

	habit = &model.Habit{UserID: user.ID}
	var oldIDs []string
	if editID != 0 {
		existing, err := s.habits.FindByID(ctx, user.ID, editID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrHabitNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		habit = existing
		oldIDs = existing.NotificationIDs
	}

	adding := draft.TriggerCount()
	full, err := s.quota.WouldExceed(ctx, user.ChatID(), adding, oldIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScheduling, err)
	}
	if full {
		return nil, fmt.Errorf("%w: %d reminders would pass the limit of %d", ErrQuotaExceeded, adding, s.quota.Cap())
	}

	var ids []string
	if draft.ReminderOn {
		ids, err = s.scheduleSlots(ctx, user, draft.ReminderText, schedule.Expand(draft.WeekDays, draft.ReminderTimes), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrScheduling, err)
		}
	}

	draft.apply(habit)
	habit.NotificationIDs = ids
	habit.DateAdded = s.now()

	if editID != 0 {
		err = s.habits.Save(ctx, habit)
	} else {
		err = s.habits.Create(ctx, habit)
	}
	if err != nil {
		s.notifier.Cancel(context.WithoutCancel(ctx), ids)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.notifier.Cancel(ctx, oldIDs)
	logger.Info("habit committed", "user", user.TelegramID, "habit", habit.ID, "scheduled", len(ids), "cancelled", len(oldIDs))
	return habit, nil
}

// scheduleSlots registers one weekly notification per slot. ids, when given,
// must match slots one to one and are reused; otherwise fresh ones are made.
// Either every slot is scheduled or none stays registered.
func (s *HabitService) scheduleSlots(ctx context.Context, user model.User, body string, slots []schedule.Slot, ids []string) ([]string, error) {
	if ids == nil {
		ids = make([]string, len(slots))
		for i := range ids {
			ids[i] = s.newID()
		}
	}
	if len(ids) != len(slots) {
		return nil, fmt.Errorf("have %d ids for %d slots", len(ids), len(slots))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scheduleConcurrency)
	for i, slot := range slots {
		n := notify.Notification{
			ID:      ids[i],
			Owner:   user.ChatID(),
			Title:   s.title,
			Body:    body,
			Trigger: notify.Weekly(slot.Day, slot.Time),
		}
		g.Go(func() error {
			if err := s.notifier.Schedule(gctx, n); err != nil {
				return fmt.Errorf("schedule %s: %w", slot, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.notifier.Cancel(context.WithoutCancel(ctx), ids)
		return nil, err
	}
	return ids, nil
}

// Restore re-registers stored triggers after a restart, keeping their ids.
// A habit whose ids no longer match its days and times gets fresh ones.
func (s *HabitService) Restore(ctx context.Context, users []model.User) (int, error) {
	release := s.quota.Hold()
	defer release()

	restored := 0
	for _, user := range users {
		habits, err := s.habits.ListByUser(ctx, user.ID)
		if err != nil {
			return restored, fmt.Errorf("restore user %d: %w", user.TelegramID, err)
		}
		for i := range habits {
			n, err := s.restoreHabit(ctx, user, &habits[i])
			if err != nil {
				logger.Error("restore habit", "user", user.TelegramID, "habit", habits[i].ID, "err", err)
				continue
			}
			restored += n
		}
	}
	restoredTotal.Add(float64(restored))
	return restored, nil
}

func (s *HabitService) restoreHabit(ctx context.Context, user model.User, habit *model.Habit) (int, error) {
	if !habit.IsReminderOn {
		if len(habit.NotificationIDs) == 0 {
			return 0, nil
		}
		s.notifier.Cancel(ctx, habit.NotificationIDs)
		habit.NotificationIDs = nil
		return 0, s.habits.Save(ctx, habit)
	}

	slots := schedule.Expand(habit.WeekDays, habit.ReminderTimes)
	if habit.Consistent() {
		if _, err := s.scheduleSlots(ctx, user, habit.ReminderText, slots, habit.NotificationIDs); err != nil {
			return 0, err
		}
		return len(slots), nil
	}

	logger.Warn("habit triggers out of sync, rescheduling", "habit", habit.ID, "ids", len(habit.NotificationIDs), "expected", len(slots))
	s.notifier.Cancel(ctx, habit.NotificationIDs)
	ids, err := s.scheduleSlots(ctx, user, habit.ReminderText, slots, nil)
	if err != nil {
		return 0, err
	}
	habit.NotificationIDs = ids
	if err := s.habits.Save(ctx, habit); err != nil {
		s.notifier.Cancel(ctx, ids)
		return 0, err
	}
	return len(ids), nil
}
