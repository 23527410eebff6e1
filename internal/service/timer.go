package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"intent-bot/internal/model"
	"intent-bot/internal/notify"
)

// MaxTimer bounds countdown length.
const MaxTimer = 24 * time.Hour

type countdown struct {
	id   string
	ends time.Time
}

// TimerService runs one countdown per user. The countdown is a one-shot
// notification, so it takes a quota slot while pending and is admitted under
// the same quota hold as habit commits.
type TimerService struct {
	notifier Notifier
	quota    *QuotaTracker
	title    string

	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	timers map[int64]countdown
}

func NewTimerService(notifier Notifier, quota *QuotaTracker, title string) *TimerService {
	if title == "" {
		title = DefaultTitle
	}
	return &TimerService{
		notifier: notifier,
		quota:    quota,
		title:    title,
		now:      time.Now,
		newID:    uuid.NewString,
		timers:   make(map[int64]countdown),
	}
}

// Start replaces any running countdown of user with a new one of length d
// and returns when it ends.
func (s *TimerService) Start(ctx context.Context, user model.User, d time.Duration) (time.Time, error) {
	d = d.Truncate(time.Second)
	if d <= 0 || d > MaxTimer {
		return time.Time{}, fmt.Errorf("%w: timer must be between 1s and %s", ErrValidation, MaxTimer)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	release := s.quota.Hold()
	defer release()

	owner := user.ChatID()
	prev, running := s.activeLocked(owner)
	var replacing []string
	if running {
		replacing = []string{prev.id}
	}
	full, err := s.quota.WouldExceed(ctx, owner, 1, replacing)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrScheduling, err)
	}
	if full {
		return time.Time{}, ErrQuotaExceeded
	}

	id := s.newID()
	n := notify.Notification{
		ID:      id,
		Owner:   owner,
		Title:   s.title,
		Body:    "⏰ Time is up: " + FormatCountdown(d),
		Trigger: notify.After(d),
	}
	if err := s.notifier.Schedule(ctx, n); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrScheduling, err)
	}
	if running {
		s.notifier.Cancel(ctx, []string{prev.id})
	}

	ends := s.now().Add(d)
	s.timers[owner] = countdown{id: id, ends: ends}
	return ends, nil
}

// Stop cancels user's countdown. It reports whether one was running.
func (s *TimerService) Stop(ctx context.Context, user model.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.activeLocked(user.ChatID())
	if !ok {
		return false
	}
	s.notifier.Cancel(ctx, []string{c.id})
	delete(s.timers, user.ChatID())
	return true
}

// Remaining is the time left on user's countdown.
func (s *TimerService) Remaining(user model.User) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.activeLocked(user.ChatID())
	if !ok {
		return 0, false
	}
	return c.ends.Sub(s.now()), true
}

func (s *TimerService) activeLocked(owner int64) (countdown, bool) {
	c, ok := s.timers[owner]
	if !ok {
		return countdown{}, false
	}
	if !s.now().Before(c.ends) {
		delete(s.timers, owner)
		return countdown{}, false
	}
	return c, true
}

// FormatCountdown renders d as mm:ss, or h:mm:ss from one hour up.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	hours := total / 3600
	minutes := (total / 60) % 60
	seconds := total % 60
	if hours == 0 {
		return fmt.Sprintf("%02d:%02d", minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
}
