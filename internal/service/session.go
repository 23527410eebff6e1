package service

import (
	"context"
	"errors"
	"sync"

	"intent-bot/internal/model"
)

// State of an edit session.
type State int

const (
	StateIdle State = iota
	StateEditing
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// Session is one add/edit surface: it owns the draft and the flags the UI
// shows. A session has a single owner; the mutex only keeps the flags
// coherent while a commit is in flight.
type Session struct {
	svc    *HabitService
	user   model.User
	access bool

	mu      sync.Mutex
	state   State
	draft   Draft
	editID  uint
	loading bool
	full    bool
	lastErr error
}

// NotificationAccess reports whether reminders may be offered at all.
func (s *Session) NotificationAccess() bool {
	return s.access
}

func (s *Session) User() model.User {
	return s.user
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EditingID is the id of the habit being edited; false when creating or
// idle.
func (s *Session) EditingID() (uint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editID, s.editID != 0
}

// BeginCreate opens a blank draft.
func (s *Session) BeginCreate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.draft = NewDraft(s.svc.now())
	s.state = StateEditing
}

// BeginEdit loads habitID into the draft.
func (s *Session) BeginEdit(ctx context.Context, habitID uint) error {
	habit, err := s.svc.Get(ctx, s.user, habitID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.draft = DraftFromHabit(*habit, s.svc.now())
	s.editID = habit.ID
	s.state = StateEditing
	return nil
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.clone()
}

// Update mutates the draft in place.
func (s *Session) Update(fn func(d *Draft)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEditing {
		return ErrNoDraft
	}
	fn(&s.draft)
	return nil
}

// CanCommit reports whether the draft is complete. The quota is checked
// only by Commit since it depends on live state.
func (s *Session) CanCommit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateEditing && s.draft.CanCommit()
}

// Commit saves the draft. On success the session returns to idle; on
// failure it stays editable and Err/Full describe why.
func (s *Session) Commit(ctx context.Context) (*model.Habit, error) {
	s.mu.Lock()
	if s.state != StateEditing {
		s.mu.Unlock()
		return nil, ErrNoDraft
	}
	draft := s.draft.clone()
	editID := s.editID
	s.state = StateCommitting
	s.loading = true
	s.full = false
	s.lastErr = nil
	s.mu.Unlock()

	var (
		habit *model.Habit
		err   error
	)
	if draft.ReminderOn && !s.access {
		err = ErrPermissionDenied
		commitsTotal.WithLabelValues(outcome(err)).Inc()
	} else {
		habit, err = s.svc.commit(ctx, s.user, draft, editID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.state = StateEditing
		s.lastErr = err
		s.full = errors.Is(err, ErrQuotaExceeded)
		return nil, err
	}
	s.resetLocked()
	return habit, nil
}

// DeleteCurrent deletes the habit being edited. A habit that is already gone
// counts as deleted.
func (s *Session) DeleteCurrent(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateEditing || s.editID == 0 {
		s.mu.Unlock()
		return ErrNoDraft
	}
	editID := s.editID
	s.mu.Unlock()

	if err := s.svc.DeleteHabit(ctx, s.user, editID); err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return nil
}

// Cancel discards the draft.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Loading is true while a commit is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Full is set when the last commit was refused by the quota.
func (s *Session) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.full
}

// DismissFull clears the quota notice.
func (s *Session) DismissFull() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.full = false
}

// Err is the error of the last failed commit or delete.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

func (s *Session) resetLocked() {
	s.state = StateIdle
	s.draft = Draft{}
	s.editID = 0
	s.loading = false
	s.full = false
	s.lastErr = nil
}
