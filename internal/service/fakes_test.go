package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"intent-bot/internal/model"
	"intent-bot/internal/notify"
	"intent-bot/internal/repository"
)

type fakeNotifier struct {
	mu      sync.Mutex
	pending map[string]notify.Notification
	access  bool
	failOn  func(n notify.Notification) error
	calls   int
	fillSeq int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{pending: make(map[string]notify.Notification), access: true}
}

func (f *fakeNotifier) RequestAccess(context.Context, int64) (bool, error) {
	return f.access, nil
}

func (f *fakeNotifier) Schedule(_ context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn != nil {
		if err := f.failOn(n); err != nil {
			return err
		}
	}
	f.pending[n.ID] = n
	return nil
}

func (f *fakeNotifier) Cancel(_ context.Context, ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.pending, id)
	}
}

func (f *fakeNotifier) PendingCount(_ context.Context, owner int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.pending {
		if p.Owner == owner {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifier) Pending(owner int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, p := range f.pending {
		if p.Owner == owner {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (f *fakeNotifier) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[id]
	return ok
}

func (f *fakeNotifier) get(id string) notify.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[id]
}

func (f *fakeNotifier) count(owner int64) int {
	n, _ := f.PendingCount(context.Background(), owner)
	return n
}

// fill registers n unrelated notifications for owner.
func (f *fakeNotifier) fill(owner int64, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.fillSeq++
		id := fmt.Sprintf("filler-%d-%d", owner, f.fillSeq)
		f.pending[id] = notify.Notification{ID: id, Owner: owner, Trigger: notify.After(time.Hour)}
	}
}

// failAfter makes every Schedule call after the first n fail.
func (f *fakeNotifier) failAfter(n int) {
	f.failOn = func(notify.Notification) error {
		if f.calls > n {
			return errors.New("notification center rejected request")
		}
		return nil
	}
}

type fakeStore struct {
	mu        sync.Mutex
	habits    map[uint]model.Habit
	nextID    uint
	createErr error
	saveErr   error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{habits: make(map[uint]model.Habit)}
}

func copyHabit(h model.Habit) model.Habit {
	h.WeekDays = slices.Clone(h.WeekDays)
	h.ReminderTimes = slices.Clone(h.ReminderTimes)
	h.NotificationIDs = slices.Clone(h.NotificationIDs)
	return h
}

func (s *fakeStore) Create(_ context.Context, h *model.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	h.ID = s.nextID
	s.habits[h.ID] = copyHabit(*h)
	return nil
}

func (s *fakeStore) Save(_ context.Context, h *model.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.habits[h.ID] = copyHabit(*h)
	return nil
}

func (s *fakeStore) Delete(_ context.Context, userID, habitID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if h, ok := s.habits[habitID]; ok && h.UserID == userID {
		delete(s.habits, habitID)
	}
	return nil
}

func (s *fakeStore) FindByID(_ context.Context, userID, habitID uint) (*model.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[habitID]
	if !ok || h.UserID != userID {
		return nil, repository.ErrNotFound
	}
	c := copyHabit(h)
	return &c, nil
}

func (s *fakeStore) ListByUser(_ context.Context, userID uint) ([]model.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Habit
	for _, h := range s.habits {
		if h.UserID == userID {
			out = append(out, copyHabit(h))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DateAdded.Equal(out[j].DateAdded) {
			return out[i].ID > out[j].ID
		}
		return out[i].DateAdded.After(out[j].DateAdded)
	})
	return out, nil
}

func (s *fakeStore) get(id uint) (model.Habit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[id]
	return copyHabit(h), ok
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.habits)
}
