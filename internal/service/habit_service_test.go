package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intent-bot/internal/model"
	"intent-bot/internal/notify"
	"intent-bot/internal/repository"
)

var (
	testUser  = model.User{ID: 1, TelegramID: 100}
	otherUser = model.User{ID: 2, TelegramID: 200}
	testNow   = time.Date(2026, 3, 4, 8, 30, 0, 0, time.UTC) // a Wednesday
)

type fixture struct {
	svc      *HabitService
	store    *fakeStore
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	notifier := newFakeNotifier()
	svc := NewHabitService(store, notifier, Options{})
	svc.now = func() time.Time { return testNow }
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("n%03d", seq)
	}
	return &fixture{svc: svc, store: store, notifier: notifier}
}

func nine() model.TimeOfDay { return model.TimeOfDay{Hour: 9} }

func createDrinkWater(t *testing.T, f *fixture) *model.Habit {
	t.Helper()
	s := f.svc.NewSession(context.Background(), testUser)
	s.BeginCreate()
	require.NoError(t, s.Update(func(d *Draft) {
		d.SetTitle("Drink water")
		d.SetColor(model.ColorForIndex(1))
		d.SetWeekDays([]model.Weekday{model.Monday, model.Wednesday, model.Friday})
		d.SetReminder(true)
		d.SetTimes([]model.TimeOfDay{nine()})
		d.SetReminderText("Hydrate")
	}))
	require.True(t, s.CanCommit())

	habit, err := s.Commit(context.Background())
	require.NoError(t, err)
	return habit
}

func editToFourDays(ctx context.Context, t *testing.T, s *Session, habitID uint) {
	t.Helper()
	require.NoError(t, s.BeginEdit(ctx, habitID))
	require.NoError(t, s.Update(func(d *Draft) { d.ToggleWeekDay(model.Sunday) }))
}

func TestCreateDrinkWater(t *testing.T) {
	f := newFixture(t)
	habit := createDrinkWater(t, f)

	require.Len(t, habit.NotificationIDs, 3)
	assert.True(t, habit.Consistent())
	assert.Equal(t, 3, f.notifier.count(testUser.TelegramID))

	stored, ok := f.store.get(habit.ID)
	require.True(t, ok)
	assert.Len(t, stored.NotificationIDs, 3)
	assert.Equal(t, testNow, stored.DateAdded)
	assert.Equal(t, model.RaspberrySunset, stored.Color)

	wantDays := []int{2, 4, 6}
	for i, id := range stored.NotificationIDs {
		n := f.notifier.get(id)
		assert.Equal(t, wantDays[i], n.Trigger.Weekday)
		assert.Equal(t, 9, n.Trigger.Hour)
		assert.True(t, n.Trigger.Repeats)
		assert.Equal(t, "Intent", n.Title)
		assert.Equal(t, "Hydrate", n.Body)
		assert.Equal(t, testUser.TelegramID, n.Owner)
	}
}

func TestEditWithinQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habit := createDrinkWater(t, f)
	f.notifier.fill(testUser.TelegramID, 59) // 62 pending including the habit's 3

	s := f.svc.NewSession(ctx, testUser)
	editToFourDays(ctx, t, s, habit.ID)

	edited, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State())
	assert.Len(t, edited.NotificationIDs, 4)
	assert.Equal(t, 63, f.notifier.count(testUser.TelegramID))

	for _, id := range habit.NotificationIDs {
		assert.False(t, f.notifier.has(id), "old id %s still pending", id)
	}
	stored, _ := f.store.get(habit.ID)
	assert.Equal(t, edited.NotificationIDs, stored.NotificationIDs)
	assert.True(t, stored.Consistent())
}

func TestEditRefusedWhenQuotaFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habit := createDrinkWater(t, f)
	f.notifier.fill(testUser.TelegramID, 61) // 64 pending

	s := f.svc.NewSession(ctx, testUser)
	editToFourDays(ctx, t, s, habit.ID)

	_, err := s.Commit(ctx)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.True(t, s.Full())
	assert.Equal(t, StateEditing, s.State())
	assert.ErrorIs(t, s.Err(), ErrQuotaExceeded)

	stored, _ := f.store.get(habit.ID)
	assert.Equal(t, habit.NotificationIDs, stored.NotificationIDs)
	assert.Len(t, stored.WeekDays, 3)
	for _, id := range habit.NotificationIDs {
		assert.True(t, f.notifier.has(id))
	}
	assert.Equal(t, 64, f.notifier.count(testUser.TelegramID))

	s.DismissFull()
	assert.False(t, s.Full())
}

func TestEditDoesNotCountStaleIDsAsFreed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habit := createDrinkWater(t, f)

	// The stored ids are no longer registered, as after a failed restore.
	f.notifier.Cancel(ctx, habit.NotificationIDs)
	f.notifier.fill(testUser.TelegramID, 61)

	s := f.svc.NewSession(ctx, testUser)
	editToFourDays(ctx, t, s, habit.ID)

	_, err := s.Commit(ctx)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 61, f.notifier.count(testUser.TelegramID))

	stored, _ := f.store.get(habit.ID)
	assert.Equal(t, habit.NotificationIDs, stored.NotificationIDs)
}

func TestEditWithStaleIDsWithinQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habit := createDrinkWater(t, f)

	f.notifier.Cancel(ctx, habit.NotificationIDs)
	f.notifier.fill(testUser.TelegramID, 59)

	s := f.svc.NewSession(ctx, testUser)
	editToFourDays(ctx, t, s, habit.ID)

	edited, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Len(t, edited.NotificationIDs, 4)
	assert.Equal(t, 63, f.notifier.count(testUser.TelegramID))
}

func TestQuotaIsPerOwner(t *testing.T) {
	f := newFixture(t)
	f.notifier.fill(otherUser.TelegramID, 64)

	habit := createDrinkWater(t, f)
	assert.Len(t, habit.NotificationIDs, 3)
}

func TestRoundTripIntoEditDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := f.svc.NewSession(ctx, testUser)
	s.BeginCreate()
	want := Draft{
		Title:         "Stretch",
		Color:         model.YoungLeaf,
		WeekDays:      []model.Weekday{model.Tuesday, model.Saturday},
		ReminderOn:    true,
		ReminderText:  "Five minutes",
		ReminderTimes: []model.TimeOfDay{{Hour: 18, Minute: 30}, {Hour: 7, Minute: 5}},
	}
	require.NoError(t, s.Update(func(d *Draft) { *d = want.clone() }))
	habit, err := s.Commit(ctx)
	require.NoError(t, err)

	require.NoError(t, s.BeginEdit(ctx, habit.ID))
	assert.Equal(t, want, s.Draft())
	id, editing := s.EditingID()
	assert.True(t, editing)
	assert.Equal(t, habit.ID, id)
}

func TestBeginCreateDefaults(t *testing.T) {
	f := newFixture(t)
	s := f.svc.NewSession(context.Background(), testUser)
	assert.Equal(t, StateIdle, s.State())

	s.BeginCreate()
	d := s.Draft()
	assert.Equal(t, StateEditing, s.State())
	assert.Empty(t, d.Title)
	assert.Equal(t, model.RaspberrySunset, d.Color)
	assert.Equal(t, 1, d.Color.Index())
	assert.Empty(t, d.WeekDays)
	assert.False(t, d.ReminderOn)
	assert.Empty(t, d.ReminderText)
	assert.Equal(t, []model.TimeOfDay{{Hour: 8, Minute: 30}}, d.ReminderTimes)
	assert.False(t, s.CanCommit())
}

func TestBeginEditDefaultsEmptyTimes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := model.Habit{UserID: testUser.ID, Title: "Read", Color: model.Latte, WeekDays: []model.Weekday{model.Monday}}
	require.NoError(t, f.store.Create(ctx, &h))

	s := f.svc.NewSession(ctx, testUser)
	require.NoError(t, s.BeginEdit(ctx, h.ID))
	assert.Equal(t, []model.TimeOfDay{{Hour: 8, Minute: 30}}, s.Draft().ReminderTimes)
}

func TestBeginEditUnknownHabit(t *testing.T) {
	f := newFixture(t)
	s := f.svc.NewSession(context.Background(), testUser)
	err := s.BeginEdit(context.Background(), 99)
	assert.ErrorIs(t, err, ErrHabitNotFound)
	assert.Equal(t, StateIdle, s.State())
}

func TestCanCommitRules(t *testing.T) {
	base := Draft{
		Title:         "Walk",
		Color:         model.DefaultColor,
		WeekDays:      []model.Weekday{model.Monday},
		ReminderTimes: []model.TimeOfDay{nine()},
	}
	assert.True(t, base.CanCommit())

	noTitle := base.clone()
	noTitle.Title = ""
	assert.False(t, noTitle.CanCommit())

	noDays := base.clone()
	noDays.WeekDays = nil
	assert.False(t, noDays.CanCommit())

	reminderNoText := base.clone()
	reminderNoText.ReminderOn = true
	assert.False(t, reminderNoText.CanCommit())

	reminderWithText := reminderNoText.clone()
	reminderWithText.ReminderText = "go"
	assert.True(t, reminderWithText.CanCommit())

	badDay := base.clone()
	badDay.WeekDays = []model.Weekday{"Funday"}
	assert.False(t, badDay.CanCommit())

	badColor := base.clone()
	badColor.Color = "plaid"
	assert.False(t, badColor.CanCommit())
}

func TestCommitRejectsInvalidDraft(t *testing.T) {
	f := newFixture(t)
	s := f.svc.NewSession(context.Background(), testUser)
	s.BeginCreate()

	_, err := s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, StateEditing, s.State())
	assert.Zero(t, f.store.len())
	assert.Zero(t, f.notifier.calls)
}

func TestCommitWithoutDraft(t *testing.T) {
	f := newFixture(t)
	s := f.svc.NewSession(context.Background(), testUser)
	_, err := s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrNoDraft)
	assert.ErrorIs(t, s.Update(func(*Draft) {}), ErrNoDraft)
	assert.ErrorIs(t, s.DeleteCurrent(context.Background()), ErrNoDraft)
}

func TestCommitWithRemindersOff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.svc.NewSession(ctx, testUser)
	s.BeginCreate()
	require.NoError(t, s.Update(func(d *Draft) {
		d.SetTitle("Journal")
		d.SetWeekDays(model.AllWeekdays)
	}))

	habit, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Empty(t, habit.NotificationIDs)
	assert.True(t, habit.Consistent())
	assert.Zero(t, f.notifier.calls)
}

func TestTurningRemindersOffCancelsTriggers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habit := createDrinkWater(t, f)

	s := f.svc.NewSession(ctx, testUser)
	require.NoError(t, s.BeginEdit(ctx, habit.ID))
	require.NoError(t, s.Update(func(d *Draft) { d.SetReminder(false) }))
	edited, err := s.Commit(ctx)
	require.NoError(t, err)

	assert.Empty(t, edited.NotificationIDs)
	assert.Zero(t, f.notifier.count(testUser.TelegramID))
}

func TestSchedulingFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.failAfter(2)

	s := f.svc.NewSession(ctx, testUser)
	s.BeginCreate()
	require.NoError(t, s.Update(func(d *Draft) {
		d.SetTitle("Drink water")
		d.SetWeekDays(model.AllWeekdays)
		d.SetReminder(true)
		d.SetReminderText("Hydrate")
	}))

	_, err := s.Commit(ctx)
	require.ErrorIs(t, err, ErrScheduling)
	assert.Equal(t, StateEditing, s.State())
	assert.Zero(t, f.notifier.count(testUser.TelegramID))
	assert.Zero(t, f.store.len())
}

func TestPersistenceFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.createErr = fmt.Errorf("disk full")

	s := f.svc.NewSession(ctx, testUser)
	s.BeginCreate()
	require.NoError(t, s.Update(func(d *Draft) {
		d.SetTitle("Drink water")
		d.SetWeekDays([]model.Weekday{model.Monday})
		d.SetReminder(true)
		d.SetReminderText("Hydrate")
	}))

	_, err := s.Commit(ctx)
	require.ErrorIs(t, err, ErrPersistence)
	assert.Zero(t, f.notifier.count(testUser.TelegramID))
	assert.Equal(t, StateEditing, s.State())
	assert.False(t, s.Loading())
}

func TestEditPersistenceFailureKeepsOldTriggers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habit := createDrinkWater(t, f)
	f.store.saveErr = fmt.Errorf("locked")

	s := f.svc.NewSession(ctx, testUser)
	editToFourDays(ctx, t, s, habit.ID)

	_, err := s.Commit(ctx)
	require.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, 3, f.notifier.count(testUser.TelegramID))
	for _, id := range habit.NotificationIDs {
		assert.True(t, f.notifier.has(id))
	}
	stored, _ := f.store.get(habit.ID)
	assert.Equal(t, habit.NotificationIDs, stored.NotificationIDs)
}

func TestPermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.notifier.access = false
	ctx := context.Background()

	s := f.svc.NewSession(ctx, testUser)
	assert.False(t, s.NotificationAccess())
	s.BeginCreate()
	require.NoError(t, s.Update(func(d *Draft) {
		d.SetTitle("Drink water")
		d.SetWeekDays([]model.Weekday{model.Monday})
		d.SetReminder(true)
		d.SetReminderText("Hydrate")
	}))

	_, err := s.Commit(ctx)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Zero(t, f.store.len())

	require.NoError(t, s.Update(func(d *Draft) { d.SetReminder(false) }))
	_, err = s.Commit(ctx)
	assert.NoError(t, err)
}

func TestDeleteTwiceIsHarmless(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habit := createDrinkWater(t, f)
	f.notifier.fill(testUser.TelegramID, 5)

	require.NoError(t, f.svc.DeleteHabit(ctx, testUser, habit.ID))
	assert.Equal(t, 5, f.notifier.count(testUser.TelegramID))

	require.NoError(t, f.svc.DeleteHabit(ctx, testUser, habit.ID))
	assert.Equal(t, 5, f.notifier.count(testUser.TelegramID))
	assert.Zero(t, f.store.len())
}

func TestDeleteCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habit := createDrinkWater(t, f)

	s := f.svc.NewSession(ctx, testUser)
	require.NoError(t, s.BeginEdit(ctx, habit.ID))

	// Another surface deletes it first; this one still succeeds.
	other := f.svc.NewSession(ctx, testUser)
	require.NoError(t, other.BeginEdit(ctx, habit.ID))
	require.NoError(t, other.DeleteCurrent(ctx))

	require.NoError(t, s.DeleteCurrent(ctx))
	assert.Equal(t, StateIdle, s.State())
	assert.Zero(t, f.notifier.count(testUser.TelegramID))
	assert.ErrorIs(t, s.DeleteCurrent(ctx), ErrNoDraft)
}

func TestDeleteCancelsEvenWithRemindersOff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := model.Habit{UserID: testUser.ID, Title: "stale", NotificationIDs: []string{"stale-1"}}
	require.NoError(t, f.store.Create(ctx, &h))
	require.NoError(t, f.notifier.Schedule(ctx, notify.Notification{
		ID:      "stale-1",
		Owner:   testUser.TelegramID,
		Trigger: notify.After(time.Hour),
	}))

	require.NoError(t, f.svc.DeleteHabit(ctx, testUser, h.ID))
	assert.False(t, f.notifier.has("stale-1"))
}

func TestDeleteUsesCurrentIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snapshot := createDrinkWater(t, f)

	s := f.svc.NewSession(ctx, testUser)
	editToFourDays(ctx, t, s, snapshot.ID)
	edited, err := s.Commit(ctx)
	require.NoError(t, err)
	require.NotEqual(t, snapshot.NotificationIDs, edited.NotificationIDs)

	// The caller still holds the habit as it was before the edit.
	require.NoError(t, f.svc.DeleteHabit(ctx, testUser, snapshot.ID))
	assert.Zero(t, f.notifier.count(testUser.TelegramID))
	assert.Zero(t, f.store.len())
}

func TestDeleteFailureReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habit := createDrinkWater(t, f)
	f.store.deleteErr = fmt.Errorf("busy")

	s := f.svc.NewSession(ctx, testUser)
	require.NoError(t, s.BeginEdit(ctx, habit.ID))
	err := s.DeleteCurrent(ctx)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, StateEditing, s.State())
	assert.Error(t, s.Err())

	// The row survived, so its reminders must too.
	for _, id := range habit.NotificationIDs {
		assert.True(t, f.notifier.has(id), "id %s cancelled although the habit is still stored", id)
	}
}

func TestConcurrentCommitsRespectCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.fill(testUser.TelegramID, 60)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		s := f.svc.NewSession(ctx, testUser)
		s.BeginCreate()
		require.NoError(t, s.Update(func(d *Draft) {
			d.SetTitle(fmt.Sprintf("habit %d", i))
			d.SetWeekDays([]model.Weekday{model.Monday, model.Tuesday, model.Wednesday})
			d.SetReminder(true)
			d.SetReminderText("go")
		}))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Commit(ctx)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrQuotaExceeded)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 63, f.notifier.count(testUser.TelegramID))
}

func TestTimerAndCommitShareTheCap(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(t)
		ctx := context.Background()
		f.notifier.fill(testUser.TelegramID, 62)
		timers := NewTimerService(f.notifier, f.svc.Quota(), "")

		s := f.svc.NewSession(ctx, testUser)
		s.BeginCreate()
		require.NoError(t, s.Update(func(d *Draft) {
			d.SetTitle("stretch")
			d.SetWeekDays([]model.Weekday{model.Monday})
			d.SetReminder(true)
			d.SetReminderText("up")
		}))

		var (
			wg                 sync.WaitGroup
			commitErr, timeErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, commitErr = s.Commit(ctx)
		}()
		go func() {
			defer wg.Done()
			_, timeErr = timers.Start(ctx, testUser, time.Minute)
		}()
		wg.Wait()

		assert.True(t, (commitErr == nil) != (timeErr == nil), "exactly one of the two fits, got %v and %v", commitErr, timeErr)
		assert.Equal(t, 63, f.notifier.count(testUser.TelegramID))
	}
}

func TestRestoreReusesStoredIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	habit := createDrinkWater(t, f)

	// Simulate a restart: the center forgets everything.
	f.notifier.Cancel(ctx, habit.NotificationIDs)
	require.Zero(t, f.notifier.count(testUser.TelegramID))

	n, err := f.svc.Restore(ctx, []model.User{testUser})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, id := range habit.NotificationIDs {
		assert.True(t, f.notifier.has(id))
	}
}

func TestRestoreRepairsInconsistentHabit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	broken := model.Habit{
		UserID:          testUser.ID,
		Title:           "Drink water",
		WeekDays:        []model.Weekday{model.Monday, model.Friday},
		IsReminderOn:    true,
		ReminderText:    "Hydrate",
		ReminderTimes:   []model.TimeOfDay{nine()},
		NotificationIDs: []string{"lost"},
	}
	require.NoError(t, f.store.Create(ctx, &broken))
	off := model.Habit{UserID: testUser.ID, Title: "Quiet", NotificationIDs: []string{"leftover"}}
	require.NoError(t, f.store.Create(ctx, &off))

	n, err := f.svc.Restore(ctx, []model.User{testUser})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored, _ := f.store.get(broken.ID)
	assert.Len(t, stored.NotificationIDs, 2)
	assert.True(t, stored.Consistent())
	assert.NotContains(t, stored.NotificationIDs, "lost")

	quiet, _ := f.store.get(off.ID)
	assert.Empty(t, quiet.NotificationIDs)
	assert.Equal(t, 2, f.notifier.count(testUser.TelegramID))
}

func TestGetTranslatesNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), testUser, 5)
	assert.ErrorIs(t, err, ErrHabitNotFound)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
}
