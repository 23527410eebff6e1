package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTimers(n *fakeNotifier, clock *time.Time) *TimerService {
	s := NewTimerService(n, NewQuotaTracker(n, 0), "")
	s.now = func() time.Time { return *clock }
	return s
}

func TestTimerStartReplaceStop(t *testing.T) {
	n := newFakeNotifier()
	clock := testNow
	timers := newTestTimers(n, &clock)
	ctx := context.Background()

	ends, err := timers.Start(ctx, testUser, 25*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(25*time.Minute), ends)
	assert.Equal(t, 1, n.count(testUser.TelegramID))

	clock = clock.Add(5 * time.Minute)
	left, ok := timers.Remaining(testUser)
	require.True(t, ok)
	assert.Equal(t, 20*time.Minute, left)

	_, err = timers.Start(ctx, testUser, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n.count(testUser.TelegramID), "previous countdown replaced")

	assert.True(t, timers.Stop(ctx, testUser))
	assert.Zero(t, n.count(testUser.TelegramID))
	assert.False(t, timers.Stop(ctx, testUser))
}

func TestTimerExpires(t *testing.T) {
	n := newFakeNotifier()
	clock := testNow
	timers := newTestTimers(n, &clock)

	_, err := timers.Start(context.Background(), testUser, time.Minute)
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	_, ok := timers.Remaining(testUser)
	assert.False(t, ok)
}

func TestTimerRejectsBadDurations(t *testing.T) {
	clock := testNow
	timers := newTestTimers(newFakeNotifier(), &clock)
	for _, d := range []time.Duration{0, -time.Second, 500 * time.Millisecond, 25 * time.Hour} {
		_, err := timers.Start(context.Background(), testUser, d)
		assert.ErrorIs(t, err, ErrValidation, "duration %s", d)
	}
}

func TestTimerRespectsQuota(t *testing.T) {
	n := newFakeNotifier()
	n.fill(testUser.TelegramID, 63)
	clock := testNow
	timers := newTestTimers(n, &clock)

	_, err := timers.Start(context.Background(), testUser, time.Minute)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "00:00", FormatCountdown(-time.Second))
	assert.Equal(t, "05:07", FormatCountdown(5*time.Minute+7*time.Second))
	assert.Equal(t, "59:59", FormatCountdown(time.Hour-time.Second))
	assert.Equal(t, "1:00:00", FormatCountdown(time.Hour))
	assert.Equal(t, "24:00:00", FormatCountdown(MaxTimer))
}
