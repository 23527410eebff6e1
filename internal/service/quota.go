package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// DefaultCap is the number of pending notifications at which new schedules
// are refused.
const DefaultCap = 64

// PendingCounter reports which notifications are pending for an owner.
type PendingCounter interface {
	PendingCount(ctx context.Context, owner int64) (int, error)
	Pending(owner int64) []string
}

// QuotaTracker is admission control for the notifications an owner may have
// pending at once. The count is always read live from the notification
// center; nothing is cached, so it cannot drift.
//
// Every caller that schedules against the quota holds the tracker between
// the check and the registration of what it admitted; see Hold.
type QuotaTracker struct {
	counter PendingCounter
	limit   int

	mu sync.Mutex
}

func NewQuotaTracker(counter PendingCounter, limit int) *QuotaTracker {
	if limit <= 0 {
		limit = DefaultCap
	}
	return &QuotaTracker{counter: counter, limit: limit}
}

func (q *QuotaTracker) Cap() int {
	return q.limit
}

// CurrentCount is a point-in-time snapshot of owner's pending notifications.
func (q *QuotaTracker) CurrentCount(ctx context.Context, owner int64) (int, error) {
	n, err := q.counter.PendingCount(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("count pending notifications: %w", err)
	}
	return n, nil
}

// Hold serializes admission across habits and timers. The returned func
// releases it.
func (q *QuotaTracker) Hold() (release func()) {
	q.mu.Lock()
	return q.mu.Unlock
}

// WouldExceed reports whether replacing the notifications in replacing with
// adding new ones reaches the cap. Only ids that are still pending count as
// removed; a stored id the center no longer knows frees nothing.
func (q *QuotaTracker) WouldExceed(ctx context.Context, owner int64, adding int, replacing []string) (bool, error) {
	current, err := q.CurrentCount(ctx, owner)
	if err != nil {
		return false, err
	}
	return exceeds(current, adding, q.stillPending(owner, replacing), q.limit), nil
}

func (q *QuotaTracker) stillPending(owner int64, ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	pending := q.counter.Pending(owner)
	n := 0
	for _, id := range ids {
		if slices.Contains(pending, id) {
			n++
		}
	}
	return n
}

// Remaining is how many more notifications owner can add.
func (q *QuotaTracker) Remaining(ctx context.Context, owner int64) (int, error) {
	current, err := q.CurrentCount(ctx, owner)
	if err != nil {
		return 0, err
	}
	return max(0, q.limit-1-current), nil
}

func exceeds(current, adding, removing, limit int) bool {
	return current-removing+adding >= limit
}
