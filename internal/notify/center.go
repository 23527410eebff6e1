// Package notify is the process-local notification center. Triggers are
// cron entries; when one fires the notification goes to the owner through a
// Delivery (Telegram in production).
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"intent-bot/internal/logger"
)

// Notification is one scheduling request.
type Notification struct {
	ID      string
	Owner   int64
	Title   string
	Body    string
	Trigger Trigger
}

// Delivery hands fired notifications to the user.
type Delivery interface {
	Deliver(ctx context.Context, n Notification) error
	// Reachable reports whether the owner accepts notifications.
	Reachable(ctx context.Context, owner int64) (bool, error)
}

type entry struct {
	cronID cron.EntryID
	n      Notification
}

// Center keeps pending notifications, keyed by identifier.
type Center struct {
	cron     *cron.Cron
	loc      *time.Location
	delivery Delivery
	timeout  time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

func NewCenter(loc *time.Location, delivery Delivery) *Center {
	if loc == nil {
		loc = time.Local
	}
	return &Center{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(logger.Cron{}),
			cron.WithChain(cron.Recover(logger.Cron{})),
		),
		loc:      loc,
		delivery: delivery,
		timeout:  30 * time.Second,
		entries:  make(map[string]entry),
	}
}

func (c *Center) Start() {
	c.cron.Start()
}

func (c *Center) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// RequestAccess asks the delivery channel whether owner can be notified.
func (c *Center) RequestAccess(ctx context.Context, owner int64) (bool, error) {
	if c.delivery == nil {
		return false, nil
	}
	return c.delivery.Reachable(ctx, owner)
}

// Schedule registers n. Scheduling an identifier that is already pending is
// a no-op.
func (c *Center) Schedule(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(n.ID) == "" {
		return errors.New("notify: notification id is required")
	}
	if err := n.Trigger.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[n.ID]; ok {
		return nil
	}

	var (
		id  cron.EntryID
		err error
	)
	if n.Trigger.Repeats {
		id, err = c.cron.AddFunc(n.Trigger.cronSpec(), func() { c.fire(n) })
		if err != nil {
			return fmt.Errorf("notify: add %s: %w", n.Trigger, err)
		}
	} else {
		at := time.Now().In(c.loc).Add(n.Trigger.After)
		id = c.cron.Schedule(onceSchedule{at: at}, cron.FuncJob(func() { c.fire(n) }))
	}

	c.entries[n.ID] = entry{cronID: id, n: n}
	pendingGauge.Inc()
	logger.Debug("notification scheduled", "id", n.ID, "owner", n.Owner, "trigger", n.Trigger.String())
	return nil
}

// Cancel removes pending notifications. Unknown ids are ignored.
func (c *Center) Cancel(_ context.Context, ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.removeLocked(id)
	}
}

// PendingCount is the number of notifications pending for owner.
func (c *Center) PendingCount(ctx context.Context, owner int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, e := range c.entries {
		if e.n.Owner == owner {
			count++
		}
	}
	return count, nil
}

// Pending lists owner's pending identifiers, sorted.
func (c *Center) Pending(owner int64) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id, e := range c.entries {
		if e.n.Owner == owner {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Next is the next fire time of a pending notification. It is zero until
// the center has been started.
func (c *Center) Next(id string) (time.Time, bool) {
	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return c.cron.Entry(e.cronID).Next, true
}

// ScheduleDaily registers a housekeeping job at the given HH:MM time.
func (c *Center) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return c.cron.AddFunc(spec, job)
}

// ScheduleInterval registers a housekeeping job every given duration.
func (c *Center) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return c.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), job)
}

func (c *Center) fire(n Notification) {
	if !n.Trigger.Repeats {
		c.mu.Lock()
		c.removeLocked(n.ID)
		c.mu.Unlock()
	}
	if c.delivery == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.delivery.Deliver(ctx, n); err != nil {
		deliveredTotal.WithLabelValues("error").Inc()
		logger.Error("deliver notification", "id", n.ID, "owner", n.Owner, "err", err)
		return
	}
	deliveredTotal.WithLabelValues("ok").Inc()
}

func (c *Center) removeLocked(id string) {
	e, ok := c.entries[id]
	if !ok {
		return
	}
	c.cron.Remove(e.cronID)
	delete(c.entries, id)
	pendingGauge.Dec()
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
