package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"intent-bot/internal/service"
)

// parseTimerDuration accepts Go durations ("25m", "1h30m") or a bare number
// of minutes.
func parseTimerDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if minutes, err := strconv.Atoi(raw); err == nil {
		if minutes <= 0 || minutes > int(service.MaxTimer/time.Minute) {
			return 0, fmt.Errorf("%d minutes is out of range", minutes)
		}
		return time.Duration(minutes) * time.Minute, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return d, nil
}

func (b *Bot) handleTimer(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		if left, ok := b.timerSvc.Remaining(*user); ok {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("⏳ %s left. /stoptimer to stop it.", service.FormatCountdown(left)))
		}
		return b.sendText(msg.Chat.ID, "Give a duration: /timer 25m or /timer 90")
	}

	d, err := parseTimerDuration(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give a duration such as 25m, 1h30m or a number of minutes.")
	}

	ends, err := b.timerSvc.Start(ctx, *user, d)
	switch {
	case errors.Is(err, service.ErrValidation):
		return b.sendText(msg.Chat.ID, fmt.Sprintf("A timer runs from one second to %s.", service.FormatCountdown(service.MaxTimer)))
	case errors.Is(err, service.ErrQuotaExceeded):
		return b.sendText(msg.Chat.ID, "🚫 Too many reminders are pending to start a timer.")
	case err != nil:
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not start the timer: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("⏳ Timer set for %s, rings at %s.", service.FormatCountdown(d), ends.In(b.loc).Format("15:04:05")))
}

func (b *Bot) handleStopTimer(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if !b.timerSvc.Stop(ctx, *user) {
		return b.sendText(msg.Chat.ID, "No timer is running.")
	}
	return b.sendText(msg.Chat.ID, "⏹ Timer stopped.")
}
