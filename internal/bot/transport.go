package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"intent-bot/internal/notify"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NewAPI authorizes token against Telegram.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

// Transport delivers fired notifications as chat messages.
type Transport struct {
	api API
}

var _ notify.Delivery = (*Transport)(nil)

func NewTransport(api API) *Transport {
	return &Transport{api: api}
}

func (t *Transport) Deliver(ctx context.Context, n notify.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.Owner, fmt.Sprintf("🔔 <b>%s</b>\n%s", escape(n.Title), escape(n.Body)))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send notification %s: %w", n.ID, err)
	}
	return nil
}

// Reachable probes the chat with a typing action. A chat that blocked the
// bot answers 403 and is reported as unreachable rather than failing.
func (t *Transport) Reachable(ctx context.Context, owner int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := t.api.Request(tgbotapi.NewChatAction(owner, tgbotapi.ChatTyping)); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusBadRequest) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
