package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"intent-bot/internal/logger"
	"intent-bot/internal/model"
	"intent-bot/internal/repository"
	"intent-bot/internal/service"
)

const (
	cbEditPrefix    = "edit:"
	cbDeletePrefix  = "delete:"
	cbConfirmPrefix = "confirm:"
	cbCancelPrefix  = "cancel:"
)

type confirmationRequest struct {
	habitID uint
	// session is set when the delete was asked for from the editor.
	session *service.Session
}

// coordinator names the screens a conversation can move to.
type coordinator interface {
	showHome(ctx context.Context, chatID int64, user *model.User) error
	showEditor(ctx context.Context, chatID int64, state *conversationState) error
	showTemplateEditor(ctx context.Context, chatID int64, state *conversationState) error
	showOutcome(ctx context.Context, chatID int64, user *model.User, habit *model.Habit, err error) error
}

var _ coordinator = (*Bot)(nil)

// Bot aggregates Telegram API with services.
type Bot struct {
	api      API
	userRepo *repository.UserRepository
	habitSvc *service.HabitService
	timerSvc *service.TimerService
	summary  *service.SummaryService
	loc      *time.Location
	nav      coordinator

	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(api API, userRepo *repository.UserRepository, habitSvc *service.HabitService, timerSvc *service.TimerService, summary *service.SummaryService, loc *time.Location) *Bot {
	if loc == nil {
		loc = time.Local
	}
	b := &Bot{
		api:           api,
		userRepo:      userRepo,
		habitSvc:      habitSvc,
		timerSvc:      timerSvc,
		summary:       summary,
		loc:           loc,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
	b.nav = b
	return b
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				logger.Error("handle callback", "err", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				logger.Error("handle message", "err", err)
			}
		}
	}

	return nil
}

func (b *Bot) now() time.Time {
	return time.Now().In(b.loc)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled. Nothing was changed.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		logger.Debug("command", "user", msg.From.ID, "command", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if state := b.getConversation(msg.From.ID); state != nil {
		logger.Debug("conversation step", "user", msg.From.ID, "stage", state.stage)
		if state.stage.template() {
			return b.handleTemplateConversation(ctx, msg, state)
		}
		return b.handleHabitConversation(ctx, msg, state)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Send /newhabit to add a habit or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "newhabit":
		return b.startNewHabitConversation(ctx, msg)
	case "template":
		return b.startTemplateConversation(ctx, msg)
	case "habits":
		return b.handleListHabits(ctx, msg)
	case "edit":
		return b.handleEdit(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "today":
		return b.handleToday(ctx, msg)
	case "timer":
		return b.handleTimer(ctx, msg)
	case "stoptimer":
		return b.handleStopTimer(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled. Nothing was changed.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I remind you about your habits on the days and times you pick.</b>\n\n"+
			"• /newhabit — add a habit step by step\n"+
			"• /template — a daily habit with evenly spaced reminders\n"+
			"• /habits — your habits, with edit and delete buttons\n"+
			"• /today — what is planned for today\n"+
			"• /timer &lt;duration&gt; — a one-off countdown\n"+
			"• /help — all commands",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /newhabit — add a habit: title, color, days, reminder text and times\n" +
		"• /template — a habit for every day with reminders from a start to an end time\n" +
		"• /habits — list habits; tap ✏️ to edit or 🗑 to delete\n" +
		"• /edit &lt;id&gt; — edit a habit by number (for example /edit 3)\n" +
		"• /delete &lt;id&gt; — delete a habit and its reminders\n" +
		"• /today — today's habits\n" +
		"• /timer &lt;duration&gt; — countdown such as /timer 25m or /timer 90\n" +
		"• /stoptimer — stop the countdown\n" +
		"• /cancel — abandon the current dialog\n\n" +
		fmt.Sprintf("Up to %d reminders can be pending at once.", b.habitSvc.Quota().Cap()-1)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.summary.Today(ctx, *user, b.now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the digest: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleListHabits(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.nav.showHome(ctx, msg.Chat.ID, user)
}

// showHome sends the habit cards with edit and delete buttons.
func (b *Bot) showHome(ctx context.Context, chatID int64, user *model.User) error {
	text, err := b.summary.Home(ctx, *user, b.now())
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load habits: %s", escape(err.Error())))
	}
	habits, err := b.habitSvc.List(ctx, *user)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load habits: %s", escape(err.Error())))
	}
	if len(habits) == 0 {
		return b.sendText(chatID, text)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = habitButtons(habits)
	_, err = b.api.Send(msg)
	return err
}

// SendDailyReports sends today's digest to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.summary.Today(ctx, user, now)
		if err != nil {
			logger.Error("build digest", "user", user.TelegramID, "err", err)
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			logger.Error("send digest", "user", user.TelegramID, "err", err)
		}
	}
	return nil
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewHabit):
		return true, b.startNewHabitConversation(ctx, msg)
	case strings.ToLower(menuLabelTemplate):
		return true, b.startTemplateConversation(ctx, msg)
	case strings.ToLower(menuLabelHabits):
		return true, b.handleListHabits(ctx, msg)
	case strings.ToLower(menuLabelToday):
		return true, b.handleToday(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ackCallback(cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		logger.Warn("callback ack", "err", err)
	}
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state, ok := b.conversations[userID]; ok && state.session != nil {
		state.session.Cancel()
	}
	delete(b.conversations, userID)
}
