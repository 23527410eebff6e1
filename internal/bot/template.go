package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"intent-bot/internal/logger"
	"intent-bot/internal/model"
	"intent-bot/internal/service"
)

func (b *Bot) startTemplateConversation(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	b.clearConversation(msg.From.ID)
	b.clearConfirmation(msg.From.ID)

	session := b.habitSvc.NewSession(ctx, *user)
	if !session.NotificationAccess() {
		return b.sendText(msg.Chat.ID, "🔕 Templates are all about reminders, and I cannot message you right now. Use /newhabit instead.")
	}
	state := &conversationState{
		stage:    stageTemplateTitle,
		user:     *user,
		session:  session,
		template: service.NewTemplateDraft(b.now()),
	}
	b.setConversation(msg.From.ID, state)
	logger.Info("start template conversation", "user", msg.From.ID)
	return b.nav.showTemplateEditor(ctx, msg.Chat.ID, state)
}

func (b *Bot) handleTemplateConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)
	skip := isSkipInput(text) && state.revisit
	t := &state.template
	chatID := msg.Chat.ID

	switch state.stage {
	case stageTemplateTitle:
		if !skip {
			if text == "" || isSkipInput(text) {
				return b.sendWithReplyMarkup(chatID, "The title cannot be empty.", promptKeyboard(state.revisit))
			}
			t.SetTitle(text)
		}
		state.stage = stageTemplateColor
	case stageTemplateColor:
		if !skip {
			c, ok := parseColor(text)
			if !ok {
				return b.sendWithReplyMarkup(chatID, "Pick one of the colors below.", colorKeyboard(state.revisit))
			}
			t.Color = c
		}
		state.stage = stageTemplateText
	case stageTemplateText:
		if !skip {
			if text == "" || isSkipInput(text) {
				return b.sendWithReplyMarkup(chatID, "The reminder text cannot be empty.", promptKeyboard(state.revisit))
			}
			t.SetReminderText(text)
		}
		state.stage = stageTemplateStart
	case stageTemplateStart:
		if !skip {
			start, err := model.ParseTimeOfDay(text)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "Use <code>HH:MM</code>, for example <code>08:00</code>.", promptKeyboard(state.revisit))
			}
			t.Start = start
		}
		state.stage = stageTemplateEnd
	case stageTemplateEnd:
		if !skip {
			end, err := model.ParseTimeOfDay(text)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "Use <code>HH:MM</code>, for example <code>22:00</code>.", promptKeyboard(state.revisit))
			}
			t.End = end
		}
		if !t.Start.Before(t.End) {
			return b.sendWithReplyMarkup(chatID, fmt.Sprintf("The last reminder must come after the first (%s). Send another end time.", t.Start), cancelKeyboard())
		}
		state.stage = stageTemplateStep
	case stageTemplateStep:
		step, err := model.ParseStep(text)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, "Pick one of the steps below.", stepKeyboard())
		}
		t.Step = step
		state.stage = stageTemplateConfirm
	case stageTemplateConfirm:
		switch strings.ToLower(text) {
		case strings.ToLower(btnSave), "save":
			return b.commitTemplate(ctx, chatID, msg.From.ID, state)
		case strings.ToLower(btnChange), "change":
			state.revisit = true
			state.stage = stageTemplateTitle
		default:
			return b.sendWithReplyMarkup(chatID, "Save, change or cancel?", saveKeyboard(false))
		}
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(chatID, "The dialog was reset. Start again with /template.")
	}
	return b.nav.showTemplateEditor(ctx, chatID, state)
}

func (b *Bot) commitTemplate(ctx context.Context, chatID, userID int64, state *conversationState) error {
	habit, err := state.session.CommitTemplate(ctx, state.template)
	if err != nil {
		logger.Warn("template commit failed", "user", userID, "err", err)
		return b.nav.showOutcome(ctx, chatID, &state.user, nil, err)
	}
	b.clearConversation(userID)
	return b.nav.showOutcome(ctx, chatID, &state.user, habit, nil)
}

// showTemplateEditor prompts for the current step of the template dialog.
func (b *Bot) showTemplateEditor(ctx context.Context, chatID int64, state *conversationState) error {
	t := state.template
	var text string
	var markup interface{} = promptKeyboard(state.revisit)
	switch state.stage {
	case stageTemplateTitle:
		text = "🧩 Template: one habit for every day with reminders spread over the day.\n<b>Step 1:</b> what is it called?"
		if state.revisit {
			text = fmt.Sprintf("<b>Title:</b> %s\nSend a new title or skip.", escape(t.Title))
		}
	case stageTemplateColor:
		text = "🎨 Pick a color for the card."
		markup = colorKeyboard(state.revisit)
	case stageTemplateText:
		text = "💬 What should the reminders say?"
	case stageTemplateStart:
		text = fmt.Sprintf("🌅 First reminder, <code>HH:MM</code>. Now: %s", t.Start)
	case stageTemplateEnd:
		text = fmt.Sprintf("🌙 Last reminder, <code>HH:MM</code>. Now: %s", t.End)
	case stageTemplateStep:
		text = "⏱ How far apart?"
		markup = stepKeyboard()
	case stageTemplateConfirm:
		remaining, err := b.habitSvc.Quota().Remaining(ctx, state.user.ChatID())
		if err != nil {
			return err
		}
		preview, err := formatTemplate(t, remaining)
		if err != nil {
			state.stage = stageTemplateEnd
			return b.sendWithReplyMarkup(chatID, "The range is empty. Send another end time.", cancelKeyboard())
		}
		text = preview
		markup = saveKeyboard(false)
	default:
		return nil
	}
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func formatTemplate(t service.TemplateDraft, remaining int) (string, error) {
	times, err := t.Times()
	if err != nil {
		return "", err
	}
	count := len(times) * len(model.AllWeekdays)

	var s strings.Builder
	s.WriteString(fmt.Sprintf("%s <b>%s</b>\n", t.Color.Emoji(), escape(normalizeTitle(t.Title))))
	s.WriteString("• <b>Days:</b> every day\n")
	s.WriteString(fmt.Sprintf("• <b>Reminder:</b> %s\n", escape(t.ReminderText)))
	s.WriteString(fmt.Sprintf("• <b>Times:</b> %s (every %s)\n", joinTimes(times), strings.ToLower(string(t.Step))))
	s.WriteString(fmt.Sprintf("• <b>Notifications:</b> %d (%d free)", count, remaining))
	if count > remaining {
		s.WriteString("\n⚠️ This is more than the free slots; saving will be refused.")
	}
	return s.String(), nil
}
