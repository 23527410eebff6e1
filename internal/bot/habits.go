package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"intent-bot/internal/logger"
	"intent-bot/internal/model"
	"intent-bot/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageColor
	stageWeekdays
	stageReminder
	stageReminderText
	stageTimes
	stageConfirm
	stageTemplateTitle
	stageTemplateColor
	stageTemplateText
	stageTemplateStart
	stageTemplateEnd
	stageTemplateStep
	stageTemplateConfirm
)

func (s conversationStage) template() bool {
	return s >= stageTemplateTitle
}

type conversationState struct {
	stage    conversationStage
	user     model.User
	session  *service.Session
	template service.TemplateDraft
	// revisit is set once the user walks the steps again from the summary;
	// every step then already has a value that skip keeps.
	revisit bool
}

func (s *conversationState) editing() bool {
	_, ok := s.session.EditingID()
	return ok
}

func (s *conversationState) prefilled() bool {
	return s.revisit || s.editing()
}

func (b *Bot) startNewHabitConversation(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	b.clearConversation(msg.From.ID)
	b.clearConfirmation(msg.From.ID)

	session := b.habitSvc.NewSession(ctx, *user)
	session.BeginCreate()
	state := &conversationState{stage: stageTitle, user: *user, session: session}
	b.setConversation(msg.From.ID, state)
	logger.Info("start new habit conversation", "user", msg.From.ID, "access", session.NotificationAccess())
	return b.nav.showEditor(ctx, msg.Chat.ID, state)
}

func (b *Bot) handleEdit(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Give the habit number: /edit 3")
	}
	habitID, err := parseHabitID(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, "The habit number must be numeric.")
	}
	return b.startEditConversation(ctx, msg.Chat.ID, msg.From, habitID)
}

func (b *Bot) startEditConversation(ctx context.Context, chatID int64, from *tgbotapi.User, habitID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	b.clearConversation(from.ID)
	b.clearConfirmation(from.ID)

	session := b.habitSvc.NewSession(ctx, *user)
	if err := session.BeginEdit(ctx, habitID); err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			return b.sendText(chatID, "Habit not found.")
		}
		return b.sendText(chatID, fmt.Sprintf("Could not open the habit: %s", escape(err.Error())))
	}
	state := &conversationState{stage: stageTitle, user: *user, session: session}
	b.setConversation(from.ID, state)
	logger.Info("start edit conversation", "user", from.ID, "habit", habitID)
	return b.nav.showEditor(ctx, chatID, state)
}

func (b *Bot) handleHabitConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)
	skip := isSkipInput(text)
	d := state.session.Draft()
	chatID := msg.Chat.ID

	var err error
	switch state.stage {
	case stageTitle:
		switch {
		case skip && d.Title != "":
		case text == "" || skip:
			return b.sendWithReplyMarkup(chatID, "The title cannot be empty.", promptKeyboard(state.prefilled()))
		default:
			err = state.session.Update(func(d *service.Draft) { d.SetTitle(text) })
		}
		state.stage = stageColor
	case stageColor:
		if !skip {
			c, ok := parseColor(text)
			if !ok {
				return b.sendWithReplyMarkup(chatID, "Pick one of the colors below.", colorKeyboard(state.prefilled()))
			}
			err = state.session.Update(func(d *service.Draft) { d.SetColor(c) })
		}
		state.stage = stageWeekdays
	case stageWeekdays:
		switch {
		case skip && len(d.WeekDays) > 0:
		default:
			days, perr := model.ParseWeekdays(text)
			if perr != nil {
				return b.sendWithReplyMarkup(chatID, "I could not read the days. Try <code>Mon, Wed, Fri</code> or Everyday.", weekdaysKeyboard(state.prefilled()))
			}
			err = state.session.Update(func(d *service.Draft) { d.SetWeekDays(days) })
		}
		state.stage = stageReminder
		if !state.session.NotificationAccess() {
			err = errors.Join(err, state.session.Update(func(d *service.Draft) { d.SetReminder(false) }))
			state.stage = stageConfirm
		}
	case stageReminder:
		switch {
		case isYesInput(text), skip && d.ReminderOn:
			err = state.session.Update(func(d *service.Draft) { d.SetReminder(true) })
			state.stage = stageReminderText
		case isNoInput(text), skip:
			err = state.session.Update(func(d *service.Draft) { d.SetReminder(false) })
			state.stage = stageConfirm
		default:
			return b.sendWithReplyMarkup(chatID, "Answer Yes or No.", yesNoKeyboard())
		}
	case stageReminderText:
		switch {
		case skip && d.ReminderText != "":
		case text == "" || skip:
			return b.sendWithReplyMarkup(chatID, "The reminder text cannot be empty.", promptKeyboard(state.prefilled()))
		default:
			err = state.session.Update(func(d *service.Draft) { d.SetReminderText(text) })
		}
		state.stage = stageTimes
	case stageTimes:
		if !skip {
			times, perr := model.ParseTimesOfDay(text)
			if perr != nil {
				return b.sendWithReplyMarkup(chatID, "I could not read the times. Use <code>HH:MM</code>, for example <code>09:00, 18:30</code>.", promptKeyboard(true))
			}
			err = state.session.Update(func(d *service.Draft) { d.SetTimes(times) })
		}
		state.stage = stageConfirm
	case stageConfirm:
		switch strings.ToLower(text) {
		case strings.ToLower(btnSave), "save":
			return b.commitHabit(ctx, chatID, msg.From.ID, state)
		case strings.ToLower(btnChange), "change":
			state.revisit = true
			state.stage = stageTitle
		case strings.ToLower(btnDelete), "delete":
			habitID, ok := state.session.EditingID()
			if !ok {
				return b.sendWithReplyMarkup(chatID, "This habit is not saved yet.", saveKeyboard(false))
			}
			b.setConfirmation(msg.From.ID, confirmationRequest{habitID: habitID, session: state.session})
			return b.sendWithReplyMarkup(chatID, fmt.Sprintf("Delete habit «%s» (#%d) and its reminders?", escape(normalizeTitle(d.Title)), habitID), confirmKeyboard())
		default:
			return b.sendWithReplyMarkup(chatID, "Save, change or cancel?", saveKeyboard(state.editing()))
		}
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(chatID, "The dialog was reset. Start again with /newhabit.")
	}
	if err != nil {
		b.clearConversation(msg.From.ID)
		return b.sendText(chatID, fmt.Sprintf("The dialog was reset: %s", escape(err.Error())))
	}
	return b.nav.showEditor(ctx, chatID, state)
}

func (b *Bot) commitHabit(ctx context.Context, chatID, userID int64, state *conversationState) error {
	habit, err := state.session.Commit(ctx)
	if err != nil {
		logger.Warn("habit commit failed", "user", userID, "err", err)
		return b.nav.showOutcome(ctx, chatID, &state.user, nil, err)
	}
	b.clearConversation(userID)
	return b.nav.showOutcome(ctx, chatID, &state.user, habit, nil)
}

// showEditor prompts for the current step of the habit dialog.
func (b *Bot) showEditor(ctx context.Context, chatID int64, state *conversationState) error {
	d := state.session.Draft()
	prefilled := state.prefilled()

	var text string
	var markup interface{} = promptKeyboard(prefilled)
	switch state.stage {
	case stageTitle:
		if id, ok := state.session.EditingID(); ok {
			text = fmt.Sprintf("✏️ Editing habit #%d.\n<b>Title:</b> %s\nSend a new title or skip.", id, escape(d.Title))
		} else if prefilled {
			text = fmt.Sprintf("<b>Title:</b> %s\nSend a new title or skip.", escape(d.Title))
		} else {
			text = "🆕 New habit.\n<b>Step 1:</b> what is it called?"
		}
	case stageColor:
		text = "🎨 Pick a color for the card."
		if prefilled {
			text += fmt.Sprintf("\nNow: %s", colorLabel(d.Color))
		}
		markup = colorKeyboard(prefilled)
	case stageWeekdays:
		text = "📅 On which days? For example <code>Mon, Wed, Fri</code>."
		if len(d.WeekDays) > 0 {
			text += fmt.Sprintf("\nNow: %s", joinDays(d.WeekDays))
		}
		markup = weekdaysKeyboard(prefilled && len(d.WeekDays) > 0)
	case stageReminder:
		text = "🔔 Should I remind you?"
		if prefilled {
			text += fmt.Sprintf("\nNow: %s", onOff(d.ReminderOn))
		}
		markup = yesNoKeyboard()
	case stageReminderText:
		text = "💬 What should the reminder say?"
		if d.ReminderText != "" {
			text += fmt.Sprintf("\nNow: %s", escape(d.ReminderText))
		}
		markup = promptKeyboard(d.ReminderText != "")
	case stageTimes:
		text = fmt.Sprintf("⏰ At what times? For example <code>09:00, 18:30</code>.\nNow: %s", joinTimes(d.ReminderTimes))
		markup = promptKeyboard(true)
	case stageConfirm:
		remaining, err := b.habitSvc.Quota().Remaining(ctx, state.user.ChatID())
		if err != nil {
			return err
		}
		text = formatDraft(d, state.session.NotificationAccess(), remaining)
		markup = saveKeyboard(state.editing())
	default:
		return nil
	}
	return b.sendWithReplyMarkup(chatID, text, markup)
}

// showOutcome reports a commit result. Failures keep the dialog open on the
// summary step.
func (b *Bot) showOutcome(ctx context.Context, chatID int64, user *model.User, habit *model.Habit, err error) error {
	if err == nil {
		text := fmt.Sprintf("✅ <b>Saved</b> «%s» (#%d)", escape(normalizeTitle(habit.Title)), habit.ID)
		if n := len(habit.NotificationIDs); n > 0 {
			text += fmt.Sprintf("\n🔔 %d reminders scheduled", n)
		}
		logger.Info("habit saved", "user", user.TelegramID, "habit", habit.ID, "reminders", len(habit.NotificationIDs))
		if err := b.sendText(chatID, text); err != nil {
			return err
		}
		return b.nav.showHome(ctx, chatID, user)
	}

	editing := false
	if state := b.getConversation(user.TelegramID); state != nil && !state.stage.template() {
		editing = state.editing()
	}

	var text string
	switch {
	case errors.Is(err, service.ErrQuotaExceeded):
		text = fmt.Sprintf("🚫 That would pass the limit of %d pending reminders. Choose fewer days or times with %s, or delete another habit.",
			b.habitSvc.Quota().Cap()-1, btnChange)
	case errors.Is(err, service.ErrPermissionDenied):
		text = "🔕 I cannot message you, so reminders cannot be turned on. Turn them off with " + btnChange + "."
	case errors.Is(err, service.ErrValidation):
		text = "Something is missing. Use " + btnChange + " to fill it in."
	default:
		text = fmt.Sprintf("Could not save the habit: %s", escape(err.Error()))
	}
	return b.sendWithReplyMarkup(chatID, text, saveKeyboard(editing))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Give the habit number: /delete 3")
	}
	habitID, err := parseHabitID(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, "The habit number must be numeric.")
	}
	return b.deleteHabitAndRefresh(ctx, msg.Chat.ID, msg.From, habitID)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	b.ackCallback(cb)

	data := cb.Data
	chatID := cb.Message.Chat.ID
	switch {
	case strings.HasPrefix(data, cbEditPrefix):
		habitID, err := parseCallbackID(data, cbEditPrefix)
		if err != nil {
			return nil
		}
		return b.startEditConversation(ctx, chatID, cb.From, habitID)
	case strings.HasPrefix(data, cbDeletePrefix):
		habitID, err := parseCallbackID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askDeleteConfirmation(ctx, chatID, cb.From, habitID)
	case strings.HasPrefix(data, cbConfirmPrefix):
		habitID, err := parseCallbackID(data, cbConfirmPrefix)
		if err != nil {
			return nil
		}
		b.clearConfirmation(cb.From.ID)
		return b.deleteHabitAndRefresh(ctx, chatID, cb.From, habitID)
	case strings.HasPrefix(data, cbCancelPrefix):
		b.clearConfirmation(cb.From.ID)
		return b.sendText(chatID, "Kept.")
	default:
		return nil
	}
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, habitID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	habit, err := b.habitSvc.Get(ctx, *user, habitID)
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			return b.sendText(chatID, "Habit not found.")
		}
		return err
	}

	b.setConfirmation(from.ID, confirmationRequest{habitID: habit.ID})
	text := fmt.Sprintf("Delete habit «%s» (#%d) and its reminders?", escape(normalizeTitle(habit.Title)), habit.ID)
	return b.sendWithReplyMarkup(chatID, text, deleteConfirmButtons(habit.ID))
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if req.session != nil {
			return b.deleteCurrentAndRefresh(ctx, msg.Chat.ID, msg.From.ID, req.session)
		}
		return b.deleteHabitAndRefresh(ctx, msg.Chat.ID, msg.From, req.habitID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		if state := b.getConversation(msg.From.ID); state != nil {
			return b.nav.showEditor(ctx, msg.Chat.ID, state)
		}
		return b.sendText(msg.Chat.ID, "Kept.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or go back.", confirmKeyboard())
	}
}

// deleteCurrentAndRefresh deletes the habit open in the editor.
func (b *Bot) deleteCurrentAndRefresh(ctx context.Context, chatID, userID int64, session *service.Session) error {
	title := session.Draft().Title
	if err := session.DeleteCurrent(ctx); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not delete the habit: %s", escape(err.Error())))
	}
	b.clearConversation(userID)
	user := session.User()
	if err := b.sendText(chatID, fmt.Sprintf("🗑 Habit «%s» deleted.", escape(normalizeTitle(title)))); err != nil {
		return err
	}
	return b.nav.showHome(ctx, chatID, &user)
}

func (b *Bot) deleteHabitAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, habitID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	habit, err := b.habitSvc.Get(ctx, *user, habitID)
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			return b.sendText(chatID, "Habit not found or already deleted.")
		}
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	if err := b.habitSvc.DeleteHabit(ctx, *user, habit.ID); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not delete the habit: %s", escape(err.Error())))
	}

	if err := b.sendText(chatID, fmt.Sprintf("🗑 Habit «%s» deleted.", escape(normalizeTitle(habit.Title)))); err != nil {
		return err
	}
	return b.nav.showHome(ctx, chatID, user)
}

func formatDraft(d service.Draft, access bool, remaining int) string {
	var s strings.Builder
	s.WriteString(fmt.Sprintf("%s <b>%s</b>\n", d.Color.Emoji(), escape(normalizeTitle(d.Title))))
	s.WriteString(fmt.Sprintf("• <b>Days:</b> %s\n", joinDays(d.WeekDays)))
	switch {
	case !access:
		s.WriteString("• <b>Reminders:</b> unavailable, I cannot message you\n")
	case d.ReminderOn:
		s.WriteString(fmt.Sprintf("• <b>Reminder:</b> %s\n", escape(d.ReminderText)))
		s.WriteString(fmt.Sprintf("• <b>Times:</b> %s\n", joinTimes(d.ReminderTimes)))
		s.WriteString(fmt.Sprintf("• <b>Notifications:</b> %d (%d free)\n", d.TriggerCount(), remaining))
	default:
		s.WriteString("• <b>Reminders:</b> off\n")
	}
	if !d.CanCommit() {
		s.WriteString("\n⚠️ Something is still missing.")
	}
	return strings.TrimSpace(s.String())
}

func joinDays(days []model.Weekday) string {
	days = model.NormalizeWeekdays(days)
	if len(days) == len(model.AllWeekdays) {
		return "every day"
	}
	if len(days) == 0 {
		return "none"
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = string(d)
	}
	return strings.Join(parts, ", ")
}

func joinTimes(times []model.TimeOfDay) string {
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
