package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"intent-bot/internal/model"
)

const (
	btnSkip         = "⏭️ Skip"
	btnYes          = "Yes"
	btnNo           = "No"
	btnSave         = "✅ Save"
	btnChange       = "✏️ Change"
	btnDelete       = "🗑 Delete"
	btnConfirm      = "✅ Confirm"
	btnCancel       = "↩️ Back"
	btnCancelDialog = "⏪ Cancel"
	btnEveryday     = "Everyday"
	btnWorkdays     = "Mon Tue Wed Thu Fri"
	btnWeekend      = "Sat Sun"

	menuLabelNewHabit = "➕ New habit"
	menuLabelTemplate = "🧩 Template"
	menuLabelHabits   = "🏠 Habits"
	menuLabelToday    = "📋 Today"
	menuLabelHelp     = "ℹ️ Help"
)

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewHabit),
			tgbotapi.NewKeyboardButton(menuLabelTemplate),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHabits),
			tgbotapi.NewKeyboardButton(menuLabelToday),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// promptKeyboard shows a skip button only while editing, where skipping
// keeps the stored value.
func promptKeyboard(editing bool) tgbotapi.ReplyKeyboardMarkup {
	if !editing {
		return cancelKeyboard()
	}
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnYes),
			tgbotapi.NewKeyboardButton(btnNo),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func colorKeyboard(editing bool) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, c := range model.Palette {
		row = append(row, tgbotapi.NewKeyboardButton(colorLabel(c)))
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	last := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnCancelDialog)}
	if editing {
		last = append([]tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnSkip)}, last...)
	}
	rows = append(rows, last)

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func weekdaysKeyboard(editing bool) tgbotapi.ReplyKeyboardMarkup {
	last := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnCancelDialog)}
	if editing {
		last = append([]tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(btnSkip)}, last...)
	}
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnEveryday),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnWorkdays),
			tgbotapi.NewKeyboardButton(btnWeekend),
		),
		last,
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func stepKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var row []tgbotapi.KeyboardButton
	for _, s := range model.Steps {
		row = append(row, tgbotapi.NewKeyboardButton(string(s)))
	}
	kb := tgbotapi.NewReplyKeyboard(
		row,
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func saveKeyboard(editing bool) tgbotapi.ReplyKeyboardMarkup {
	row := []tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButton(btnSave),
		tgbotapi.NewKeyboardButton(btnChange),
	}
	if editing {
		row = append(row, tgbotapi.NewKeyboardButton(btnDelete))
	}
	kb := tgbotapi.NewReplyKeyboard(
		row,
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func habitButtons(habits []model.Habit) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, h := range habits {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✏️ #%d · %s", h.ID, shortTitle(h.Title, 20)), fmt.Sprintf("%s%d", cbEditPrefix, h.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, h.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func deleteConfirmButtons(habitID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(btnConfirm, fmt.Sprintf("%s%d", cbConfirmPrefix, habitID)),
		tgbotapi.NewInlineKeyboardButtonData(btnCancel, fmt.Sprintf("%s%d", cbCancelPrefix, habitID)),
	))
}

func colorLabel(c model.Color) string {
	return fmt.Sprintf("%d %s", c.Index(), c.Emoji())
}

// parseColor accepts a palette index, a keyboard label or a swatch name.
func parseColor(text string) (model.Color, bool) {
	text = strings.TrimSpace(text)
	if fields := strings.Fields(text); len(fields) > 0 {
		if i, err := strconv.Atoi(fields[0]); err == nil && i >= 1 && i <= len(model.Palette) {
			return model.ColorForIndex(i), true
		}
	}
	for _, c := range model.Palette {
		if strings.EqualFold(text, string(c)) || text == c.Emoji() {
			return c, true
		}
	}
	return "", false
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isYesInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "yes" || value == "y" || value == "on"
}

func isNoInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "no" || value == "n" || value == "off"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "back" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel"
}

func parseHabitID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func parseCallbackID(data, prefix string) (uint, error) {
	return parseHabitID(strings.TrimPrefix(data, prefix))
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func escape(s string) string {
	return html.EscapeString(s)
}
