package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pillbot/internal/domain"
)

// Confirmation keyboard shown under a parsed prescription preview
func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Сохранить", "confirm"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", "cancel"),
		),
	)
}

// Reminder action keyboard (for a single intake event)
func eventKeyboard(eventID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Принял", "taken:"+eventID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏰ +15 мин", "snooze:"+eventID+":15m"),
			tgbotapi.NewInlineKeyboardButtonData("⏰ +1 час", "snooze:"+eventID+":1h"),
			tgbotapi.NewInlineKeyboardButtonData("🚫 Пропустить", "skip:"+eventID),
		),
	)
}

// Plan list keyboard: one row per medication
func planListKeyboard(plans []*domain.MedicationPlan) *tgbotapi.InlineKeyboardMarkup {
	if len(plans) == 0 {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range plans {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				truncate(fmt.Sprintf("💊 %s", p.Name), 30),
				"plan:"+p.ID,
			),
			tgbotapi.NewInlineKeyboardButtonData("🗑", "plandel:"+p.ID),
		))
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
