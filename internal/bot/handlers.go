package bot

import (
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pillbot/internal/domain"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
		return
	}
	if update.Message != nil {
		b.handleMessage(update.Message)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	if !b.cfg.IsAllowedUser(msg.From.ID) {
		log.Printf("Ignoring message from unknown user %d", msg.From.ID)
		return
	}

	user := b.autoRegisterUser(msg.From)

	if msg.IsCommand() {
		b.handleCommand(msg, user)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	// Любой свободный текст трактуем как рецепт
	b.previewPrescription(msg.Chat.ID, text)
}

func (b *Bot) autoRegisterUser(from *tgbotapi.User) *domain.User {
	user, err := b.storage.GetUserByTelegramID(from.ID)
	if err != nil {
		log.Printf("Error getting user %d: %v", from.ID, err)
		return nil
	}
	if user != nil {
		return user
	}

	name := from.FirstName
	if from.LastName != "" {
		name += " " + from.LastName
	}

	role := domain.RolePatient
	if from.ID == b.cfg.CaregiverTelegramID {
		role = domain.RoleCaregiver
	}

	user = &domain.User{TelegramID: from.ID, Name: name, Role: role}
	if err := b.storage.CreateUser(user); err != nil {
		log.Printf("Error creating user %d: %v", from.ID, err)
		return nil
	}
	return user
}

// previewPrescription parses the text and shows the result for confirmation.
// Nothing is persisted until the user presses "Сохранить".
func (b *Bot) previewPrescription(chatID int64, text string) {
	plans := b.planService.Parse(text)
	if len(plans) == 0 {
		b.SendMessage(chatID, "🤔 Не нашёл лекарств в тексте. Пришли текст рецепта, например:\n\n<i>Amoxicillin 500 mg\n1 tab 3 times a day 7 days</i>")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Нашёл %s:\n\n", plural(len(plans), "лекарство", "лекарства", "лекарств")))
	for _, p := range plans {
		sb.WriteString(b.planService.FormatPlan(p))
		sb.WriteString("\n")
	}
	sb.WriteString("Сохранить и включить напоминания?")

	b.setPendingText(chatID, text)
	b.SendMessageWithKeyboard(chatID, sb.String(), confirmKeyboard())
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if callback.From == nil || !b.cfg.IsAllowedUser(callback.From.ID) {
		return
	}

	user := b.autoRegisterUser(callback.From)
	if user == nil {
		return
	}

	chatID := callback.Message.Chat.ID
	data := callback.Data

	// убираем "часики" на кнопке
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Printf("Error answering callback: %v", err)
	}

	switch {
	case data == "confirm":
		b.confirmPrescription(chatID, user)
	case data == "cancel":
		b.takePendingText(chatID)
		b.SendMessage(chatID, "Отменено")
	case strings.HasPrefix(data, "taken:"):
		b.markEvent(chatID, strings.TrimPrefix(data, "taken:"), domain.StatusTaken)
	case strings.HasPrefix(data, "skip:"):
		b.markEvent(chatID, strings.TrimPrefix(data, "skip:"), domain.StatusMissed)
	case strings.HasPrefix(data, "snooze:"):
		b.snoozeEvent(chatID, strings.TrimPrefix(data, "snooze:"))
	case strings.HasPrefix(data, "plan:"):
		b.showPlan(chatID, user, strings.TrimPrefix(data, "plan:"))
	case strings.HasPrefix(data, "plandel:"):
		b.deletePlan(chatID, user, strings.TrimPrefix(data, "plandel:"))
	}
}

// confirmPrescription persists the pending text and schedules reminders
func (b *Bot) confirmPrescription(chatID int64, user *domain.User) {
	text, ok := b.takePendingText(chatID)
	if !ok {
		b.SendMessage(chatID, "Нечего сохранять — пришли текст рецепта ещё раз")
		return
	}

	plans, err := b.planService.SaveParsed(user.ID, text)
	if err != nil {
		b.SendMessage(chatID, "❌ Ошибка сохранения: "+err.Error())
		return
	}

	for _, p := range plans {
		if err := b.scheduleService.Reschedule(p); err != nil {
			b.SendMessage(chatID, "❌ Ошибка планирования: "+err.Error())
			return
		}
		if b.calendarService.IsConfigured() {
			if _, err := b.calendarService.SyncPlanToCalendar(p); err != nil {
				log.Printf("Failed to sync plan %s to calendar: %v", p.ID, err)
			}
		}
	}

	b.SendMessage(chatID, fmt.Sprintf("✅ Сохранено: %d. Напоминания включены.\n\n/today — приёмы на сегодня", len(plans)))
}

func (b *Bot) markEvent(chatID int64, eventID string, status domain.EventStatus) {
	var err error
	if status == domain.StatusTaken {
		err = b.scheduleService.MarkTaken(eventID)
	} else {
		err = b.scheduleService.MarkMissed(eventID)
	}
	if err != nil {
		b.SendMessage(chatID, "❌ Ошибка: "+err.Error())
		return
	}

	if status == domain.StatusTaken {
		b.SendMessage(chatID, "✅ Отмечено как принятое")
	} else {
		b.SendMessage(chatID, "🚫 Приём пропущен")
	}
}

func (b *Bot) snoozeEvent(chatID int64, data string) {
	// data: "<eventID>:<duration>"
	idx := strings.LastIndex(data, ":")
	if idx < 0 {
		return
	}
	eventID, durStr := data[:idx], data[idx+1:]

	d, err := time.ParseDuration(durStr)
	if err != nil {
		d = 15 * time.Minute
	}

	if err := b.scheduleService.Snooze(eventID, d); err != nil {
		b.SendMessage(chatID, "❌ Ошибка: "+err.Error())
		return
	}
	b.SendMessage(chatID, fmt.Sprintf("⏰ Напомню через %s", formatDuration(d)))
}

func (b *Bot) showPlan(chatID int64, user *domain.User, planID string) {
	plan, err := b.planService.Get(planID)
	if err != nil || plan == nil || plan.UserID != user.ID {
		b.SendMessage(chatID, "❌ Лекарство не найдено")
		return
	}

	events, err := b.scheduleService.PlanEvents(planID)
	if err != nil {
		b.SendMessage(chatID, "❌ Ошибка: "+err.Error())
		return
	}

	taken, missed := 0, 0
	for _, e := range events {
		switch e.Status {
		case domain.StatusTaken:
			taken++
		case domain.StatusMissed:
			missed++
		}
	}

	text := b.planService.FormatPlan(plan)
	text += fmt.Sprintf("\nНапоминаний: %d (✅ %d, ❌ %d)\nID: <code>%s</code>", len(events), taken, missed, plan.ID)
	b.SendMessage(chatID, text)
}

func formatDuration(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%d ч", int(d.Hours()))
	}
	return fmt.Sprintf("%d мин", int(d.Minutes()))
}

func plural(n int, one, few, many string) string {
	n10, n100 := n%10, n%100
	switch {
	case n10 == 1 && n100 != 11:
		return fmt.Sprintf("%d %s", n, one)
	case n10 >= 2 && n10 <= 4 && (n100 < 12 || n100 > 14):
		return fmt.Sprintf("%d %s", n, few)
	default:
		return fmt.Sprintf("%d %s", n, many)
	}
}
