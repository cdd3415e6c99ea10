package bot

import (
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pillbot/internal/domain"
)

func (b *Bot) handleCommand(msg *tgbotapi.Message, user *domain.User) {
	chatID := msg.Chat.ID
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	switch cmd {
	case "start":
		b.cmdStart(msg)
	case "help":
		b.cmdHelp(chatID)
	case "meds", "list":
		b.cmdMeds(chatID, user)
	case "today":
		b.cmdToday(chatID, user)
	case "del":
		b.cmdDel(chatID, user, args)
	case "notes":
		b.cmdNotes(chatID, user, args)
	case "ics":
		b.cmdICS(chatID, user, args)
	default:
		b.SendMessage(chatID, "Неизвестная команда. /help для списка команд")
	}
}

func (b *Bot) cmdStart(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	user, _ := b.storage.GetUserByTelegramID(userID)
	if user != nil {
		b.SendMessage(chatID, fmt.Sprintf("👋 С возвращением, %s!", user.Name))
		return
	}

	// Создаём пользователя
	name := msg.From.FirstName
	if msg.From.LastName != "" {
		name += " " + msg.From.LastName
	}

	role := domain.RolePatient
	if userID == b.cfg.CaregiverTelegramID {
		role = domain.RoleCaregiver
	}

	newUser := &domain.User{
		TelegramID: userID,
		Name:       name,
		Role:       role,
	}

	if err := b.storage.CreateUser(newUser); err != nil {
		b.SendMessage(chatID, "❌ Ошибка регистрации: "+err.Error())
		return
	}

	b.SendMessage(chatID, fmt.Sprintf("👋 Привет, %s!\n\nПришли мне текст рецепта (можно из фото через распознавание) — я разберу его на лекарства и буду напоминать о приёмах.\n\n/help — список команд", name))
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Команды:</b>

<b>Лекарства</b>
/meds — список лекарств
/today — приёмы на сегодня
/del ID — удалить лекарство
/notes ID текст — заметка к лекарству

<b>Календарь</b>
/ics ID — экспорт расписания в .ics

<b>Другое</b>
/help — эта справка

💡 Просто пришли текст рецепта — разберу и предложу сохранить`

	b.SendMessage(chatID, text)
}

func (b *Bot) cmdMeds(chatID int64, user *domain.User) {
	if user == nil {
		b.SendMessage(chatID, "Сначала /start")
		return
	}

	plans, err := b.planService.List(user.ID)
	if err != nil {
		b.SendMessage(chatID, "❌ Ошибка: "+err.Error())
		return
	}

	text := "💊 <b>Лекарства</b>\n\n" + b.planService.FormatPlanList(plans)
	if kb := planListKeyboard(plans); kb != nil {
		b.SendMessageWithKeyboard(chatID, text, *kb)
		return
	}
	b.SendMessage(chatID, text)
}

func (b *Bot) cmdToday(chatID int64, user *domain.User) {
	if user == nil {
		b.SendMessage(chatID, "Сначала /start")
		return
	}

	events, err := b.scheduleService.TodayEvents(user.ID)
	if err != nil {
		b.SendMessage(chatID, "❌ Ошибка: "+err.Error())
		return
	}
	plans, err := b.planService.List(user.ID)
	if err != nil {
		b.SendMessage(chatID, "❌ Ошибка: "+err.Error())
		return
	}

	b.SendMessage(chatID, "📅 <b>Приёмы на сегодня</b>\n\n"+b.scheduleService.FormatAgenda(events, plans))
}

func (b *Bot) cmdDel(chatID int64, user *domain.User, args string) {
	if user == nil {
		b.SendMessage(chatID, "Сначала /start")
		return
	}
	if args == "" {
		b.SendMessage(chatID, "Укажи ID лекарства: /del med-1a2b3c4d")
		return
	}

	b.deletePlan(chatID, user, args)
}

func (b *Bot) cmdNotes(chatID int64, user *domain.User, args string) {
	if user == nil {
		b.SendMessage(chatID, "Сначала /start")
		return
	}

	parts := strings.SplitN(args, " ", 2)
	if len(parts) < 2 {
		b.SendMessage(chatID, "Формат: /notes med-1a2b3c4d принимать запивая водой")
		return
	}

	if err := b.planService.UpdateNotes(parts[0], user.ID, parts[1]); err != nil {
		b.SendMessage(chatID, "❌ Ошибка: "+err.Error())
		return
	}
	b.SendMessage(chatID, "📝 Заметка сохранена")
}

func (b *Bot) cmdICS(chatID int64, user *domain.User, args string) {
	if user == nil {
		b.SendMessage(chatID, "Сначала /start")
		return
	}
	if args == "" {
		b.SendMessage(chatID, "Укажи ID лекарства: /ics med-1a2b3c4d")
		return
	}

	plan, err := b.planService.Get(args)
	if err != nil || plan == nil || plan.UserID != user.ID {
		b.SendMessage(chatID, "❌ Лекарство не найдено")
		return
	}

	ics, err := b.calendarService.ExportPlanICS(plan)
	if err != nil {
		b.SendMessage(chatID, "❌ Ошибка экспорта: "+err.Error())
		return
	}

	file := tgbotapi.FileBytes{Name: plan.ID + ".ics", Bytes: []byte(ics)}
	doc := tgbotapi.NewDocument(chatID, file)
	doc.Caption = fmt.Sprintf("📆 Расписание: %s", plan.Name)
	if _, err := b.api.Send(doc); err != nil {
		b.SendMessage(chatID, "❌ Ошибка отправки: "+err.Error())
	}
}

func (b *Bot) deletePlan(chatID int64, user *domain.User, planID string) {
	// убрать события из внешнего календаря до удаления из базы
	if b.calendarService.IsConfigured() {
		if err := b.calendarService.DeletePlanFromCalendar(planID); err != nil {
			log.Printf("Failed to remove plan %s from calendar: %v", planID, err)
		}
	}

	if err := b.planService.Delete(planID, user.ID); err != nil {
		b.SendMessage(chatID, "❌ Ошибка: "+err.Error())
		return
	}
	b.SendMessage(chatID, "🗑 Лекарство и его напоминания удалены")
}
