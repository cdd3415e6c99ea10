package bot

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pillbot/config"
	"pillbot/internal/service"
	"pillbot/internal/storage"
)

type Bot struct {
	api             *tgbotapi.BotAPI
	cfg             *config.Config
	storage         *storage.Storage
	planService     *service.PlanService
	scheduleService *service.ScheduleService
	calendarService *service.CalendarService
	server          *http.Server

	// raw prescription text awaiting the user's confirmation, keyed by chat
	// (callback data is limited to 64 bytes, so the text stays server-side)
	pendingMu    sync.Mutex
	pendingTexts map[int64]string
}

func New(cfg *config.Config, storage *storage.Storage, planSvc *service.PlanService, scheduleSvc *service.ScheduleService, calendarSvc *service.CalendarService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	bot := &Bot{
		api:             api,
		cfg:             cfg,
		storage:         storage,
		planService:     planSvc,
		scheduleService: scheduleSvc,
		calendarService: calendarSvc,
		pendingTexts:    make(map[int64]string),
	}

	// Set bot commands (menu button)
	bot.setCommands()

	return bot, nil
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "meds", Description: "💊 Мои лекарства"},
		{Command: "today", Description: "📅 Приёмы на сегодня"},
		{Command: "notes", Description: "📝 Заметка к лекарству"},
		{Command: "del", Description: "🗑 Удалить лекарство"},
		{Command: "ics", Description: "📆 Экспорт в календарь"},
		{Command: "help", Description: "❓ Справка по командам"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("Failed to set commands: %v", err)
	}
}

func (b *Bot) SetupWebhook() error {
	webhookURL := b.cfg.WebhookURL + "/bot"

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	_, err = b.api.Request(wh)
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}

	if info.LastErrorDate != 0 {
		log.Printf("Webhook last error: %s", info.LastErrorMessage)
	}

	log.Printf("Webhook set to: %s", webhookURL)
	return nil
}

func (b *Bot) Start(ctx context.Context) error {
	updates := b.api.ListenForWebhook("/bot")

	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Setup REST API with Basic Auth
	b.SetupAPI()

	b.server = &http.Server{
		Addr:    ":" + b.cfg.ServerPort,
		Handler: nil, // use DefaultServeMux
	}

	go func() {
		log.Printf("Starting webhook server on :%s", b.cfg.ServerPort)
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

// SendEventReminder sends an intake reminder with taken/snooze/skip buttons
func (b *Bot) SendEventReminder(chatID int64, text string, eventID string) error {
	return b.SendMessageWithKeyboard(chatID, text, eventKeyboard(eventID))
}

func (b *Bot) setPendingText(chatID int64, text string) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.pendingTexts[chatID] = text
}

func (b *Bot) takePendingText(chatID int64) (string, bool) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	text, ok := b.pendingTexts[chatID]
	delete(b.pendingTexts, chatID)
	return text, ok
}
