package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/robfig/cron/v3"

	"pillbot/config"
	"pillbot/internal/service"
	"pillbot/internal/storage"
)

// ReminderSender delivers intake reminders. Only events with a reminder
// window ever reach it; PRN events are filtered out at the query level.
type ReminderSender interface {
	SendMessage(chatID int64, text string) error
	SendEventReminder(chatID int64, text string, eventID string) error
}

type Scheduler struct {
	cron            *cron.Cron
	cfg             *config.Config
	storage         *storage.Storage
	planService     *service.PlanService
	scheduleService *service.ScheduleService
	sender          ReminderSender
}

func New(cfg *config.Config, storage *storage.Storage, planSvc *service.PlanService, scheduleSvc *service.ScheduleService) *Scheduler {
	c := cron.New(cron.WithLocation(cfg.Timezone))

	return &Scheduler{
		cron:            c,
		cfg:             cfg,
		storage:         storage,
		planService:     planSvc,
		scheduleService: scheduleSvc,
	}
}

func (s *Scheduler) SetSender(sender ReminderSender) {
	s.sender = sender
}

func (s *Scheduler) Start(ctx context.Context) error {
	// Проверка напоминаний каждую минуту
	if _, err := s.cron.AddFunc("* * * * *", s.dispatchDue); err != nil {
		return fmt.Errorf("add due check: %w", err)
	}

	// Утренний список приёмов
	morningSpec, err := cronSpecAt(s.cfg.MorningTime)
	if err != nil {
		return fmt.Errorf("morning spec: %w", err)
	}
	if _, err := s.cron.AddFunc(morningSpec, s.morningAgenda); err != nil {
		return fmt.Errorf("add morning agenda: %w", err)
	}

	// Ночной прогон: пропущенные приёмы + сдвиг горизонта
	if _, err := s.cron.AddFunc("0 3 * * *", s.nightlyRoll); err != nil {
		return fmt.Errorf("add nightly roll: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (TZ: %s, morning: %s, horizon: %d days)",
		s.cfg.Timezone, s.cfg.MorningTime, s.cfg.HorizonDays)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

func cronSpecAt(hhmm string) (string, error) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format: %s", hhmm)
	}
	return fmt.Sprintf("%s %s * * *", parts[1], parts[0]), nil
}

// dispatchDue sends a reminder for every due event and records the send,
// so the same occurrence is never announced twice.
func (s *Scheduler) dispatchDue() {
	if s.sender == nil {
		return
	}

	events, err := s.scheduleService.DueEvents()
	if err != nil {
		log.Printf("Error getting due events: %v", err)
		return
	}

	for _, e := range events {
		plan, err := s.storage.GetPlan(e.MedPlanID)
		if err != nil || plan == nil {
			continue
		}
		user, err := s.storage.GetUserByID(plan.UserID)
		if err != nil || user == nil {
			continue
		}

		text := fmt.Sprintf("🔔 <b>Пора принять лекарство</b>\n\n💊 %s — %s", plan.Name, e.Dose)
		if err := s.sender.SendEventReminder(user.TelegramID, text, e.ID); err != nil {
			log.Printf("Error sending reminder %s to user %d: %v", e.ID, user.TelegramID, err)
			continue
		}

		if err := s.scheduleService.MarkSent(e.ID); err != nil {
			log.Printf("Error marking event %s as sent: %v", e.ID, err)
		}
	}
}

func (s *Scheduler) morningAgenda() {
	if s.sender == nil {
		return
	}

	s.sendAgendaTo(s.cfg.OwnerTelegramID)
	if s.cfg.CaregiverTelegramID != 0 {
		s.sendAgendaTo(s.cfg.CaregiverTelegramID)
	}
}

func (s *Scheduler) sendAgendaTo(telegramID int64) {
	user, err := s.storage.GetUserByTelegramID(telegramID)
	if err != nil || user == nil {
		return
	}

	events, err := s.scheduleService.TodayEvents(user.ID)
	if err != nil {
		log.Printf("Error getting today events: %v", err)
		return
	}

	plans, err := s.planService.List(user.ID)
	if err != nil {
		log.Printf("Error getting plans: %v", err)
		return
	}

	text := "☀️ <b>Приёмы на сегодня</b>\n\n" + s.scheduleService.FormatAgenda(events, plans)
	if err := s.sender.SendMessage(telegramID, text); err != nil {
		log.Printf("Error sending morning agenda to %d: %v", telegramID, err)
	}
}

// nightlyRoll marks stale events as missed and re-expands every plan so the
// reminder horizon keeps moving forward.
func (s *Scheduler) nightlyRoll() {
	missed, err := s.scheduleService.SweepMissed()
	if err != nil {
		log.Printf("Error sweeping missed events: %v", err)
	} else if missed > 0 {
		log.Printf("Marked %d events as missed", missed)
	}

	count, err := s.scheduleService.RescheduleAll()
	if err != nil {
		log.Printf("Error rolling schedule horizon: %v", err)
		return
	}
	log.Printf("Rescheduled %d plans", count)
}
