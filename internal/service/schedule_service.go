package service

import (
	"fmt"
	"strings"
	"time"

	"pillbot/internal/domain"
	"pillbot/internal/schedule"
	"pillbot/internal/storage"
)

type ScheduleService struct {
	storage     *storage.Storage
	timezone    *time.Location
	horizonDays int
}

func NewScheduleService(s *storage.Storage, tz *time.Location, horizonDays int) *ScheduleService {
	if tz == nil {
		tz = time.UTC
	}
	return &ScheduleService{
		storage:     s,
		timezone:    tz,
		horizonDays: horizonDays,
	}
}

// Reschedule expands the plan from today over the configured horizon and
// replaces its pending events. Deterministic event ids make this a safe
// cancel-and-reschedule: already answered events keep their status.
func (s *ScheduleService) Reschedule(plan *domain.MedicationPlan) error {
	now := time.Now().In(s.timezone)
	events := schedule.Expand(plan, now, s.horizonDays)
	if err := s.storage.ReplaceEvents(plan.ID, events); err != nil {
		return fmt.Errorf("replace events: %w", err)
	}
	return nil
}

// RescheduleAll rolls the horizon forward for every plan of every user.
// Called nightly so the forward-looking window never runs dry.
func (s *ScheduleService) RescheduleAll() (int, error) {
	users, err := s.storage.ListUsers()
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	count := 0
	for _, u := range users {
		plans, err := s.storage.ListPlansByUser(u.ID)
		if err != nil {
			return count, fmt.Errorf("list plans for user %d: %w", u.ID, err)
		}
		for _, p := range plans {
			if err := s.Reschedule(p); err != nil {
				return count, fmt.Errorf("reschedule %s: %w", p.ID, err)
			}
			count++
		}
	}
	return count, nil
}

func (s *ScheduleService) DueEvents() ([]*domain.ScheduleEvent, error) {
	now := time.Now().In(s.timezone)
	return s.storage.ListDueEvents(now)
}

func (s *ScheduleService) MarkSent(eventID string) error {
	return s.storage.MarkEventSent(eventID, time.Now().In(s.timezone))
}

func (s *ScheduleService) MarkTaken(eventID string) error {
	return s.setStatus(eventID, domain.StatusTaken)
}

func (s *ScheduleService) MarkMissed(eventID string) error {
	return s.setStatus(eventID, domain.StatusMissed)
}

func (s *ScheduleService) setStatus(eventID string, status domain.EventStatus) error {
	event, err := s.storage.GetEvent(eventID)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if event == nil {
		return fmt.Errorf("event not found")
	}
	return s.storage.UpdateEventStatus(eventID, status)
}

func (s *ScheduleService) Snooze(eventID string, d time.Duration) error {
	event, err := s.storage.GetEvent(eventID)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if event == nil {
		return fmt.Errorf("event not found")
	}
	until := time.Now().In(s.timezone).Add(d)
	return s.storage.SnoozeEvent(eventID, until)
}

// SweepMissed marks sent but unanswered events as missed once their window
// has passed.
func (s *ScheduleService) SweepMissed() (int64, error) {
	now := time.Now().In(s.timezone)
	return s.storage.MarkMissedBefore(now)
}

// TodayEvents returns the user's events for the current day, in time order
func (s *ScheduleService) TodayEvents(userID int64) ([]*domain.ScheduleEvent, error) {
	now := time.Now().In(s.timezone)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.timezone)
	return s.storage.ListEventsForRange(userID, dayStart, dayStart.Add(24*time.Hour))
}

func (s *ScheduleService) PlanEvents(planID string) ([]*domain.ScheduleEvent, error) {
	return s.storage.ListEventsByPlan(planID)
}

// FormatAgenda renders the day's intake list
func (s *ScheduleService) FormatAgenda(events []*domain.ScheduleEvent, plans []*domain.MedicationPlan) string {
	if len(events) == 0 {
		return "На сегодня приёмов нет."
	}

	names := make(map[string]string, len(plans))
	for _, p := range plans {
		names[p.ID] = p.Name
	}

	var sb strings.Builder
	for _, e := range events {
		name := names[e.MedPlanID]
		if name == "" {
			name = e.MedPlanID
		}
		sb.WriteString(fmt.Sprintf("%s %s — %s, %s\n",
			e.StatusEmoji(), e.At.In(s.timezone).Format("15:04"), name, e.Dose))
	}
	return sb.String()
}
