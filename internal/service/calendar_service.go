package service

import (
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"pillbot/internal/clients/caldav"
	"pillbot/internal/domain"
	"pillbot/internal/storage"
)

// CalendarService exports intake schedules as iCalendar data and optionally
// pushes them to a CalDAV calendar.
type CalendarService struct {
	storage      *storage.Storage
	caldavClient *caldav.Client
	calendarPath string
	timezone     *time.Location
}

func NewCalendarService(s *storage.Storage, client *caldav.Client, tz *time.Location) *CalendarService {
	if tz == nil {
		tz = time.UTC
	}
	return &CalendarService{
		storage:      s,
		caldavClient: client,
		timezone:     tz,
	}
}

// IsConfigured returns true if CalDAV client is configured
func (s *CalendarService) IsConfigured() bool {
	return s.caldavClient != nil && s.caldavClient.IsConfigured()
}

// SetCalendarPath sets the calendar path to use for sync
func (s *CalendarService) SetCalendarPath(path string) {
	s.calendarPath = path
	if s.caldavClient != nil {
		s.caldavClient.SetCalendarID(path)
	}
}

// DiscoverCalendars returns available calendars from the CalDAV server
func (s *CalendarService) DiscoverCalendars() ([]caldav.Calendar, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("CalDAV not configured")
	}
	return s.caldavClient.DiscoverCalendars()
}

// toCalendarEvent maps a schedule event onto the CalDAV event shape.
// PRN events carry no window and get no alarm.
func (s *CalendarService) toCalendarEvent(plan *domain.MedicationPlan, e *domain.ScheduleEvent) *caldav.Event {
	ce := &caldav.Event{
		UID:       e.ID,
		Summary:   fmt.Sprintf("💊 %s — %s", plan.Name, e.Dose),
		StartTime: e.At,
		EndTime:   e.At.Add(15 * time.Minute),
	}
	if plan.Strength != nil {
		ce.Description = plan.Name + " " + *plan.Strength
	}
	if e.WindowMins != nil {
		ce.AlarmMinsBefore = *e.WindowMins
	}
	return ce
}

// ExportPlanICS renders all events of a plan as a single VCALENDAR
func (s *CalendarService) ExportPlanICS(plan *domain.MedicationPlan) (string, error) {
	events, err := s.storage.ListEventsByPlan(plan.ID)
	if err != nil {
		return "", fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return "", fmt.Errorf("plan has no scheduled events")
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//PillBot//CalDAV//EN")

	for _, e := range events {
		single := caldav.EventToICS(s.toCalendarEvent(plan, e))
		cal.Children = append(cal.Children, single.Children...)
	}

	return caldav.SerializeCalendar(cal)
}

// SyncPlanToCalendar pushes every pending event of a plan to CalDAV.
// Events are PUT by UID, so re-sync after a reschedule overwrites in place.
func (s *CalendarService) SyncPlanToCalendar(plan *domain.MedicationPlan) (int, error) {
	if !s.IsConfigured() {
		return 0, fmt.Errorf("CalDAV not configured")
	}

	events, err := s.storage.ListEventsByPlan(plan.ID)
	if err != nil {
		return 0, fmt.Errorf("list events: %w", err)
	}

	pushed := 0
	for _, e := range events {
		if !e.Pending() {
			continue
		}
		if err := s.caldavClient.PutEvent(s.calendarPath, s.toCalendarEvent(plan, e)); err != nil {
			return pushed, fmt.Errorf("push event %s: %w", e.ID, err)
		}
		pushed++
	}
	return pushed, nil
}

// DeletePlanFromCalendar removes a plan's events from CalDAV
func (s *CalendarService) DeletePlanFromCalendar(planID string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("CalDAV not configured")
	}

	events, err := s.storage.ListEventsByPlan(planID)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	for _, e := range events {
		if err := s.caldavClient.DeleteEvent(s.calendarPath, e.ID); err != nil {
			// event may never have been pushed
			continue
		}
	}
	return nil
}
