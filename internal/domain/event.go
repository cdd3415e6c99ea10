package domain

import (
	"fmt"
	"strings"
	"time"
)

type EventStatus string

const (
	StatusScheduled EventStatus = "scheduled"
	StatusTaken     EventStatus = "taken"
	StatusMissed    EventStatus = "missed"
	StatusSnoozed   EventStatus = "snoozed"
)

// ScheduleEvent is one concrete reminder occurrence produced by expansion
type ScheduleEvent struct {
	ID           string
	MedPlanID    string
	At           time.Time
	WindowMins   *int // nil = do not auto-schedule a notification (PRN)
	Dose         string
	Status       EventStatus
	SentAt       *time.Time
	SnoozedUntil *time.Time
}

// EventID derives a stable event id from the owning plan, instruction index,
// day offset and clock time. Re-expanding the same plan over the same horizon
// yields identical ids, which makes cancel-and-reschedule by id safe.
func EventID(planID string, instructionIdx, dayOffset int, timeOfDay string) string {
	return fmt.Sprintf("%s-i%d-d%d-%s", planID, instructionIdx, dayOffset, strings.ReplaceAll(timeOfDay, ":", ""))
}

// Notifiable reports whether the event should be handed to the notifier
func (e *ScheduleEvent) Notifiable() bool {
	return e.WindowMins != nil
}

// Pending reports whether the event still awaits an intake decision
func (e *ScheduleEvent) Pending() bool {
	return e.Status == StatusScheduled || e.Status == StatusSnoozed
}

// StatusEmoji returns the marker used in agenda listings
func (e *ScheduleEvent) StatusEmoji() string {
	switch e.Status {
	case StatusTaken:
		return "✅"
	case StatusMissed:
		return "❌"
	case StatusSnoozed:
		return "⏰"
	default:
		return "⬜"
	}
}
