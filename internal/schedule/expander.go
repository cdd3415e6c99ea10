// Package schedule turns a medication plan into concrete reminder events
// over a forward-looking horizon of days.
package schedule

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"pillbot/internal/domain"
)

// DefaultWindowMins is the reminder tolerance window attached to every
// non-PRN event.
const DefaultWindowMins = 30

// defaultTimes maps a frequency to its default clock times, used when an
// instruction carries no explicit times of day. PRN has none: as-needed
// medication is surfaced through the plan itself, not through events.
var defaultTimes = map[domain.Frequency][]string{
	domain.FreqQD:  {"09:00"},
	domain.FreqBID: {"08:00", "20:00"},
	domain.FreqTID: {"08:00", "14:00", "20:00"},
	domain.FreqQID: {"06:00", "12:00", "18:00", "22:00"},
	domain.FreqQHS: {"22:30"},
	domain.FreqQAM: {"08:00"},
	domain.FreqQPM: {"20:00"},
	domain.FreqQOD: {"09:00"},
	domain.FreqPRN: {},
}

// Expand generates the reminder events for a plan starting at the day of
// `start` over `horizonDays` days. The result is day-major within each
// instruction, instructions in plan order; ids are deterministic, so
// re-expansion with identical inputs reproduces identical events.
// Expansion never fails: missing optional fields fall back to defaults.
func Expand(plan *domain.MedicationPlan, start time.Time, horizonDays int) []domain.ScheduleEvent {
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	var events []domain.ScheduleEvent
	for idx, ins := range plan.Instructions {
		times := resolveTimes(ins)
		if len(times) == 0 {
			// PRN without explicit times contributes zero events
			continue
		}

		days := horizonDays
		if ins.DurationDays != nil && *ins.DurationDays < days {
			days = *ins.DurationDays
		}

		for offset := 0; offset < days; offset++ {
			if ins.Frequency == domain.FreqQOD && offset%2 != 0 {
				// every other day counts from the start day, not the calendar
				continue
			}
			for _, tod := range times {
				hour, minute := parseClock(tod)
				ev := domain.ScheduleEvent{
					ID:        domain.EventID(plan.ID, idx, offset, tod),
					MedPlanID: plan.ID,
					At:        dayStart.AddDate(0, 0, offset).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute),
					Dose:      ins.Dose.Label(),
					Status:    domain.StatusScheduled,
				}
				if ins.Frequency != domain.FreqPRN {
					w := DefaultWindowMins
					ev.WindowMins = &w
				}
				events = append(events, ev)
			}
		}
	}
	return events
}

func resolveTimes(ins domain.DosageInstruction) []string {
	if len(ins.TimesOfDay) == 0 {
		return defaultTimes[ins.Frequency]
	}
	seen := make(map[string]bool)
	var times []string
	for _, t := range ins.TimesOfDay {
		if !seen[t] {
			seen[t] = true
			times = append(times, t)
		}
	}
	sort.Strings(times)
	return times
}

func parseClock(tod string) (hour, minute int) {
	parts := strings.SplitN(tod, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	hour, _ = strconv.Atoi(parts[0])
	minute, _ = strconv.Atoi(parts[1])
	return hour, minute
}
