package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pillbot/internal/domain"
)

func testPlan(ins ...domain.DosageInstruction) *domain.MedicationPlan {
	return &domain.MedicationPlan{
		ID:           "med-0a1b2c3d",
		Name:         "Amoxicillin",
		Instructions: ins,
	}
}

func day(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	return time.Date(2026, 3, 2, 11, 45, 0, 0, loc) // mid-day start
}

func TestExpandTID(t *testing.T) {
	days := 7
	plan := testPlan(domain.DosageInstruction{
		Dose:         domain.Dose{Amount: 1, Unit: domain.UnitTablet},
		Frequency:    domain.FreqTID,
		DurationDays: &days,
	})

	events := Expand(plan, day(t), 14)
	require.Len(t, events, 21, "3 intakes x 7 days")

	first := events[0]
	assert.Equal(t, "med-0a1b2c3d-i0-d0-0800", first.ID)
	assert.Equal(t, plan.ID, first.MedPlanID)
	assert.Equal(t, "1 tab", first.Dose)
	assert.Equal(t, domain.StatusScheduled, first.Status)
	require.NotNil(t, first.WindowMins)
	assert.Equal(t, DefaultWindowMins, *first.WindowMins)

	// day-major: three intakes of day 0 at the default TID times
	assert.Equal(t, 8, events[0].At.Hour())
	assert.Equal(t, 14, events[1].At.Hour())
	assert.Equal(t, 20, events[2].At.Hour())
	assert.Equal(t, events[0].At.Day(), events[2].At.Day())
	assert.Equal(t, events[0].At.AddDate(0, 0, 6).Day(), events[20].At.Day())
}

func TestExpandDurationCapsHorizon(t *testing.T) {
	days := 3
	plan := testPlan(domain.DosageInstruction{
		Dose:         domain.Dose{Amount: 1, Unit: domain.UnitTablet},
		Frequency:    domain.FreqQD,
		DurationDays: &days,
	})

	events := Expand(plan, day(t), 14)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, 9, e.At.Hour())
		assert.Equal(t, events[0].At.AddDate(0, 0, i), e.At)
	}
}

func TestExpandHorizonCapsDuration(t *testing.T) {
	days := 30
	plan := testPlan(domain.DosageInstruction{
		Dose:         domain.Dose{Amount: 1, Unit: domain.UnitTablet},
		Frequency:    domain.FreqQD,
		DurationDays: &days,
	})

	events := Expand(plan, day(t), 14)
	assert.Len(t, events, 14)
}

func TestExpandQOD(t *testing.T) {
	plan := testPlan(domain.DosageInstruction{
		Dose:      domain.Dose{Amount: 1, Unit: domain.UnitTablet},
		Frequency: domain.FreqQOD,
	})

	events := Expand(plan, day(t), 7)
	require.Len(t, events, 4, "offsets 0, 2, 4, 6")

	start := events[0].At
	for i, e := range events {
		assert.Equal(t, start.AddDate(0, 0, i*2), e.At)
	}
}

func TestExpandPRNWithoutTimes(t *testing.T) {
	plan := testPlan(domain.DosageInstruction{
		Dose:      domain.Dose{Amount: 1, Unit: domain.UnitTablet},
		Frequency: domain.FreqPRN,
		PRN:       true,
	})

	assert.Empty(t, Expand(plan, day(t), 14), "as-needed plans produce no reminders")
}

func TestExpandPRNWithExplicitTimes(t *testing.T) {
	plan := testPlan(domain.DosageInstruction{
		Dose:       domain.Dose{Amount: 1, Unit: domain.UnitTablet},
		Frequency:  domain.FreqPRN,
		TimesOfDay: []string{"10:00"},
		PRN:        true,
	})

	events := Expand(plan, day(t), 2)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Nil(t, e.WindowMins, "PRN events must not be notifiable")
		assert.False(t, e.Notifiable())
	}
}

func TestExpandExplicitTimesOverrideDefaults(t *testing.T) {
	plan := testPlan(domain.DosageInstruction{
		Dose:       domain.Dose{Amount: 2, Unit: domain.UnitTablet},
		Frequency:  domain.FreqBID,
		TimesOfDay: []string{"21:30", "07:15", "21:30"},
	})

	events := Expand(plan, day(t), 1)
	require.Len(t, events, 2, "duplicates collapse")
	assert.Equal(t, "07:15", events[0].At.Format("15:04"))
	assert.Equal(t, "21:30", events[1].At.Format("15:04"))
	assert.Equal(t, "2 tabs", events[0].Dose)
}

func TestExpandDefaultTimes(t *testing.T) {
	tests := []struct {
		freq  domain.Frequency
		hours []int
	}{
		{domain.FreqQD, []int{9}},
		{domain.FreqBID, []int{8, 20}},
		{domain.FreqTID, []int{8, 14, 20}},
		{domain.FreqQID, []int{6, 12, 18, 22}},
		{domain.FreqQAM, []int{8}},
		{domain.FreqQPM, []int{20}},
	}

	for _, tt := range tests {
		plan := testPlan(domain.DosageInstruction{
			Dose:      domain.Dose{Amount: 1, Unit: domain.UnitTablet},
			Frequency: tt.freq,
		})
		events := Expand(plan, day(t), 1)
		require.Len(t, events, len(tt.hours), string(tt.freq))
		for i, e := range events {
			assert.Equal(t, tt.hours[i], e.At.Hour(), string(tt.freq))
		}
	}
}

func TestExpandQHSDefaultTime(t *testing.T) {
	plan := testPlan(domain.DosageInstruction{
		Dose:      domain.Dose{Amount: 1, Unit: domain.UnitTablet},
		Frequency: domain.FreqQHS,
	})

	events := Expand(plan, day(t), 1)
	require.Len(t, events, 1)
	assert.Equal(t, "22:30", events[0].At.Format("15:04"))
}

// re-expansion with the same inputs must reproduce the same events, ids
// included: idempotent rescheduling depends on it
func TestExpandDeterministic(t *testing.T) {
	days := 7
	plan := testPlan(domain.DosageInstruction{
		Dose:         domain.Dose{Amount: 1, Unit: domain.UnitTablet},
		Frequency:    domain.FreqTID,
		DurationDays: &days,
	})

	start := day(t)
	assert.Equal(t, Expand(plan, start, 14), Expand(plan, start, 14))
}

func TestExpandMultipleInstructions(t *testing.T) {
	plan := testPlan(
		domain.DosageInstruction{
			Dose:      domain.Dose{Amount: 1, Unit: domain.UnitTablet},
			Frequency: domain.FreqQAM,
		},
		domain.DosageInstruction{
			Dose:      domain.Dose{Amount: 2, Unit: domain.UnitTablet},
			Frequency: domain.FreqQPM,
		},
	)

	events := Expand(plan, day(t), 1)
	require.Len(t, events, 2)
	assert.Equal(t, "med-0a1b2c3d-i0-d0-0800", events[0].ID)
	assert.Equal(t, "med-0a1b2c3d-i1-d0-2000", events[1].ID)
	assert.Equal(t, "1 tab", events[0].Dose)
	assert.Equal(t, "2 tabs", events[1].Dose)
}

func TestExpandStartsAtMidnightOfStartDay(t *testing.T) {
	plan := testPlan(domain.DosageInstruction{
		Dose:      domain.Dose{Amount: 1, Unit: domain.UnitTablet},
		Frequency: domain.FreqQD,
	})

	start := day(t) // 11:45, after the 09:00 default slot
	events := Expand(plan, start, 1)
	require.Len(t, events, 1)
	assert.Equal(t, start.Year(), events[0].At.Year())
	assert.Equal(t, start.Day(), events[0].At.Day())
	assert.Equal(t, 9, events[0].At.Hour(), "the day-0 slot is emitted even when already past")
}
