package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoseLabel(t *testing.T) {
	tests := []struct {
		dose Dose
		want string
	}{
		{Dose{Amount: 1, Unit: UnitTablet}, "1 tab"},
		{Dose{Amount: 2, Unit: UnitTablet}, "2 tabs"},
		{Dose{Amount: 0.5, Unit: UnitTablet}, "0.5 tabs"},
		{Dose{Amount: 1, Unit: UnitCapsule}, "1 cap"},
		{Dose{Amount: 3, Unit: UnitCapsule}, "3 caps"},
		{Dose{Amount: 2, Unit: UnitDrop}, "2 drops"},
		{Dose{Amount: 1, Unit: UnitSpray}, "1 spray"},
		{Dose{Amount: 5, Unit: UnitMl}, "5 ml"},
		{Dose{Amount: 200, Unit: UnitMg}, "200 mg"},
		{Dose{Amount: 2.5, Unit: UnitMl}, "2.5 ml"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.dose.Label())
	}
}

func TestPlanID(t *testing.T) {
	id := PlanID("Amoxicillin", 0)

	assert.Regexp(t, `^med-[0-9a-f]{8}$`, id)
	assert.Equal(t, id, PlanID("Amoxicillin", 0), "same inputs must give the same id")
	assert.NotEqual(t, id, PlanID("Amoxicillin", 1), "ordinal must distinguish duplicates")
	assert.NotEqual(t, id, PlanID("Melatonin", 0))
}

func TestEventID(t *testing.T) {
	id := EventID("med-0a1b2c3d", 0, 3, "08:00")

	assert.Equal(t, "med-0a1b2c3d-i0-d3-0800", id)
	assert.NotEqual(t, id, EventID("med-0a1b2c3d", 0, 3, "20:00"))
	assert.NotEqual(t, id, EventID("med-0a1b2c3d", 1, 3, "08:00"))
	assert.NotEqual(t, id, EventID("med-0a1b2c3d", 0, 4, "08:00"))
}

func TestInstructionsJSONRoundtrip(t *testing.T) {
	days := 7
	p := &MedicationPlan{
		Instructions: []DosageInstruction{
			{
				Dose:         Dose{Amount: 1, Unit: UnitTablet},
				Frequency:    FreqTID,
				When:         []WhenHint{WhenAfterMeal},
				DurationDays: &days,
			},
		},
	}

	restored := &MedicationPlan{}
	require.NoError(t, restored.ParseInstructionsJSON(p.InstructionsJSON()))
	assert.Equal(t, p.Instructions, restored.Instructions)
}

func TestEventPending(t *testing.T) {
	assert.True(t, (&ScheduleEvent{Status: StatusScheduled}).Pending())
	assert.True(t, (&ScheduleEvent{Status: StatusSnoozed}).Pending())
	assert.False(t, (&ScheduleEvent{Status: StatusTaken}).Pending())
	assert.False(t, (&ScheduleEvent{Status: StatusMissed}).Pending())
}

func TestSummary(t *testing.T) {
	strength := "500 mg"
	p := &MedicationPlan{
		Name:     "Amoxicillin",
		Strength: &strength,
		Instructions: []DosageInstruction{
			{Dose: Dose{Amount: 1, Unit: UnitTablet}, Frequency: FreqTID},
		},
	}

	assert.Equal(t, "Amoxicillin 500 mg — 1 tab TID", p.Summary())
}
