package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pillbot/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Storage) *domain.User {
	t.Helper()
	u := &domain.User{TelegramID: 100500, Name: "Вася", Role: domain.RolePatient}
	require.NoError(t, s.CreateUser(u))
	return u
}

func savedTestPlan(t *testing.T, s *Storage, userID int64) *domain.MedicationPlan {
	t.Helper()
	strength := "500 mg"
	days := 7
	p := &domain.MedicationPlan{
		ID:       domain.PlanID("Amoxicillin", 0),
		UserID:   userID,
		Name:     "Amoxicillin",
		Strength: &strength,
		Instructions: []domain.DosageInstruction{
			{
				Dose:         domain.Dose{Amount: 1, Unit: domain.UnitTablet},
				Frequency:    domain.FreqTID,
				When:         []domain.WhenHint{domain.WhenAfterMeal},
				DurationDays: &days,
			},
		},
		SourceText: "Amoxicillin 500 mg 1 tab tid for 7 days",
	}
	require.NoError(t, s.SavePlan(p))
	return p
}

func TestUserRoundtrip(t *testing.T) {
	s := newTestStorage(t)

	u := createTestUser(t, s)
	assert.NotZero(t, u.ID)

	got, err := s.GetUserByTelegramID(100500)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Вася", got.Name)
	assert.Equal(t, domain.RolePatient, got.Role)

	missing, err := s.GetUserByTelegramID(42)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPlanRoundtrip(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s)
	p := savedTestPlan(t, s, u.ID)

	got, err := s.GetPlan(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.UserID, got.UserID)
	require.NotNil(t, got.Strength)
	assert.Equal(t, "500 mg", *got.Strength)
	assert.Equal(t, p.Instructions, got.Instructions)
	assert.Equal(t, p.SourceText, got.SourceText)

	missing, err := s.GetPlan("med-ffffffff")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// saving a plan with the same id must overwrite, not duplicate: parsing is
// deterministic, so re-submitted prescriptions map to the same rows
func TestSavePlanUpsert(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s)
	p := savedTestPlan(t, s, u.ID)

	p.Name = "Amoxicillin forte"
	require.NoError(t, s.SavePlan(p))

	plans, err := s.ListPlansByUser(u.ID)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Amoxicillin forte", plans[0].Name)
}

func TestUpdatePlanNotes(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s)
	p := savedTestPlan(t, s, u.ID)

	require.NoError(t, s.UpdatePlanNotes(p.ID, "тошнота в первый день"))

	got, err := s.GetPlan(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "тошнота в первый день", got.Notes)
}

func testEvents(planID string, at time.Time, n int) []domain.ScheduleEvent {
	w := 30
	events := make([]domain.ScheduleEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, domain.ScheduleEvent{
			ID:         domain.EventID(planID, 0, i, "09:00"),
			MedPlanID:  planID,
			At:         at.AddDate(0, 0, i),
			WindowMins: &w,
			Dose:       "1 tab",
			Status:     domain.StatusScheduled,
		})
	}
	return events
}

func TestReplaceEventsPreservesHistory(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s)
	p := savedTestPlan(t, s, u.ID)

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	events := testEvents(p.ID, at, 3)
	require.NoError(t, s.ReplaceEvents(p.ID, events))

	// the first intake is answered
	require.NoError(t, s.UpdateEventStatus(events[0].ID, domain.StatusTaken))

	// nightly roll re-expands the same plan
	require.NoError(t, s.ReplaceEvents(p.ID, events))

	got, err := s.GetEvent(events[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusTaken, got.Status, "re-expansion must not reset answered intakes")

	all, err := s.ListEventsByPlan(p.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListDueEvents(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s)
	p := savedTestPlan(t, s, u.ID)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	w := 30
	due := domain.ScheduleEvent{
		ID: domain.EventID(p.ID, 0, 0, "09:00"), MedPlanID: p.ID,
		At: now.Add(-time.Hour), WindowMins: &w, Dose: "1 tab", Status: domain.StatusScheduled,
	}
	future := domain.ScheduleEvent{
		ID: domain.EventID(p.ID, 0, 0, "20:00"), MedPlanID: p.ID,
		At: now.Add(time.Hour), WindowMins: &w, Dose: "1 tab", Status: domain.StatusScheduled,
	}
	prn := domain.ScheduleEvent{
		ID: domain.EventID(p.ID, 1, 0, "10:00"), MedPlanID: p.ID,
		At: now.Add(-time.Hour), Dose: "1 tab", Status: domain.StatusScheduled,
	}
	require.NoError(t, s.ReplaceEvents(p.ID, []domain.ScheduleEvent{due, future, prn}))

	got, err := s.ListDueEvents(now)
	require.NoError(t, err)
	require.Len(t, got, 1, "future and windowless events are not due")
	assert.Equal(t, due.ID, got[0].ID)

	// sent events stop being due until snoozed
	require.NoError(t, s.MarkEventSent(due.ID, now))
	got, err = s.ListDueEvents(now)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.SnoozeEvent(due.ID, now.Add(-time.Minute)))
	got, err = s.ListDueEvents(now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.StatusSnoozed, got[0].Status)
}

func TestMarkMissedBefore(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s)
	p := savedTestPlan(t, s, u.ID)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	w := 30
	stale := domain.ScheduleEvent{
		ID: domain.EventID(p.ID, 0, 0, "09:00"), MedPlanID: p.ID,
		At: now.Add(-2 * time.Hour), WindowMins: &w, Dose: "1 tab", Status: domain.StatusScheduled,
	}
	fresh := domain.ScheduleEvent{
		ID: domain.EventID(p.ID, 0, 0, "11:50"), MedPlanID: p.ID,
		At: now.Add(-10 * time.Minute), WindowMins: &w, Dose: "1 tab", Status: domain.StatusScheduled,
	}
	require.NoError(t, s.ReplaceEvents(p.ID, []domain.ScheduleEvent{stale, fresh}))
	require.NoError(t, s.MarkEventSent(stale.ID, now.Add(-2*time.Hour)))
	require.NoError(t, s.MarkEventSent(fresh.ID, now.Add(-10*time.Minute)))

	n, err := s.MarkMissedBefore(now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.GetEvent(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusMissed, got.Status)

	got, err = s.GetEvent(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, got.Status, "still inside the reminder window")
}

func TestListEventsForRange(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s)
	p := savedTestPlan(t, s, u.ID)

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.ReplaceEvents(p.ID, testEvents(p.ID, at, 5)))

	got, err := s.ListEventsForRange(u.ID, at, at.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// a foreign user sees nothing
	got, err = s.ListEventsForRange(u.ID+1, at, at.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeletePlanRemovesEvents(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s)
	p := savedTestPlan(t, s, u.ID)

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.ReplaceEvents(p.ID, testEvents(p.ID, at, 3)))

	require.NoError(t, s.DeletePlan(p.ID))

	plan, err := s.GetPlan(p.ID)
	require.NoError(t, err)
	assert.Nil(t, plan)

	events, err := s.ListEventsByPlan(p.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}
