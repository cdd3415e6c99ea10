package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pillbot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id INTEGER UNIQUE NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'patient',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS med_plans (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			strength TEXT,
			route TEXT,
			instructions TEXT NOT NULL DEFAULT '[]',
			notes TEXT DEFAULT '',
			source_text TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE TABLE IF NOT EXISTS schedule_events (
			id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL,
			at DATETIME NOT NULL,
			window_mins INTEGER,
			dose TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'scheduled',
			sent_at DATETIME,
			snoozed_until DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (plan_id) REFERENCES med_plans(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_med_plans_user_id ON med_plans(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_schedule_events_plan_id ON schedule_events(plan_id)`,
		`CREATE INDEX IF NOT EXISTS idx_schedule_events_at ON schedule_events(at)`,
		`CREATE INDEX IF NOT EXISTS idx_schedule_events_status ON schedule_events(status)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// === Users ===

func (s *Storage) CreateUser(u *domain.User) error {
	res, err := s.db.Exec(
		`INSERT INTO users (telegram_id, name, role) VALUES (?, ?, ?)`,
		u.TelegramID, u.Name, u.Role,
	)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	u.ID = id
	u.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetUserByTelegramID(telegramID int64) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRow(
		`SELECT id, telegram_id, name, role, created_at FROM users WHERE telegram_id = ?`,
		telegramID,
	).Scan(&u.ID, &u.TelegramID, &u.Name, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Storage) GetUserByID(id int64) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRow(
		`SELECT id, telegram_id, name, role, created_at FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.TelegramID, &u.Name, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *Storage) ListUsers() ([]*domain.User, error) {
	rows, err := s.db.Query(`SELECT id, telegram_id, name, role, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u := &domain.User{}
		if err := rows.Scan(&u.ID, &u.TelegramID, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// === Medication plans ===

// SavePlan inserts or replaces a plan. Plan ids are content-derived, so
// re-parsing the same text overwrites the same rows.
func (s *Storage) SavePlan(p *domain.MedicationPlan) error {
	_, err := s.db.Exec(
		`INSERT INTO med_plans (id, user_id, name, strength, route, instructions, notes, source_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, strength = excluded.strength, route = excluded.route,
			instructions = excluded.instructions, notes = excluded.notes, source_text = excluded.source_text`,
		p.ID, p.UserID, p.Name, p.Strength, routeString(p.Route), p.InstructionsJSON(), p.Notes, p.SourceText,
	)
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	return nil
}

func routeString(r *domain.Route) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}

func (s *Storage) GetPlan(id string) (*domain.MedicationPlan, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, name, strength, route, instructions, notes, source_text, created_at
		 FROM med_plans WHERE id = ?`,
		id,
	)
	p, err := scanPlan(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *Storage) ListPlansByUser(userID int64) ([]*domain.MedicationPlan, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, strength, route, instructions, notes, source_text, created_at
		 FROM med_plans WHERE user_id = ? ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*domain.MedicationPlan
	for rows.Next() {
		p, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func scanPlan(scan func(...interface{}) error) (*domain.MedicationPlan, error) {
	p := &domain.MedicationPlan{}
	var route *string
	var instructions string
	if err := scan(&p.ID, &p.UserID, &p.Name, &p.Strength, &route, &instructions, &p.Notes, &p.SourceText, &p.CreatedAt); err != nil {
		return nil, err
	}
	if route != nil {
		r := domain.Route(*route)
		p.Route = &r
	}
	if err := p.ParseInstructionsJSON(instructions); err != nil {
		return nil, fmt.Errorf("parse instructions: %w", err)
	}
	return p, nil
}

func (s *Storage) UpdatePlanNotes(id, notes string) error {
	_, err := s.db.Exec(`UPDATE med_plans SET notes = ? WHERE id = ?`, notes, id)
	return err
}

func (s *Storage) UpdatePlanName(id, name string) error {
	_, err := s.db.Exec(`UPDATE med_plans SET name = ? WHERE id = ?`, name, id)
	return err
}

func (s *Storage) UpdatePlanInstructions(p *domain.MedicationPlan) error {
	_, err := s.db.Exec(`UPDATE med_plans SET instructions = ? WHERE id = ?`, p.InstructionsJSON(), p.ID)
	return err
}

func (s *Storage) DeletePlan(id string) error {
	if _, err := s.db.Exec(`DELETE FROM schedule_events WHERE plan_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM med_plans WHERE id = ?`, id)
	return err
}

// === Schedule events ===

const eventColumns = `id, plan_id, at, window_mins, dose, status, sent_at, snoozed_until`

func scanEvent(scan func(...interface{}) error) (*domain.ScheduleEvent, error) {
	e := &domain.ScheduleEvent{}
	err := scan(&e.ID, &e.MedPlanID, &e.At, &e.WindowMins, &e.Dose, &e.Status, &e.SentAt, &e.SnoozedUntil)
	return e, err
}

// ReplaceEvents refreshes the pending events of a plan inside a transaction.
// Unsent scheduled rows are dropped and re-inserted; taken, missed and
// snoozed rows survive, and INSERT OR IGNORE leaves them alone because
// re-expansion reproduces the same deterministic ids.
func (s *Storage) ReplaceEvents(planID string, events []domain.ScheduleEvent) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM schedule_events WHERE plan_id = ? AND status = ? AND sent_at IS NULL`,
		planID, domain.StatusScheduled,
	); err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO schedule_events (id, plan_id, at, window_mins, dose, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.ID, e.MedPlanID, e.At, e.WindowMins, e.Dose, e.Status); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Storage) GetEvent(id string) (*domain.ScheduleEvent, error) {
	e, err := scanEvent(s.db.QueryRow(
		`SELECT `+eventColumns+` FROM schedule_events WHERE id = ?`, id,
	).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *Storage) ListEventsByPlan(planID string) ([]*domain.ScheduleEvent, error) {
	return s.queryEvents(
		`SELECT `+eventColumns+` FROM schedule_events WHERE plan_id = ? ORDER BY at, id`,
		planID,
	)
}

// ListEventsForRange returns a user's events in [from, to) ordered by time
func (s *Storage) ListEventsForRange(userID int64, from, to time.Time) ([]*domain.ScheduleEvent, error) {
	return s.queryEvents(
		`SELECT e.id, e.plan_id, e.at, e.window_mins, e.dose, e.status, e.sent_at, e.snoozed_until
		 FROM schedule_events e
		 JOIN med_plans p ON p.id = e.plan_id
		 WHERE p.user_id = ? AND e.at >= ? AND e.at < ?
		 ORDER BY e.at, e.id`,
		userID, from, to,
	)
}

// ListDueEvents returns events whose reminder should fire now: notifiable
// (window set — PRN events never reach the notifier), unsent, and either
// scheduled with at <= now or snoozed past their snooze time.
func (s *Storage) ListDueEvents(now time.Time) ([]*domain.ScheduleEvent, error) {
	return s.queryEvents(
		`SELECT `+eventColumns+` FROM schedule_events
		 WHERE window_mins IS NOT NULL
		   AND ((status = ? AND sent_at IS NULL AND at <= ?)
		     OR (status = ? AND snoozed_until IS NOT NULL AND snoozed_until <= ?))
		 ORDER BY at, id`,
		domain.StatusScheduled, now, domain.StatusSnoozed, now,
	)
}

func (s *Storage) queryEvents(query string, args ...interface{}) ([]*domain.ScheduleEvent, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.ScheduleEvent
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Storage) MarkEventSent(id string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE schedule_events SET sent_at = ?, status = ?, snoozed_until = NULL WHERE id = ?`,
		at, domain.StatusScheduled, id,
	)
	return err
}

func (s *Storage) UpdateEventStatus(id string, status domain.EventStatus) error {
	_, err := s.db.Exec(`UPDATE schedule_events SET status = ?, snoozed_until = NULL WHERE id = ?`, status, id)
	return err
}

func (s *Storage) SnoozeEvent(id string, until time.Time) error {
	_, err := s.db.Exec(
		`UPDATE schedule_events SET status = ?, snoozed_until = ? WHERE id = ?`,
		domain.StatusSnoozed, until, id,
	)
	return err
}

// MarkMissedBefore flips sent but unanswered events to missed once their
// reminder window has fully passed. Returns the number of events flipped.
func (s *Storage) MarkMissedBefore(now time.Time) (int64, error) {
	res, err := s.db.Exec(
		`UPDATE schedule_events SET status = ?, snoozed_until = NULL
		 WHERE status IN (?, ?)
		   AND window_mins IS NOT NULL
		   AND sent_at IS NOT NULL
		   AND datetime(at, '+' || window_mins || ' minutes') < datetime(?)`,
		domain.StatusMissed, domain.StatusScheduled, domain.StatusSnoozed, now,
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
