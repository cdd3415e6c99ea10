package bot

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"pillbot/internal/domain"
)

// API Response types
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type PlanResponse struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Strength     *string               `json:"strength,omitempty"`
	Route        *string               `json:"route,omitempty"`
	Instructions []InstructionResponse `json:"instructions"`
	Notes        string                `json:"notes,omitempty"`
	CreatedAt    string                `json:"created_at"`
}

type InstructionResponse struct {
	DoseAmount   float64  `json:"dose_amount"`
	DoseUnit     string   `json:"dose_unit"`
	DoseLabel    string   `json:"dose_label"`
	Frequency    string   `json:"frequency"`
	TimesOfDay   []string `json:"times_of_day,omitempty"`
	When         []string `json:"when,omitempty"`
	DurationDays *int     `json:"duration_days,omitempty"`
	PRN          bool     `json:"prn"`
}

type EventResponse struct {
	ID         string  `json:"id"`
	PlanID     string  `json:"plan_id"`
	At         string  `json:"at"`
	WindowMins *int    `json:"window_mins,omitempty"`
	Dose       string  `json:"dose"`
	Status     string  `json:"status"`
	SentAt     *string `json:"sent_at,omitempty"`
}

// SetupAPI registers API routes with Basic Auth. This is the review surface:
// an external UI can correct parsed plans before or after scheduling.
func (b *Bot) SetupAPI() {
	if b.cfg.APIUsername == "" || b.cfg.APIPassword == "" {
		return // API disabled if no credentials
	}

	http.HandleFunc("/api/parse", b.basicAuth(b.apiParse))
	http.HandleFunc("/api/plans", b.basicAuth(b.apiPlans))
	http.HandleFunc("/api/plan/", b.basicAuth(b.apiPlan))
	http.HandleFunc("/api/events/today", b.basicAuth(b.apiEventsToday))
	http.HandleFunc("/api/event/", b.basicAuth(b.apiEvent))
}

// basicAuth middleware
func (b *Bot) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != b.cfg.APIUsername || password != b.cfg.APIPassword {
			w.Header().Set("WWW-Authenticate", `Basic realm="PillBot API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (b *Bot) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func (b *Bot) jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

// ownerUserID resolves the internal id of the bot owner
func (b *Bot) ownerUserID() int64 {
	user, _ := b.storage.GetUserByTelegramID(b.cfg.OwnerTelegramID)
	if user != nil {
		return user.ID
	}
	return b.cfg.OwnerTelegramID // Fallback
}

// POST /api/parse - parse prescription text without saving
func (b *Bot) apiParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.jsonError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	b.jsonResponse(w, b.plansToResponse(b.planService.Parse(req.Text)))
}

// GET /api/plans - list plans
// POST /api/plans - parse text, save plans and schedule reminders
func (b *Bot) apiPlans(w http.ResponseWriter, r *http.Request) {
	userID := b.ownerUserID()

	switch r.Method {
	case http.MethodGet:
		plans, err := b.planService.List(userID)
		if err != nil {
			b.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		b.jsonResponse(w, b.plansToResponse(plans))

	case http.MethodPost:
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			b.jsonError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		plans, err := b.planService.SaveParsed(userID, req.Text)
		if err != nil {
			b.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for _, p := range plans {
			if err := b.scheduleService.Reschedule(p); err != nil {
				b.jsonError(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		b.jsonResponse(w, b.plansToResponse(plans))

	default:
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /api/plan/{id} - plan details
// PATCH /api/plan/{id} - update name/notes
// DELETE /api/plan/{id} - delete plan and its events
// GET /api/plan/{id}/events - plan events
func (b *Bot) apiPlan(w http.ResponseWriter, r *http.Request) {
	userID := b.ownerUserID()

	path := strings.TrimPrefix(r.URL.Path, "/api/plan/")
	planID := path
	wantEvents := false
	if strings.HasSuffix(path, "/events") {
		planID = strings.TrimSuffix(path, "/events")
		wantEvents = true
	}

	plan, err := b.planService.Get(planID)
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if plan == nil || plan.UserID != userID {
		b.jsonError(w, "Plan not found", http.StatusNotFound)
		return
	}

	if wantEvents {
		if r.Method != http.MethodGet {
			b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		events, err := b.scheduleService.PlanEvents(planID)
		if err != nil {
			b.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		b.jsonResponse(w, b.eventsToResponse(events))
		return
	}

	switch r.Method {
	case http.MethodGet:
		b.jsonResponse(w, b.planToResponse(plan))

	case http.MethodPatch:
		var req struct {
			Name  *string `json:"name"`
			Notes *string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			b.jsonError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if req.Name != nil {
			if err := b.planService.Rename(planID, userID, *req.Name); err != nil {
				b.jsonError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if req.Notes != nil {
			if err := b.planService.UpdateNotes(planID, userID, *req.Notes); err != nil {
				b.jsonError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		b.jsonResponse(w, map[string]string{"id": planID})

	case http.MethodDelete:
		if err := b.planService.Delete(planID, userID); err != nil {
			b.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		b.jsonResponse(w, map[string]string{"deleted": planID})

	default:
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /api/events/today - today's intake events
func (b *Bot) apiEventsToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	events, err := b.scheduleService.TodayEvents(b.ownerUserID())
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	b.jsonResponse(w, b.eventsToResponse(events))
}

// POST /api/event/{id}/status - set event status {"status": "taken"|"missed"}
func (b *Bot) apiEvent(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/event/")
	if !strings.HasSuffix(path, "/status") || r.Method != http.MethodPost {
		b.jsonError(w, "Not found", http.StatusNotFound)
		return
	}
	eventID := strings.TrimSuffix(path, "/status")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.jsonError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	var err error
	switch domain.EventStatus(req.Status) {
	case domain.StatusTaken:
		err = b.scheduleService.MarkTaken(eventID)
	case domain.StatusMissed:
		err = b.scheduleService.MarkMissed(eventID)
	default:
		b.jsonError(w, "Invalid status", http.StatusBadRequest)
		return
	}
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	b.jsonResponse(w, map[string]string{"id": eventID, "status": req.Status})
}

func (b *Bot) planToResponse(p *domain.MedicationPlan) PlanResponse {
	resp := PlanResponse{
		ID:        p.ID,
		Name:      p.Name,
		Strength:  p.Strength,
		Notes:     p.Notes,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
	if p.Route != nil {
		r := string(*p.Route)
		resp.Route = &r
	}
	for _, ins := range p.Instructions {
		ir := InstructionResponse{
			DoseAmount:   ins.Dose.Amount,
			DoseUnit:     string(ins.Dose.Unit),
			DoseLabel:    ins.Dose.Label(),
			Frequency:    string(ins.Frequency),
			TimesOfDay:   ins.TimesOfDay,
			DurationDays: ins.DurationDays,
			PRN:          ins.PRN,
		}
		for _, h := range ins.When {
			ir.When = append(ir.When, string(h))
		}
		resp.Instructions = append(resp.Instructions, ir)
	}
	return resp
}

func (b *Bot) plansToResponse(plans []*domain.MedicationPlan) []PlanResponse {
	resp := make([]PlanResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, b.planToResponse(p))
	}
	return resp
}

func (b *Bot) eventsToResponse(events []*domain.ScheduleEvent) []EventResponse {
	resp := make([]EventResponse, 0, len(events))
	for _, e := range events {
		er := EventResponse{
			ID:         e.ID,
			PlanID:     e.MedPlanID,
			At:         e.At.Format(time.RFC3339),
			WindowMins: e.WindowMins,
			Dose:       e.Dose,
			Status:     string(e.Status),
		}
		if e.SentAt != nil {
			s := e.SentAt.Format(time.RFC3339)
			er.SentAt = &s
		}
		resp = append(resp, er)
	}
	return resp
}
