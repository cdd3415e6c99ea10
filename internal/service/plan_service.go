package service

import (
	"fmt"
	"strings"

	"pillbot/internal/domain"
	"pillbot/internal/parser"
	"pillbot/internal/storage"
)

type PlanService struct {
	storage *storage.Storage
}

func NewPlanService(s *storage.Storage) *PlanService {
	return &PlanService{storage: s}
}

// Parse extracts medication plans from raw prescription text without
// persisting anything. Used for the preview step before the user confirms.
func (s *PlanService) Parse(text string) []*domain.MedicationPlan {
	return parser.Parse(text)
}

// SaveParsed parses the text and persists the resulting plans for the user.
// Re-saving identical text overwrites the same plans (ids are content-derived).
func (s *PlanService) SaveParsed(userID int64, text string) ([]*domain.MedicationPlan, error) {
	plans := parser.Parse(text)
	for _, p := range plans {
		p.UserID = userID
		if err := s.storage.SavePlan(p); err != nil {
			return nil, fmt.Errorf("save plan %s: %w", p.Name, err)
		}
	}
	return plans, nil
}

func (s *PlanService) List(userID int64) ([]*domain.MedicationPlan, error) {
	return s.storage.ListPlansByUser(userID)
}

func (s *PlanService) Get(planID string) (*domain.MedicationPlan, error) {
	return s.storage.GetPlan(planID)
}

func (s *PlanService) Delete(planID string, userID int64) error {
	plan, err := s.storage.GetPlan(planID)
	if err != nil {
		return fmt.Errorf("get plan: %w", err)
	}
	if plan == nil {
		return fmt.Errorf("plan not found")
	}

	if plan.UserID != userID {
		return fmt.Errorf("access denied")
	}

	return s.storage.DeletePlan(planID)
}

// UpdateNotes stores a reviewer's free-text annotation; notes are never
// auto-populated by parsing.
func (s *PlanService) UpdateNotes(planID string, userID int64, notes string) error {
	plan, err := s.storage.GetPlan(planID)
	if err != nil {
		return fmt.Errorf("get plan: %w", err)
	}
	if plan == nil {
		return fmt.Errorf("plan not found")
	}
	if plan.UserID != userID {
		return fmt.Errorf("access denied")
	}

	return s.storage.UpdatePlanNotes(planID, strings.TrimSpace(notes))
}

func (s *PlanService) Rename(planID string, userID int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("medication name cannot be empty")
	}

	plan, err := s.storage.GetPlan(planID)
	if err != nil {
		return fmt.Errorf("get plan: %w", err)
	}
	if plan == nil {
		return fmt.Errorf("plan not found")
	}
	if plan.UserID != userID {
		return fmt.Errorf("access denied")
	}

	return s.storage.UpdatePlanName(planID, name)
}

func (s *PlanService) FormatPlan(p *domain.MedicationPlan) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💊 <b>%s</b>", p.Name))
	if p.Strength != nil {
		sb.WriteString(" " + *p.Strength)
	}
	sb.WriteString("\n")

	for _, ins := range p.Instructions {
		sb.WriteString(fmt.Sprintf("   %s %s", ins.Dose.Label(), frequencyLabel(ins.Frequency)))
		if len(ins.TimesOfDay) > 0 {
			sb.WriteString(" в " + strings.Join(ins.TimesOfDay, ", "))
		}
		if ins.DurationDays != nil {
			sb.WriteString(fmt.Sprintf(", %d дн.", *ins.DurationDays))
		}
		if len(ins.When) > 0 {
			sb.WriteString(" (" + whenLabels(ins.When) + ")")
		}
		sb.WriteString("\n")
	}

	if p.Route != nil {
		sb.WriteString("   " + routeLabel(*p.Route) + "\n")
	}
	if p.Notes != "" {
		sb.WriteString("   📝 " + p.Notes + "\n")
	}
	return sb.String()
}

func (s *PlanService) FormatPlanList(plans []*domain.MedicationPlan) string {
	if len(plans) == 0 {
		return "Нет сохранённых лекарств. Пришли текст рецепта — разберу."
	}

	var sb strings.Builder
	for _, p := range plans {
		sb.WriteString(s.FormatPlan(p))
		sb.WriteString("\n")
	}
	return sb.String()
}

func frequencyLabel(f domain.Frequency) string {
	labels := map[domain.Frequency]string{
		domain.FreqQD:  "1 раз в день",
		domain.FreqBID: "2 раза в день",
		domain.FreqTID: "3 раза в день",
		domain.FreqQID: "4 раза в день",
		domain.FreqQHS: "на ночь",
		domain.FreqQAM: "утром",
		domain.FreqQPM: "вечером",
		domain.FreqQOD: "через день",
		domain.FreqPRN: "по необходимости",
	}
	if l, ok := labels[f]; ok {
		return l
	}
	return string(f)
}

func whenLabels(hints []domain.WhenHint) string {
	labels := map[domain.WhenHint]string{
		domain.WhenBeforeMeal: "до еды",
		domain.WhenAfterMeal:  "после еды",
		domain.WhenMorning:    "утром",
		domain.WhenMidday:     "днём",
		domain.WhenEvening:    "вечером",
		domain.WhenNight:      "ночью",
	}
	var parts []string
	for _, h := range hints {
		if l, ok := labels[h]; ok {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, ", ")
}

func routeLabel(r domain.Route) string {
	labels := map[domain.Route]string{
		domain.RouteOral:          "внутрь",
		domain.RouteIntramuscular: "внутримышечно",
		domain.RouteIntravenous:   "внутривенно",
		domain.RouteInhaled:       "ингаляционно",
		domain.RouteSublingual:    "под язык",
		domain.RouteTopical:       "наружно",
		domain.RouteNasal:         "в нос",
		domain.RouteOphthalmic:    "в глаза",
	}
	if l, ok := labels[r]; ok {
		return l
	}
	return string(r)
}
