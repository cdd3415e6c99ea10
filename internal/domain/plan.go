package domain

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"
)

// Frequency is a canonical dosing frequency in clinical shorthand
type Frequency string

const (
	FreqQD  Frequency = "QD"  // once daily
	FreqBID Frequency = "BID" // twice daily
	FreqTID Frequency = "TID" // three times daily
	FreqQID Frequency = "QID" // four times daily
	FreqQHS Frequency = "QHS" // at bedtime
	FreqQAM Frequency = "QAM" // in the morning
	FreqQPM Frequency = "QPM" // in the evening
	FreqQOD Frequency = "QOD" // every other day
	FreqPRN Frequency = "PRN" // as needed
)

// Route is an administration route
type Route string

const (
	RouteOral          Route = "oral"
	RouteIntramuscular Route = "intramuscular"
	RouteIntravenous   Route = "intravenous"
	RouteInhaled       Route = "inhaled"
	RouteSublingual    Route = "sublingual"
	RouteTopical       Route = "topical"
	RouteNasal         Route = "nasal"
	RouteOphthalmic    Route = "ophthalmic"
)

// DoseUnit is a canonical dose unit
type DoseUnit string

const (
	UnitMg      DoseUnit = "mg"
	UnitMl      DoseUnit = "ml"
	UnitTablet  DoseUnit = "tablet"
	UnitCapsule DoseUnit = "capsule"
	UnitDrop    DoseUnit = "drop"
	UnitSpray   DoseUnit = "spray"
)

// WhenHint is a timing context hint (informational, does not move the clock times)
type WhenHint string

const (
	WhenBeforeMeal WhenHint = "before_meal"
	WhenAfterMeal  WhenHint = "after_meal"
	WhenMorning    WhenHint = "morning"
	WhenMidday     WhenHint = "midday"
	WhenEvening    WhenHint = "evening"
	WhenNight      WhenHint = "night"
)

type Dose struct {
	Amount float64  `json:"amount"`
	Unit   DoseUnit `json:"unit"`
}

// Label renders the dose for reminder messages, e.g. "2 tabs", "1 cap", "5 ml"
func (d Dose) Label() string {
	amount := strconv.FormatFloat(d.Amount, 'f', -1, 64)
	return amount + " " + d.unitWord()
}

func (d Dose) unitWord() string {
	plural := d.Amount != 1
	switch d.Unit {
	case UnitTablet:
		if plural {
			return "tabs"
		}
		return "tab"
	case UnitCapsule:
		if plural {
			return "caps"
		}
		return "cap"
	case UnitDrop:
		if plural {
			return "drops"
		}
		return "drop"
	case UnitSpray:
		if plural {
			return "sprays"
		}
		return "spray"
	default:
		// mg and ml have no plural form
		return string(d.Unit)
	}
}

// DosageInstruction is a single dosing rule within a plan
type DosageInstruction struct {
	Dose         Dose       `json:"dose"`
	Frequency    Frequency  `json:"frequency"`
	TimesOfDay   []string   `json:"times_of_day,omitempty"` // "HH:MM", sorted, deduplicated
	When         []WhenHint `json:"when,omitempty"`
	DurationDays *int       `json:"duration_days,omitempty"` // nil = full horizon
	PRN          bool       `json:"prn"`
}

// MedicationPlan is one prescribed medication extracted from prescription text
type MedicationPlan struct {
	ID           string
	UserID       int64
	Name         string
	Strength     *string // "<number> <mg|ml>"
	Route        *Route
	Instructions []DosageInstruction
	Notes        string
	SourceText   string
	CreatedAt    time.Time
}

// PlanID derives a stable plan id from the medication name and its ordinal
// position in the source text. Same text always yields the same ids.
func PlanID(name string, ordinal int) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s#%d", name, ordinal)
	return fmt.Sprintf("med-%08x", h.Sum32())
}

// InstructionsJSON returns instructions as JSON string for storage
func (p *MedicationPlan) InstructionsJSON() string {
	data, _ := json.Marshal(p.Instructions)
	return string(data)
}

// ParseInstructionsJSON parses instructions from JSON string
func (p *MedicationPlan) ParseInstructionsJSON(data string) error {
	if data == "" {
		p.Instructions = []DosageInstruction{}
		return nil
	}
	return json.Unmarshal([]byte(data), &p.Instructions)
}

// Summary returns a one-line description, e.g. "Amoxicillin 500 mg — 1 tab TID"
func (p *MedicationPlan) Summary() string {
	s := p.Name
	if p.Strength != nil {
		s += " " + *p.Strength
	}
	if len(p.Instructions) > 0 {
		ins := p.Instructions[0]
		s += fmt.Sprintf(" — %s %s", ins.Dose.Label(), ins.Frequency)
	}
	return s
}
