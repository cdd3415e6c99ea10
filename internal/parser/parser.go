// Package parser converts freeform bilingual (English/Russian) prescription
// text into structured medication plans. It is a best-effort, regex-driven
// extractor: ambiguous input degrades to conservative defaults and never to
// an error.
package parser

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"pillbot/internal/domain"
)

// Parse splits raw prescription text into per-medication blocks and extracts
// one plan per block. Empty or whitespace-only input yields an empty slice.
// Identical text always yields structurally identical plans with identical ids.
func Parse(text string) []*domain.MedicationPlan {
	var plans []*domain.MedicationPlan
	for _, block := range splitBlocks(text) {
		if plan := parseBlock(block, len(plans)); plan != nil {
			plans = append(plans, plan)
		}
	}
	return plans
}

// splitBlocks groups the non-empty lines of the text into per-medication
// blocks. Blank lines (runs collapsed) separate blocks; within a paragraph a
// line opens a new block only when it both mentions a strength (mg/ml in
// either script) and starts with a letter after any bullet — so a
// continuation like "1 tab 3 times a day" never splits, while
// "Melatonin 3 mg — 1 tab" does even without a blank line before it.
func splitBlocks(text string) [][]string {
	var blocks [][]string
	var cur []string

	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, cur)
			cur = nil
		}
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			flush()
			continue
		}
		if len(cur) > 0 && startsNewBlock(line) {
			flush()
		}
		cur = append(cur, line)
	}
	flush()
	return blocks
}

func startsNewBlock(line string) bool {
	stripped := bulletRe.ReplaceAllString(line, "")
	r, _ := utf8.DecodeRuneInString(stripped)
	if !unicode.IsLetter(r) {
		return false
	}
	if strengthRe.MatchString(line) {
		return true
	}
	lower := strings.ToLower(line)
	for _, sub := range []string{"mg", "ml", "мг", "мл"} {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

func parseBlock(lines []string, ordinal int) *domain.MedicationPlan {
	text := strings.TrimSpace(strings.Join(lines, " "))
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	name := extractName(lines[0])
	strength, doseText := extractStrength(text)
	freq := extractFrequency(lower)

	ins := domain.DosageInstruction{
		// the strength fragment is cut out before dose matching, otherwise
		// "Amoxicillin 500 mg" would shadow the actual "1 tab" dose
		Dose:         extractDose(doseText),
		Frequency:    freq,
		TimesOfDay:   extractTimes(text),
		When:         extractWhen(lower),
		DurationDays: extractDuration(lower),
		PRN:          freq == domain.FreqPRN,
	}

	return &domain.MedicationPlan{
		ID:           domain.PlanID(name, ordinal),
		Name:         name,
		Strength:     strength,
		Route:        extractRoute(lower),
		Instructions: []domain.DosageInstruction{ins},
		SourceText:   strings.Join(lines, "\n"),
	}
}

// extractName cleans the block header into a medication name: bullet and
// numbering stripped, a leading instructional clause before a colon dropped
// when the tail itself looks like a medication mention ("At night: Melatonin
// 3 mg"). With a strength present the name is whatever precedes it
// ("Amoxicillin 500 mg 1 tab tid" -> "Amoxicillin"); otherwise any trailing
// dash clause and known instructional keywords are removed.
func extractName(header string) string {
	h := bulletRe.ReplaceAllString(header, "")

	if idx := strings.Index(h, ":"); idx >= 0 {
		after := strings.TrimSpace(h[idx+1:])
		if looksLikeMedication(after) {
			h = after
		}
	}

	base := h
	if loc := strengthRe.FindStringIndex(h); loc != nil {
		if prefix := cleanupName(h[:loc[0]]); prefix != "" {
			base = prefix
		} else {
			// the header starts with the strength, keep the tail
			base = strengthRe.ReplaceAllString(h, " ")
		}
	}
	base = trailingClauseRe.ReplaceAllString(base, "")

	name := nameNoiseRe.ReplaceAllString(base, " ")
	name = cleanupName(name)
	if name == "" {
		// keyword stripping ate everything, fall back to the raw header
		name = cleanupName(base)
	}
	if name == "" {
		name = cleanupName(h)
	}
	return name
}

func cleanupName(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.Trim(s, " \t-–—:;,.")
}

func looksLikeMedication(s string) bool {
	return strengthRe.MatchString(s) || wordNumberRe.MatchString(s)
}

// extractStrength returns the normalized "<number> <unit>" strength, if any,
// plus the block text with the matched fragment removed.
func extractStrength(text string) (*string, string) {
	loc := strengthRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, text
	}
	number := strings.Replace(text[loc[2]:loc[3]], ",", ".", 1)
	unit := normalizeStrengthUnit(text[loc[4]:loc[5]])
	strength := number + " " + unit
	return &strength, text[:loc[0]] + " " + text[loc[1]:]
}

func normalizeStrengthUnit(u string) string {
	switch strings.ToLower(u) {
	case "мг", "mg":
		return "mg"
	default:
		return "ml"
	}
}

// extractDose finds the first "<number> <unit-word>" phrase whose word is a
// known dose unit. A block with no dose phrase defaults to one tablet.
func extractDose(text string) domain.Dose {
	for _, m := range numberWordRe.FindAllStringSubmatch(text, -1) {
		unit, ok := lookupDoseUnit(m[2])
		if !ok {
			continue
		}
		amount, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err != nil || amount <= 0 {
			continue
		}
		return domain.Dose{Amount: amount, Unit: unit}
	}
	return domain.Dose{Amount: 1, Unit: domain.UnitTablet}
}

func lookupDoseUnit(word string) (domain.DoseUnit, bool) {
	for _, p := range doseUnitLexicon {
		if p.re.MatchString(word) {
			return p.unit, true
		}
	}
	return "", false
}

func extractFrequency(lower string) domain.Frequency {
	// "as needed" wins over any concurrent numeric frequency: a stronger
	// clinical signal than a generic count
	if prnRe.MatchString(lower) {
		return domain.FreqPRN
	}
	for _, p := range frequencyTable {
		if p.re.MatchString(lower) {
			return p.freq
		}
	}
	for _, p := range looseFrequencyTable {
		if p.re.MatchString(lower) {
			return p.freq
		}
	}
	return domain.FreqQD
}

func extractRoute(lower string) *domain.Route {
	for _, p := range routeTable {
		if p.re.MatchString(lower) {
			r := p.route
			return &r
		}
	}
	return nil
}

// extractTimes collects every explicit HH:MM or HH.MM clock time,
// deduplicated and sorted.
func extractTimes(text string) []string {
	seen := make(map[string]bool)
	var times []string
	for _, m := range clockTimeRe.FindAllStringSubmatch(text, -1) {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			continue
		}
		t := pad2(hour) + ":" + pad2(minute)
		if !seen[t] {
			seen[t] = true
			times = append(times, t)
		}
	}
	sort.Strings(times)
	return times
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func extractWhen(lower string) []domain.WhenHint {
	var hints []domain.WhenHint
	for _, p := range whenTable {
		if p.re.MatchString(lower) {
			hints = append(hints, p.hint)
		}
	}
	return hints
}

func extractDuration(lower string) *int {
	m := durationRe.FindStringSubmatch(lower)
	if m == nil {
		return nil
	}
	days, err := strconv.Atoi(m[1])
	if err != nil || days <= 0 {
		return nil
	}
	return &days
}
