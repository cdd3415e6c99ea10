package parser

import (
	"regexp"

	"pillbot/internal/domain"
)

// The parser is table-driven: every extraction walks an ordered list of
// (pattern, canonical value) pairs with first-match-wins semantics, so
// bilingual coverage can be extended without touching control flow.
// Go's \w and \b are ASCII-only, so Cyrillic alternatives use explicit
// [а-яё] classes and plain substring alternatives instead of word anchors.

var (
	// "500 mg", "2,5мл", "3 мг"
	strengthRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(mg|мг|ml|мл)`)

	// leading bullets and numbering: "- ", "• ", "1) ", "2. "
	bulletRe = regexp.MustCompile(`^\s*(?:[-*•‣·]+|\d+[.)])\s*`)

	// "08:00", "22.30"
	clockTimeRe = regexp.MustCompile(`(\d{1,2})[:.](\d{2})`)

	// "7 days", "10 сут", "5 дней"
	durationRe = regexp.MustCompile(`(?i)(\d+)\s*(?:days?|сут[а-яё]*|дн(?:ей|я)?)`)

	// "<number> <word>" candidate for dose matching
	numberWordRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*([A-Za-zА-Яа-яЁё]+)`)

	// "<word> <number>" — a line fragment that looks like a medication mention
	wordNumberRe = regexp.MustCompile(`\p{L}{2,}\s+\d`)

	// trailing dash-delimited clause: " — 1 tab", " - принимать утром"
	trailingClauseRe = regexp.MustCompile(`\s+[—–-]\s.*$`)

	// instructional keywords stripped out of medication names
	nameNoiseRe = regexp.MustCompile(`(?i)\btake\b|принимать|принять|at night|на ночь|по утрам|утром|вечером|ночью`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// prnRe is checked before the frequency table: an explicit "as needed" phrase
// always forces PRN, even when a numeric frequency is present in the same text.
var prnRe = regexp.MustCompile(`(?i)as needed|prn|по требованию|по необходимости|при необходимости`)

type freqPattern struct {
	re   *regexp.Regexp
	freq domain.Frequency
}

// frequencyTable is ordered so that the more specific numeric patterns are
// tried before the generic daily ones ("3 times a day" must not fall through
// to QD via "a day").
var frequencyTable = []freqPattern{
	{regexp.MustCompile(`(?i)\bqid\b|4\s*(?:times|x|раза)|four times|четыре раза`), domain.FreqQID},
	{regexp.MustCompile(`(?i)\btid\b|3\s*(?:times|x|раза)|three times|три раза|трижды`), domain.FreqTID},
	{regexp.MustCompile(`(?i)\bbid\b|2\s*(?:times|x|раза)|twice|two times|два раза|дважды`), domain.FreqBID},
	{regexp.MustCompile(`(?i)\bqod\b|every other day|через день`), domain.FreqQOD},
	{regexp.MustCompile(`(?i)\bqhs\b|at night|at bedtime|before bed|на ночь|перед сном|ночью`), domain.FreqQHS},
	{regexp.MustCompile(`(?i)\bqam\b|in the morning|every morning|утром|каждое утро|по утрам`), domain.FreqQAM},
	{regexp.MustCompile(`(?i)\bqpm\b|in the evening|every evening|вечером|каждый вечер`), domain.FreqQPM},
	{regexp.MustCompile(`(?i)\bqd\b|once daily|once a day|1\s*(?:time|раз)|раз в день|ежедневно|каждый день|daily`), domain.FreqQD},
}

// looseFrequencyTable is the fallback pass over bare count words
var looseFrequencyTable = []freqPattern{
	{regexp.MustCompile(`(?i)three|три|трижды`), domain.FreqTID},
	{regexp.MustCompile(`(?i)twice|два|две|дважды`), domain.FreqBID},
	{regexp.MustCompile(`(?i)once|один|раз`), domain.FreqQD},
}

type routePattern struct {
	re    *regexp.Regexp
	route domain.Route
}

var routeTable = []routePattern{
	{regexp.MustCompile(`(?i)\boral|by mouth|перорально|внутрь`), domain.RouteOral},
	{regexp.MustCompile(`(?i)intramuscular|внутримышечно|в/м|\bim\b`), domain.RouteIntramuscular},
	{regexp.MustCompile(`(?i)intravenous|внутривенно|в/в|\biv\b`), domain.RouteIntravenous},
	{regexp.MustCompile(`(?i)inhal|ингаляц`), domain.RouteInhaled},
	{regexp.MustCompile(`(?i)sublingual|под язык|сублингваль`), domain.RouteSublingual},
	{regexp.MustCompile(`(?i)topical|наружно|местно`), domain.RouteTopical},
	{regexp.MustCompile(`(?i)nasal|в нос|назальн|интраназаль`), domain.RouteNasal},
	{regexp.MustCompile(`(?i)ophthalm|в глаз|глазн|офтальм`), domain.RouteOphthalmic},
}

type unitPattern struct {
	re   *regexp.Regexp
	unit domain.DoseUnit
}

// doseUnitLexicon maps surface forms of dose units to the canonical units.
// Anchored patterns are matched against the word following a number.
// "капс" must be tried before the bare "кап" of drops.
var doseUnitLexicon = []unitPattern{
	{regexp.MustCompile(`(?i)^(?:tablets?|tabs?|таб[а-яё]*)$`), domain.UnitTablet},
	{regexp.MustCompile(`(?i)^(?:capsules?|caps?|капс[а-яё]*)$`), domain.UnitCapsule},
	{regexp.MustCompile(`(?i)^(?:drops?|кап[а-яё]*)$`), domain.UnitDrop},
	{regexp.MustCompile(`(?i)^(?:sprays?|спре[а-яё]*|впрыск[а-яё]*)$`), domain.UnitSpray},
	{regexp.MustCompile(`(?i)^(?:ml|мл)$`), domain.UnitMl},
	{regexp.MustCompile(`(?i)^(?:mg|мг)$`), domain.UnitMg},
}

type whenPattern struct {
	re   *regexp.Regexp
	hint domain.WhenHint
}

// whenTable is scanned in full: a block may carry several hints at once
var whenTable = []whenPattern{
	{regexp.MustCompile(`(?i)before (?:a )?meals?|до еды|перед едой|натощак|on an? empty stomach`), domain.WhenBeforeMeal},
	{regexp.MustCompile(`(?i)after (?:a )?meals?|после еды`), domain.WhenAfterMeal},
	{regexp.MustCompile(`(?i)morning|утром|по утрам`), domain.WhenMorning},
	{regexp.MustCompile(`(?i)midday|noon|в обед|в полдень|дн[её]м`), domain.WhenMidday},
	{regexp.MustCompile(`(?i)evening|вечер`), domain.WhenEvening},
	{regexp.MustCompile(`(?i)night|ночь|перед сном`), domain.WhenNight},
}
