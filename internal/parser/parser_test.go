package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pillbot/internal/domain"
)

func TestParsePrescriptionEnglish(t *testing.T) {
	text := `Amoxicillin 500 mg
Take 1 tablet 3 times a day after meals for 7 days

At night: Melatonin 3 mg - 1 tab`

	plans := Parse(text)
	require.Len(t, plans, 2)

	amox := plans[0]
	assert.Equal(t, "Amoxicillin", amox.Name)
	require.NotNil(t, amox.Strength)
	assert.Equal(t, "500 mg", *amox.Strength)
	require.Len(t, amox.Instructions, 1)

	ins := amox.Instructions[0]
	assert.Equal(t, domain.FreqTID, ins.Frequency)
	assert.Equal(t, domain.Dose{Amount: 1, Unit: domain.UnitTablet}, ins.Dose)
	require.NotNil(t, ins.DurationDays)
	assert.Equal(t, 7, *ins.DurationDays)
	assert.Contains(t, ins.When, domain.WhenAfterMeal)
	assert.False(t, ins.PRN)

	mel := plans[1]
	assert.Equal(t, "Melatonin", mel.Name)
	require.NotNil(t, mel.Strength)
	assert.Equal(t, "3 mg", *mel.Strength)
	require.Len(t, mel.Instructions, 1)
	assert.Equal(t, domain.FreqQHS, mel.Instructions[0].Frequency)
	assert.Equal(t, domain.Dose{Amount: 1, Unit: domain.UnitTablet}, mel.Instructions[0].Dose)
	assert.Nil(t, mel.Instructions[0].DurationDays)
}

// a compact OCR-style prescription: no blank lines, dash clause, colon header
func TestParseCompactPrescription(t *testing.T) {
	text := `Amoxicillin 500 mg
1 tab 3 times a day 7 days after meals
At night: Melatonin 3 mg — 1 tab`

	plans := Parse(text)
	require.Len(t, plans, 2)

	amox := plans[0]
	assert.Equal(t, "Amoxicillin", amox.Name)
	assert.Equal(t, "500 mg", *amox.Strength)
	assert.Equal(t, domain.FreqTID, amox.Instructions[0].Frequency)
	assert.Equal(t, domain.Dose{Amount: 1, Unit: domain.UnitTablet}, amox.Instructions[0].Dose)
	require.NotNil(t, amox.Instructions[0].DurationDays)
	assert.Equal(t, 7, *amox.Instructions[0].DurationDays)
	assert.Contains(t, amox.Instructions[0].When, domain.WhenAfterMeal)

	mel := plans[1]
	assert.Equal(t, "Melatonin", mel.Name)
	assert.Equal(t, "3 mg", *mel.Strength)
	assert.Equal(t, domain.FreqQHS, mel.Instructions[0].Frequency)
	assert.Equal(t, domain.Dose{Amount: 1, Unit: domain.UnitTablet}, mel.Instructions[0].Dose)
}

func TestParsePrescriptionRussian(t *testing.T) {
	text := `Амоксициллин 500 мг
Принимать по 1 таб 3 раза в день после еды, 7 дней

На ночь: Мелатонин 3 мг — 1 таб`

	plans := Parse(text)
	require.Len(t, plans, 2)

	amox := plans[0]
	assert.Equal(t, "Амоксициллин", amox.Name)
	require.NotNil(t, amox.Strength)
	assert.Equal(t, "500 mg", *amox.Strength)

	ins := amox.Instructions[0]
	assert.Equal(t, domain.FreqTID, ins.Frequency)
	assert.Equal(t, domain.Dose{Amount: 1, Unit: domain.UnitTablet}, ins.Dose)
	require.NotNil(t, ins.DurationDays)
	assert.Equal(t, 7, *ins.DurationDays)
	assert.Contains(t, ins.When, domain.WhenAfterMeal)

	mel := plans[1]
	assert.Equal(t, "Мелатонин", mel.Name)
	assert.Equal(t, domain.FreqQHS, mel.Instructions[0].Frequency)
	assert.Equal(t, domain.Dose{Amount: 1, Unit: domain.UnitTablet}, mel.Instructions[0].Dose)
}

// Russian and English phrasings of the same prescription must canonicalize to
// the same frequency, dose, duration and meal hint.
func TestParseBilingualEquivalence(t *testing.T) {
	en := Parse("Amoxicillin 500 mg\nTake 1 tablet 3 times a day after meals for 7 days")
	ru := Parse("Амоксициллин 500 мг\nПринимать по 1 таб 3 раза в день после еды, 7 дней")

	require.Len(t, en, 1)
	require.Len(t, ru, 1)
	assert.Equal(t, en[0].Instructions, ru[0].Instructions)
	assert.Equal(t, *en[0].Strength, *ru[0].Strength)
}

func TestParsePRNOverridesNumericFrequency(t *testing.T) {
	plans := Parse("Ibuprofen 400 mg 1 tab up to 3 times a day as needed")

	require.Len(t, plans, 1)
	assert.Equal(t, "Ibuprofen", plans[0].Name)
	assert.Equal(t, domain.FreqPRN, plans[0].Instructions[0].Frequency)
	assert.True(t, plans[0].Instructions[0].PRN)
}

func TestParsePRNRussian(t *testing.T) {
	plans := Parse("Ибупрофен 400 мг при необходимости")

	require.Len(t, plans, 1)
	assert.Equal(t, domain.FreqPRN, plans[0].Instructions[0].Frequency)
	assert.True(t, plans[0].Instructions[0].PRN)
}

func TestParseDefaults(t *testing.T) {
	plans := Parse("Vitamin D")

	require.Len(t, plans, 1)
	p := plans[0]
	assert.Equal(t, "Vitamin D", p.Name)
	assert.Nil(t, p.Strength)
	assert.Nil(t, p.Route)

	ins := p.Instructions[0]
	assert.Equal(t, domain.FreqQD, ins.Frequency)
	assert.Equal(t, domain.Dose{Amount: 1, Unit: domain.UnitTablet}, ins.Dose)
	assert.Empty(t, ins.TimesOfDay)
	assert.Nil(t, ins.DurationDays)
	assert.False(t, ins.PRN)
}

func TestParseExplicitTimes(t *testing.T) {
	plans := Parse("Metformin 850 mg\n1 tab at 08:00 and 20:00")

	require.Len(t, plans, 1)
	assert.Equal(t, []string{"08:00", "20:00"}, plans[0].Instructions[0].TimesOfDay)
}

func TestParseDotSeparatedTimes(t *testing.T) {
	plans := Parse("Мелатонин 3 мг в 22.30")

	require.Len(t, plans, 1)
	assert.Equal(t, []string{"22:30"}, plans[0].Instructions[0].TimesOfDay)
}

func TestParseDosePhrases(t *testing.T) {
	tests := []struct {
		text string
		want domain.Dose
	}{
		{"Paracetamol 500 mg 2 tabs twice daily", domain.Dose{Amount: 2, Unit: domain.UnitTablet}},
		{"Omeprazole 20 mg 1 capsule in the morning", domain.Dose{Amount: 1, Unit: domain.UnitCapsule}},
		{"Левомицетин — по 2 капли в глаз 3 раза в день", domain.Dose{Amount: 2, Unit: domain.UnitDrop}},
		{"Sea water spray — 2 sprays in each nostril", domain.Dose{Amount: 2, Unit: domain.UnitSpray}},
		{"Paracetamol syrup 120 mg, give 5 ml at night", domain.Dose{Amount: 5, Unit: domain.UnitMl}},
	}

	for _, tt := range tests {
		plans := Parse(tt.text)
		require.Len(t, plans, 1, tt.text)
		assert.Equal(t, tt.want, plans[0].Instructions[0].Dose, tt.text)
	}
}

// the strength fragment must not be mistaken for the dose
func TestParseStrengthDoesNotShadowDose(t *testing.T) {
	plans := Parse("Amoxicillin 500 mg 2 tablets twice a day")

	require.Len(t, plans, 1)
	assert.Equal(t, "500 mg", *plans[0].Strength)
	assert.Equal(t, domain.Dose{Amount: 2, Unit: domain.UnitTablet}, plans[0].Instructions[0].Dose)
}

func TestParseDecimalStrengthComma(t *testing.T) {
	plans := Parse("Арипипразол 2,5 мг утром")

	require.Len(t, plans, 1)
	p := plans[0]
	assert.Equal(t, "Арипипразол", p.Name)
	require.NotNil(t, p.Strength)
	assert.Equal(t, "2.5 mg", *p.Strength)
	assert.Equal(t, domain.FreqQAM, p.Instructions[0].Frequency)
	assert.Contains(t, p.Instructions[0].When, domain.WhenMorning)
}

func TestParseRoutes(t *testing.T) {
	tests := []struct {
		text string
		want domain.Route
	}{
		{"Nitroglycerin 0,5 mg sublingual as needed", domain.RouteSublingual},
		{"Левомицетин — по 2 капли в глаз 3 раза в день", domain.RouteOphthalmic},
		{"Цефтриаксон 1000 мг внутримышечно 1 раз в день", domain.RouteIntramuscular},
		{"Budesonide inhaled twice daily", domain.RouteInhaled},
	}

	for _, tt := range tests {
		plans := Parse(tt.text)
		require.Len(t, plans, 1, tt.text)
		require.NotNil(t, plans[0].Route, tt.text)
		assert.Equal(t, tt.want, *plans[0].Route, tt.text)
	}
}

func TestParseFrequencies(t *testing.T) {
	tests := []struct {
		text string
		want domain.Frequency
	}{
		{"Drug A 10 mg once a day", domain.FreqQD},
		{"Drug B 10 mg twice daily", domain.FreqBID},
		{"Drug C 10 mg 4 times a day", domain.FreqQID},
		{"Drug D 10 mg every other day", domain.FreqQOD},
		{"Drug E 10 mg at bedtime", domain.FreqQHS},
		{"Drug F 10 mg in the evening", domain.FreqQPM},
		{"Препарат 10 мг через день", domain.FreqQOD},
		{"Препарат 10 мг дважды в день", domain.FreqBID},
		{"Препарат 10 мг ежедневно", domain.FreqQD},
	}

	for _, tt := range tests {
		plans := Parse(tt.text)
		require.Len(t, plans, 1, tt.text)
		assert.Equal(t, tt.want, plans[0].Instructions[0].Frequency, tt.text)
	}
}

func TestParseSplitsBlocksWithoutBlankLine(t *testing.T) {
	plans := Parse("Amoxicillin 500 mg 1 tab tid\nMelatonin 3 mg 1 tab at bedtime")

	require.Len(t, plans, 2)
	assert.Equal(t, "Amoxicillin", plans[0].Name)
	assert.Equal(t, "Melatonin", plans[1].Name)
	assert.NotEqual(t, plans[0].ID, plans[1].ID)
}

func TestParseBulletedList(t *testing.T) {
	text := `1) Amoxicillin 500 mg 1 tab tid
2) Melatonin 3 mg 1 tab at night`

	plans := Parse(text)
	require.Len(t, plans, 2)
	assert.Equal(t, "Amoxicillin", plans[0].Name)
	assert.Equal(t, "Melatonin", plans[1].Name)
}

func TestParseEmptyInput(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("  \n\n\t "))
}

// same text, same plans, same ids — parsing must be deterministic so that
// re-submitting a prescription overwrites rather than duplicates
func TestParseDeterministic(t *testing.T) {
	text := "Amoxicillin 500 mg 1 tab tid for 7 days\n\nMelatonin 3 mg at night"

	first := Parse(text)
	second := Parse(text)

	require.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Regexp(t, `^med-[0-9a-f]{8}$`, first[0].ID)
}

func TestParseSourceTextPreserved(t *testing.T) {
	text := "Amoxicillin 500 mg\nTake 1 tablet 3 times a day"

	plans := Parse(text)
	require.Len(t, plans, 1)
	assert.Equal(t, text, plans[0].SourceText)
}
