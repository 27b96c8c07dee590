package brief

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const structuredBrief = `Space Program:
Lobby	450 m2
Guest rooms	3400 m2
Restaurant	600 m2
Back of house	800 m2
Total	5250 m2`

const dirtyEmailBrief = `From: client@example.com
Subject: hotel project

Hi,

we need roughly 3400 m2 of rooms and a lobby of maybe 450 m2.
Restaurant should be around 600 m2.

Best regards
Anna`

func TestAnalyze_TooShortIsGarbage(t *testing.T) {
	c := Analyze("ok")
	assert.Equal(t, CategoryGarbage, c.Category)
	assert.Equal(t, 0.95, c.Confidence)
	assert.Equal(t, StrategyReject, c.Strategy)
}

func TestAnalyze_ImperativeIsPrompt(t *testing.T) {
	c := Analyze("create a hotel program with 120 rooms")
	assert.Equal(t, CategoryPrompt, c.Category)
	assert.Equal(t, 0.90, c.Confidence)
	assert.Equal(t, StrategyRedirectToAgent, c.Strategy)
}

func TestAnalyze_PoliteImperativeIsPrompt(t *testing.T) {
	c := Analyze("please create a school program for 500 students")
	assert.Equal(t, CategoryPrompt, c.Category)
	assert.Equal(t, StrategyRedirectToAgent, c.Strategy)
}

func TestAnalyze_StructuredTable(t *testing.T) {
	c := Analyze(structuredBrief)
	assert.Equal(t, CategoryStructured, c.Category)
	assert.Equal(t, 0.85, c.Confidence)
	assert.Equal(t, StrategyExtractStrict, c.Strategy)
	assert.Equal(t, QualityHigh, c.Quality)
}

func TestAnalyze_DirtyEmail(t *testing.T) {
	c := Analyze(dirtyEmailBrief)
	assert.Equal(t, CategoryDirty, c.Category)
	assert.Equal(t, StrategyExtractTolerant, c.Strategy)
	assert.NotEmpty(t, c.Warnings, "email noise is flagged")
}

func TestAnalyze_NoisyGarbage(t *testing.T) {
	c := Analyze("@@@@ ~~~~ ####### !!!! &&&& ???? %%%% ^^^^ ((((")
	assert.Equal(t, CategoryGarbage, c.Category)
	assert.Equal(t, StrategyReject, c.Strategy)
}

func TestExtractSignals(t *testing.T) {
	sig := ExtractSignals(structuredBrief)
	assert.GreaterOrEqual(t, sig.TableLines, 3)
	assert.GreaterOrEqual(t, sig.AreaTokens, 4)
	assert.True(t, sig.HasTotals)
	assert.Equal(t, UnitMetric, sig.Unit)
	assert.False(t, sig.ImperativeVerb)
}

func TestExtractSignals_ImperialAndMixed(t *testing.T) {
	imp := ExtractSignals("lobby 5000 sq ft\nrooms 20000 sqft\nspa 3000 sq ft")
	assert.Equal(t, UnitImperial, imp.Unit)

	mixed := ExtractSignals("lobby 450 m2\nrooms 20000 sqft")
	assert.Equal(t, UnitMixed, mixed.Unit)
}

func TestExtractSignals_EmailMarkers(t *testing.T) {
	sig := ExtractSignals(dirtyEmailBrief)
	assert.Greater(t, sig.EmailMarkers, 0)
}

func TestPreprocess_StripsEmailNoise(t *testing.T) {
	out := Preprocess(dirtyEmailBrief)
	assert.NotContains(t, out, "From:")
	assert.NotContains(t, out, "Subject:")
	assert.NotContains(t, out, "Best regards")
	assert.Contains(t, out, "3400 m2")
}

func TestPreprocess_ConvertsImperial(t *testing.T) {
	out := Preprocess("the lobby should be 1000 sq ft")
	assert.Contains(t, out, "93 m²", "1000 sq ft is about 93 m²")
	assert.NotContains(t, strings.ToLower(out), "sq ft")
}

func TestPreprocess_CollapsesWhitespace(t *testing.T) {
	out := Preprocess("a      b\n\n\n\nc")
	assert.NotContains(t, out, "   ", "space runs collapse")
	require.NotContains(t, out, "\n\n\n", "blank runs collapse")
}

func TestAnalyze_PreprocessedCarriesCleanText(t *testing.T) {
	c := Analyze(dirtyEmailBrief)
	assert.NotContains(t, c.Preprocessed, "From:")
}
