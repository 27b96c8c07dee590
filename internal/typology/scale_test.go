package typology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeScale_NoTypologyAccepts(t *testing.T) {
	a := AnalyzeScale(123456, nil)
	assert.Equal(t, SeverityOK, a.Severity)
	assert.False(t, a.NeedsClarification)
}

func TestAnalyzeScale_InRange(t *testing.T) {
	hotel := Match("hotel")
	require.NotNil(t, hotel)

	a := AnalyzeScale(12000, hotel)
	assert.Equal(t, SeverityOK, a.Severity)
	assert.Equal(t, 0.9, a.Confidence)
	assert.Empty(t, a.Alternatives)
}

func TestAnalyzeScale_UnderMinimum(t *testing.T) {
	hotel := Match("hotel")
	a := AnalyzeScale(800, hotel)
	assert.Equal(t, SeverityWarning, a.Severity)
	assert.Equal(t, 0.5, a.Confidence)
	assert.False(t, a.NeedsClarification)
	assert.Empty(t, a.Alternatives, "under-minimum gets no alternatives")
}

func TestAnalyzeScale_BigExampleTolerance(t *testing.T) {
	hotel := Match("hotel")
	// 2x over max: tolerated as a large example.
	a := AnalyzeScale(100000, hotel)
	assert.Equal(t, SeverityInfo, a.Severity)
	assert.Equal(t, 0.6, a.Confidence)
}

func TestAnalyzeScale_MildOverage(t *testing.T) {
	hotel := Match("hotel")
	// 5x over max.
	a := AnalyzeScale(250000, hotel)
	assert.Equal(t, SeverityWarning, a.Severity)
	assert.Equal(t, 0.6, a.Confidence)
	assert.False(t, a.NeedsClarification)
}

func TestAnalyzeScale_StrongOverageWarnsWithAlternatives(t *testing.T) {
	hotel := Match("hotel")
	// 20x over max.
	a := AnalyzeScale(1000000, hotel)
	assert.Equal(t, SeverityWarning, a.Severity)
	assert.Equal(t, 0.4, a.Confidence)
	assert.NotEmpty(t, a.Alternatives)
}

func TestAnalyzeScale_HundredfoldIsError(t *testing.T) {
	hotel := Match("hotel")
	// Exactly 100x over max triggers the magnitude-error path.
	a := AnalyzeScale(5000000, hotel)
	assert.Equal(t, SeverityError, a.Severity)
	assert.Equal(t, 0.2, a.Confidence)
	assert.True(t, a.NeedsClarification)
	require.NotEmpty(t, a.Alternatives)
}

func TestGenerateScaleClarification_Ranking(t *testing.T) {
	hotel := Match("hotel")
	alts := GenerateScaleClarification(5000000, hotel)

	require.GreaterOrEqual(t, len(alts), 3)
	assert.Equal(t, AlternativeMagnitude, alts[0].Kind, "magnitude corrections first")
	assert.Equal(t, AlternativeKeep, alts[len(alts)-1].Kind, "keep-as-specified always last")

	var hasMasterplan bool
	for _, alt := range alts {
		if alt.Kind == AlternativeMasterplan {
			hasMasterplan = true
			assert.Equal(t, "masterplan", alt.Typology)
		}
		if alt.Kind == AlternativeMagnitude {
			assert.GreaterOrEqual(t, alt.SuggestedArea, hotel.Min)
			assert.LessOrEqual(t, alt.SuggestedArea, hotel.Max)
		}
	}
	assert.True(t, hasMasterplan, "5,000,000 m² is masterplan-sized")
}

func TestGenerateScaleClarification_MasterplanItselfGetsNoMasterplanAlt(t *testing.T) {
	mp := Match("masterplan")
	require.NotNil(t, mp)
	for _, alt := range GenerateScaleClarification(600000000, mp) {
		assert.NotEqual(t, AlternativeMasterplan, alt.Kind)
	}
}
