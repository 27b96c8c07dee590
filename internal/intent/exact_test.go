package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spaceplan/internal/program"
)

func entryRatio(name string, ratio float64) program.IntentEntry {
	return program.IntentEntry{Name: name, Ratio: ratio, HasRatio: true}
}

func entryFixed(name string, area float64, count int) program.IntentEntry {
	return program.IntentEntry{Name: name, FixedArea: area, HasFixedArea: true, Count: count}
}

func entryEqual(name string) program.IntentEntry {
	return program.IntentEntry{Name: name}
}

func sumTotals(results []Computed) float64 {
	var sum float64
	for _, r := range results {
		sum += r.TotalArea()
	}
	return sum
}

func TestCalculateExactAreas_RatiosSumExactly(t *testing.T) {
	entries := []program.IntentEntry{
		entryRatio("Rooms", 0.6),
		entryRatio("Lobby", 0.25),
		entryRatio("Back of house", 0.15),
	}
	results, adj := CalculateExactAreas(entries, 10000)

	require.Len(t, results, 3)
	assert.InDelta(t, 10000, sumTotals(results), 1e-9)
	assert.Equal(t, float64(0), adj.ExplicitSum)
	assert.Equal(t, float64(10000), adj.Remaining)
}

func TestCalculateExactAreas_ExplicitTakenOffTheTop(t *testing.T) {
	entries := []program.IntentEntry{
		entryFixed("Auditorium", 1200, 1),
		entryRatio("Foyer", 0.5),
		entryRatio("Offices", 0.5),
	}
	results, adj := CalculateExactAreas(entries, 5000)

	assert.Equal(t, float64(1200), adj.ExplicitSum)
	assert.Equal(t, float64(3800), adj.Remaining)
	assert.InDelta(t, 5000, sumTotals(results), 1e-9)
	assert.Equal(t, float64(1200), results[0].TotalArea())
}

func TestCalculateExactAreas_PercentStyleRatios(t *testing.T) {
	// Ratios above 1 are percentages: 70 and 30 behave like 0.7/0.3.
	a, _ := CalculateExactAreas([]program.IntentEntry{
		entryRatio("A", 70),
		entryRatio("B", 30),
	}, 1000)
	b, _ := CalculateExactAreas([]program.IntentEntry{
		entryRatio("A", 0.7),
		entryRatio("B", 0.3),
	}, 1000)

	require.Len(t, a, 2)
	assert.Equal(t, b[0].AreaPerUnit, a[0].AreaPerUnit)
	assert.Equal(t, b[1].AreaPerUnit, a[1].AreaPerUnit)
}

func TestCalculateExactAreas_MissingRatioIsEqualShare(t *testing.T) {
	results, _ := CalculateExactAreas([]program.IntentEntry{
		entryEqual("A"), entryEqual("B"), entryEqual("C"), entryEqual("D"),
	}, 2000)

	require.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, float64(500), r.TotalArea())
	}
}

func TestCalculateExactAreas_MultiUnitRounding(t *testing.T) {
	// 120 rooms sharing 3350 m² rounds per unit, then the residual lands
	// on a count==1 entry so the sum still hits the target exactly.
	entries := []program.IntentEntry{
		{Name: "Rooms", Ratio: 0.67, HasRatio: true, Count: 120},
		entryRatio("Lobby", 0.33),
	}
	results, adj := CalculateExactAreas(entries, 5000)

	assert.InDelta(t, 5000, sumTotals(results), 1e-9)
	assert.Equal(t, "Lobby", adj.ResidualAppliedTo)
	assert.Equal(t, results[0].AreaPerUnit, float64(int(results[0].AreaPerUnit)),
		"multi-unit per-unit area stays whole")
}

func TestCalculateExactAreas_ResidualPrefersLargestSingle(t *testing.T) {
	entries := []program.IntentEntry{
		{Name: "Rooms", Ratio: 0.5, HasRatio: true, Count: 7},
		entryRatio("Small hall", 0.2),
		entryRatio("Big hall", 0.3),
	}
	results, adj := CalculateExactAreas(entries, 3333)

	assert.InDelta(t, 3333, sumTotals(results), 1e-9)
	if adj.ResidualDelta != 0 {
		assert.Equal(t, "Big hall", adj.ResidualAppliedTo)
	}
	_ = results
}

func TestCalculateExactAreas_ResidualFallbackToFirstEntry(t *testing.T) {
	// No count==1 entry exists; entry 0 absorbs the residual spread over
	// its units and the sum stays exact.
	entries := []program.IntentEntry{
		{Name: "Rooms", Ratio: 0.6, HasRatio: true, Count: 7},
		{Name: "Suites", Ratio: 0.4, HasRatio: true, Count: 3},
	}
	results, adj := CalculateExactAreas(entries, 1000)

	assert.InDelta(t, 1000, sumTotals(results), 1e-9)
	if adj.ResidualDelta != 0 {
		assert.Equal(t, "Rooms", adj.ResidualAppliedTo)
	}
}

func TestCalculateExactAreas_GlobalRescaleOnDrift(t *testing.T) {
	// 30 cells share only 10 m², so each gets floored to 1 m² and the
	// first pass overshoots by 20%; the corrective rescale plus the
	// residual correction still land on the target.
	entries := []program.IntentEntry{
		{Name: "Cells", Ratio: 0.1, HasRatio: true, Count: 30},
		entryRatio("Hall", 0.9),
	}
	results, adj := CalculateExactAreas(entries, 100)

	assert.NotEqual(t, float64(1), adj.RescaleFactor)
	assert.InDelta(t, 100, sumTotals(results), 1e-9)
}

func TestCalculateExactAreas_OverclaimedExplicit(t *testing.T) {
	// Fixed entries exceed the target: remaining goes negative, ratio
	// entries get the 1 m² floor, and the caller sees the deficit.
	entries := []program.IntentEntry{
		entryFixed("Vault", 1500, 1),
		entryRatio("Lobby", 1.0),
	}
	_, adj := CalculateExactAreas(entries, 1000)

	assert.Equal(t, float64(1500), adj.ExplicitSum)
	assert.Equal(t, float64(-500), adj.Remaining)
}

func TestCalculateExactAreas_PerUnitFloor(t *testing.T) {
	results, _ := CalculateExactAreas([]program.IntentEntry{
		{Name: "Closets", Ratio: 0.01, HasRatio: true, Count: 50},
		entryRatio("Hall", 0.99),
	}, 500)

	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].AreaPerUnit, float64(1))
}

func TestCalculateExactAreas_EmptyEntries(t *testing.T) {
	results, adj := CalculateExactAreas(nil, 1000)
	assert.Nil(t, results)
	assert.Equal(t, float64(1), adj.RescaleFactor)
}

func TestCalculateExactAreas_ExactnessProperty(t *testing.T) {
	// Exactness holds across a spread of targets and entry mixes.
	cases := []struct {
		name    string
		entries []program.IntentEntry
		target  float64
	}{
		{"two ratios", []program.IntentEntry{entryRatio("A", 0.3), entryRatio("B", 0.7)}, 777},
		{"mixed", []program.IntentEntry{entryFixed("F", 333, 1), entryRatio("R", 1)}, 1001},
		{"equal shares odd", []program.IntentEntry{entryEqual("A"), entryEqual("B"), entryEqual("C")}, 1000},
		{"counts", []program.IntentEntry{{Name: "U", Ratio: 0.9, HasRatio: true, Count: 13}, entryRatio("S", 0.1)}, 8642},
		{"large", []program.IntentEntry{entryRatio("A", 0.61), entryRatio("B", 0.39)}, 123456},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results, _ := CalculateExactAreas(tc.entries, tc.target)
			assert.InDelta(t, tc.target, sumTotals(results), 1e-9)
			for _, r := range results {
				assert.GreaterOrEqual(t, r.AreaPerUnit, float64(1))
			}
		})
	}
}
