// Package intent validates oracle-produced intents and executes them into
// fully computed proposals with reproducible rounding.
//
// The allocation algorithm in CalculateExactAreas is the contract of this
// package: its step order is fixed and every correction it applies is
// recorded in Adjustments so a trace stays auditable. Changing the order
// changes outputs and breaks downstream acceptance tests.
package intent

import (
	"math"

	"spaceplan/internal/program"
)

// Computed is one fully resolved area line.
type Computed struct {
	Name        string
	AreaPerUnit float64
	Count       int
	Notes       string
	GroupName   string
}

// TotalArea returns AreaPerUnit * Count.
func (c Computed) TotalArea() float64 {
	return c.AreaPerUnit * float64(c.Count)
}

// Adjustments records every correction applied during allocation so the
// numbers remain explainable after the fact.
type Adjustments struct {
	// ExplicitSum is the total claimed by fixed-area entries.
	ExplicitSum float64

	// Remaining is targetTotal - ExplicitSum. Negative means the fixed
	// entries alone exceed the target; allocation proceeds with zero
	// remaining and the caller should surface a warning.
	Remaining float64

	// RescaleFactor is the global corrective factor from step 6, or 1
	// when the first pass landed within tolerance.
	RescaleFactor float64

	// ResidualDelta is the per-unit correction added in the final exact
	// pass, and ResidualAppliedTo names the entry that absorbed it.
	ResidualDelta     float64
	ResidualAppliedTo string
}

// rescaleTolerance is the relative deviation beyond which the global
// corrective rescale of step 6 kicks in.
const rescaleTolerance = 0.01

// CalculateExactAreas converts abstract entries (ratios, percentages,
// fixed totals) into exact per-unit areas summing to targetTotal.
//
// The order is fixed: explicit totals first, then normalized ratios over
// the remainder, then a global rescale if the rounded result drifted more
// than 1%, then a single-entry exact correction for the residual rounding
// error. Per-unit areas never drop below 1.
func CalculateExactAreas(entries []program.IntentEntry, targetTotal float64) ([]Computed, Adjustments) {
	adj := Adjustments{RescaleFactor: 1}
	if len(entries) == 0 {
		return nil, adj
	}

	// Step 1: sum explicit totals.
	for _, e := range entries {
		if e.HasFixedArea {
			adj.ExplicitSum += e.FixedArea
		}
	}

	// Step 2: remaining area for ratio-based entries. May be negative;
	// allocation clamps it to zero, the caller decides what to tell the
	// user.
	adj.Remaining = targetTotal - adj.ExplicitSum
	remaining := math.Max(0, adj.Remaining)

	// Step 3: normalize ratios to sum to 1. Ratios above 1 are read as
	// percentages; a missing ratio is an equal 1-share.
	ratios := make([]float64, len(entries))
	var ratioSum float64
	for i, e := range entries {
		if e.HasFixedArea {
			continue
		}
		r := e.Ratio
		if !e.HasRatio {
			r = 1
		} else if r > 1 {
			r = r / 100
		}
		ratios[i] = r
		ratioSum += r
	}
	if ratioSum > 0 {
		for i := range ratios {
			ratios[i] /= ratioSum
		}
	}

	// Steps 4-5: category totals, then rounded per-unit areas floored
	// at 1.
	results := make([]Computed, len(entries))
	for i, e := range entries {
		var catTotal float64
		if e.HasFixedArea {
			catTotal = e.FixedArea
		} else {
			catTotal = ratios[i] * remaining
		}
		count := e.EffectiveCount()
		results[i] = Computed{
			Name:        e.Name,
			AreaPerUnit: perUnit(catTotal, count),
			Count:       count,
			Notes:       e.Notes,
			GroupName:   e.GroupName,
		}
	}

	// Step 6: global corrective rescale when the rounded total drifted
	// more than 1% off target.
	achieved := total(results)
	if targetTotal > 0 && achieved > 0 && math.Abs(achieved-targetTotal)/targetTotal > rescaleTolerance {
		adj.RescaleFactor = targetTotal / achieved
		for i := range results {
			scaled := results[i].AreaPerUnit * float64(results[i].Count) * adj.RescaleFactor
			results[i].AreaPerUnit = perUnit(scaled, results[i].Count)
		}
	}

	// Step 7: assign the whole residual rounding error to the largest
	// count==1 entry, or entry 0 if none qualifies. Clamped so the
	// per-unit area stays >= 1.
	if targetTotal > 0 {
		residual := targetTotal - total(results)
		if residual != 0 {
			idx := residualTarget(results)
			delta := residual / float64(results[idx].Count)
			corrected := results[idx].AreaPerUnit + delta
			if corrected < 1 {
				corrected = 1
			}
			adj.ResidualDelta = corrected - results[idx].AreaPerUnit
			adj.ResidualAppliedTo = results[idx].Name
			results[idx].AreaPerUnit = corrected
		}
	}

	return results, adj
}

// perUnit rounds a category total down to a whole per-unit area, never
// below 1.
func perUnit(categoryTotal float64, count int) float64 {
	return math.Max(1, math.Round(categoryTotal/float64(count)))
}

func total(results []Computed) float64 {
	var sum float64
	for _, r := range results {
		sum += r.TotalArea()
	}
	return sum
}

// residualTarget picks the entry that absorbs the residual: the largest
// entry with count == 1, else entry 0.
func residualTarget(results []Computed) int {
	idx := -1
	for i, r := range results {
		if r.Count != 1 {
			continue
		}
		if idx == -1 || r.AreaPerUnit > results[idx].AreaPerUnit {
			idx = i
		}
	}
	if idx == -1 {
		return 0
	}
	return idx
}
