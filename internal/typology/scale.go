package typology

import (
	"fmt"
	"math"
)

// Severity grades how badly a stated area disagrees with its typology.
type Severity string

const (
	SeverityOK      Severity = "ok"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// AlternativeKind labels the interpretation behind an alternative.
type AlternativeKind string

const (
	AlternativeMagnitude  AlternativeKind = "magnitude"
	AlternativeMasterplan AlternativeKind = "masterplan"
	AlternativeKeep       AlternativeKind = "keep"
)

// Alternative is one ranked reinterpretation of a mismatched area.
type Alternative struct {
	Kind          AlternativeKind
	Label         string
	SuggestedArea float64
	Typology      string
	Prompt        string
}

// Analysis is the result of checking an area against its typology.
type Analysis struct {
	Typology           *Typology
	Ratio              float64
	Severity           Severity
	Confidence         float64
	Message            string
	NeedsClarification bool
	Alternatives       []Alternative
}

// Thresholds and confidences are behavioral contract, kept verbatim from
// the original system.
const (
	bigExampleTolerance = 3.0
	warnRatioLimit      = 10.0
	errorRatioLimit     = 100.0

	confidenceError    = 0.2
	confidenceWarn     = 0.4
	confidenceMild     = 0.6
	confidenceInRange  = 0.9
	confidenceUnderMin = 0.5
)

// AnalyzeScale compares a stated area against a typology's expected
// range. With no matched typology the area is accepted as-is.
func AnalyzeScale(area float64, typ *Typology) Analysis {
	if typ == nil {
		return Analysis{
			Severity:   SeverityOK,
			Confidence: confidenceInRange,
			Message:    fmt.Sprintf("No typology matched; keeping %.0f m² as specified.", area),
		}
	}

	if area < typ.Min {
		return Analysis{
			Typology:   typ,
			Ratio:      area / typ.Max,
			Severity:   SeverityWarning,
			Confidence: confidenceUnderMin,
			Message: fmt.Sprintf("%.0f m² is below the usual minimum of %.0f m² for a %s (typical: %.0f m²).",
				area, typ.Min, typ.Key, typ.Typical),
		}
	}
	if area <= typ.Max {
		return Analysis{
			Typology:   typ,
			Ratio:      area / typ.Max,
			Severity:   SeverityOK,
			Confidence: confidenceInRange,
			Message:    fmt.Sprintf("%.0f m² is within the expected range for a %s.", area, typ.Key),
		}
	}

	ratio := area / typ.Max
	switch {
	case ratio >= errorRatioLimit:
		a := Analysis{
			Typology:           typ,
			Ratio:              ratio,
			Severity:           SeverityError,
			Confidence:         confidenceError,
			NeedsClarification: true,
			Message: fmt.Sprintf("%.0f m² is %.0f× over the maximum expected for a %s (%.0f m²). This is almost certainly a unit or magnitude error.",
				area, ratio, typ.Key, typ.Max),
		}
		a.Alternatives = GenerateScaleClarification(area, typ)
		return a
	case ratio > warnRatioLimit:
		a := Analysis{
			Typology:   typ,
			Ratio:      ratio,
			Severity:   SeverityWarning,
			Confidence: confidenceWarn,
			Message: fmt.Sprintf("%.0f m² is %.0f× over the expected maximum for a %s. Worth double-checking the figure.",
				area, ratio, typ.Key),
		}
		a.Alternatives = GenerateScaleClarification(area, typ)
		return a
	case ratio > bigExampleTolerance:
		return Analysis{
			Typology:   typ,
			Ratio:      ratio,
			Severity:   SeverityWarning,
			Confidence: confidenceMild,
			Message: fmt.Sprintf("%.0f m² is above the expected maximum for a %s (%.0f m²).",
				area, typ.Key, typ.Max),
		}
	default:
		// Up to 3x over max may simply be an unusually large example.
		return Analysis{
			Typology:   typ,
			Ratio:      ratio,
			Severity:   SeverityInfo,
			Confidence: confidenceMild,
			Message: fmt.Sprintf("%.0f m² is above the typical range for a %s but may be a large example.",
				area, typ.Key),
		}
	}
}

// GenerateScaleClarification builds ranked alternative interpretations
// for a mismatched area: magnitude corrections first, then a masterplan
// reinterpretation, always ending with a keep-as-specified escape.
func GenerateScaleClarification(area float64, typ *Typology) []Alternative {
	var alts []Alternative

	// Magnitude-correction guesses: divide by powers of ten until the
	// corrected figure lands inside the expected range.
	for div := 10.0; div <= 1e6; div *= 10 {
		corrected := area / div
		if corrected < typ.Min {
			break
		}
		if corrected <= typ.Max {
			alts = append(alts, Alternative{
				Kind:          AlternativeMagnitude,
				Label:         fmt.Sprintf("÷%s typo", formatDivisor(div)),
				SuggestedArea: corrected,
				Typology:      typ.Key,
				Prompt: fmt.Sprintf("Did you mean %.0f m²? %.0f m² looks like a factor-%s slip for a %s.",
					corrected, area, formatDivisor(div), typ.Key),
			})
		}
	}

	// Masterplan reinterpretation: the figure may be right but the scale
	// wrong, e.g. a resort campus rather than one hotel building.
	if mp, ok := byKey["masterplan"]; ok && typ.Key != "masterplan" && area >= mp.Min {
		alts = append(alts, Alternative{
			Kind:          AlternativeMasterplan,
			Label:         "masterplan scale",
			SuggestedArea: area,
			Typology:      mp.Key,
			Prompt: fmt.Sprintf("Is this actually a masterplan or campus? %.0f m² fits a %s-scale project containing multiple %s buildings.",
				area, mp.Key, typ.Key),
		})
	}

	alts = append(alts, Alternative{
		Kind:          AlternativeKeep,
		Label:         "keep as specified",
		SuggestedArea: area,
		Typology:      typ.Key,
		Prompt:        fmt.Sprintf("Keep %.0f m² exactly as specified.", area),
	})
	return alts
}

func formatDivisor(div float64) string {
	switch {
	case div >= 1e6:
		return "1,000,000"
	case div >= 1e3:
		return fmt.Sprintf("%.0f,000", div/1e3)
	default:
		return fmt.Sprintf("%.0f", math.Round(div))
	}
}
