// Package brief classifies free text arriving at the system: is it a
// short conversational prompt, a structured area table, a dirty
// copy-paste of one, or garbage?
//
// Classification is pure and deterministic: the same text always yields
// the same category, confidence, quality tier, and parsing strategy. The
// fixed confidence values are part of the behavioral contract and are
// asserted by tests; they are not tunables.
package brief

// Category is the shape of the incoming text.
type Category string

const (
	CategoryPrompt     Category = "prompt"
	CategoryDirty      Category = "dirty"
	CategoryStructured Category = "structured"
	CategoryGarbage    Category = "garbage"
)

// Quality grades how cleanly the text will parse.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Strategy is the recommended downstream handling.
type Strategy string

const (
	StrategyExtractTolerant Strategy = "extract_tolerant"
	StrategyExtractStrict   Strategy = "extract_strict"
	StrategyRedirectToAgent Strategy = "redirect_to_agent"
	StrategyReject          Strategy = "reject"
)

// Classification is the full result of Analyze.
type Classification struct {
	Category    Category
	Confidence  float64
	Quality     Quality
	Strategy    Strategy
	Signals     Signals
	Warnings    []string
	Suggestions []string

	// Preprocessed is the cleaned text: whitespace normalized, email
	// noise stripped, imperial areas converted to m².
	Preprocessed string
}

// Fixed confidences per ordered rule.
const (
	confTooShort    = 0.95
	confNoisy       = 0.80
	confImperative  = 0.90
	confStructured  = 0.85
	confDirty       = 0.70
	confDirtyEmail  = 0.65
	confShortPrompt = 0.60
	confFallback    = 0.50
)

// Analyze classifies free text. Pure function, no side effects.
func Analyze(text string) Classification {
	sig := ExtractSignals(text)

	c := Classification{Signals: sig}
	c.Category, c.Confidence, c.Strategy = classify(sig)
	c.Quality = qualityTier(sig)
	c.Warnings, c.Suggestions = advise(sig, c.Category)
	c.Preprocessed = Preprocess(text)
	return c
}

// classify runs the ordered rule checks. Order matters: the first rule
// that fires wins.
func classify(sig Signals) (Category, float64, Strategy) {
	switch {
	case sig.Words < 3 && sig.AreaTokens == 0:
		return CategoryGarbage, confTooShort, StrategyReject
	case sig.NoiseRatio > 0.4:
		return CategoryGarbage, confNoisy, StrategyReject
	case sig.ImperativeVerb && sig.Lines <= 2:
		return CategoryPrompt, confImperative, StrategyRedirectToAgent
	case sig.TableLines >= 3 && sig.AreaTokens >= 3:
		return CategoryStructured, confStructured, StrategyExtractStrict
	case sig.AreaTokens >= 2 && sig.Lines >= 3:
		return CategoryDirty, confDirty, StrategyExtractTolerant
	case sig.EmailMarkers > 0 && sig.AreaTokens >= 1:
		return CategoryDirty, confDirtyEmail, StrategyExtractTolerant
	case sig.Lines <= 3:
		return CategoryPrompt, confShortPrompt, StrategyRedirectToAgent
	default:
		return CategoryGarbage, confFallback, StrategyReject
	}
}

// qualityTier derives low/medium/high from a weighted point score over
// structural and cleanliness signals.
func qualityTier(sig Signals) Quality {
	points := 0
	if sig.TableLines >= 3 {
		points += 2
	}
	if sig.HasTotals {
		points += 2
	}
	if sig.SectionHeaders >= 1 {
		points++
	}
	if sig.NoiseRatio < 0.1 {
		points += 2
	}
	if sig.Unit == UnitMetric {
		points++
	}
	if sig.AreaTokens >= 5 {
		points++
	}
	if sig.ListMarkers >= 3 {
		points++
	}

	switch {
	case points >= 6:
		return QualityHigh
	case points >= 3:
		return QualityMedium
	default:
		return QualityLow
	}
}

func advise(sig Signals, cat Category) (warnings, suggestions []string) {
	switch sig.Unit {
	case UnitMixed:
		warnings = append(warnings, "mixed metric and imperial units; imperial figures were converted to m²")
	case UnitImperial:
		warnings = append(warnings, "imperial units detected; figures were converted to m²")
	}
	if sig.EmailMarkers > 0 {
		warnings = append(warnings, "email noise detected and stripped (headers, quoted lines, signature)")
	}
	if sig.NoiseRatio > 0.25 {
		warnings = append(warnings, "input is noisy; extracted numbers should be double-checked")
	}
	if cat == CategoryStructured && !sig.HasTotals {
		warnings = append(warnings, "no total line found; the program total will be derived from the entries")
		suggestions = append(suggestions, "include a target total so allocations can be verified")
	}
	if cat == CategoryDirty {
		suggestions = append(suggestions, "one area per line with a name and a number parses most reliably")
	}
	return warnings, suggestions
}
