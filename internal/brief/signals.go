package brief

import (
	"regexp"
	"strings"
	"unicode"
)

// UnitSystem describes which area units appear in the text.
type UnitSystem string

const (
	UnitNone     UnitSystem = "none"
	UnitMetric   UnitSystem = "metric"
	UnitImperial UnitSystem = "imperial"
	UnitMixed    UnitSystem = "mixed"
)

// Signals are the raw measurements classification is based on.
type Signals struct {
	Lines          int
	Words          int
	AreaTokens     int
	TableLines     int
	SectionHeaders int
	HasTotals      bool
	ListMarkers    int
	EmailMarkers   int
	ImperativeVerb bool
	Unit           UnitSystem
	NoiseRatio     float64
}

var (
	metricAreaRe   = regexp.MustCompile(`(?i)\d[\d.,]*\s*(?:m2|m²|sqm|sq\.?\s?m\b|square\s+met(?:er|re)s?)`)
	imperialAreaRe = regexp.MustCompile(`(?i)\d[\d.,]*\s*(?:sq\.?\s?ft\b|sqft|ft2|ft²|square\s+feet)`)
	totalsRe       = regexp.MustCompile(`(?i)\b(?:sub)?total\b|\bsumme?\b`)
	listMarkerRe   = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
	emailHeaderRe  = regexp.MustCompile(`(?i)^(?:from|to|cc|bcc|subject|sent|date):`)
	signatureRe    = regexp.MustCompile(`(?i)^(?:--\s*$|best regards|kind regards|sincerely|cheers,)`)
	multiSpaceRe   = regexp.MustCompile(`\S\s{2,}\S`)
)

// imperativeVerbs are the leading verbs that mark conversational
// requests rather than pasted documents.
var imperativeVerbs = map[string]bool{
	"create": true, "make": true, "add": true, "generate": true,
	"design": true, "give": true, "build": true, "plan": true,
	"split": true, "organize": true, "organise": true, "scale": true,
	"merge": true, "unfold": true, "distribute": true, "reduce": true,
	"increase": true, "shrink": true, "grow": true,
}

// ExtractSignals measures the text. Pure function.
func ExtractSignals(text string) Signals {
	var sig Signals
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		sig.Unit = UnitNone
		return sig
	}

	lines := strings.Split(trimmed, "\n")
	sig.Lines = 0
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if l == "" {
			continue
		}
		sig.Lines++

		if isTableLike(l) {
			sig.TableLines++
		}
		if isSectionHeader(l) {
			sig.SectionHeaders++
		}
		if listMarkerRe.MatchString(line) {
			sig.ListMarkers++
		}
		if emailHeaderRe.MatchString(l) || signatureRe.MatchString(l) ||
			strings.HasPrefix(l, ">") || strings.Contains(l, "wrote:") {
			sig.EmailMarkers++
		}
	}

	sig.Words = len(strings.Fields(trimmed))

	metric := len(metricAreaRe.FindAllString(trimmed, -1))
	imperial := len(imperialAreaRe.FindAllString(trimmed, -1))
	sig.AreaTokens = metric + imperial
	switch {
	case metric > 0 && imperial > 0:
		sig.Unit = UnitMixed
	case metric > 0:
		sig.Unit = UnitMetric
	case imperial > 0:
		sig.Unit = UnitImperial
	default:
		sig.Unit = UnitNone
	}

	sig.HasTotals = totalsRe.MatchString(trimmed)
	sig.ImperativeVerb = startsImperative(trimmed)
	sig.NoiseRatio = noiseRatio(trimmed)
	return sig
}

// isTableLike reports whether a line looks like a table row: explicit
// column separators or multi-space alignment with at least two cells.
func isTableLike(line string) bool {
	if strings.Count(line, "\t") >= 1 || strings.Count(line, "|") >= 2 {
		return true
	}
	if strings.Count(line, ";") >= 1 && len(strings.Split(line, ";")) >= 2 {
		return true
	}
	return multiSpaceRe.MatchString(line)
}

// isSectionHeader reports whether a line looks like a heading: short and
// colon-terminated, or all caps.
func isSectionHeader(line string) bool {
	words := strings.Fields(line)
	if strings.HasSuffix(line, ":") && len(words) <= 6 && !emailHeaderRe.MatchString(line) {
		return true
	}
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return letters >= 3 && len(words) <= 8
}

func startsImperative(text string) bool {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return false
	}
	first := strings.Trim(fields[0], ".,!?:")
	if imperativeVerbs[first] {
		return true
	}
	// "please create ...", "can you make ..."
	for _, skip := range []string{"please", "can", "could", "you", "we", "kindly"} {
		if first == skip && len(fields) > 1 {
			return startsImperative(strings.Join(fields[1:], " "))
		}
	}
	return false
}

// noiseRatio is the share of characters that are neither letters,
// digits, whitespace, nor common punctuation.
func noiseRatio(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	noisy, total := 0, 0
	for _, r := range text {
		total++
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
		case strings.ContainsRune(".,;:()-–%²|/+'\"&*#•", r):
		default:
			noisy++
		}
	}
	return float64(noisy) / float64(total)
}
