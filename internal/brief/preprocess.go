package brief

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// sqftToSqm is the exact conversion factor for square feet to m².
const sqftToSqm = 0.09290304

var (
	imperialValueRe = regexp.MustCompile(`(?i)(\d[\d.,]*)\s*(?:sq\.?\s?ft\b|sqft|ft2|ft²|square\s+feet)`)
	runsOfSpacesRe  = regexp.MustCompile(`[ \t]{2,}`)
	blankRunsRe     = regexp.MustCompile(`\n{3,}`)
)

// Preprocess returns cleaned text ready for extraction: email noise
// stripped, whitespace normalized, imperial areas converted to metric.
// The original text is never modified.
func Preprocess(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))

	inSignature := false
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if signatureRe.MatchString(l) {
			// Everything from a signature marker on is noise.
			inSignature = true
		}
		if inSignature {
			continue
		}
		if emailHeaderRe.MatchString(l) || strings.HasPrefix(l, ">") || strings.Contains(l, "wrote:") {
			continue
		}
		kept = append(kept, l)
	}

	out := strings.Join(kept, "\n")
	out = convertImperial(out)
	out = runsOfSpacesRe.ReplaceAllString(out, "  ")
	out = blankRunsRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// convertImperial rewrites every square-feet figure as m², rounded to
// the nearest whole unit.
func convertImperial(text string) string {
	return imperialValueRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := imperialValueRe.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		raw := strings.ReplaceAll(sub[1], ",", "")
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return match
		}
		sqm := val * sqftToSqm
		return fmt.Sprintf("%.0f m²", sqm)
	})
}
