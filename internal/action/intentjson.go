package action

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"spaceplan/internal/program"
)

// Wire formats for oracle JSON output. Pointer fields distinguish
// "absent" from "zero" so missing ratios keep their equal-share
// semantics.

type wireArea struct {
	Name      string   `json:"name"`
	Ratio     *float64 `json:"ratio"`
	FixedArea *float64 `json:"fixedArea"`
	Count     int      `json:"count"`
	Notes     string   `json:"notes"`
	Group     string   `json:"group"`
}

type wireGroup struct {
	Name    string   `json:"name"`
	Color   string   `json:"color"`
	Members []string `json:"members"`
}

type wireProgram struct {
	TargetTotal float64     `json:"targetTotal"`
	Typology    string      `json:"typology"`
	Areas       []wireArea  `json:"areas"`
	Groups      []wireGroup `json:"groups"`
}

// decodeProgramJSON parses oracle output into a create-program intent.
// Oracle output is untrusted; every failure is a contained error, never
// a panic.
func decodeProgramJSON(raw string) (*program.CreateProgramIntent, error) {
	var wp wireProgram
	if err := json.Unmarshal([]byte(stripFences(raw)), &wp); err != nil {
		return nil, fmt.Errorf("oracle returned malformed program JSON: %w", err)
	}
	if len(wp.Areas) == 0 {
		return nil, fmt.Errorf("oracle returned no area entries")
	}

	it := &program.CreateProgramIntent{
		TargetTotal: wp.TargetTotal,
		Typology:    wp.Typology,
		Entries:     wireToEntries(wp.Areas),
	}
	for _, g := range wp.Groups {
		if strings.TrimSpace(g.Name) == "" {
			continue
		}
		it.Groups = append(it.Groups, program.GroupSpec{Name: g.Name, Color: g.Color, Members: g.Members})
	}
	return it, nil
}

// decodeSplitJSON parses oracle output into a split-area intent for the
// given source node.
func decodeSplitJSON(raw, sourceNodeID string) (*program.SplitAreaIntent, error) {
	var wp wireProgram
	if err := json.Unmarshal([]byte(stripFences(raw)), &wp); err != nil {
		return nil, fmt.Errorf("oracle returned malformed split JSON: %w", err)
	}
	if len(wp.Areas) < 2 {
		return nil, fmt.Errorf("oracle returned %d sub-areas; a split needs at least two", len(wp.Areas))
	}
	return &program.SplitAreaIntent{
		SourceNodeID: sourceNodeID,
		Entries:      wireToEntries(wp.Areas),
	}, nil
}

func wireToEntries(areas []wireArea) []program.IntentEntry {
	entries := make([]program.IntentEntry, len(areas))
	for i, a := range areas {
		e := program.IntentEntry{
			Name:      strings.TrimSpace(a.Name),
			Count:     a.Count,
			Notes:     a.Notes,
			GroupName: a.Group,
		}
		if a.Ratio != nil {
			e.Ratio = *a.Ratio
			e.HasRatio = true
		}
		if a.FixedArea != nil {
			e.FixedArea = *a.FixedArea
			e.HasFixedArea = true
		}
		entries[i] = e
	}
	return entries
}

// stripFences tolerates markdown-fenced JSON even though JSON mode
// should never produce it.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

var targetAreaRe = regexp.MustCompile(`(?i)(\d[\d.,]*)\s*(k)?\s*(?:m2|m²|sqm|sq\.?\s?m\b|square\s+met(?:er|re)s?)`)

// parseTargetArea extracts an explicit target area from a prompt, e.g.
// "a 10,000 m² hotel" or "12k sqm". Returns false when no area figure
// is present.
func parseTargetArea(prompt string) (float64, bool) {
	m := targetAreaRe.FindStringSubmatch(prompt)
	if m == nil {
		return 0, false
	}
	raw := strings.ReplaceAll(m[1], ",", "")
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val <= 0 {
		return 0, false
	}
	if m[2] != "" {
		val *= 1000
	}
	return val, true
}
