// Package typology maps building-type names onto expected area ranges
// and judges whether a stated area is plausible for its type.
package typology

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed typologies.yaml
var typologiesYAML []byte

// Typology is a canonical building type with a known expected area range
// in m².
type Typology struct {
	Key     string   `yaml:"key"`
	Min     float64  `yaml:"min"`
	Max     float64  `yaml:"max"`
	Typical float64  `yaml:"typical"`
	Aliases []string `yaml:"aliases"`
}

type tableFile struct {
	Typologies []Typology `yaml:"typologies"`
}

var (
	byKey   map[string]*Typology
	byAlias map[string]*Typology
	ordered []Typology
)

func init() {
	var f tableFile
	if err := yaml.Unmarshal(typologiesYAML, &f); err != nil {
		panic(fmt.Sprintf("typology: embedded table is invalid: %v", err))
	}
	ordered = f.Typologies
	byKey = make(map[string]*Typology, len(ordered))
	byAlias = make(map[string]*Typology)
	for i := range ordered {
		t := &ordered[i]
		byKey[t.Key] = t
		for _, a := range t.Aliases {
			byAlias[strings.ToLower(a)] = t
		}
	}
}

// All returns the full table in declaration order.
func All() []Typology {
	out := make([]Typology, len(ordered))
	copy(out, ordered)
	return out
}

// Match resolves a free-text building-type mention to a typology:
// direct key match, then alias match, then a first-word retry against
// both. Returns nil when nothing matches.
func Match(text string) *Typology {
	norm := strings.ToLower(strings.TrimSpace(text))
	if norm == "" {
		return nil
	}
	if t, ok := byKey[norm]; ok {
		return t
	}
	if t, ok := byAlias[norm]; ok {
		return t
	}

	first, _, _ := strings.Cut(norm, " ")
	if first == norm {
		return nil
	}
	if t, ok := byKey[first]; ok {
		return t
	}
	if t, ok := byAlias[first]; ok {
		return t
	}
	return nil
}

// FindMention scans free text for the first typology key or alias it
// contains. Used by classification fallbacks where the type is buried in
// a sentence.
func FindMention(text string) *Typology {
	norm := " " + strings.ToLower(text) + " "
	for i := range ordered {
		t := &ordered[i]
		if strings.Contains(norm, " "+t.Key+" ") {
			return t
		}
		for _, a := range t.Aliases {
			if strings.Contains(norm, " "+strings.ToLower(a)+" ") {
				return t
			}
		}
	}
	return nil
}
