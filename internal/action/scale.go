package action

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"spaceplan/internal/intent"
	"spaceplan/internal/program"
)

// scaleDirectiveRe recognizes prompts that are about resizing. Shared
// with the registry's fallback inference.
var scaleDirectiveRe = regexp.MustCompile(`(?i)\b(scale|resize|enlarge|shrink|grow|reduce|increase|decrease|double|halve|triple|bigger|smaller)\b`)

var (
	percentRe    = regexp.MustCompile(`(?i)([+-]?\d+(?:\.\d+)?)\s*(?:%|percent)`)
	toAbsoluteRe = regexp.MustCompile(`(?i)\bto\s+(\d[\d.,]*)\s*(k)?\s*(?:m2|m²|sqm|sq\.?\s?m\b|square\s+met(?:er|re)s?)?`)
	factorRe     = regexp.MustCompile(`(?i)(?:by\s+a\s+factor\s+of|times|x)\s*(\d+(?:\.\d+)?)`)
)

// ScaleAction resizes the targeted areas. Directives are parsed
// deterministically; no oracle round-trip is involved.
type ScaleAction struct {
	exec   *intent.Executor
	logger *zap.Logger
}

func NewScaleAction(exec *intent.Executor, logger *zap.Logger) *ScaleAction {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScaleAction{exec: exec, logger: logger.Named("action.scale")}
}

func (a *ScaleAction) ID() string { return "scale" }

func (a *ScaleAction) Triggers() []Trigger {
	return []Trigger{
		{Pattern: regexp.MustCompile(`(?i)\b(scale|resize)\b`), Priority: 75},
		{Pattern: regexp.MustCompile(`(?i)\b(double|halve|triple)\b`), Priority: 75},
		{Pattern: regexp.MustCompile(`(?i)\b(increase|decrease|grow|shrink|enlarge|reduce)\b.*\b(by|to)\b`), Priority: 74},
	}
}

func (a *ScaleAction) Requirement() SelectionRequirement { return RequireAny }

func (a *ScaleAction) Validate(prompt string, sel program.Selection, snap *program.Context) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	if len(ResolveTargets(prompt, sel, snap)) == 0 {
		return ErrNoTargets
	}
	return nil
}

func (a *ScaleAction) Execute(ctx context.Context, prompt string, sel program.Selection, snap *program.Context) (*Result, error) {
	targets := ResolveTargets(prompt, sel, snap)
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	ids := make([]string, len(targets))
	var current float64
	for i, n := range targets {
		ids[i] = n.ID
		current += n.TotalArea()
	}

	it, desc, ok := parseScaleDirective(prompt, ids, current)
	if !ok {
		return &Result{
			NeedsClarification: true,
			Message:            "How should the selection be scaled?",
			ClarificationOptions: []ClarificationOption{
				{Label: "Increase by 10%", Prompt: "increase by 10%", Confidence: 0.5},
				{Label: "Decrease by 10%", Prompt: "decrease by 10%", Confidence: 0.5},
				{Label: "Double", Prompt: "double the selected areas", Confidence: 0.5},
				{Label: "Halve", Prompt: "halve the selected areas", Confidence: 0.5},
			},
		}, nil
	}

	a.logger.Debug("scale directive parsed",
		zap.String("directive", desc),
		zap.Int("targets", len(ids)),
		zap.Float64("current_total", current))

	out, err := a.exec.Execute(it, snap)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	return &Result{
		Intent:    it,
		Proposals: out.Proposals,
		Message:   fmt.Sprintf("Scaling %d area(s): %s.", len(ids), desc),
		Warnings:  out.Warnings,
	}, nil
}

func (a *ScaleAction) ToProposals(res *Result, sel program.Selection, snap *program.Context) ([]program.Proposal, error) {
	return res.Proposals, nil
}

// parseScaleDirective turns a prompt into a concrete resize intent.
// Precedence: percent delta, absolute target, named multiplier, numeric
// factor. Returns ok=false when no directive is recognizable.
func parseScaleDirective(prompt string, ids []string, current float64) (program.Intent, string, bool) {
	lower := strings.ToLower(prompt)

	if m := percentRe.FindStringSubmatch(prompt); m != nil {
		pct, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			if pct > 0 && !strings.Contains(m[1], "+") && mentionsDecrease(lower) {
				pct = -pct
			}
			return &program.AdjustPercentIntent{NodeIDs: ids, Percent: pct},
				fmt.Sprintf("%+.4g%%", pct), true
		}
	}

	if m := toAbsoluteRe.FindStringSubmatch(prompt); m != nil && current > 0 {
		raw := strings.ReplaceAll(m[1], ",", "")
		target, err := strconv.ParseFloat(raw, 64)
		if err == nil && target > 0 {
			if m[2] != "" {
				target *= 1000
			}
			factor := target / current
			return &program.RedistributeIntent{NodeIDs: ids, Factor: factor},
				fmt.Sprintf("to %.0f m² (factor %.3g)", target, factor), true
		}
	}

	switch {
	case containsWord(lower, "double"):
		return &program.RedistributeIntent{NodeIDs: ids, Factor: 2}, "doubled", true
	case containsWord(lower, "halve") || containsWord(lower, "half"):
		return &program.RedistributeIntent{NodeIDs: ids, Factor: 0.5}, "halved", true
	case containsWord(lower, "triple"):
		return &program.RedistributeIntent{NodeIDs: ids, Factor: 3}, "tripled", true
	}

	if m := factorRe.FindStringSubmatch(prompt); m != nil {
		f, err := strconv.ParseFloat(m[1], 64)
		if err == nil && f > 0 {
			if mentionsDecrease(lower) && f > 1 {
				f = 1 / f
			}
			return &program.RedistributeIntent{NodeIDs: ids, Factor: f},
				fmt.Sprintf("factor %.3g", f), true
		}
	}

	return nil, "", false
}

func mentionsDecrease(lower string) bool {
	for _, w := range []string{"decrease", "shrink", "reduce", "smaller", "down"} {
		if containsWord(lower, w) {
			return true
		}
	}
	return false
}
