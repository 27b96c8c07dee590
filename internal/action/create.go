package action

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"spaceplan/internal/intent"
	"spaceplan/internal/oracle"
	"spaceplan/internal/program"
	"spaceplan/internal/typology"
)

const createSystemPrompt = `You are an architectural programming assistant.
Given a short description of a building project, produce a space program as JSON:

{
  "targetTotal": <total area in m², 0 if unknown>,
  "typology": "<building type key, e.g. hotel, office, school>",
  "areas": [
    {"name": "<space name>", "ratio": <share of total, optional>,
     "fixedArea": <fixed per-unit m², optional>, "count": <units, default 1>,
     "notes": "<short note, optional>", "group": "<group name, optional>"}
  ],
  "groups": [{"name": "<group>", "color": "<hex>", "members": ["<area name>", ...]}]
}

Use ratio for proportional spaces and fixedArea only when the description states
an explicit size. Cover circulation and back-of-house where the typology calls
for it. Output only the JSON object.`

// CreateAction builds a fresh program from a prompt. The typology check
// runs before any oracle call so magnitude errors are caught early and
// cheaply.
type CreateAction struct {
	oracle oracle.Oracle
	exec   *intent.Executor
	logger *zap.Logger
}

func NewCreateAction(o oracle.Oracle, exec *intent.Executor, logger *zap.Logger) *CreateAction {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreateAction{oracle: o, exec: exec, logger: logger.Named("action.create")}
}

func (a *CreateAction) ID() string { return "create" }

func (a *CreateAction) Triggers() []Trigger {
	return []Trigger{
		{Pattern: regexp.MustCompile(`(?i)\b(create|generate|make|design|plan|new)\b.*\b(program|project|building|spaces?)\b`), Priority: 80},
		{Pattern: regexp.MustCompile(`(?i)\bprogram\s+for\b`), Priority: 80},
	}
}

func (a *CreateAction) Requirement() SelectionRequirement { return RequireNone }

func (a *CreateAction) Validate(prompt string, sel program.Selection, snap *program.Context) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

func (a *CreateAction) Execute(ctx context.Context, prompt string, sel program.Selection, snap *program.Context) (*Result, error) {
	typ := typology.FindMention(prompt)
	target, hasTarget := parseTargetArea(prompt)

	var warnings []string
	if hasTarget {
		analysis := typology.AnalyzeScale(target, typ)
		a.logger.Debug("pre-flight scale check",
			zap.Float64("target", target),
			zap.String("severity", string(analysis.Severity)),
			zap.Float64("ratio", analysis.Ratio))
		if analysis.NeedsClarification {
			return &Result{
				NeedsClarification:   true,
				Message:              analysis.Message,
				ClarificationOptions: alternativesToOptions(analysis),
			}, nil
		}
		if analysis.Severity == typology.SeverityWarning || analysis.Severity == typology.SeverityInfo {
			warnings = append(warnings, analysis.Message)
		}
	}

	raw, err := a.oracle.CompleteJSON(ctx, createSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	it, err := decodeProgramJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	if hasTarget {
		// The figure stated by the user overrides whatever the model
		// inferred.
		it.TargetTotal = target
	}
	if it.Typology == "" && typ != nil {
		it.Typology = typ.Key
	}
	if it.TargetTotal <= 0 {
		it.TargetTotal = fallbackTarget(it, typ)
	}

	out, err := a.exec.Execute(it, snap)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	return &Result{
		Intent:    it,
		Proposals: out.Proposals,
		Message:   fmt.Sprintf("Proposed a program of %d area(s) totalling %.0f m².", len(it.Entries), it.TargetTotal),
		Warnings:  append(warnings, out.Warnings...),
	}, nil
}

func (a *CreateAction) ToProposals(res *Result, sel program.Selection, snap *program.Context) ([]program.Proposal, error) {
	return res.Proposals, nil
}

// fallbackTarget picks a total when neither the user nor the oracle
// stated one: sum of fixed entries if any, else the typology's typical
// size, else a neutral 1000 m².
func fallbackTarget(it *program.CreateProgramIntent, typ *typology.Typology) float64 {
	var fixed float64
	for _, e := range it.Entries {
		if e.HasFixedArea {
			fixed += e.FixedArea * float64(e.EffectiveCount())
		}
	}
	if fixed > 0 {
		return fixed
	}
	if typ != nil {
		return typ.Typical
	}
	return 1000
}

func alternativesToOptions(analysis typology.Analysis) []ClarificationOption {
	opts := make([]ClarificationOption, 0, len(analysis.Alternatives))
	for _, alt := range analysis.Alternatives {
		opts = append(opts, ClarificationOption{
			Label:      alt.Label,
			Prompt:     alt.Prompt,
			Confidence: analysis.Confidence,
		})
	}
	return opts
}
