package action

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spaceplan/internal/brief"
	"spaceplan/internal/intent"
	"spaceplan/internal/oracle"
	"spaceplan/internal/program"
)

const briefSystemPrompt = `You are an architectural programming assistant.
The user pasted a project brief. Extract its space program as JSON:

{
  "targetTotal": <total area in m², 0 if the brief states none>,
  "typology": "<building type key if identifiable>",
  "areas": [
    {"name": "<space name>", "ratio": <share of total, optional>,
     "fixedArea": <per-unit m² when the brief states one>, "count": <units, default 1>,
     "notes": "<requirement quoted or paraphrased from the brief, optional>",
     "group": "<section or department name from the brief, optional>"}
  ],
  "groups": [{"name": "<group>", "color": "<hex>", "members": ["<area name>", ...]}]
}

Keep every space the brief names. Prefer the brief's own figures over
estimates. Areas are already in m². Output only the JSON object.`

// ParseBriefAction extracts a program from pasted brief text. The
// classifier gates what reaches the oracle: garbage is rejected, noisy
// text is cleaned first.
type ParseBriefAction struct {
	oracle oracle.Oracle
	exec   *intent.Executor
	logger *zap.Logger
}

func NewParseBriefAction(o oracle.Oracle, exec *intent.Executor, logger *zap.Logger) *ParseBriefAction {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParseBriefAction{oracle: o, exec: exec, logger: logger.Named("action.parse_brief")}
}

func (a *ParseBriefAction) ID() string { return "parse_brief" }

func (a *ParseBriefAction) Triggers() []Trigger {
	return []Trigger{
		{Pattern: regexp.MustCompile(`(?i)\b(parse|extract|import|read)\b.*\bbrief\b`), Priority: 65},
		{Pattern: regexp.MustCompile(`(?i)\bbrief\s*:`), Priority: 65},
	}
}

func (a *ParseBriefAction) Requirement() SelectionRequirement { return RequireNone }

func (a *ParseBriefAction) Validate(prompt string, sel program.Selection, snap *program.Context) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

func (a *ParseBriefAction) Execute(ctx context.Context, prompt string, sel program.Selection, snap *program.Context) (*Result, error) {
	cls := brief.Analyze(prompt)
	a.logger.Debug("brief classified",
		zap.String("category", string(cls.Category)),
		zap.String("quality", string(cls.Quality)),
		zap.String("strategy", string(cls.Strategy)),
		zap.Float64("confidence", cls.Confidence))

	switch cls.Strategy {
	case brief.StrategyReject:
		return &Result{
			NeedsClarification: true,
			Message:            "The text does not look like a project brief. Paste the brief itself, or describe the project in a sentence.",
			Warnings:           cls.Warnings,
		}, nil
	case brief.StrategyRedirectToAgent:
		// Imperative one-liners belong to the other actions; answer
		// with what we understood rather than force an extraction.
		return &Result{
			NeedsClarification: true,
			Message:            "This reads as a direct request, not a brief. Try phrasing it as a command, or paste the full brief text.",
			Warnings:           cls.Warnings,
		}, nil
	}

	raw, err := a.oracle.CompleteJSON(ctx, briefSystemPrompt, cls.Preprocessed)
	if err != nil {
		return nil, fmt.Errorf("parse_brief: %w", err)
	}
	it, err := decodeProgramJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parse_brief: %w", err)
	}
	if it.TargetTotal <= 0 {
		if t, ok := parseTargetArea(cls.Preprocessed); ok {
			it.TargetTotal = t
		} else {
			it.TargetTotal = fixedEntriesTotal(it.Entries)
		}
	}
	if it.TargetTotal <= 0 {
		return &Result{
			NeedsClarification: true,
			Message:            "The brief states no usable total area. What should the program total be?",
			Warnings:           cls.Warnings,
		}, nil
	}

	out, err := a.exec.Execute(it, snap)
	if err != nil {
		return nil, fmt.Errorf("parse_brief: %w", err)
	}

	res := &Result{
		Intent:    it,
		Proposals: out.Proposals,
		Message:   fmt.Sprintf("Extracted %d area(s) totalling %.0f m² from the brief.", len(it.Entries), it.TargetTotal),
		Warnings:  append(cls.Warnings, out.Warnings...),
	}
	if notes := provenanceNotes(it); notes != nil {
		res.Proposals = append(res.Proposals, *notes)
	}
	return res, nil
}

func (a *ParseBriefAction) ToProposals(res *Result, sel program.Selection, snap *program.Context) ([]program.Proposal, error) {
	return res.Proposals, nil
}

func fixedEntriesTotal(entries []program.IntentEntry) float64 {
	var sum float64
	for _, e := range entries {
		if e.HasFixedArea {
			sum += e.FixedArea * float64(e.EffectiveCount())
		}
	}
	return sum
}

// provenanceNotes records which entries carried notes extracted from
// the brief, keyed by the entry name since the nodes do not exist yet.
func provenanceNotes(it *program.CreateProgramIntent) *program.Proposal {
	var notes []program.NodeNote
	for _, e := range it.Entries {
		if e.Notes != "" {
			notes = append(notes, program.NodeNote{NodeID: e.Name, Note: e.Notes})
		}
	}
	if len(notes) == 0 {
		return nil
	}
	return &program.Proposal{
		ID:      uuid.NewString(),
		Kind:    program.ProposalAddNotes,
		Status:  program.StatusPending,
		Summary: fmt.Sprintf("Attach %d brief note(s)", len(notes)),
		Payload: program.AddNotesPayload{Notes: notes},
	}
}
