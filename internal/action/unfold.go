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
)

// minUnfoldArea is the smallest area worth subdividing further.
const minUnfoldArea = 10.0

const unfoldSystemPrompt = `You are an architectural programming assistant.
Given a named space and its area, break it into its functional sub-spaces as JSON:

{
  "areas": [
    {"name": "<sub-space name>", "ratio": <share of the parent, optional>,
     "fixedArea": <fixed per-unit m², optional>, "count": <units, default 1>,
     "notes": "<short note, optional>"}
  ]
}

Produce between 2 and 8 sub-spaces that together make up the whole parent
area. Output only the JSON object.`

// UnfoldAction subdivides the targeted areas into sub-spaces, one
// oracle call per node.
type UnfoldAction struct {
	oracle oracle.Oracle
	exec   *intent.Executor
	logger *zap.Logger
}

func NewUnfoldAction(o oracle.Oracle, exec *intent.Executor, logger *zap.Logger) *UnfoldAction {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnfoldAction{oracle: o, exec: exec, logger: logger.Named("action.unfold")}
}

func (a *UnfoldAction) ID() string { return "unfold" }

func (a *UnfoldAction) Triggers() []Trigger {
	return []Trigger{
		{Pattern: regexp.MustCompile(`(?i)\b(unfold|subdivide|break\s+(?:down|up|into)|detail|split\s+into\s+(?:sub|functions|rooms))\b`), Priority: 70},
		{Pattern: regexp.MustCompile(`(?i)\bwhat('?s| is)\s+inside\b`), Priority: 70},
	}
}

func (a *UnfoldAction) Requirement() SelectionRequirement { return RequireAny }

func (a *UnfoldAction) Validate(prompt string, sel program.Selection, snap *program.Context) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	if len(ResolveTargets(prompt, sel, snap)) == 0 {
		return ErrNoTargets
	}
	return nil
}

func (a *UnfoldAction) Execute(ctx context.Context, prompt string, sel program.Selection, snap *program.Context) (*Result, error) {
	targets := ResolveTargets(prompt, sel, snap)
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	res := &Result{}
	var unfolded int
	for _, node := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if node.TotalArea() < minUnfoldArea {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("%q (%.0f m²) is too small to subdivide; skipped.", node.Name, node.TotalArea()))
			continue
		}
		user := fmt.Sprintf("Space: %s\nArea: %.0f m²\nContext: %s", node.Name, node.TotalArea(), prompt)
		raw, err := a.oracle.CompleteJSON(ctx, unfoldSystemPrompt, user)
		if err != nil {
			return nil, fmt.Errorf("unfold %q: %w", node.Name, err)
		}
		it, err := decodeSplitJSON(raw, node.ID)
		if err != nil {
			return nil, fmt.Errorf("unfold %q: %w", node.Name, err)
		}
		out, err := a.exec.Execute(it, snap)
		if err != nil {
			return nil, fmt.Errorf("unfold %q: %w", node.Name, err)
		}
		a.logger.Debug("unfolded node",
			zap.String("node", node.Name),
			zap.Int("sub_areas", len(it.Entries)))
		res.Proposals = append(res.Proposals, out.Proposals...)
		res.Warnings = append(res.Warnings, out.Warnings...)
		unfolded++
	}

	switch {
	case unfolded == 0:
		res.Message = "Nothing to unfold; all targeted areas are below the subdivision threshold."
	case len(res.Warnings) > 0:
		res.Message = fmt.Sprintf("Unfolded %d of %d targeted area(s).", unfolded, len(targets))
	default:
		res.Message = fmt.Sprintf("Unfolded %d area(s) into sub-spaces.", unfolded)
	}
	return res, nil
}

func (a *UnfoldAction) ToProposals(res *Result, sel program.Selection, snap *program.Context) ([]program.Proposal, error) {
	return res.Proposals, nil
}
