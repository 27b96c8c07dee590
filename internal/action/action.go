// Package action holds the self-contained request handlers and the
// registry that picks one for a free-text request.
//
// Every Action follows the same contract: Validate is cheap and local,
// Execute may reach the oracle and may come back asking for
// clarification, ToProposals is a pure transform of an already computed
// result. The registry matches trigger patterns in priority order and
// falls back to content-based inference when no pattern fires.
package action

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"spaceplan/internal/program"
)

// SelectionRequirement states what a trigger needs selected to apply.
type SelectionRequirement string

const (
	RequireNone     SelectionRequirement = "none"
	RequireSingle   SelectionRequirement = "single"
	RequireMultiple SelectionRequirement = "multiple"
	RequireAny      SelectionRequirement = "any"
)

// Satisfied reports whether the selection meets the requirement.
func (r SelectionRequirement) Satisfied(sel program.Selection) bool {
	switch r {
	case RequireNone, RequireAny:
		return true
	case RequireSingle:
		return len(sel.NodeIDs) == 1
	case RequireMultiple:
		return len(sel.NodeIDs) >= 2
	default:
		return false
	}
}

// Trigger is one pattern that routes prompts to an action. Higher
// priority triggers are checked first across all actions.
type Trigger struct {
	Pattern  *regexp.Regexp
	Priority int
}

// ClarificationOption is one ranked way to resolve an ambiguity.
type ClarificationOption struct {
	Label      string
	Prompt     string
	Confidence float64
}

// Result is what executing an action yields. Proposals are fully
// computed here; ToProposals only hands them on.
type Result struct {
	Intent    program.Intent
	Proposals []program.Proposal
	Message   string
	Warnings  []string

	// NeedsClarification signals that execution stopped short and the
	// ranked options should be put to the user instead of a proposal.
	NeedsClarification   bool
	ClarificationOptions []ClarificationOption
}

// Action is a self-contained handler for one kind of request.
type Action interface {
	ID() string
	Triggers() []Trigger
	Requirement() SelectionRequirement

	// Validate is a cheap local check; it never calls the oracle.
	Validate(prompt string, sel program.Selection, snap *program.Context) error

	// Execute does the work. It may call the oracle and may signal
	// NeedsClarification on the result.
	Execute(ctx context.Context, prompt string, sel program.Selection, snap *program.Context) (*Result, error)

	// ToProposals extracts the proposals from a result. Pure transform,
	// no new computation.
	ToProposals(res *Result, sel program.Selection, snap *program.Context) ([]program.Proposal, error)
}

// Package-level sentinels.
var (
	// ErrEmptyPrompt is returned by Validate when there is nothing to
	// work with.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrNoTargets is returned when target resolution finds no nodes.
	ErrNoTargets = errors.New("no target areas resolved")
)

// ResolveTargets resolves the nodes an operation applies to, in the
// fixed priority order: explicit name mention in the prompt, then the
// current node selection, then all nodes of the selected groups.
func ResolveTargets(prompt string, sel program.Selection, snap *program.Context) []program.AreaNode {
	if n := findMentionedNode(prompt, snap); n != nil {
		return []program.AreaNode{*n}
	}
	if len(sel.NodeIDs) > 0 {
		var nodes []program.AreaNode
		for _, id := range sel.NodeIDs {
			if n := snap.NodeByID(id); n != nil {
				nodes = append(nodes, *n)
			}
		}
		if len(nodes) > 0 {
			return nodes
		}
	}
	if len(sel.GroupIDs) > 0 {
		return snap.NodesInGroups(sel.GroupIDs)
	}
	return nil
}

// findMentionedNode looks for an explicit node id or name inside the
// prompt. Longer names are checked first so "Hotel Rooms" wins over
// "Hotel".
func findMentionedNode(prompt string, snap *program.Context) *program.AreaNode {
	lower := " " + strings.ToLower(prompt) + " "
	var best *program.AreaNode
	for i := range snap.Nodes {
		n := &snap.Nodes[i]
		if n.ID != "" && containsWord(lower, strings.ToLower(n.ID)) {
			return n
		}
		if n.Name == "" || !containsWord(lower, strings.ToLower(n.Name)) {
			continue
		}
		if best == nil || len(n.Name) > len(best.Name) {
			best = n
		}
	}
	return best
}
