package action

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spaceplan/internal/intent"
	"spaceplan/internal/oracle"
	"spaceplan/internal/program"
)

const organizeSystemPrompt = `You are an architectural programming assistant.
Group the listed spaces according to the user's criteria. Output JSON:

{
  "groups": [
    {"name": "<group name>", "color": "<hex color>", "members": ["<space name>", ...]}
  ]
}

Every space must appear in exactly one group. Use the space names exactly as
given. Output only the JSON object.`

// functionalCategory is one bucket of the deterministic grouping
// strategy. Order matters: earlier categories win when keywords
// overlap.
type functionalCategory struct {
	Name     string
	Color    string
	Keywords []string
}

var functionalCategories = []functionalCategory{
	{Name: "Circulation", Color: "#9e9e9e", Keywords: []string{"circulation", "corridor", "stair", "elevator", "lift", "hallway", "lobby core"}},
	{Name: "Public", Color: "#4caf50", Keywords: []string{"lobby", "reception", "entrance", "foyer", "lounge", "cafe", "café", "restaurant", "bar", "retail", "shop", "gallery", "exhibition", "auditorium", "hall"}},
	{Name: "Work", Color: "#2196f3", Keywords: []string{"office", "workspace", "meeting", "conference", "studio", "classroom", "lab", "workshop", "coworking"}},
	{Name: "Accommodation", Color: "#ff9800", Keywords: []string{"room", "suite", "apartment", "unit", "bedroom", "guestroom", "dwelling", "ward", "dorm"}},
	{Name: "Support", Color: "#795548", Keywords: []string{"storage", "mechanical", "plant", "mep", "back of house", "boh", "kitchen", "laundry", "loading", "parking", "wc", "toilet", "restroom", "locker", "janitor", "server", "utility"}},
}

const uncategorizedName = "Other"
const uncategorizedColor = "#607d8b"

// FunctionalGroups buckets nodes by keyword. The result lists only
// non-empty groups, in the fixed category order with "Other" last.
func FunctionalGroups(nodes []program.AreaNode) []program.GroupSpec {
	assigned := make(map[string]bool, len(nodes))
	var specs []program.GroupSpec
	for _, cat := range functionalCategories {
		spec := program.GroupSpec{Name: cat.Name, Color: cat.Color}
		for _, n := range nodes {
			if assigned[n.ID] {
				continue
			}
			lower := strings.ToLower(n.Name)
			for _, kw := range cat.Keywords {
				if strings.Contains(lower, kw) {
					spec.Members = append(spec.Members, n.ID)
					assigned[n.ID] = true
					break
				}
			}
		}
		if len(spec.Members) > 0 {
			specs = append(specs, spec)
		}
	}
	other := program.GroupSpec{Name: uncategorizedName, Color: uncategorizedColor}
	for _, n := range nodes {
		if !assigned[n.ID] {
			other.Members = append(other.Members, n.ID)
		}
	}
	if len(other.Members) > 0 {
		specs = append(specs, other)
	}
	return specs
}

// OrganizeAction groups the targeted areas. The default functional
// strategy is fully deterministic; custom criteria go through the
// oracle.
type OrganizeAction struct {
	oracle oracle.Oracle
	exec   *intent.Executor
	logger *zap.Logger
}

func NewOrganizeAction(o oracle.Oracle, exec *intent.Executor, logger *zap.Logger) *OrganizeAction {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrganizeAction{oracle: o, exec: exec, logger: logger.Named("action.organize")}
}

func (a *OrganizeAction) ID() string { return "organize" }

func (a *OrganizeAction) Triggers() []Trigger {
	return []Trigger{
		{Pattern: regexp.MustCompile(`(?i)\b(organi[sz]e|group|categori[sz]e|cluster|sort\s+into)\b`), Priority: 60},
	}
}

func (a *OrganizeAction) Requirement() SelectionRequirement { return RequireAny }

func (a *OrganizeAction) Validate(prompt string, sel program.Selection, snap *program.Context) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}
	if len(resolveOrganizeTargets(sel, snap)) == 0 {
		return ErrNoTargets
	}
	return nil
}

func (a *OrganizeAction) Execute(ctx context.Context, prompt string, sel program.Selection, snap *program.Context) (*Result, error) {
	nodes := resolveOrganizeTargets(sel, snap)
	if len(nodes) == 0 {
		return nil, ErrNoTargets
	}

	var (
		specs []program.GroupSpec
		err   error
	)
	if isFunctionalCriteria(prompt) {
		specs = FunctionalGroups(nodes)
		a.logger.Debug("functional grouping", zap.Int("nodes", len(nodes)), zap.Int("groups", len(specs)))
	} else {
		specs, err = a.organizeViaOracle(ctx, prompt, nodes)
		if err != nil {
			return nil, fmt.Errorf("organize: %w", err)
		}
	}
	if len(specs) == 0 {
		return &Result{Message: "No grouping could be derived from the targeted areas."}, nil
	}

	it := &program.PassthroughIntent{Proposals: GroupingProposals(specs)}
	out, err := a.exec.Execute(it, snap)
	if err != nil {
		return nil, fmt.Errorf("organize: %w", err)
	}
	return &Result{
		Intent:    it,
		Proposals: out.Proposals,
		Message:   fmt.Sprintf("Organized %d area(s) into %d group(s).", len(nodes), len(specs)),
		Warnings:  out.Warnings,
	}, nil
}

func (a *OrganizeAction) ToProposals(res *Result, sel program.Selection, snap *program.Context) ([]program.Proposal, error) {
	return res.Proposals, nil
}

// organizeViaOracle asks the model for a grouping and maps the returned
// member names back onto node ids, dropping names it cannot resolve.
func (a *OrganizeAction) organizeViaOracle(ctx context.Context, prompt string, nodes []program.AreaNode) ([]program.GroupSpec, error) {
	var b strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&b, "- %s (%.0f m²)\n", n.Name, n.TotalArea())
	}
	user := fmt.Sprintf("Criteria: %s\n\nSpaces:\n%s", prompt, b.String())

	raw, err := a.oracle.CompleteJSON(ctx, organizeSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Groups []wireGroup `json:"groups"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &wire); err != nil {
		return nil, fmt.Errorf("oracle returned malformed grouping JSON: %w", err)
	}

	byName := make(map[string]program.AreaNode, len(nodes))
	for _, n := range nodes {
		byName[strings.ToLower(n.Name)] = n
	}
	var specs []program.GroupSpec
	for _, g := range wire.Groups {
		if strings.TrimSpace(g.Name) == "" {
			continue
		}
		spec := program.GroupSpec{Name: g.Name, Color: g.Color}
		for _, member := range g.Members {
			if n, ok := byName[strings.ToLower(strings.TrimSpace(member))]; ok {
				spec.Members = append(spec.Members, n.ID)
			} else {
				a.logger.Warn("grouping references unknown space", zap.String("member", member))
			}
		}
		if len(spec.Members) > 0 {
			specs = append(specs, spec)
		}
	}
	return specs, nil
}

// GroupingProposals emits one create_groups proposal plus one
// assign_to_group per group. Group ids are minted here so the assign
// proposals can reference them before the groups exist.
func GroupingProposals(specs []program.GroupSpec) []program.Proposal {
	withIDs := make([]program.GroupSpec, len(specs))
	ids := make([]string, len(specs))
	for i, s := range specs {
		ids[i] = uuid.NewString()
		s.ID = ids[i]
		withIDs[i] = s
	}

	proposals := []program.Proposal{{
		ID:      uuid.NewString(),
		Kind:    program.ProposalCreateGroups,
		Status:  program.StatusPending,
		Summary: fmt.Sprintf("Create %d group(s)", len(specs)),
		Payload: program.CreateGroupsPayload{Groups: withIDs},
	}}
	for i, s := range withIDs {
		proposals = append(proposals, program.Proposal{
			ID:      uuid.NewString(),
			Kind:    program.ProposalAssignToGroup,
			Status:  program.StatusPending,
			Summary: fmt.Sprintf("Assign %d area(s) to %q", len(s.Members), s.Name),
			Payload: program.AssignToGroupPayload{GroupID: ids[i], NodeIDs: s.Members},
		})
	}
	return proposals
}

// resolveOrganizeTargets prefers the selection and falls back to the
// whole snapshot: organizing everything is the common case.
func resolveOrganizeTargets(sel program.Selection, snap *program.Context) []program.AreaNode {
	if snap == nil {
		return nil
	}
	if !sel.IsEmpty() {
		var nodes []program.AreaNode
		for _, id := range sel.NodeIDs {
			if n := snap.NodeByID(id); n != nil {
				nodes = append(nodes, *n)
			}
		}
		nodes = append(nodes, snap.NodesInGroups(sel.GroupIDs)...)
		return dedupeNodes(nodes)
	}
	return append([]program.AreaNode(nil), snap.Nodes...)
}

func dedupeNodes(nodes []program.AreaNode) []program.AreaNode {
	seen := make(map[string]bool, len(nodes))
	out := nodes[:0]
	for _, n := range nodes {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return out
}

func isFunctionalCriteria(prompt string) bool {
	lower := strings.ToLower(prompt)
	if containsWord(lower, "by") && (containsWord(lower, "function") || containsWord(lower, "use") || containsWord(lower, "type")) {
		return true
	}
	// A bare "organize" or "group these" defaults to the functional
	// strategy.
	return !strings.Contains(lower, " by ") && !containsWord(lower, "into")
}
