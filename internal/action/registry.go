package action

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"spaceplan/internal/brief"
	"spaceplan/internal/program"
	"spaceplan/internal/typology"
)

// Match is a successful classification: the chosen action and the
// trigger (or inference rule) that selected it.
type Match struct {
	Action   Action
	Priority int
	Rule     string // pattern text or "fallback:<reason>"
}

// Registry holds the registered actions and classifies prompts against
// them.
type Registry struct {
	actions map[string]Action
	logger  *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		actions: make(map[string]Action),
		logger:  logger.Named("registry"),
	}
}

// Register adds an action. Duplicate ids are rejected.
func (r *Registry) Register(a Action) error {
	if a.ID() == "" {
		return fmt.Errorf("action has no id")
	}
	if _, exists := r.actions[a.ID()]; exists {
		return fmt.Errorf("action %q already registered", a.ID())
	}
	r.actions[a.ID()] = a
	return nil
}

// MustRegister registers an action and panics on error. For static
// registration at startup.
func (r *Registry) MustRegister(a Action) {
	if err := r.Register(a); err != nil {
		panic(fmt.Sprintf("failed to register action %s: %v", a.ID(), err))
	}
}

// Get returns an action by id, or nil.
func (r *Registry) Get(id string) Action {
	return r.actions[id]
}

type candidate struct {
	action  Action
	trigger Trigger
}

// sortedCandidates lists every trigger across the registered actions in
// descending priority, tie-broken by action id for determinism.
func (r *Registry) sortedCandidates() []candidate {
	var candidates []candidate
	for _, a := range r.actions {
		for _, t := range a.Triggers() {
			candidates = append(candidates, candidate{a, t})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].trigger.Priority != candidates[j].trigger.Priority {
			return candidates[i].trigger.Priority > candidates[j].trigger.Priority
		}
		return candidates[i].action.ID() < candidates[j].action.ID()
	})
	return candidates
}

// Classify picks the best action for a prompt. Triggers are checked in
// descending priority; a trigger only wins when its pattern matches AND
// the action's selection requirement is satisfied. When no trigger
// fires, content-based fallback inference runs. Returns nil when
// nothing is inferable; the caller must ask for clarification.
func (r *Registry) Classify(prompt string, sel program.Selection, snap *program.Context) *Match {
	for _, c := range r.sortedCandidates() {
		if !c.trigger.Pattern.MatchString(prompt) {
			continue
		}
		if !c.action.Requirement().Satisfied(sel) {
			r.logger.Debug("trigger matched but selection requirement unmet",
				zap.String("action", c.action.ID()),
				zap.String("pattern", c.trigger.Pattern.String()))
			continue
		}
		r.logger.Debug("classified by trigger",
			zap.String("action", c.action.ID()),
			zap.Int("priority", c.trigger.Priority))
		return &Match{Action: c.action, Priority: c.trigger.Priority, Rule: c.trigger.Pattern.String()}
	}

	return r.inferFallback(prompt, sel, snap)
}

// BlockedMatch returns the highest-priority action whose trigger matches
// the prompt but whose selection requirement is unmet, or nil. It lets
// callers explain why a recognizable request cannot run as-is; pair it
// with RequirementError for the user-facing message.
func (r *Registry) BlockedMatch(prompt string, sel program.Selection) *Match {
	for _, c := range r.sortedCandidates() {
		if !c.trigger.Pattern.MatchString(prompt) {
			continue
		}
		if c.action.Requirement().Satisfied(sel) {
			continue
		}
		return &Match{Action: c.action, Priority: c.trigger.Priority, Rule: c.trigger.Pattern.String()}
	}
	return nil
}

// inferFallback is the explicit content-based second stage: brief-like
// shape routes to parse_brief, a typology keyword routes to create, an
// active selection plus a scaling verb routes to scale.
func (r *Registry) inferFallback(prompt string, sel program.Selection, snap *program.Context) *Match {
	cls := brief.Analyze(prompt)
	if cls.Category == brief.CategoryStructured || cls.Category == brief.CategoryDirty {
		if a := r.actions["parse_brief"]; a != nil {
			r.logger.Debug("fallback: brief-like shape", zap.String("category", string(cls.Category)))
			return &Match{Action: a, Rule: "fallback:brief_shape"}
		}
	}
	if typology.FindMention(prompt) != nil {
		if a := r.actions["create"]; a != nil {
			r.logger.Debug("fallback: typology keyword")
			return &Match{Action: a, Rule: "fallback:typology_keyword"}
		}
	}
	if !sel.IsEmpty() && scaleDirectiveRe.MatchString(prompt) {
		if a := r.actions["scale"]; a != nil {
			r.logger.Debug("fallback: selection plus scaling verb")
			return &Match{Action: a, Rule: "fallback:selection_verb"}
		}
	}
	r.logger.Debug("no action inferable", zap.Int("prompt_len", len(prompt)))
	return nil
}

// RequirementError explains why an otherwise-matched action is currently
// inapplicable given the selection.
func (r *Registry) RequirementError(actionID string, sel program.Selection) string {
	a := r.actions[actionID]
	if a == nil {
		return fmt.Sprintf("unknown action %q", actionID)
	}
	switch a.Requirement() {
	case RequireSingle:
		if len(sel.NodeIDs) == 0 {
			return fmt.Sprintf("%q requires selecting a single area; nothing is selected", actionID)
		}
		return fmt.Sprintf("%q requires selecting exactly one area; %d are selected", actionID, len(sel.NodeIDs))
	case RequireMultiple:
		return fmt.Sprintf("%q requires selecting at least two areas; %d are selected", actionID, len(sel.NodeIDs))
	default:
		return fmt.Sprintf("%q is not applicable to the current selection", actionID)
	}
}

// containsWord reports whether lowerHaystack contains needle bounded by
// non-letter characters. Both inputs must already be lowercase.
func containsWord(lowerHaystack, needle string) bool {
	if needle == "" {
		return false
	}
	idx := 0
	for {
		i := strings.Index(lowerHaystack[idx:], needle)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(needle)
		beforeOK := start == 0 || !isWordByte(lowerHaystack[start-1])
		afterOK := end == len(lowerHaystack) || !isWordByte(lowerHaystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}
