package intent

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spaceplan/internal/program"
)

// Outcome is what executing a valid intent yields: zero or more fully
// computed proposals plus a human-readable message.
type Outcome struct {
	Proposals []program.Proposal
	Message   string
	Warnings  []string
}

// Executor turns validated intents into proposals. It is stateless; one
// instance serves all turns.
type Executor struct {
	logger *zap.Logger
}

// NewExecutor creates an executor. A nil logger is replaced by a no-op.
func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger.Named("intent")}
}

// Execute validates the intent and dispatches per variant. Invalid
// intents come back as *ValidationError and no math runs; the intent is
// never partially applied.
func (e *Executor) Execute(in program.Intent, snap *program.Context) (*Outcome, error) {
	v := ValidateIntent(in, snap)
	if !v.Valid {
		return nil, &ValidationError{Kind: in.Kind(), Errors: v.Errors}
	}

	var (
		out *Outcome
		err error
	)
	switch it := in.(type) {
	case *program.CreateProgramIntent:
		out = e.executeCreate(it)
	case *program.SplitAreaIntent:
		out = e.executeSplitArea(it, snap)
	case *program.SplitByQuantityIntent:
		out = e.executeSplitByQuantity(it, snap)
	case *program.MergeAreasIntent:
		out = e.executeMerge(it, snap)
	case *program.RedistributeIntent:
		out = e.executeUniform(it.NodeIDs, it.Factor, snap, fmt.Sprintf("Redistribute by factor %.3g", it.Factor))
	case *program.AdjustPercentIntent:
		out = e.executeUniform(it.NodeIDs, 1+it.Percent/100, snap, fmt.Sprintf("Adjust by %+.1f%%", it.Percent))
	case *program.PassthroughIntent:
		out = &Outcome{Proposals: it.Proposals, Message: fmt.Sprintf("Forwarded %d precomputed proposal(s)", len(it.Proposals))}
	default:
		err = fmt.Errorf("no executor for intent kind %q", in.Kind())
	}
	if err != nil {
		return nil, err
	}
	out.Warnings = append(v.Warnings, out.Warnings...)
	return out, nil
}

func (e *Executor) executeCreate(it *program.CreateProgramIntent) *Outcome {
	computed, adj := CalculateExactAreas(it.Entries, it.TargetTotal)
	e.logAdjustments("create_program", it.TargetTotal, adj)

	payload := program.CreateAreasPayload{
		TargetTotal: it.TargetTotal,
		Areas:       toAreaSpecs(computed),
		Groups:      it.Groups,
	}
	out := &Outcome{
		Proposals: []program.Proposal{newProposal(payload,
			fmt.Sprintf("Create %d areas totalling %.0f m²", len(payload.Areas), it.TargetTotal))},
		Message: describeAreas(payload.Areas, it.TargetTotal),
	}
	if adj.Remaining < 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("fixed areas exceed the %.0f m² target by %.0f m²", it.TargetTotal, -adj.Remaining))
	}
	if len(it.Groups) > 0 {
		out.Proposals = append(out.Proposals, newProposal(
			program.CreateGroupsPayload{Groups: it.Groups},
			fmt.Sprintf("Create %d group(s)", len(it.Groups))))
	}
	return out
}

func (e *Executor) executeSplitArea(it *program.SplitAreaIntent, snap *program.Context) *Outcome {
	src := snap.NodeByID(it.SourceNodeID)
	target := src.TotalArea()
	computed, adj := CalculateExactAreas(it.Entries, target)
	e.logAdjustments("split_area", target, adj)

	payload := program.SplitAreaPayload{
		SourceNodeID: src.ID,
		Parts:        toAreaSpecs(computed),
	}
	return &Outcome{
		Proposals: []program.Proposal{newProposal(payload,
			fmt.Sprintf("Split %q into %d parts (%.0f m² preserved)", src.Name, len(payload.Parts), target))},
		Message: fmt.Sprintf("Split %q (%.0f m²) into %d parts.", src.Name, target, len(payload.Parts)),
	}
}

func (e *Executor) executeSplitByQuantity(it *program.SplitByQuantityIntent, snap *program.Context) *Outcome {
	src := snap.NodeByID(it.SourceNodeID)

	parts := make([]program.QuantityPart, len(it.Quantities))
	for i, q := range it.Quantities {
		name := ""
		if i < len(it.Names) {
			name = strings.TrimSpace(it.Names[i])
		}
		if name == "" {
			// Unnamed splits follow the source: "X", "X (2)", "X (3)".
			if i == 0 {
				name = src.Name
			} else {
				name = fmt.Sprintf("%s (%d)", src.Name, i+1)
			}
		}
		parts[i] = program.QuantityPart{Name: name, Count: q}
	}

	payload := program.SplitByQuantityPayload{
		SourceNodeID: src.ID,
		AreaPerUnit:  src.AreaPerUnit,
		Parts:        parts,
	}
	return &Outcome{
		Proposals: []program.Proposal{newProposal(payload,
			fmt.Sprintf("Split %q (%d units) into %d linked entries", src.Name, src.Count, len(parts)))},
		Message: fmt.Sprintf("Split the %d units of %q into %d entries; per-unit area stays %.0f m².",
			src.Count, src.Name, len(parts), src.AreaPerUnit),
	}
}

func (e *Executor) executeMerge(it *program.MergeAreasIntent, snap *program.Context) *Outcome {
	var (
		sum   float64
		names []string
	)
	for _, id := range it.SourceNodeIDs {
		n := snap.NodeByID(id)
		sum += n.TotalArea()
		names = append(names, n.Name)
	}

	name := strings.TrimSpace(it.Name)
	if name == "" {
		name = strings.Join(names, " + ")
	}

	payload := program.MergeAreasPayload{
		SourceNodeIDs: it.SourceNodeIDs,
		Name:          name,
		AreaPerUnit:   sum,
		Count:         1,
	}
	return &Outcome{
		Proposals: []program.Proposal{newProposal(payload,
			fmt.Sprintf("Merge %d areas into %q (%.0f m²)", len(names), name, sum))},
		Message: fmt.Sprintf("Merged %s into %q with a combined %.0f m².", strings.Join(names, ", "), name, sum),
	}
}

// executeUniform applies a multiplicative factor across the referenced
// nodes (all nodes when none are named), with the residual correction
// applied to the first updated entry.
func (e *Executor) executeUniform(nodeIDs []string, factor float64, snap *program.Context, label string) *Outcome {
	nodes := resolveNodes(nodeIDs, snap)

	var desired float64
	updates := make([]program.AreaUpdate, len(nodes))
	for i, n := range nodes {
		desired += n.TotalArea() * factor
		updates[i] = program.AreaUpdate{
			NodeID:      n.ID,
			Name:        n.Name,
			AreaPerUnit: math.Max(1, math.Round(n.AreaPerUnit*factor)),
			Count:       n.Count,
		}
	}

	// Same exact-correction rule as allocation: the whole residual lands
	// on the first updated entry, clamped at 1 m² per unit.
	var achieved float64
	for _, u := range updates {
		achieved += u.AreaPerUnit * float64(u.Count)
	}
	if residual := desired - achieved; residual != 0 && len(updates) > 0 {
		corrected := updates[0].AreaPerUnit + residual/float64(updates[0].Count)
		if corrected < 1 {
			corrected = 1
		}
		e.logger.Debug("uniform residual correction",
			zap.Float64("residual", residual),
			zap.String("applied_to", updates[0].Name))
		updates[0].AreaPerUnit = corrected
	}

	payload := program.UpdateAreasPayload{Updates: updates}
	return &Outcome{
		Proposals: []program.Proposal{newProposal(payload,
			fmt.Sprintf("%s across %d area(s)", label, len(updates)))},
		Message: fmt.Sprintf("%s: updated %d area(s), new total %.0f m².", label, len(updates), desired),
	}
}

func (e *Executor) logAdjustments(op string, target float64, adj Adjustments) {
	if adj.Remaining < 0 {
		e.logger.Warn("explicit areas exceed target",
			zap.String("op", op),
			zap.Float64("target", target),
			zap.Float64("explicit_sum", adj.ExplicitSum))
	}
	if adj.RescaleFactor != 1 {
		e.logger.Info("global rescale applied",
			zap.String("op", op),
			zap.Float64("factor", adj.RescaleFactor))
	}
	if adj.ResidualDelta != 0 {
		e.logger.Debug("residual correction applied",
			zap.String("op", op),
			zap.Float64("delta", adj.ResidualDelta),
			zap.String("entry", adj.ResidualAppliedTo))
	}
}

// resolveNodes returns the referenced nodes, or every node in the
// snapshot when no ids are given. Validation has already confirmed the
// ids exist.
func resolveNodes(nodeIDs []string, snap *program.Context) []program.AreaNode {
	if len(nodeIDs) == 0 {
		return snap.Nodes
	}
	nodes := make([]program.AreaNode, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if n := snap.NodeByID(id); n != nil {
			nodes = append(nodes, *n)
		}
	}
	return nodes
}

func toAreaSpecs(computed []Computed) []program.AreaSpec {
	specs := make([]program.AreaSpec, len(computed))
	for i, c := range computed {
		specs[i] = program.AreaSpec{
			Name:        c.Name,
			AreaPerUnit: c.AreaPerUnit,
			Count:       c.Count,
			Notes:       c.Notes,
			GroupName:   c.GroupName,
		}
	}
	return specs
}

func newProposal(payload program.ProposalPayload, summary string) program.Proposal {
	return program.Proposal{
		ID:      uuid.New().String(),
		Kind:    payload.PayloadKind(),
		Status:  program.StatusPending,
		Summary: summary,
		Payload: payload,
	}
}

func describeAreas(areas []program.AreaSpec, target float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Proposed %d areas for a %.0f m² program:", len(areas), target)
	for _, a := range areas {
		if a.Count > 1 {
			fmt.Fprintf(&b, "\n- %s: %d × %.0f m² = %.0f m²", a.Name, a.Count, a.AreaPerUnit, a.TotalArea())
		} else {
			fmt.Fprintf(&b, "\n- %s: %.0f m²", a.Name, a.AreaPerUnit)
		}
	}
	return b.String()
}
