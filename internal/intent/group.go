package intent

import (
	"fmt"
	"strings"

	"spaceplan/internal/program"
)

// Group operations are deterministic: they never involve the oracle and
// reuse the exact allocation math, so redistributed group totals obey the
// same rounding and residual-correction rules as fresh programs.

// SplitGroupEqual redistributes targetTotal equally across the members of
// a group. A non-positive target keeps the group's current total.
func (e *Executor) SplitGroupEqual(snap *program.Context, groupID string, targetTotal float64) (*Outcome, error) {
	grp, members, err := groupMembers(snap, groupID)
	if err != nil {
		return nil, err
	}
	if targetTotal <= 0 {
		targetTotal = nodesTotal(members)
	}

	entries := make([]program.IntentEntry, len(members))
	for i, m := range members {
		entries[i] = program.IntentEntry{Name: m.Name, Count: m.Count}
	}
	computed, adj := CalculateExactAreas(entries, targetTotal)
	e.logAdjustments("split_group_equal", targetTotal, adj)

	payload := program.SplitGroupEqualPayload{
		GroupID:     grp.ID,
		TargetTotal: targetTotal,
		Updates:     toUpdates(members, computed),
	}
	return &Outcome{
		Proposals: []program.Proposal{newProposal(payload,
			fmt.Sprintf("Split %.0f m² equally across the %d members of %q", targetTotal, len(members), grp.Name))},
		Message: fmt.Sprintf("Distributed %.0f m² equally across %q (%d areas).", targetTotal, grp.Name, len(members)),
	}, nil
}

// SplitGroupProportion redistributes targetTotal across the members of a
// group proportionally to their current areas.
func (e *Executor) SplitGroupProportion(snap *program.Context, groupID string, targetTotal float64) (*Outcome, error) {
	grp, members, err := groupMembers(snap, groupID)
	if err != nil {
		return nil, err
	}
	current := nodesTotal(members)
	if current <= 0 {
		return nil, fmt.Errorf("group %q has no area to distribute proportionally", grp.Name)
	}
	if targetTotal <= 0 {
		targetTotal = current
	}

	entries := make([]program.IntentEntry, len(members))
	for i, m := range members {
		entries[i] = program.IntentEntry{
			Name:     m.Name,
			Count:    m.Count,
			Ratio:    m.TotalArea() / current,
			HasRatio: true,
		}
	}
	computed, adj := CalculateExactAreas(entries, targetTotal)
	e.logAdjustments("split_group_proportion", targetTotal, adj)

	payload := program.SplitGroupProportionPayload{
		GroupID:     grp.ID,
		TargetTotal: targetTotal,
		Updates:     toUpdates(members, computed),
	}
	return &Outcome{
		Proposals: []program.Proposal{newProposal(payload,
			fmt.Sprintf("Redistribute %.0f m² proportionally across the %d members of %q", targetTotal, len(members), grp.Name))},
		Message: fmt.Sprintf("Redistributed %.0f m² across %q keeping current proportions.", targetTotal, grp.Name),
	}, nil
}

// MergeGroupAreas collapses all members of a group into a single node
// whose total is the exact sum of the members.
func (e *Executor) MergeGroupAreas(snap *program.Context, groupID, name string) (*Outcome, error) {
	grp, members, err := groupMembers(snap, groupID)
	if err != nil {
		return nil, err
	}
	if len(members) < 2 {
		return nil, fmt.Errorf("group %q has %d member(s); merging needs at least two", grp.Name, len(members))
	}

	sum := nodesTotal(members)
	if strings.TrimSpace(name) == "" {
		name = grp.Name
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}

	payload := program.MergeGroupAreasPayload{
		GroupID:       grp.ID,
		Name:          name,
		AreaPerUnit:   sum,
		Count:         1,
		ReplacedNodes: ids,
	}
	return &Outcome{
		Proposals: []program.Proposal{newProposal(payload,
			fmt.Sprintf("Merge the %d members of %q into %q (%.0f m²)", len(members), grp.Name, name, sum))},
		Message: fmt.Sprintf("Merged %q into a single %.0f m² area %q.", grp.Name, sum, name),
	}, nil
}

func groupMembers(snap *program.Context, groupID string) (*program.Group, []program.AreaNode, error) {
	grp := snap.GroupByID(groupID)
	if grp == nil {
		grp = snap.GroupByName(groupID)
	}
	if grp == nil {
		return nil, nil, fmt.Errorf("group %q does not exist", groupID)
	}
	members := snap.NodesInGroups([]string{grp.ID})
	if len(members) == 0 {
		return nil, nil, fmt.Errorf("group %q has no members", grp.Name)
	}
	return grp, members, nil
}

func nodesTotal(nodes []program.AreaNode) float64 {
	var sum float64
	for _, n := range nodes {
		sum += n.TotalArea()
	}
	return sum
}

func toUpdates(members []program.AreaNode, computed []Computed) []program.AreaUpdate {
	updates := make([]program.AreaUpdate, len(computed))
	for i, c := range computed {
		updates[i] = program.AreaUpdate{
			NodeID:      members[i].ID,
			Name:        c.Name,
			AreaPerUnit: c.AreaPerUnit,
			Count:       c.Count,
		}
	}
	return updates
}
