package program

// ProposalStatus is the acceptance state of a proposal. Only the external
// acceptance step transitions it; the core always emits pending.
type ProposalStatus string

const (
	StatusPending  ProposalStatus = "pending"
	StatusAccepted ProposalStatus = "accepted"
	StatusRejected ProposalStatus = "rejected"
	StatusModified ProposalStatus = "modified"
)

// ProposalKind discriminates the Proposal payload variants.
type ProposalKind string

const (
	ProposalCreateAreas          ProposalKind = "create_areas"
	ProposalSplitArea            ProposalKind = "split_area"
	ProposalSplitByQuantity      ProposalKind = "split_by_quantity"
	ProposalMergeAreas           ProposalKind = "merge_areas"
	ProposalUpdateAreas          ProposalKind = "update_areas"
	ProposalCreateGroups         ProposalKind = "create_groups"
	ProposalAssignToGroup        ProposalKind = "assign_to_group"
	ProposalAddNotes             ProposalKind = "add_notes"
	ProposalSplitGroupEqual      ProposalKind = "split_group_equal"
	ProposalSplitGroupProportion ProposalKind = "split_group_proportion"
	ProposalMergeGroupAreas      ProposalKind = "merge_group_areas"
)

// Proposal is a fully computed, ready-to-apply candidate mutation. The
// payload is immutable once built; only Status transitions, and only by
// the external acceptance step.
type Proposal struct {
	ID      string          `json:"id"`
	Kind    ProposalKind    `json:"kind"`
	Status  ProposalStatus  `json:"status"`
	Summary string          `json:"summary"`
	Payload ProposalPayload `json:"payload"`
}

// ProposalPayload is the variant-specific payload of a proposal.
type ProposalPayload interface {
	PayloadKind() ProposalKind
	payload()
}

// AreaSpec is a fully computed area entry inside a create or split
// payload. AreaPerUnit is final; nothing downstream recomputes it.
type AreaSpec struct {
	Name        string  `json:"name"`
	AreaPerUnit float64 `json:"areaPerUnit"`
	Count       int     `json:"count"`
	Notes       string  `json:"notes,omitempty"`
	GroupName   string  `json:"groupName,omitempty"`
}

// TotalArea returns AreaPerUnit * Count.
func (a AreaSpec) TotalArea() float64 {
	return a.AreaPerUnit * float64(a.Count)
}

// AreaUpdate rewrites one existing node's numbers.
type AreaUpdate struct {
	NodeID      string  `json:"nodeId"`
	Name        string  `json:"name,omitempty"`
	AreaPerUnit float64 `json:"areaPerUnit"`
	Count       int     `json:"count"`
}

// QuantityPart is one slice of a split-by-quantity.
type QuantityPart struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NodeNote attaches provenance text to one node.
type NodeNote struct {
	NodeID string `json:"nodeId"`
	Note   string `json:"note"`
}

// CreateAreasPayload creates new nodes (and optionally groups alongside).
type CreateAreasPayload struct {
	TargetTotal float64     `json:"targetTotal"`
	Areas       []AreaSpec  `json:"areas"`
	Groups      []GroupSpec `json:"groups,omitempty"`
}

// SplitAreaPayload replaces a source node with finer parts.
type SplitAreaPayload struct {
	SourceNodeID string     `json:"sourceNodeId"`
	Parts        []AreaSpec `json:"parts"`
}

// SplitByQuantityPayload partitions a node's count across linked parts.
type SplitByQuantityPayload struct {
	SourceNodeID string         `json:"sourceNodeId"`
	AreaPerUnit  float64        `json:"areaPerUnit"`
	Parts        []QuantityPart `json:"parts"`
}

// MergeAreasPayload collapses the source nodes into one node.
type MergeAreasPayload struct {
	SourceNodeIDs []string `json:"sourceNodeIds"`
	Name          string   `json:"name"`
	AreaPerUnit   float64  `json:"areaPerUnit"`
	Count         int      `json:"count"`
}

// UpdateAreasPayload rewrites numbers on existing nodes.
type UpdateAreasPayload struct {
	Updates []AreaUpdate `json:"updates"`
}

// CreateGroupsPayload creates new groups.
type CreateGroupsPayload struct {
	Groups []GroupSpec `json:"groups"`
}

// AssignToGroupPayload moves existing nodes into an existing group.
type AssignToGroupPayload struct {
	GroupID string   `json:"groupId"`
	NodeIDs []string `json:"nodeIds"`
}

// AddNotesPayload attaches provenance notes to existing nodes.
type AddNotesPayload struct {
	Notes []NodeNote `json:"notes"`
}

// SplitGroupEqualPayload redistributes a group's target total equally
// across its member nodes.
type SplitGroupEqualPayload struct {
	GroupID     string       `json:"groupId"`
	TargetTotal float64      `json:"targetTotal"`
	Updates     []AreaUpdate `json:"updates"`
}

// SplitGroupProportionPayload redistributes a group's target total across
// its members proportionally to their current areas.
type SplitGroupProportionPayload struct {
	GroupID     string       `json:"groupId"`
	TargetTotal float64      `json:"targetTotal"`
	Updates     []AreaUpdate `json:"updates"`
}

// MergeGroupAreasPayload collapses all members of a group into one node.
type MergeGroupAreasPayload struct {
	GroupID       string   `json:"groupId"`
	Name          string   `json:"name"`
	AreaPerUnit   float64  `json:"areaPerUnit"`
	Count         int      `json:"count"`
	ReplacedNodes []string `json:"replacedNodes"`
}

func (CreateAreasPayload) PayloadKind() ProposalKind          { return ProposalCreateAreas }
func (SplitAreaPayload) PayloadKind() ProposalKind            { return ProposalSplitArea }
func (SplitByQuantityPayload) PayloadKind() ProposalKind      { return ProposalSplitByQuantity }
func (MergeAreasPayload) PayloadKind() ProposalKind           { return ProposalMergeAreas }
func (UpdateAreasPayload) PayloadKind() ProposalKind          { return ProposalUpdateAreas }
func (CreateGroupsPayload) PayloadKind() ProposalKind         { return ProposalCreateGroups }
func (AssignToGroupPayload) PayloadKind() ProposalKind        { return ProposalAssignToGroup }
func (AddNotesPayload) PayloadKind() ProposalKind             { return ProposalAddNotes }
func (SplitGroupEqualPayload) PayloadKind() ProposalKind      { return ProposalSplitGroupEqual }
func (SplitGroupProportionPayload) PayloadKind() ProposalKind { return ProposalSplitGroupProportion }
func (MergeGroupAreasPayload) PayloadKind() ProposalKind      { return ProposalMergeGroupAreas }

func (CreateAreasPayload) payload()          {}
func (SplitAreaPayload) payload()            {}
func (SplitByQuantityPayload) payload()      {}
func (MergeAreasPayload) payload()           {}
func (UpdateAreasPayload) payload()          {}
func (CreateGroupsPayload) payload()         {}
func (AssignToGroupPayload) payload()        {}
func (AddNotesPayload) payload()             {}
func (SplitGroupEqualPayload) payload()      {}
func (SplitGroupProportionPayload) payload() {}
func (MergeGroupAreasPayload) payload()      {}
