package program

// IntentKind discriminates the Intent variants.
type IntentKind string

const (
	IntentCreateProgram   IntentKind = "create_program"
	IntentSplitArea       IntentKind = "split_area"
	IntentSplitByQuantity IntentKind = "split_by_quantity"
	IntentMergeAreas      IntentKind = "merge_areas"
	IntentRedistribute    IntentKind = "redistribute"
	IntentAdjustPercent   IntentKind = "adjust_percent"
	IntentPassthrough     IntentKind = "passthrough"
)

// Intent is what the oracle wants, expressed abstractly: ratios,
// percentages, fixed areas, operation keywords. It never carries final
// computed numbers; only the intent executor produces those.
//
// Implementations are the *Intent structs below. Consumers type-switch
// over the concrete variants; the executor's switch has a default branch
// that rejects unknown kinds so a new variant cannot slip through
// silently.
type Intent interface {
	Kind() IntentKind
	intent()
}

// IntentEntry is one requested area line inside a create or split intent.
// Exactly one of Ratio/FixedArea is normally set; a missing ratio means
// an equal share of whatever remains.
type IntentEntry struct {
	Name string `json:"name"`

	// Ratio is the requested share of the remaining area. Values greater
	// than 1 are read as percentages (70 means 0.70).
	Ratio    float64 `json:"ratio,omitempty"`
	HasRatio bool    `json:"-"`

	// FixedArea is an explicit total for this entry, taken off the top
	// before ratios are allocated.
	FixedArea    float64 `json:"fixedArea,omitempty"`
	HasFixedArea bool    `json:"-"`

	// Count defaults to 1 when zero.
	Count int `json:"count,omitempty"`

	Notes     string `json:"notes,omitempty"`
	GroupName string `json:"groupName,omitempty"`
}

// EffectiveCount returns Count, defaulting to 1.
func (e IntentEntry) EffectiveCount() int {
	if e.Count < 1 {
		return 1
	}
	return e.Count
}

// GroupSpec describes a group the oracle wants created, by member names
// (the members may not exist yet at intent time).
type GroupSpec struct {
	// ID is set when the proposal mints the group id up front so later
	// proposals in the same batch can reference it; empty otherwise.
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name"`
	Color   string   `json:"color,omitempty"`
	Members []string `json:"members,omitempty"`
}

// CreateProgramIntent creates a fresh set of areas summing to TargetTotal.
type CreateProgramIntent struct {
	TargetTotal float64       `json:"targetTotal"`
	Entries     []IntentEntry `json:"areas"`
	Groups      []GroupSpec   `json:"groups,omitempty"`
	Typology    string        `json:"typology,omitempty"`
}

// SplitAreaIntent splits one existing node into finer entries whose
// computed totals sum exactly to the source node's total.
type SplitAreaIntent struct {
	SourceNodeID string        `json:"sourceNodeId"`
	Entries      []IntentEntry `json:"areas"`
}

// SplitByQuantityIntent partitions a node's count, leaving per-unit area
// untouched. Quantities must sum exactly to the source count.
type SplitByQuantityIntent struct {
	SourceNodeID string   `json:"sourceNodeId"`
	Quantities   []int    `json:"quantities"`
	Names        []string `json:"names,omitempty"`
}

// MergeAreasIntent collapses two or more nodes into a single entry whose
// fixed total is the sum of the sources.
type MergeAreasIntent struct {
	SourceNodeIDs []string `json:"sourceNodeIds"`
	Name          string   `json:"name,omitempty"`
}

// RedistributeIntent applies a uniform multiplicative factor to the
// selected nodes (or all nodes when none are named).
type RedistributeIntent struct {
	NodeIDs []string `json:"nodeIds,omitempty"`
	Factor  float64  `json:"factor"`
}

// AdjustPercentIntent changes the selected nodes by a signed percentage
// (+10 grows by 10%, -25 shrinks by a quarter).
type AdjustPercentIntent struct {
	NodeIDs []string `json:"nodeIds,omitempty"`
	Percent float64  `json:"percent"`
}

// PassthroughIntent forwards already-computed proposals unchanged. Legacy
// compatibility path; no math runs.
type PassthroughIntent struct {
	Proposals []Proposal `json:"proposals"`
}

func (CreateProgramIntent) Kind() IntentKind   { return IntentCreateProgram }
func (SplitAreaIntent) Kind() IntentKind       { return IntentSplitArea }
func (SplitByQuantityIntent) Kind() IntentKind { return IntentSplitByQuantity }
func (MergeAreasIntent) Kind() IntentKind      { return IntentMergeAreas }
func (RedistributeIntent) Kind() IntentKind    { return IntentRedistribute }
func (AdjustPercentIntent) Kind() IntentKind   { return IntentAdjustPercent }
func (PassthroughIntent) Kind() IntentKind     { return IntentPassthrough }

func (CreateProgramIntent) intent()   {}
func (SplitAreaIntent) intent()       {}
func (SplitByQuantityIntent) intent() {}
func (MergeAreasIntent) intent()      {}
func (RedistributeIntent) intent()    {}
func (AdjustPercentIntent) intent()   {}
func (PassthroughIntent) intent()     {}
