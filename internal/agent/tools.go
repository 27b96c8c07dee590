package agent

import (
	"encoding/json"
	"fmt"

	"spaceplan/internal/oracle"
	"spaceplan/internal/program"
)

// Tool names form the contract with the oracle. Renaming one is a
// breaking change to every prompt that mentions it.
const (
	toolCreateProgram        = "create_program"
	toolSplitArea            = "split_area"
	toolSplitByQuantity      = "split_by_quantity"
	toolMergeAreas           = "merge_areas"
	toolAdjustPercent        = "adjust_percent"
	toolScaleAreas           = "scale_areas"
	toolUnfoldArea           = "unfold_area"
	toolOrganizeAreas        = "organize_areas"
	toolParseBrief           = "parse_brief"
	toolSplitGroupEqual      = "split_group_equal"
	toolSplitGroupProportion = "split_group_proportion"
	toolMergeGroupAreas      = "merge_group_areas"
	toolRegroupFunctional    = "regroup_functional"
)

// Argument wire formats. Pointer fields distinguish absent from zero,
// matching the intent entry semantics.

type areaArg struct {
	Name      string   `json:"name"`
	Ratio     *float64 `json:"ratio"`
	FixedArea *float64 `json:"fixedArea"`
	Count     int      `json:"count"`
	Notes     string   `json:"notes"`
	Group     string   `json:"group"`
}

func (a areaArg) toEntry() program.IntentEntry {
	e := program.IntentEntry{Name: a.Name, Count: a.Count, Notes: a.Notes, GroupName: a.Group}
	if a.Ratio != nil {
		e.Ratio = *a.Ratio
		e.HasRatio = true
	}
	if a.FixedArea != nil {
		e.FixedArea = *a.FixedArea
		e.HasFixedArea = true
	}
	return e
}

func toEntries(areas []areaArg) []program.IntentEntry {
	entries := make([]program.IntentEntry, len(areas))
	for i, a := range areas {
		entries[i] = a.toEntry()
	}
	return entries
}

type groupArg struct {
	Name    string   `json:"name"`
	Color   string   `json:"color"`
	Members []string `json:"members"`
}

type createProgramArgs struct {
	TargetTotal float64    `json:"targetTotal"`
	Typology    string     `json:"typology"`
	Areas       []areaArg  `json:"areas"`
	Groups      []groupArg `json:"groups"`
}

type splitAreaArgs struct {
	SourceNodeID string    `json:"sourceNodeId"`
	SourceName   string    `json:"sourceName"`
	Areas        []areaArg `json:"areas"`
}

type splitByQuantityArgs struct {
	SourceNodeID string   `json:"sourceNodeId"`
	SourceName   string   `json:"sourceName"`
	Quantities   []int    `json:"quantities"`
	Names        []string `json:"names"`
}

type mergeAreasArgs struct {
	NodeIDs []string `json:"nodeIds"`
	Name    string   `json:"name"`
}

type adjustPercentArgs struct {
	NodeIDs []string `json:"nodeIds"`
	Percent float64  `json:"percent"`
}

type scaleAreasArgs struct {
	NodeIDs []string `json:"nodeIds"`
	Factor  float64  `json:"factor"`
}

type unfoldAreaArgs struct {
	NodeID   string `json:"nodeId"`
	Name     string `json:"name"`
	Guidance string `json:"guidance"`
}

type organizeAreasArgs struct {
	Strategy string `json:"strategy"`
	Criteria string `json:"criteria"`
}

type parseBriefArgs struct {
	Text string `json:"text"`
}

type groupTargetArgs struct {
	GroupID     string  `json:"groupId"`
	GroupName   string  `json:"groupName"`
	TargetTotal float64 `json:"targetTotal"`
}

type mergeGroupArgs struct {
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	Name      string `json:"name"`
}

// decodeArgs parses untrusted tool-call JSON into a typed argument
// struct. An empty payload decodes to the zero value.
func decodeArgs[T any](raw json.RawMessage) (*T, error) {
	var v T
	if len(raw) == 0 {
		return &v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return &v, nil
}

// Schema shorthands.

func objSchema(desc string, props map[string]*oracle.Schema, required ...string) *oracle.Schema {
	return &oracle.Schema{Type: "object", Description: desc, Properties: props, Required: required}
}

func strSchema(desc string) *oracle.Schema { return &oracle.Schema{Type: "string", Description: desc} }
func numSchema(desc string) *oracle.Schema { return &oracle.Schema{Type: "number", Description: desc} }
func intSchema(desc string) *oracle.Schema {
	return &oracle.Schema{Type: "integer", Description: desc}
}
func arrSchema(desc string, items *oracle.Schema) *oracle.Schema {
	return &oracle.Schema{Type: "array", Description: desc, Items: items}
}

func areaItemSchema() *oracle.Schema {
	return objSchema("One requested area line.", map[string]*oracle.Schema{
		"name":      strSchema("Space name."),
		"ratio":     numSchema("Share of the total. Omit for an equal share of the remainder; values above 1 are read as percent."),
		"fixedArea": numSchema("Explicit per-unit area in m². Takes precedence over ratio."),
		"count":     intSchema("Number of identical units, default 1."),
		"notes":     strSchema("Short requirement note."),
		"group":     strSchema("Group name this area belongs to."),
	}, "name")
}

func nodeIDsSchema(desc string) *oracle.Schema {
	return arrSchema(desc, strSchema("Node id."))
}

// agentTools is the schema the oracle sees. Order matches the dispatch
// switch in the orchestrator.
var agentTools = []oracle.ToolDef{
	{
		Name:        toolCreateProgram,
		Description: "Create a new space program from scratch. At most one program proposal may be pending at a time.",
		Parameters: objSchema("", map[string]*oracle.Schema{
			"targetTotal": numSchema("Total area in m²."),
			"typology":    strSchema("Building type key, e.g. hotel, office, school."),
			"areas":       arrSchema("Requested areas.", areaItemSchema()),
			"groups": arrSchema("Groups to create alongside.", objSchema("", map[string]*oracle.Schema{
				"name":    strSchema("Group name."),
				"color":   strSchema("Hex color."),
				"members": arrSchema("Member area names.", strSchema("Area name.")),
			}, "name")),
		}, "targetTotal", "areas"),
	},
	{
		Name:        toolSplitArea,
		Description: "Split one existing area into finer parts that sum exactly to its current total.",
		Parameters: objSchema("", map[string]*oracle.Schema{
			"sourceNodeId": strSchema("Id of the area to split."),
			"sourceName":   strSchema("Name of the area to split, used when the id is unknown."),
			"areas":        arrSchema("The parts, at least two.", areaItemSchema()),
		}, "areas"),
	},
	{
		Name:        toolSplitByQuantity,
		Description: "Partition a multi-unit area by unit count, keeping the per-unit size unchanged. Quantities must sum to the source count.",
		Parameters: objSchema("", map[string]*oracle.Schema{
			"sourceNodeId": strSchema("Id of the area to partition."),
			"sourceName":   strSchema("Name of the area to partition."),
			"quantities":   arrSchema("Unit counts per part, each at least 1.", intSchema("Units.")),
			"names":        arrSchema("Optional names per part.", strSchema("Part name.")),
		}, "quantities"),
	},
	{
		Name:        toolMergeAreas,
		Description: "Merge two or more areas into one whose total is the exact sum of the sources.",
		Parameters: objSchema("", map[string]*oracle.Schema{
			"nodeIds": nodeIDsSchema("Ids of the areas to merge, at least two."),
			"name":    strSchema("Name for the merged area. Defaults to the source names joined."),
		}, "nodeIds"),
	},
	{
		Name:        toolAdjustPercent,
		Description: "Grow or shrink areas by a signed percentage. +10 grows by 10%, -25 shrinks by a quarter.",
		Parameters: objSchema("", map[string]*oracle.Schema{
			"nodeIds": nodeIDsSchema("Target area ids. Empty means every area."),
			"percent": numSchema("Signed percentage change."),
		}, "percent"),
	},
	{
		Name:        toolScaleAreas,
		Description: "Multiply areas by a factor. 2 doubles, 0.5 halves.",
		Parameters: objSchema("", map[string]*oracle.Schema{
			"nodeIds": nodeIDsSchema("Target area ids. Empty means every area."),
			"factor":  numSchema("Positive multiplier."),
		}, "factor"),
	},
	{
		Name:        toolUnfoldArea,
		Description: "Break one area into its functional sub-spaces.",
		Parameters: objSchema("", map[string]*oracle.Schema{
			"nodeId":   strSchema("Id of the area to unfold."),
			"name":     strSchema("Name of the area to unfold, used when the id is unknown."),
			"guidance": strSchema("Optional guidance on how to subdivide."),
		}),
	},
	{
		Name:        toolOrganizeAreas,
		Description: "Group the current areas. Default strategy buckets by function; pass criteria for a custom grouping.",
		Parameters: objSchema("", map[string]*oracle.Schema{
			"strategy": &oracle.Schema{Type: "string", Description: "functional or custom.", Enum: []string{"functional", "custom"}},
			"criteria": strSchema("Grouping criteria for the custom strategy."),
		}),
	},
	{
		Name:        toolParseBrief,
		Description: "Extract a space program from pasted brief text.",
		Parameters: objSchema("", map[string]*oracle.Schema{
			"text": strSchema("The brief text."),
		}, "text"),
	},
	{
		Name:        toolSplitGroupEqual,
		Description: "Redistribute a group's total equally across its member areas.",
		Parameters: objSchema("", map[string]*oracle.Schema{
			"groupId":     strSchema("Group id."),
			"groupName":   strSchema("Group name, used when the id is unknown."),
			"targetTotal": numSchema("New group total in m². 0 keeps the current total."),
		}),
	},
	{
		Name:        toolSplitGroupProportion,
		Description: "Rescale a group's total while preserving each member's current share.",
		Parameters: objSchema("", map[string]*oracle.Schema{
			"groupId":     strSchema("Group id."),
			"groupName":   strSchema("Group name, used when the id is unknown."),
			"targetTotal": numSchema("New group total in m². 0 keeps the current total."),
		}),
	},
	{
		Name:        toolMergeGroupAreas,
		Description: "Collapse all members of a group into one area whose total is the exact sum of the members.",
		Parameters: objSchema("", map[string]*oracle.Schema{
			"groupId":   strSchema("Group id."),
			"groupName": strSchema("Group name, used when the id is unknown."),
			"name":      strSchema("Name for the merged area. Defaults to the group name."),
		}),
	},
	{
		Name:        toolRegroupFunctional,
		Description: "Replace the grouping with deterministic keyword buckets by function.",
		Parameters:  objSchema("", nil),
	},
}
