package intent

import (
	"fmt"
	"strings"

	"spaceplan/internal/program"
)

// Validation is the outcome of structural and referential checks on an
// intent. Execution never runs math unless Valid is true.
type Validation struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (v *Validation) addError(format string, args ...any) {
	v.Valid = false
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *Validation) addWarning(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// ValidationError is returned when an intent is rejected before any math
// runs. The intent is never partially applied.
type ValidationError struct {
	Kind   program.IntentKind
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("intent %s rejected: %s", e.Kind, strings.Join(e.Errors, "; "))
}

// ValidateIntent runs the per-variant structural and referential checks.
// Every id an intent references must exist in the snapshot; there are no
// forward references.
func ValidateIntent(in program.Intent, snap *program.Context) Validation {
	v := Validation{Valid: true}
	if in == nil {
		v.addError("intent is nil")
		return v
	}

	switch it := in.(type) {
	case *program.CreateProgramIntent:
		validateCreate(&v, it)
	case *program.SplitAreaIntent:
		validateSplitArea(&v, it, snap)
	case *program.SplitByQuantityIntent:
		validateSplitByQuantity(&v, it, snap)
	case *program.MergeAreasIntent:
		validateMerge(&v, it, snap)
	case *program.RedistributeIntent:
		validateFactor(&v, it.Factor, it.NodeIDs, snap)
	case *program.AdjustPercentIntent:
		validatePercent(&v, it.Percent, it.NodeIDs, snap)
	case *program.PassthroughIntent:
		if len(it.Proposals) == 0 {
			v.addError("passthrough intent carries no proposals")
		}
	default:
		v.addError("unknown intent kind %q", in.Kind())
	}
	return v
}

func validateCreate(v *Validation, it *program.CreateProgramIntent) {
	if it.TargetTotal <= 0 {
		v.addError("target total must be positive, got %.1f", it.TargetTotal)
	}
	if len(it.Entries) == 0 {
		v.addError("create program requires at least one area entry")
	}
	validateEntries(v, it.Entries)

	var explicit float64
	for _, e := range it.Entries {
		if e.HasFixedArea {
			explicit += e.FixedArea
		}
	}
	if it.TargetTotal > 0 && explicit > it.TargetTotal {
		v.addWarning("fixed areas (%.0f m²) exceed the target total (%.0f m²); ratio entries receive nothing", explicit, it.TargetTotal)
	}
}

func validateSplitArea(v *Validation, it *program.SplitAreaIntent, snap *program.Context) {
	src := snap.NodeByID(it.SourceNodeID)
	if src == nil {
		v.addError("source node %q does not exist", it.SourceNodeID)
	}
	if len(it.Entries) < 2 {
		v.addError("split requires at least two target entries, got %d", len(it.Entries))
	}
	validateEntries(v, it.Entries)
}

func validateSplitByQuantity(v *Validation, it *program.SplitByQuantityIntent, snap *program.Context) {
	src := snap.NodeByID(it.SourceNodeID)
	if src == nil {
		v.addError("source node %q does not exist", it.SourceNodeID)
		return
	}
	if src.Count < 2 {
		v.addError("source %q has count %d; split by quantity requires count >= 2", src.Name, src.Count)
	}
	if len(it.Quantities) < 2 {
		v.addError("split by quantity requires at least two quantities, got %d", len(it.Quantities))
	}
	sum := 0
	for i, q := range it.Quantities {
		if q < 1 {
			v.addError("quantity %d must be >= 1, got %d", i+1, q)
		}
		sum += q
	}
	if sum != src.Count {
		v.addError("quantities sum to %d but source %q has count %d", sum, src.Name, src.Count)
	}
}

func validateMerge(v *Validation, it *program.MergeAreasIntent, snap *program.Context) {
	if len(it.SourceNodeIDs) < 2 {
		v.addError("merge requires at least two source nodes, got %d", len(it.SourceNodeIDs))
	}
	for _, id := range it.SourceNodeIDs {
		if snap.NodeByID(id) == nil {
			v.addError("source node %q does not exist", id)
		}
	}
}

func validateFactor(v *Validation, factor float64, nodeIDs []string, snap *program.Context) {
	if factor <= 0 {
		v.addError("factor must be positive, got %.3f", factor)
	}
	validateNodeRefs(v, nodeIDs, snap)
	if len(nodeIDs) == 0 && len(snap.Nodes) == 0 {
		v.addError("no areas exist to redistribute")
	}
}

func validatePercent(v *Validation, percent float64, nodeIDs []string, snap *program.Context) {
	if percent <= -100 {
		v.addError("percent adjustment must be greater than -100, got %.1f", percent)
	}
	if percent == 0 {
		v.addWarning("percent adjustment of 0 changes nothing")
	}
	validateNodeRefs(v, nodeIDs, snap)
	if len(nodeIDs) == 0 && len(snap.Nodes) == 0 {
		v.addError("no areas exist to adjust")
	}
}

func validateNodeRefs(v *Validation, nodeIDs []string, snap *program.Context) {
	for _, id := range nodeIDs {
		if snap.NodeByID(id) == nil {
			v.addError("node %q does not exist", id)
		}
	}
}

func validateEntries(v *Validation, entries []program.IntentEntry) {
	for i, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			v.addError("entry %d has no name", i+1)
		}
		if e.HasRatio && e.Ratio < 0 {
			v.addError("entry %q has negative ratio %.3f", e.Name, e.Ratio)
		}
		if e.HasFixedArea && e.FixedArea <= 0 {
			v.addError("entry %q has non-positive fixed area %.1f", e.Name, e.FixedArea)
		}
		if e.Count < 0 {
			v.addError("entry %q has negative count %d", e.Name, e.Count)
		}
	}
}
