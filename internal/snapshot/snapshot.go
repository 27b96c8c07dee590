// Package snapshot loads and saves program files: the JSON serialization
// of a program context that the CLI and server operate on.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"spaceplan/internal/program"
)

// File is the on-disk shape. It matches the program types' JSON tags,
// wrapped so a version field can be added without breaking readers.
type File struct {
	Nodes       []program.AreaNode `json:"nodes"`
	Groups      []program.Group    `json:"groups,omitempty"`
	DetailLevel string             `json:"detailLevel,omitempty"`
	Notes       string             `json:"notes,omitempty"`
}

// Load reads and validates a program file. Missing node ids are minted
// so hand-written files stay convenient.
func Load(path string) (*program.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}

	snap := &program.Context{
		Nodes:       f.Nodes,
		Groups:      f.Groups,
		DetailLevel: f.DetailLevel,
		Notes:       f.Notes,
	}
	for i := range snap.Nodes {
		if snap.Nodes[i].ID == "" {
			snap.Nodes[i].ID = uuid.NewString()
		}
		if snap.Nodes[i].Count == 0 {
			snap.Nodes[i].Count = 1
		}
	}
	if err := Validate(snap); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return snap, nil
}

// Save writes a program context back out, pretty-printed.
func Save(path string, snap *program.Context) error {
	f := File{
		Nodes:       snap.Nodes,
		Groups:      snap.Groups,
		DetailLevel: snap.DetailLevel,
		Notes:       snap.Notes,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Validate checks the structural invariants: unique non-empty node ids,
// named nodes with positive areas, and groups whose members exist.
func Validate(snap *program.Context) error {
	seen := make(map[string]bool, len(snap.Nodes))
	for i, n := range snap.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node %d has no id", i)
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
		if n.Name == "" {
			return fmt.Errorf("node %s has no name", n.ID)
		}
		if n.AreaPerUnit <= 0 {
			return fmt.Errorf("node %q has non-positive area %.2f", n.Name, n.AreaPerUnit)
		}
		if n.Count < 0 {
			return fmt.Errorf("node %q has negative count %d", n.Name, n.Count)
		}
	}
	groupSeen := make(map[string]bool, len(snap.Groups))
	for i, g := range snap.Groups {
		if g.ID == "" {
			return fmt.Errorf("group %d has no id", i)
		}
		if groupSeen[g.ID] {
			return fmt.Errorf("duplicate group id %q", g.ID)
		}
		groupSeen[g.ID] = true
		for _, m := range g.Members {
			if !seen[m] {
				return fmt.Errorf("group %q references unknown node %q", g.Name, m)
			}
		}
	}
	return nil
}
