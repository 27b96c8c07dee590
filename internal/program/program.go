// Package program defines the shared data model for area programs:
// nodes, groups, selections, and the read-only context handed to actions
// and the agent.
//
// The authoritative program lives in an external project store. This
// package only describes immutable snapshots of it; nothing here mutates
// a node or group in place. Changes travel as Proposals (see proposal.go)
// and are applied out-of-band after human acceptance.
package program

import "strings"

// AreaNode is a single named floor-area entry.
//
// Total area of a node is AreaPerUnit * Count. Count models repeated
// identical units (e.g. 120 hotel rooms of 28 m² each).
type AreaNode struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	AreaPerUnit float64  `json:"areaPerUnit"`
	Count       int      `json:"count"`
	Locked      []string `json:"lockedFields,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// TotalArea returns AreaPerUnit * Count.
func (n AreaNode) TotalArea() float64 {
	return n.AreaPerUnit * float64(n.Count)
}

// Group is a named collection of area nodes.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Color   string   `json:"color,omitempty"`
	Members []string `json:"members"`
}

// Contains reports whether the group holds the given node id.
func (g Group) Contains(nodeID string) bool {
	for _, id := range g.Members {
		if id == nodeID {
			return true
		}
	}
	return false
}

// Selection carries the user's current selection when a turn starts.
type Selection struct {
	NodeIDs  []string `json:"nodeIds,omitempty"`
	GroupIDs []string `json:"groupIds,omitempty"`
}

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool {
	return len(s.NodeIDs) == 0 && len(s.GroupIDs) == 0
}

// Context is the read-only snapshot passed into actions and the agent.
// It never aliases mutable store state; callers hand in a fresh copy per
// turn.
type Context struct {
	Nodes       []AreaNode `json:"nodes"`
	Groups      []Group    `json:"groups"`
	DetailLevel string     `json:"detailLevel,omitempty"`
	Prompt      string     `json:"prompt,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// NodeByID returns the node with the given id, or nil.
func (c *Context) NodeByID(id string) *AreaNode {
	for i := range c.Nodes {
		if c.Nodes[i].ID == id {
			return &c.Nodes[i]
		}
	}
	return nil
}

// NodeByName returns the first node whose name matches case-insensitively,
// or nil.
func (c *Context) NodeByName(name string) *AreaNode {
	for i := range c.Nodes {
		if strings.EqualFold(c.Nodes[i].Name, name) {
			return &c.Nodes[i]
		}
	}
	return nil
}

// GroupByID returns the group with the given id, or nil.
func (c *Context) GroupByID(id string) *Group {
	for i := range c.Groups {
		if c.Groups[i].ID == id {
			return &c.Groups[i]
		}
	}
	return nil
}

// GroupByName returns the first group whose name matches
// case-insensitively, or nil.
func (c *Context) GroupByName(name string) *Group {
	for i := range c.Groups {
		if strings.EqualFold(c.Groups[i].Name, name) {
			return &c.Groups[i]
		}
	}
	return nil
}

// NodesInGroups returns all nodes that belong to any of the given groups,
// in snapshot order, without duplicates.
func (c *Context) NodesInGroups(groupIDs []string) []AreaNode {
	want := make(map[string]bool)
	for _, gid := range groupIDs {
		if g := c.GroupByID(gid); g != nil {
			for _, m := range g.Members {
				want[m] = true
			}
		}
	}

	var nodes []AreaNode
	for _, n := range c.Nodes {
		if want[n.ID] {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// TotalArea returns the summed total area of all nodes in the snapshot.
func (c *Context) TotalArea() float64 {
	var sum float64
	for _, n := range c.Nodes {
		sum += n.TotalArea()
	}
	return sum
}
