// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "fmt"

// ShowAll makes every node visible. Disabled marks are untouched.
func (g *Graph) ShowAll() {
	for i := range g.nodes {
		g.nodes[i].Visible = true
	}
}

// SetVisible sets the visible flag of one node.
func (g *Graph) SetVisible(idx NodeIdx, visible bool) error {
	if err := g.CheckNode(idx); err != nil {
		return err
	}
	g.nodes[idx].Visible = visible
	return nil
}

// HideWhen hides every node for which pred holds and returns how many
// nodes changed from visible to hidden.
func (g *Graph) HideWhen(pred func(Node) bool) int {
	changed := 0
	for i := range g.nodes {
		if g.nodes[i].Visible && pred(g.nodes[i]) {
			g.nodes[i].Visible = false
			changed++
		}
	}
	return changed
}

// SetVisibleExactly makes exactly the given nodes visible.
func (g *Graph) SetVisibleExactly(nodes []NodeIdx) error {
	for _, idx := range nodes {
		if err := g.CheckNode(idx); err != nil {
			return err
		}
	}
	for i := range g.nodes {
		g.nodes[i].Visible = false
	}
	for _, idx := range nodes {
		g.nodes[idx].Visible = true
	}
	return nil
}

// VisibleCount returns the number of nodes with the visible flag set.
func (g *Graph) VisibleCount() int {
	count := 0
	for i := range g.nodes {
		if g.nodes[i].Visible {
			count++
		}
	}
	return count
}

// VisibilitySnapshot captures every node's visible flag.
func (g *Graph) VisibilitySnapshot() []bool {
	snap := make([]bool, len(g.nodes))
	for i := range g.nodes {
		snap[i] = g.nodes[i].Visible
	}
	return snap
}

// RestoreVisibility restores flags captured by VisibilitySnapshot.
func (g *Graph) RestoreVisibility(snap []bool) error {
	if len(snap) != len(g.nodes) {
		return fmt.Errorf("%w: %d flags for %d nodes", ErrSnapshotMismatch, len(snap), len(g.nodes))
	}
	for i := range g.nodes {
		g.nodes[i].Visible = snap[i]
	}
	return nil
}

// SetDisabled sets the disabled mark of one node.
func (g *Graph) SetDisabled(idx NodeIdx, disabled bool) error {
	if err := g.CheckNode(idx); err != nil {
		return err
	}
	g.nodes[idx].Disabled = disabled
	return nil
}

// MarkDisabled recomputes every disabled mark from pred and returns the
// number of disabled nodes. Visible flags are untouched.
func (g *Graph) MarkDisabled(pred func(Node) bool) int {
	count := 0
	for i := range g.nodes {
		g.nodes[i].Disabled = pred(g.nodes[i])
		if g.nodes[i].Disabled {
			count++
		}
	}
	return count
}

// HiddenNeighbours counts the distinct neighbours of idx in direction dir
// that are not shown (hidden or disabled).
func (g *Graph) HiddenNeighbours(idx NodeIdx, dir Direction) int {
	count := 0
	for _, n := range g.Neighbours(idx, dir) {
		if !g.nodes[n].Shown() {
			count++
		}
	}
	return count
}

// HasHiddenChildren reports whether any child of idx is not shown.
func (g *Graph) HasHiddenChildren(idx NodeIdx) bool {
	return g.HiddenNeighbours(idx, Outgoing) > 0
}

// HasHiddenParents reports whether any parent of idx is not shown.
func (g *Graph) HasHiddenParents(idx NodeIdx) bool {
	return g.HiddenNeighbours(idx, Incoming) > 0
}
