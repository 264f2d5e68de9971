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

import (
	"context"
	"slices"
	"time"
)

// LongestPathThrough returns the longest causal path passing through idx.
//
// Description:
//
//	Path length is the hop count over the full raw graph, ignoring
//	visibility. The path is assembled from the precomputed depths: walking
//	up from idx, each step picks a parent whose FwdDepth.Max is exactly one
//	less; walking down, each step picks a child whose BwdDepth.Max is
//	exactly one less. When several neighbours qualify, the one with the
//	smallest origin index wins, so for the diamond A->B->D, A->C->D the
//	path through D is A, B, D.
//
// Inputs:
//   - ctx: Context for tracing.
//   - idx: The node the path must pass through.
//
// Outputs:
//   - []NodeIdx: The path ordered root to leaf. Contains idx.
//   - error: ErrNodeOutOfRange.
//
// Complexity: O(path length * max degree).
func (g *Graph) LongestPathThrough(ctx context.Context, idx NodeIdx) ([]NodeIdx, error) {
	if err := g.CheckNode(idx); err != nil {
		return nil, err
	}
	_, span := tracer.Start(ctx, "graph.LongestPathThrough")
	defer span.End()
	start := time.Now()

	var up []NodeIdx
	for cur := idx; g.nodes[cur].FwdDepth.Max > 0; {
		cur = g.pickNeighbour(cur, Incoming)
		up = append(up, cur)
	}
	slices.Reverse(up)

	path := append(up, idx)
	for cur := idx; g.nodes[cur].BwdDepth.Max > 0; {
		cur = g.pickNeighbour(cur, Outgoing)
		path = append(path, cur)
	}

	recordQueryMetrics(ctx, "longest_path", time.Since(start), len(path))
	return path, nil
}

// pickNeighbour returns the lowest-index neighbour continuing a longest path.
func (g *Graph) pickNeighbour(cur NodeIdx, dir Direction) NodeIdx {
	best := NodeIdx(-1)
	for _, n := range g.step(cur, dir) {
		var ok bool
		if dir == Incoming {
			ok = g.nodes[n].FwdDepth.Max == g.nodes[cur].FwdDepth.Max-1
		} else {
			ok = g.nodes[n].BwdDepth.Max == g.nodes[cur].BwdDepth.Max-1
		}
		if ok && (best < 0 || n < best) {
			best = n
		}
	}
	return best
}
