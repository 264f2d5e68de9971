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
	"fmt"
	"slices"
)

// analyse computes every derived per-node attribute in O(V + E), plus the
// O(V log V) cost sort.
func (g *Graph) analyse() error {
	for i := range g.nodes {
		idx := NodeIdx(i)
		g.nodes[i].ChildCount = len(g.Children(idx))
		g.nodes[i].ParentCount = len(g.Parents(idx))
	}
	if err := g.topoSort(); err != nil {
		return err
	}
	g.computeDepths()
	g.computeCostRank()
	return nil
}

// topoSort runs Kahn's algorithm, releasing ready nodes in ascending index
// order so the result is deterministic.
func (g *Graph) topoSort() error {
	n := len(g.nodes)
	indegree := make([]int, n)
	for _, e := range g.edges {
		indegree[e.To]++
	}

	// ready stays sorted ascending.
	ready := make([]NodeIdx, 0, n)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			ready = append(ready, NodeIdx(i))
		}
	}

	g.topo = make([]NodeIdx, 0, n)
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		g.topo = append(g.topo, cur)
		for _, e := range g.out[cur] {
			to := g.edges[e].To
			indegree[to]--
			if indegree[to] == 0 {
				pos, _ := slices.BinarySearch(ready, to)
				ready = slices.Insert(ready, pos, to)
			}
		}
	}

	if len(g.topo) != n {
		for i, d := range indegree {
			if d > 0 {
				return fmt.Errorf("%w: node %d (%s) is on a cycle or below one",
					ErrCycleDetected, i, g.nodes[i].Ref)
			}
		}
		return ErrCycleDetected
	}

	g.topoRank = make([]int, n)
	for rank, idx := range g.topo {
		g.topoRank[idx] = rank
	}
	return nil
}

// computeDepths fills FwdDepth (distance from roots) in topological order
// and BwdDepth (distance to leaves) in reverse topological order.
func (g *Graph) computeDepths() {
	for _, idx := range g.topo {
		node := &g.nodes[idx]
		if len(g.in[idx]) == 0 {
			node.FwdDepth = Depth{}
			continue
		}
		first := true
		for _, e := range g.in[idx] {
			p := g.nodes[g.edges[e].From].FwdDepth
			if first || p.Min+1 < node.FwdDepth.Min {
				node.FwdDepth.Min = p.Min + 1
			}
			if first || p.Max+1 > node.FwdDepth.Max {
				node.FwdDepth.Max = p.Max + 1
			}
			first = false
		}
	}

	for i := len(g.topo) - 1; i >= 0; i-- {
		idx := g.topo[i]
		node := &g.nodes[idx]
		if len(g.out[idx]) == 0 {
			node.BwdDepth = Depth{}
			continue
		}
		first := true
		for _, e := range g.out[idx] {
			c := g.nodes[g.edges[e].To].BwdDepth
			if first || c.Min+1 < node.BwdDepth.Min {
				node.BwdDepth.Min = c.Min + 1
			}
			if first || c.Max+1 > node.BwdDepth.Max {
				node.BwdDepth.Max = c.Max + 1
			}
			first = false
		}
	}
}

// computeCostRank orders all nodes by cost descending, then origin index
// ascending. Indices are distinct so the order is total.
func (g *Graph) computeCostRank() {
	ranked := make([]NodeIdx, len(g.nodes))
	for i := range ranked {
		ranked[i] = NodeIdx(i)
	}
	slices.SortFunc(ranked, func(a, b NodeIdx) int {
		ca, cb := g.nodes[a].Cost, g.nodes[b].Cost
		switch {
		case ca > cb:
			return -1
		case ca < cb:
			return 1
		default:
			return int(a - b)
		}
	})
	for rank, idx := range ranked {
		g.nodes[idx].CostRank = rank
	}
	g.costRanked = ranked
}
