// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package visible

import (
	"context"
	"slices"

	"github.com/AleutianAI/instgraph/services/instgraph/graph"
)

type pair struct {
	from graph.NodeIdx
	to   graph.NodeIdx
}

// reconnector synthesizes Indirect edges for one materialization.
type reconnector struct {
	g    *graph.Graph
	vg   *Graph
	opts Options

	// direct holds the endpoints of every Direct edge.
	direct map[pair]bool

	// regions caches, per hidden child, the hidden nodes a search from it
	// may walk. A nil region means no shown node is reachable.
	regions map[graph.NodeIdx]map[graph.NodeIdx]bool
}

func newReconnector(g *graph.Graph, vg *Graph, opts Options) *reconnector {
	r := &reconnector{
		g:       g,
		vg:      vg,
		opts:    opts,
		direct:  make(map[pair]bool, len(vg.Edges)),
		regions: make(map[graph.NodeIdx]map[graph.NodeIdx]bool),
	}
	for _, e := range vg.Edges {
		r.direct[pair{e.From, e.To}] = true
	}
	return r
}

func (r *reconnector) shown(idx graph.NodeIdx) bool {
	return r.vg.Contains(idx)
}

func (r *reconnector) run(ctx context.Context) error {
	sources := slices.Clone(r.vg.Nodes)
	for _, a := range sources {
		if a.HiddenChildren == 0 {
			continue
		}

		best := make(map[graph.NodeIdx][]graph.EdgeIdx)
		var order []graph.NodeIdx
		emit := func(d graph.NodeIdx, path []graph.EdgeIdx) {
			if r.direct[pair{a.Idx, d}] {
				return
			}
			prev, seen := best[d]
			if seen && len(prev) <= len(path) {
				return
			}
			if !seen {
				order = append(order, d)
			}
			best[d] = path
		}

		for _, eIdx := range r.g.OutEdges(a.Idx) {
			e, _ := r.g.Edge(eIdx)
			if r.shown(e.To) {
				continue
			}
			region, err := r.region(ctx, e.To)
			if err != nil {
				return err
			}
			if region == nil {
				continue
			}
			r.search(eIdx, e.To, region, emit)
		}

		for _, d := range order {
			r.vg.Edges = append(r.vg.Edges, Edge{From: a.Idx, To: d, Type: Indirect, Path: best[d]})
		}
	}
	return nil
}

// region returns the hidden nodes below child that reach a shown node
// without first passing below another shown node reachable from child.
func (r *reconnector) region(ctx context.Context, child graph.NodeIdx) (map[graph.NodeIdx]bool, error) {
	if region, ok := r.regions[child]; ok {
		return region, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	below := r.g.Reachable([]graph.NodeIdx{child}, graph.Outgoing)
	var targets []graph.NodeIdx
	for _, n := range below {
		if r.shown(n) {
			targets = append(targets, n)
		}
	}
	if len(targets) == 0 {
		r.regions[child] = nil
		return nil, nil
	}

	fwd := r.g.ReachableSet(targets, graph.Outgoing)
	bwd := r.g.ReachableSet(targets, graph.Incoming)
	region := make(map[graph.NodeIdx]bool)
	for _, n := range below {
		if !r.shown(n) && bwd[n] && !fwd[n] {
			region[n] = true
		}
	}
	if !region[child] {
		region = nil
	}
	r.regions[child] = region
	return region, nil
}

// search walks region breadth-first from child, entered through edge
// first, and emits every shown node adjacent to a walked node together with
// the shortest path to it.
func (r *reconnector) search(first graph.EdgeIdx, child graph.NodeIdx, region map[graph.NodeIdx]bool, emit func(graph.NodeIdx, []graph.EdgeIdx)) {
	parent := map[graph.NodeIdx]graph.EdgeIdx{child: first}
	depth := map[graph.NodeIdx]int{child: 1}
	queue := []graph.NodeIdx{child}

	pathTo := func(n graph.NodeIdx, last graph.EdgeIdx) []graph.EdgeIdx {
		path := []graph.EdgeIdx{last}
		for {
			e := parent[n]
			path = append(path, e)
			if e == first {
				break
			}
			edge, _ := r.g.Edge(e)
			n = edge.From
		}
		slices.Reverse(path)
		return path
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, eIdx := range r.g.OutEdges(cur) {
			e, _ := r.g.Edge(eIdx)
			switch {
			case r.shown(e.To):
				if r.opts.MaxPathLength > 0 && depth[cur]+1 > r.opts.MaxPathLength {
					continue
				}
				emit(e.To, pathTo(cur, eIdx))
			case region[e.To]:
				if _, seen := parent[e.To]; seen {
					continue
				}
				if r.opts.MaxPathLength > 0 && depth[cur]+2 > r.opts.MaxPathLength {
					continue
				}
				parent[e.To] = eIdx
				depth[e.To] = depth[cur] + 1
				queue = append(queue, e.To)
			}
		}
	}
}
