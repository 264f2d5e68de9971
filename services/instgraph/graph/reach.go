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

type reachKey struct {
	node NodeIdx
	dir  Direction
}

// Descendants returns idx and every node reachable from it, ascending.
//
// Description:
//
//	Closures depend only on topology, which never changes after Build, so
//	they are memoized in the graph's LRU cache and shared by every filter
//	application. Use Reachable for one-off traversals.
//
// Outputs:
//   - []NodeIdx: The closure, including idx. Owned by the caller.
//   - error: ErrNodeOutOfRange.
func (g *Graph) Descendants(ctx context.Context, idx NodeIdx) ([]NodeIdx, error) {
	return g.closureChecked(ctx, idx, Outgoing)
}

// Ancestors returns idx and every node that reaches it, ascending.
func (g *Graph) Ancestors(ctx context.Context, idx NodeIdx) ([]NodeIdx, error) {
	return g.closureChecked(ctx, idx, Incoming)
}

func (g *Graph) closureChecked(ctx context.Context, idx NodeIdx, dir Direction) ([]NodeIdx, error) {
	if err := g.CheckNode(idx); err != nil {
		return nil, err
	}
	start := time.Now()
	closure := slices.Clone(g.closure(idx, dir))
	recordQueryMetrics(ctx, "closure_"+dir.String(), time.Since(start), len(closure))
	return closure, nil
}

// closure returns the memoized reachability closure. The slice is shared.
func (g *Graph) closure(idx NodeIdx, dir Direction) []NodeIdx {
	key := reachKey{node: idx, dir: dir}
	if cached, ok := g.reach.Get(key); ok {
		return cached
	}

	result := g.Reachable([]NodeIdx{idx}, dir)
	slices.Sort(result)
	g.reach.Set(key, result)
	return result
}

// step returns the raw neighbours of idx in direction dir, possibly repeated.
func (g *Graph) step(idx NodeIdx, dir Direction) []NodeIdx {
	edges := g.out[idx]
	if dir == Incoming {
		edges = g.in[idx]
	}
	result := make([]NodeIdx, len(edges))
	for i, e := range edges {
		if dir == Incoming {
			result[i] = g.edges[e].From
		} else {
			result[i] = g.edges[e].To
		}
	}
	return result
}

// Reachable returns every node reachable from any seed in direction dir,
// seeds included, in visit order. Nothing is memoized, so callers that
// query many distinct seeds once each do not grow the graph's cache.
func (g *Graph) Reachable(seeds []NodeIdx, dir Direction) []NodeIdx {
	var result []NodeIdx
	g.walk(seeds, dir, func(n NodeIdx) { result = append(result, n) })
	return result
}

// ReachableSet marks every node reachable from any seed in direction dir.
// Seeds are included. The result is indexed by NodeIdx and is not memoized.
func (g *Graph) ReachableSet(seeds []NodeIdx, dir Direction) []bool {
	return g.walk(seeds, dir, nil)
}

// walk runs one depth-first traversal from all seeds and returns the
// visited marks. visit, when set, is called once per reached node.
func (g *Graph) walk(seeds []NodeIdx, dir Direction, visit func(NodeIdx)) []bool {
	marked := make([]bool, len(g.nodes))
	stack := make([]NodeIdx, 0, len(seeds))
	for _, s := range seeds {
		if !marked[s] {
			marked[s] = true
			stack = append(stack, s)
		}
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visit != nil {
			visit(cur)
		}
		for _, next := range g.step(cur, dir) {
			if !marked[next] {
				marked[next] = true
				stack = append(stack, next)
			}
		}
	}
	return marked
}

// ReachCacheStats returns hit/miss counters of the reachability memo.
func (g *Graph) ReachCacheStats() (hits, misses int64) {
	return g.reach.Stats()
}
