// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filter

import (
	"fmt"
	"slices"

	"github.com/AleutianAI/instgraph/services/instgraph/facts"
	"github.com/AleutianAI/instgraph/services/instgraph/graph"
)

// =============================================================================
// INDEX BOUNDS
// =============================================================================

// MaxNodeIdx hides nodes with origin index >= N.
type MaxNodeIdx struct{ N int }

func (f MaxNodeIdx) Kind() Kind { return KindMaxNodeIdx }
func (f MaxNodeIdx) String() string {
	return fmt.Sprintf("Only show nodes up to index %d", f.N)
}
func (f MaxNodeIdx) check(*graph.Graph) error { return checkCount(f.Kind(), f.N) }
func (f MaxNodeIdx) apply(e *env) Output {
	e.graph.HideWhen(func(n graph.Node) bool { return int(n.Idx) >= f.N })
	return Output{}
}

// MinNodeIdx hides nodes with origin index < N.
type MinNodeIdx struct{ N int }

func (f MinNodeIdx) Kind() Kind { return KindMinNodeIdx }
func (f MinNodeIdx) String() string {
	return fmt.Sprintf("Only show nodes from index %d", f.N)
}
func (f MinNodeIdx) check(*graph.Graph) error { return checkCount(f.Kind(), f.N) }
func (f MinNodeIdx) apply(e *env) Output {
	e.graph.HideWhen(func(n graph.Node) bool { return int(n.Idx) < f.N })
	return Output{}
}

// =============================================================================
// QUANTIFIER PREDICATES
// =============================================================================

// IgnoreTheorySolving hides instantiations whose match was discovered by
// theory reasoning rather than a pattern trigger.
type IgnoreTheorySolving struct{}

func (f IgnoreTheorySolving) Kind() Kind { return KindIgnoreTheorySolving }
func (f IgnoreTheorySolving) String() string { return "Ignore theory solving instantiations" }
func (f IgnoreTheorySolving) check(*graph.Graph) error { return nil }
func (f IgnoreTheorySolving) apply(e *env) Output {
	e.graph.HideWhen(func(n graph.Node) bool { return n.IsInstantiation() && n.Discovered })
	return Output{}
}

// IgnoreQuantifier hides instantiations of Quant. A nil Quant selects
// instantiations discovered without a quantifier.
type IgnoreQuantifier struct{ Quant *facts.QuantIdx }

func (f IgnoreQuantifier) Kind() Kind { return KindIgnoreQuantifier }
func (f IgnoreQuantifier) String() string {
	if f.Quant == nil {
		return "Ignore instantiations without quantifier"
	}
	return fmt.Sprintf("Ignore instantiations of quantifier %d", *f.Quant)
}
func (f IgnoreQuantifier) check(*graph.Graph) error { return nil }
func (f IgnoreQuantifier) apply(e *env) Output {
	e.graph.HideWhen(func(n graph.Node) bool { return n.IsInstantiation() && sameQuant(n.Quant, f.Quant) })
	return Output{}
}

// IgnoreAllButQuantifier hides instantiations of every quantifier except Quant.
type IgnoreAllButQuantifier struct{ Quant *facts.QuantIdx }

func (f IgnoreAllButQuantifier) Kind() Kind { return KindIgnoreAllButQuantifier }
func (f IgnoreAllButQuantifier) String() string {
	if f.Quant == nil {
		return "Only show instantiations without quantifier"
	}
	return fmt.Sprintf("Only show instantiations of quantifier %d", *f.Quant)
}
func (f IgnoreAllButQuantifier) check(*graph.Graph) error { return nil }
func (f IgnoreAllButQuantifier) apply(e *env) Output {
	e.graph.HideWhen(func(n graph.Node) bool { return n.IsInstantiation() && !sameQuant(n.Quant, f.Quant) })
	return Output{}
}

func sameQuant(a, b *facts.QuantIdx) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ShowNamedQuantifier keeps only the instantiations whose quantifier's
// display name equals Name. Matches hidden by an earlier filter stay hidden.
type ShowNamedQuantifier struct{ Name string }

func (f ShowNamedQuantifier) Kind() Kind { return KindShowNamedQuantifier }
func (f ShowNamedQuantifier) String() string {
	return fmt.Sprintf("Show instantiations of quantifier %q", f.Name)
}
func (f ShowNamedQuantifier) check(*graph.Graph) error {
	if f.Name == "" {
		return fmt.Errorf("%w: empty quantifier name", ErrInvalidArgument)
	}
	return nil
}
func (f ShowNamedQuantifier) apply(e *env) Output {
	matches := func(n graph.Node) bool {
		return n.IsInstantiation() && e.store != nil && n.Quant != nil &&
			e.store.QuantName(n.Quant, e.display) == f.Name
	}
	e.graph.HideWhen(func(n graph.Node) bool { return !matches(n) })
	return Output{}
}

// =============================================================================
// TOP-K
// =============================================================================

// MaxInsts keeps the N highest cost-rank instantiations among the currently
// visible ones. Other node kinds are untouched.
type MaxInsts struct{ N int }

func (f MaxInsts) Kind() Kind { return KindMaxInsts }
func (f MaxInsts) String() string {
	return fmt.Sprintf("Show the %d most expensive instantiations", f.N)
}
func (f MaxInsts) check(*graph.Graph) error { return checkCount(f.Kind(), f.N) }
func (f MaxInsts) apply(e *env) Output {
	kept := 0
	for _, idx := range e.graph.CostRanked() {
		n, _ := e.graph.Node(idx)
		if !n.Visible || !n.IsInstantiation() {
			continue
		}
		if kept < f.N {
			kept++
			continue
		}
		_ = e.graph.SetVisible(idx, false)
	}
	return Output{}
}

// MaxBranching keeps the N visible nodes with the most children. Ties go to
// the lower origin index.
type MaxBranching struct{ N int }

func (f MaxBranching) Kind() Kind { return KindMaxBranching }
func (f MaxBranching) String() string {
	return fmt.Sprintf("Show the %d nodes with the most children", f.N)
}
func (f MaxBranching) check(*graph.Graph) error { return checkCount(f.Kind(), f.N) }
func (f MaxBranching) apply(e *env) Output {
	var visible []graph.Node
	for i := 0; i < e.graph.NodeCount(); i++ {
		if n, _ := e.graph.Node(graph.NodeIdx(i)); n.Visible {
			visible = append(visible, n)
		}
	}
	slices.SortStableFunc(visible, func(a, b graph.Node) int {
		return b.ChildCount - a.ChildCount
	})
	for i := f.N; i < len(visible); i++ {
		_ = e.graph.SetVisible(visible[i].Idx, false)
	}
	return Output{}
}

// =============================================================================
// REACHABILITY
// =============================================================================

// ShowNeighbours makes every direct neighbour of Node in direction Dir
// visible, overriding earlier hides.
type ShowNeighbours struct {
	Node graph.NodeIdx
	Dir  graph.Direction
}

func (f ShowNeighbours) Kind() Kind { return KindShowNeighbours }
func (f ShowNeighbours) String() string {
	if f.Dir == graph.Incoming {
		return fmt.Sprintf("Show the parents of node %d", f.Node)
	}
	return fmt.Sprintf("Show the children of node %d", f.Node)
}
func (f ShowNeighbours) check(g *graph.Graph) error { return g.CheckNode(f.Node) }
func (f ShowNeighbours) apply(e *env) Output {
	for _, n := range e.graph.Neighbours(f.Node, f.Dir) {
		_ = e.graph.SetVisible(n, true)
	}
	return Output{}
}

// VisitSubTreeWithRoot selects Node and all its descendants. With Retain the
// selection becomes exactly the visible set; without, it is hidden.
type VisitSubTreeWithRoot struct {
	Node   graph.NodeIdx
	Retain bool
}

func (f VisitSubTreeWithRoot) Kind() Kind { return KindVisitSubTreeWithRoot }
func (f VisitSubTreeWithRoot) String() string {
	if f.Retain {
		return fmt.Sprintf("Show node %d and its descendants", f.Node)
	}
	return fmt.Sprintf("Hide node %d and its descendants", f.Node)
}
func (f VisitSubTreeWithRoot) check(g *graph.Graph) error { return g.CheckNode(f.Node) }
func (f VisitSubTreeWithRoot) apply(e *env) Output {
	closure, _ := e.graph.Descendants(e.ctx, f.Node)
	applyClosure(e.graph, closure, f.Retain)
	return Output{}
}

// VisitSourceTree is VisitSubTreeWithRoot over ancestors.
type VisitSourceTree struct {
	Node   graph.NodeIdx
	Retain bool
}

func (f VisitSourceTree) Kind() Kind { return KindVisitSourceTree }
func (f VisitSourceTree) String() string {
	if f.Retain {
		return fmt.Sprintf("Show node %d and its ancestors", f.Node)
	}
	return fmt.Sprintf("Hide node %d and its ancestors", f.Node)
}
func (f VisitSourceTree) check(g *graph.Graph) error { return g.CheckNode(f.Node) }
func (f VisitSourceTree) apply(e *env) Output {
	closure, _ := e.graph.Ancestors(e.ctx, f.Node)
	applyClosure(e.graph, closure, f.Retain)
	return Output{}
}

func applyClosure(g *graph.Graph, closure []graph.NodeIdx, retain bool) {
	if retain {
		_ = g.SetVisibleExactly(closure)
		return
	}
	for _, idx := range closure {
		_ = g.SetVisible(idx, false)
	}
}

// MaxDepth hides nodes whose minimum distance from a root exceeds Depth.
type MaxDepth struct{ Depth int }

func (f MaxDepth) Kind() Kind { return KindMaxDepth }
func (f MaxDepth) String() string {
	return fmt.Sprintf("Show nodes up to depth %d", f.Depth)
}
func (f MaxDepth) check(*graph.Graph) error { return checkCount(f.Kind(), f.Depth) }
func (f MaxDepth) apply(e *env) Output {
	e.graph.HideWhen(func(n graph.Node) bool { return n.FwdDepth.Min > f.Depth })
	return Output{}
}

// ShowLongestPath makes exactly the longest path through Node visible and
// returns it.
type ShowLongestPath struct{ Node graph.NodeIdx }

func (f ShowLongestPath) Kind() Kind { return KindShowLongestPath }
func (f ShowLongestPath) String() string {
	return fmt.Sprintf("Showing longest path through node %d", f.Node)
}
func (f ShowLongestPath) check(g *graph.Graph) error { return g.CheckNode(f.Node) }
func (f ShowLongestPath) apply(e *env) Output {
	path, _ := e.graph.LongestPathThrough(e.ctx, f.Node)
	_ = e.graph.SetVisibleExactly(path)
	return Output{Path: path}
}
