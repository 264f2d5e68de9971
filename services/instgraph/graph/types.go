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

	"github.com/AleutianAI/instgraph/services/instgraph/facts"
)

// NodeIdx is the stable origin index of a node. It is never reused.
type NodeIdx int

// EdgeIdx is the stable index of a raw edge.
type EdgeIdx int

// NodeKind is the domain entity a node represents.
type NodeKind int

const (
	NodeInstantiation NodeKind = iota
	NodeENode
	NodeGivenEquality
	NodeTransEquality
)

var nodeKindNames = map[NodeKind]string{
	NodeInstantiation: "instantiation",
	NodeENode:         "enode",
	NodeGivenEquality: "given_equality",
	NodeTransEquality: "trans_equality",
}

// String returns the string representation of the node kind.
func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", k)
}

// MarshalText implements encoding.TextMarshaler.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// nodeKindOf maps a fact entity kind to the node kind representing it.
func nodeKindOf(k facts.EntityKind) (NodeKind, bool) {
	switch k {
	case facts.EntityInstantiation:
		return NodeInstantiation, true
	case facts.EntityENode:
		return NodeENode, true
	case facts.EntityGivenEquality:
		return NodeGivenEquality, true
	case facts.EntityTransEquality:
		return NodeTransEquality, true
	default:
		return 0, false
	}
}

// EdgeKind is the causal relationship an edge represents.
type EdgeKind int

const (
	// EdgeYield: instantiation -> produced e-node.
	EdgeYield EdgeKind = iota

	// EdgeBlame: e-node -> instantiation that matched on it.
	EdgeBlame

	// EdgeEqualityFact: e-node -> equality establishing its representative.
	EdgeEqualityFact

	// EdgeTEqualitySimple: given equality -> transitive equality.
	EdgeTEqualitySimple

	// EdgeBlameEq: equality -> instantiation whose match used it.
	EdgeBlameEq
)

var edgeKindNames = map[EdgeKind]string{
	EdgeYield:           "yield",
	EdgeBlame:           "blame",
	EdgeEqualityFact:    "equality_fact",
	EdgeTEqualitySimple: "t_equality_simple",
	EdgeBlameEq:         "blame_eq",
}

// String returns the string representation of the edge kind.
func (k EdgeKind) String() string {
	if name, ok := edgeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", k)
}

// MarshalText implements encoding.TextMarshaler.
func (k EdgeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

var depEdgeKinds = map[facts.DepKind]EdgeKind{
	facts.DepYield:           EdgeYield,
	facts.DepBlame:           EdgeBlame,
	facts.DepEqualityFact:    EdgeEqualityFact,
	facts.DepTEqualitySimple: EdgeTEqualitySimple,
	facts.DepBlameEq:         EdgeBlameEq,
}

// Direction selects parents (Incoming) or children (Outgoing).
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

// String returns "out" or "in".
func (d Direction) String() string {
	if d == Incoming {
		return "in"
	}
	return "out"
}

// Depth is a min/max hop distance.
type Depth struct {
	Min int
	Max int
}

// Node is one entity in the raw graph.
//
// Values returned by Graph accessors are copies; mutating them has no effect
// on the graph.
type Node struct {
	Idx  NodeIdx
	Kind NodeKind
	Ref  facts.Ref

	// Cost is the instantiation cost; zero for other kinds.
	Cost float64

	// Quant is the instantiation's quantifier; nil when discovered without one.
	Quant *facts.QuantIdx

	// Discovered marks theory-solving instantiations.
	Discovered bool

	Visible  bool
	Disabled bool

	// FwdDepth is the hop distance from any root; BwdDepth to any leaf.
	FwdDepth Depth
	BwdDepth Depth

	ChildCount  int
	ParentCount int

	// CostRank is the node's position in the global cost order.
	CostRank int
}

// Shown reports whether the node appears in a materialized snapshot.
func (n Node) Shown() bool {
	return n.Visible && !n.Disabled
}

// IsInstantiation reports whether the node is an instantiation.
func (n Node) IsInstantiation() bool {
	return n.Kind == NodeInstantiation
}

// Edge is one causal dependency.
type Edge struct {
	Idx  EdgeIdx
	From NodeIdx
	To   NodeIdx
	Kind EdgeKind

	// TriggerPos is the trigger-term position for blame edges.
	TriggerPos int

	// EqOrder is the equality ordinal for BlameEq edges.
	EqOrder int
}

// Graph is the raw instantiation graph.
type Graph struct {
	nodes []Node
	edges []Edge
	out   [][]EdgeIdx
	in    [][]EdgeIdx
	byRef map[facts.Ref]NodeIdx

	costRanked []NodeIdx
	topo       []NodeIdx
	topoRank   []int

	reach *LRUCache[reachKey, []NodeIdx]
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// CheckNode returns ErrNodeOutOfRange if idx is not a node of g.
func (g *Graph) CheckNode(idx NodeIdx) error {
	if idx < 0 || int(idx) >= len(g.nodes) {
		return fmt.Errorf("%w: %d (graph has %d nodes)", ErrNodeOutOfRange, idx, len(g.nodes))
	}
	return nil
}

// Node returns a copy of the node at idx.
func (g *Graph) Node(idx NodeIdx) (Node, bool) {
	if g.CheckNode(idx) != nil {
		return Node{}, false
	}
	return g.nodes[idx], true
}

// Edge returns the edge at idx.
func (g *Graph) Edge(idx EdgeIdx) (Edge, bool) {
	if idx < 0 || int(idx) >= len(g.edges) {
		return Edge{}, false
	}
	return g.edges[idx], true
}

// NodeByRef returns the node representing a fact entity.
func (g *Graph) NodeByRef(ref facts.Ref) (NodeIdx, bool) {
	idx, ok := g.byRef[ref]
	return idx, ok
}

// OutEdges returns the outgoing edges of idx in insertion order.
// The returned slice must not be modified.
func (g *Graph) OutEdges(idx NodeIdx) []EdgeIdx { return g.out[idx] }

// InEdges returns the incoming edges of idx in insertion order.
// The returned slice must not be modified.
func (g *Graph) InEdges(idx NodeIdx) []EdgeIdx { return g.in[idx] }

// Neighbours returns the distinct neighbours of idx in direction dir,
// in edge insertion order.
func (g *Graph) Neighbours(idx NodeIdx, dir Direction) []NodeIdx {
	edges := g.out[idx]
	if dir == Incoming {
		edges = g.in[idx]
	}
	result := make([]NodeIdx, 0, len(edges))
	seen := make(map[NodeIdx]struct{}, len(edges))
	for _, e := range edges {
		n := g.edges[e].To
		if dir == Incoming {
			n = g.edges[e].From
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}

// Children returns the distinct children of idx.
func (g *Graph) Children(idx NodeIdx) []NodeIdx { return g.Neighbours(idx, Outgoing) }

// Parents returns the distinct parents of idx.
func (g *Graph) Parents(idx NodeIdx) []NodeIdx { return g.Neighbours(idx, Incoming) }

// CostRanked returns all nodes in cost-rank order: cost descending, then
// origin index ascending. The returned slice must not be modified.
func (g *Graph) CostRanked() []NodeIdx { return g.costRanked }

// TopoOrder returns the nodes in a topological order.
// The returned slice must not be modified.
func (g *Graph) TopoOrder() []NodeIdx { return g.topo }

// TopoRank returns the position of idx in TopoOrder.
func (g *Graph) TopoRank(idx NodeIdx) int { return g.topoRank[idx] }
