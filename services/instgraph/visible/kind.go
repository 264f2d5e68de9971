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
	"fmt"
	"slices"

	"github.com/AleutianAI/instgraph/services/instgraph/graph"
)

// EdgeKind names the shape of the raw path behind a visible edge.
type EdgeKind uint8

const (
	// KindDirect is a single raw edge.
	KindDirect EdgeKind = iota

	// KindYieldBlame is instantiation -> e-node -> instantiation.
	KindYieldBlame

	// KindYieldEq is instantiation -> e-node -> given eq -> trans eq.
	KindYieldEq

	// KindYieldBlameEq is instantiation -> e-node -> given eq -> trans eq
	// (single parent) -> instantiation.
	KindYieldBlameEq

	// KindYieldEqOther is any other path starting yield, equality fact.
	KindYieldEqOther

	// KindENodeEq is e-node -> given eq -> trans eq.
	KindENodeEq

	// KindENodeBlameEq is e-node -> given eq -> trans eq (single parent) ->
	// instantiation.
	KindENodeBlameEq

	// KindENodeEqOther is any other path starting with an equality fact.
	KindENodeEqOther

	// KindUnknown is every other path.
	KindUnknown
)

var edgeKindNames = map[EdgeKind]string{
	KindDirect:       "direct",
	KindYieldBlame:   "yield_blame",
	KindYieldEq:      "yield_eq",
	KindYieldBlameEq: "yield_blame_eq",
	KindYieldEqOther: "yield_eq_other",
	KindENodeEq:      "enode_eq",
	KindENodeBlameEq: "enode_blame_eq",
	KindENodeEqOther: "enode_eq_other",
	KindUnknown:      "unknown",
}

func (k EdgeKind) String() string {
	if name, ok := edgeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("edge_kind(%d)", k)
}

// MarshalText implements encoding.TextMarshaler.
func (k EdgeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// EdgeDetail is the classification of a visible edge.
type EdgeDetail struct {
	Kind EdgeKind `json:"kind"`

	// Raw lists the kinds of the raw edges on the path.
	Raw []graph.EdgeKind `json:"raw"`

	// BlameNode is the raw node the edge is attributed to: the source for
	// direct and unknown edges, the e-node for yield-blame, and the given
	// equality for the equality shapes.
	BlameNode graph.NodeIdx `json:"blame_node"`

	// TriggerPos and EqOrder come from the final blame edge, when present.
	TriggerPos int `json:"trigger_pos,omitempty"`
	EqOrder    int `json:"eq_order,omitempty"`
}

// Blame returns the kind of BlameNode.
func (d EdgeDetail) Blame(g *graph.Graph) graph.NodeKind {
	n, _ := g.Node(d.BlameNode)
	return n.Kind
}

// Classify describes the raw path behind e.
func Classify(g *graph.Graph, e Edge) EdgeDetail {
	edges := make([]graph.Edge, len(e.Path))
	raw := make([]graph.EdgeKind, len(e.Path))
	for i, idx := range e.Path {
		edges[i], _ = g.Edge(idx)
		raw[i] = edges[i].Kind
	}
	detail := EdgeDetail{Kind: KindUnknown, Raw: raw, BlameNode: e.From}
	if len(edges) == 0 {
		return detail
	}

	// node returns the i-th node along the path, From being 0.
	node := func(i int) graph.NodeIdx {
		if i == len(edges) {
			return edges[i-1].To
		}
		return edges[i].From
	}
	singleParent := func(i int) bool {
		return len(g.InEdges(node(i))) == 1
	}
	is := func(kinds ...graph.EdgeKind) bool {
		return slices.Equal(raw, kinds)
	}
	startsWith := func(kinds ...graph.EdgeKind) bool {
		return len(raw) >= len(kinds) && slices.Equal(raw[:len(kinds)], kinds)
	}
	last := edges[len(edges)-1]

	const (
		yield  = graph.EdgeYield
		blame  = graph.EdgeBlame
		eqFact = graph.EdgeEqualityFact
		teq    = graph.EdgeTEqualitySimple
		blEq   = graph.EdgeBlameEq
	)

	switch {
	case e.Type == Direct:
		detail.Kind = KindDirect

	case is(yield, blame):
		detail.Kind = KindYieldBlame
		detail.BlameNode = node(1)
		detail.TriggerPos = last.TriggerPos

	case is(yield, eqFact, teq):
		detail.Kind = KindYieldEq
		detail.BlameNode = node(2)

	case is(yield, eqFact, teq, blEq):
		detail.BlameNode = node(2)
		detail.Kind = KindYieldEqOther
		if singleParent(3) {
			detail.Kind = KindYieldBlameEq
			detail.TriggerPos = last.TriggerPos
			detail.EqOrder = last.EqOrder
		}

	case startsWith(yield, eqFact):
		detail.Kind = KindYieldEqOther
		detail.BlameNode = node(2)

	case is(eqFact, teq):
		detail.Kind = KindENodeEq
		detail.BlameNode = node(1)

	case is(eqFact, teq, blEq):
		detail.BlameNode = node(1)
		detail.Kind = KindENodeEqOther
		if singleParent(2) {
			detail.Kind = KindENodeBlameEq
			detail.TriggerPos = last.TriggerPos
			detail.EqOrder = last.EqOrder
		}

	case startsWith(eqFact):
		detail.Kind = KindENodeEqOther
		detail.BlameNode = node(1)
	}
	return detail
}
