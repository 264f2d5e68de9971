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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/instgraph/services/instgraph/facts"
	"github.com/AleutianAI/instgraph/services/instgraph/facts/factstest"
	"github.com/AleutianAI/instgraph/services/instgraph/graph"
)

func build(t *testing.T, b *factstest.Builder) *graph.Graph {
	t.Helper()
	result, err := graph.Build(context.Background(), b.Store())
	require.NoError(t, err)
	require.True(t, result.Success())
	return result.Graph
}

func visible(g *graph.Graph) []graph.NodeIdx {
	out := []graph.NodeIdx{}
	for i := 0; i < g.NodeCount(); i++ {
		if n, _ := g.Node(graph.NodeIdx(i)); n.Visible {
			out = append(out, n.Idx)
		}
	}
	return out
}

// diamond builds 0->1->3, 0->2->3.
func diamond() *factstest.Builder {
	b := factstest.New()
	a, l, r, d := b.Inst(1, 0), b.Inst(1, 0), b.Inst(1, 0), b.Inst(1, 0)
	b.Edge(a, l).Edge(a, r).Edge(l, d).Edge(r, d)
	return b
}

// mixed holds two quantifiers, a theory-solving instantiation and an e-node:
//
//	0: inst q0   1: inst q1   2: theory inst   3: enode   4: inst q1
func mixed() *factstest.Builder {
	b := factstest.New()
	q1 := b.Quant(facts.Quantifier{Kind: facts.QuantUnnamed, Name: "q1", ID: 4})
	b.Inst(3, 0)
	b.Inst(2, q1)
	b.TheoryInst(9)
	b.ENode()
	b.Inst(1, q1)
	return b
}

func TestFilters(t *testing.T) {
	q1 := facts.QuantIdx(1)

	tests := []struct {
		name   string
		graph  func() *factstest.Builder
		filter Filter
		want   []graph.NodeIdx
	}{
		{"max node idx", diamond, MaxNodeIdx{N: 2}, []graph.NodeIdx{0, 1}},
		{"max node idx zero", diamond, MaxNodeIdx{N: 0}, []graph.NodeIdx{}},
		{"min node idx", diamond, MinNodeIdx{N: 2}, []graph.NodeIdx{2, 3}},
		{"ignore theory solving", mixed, IgnoreTheorySolving{}, []graph.NodeIdx{0, 1, 3, 4}},
		{"ignore quantifier", mixed, IgnoreQuantifier{Quant: &q1}, []graph.NodeIdx{0, 2, 3}},
		{"ignore quantifier none", mixed, IgnoreQuantifier{}, []graph.NodeIdx{0, 1, 3, 4}},
		{"ignore all but quantifier", mixed, IgnoreAllButQuantifier{Quant: &q1}, []graph.NodeIdx{1, 3, 4}},
		{"ignore all but none", mixed, IgnoreAllButQuantifier{}, []graph.NodeIdx{2, 3}},
		{"max insts", mixed, MaxInsts{N: 2}, []graph.NodeIdx{0, 2, 3}},
		{"max branching", diamond, MaxBranching{N: 1}, []graph.NodeIdx{0}},
		{"max branching tie", diamond, MaxBranching{N: 2}, []graph.NodeIdx{0, 1}},
		{"subtree retain", diamond, VisitSubTreeWithRoot{Node: 1, Retain: true}, []graph.NodeIdx{1, 3}},
		{"subtree hide", diamond, VisitSubTreeWithRoot{Node: 1}, []graph.NodeIdx{0, 2}},
		{"source tree retain", diamond, VisitSourceTree{Node: 1, Retain: true}, []graph.NodeIdx{0, 1}},
		{"source tree hide", diamond, VisitSourceTree{Node: 3}, []graph.NodeIdx{}},
		{"max depth", diamond, MaxDepth{Depth: 1}, []graph.NodeIdx{0, 1, 2}},
		{"max depth zero", diamond, MaxDepth{Depth: 0}, []graph.NodeIdx{0}},
		{"named quantifier", mixed, ShowNamedQuantifier{Name: "q1!4"}, []graph.NodeIdx{1, 4}},
		{"named quantifier no match", mixed, ShowNamedQuantifier{Name: "nope"}, []graph.NodeIdx{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.graph()
			g := build(t, b)
			out, err := Apply(context.Background(), tt.filter, g, b.Store(), facts.DisplayConfig{})
			require.NoError(t, err)
			assert.False(t, out.HasPath())
			assert.Equal(t, tt.want, visible(g))
		})
	}
}

func TestMaxInsts_KeepsMostExpensive(t *testing.T) {
	// I0(5) -> I1(5) -> I2(1): ties broken by index, cheapest dropped.
	b := factstest.New()
	b.Chain(b.Inst(5, 0), b.Inst(5, 0), b.Inst(1, 0))
	g := build(t, b)

	_, err := Apply(context.Background(), MaxInsts{N: 2}, g, b.Store(), facts.DisplayConfig{})
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeIdx{0, 1}, visible(g))
}

func TestMaxInsts_RanksOnlyVisible(t *testing.T) {
	b := factstest.New()
	b.Inst(9, 0)
	b.Inst(5, 0)
	b.Inst(1, 0)
	g := build(t, b)
	ctx := context.Background()

	_, err := Apply(ctx, MinNodeIdx{N: 1}, g, b.Store(), facts.DisplayConfig{})
	require.NoError(t, err)
	_, err = Apply(ctx, MaxInsts{N: 1}, g, b.Store(), facts.DisplayConfig{})
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeIdx{1}, visible(g))
}

func TestShowNeighbours_OverridesHides(t *testing.T) {
	b := diamond()
	g := build(t, b)
	ctx := context.Background()
	g.HideWhen(func(graph.Node) bool { return true })

	_, err := Apply(ctx, ShowNeighbours{Node: 0, Dir: graph.Outgoing}, g, b.Store(), facts.DisplayConfig{})
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeIdx{1, 2}, visible(g))

	g.HideWhen(func(graph.Node) bool { return true })
	_, err = Apply(ctx, ShowNeighbours{Node: 1, Dir: graph.Incoming}, g, b.Store(), facts.DisplayConfig{})
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeIdx{0}, visible(g))
}

func TestShowLongestPath(t *testing.T) {
	b := diamond()
	g := build(t, b)

	out, err := Apply(context.Background(), ShowLongestPath{Node: 3}, g, b.Store(), facts.DisplayConfig{})
	require.NoError(t, err)
	require.True(t, out.HasPath())
	assert.Equal(t, []graph.NodeIdx{0, 1, 3}, out.Path)
	assert.Equal(t, out.Path, visible(g))
}

func TestApply_InvalidArgumentsLeaveGraphUntouched(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr error
	}{
		{"negative max insts", MaxInsts{N: -1}, ErrInvalidArgument},
		{"negative max depth", MaxDepth{Depth: -3}, ErrInvalidArgument},
		{"negative branching", MaxBranching{N: -1}, ErrInvalidArgument},
		{"empty name", ShowNamedQuantifier{}, ErrInvalidArgument},
		{"neighbours out of range", ShowNeighbours{Node: 9}, graph.ErrNodeOutOfRange},
		{"subtree out of range", VisitSubTreeWithRoot{Node: 4, Retain: true}, graph.ErrNodeOutOfRange},
		{"source tree negative", VisitSourceTree{Node: -1}, graph.ErrNodeOutOfRange},
		{"longest path out of range", ShowLongestPath{Node: 4}, graph.ErrNodeOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := diamond()
			g := build(t, b)
			require.NoError(t, g.SetVisible(2, false))
			before := g.VisibilitySnapshot()

			_, err := Apply(context.Background(), tt.filter, g, b.Store(), facts.DisplayConfig{})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, g.VisibilitySnapshot())
		})
	}
}

func TestChainApply_NarrowingIsMonotonic(t *testing.T) {
	b := mixed()
	g := build(t, b)
	chain := Chain{IgnoreTheorySolving{}, MaxNodeIdx{N: 4}, MaxInsts{N: 1}, MaxDepth{Depth: 0}}

	prev := g.VisibleCount()
	for _, f := range chain {
		_, err := Apply(context.Background(), f, g, b.Store(), facts.DisplayConfig{})
		require.NoError(t, err)
		assert.LessOrEqual(t, g.VisibleCount(), prev, "after %s", f)
		prev = g.VisibleCount()
	}
	assert.Equal(t, []graph.NodeIdx{0, 3}, visible(g))
}

func TestShowNamedQuantifier_DoesNotRevealHidden(t *testing.T) {
	b := mixed()
	g := build(t, b)

	chain := Chain{MaxNodeIdx{N: 4}, ShowNamedQuantifier{Name: "q1!4"}}
	_, err := chain.Apply(context.Background(), g, b.Store(), facts.DisplayConfig{})
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeIdx{1}, visible(g), "node 4 matches but was already hidden")
}

func TestChainApply_ReportsFailingFilter(t *testing.T) {
	b := diamond()
	g := build(t, b)
	chain := Chain{MaxNodeIdx{N: 3}, ShowLongestPath{Node: 1}, ShowNeighbours{Node: 40}}

	outputs, err := chain.Apply(context.Background(), g, b.Store(), facts.DisplayConfig{})
	require.Error(t, err)

	var fe FilterError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Index)
	assert.ErrorIs(t, err, graph.ErrNodeOutOfRange)
	assert.Len(t, outputs, 2)
	assert.Equal(t, []graph.NodeIdx{0, 1, 3}, outputs[1].Path)
}
