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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/instgraph/services/instgraph/facts/factstest"
)

// diamond builds A->B->D, A->C->D with instantiations at B and C.
func diamond() (*factstest.Builder, [4]int) {
	b := factstest.New()
	a := b.Inst(1, 0)
	bb := b.Inst(1, 0)
	c := b.Inst(1, 0)
	d := b.Inst(1, 0)
	b.Edge(a, bb).Edge(a, c).Edge(bb, d).Edge(c, d)
	return b, [4]int{a, bb, c, d}
}

func TestAnalyse_Depths(t *testing.T) {
	// 0 -> 1 -> 2 -> 3 and shortcut 0 -> 3
	b := factstest.New()
	n := []int{b.Inst(1, 0), b.ENode(), b.Inst(1, 0), b.ENode()}
	b.Chain(n...).Edge(n[0], n[3])
	g := build(t, b)

	tests := []struct {
		node NodeIdx
		fwd  Depth
		bwd  Depth
	}{
		{0, Depth{0, 0}, Depth{1, 3}},
		{1, Depth{1, 1}, Depth{2, 2}},
		{2, Depth{2, 2}, Depth{1, 1}},
		{3, Depth{1, 3}, Depth{0, 0}},
	}
	for _, tt := range tests {
		node, _ := g.Node(tt.node)
		assert.Equal(t, tt.fwd, node.FwdDepth, "fwd depth of %d", tt.node)
		assert.Equal(t, tt.bwd, node.BwdDepth, "bwd depth of %d", tt.node)
	}
}

func TestAnalyse_CostRankTies(t *testing.T) {
	b := factstest.New()
	b.Inst(5, 0)
	b.Inst(5, 0)
	b.Inst(1, 0)
	b.ENode()
	b.Inst(7, 0)
	g := build(t, b)

	assert.Equal(t, []NodeIdx{4, 0, 1, 2, 3}, g.CostRanked())

	for i, idx := range g.CostRanked() {
		node, _ := g.Node(idx)
		assert.Equal(t, i, node.CostRank)
	}
}

func TestAnalyse_TopoOrder(t *testing.T) {
	b, _ := diamond()
	g := build(t, b)

	assert.Equal(t, []NodeIdx{0, 1, 2, 3}, g.TopoOrder())
	for rank, idx := range g.TopoOrder() {
		assert.Equal(t, rank, g.TopoRank(idx))
	}
}

func TestLongestPathThrough(t *testing.T) {
	b, n := diamond()
	g := build(t, b)
	ctx := context.Background()

	path, err := g.LongestPathThrough(ctx, NodeIdx(n[3]))
	require.NoError(t, err)
	assert.Equal(t, []NodeIdx{0, 1, 3}, path)

	path, err = g.LongestPathThrough(ctx, NodeIdx(n[2]))
	require.NoError(t, err)
	assert.Equal(t, []NodeIdx{0, 2, 3}, path)

	path, err = g.LongestPathThrough(ctx, NodeIdx(n[0]))
	require.NoError(t, err)
	assert.Equal(t, []NodeIdx{0, 1, 3}, path)

	_, err = g.LongestPathThrough(ctx, 99)
	assert.ErrorIs(t, err, ErrNodeOutOfRange)
}

func TestLongestPathThrough_PrefersLongerBranch(t *testing.T) {
	// 0 -> 3 and 0 -> 1 -> 2 -> 3: the path through 3 takes the long way.
	b := factstest.New()
	n := []int{b.Inst(1, 0), b.ENode(), b.Inst(1, 0), b.ENode()}
	b.Edge(n[0], n[3]).Chain(n...)
	g := build(t, b)

	path, err := g.LongestPathThrough(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []NodeIdx{0, 1, 2, 3}, path)
}

func TestReachability(t *testing.T) {
	b, _ := diamond()
	g := build(t, b)
	ctx := context.Background()

	desc, err := g.Descendants(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []NodeIdx{1, 3}, desc)

	anc, err := g.Ancestors(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []NodeIdx{0, 1, 2, 3}, anc)

	// Second lookup is served from the memo.
	_, err = g.Descendants(ctx, 1)
	require.NoError(t, err)
	hits, _ := g.ReachCacheStats()
	assert.GreaterOrEqual(t, hits, int64(1))

	marked := g.ReachableSet([]NodeIdx{1, 2}, Outgoing)
	assert.Equal(t, []bool{false, true, true, true}, marked)

	_, err = g.Descendants(ctx, -1)
	assert.ErrorIs(t, err, ErrNodeOutOfRange)
}

func TestVisibility(t *testing.T) {
	b, _ := diamond()
	g := build(t, b)

	snap := g.VisibilitySnapshot()
	assert.Equal(t, 2, g.HideWhen(func(n Node) bool { return n.Idx%2 == 1 }))
	assert.Equal(t, 2, g.VisibleCount())
	assert.True(t, g.HasHiddenChildren(0))
	assert.False(t, g.HasHiddenParents(2))

	require.NoError(t, g.RestoreVisibility(snap))
	assert.Equal(t, 4, g.VisibleCount())
	assert.ErrorIs(t, g.RestoreVisibility([]bool{true}), ErrSnapshotMismatch)

	require.NoError(t, g.SetVisibleExactly([]NodeIdx{0, 3}))
	assert.Equal(t, 2, g.VisibleCount())
	assert.Equal(t, 2, g.HiddenNeighbours(0, Outgoing))

	assert.Equal(t, 1, g.MarkDisabled(func(n Node) bool { return n.Idx == 0 }))
	node, _ := g.Node(0)
	assert.True(t, node.Visible)
	assert.False(t, node.Shown())

	g.ShowAll()
	assert.Equal(t, 4, g.VisibleCount())
	assert.ErrorIs(t, g.SetVisible(7, true), ErrNodeOutOfRange)
}
