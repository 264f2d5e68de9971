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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/instgraph/services/instgraph/facts"
	"github.com/AleutianAI/instgraph/services/instgraph/facts/factstest"
)

func build(t *testing.T, b *factstest.Builder, opts ...BuilderOption) *Graph {
	t.Helper()
	result, err := Build(context.Background(), b.Store(), opts...)
	require.NoError(t, err)
	require.True(t, result.Success())
	return result.Graph
}

func TestBuild_Empty(t *testing.T) {
	result, err := Build(context.Background(), &facts.Store{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Graph.NodeCount())
	assert.Equal(t, 0, result.Graph.EdgeCount())
	assert.Empty(t, result.Graph.CostRanked())
}

func TestBuild_NilStore(t *testing.T) {
	_, err := Build(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilStore)
}

func TestBuild_NodesAndEdges(t *testing.T) {
	b := factstest.New()
	i0 := b.Inst(5, 0)
	e1 := b.ENode()
	i2 := b.Inst(3, 0)
	b.Chain(i0, e1, i2)

	result, err := Build(context.Background(), b.Store())
	require.NoError(t, err)
	g := result.Graph

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, 1, result.Stats.Roots)
	assert.Equal(t, 1, result.Stats.Leaves)

	n, ok := g.Node(NodeIdx(e1))
	require.True(t, ok)
	assert.Equal(t, NodeENode, n.Kind)
	assert.True(t, n.Visible)
	assert.False(t, n.Disabled)
	assert.Equal(t, 1, n.ParentCount)
	assert.Equal(t, 1, n.ChildCount)

	e0, _ := g.Edge(0)
	assert.Equal(t, EdgeYield, e0.Kind)
	e1Edge, _ := g.Edge(1)
	assert.Equal(t, EdgeBlame, e1Edge.Kind)

	idx, ok := g.NodeByRef(b.Ref(i2))
	require.True(t, ok)
	assert.Equal(t, NodeIdx(i2), idx)
}

func TestBuild_DuplicateDependenciesCollapse(t *testing.T) {
	b := factstest.New()
	a := b.Inst(1, 0)
	c := b.ENode()
	b.Edge(a, c).Edge(a, c)

	g := build(t, b)
	assert.Equal(t, 1, g.EdgeCount())
}

func TestBuild_InstantiationAttributes(t *testing.T) {
	b := factstest.New()
	q := b.Quant(facts.Quantifier{Kind: facts.QuantNamed, Name: "loop"})
	named := b.Inst(2.5, q)
	theory := b.TheoryInst(1)

	g := build(t, b)

	n, _ := g.Node(NodeIdx(named))
	require.NotNil(t, n.Quant)
	assert.Equal(t, q, *n.Quant)
	assert.Equal(t, 2.5, n.Cost)
	assert.False(t, n.Discovered)

	n, _ = g.Node(NodeIdx(theory))
	assert.Nil(t, n.Quant)
	assert.True(t, n.Discovered)
}

func TestBuild_DanglingSource(t *testing.T) {
	b := factstest.New()
	b.Inst(1, 0)
	store := b.Store()
	// ENode 0 exists in the store but never became a node.
	store.ENodes = append(store.ENodes, facts.ENode{})
	to := facts.InstRef(0)
	store.Dependencies = append(store.Dependencies, facts.Dependency{From: facts.ENodeRef(0), To: &to})

	t.Run("strict aborts", func(t *testing.T) {
		_, err := Build(context.Background(), store)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDanglingReference)

		var depErr DependencyError
		require.True(t, errors.As(err, &depErr))
		assert.Equal(t, 1, depErr.Index)
	})

	t.Run("partial skips", func(t *testing.T) {
		result, err := Build(context.Background(), store, WithAllowPartial(true))
		require.NoError(t, err)
		assert.True(t, result.HasErrors())
		assert.Len(t, result.DependencyErrors, 1)
		assert.Equal(t, 1, result.Graph.NodeCount())
		assert.Equal(t, 0, result.Graph.EdgeCount())
	})
}

func TestBuild_OutOfRangeTarget(t *testing.T) {
	bad := facts.InstRef(42)
	store := &facts.Store{Dependencies: []facts.Dependency{{To: &bad}}}

	_, err := Build(context.Background(), store)
	assert.ErrorIs(t, err, ErrDanglingReference)
	assert.ErrorIs(t, err, facts.ErrDanglingReference)
}

func TestBuild_Cycle(t *testing.T) {
	b := factstest.New()
	a := b.Inst(1, 0)
	e := b.ENode()
	b.Edge(a, e).Edge(e, a)

	_, err := Build(context.Background(), b.Store())
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestBuild_TruncatedStore(t *testing.T) {
	b := factstest.New()
	a := b.Inst(1, 0)
	e := b.ENode()
	c := b.Inst(1, 0)
	b.Chain(a, e, c)
	full := b.Store()

	for n := 0; n <= len(full.Dependencies); n++ {
		result, err := Build(context.Background(), full.Truncate(n))
		require.NoError(t, err, "truncated at %d", n)
		assert.LessOrEqual(t, result.Graph.NodeCount(), 3)
	}
}

func TestBuild_MaxNodes(t *testing.T) {
	b := factstest.New()
	a := b.Inst(1, 0)
	e := b.ENode()
	c := b.Inst(1, 0)
	b.Chain(a, e, c)

	result, err := Build(context.Background(), b.Store(), WithMaxNodes(2))
	require.NoError(t, err)
	assert.True(t, result.Incomplete)
	assert.False(t, result.Success())
	assert.Equal(t, 2, result.Graph.NodeCount())
	assert.Equal(t, 0, result.Graph.EdgeCount())
}

func TestBuild_Cancelled(t *testing.T) {
	b := factstest.New()
	b.Inst(1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, b.Store())
	assert.ErrorIs(t, err, ErrBuildCancelled)
}
