// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/instgraph/services/instgraph/disable"
	"github.com/AleutianAI/instgraph/services/instgraph/facts"
	"github.com/AleutianAI/instgraph/services/instgraph/facts/factstest"
	"github.com/AleutianAI/instgraph/services/instgraph/filter"
	"github.com/AleutianAI/instgraph/services/instgraph/graph"
	"github.com/AleutianAI/instgraph/services/instgraph/visible"
)

// costChain is I0(5) -> I1(5) -> I2(1).
func costChain() *facts.Store {
	b := factstest.New()
	b.Chain(b.Inst(5, 0), b.Inst(5, 0), b.Inst(1, 0))
	return b.Store()
}

// passThrough is I0 -> E1 -> I2, plus a theory instantiation T3 -> I2.
func passThrough() *facts.Store {
	b := factstest.New()
	i0, e1, i2, t3 := b.Inst(4, 0), b.ENode(), b.Inst(2, 0), b.TheoryInst(7)
	b.Chain(i0, e1, i2).Edge(t3, i2)
	return b.Store()
}

func newSession(t *testing.T, store *facts.Store, opts ...Option) *Session {
	t.Helper()
	s, err := New(context.Background(), store, opts...)
	require.NoError(t, err)
	return s
}

func shownIdxs(vg *visible.Graph) []graph.NodeIdx {
	out := []graph.NodeIdx{}
	for _, n := range vg.Nodes {
		out = append(out, n.Idx)
	}
	return out
}

func visibleFlags(t *testing.T, s *Session) []bool {
	t.Helper()
	flags := make([]bool, s.NodeCount())
	for i := range flags {
		n, err := s.Node(graph.NodeIdx(i))
		require.NoError(t, err)
		flags[i] = n.Visible
	}
	return flags
}

func TestNew_Defaults(t *testing.T) {
	s := newSession(t, costChain())

	_, err := uuid.Parse(s.ID())
	assert.NoError(t, err)
	assert.True(t, s.Chain().Equal(filter.DefaultChain()))
	assert.Equal(t, disable.DefaultSet, s.Disablers())
	assert.Equal(t, uint64(1), s.Generation())
	assert.Equal(t, []graph.NodeIdx{0, 1, 2}, shownIdxs(s.Visible()))
	assert.Equal(t, 3, s.BuildStats().NodesCreated)

	_, err = s.Undo(context.Background())
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestNew_BuildError(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBuildFailed)
	assert.ErrorIs(t, err, graph.ErrNilStore)
}

func TestNew_InitialChainError(t *testing.T) {
	_, err := New(context.Background(), costChain(), WithChain(filter.Chain{filter.ShowLongestPath{Node: 10}}))
	assert.ErrorIs(t, err, graph.ErrNodeOutOfRange)
}

func TestApplyChain_MaxInsts(t *testing.T) {
	s := newSession(t, costChain())

	vg, err := s.ApplyChain(context.Background(), filter.Chain{filter.MaxInsts{N: 2}})
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeIdx{0, 1}, shownIdxs(vg))
	assert.Equal(t, []visible.Edge{{From: 0, To: 1, Type: visible.Direct, Path: []graph.EdgeIdx{0}}}, vg.Edges)
	assert.Equal(t, uint64(2), vg.Generation)
	assert.Same(t, vg, s.Visible())
}

func TestApplyChain_StartsFromAllVisible(t *testing.T) {
	s := newSession(t, costChain())
	ctx := context.Background()

	_, err := s.ApplyChain(ctx, filter.Chain{filter.MaxNodeIdx{N: 1}})
	require.NoError(t, err)
	vg, err := s.ApplyChain(ctx, filter.Chain{filter.MinNodeIdx{N: 1}})
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeIdx{1, 2}, shownIdxs(vg))
}

func TestReset_Idempotent(t *testing.T) {
	store := costChain()
	s := newSession(t, store, WithDisablers(0))
	ctx := context.Background()

	_, err := s.ApplyChain(ctx, filter.Chain{filter.MaxInsts{N: 1}, filter.MaxDepth{Depth: 0}})
	require.NoError(t, err)

	reset, err := s.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), reset.Generation)
	assert.Equal(t, 3, reset.NodeCount())
	assert.Equal(t, 2, reset.EdgeCount())
	assert.Zero(t, reset.IndirectCount())

	again, err := s.ApplyChain(ctx, filter.Chain{})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), again.Generation)
	assert.Equal(t, reset.Nodes, again.Nodes)
	assert.Equal(t, reset.Edges, again.Edges)
	assert.Empty(t, s.Chain())
}

func TestReset_KeepsSmartDisabled(t *testing.T) {
	s := newSession(t, passThrough())
	ctx := context.Background()
	require.True(t, s.Disablers().Has(disable.Smart))

	// The default chain hides the theory instantiation.
	assert.Equal(t, []graph.NodeIdx{0, 2}, shownIdxs(s.Visible()))

	reset, err := s.Reset(ctx)
	require.NoError(t, err)
	again, err := s.ApplyChain(ctx, filter.Chain{})
	require.NoError(t, err)

	for _, vg := range []*visible.Graph{reset, again} {
		assert.Equal(t, []graph.NodeIdx{0, 2, 3}, shownIdxs(vg))
		assert.Equal(t, 2, vg.EdgeCount())
		assert.Equal(t, 1, vg.IndirectCount())
	}
	assert.Equal(t, reset.Edges, again.Edges)
	assert.Equal(t, []bool{true, true, true, true}, visibleFlags(t, s))

	e1, err := s.Node(1)
	require.NoError(t, err)
	assert.True(t, e1.Disabled, "reset must not clear disabled flags")
	assert.True(t, s.Disablers().Has(disable.Smart))
}

func TestApplyChain_AllOrNothing(t *testing.T) {
	s := newSession(t, costChain())
	ctx := context.Background()

	before, err := s.ApplyChain(ctx, filter.Chain{filter.MaxInsts{N: 2}})
	require.NoError(t, err)
	flags := visibleFlags(t, s)

	_, err = s.ApplyChain(ctx, filter.Chain{filter.MaxNodeIdx{N: 1}, filter.ShowNeighbours{Node: 99}})
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrNodeOutOfRange)
	var fe filter.FilterError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 1, fe.Index)

	assert.Same(t, before, s.Visible())
	assert.Equal(t, uint64(2), s.Generation())
	assert.True(t, s.Chain().Equal(filter.Chain{filter.MaxInsts{N: 2}}))
	assert.Equal(t, flags, visibleFlags(t, s))

	// The failed chain is not an undo target.
	vg, err := s.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, s.Chain().Equal(filter.DefaultChain()))
	assert.Equal(t, 3, vg.NodeCount())
}

func TestApplyChain_MonotonicNarrowing(t *testing.T) {
	s := newSession(t, passThrough(), WithDisablers(0))
	ctx := context.Background()
	chain := filter.Chain{
		filter.IgnoreTheorySolving{},
		filter.MaxNodeIdx{N: 3},
		filter.MaxInsts{N: 1},
		filter.MaxDepth{Depth: 1},
	}

	var sets [][]bool
	for i := 0; i <= len(chain); i++ {
		_, err := s.ApplyChain(ctx, chain[:i])
		require.NoError(t, err)
		sets = append(sets, visibleFlags(t, s))
	}

	final := sets[len(sets)-1]
	for i, prefix := range sets {
		for n, shown := range final {
			if shown {
				assert.True(t, prefix[n], "node %d visible after full chain but not after prefix %d", n, i)
			}
		}
	}
	assert.Equal(t, []bool{true, true, false, false}, final)
}

func TestSetDisablers_KeepsVisibility(t *testing.T) {
	s := newSession(t, passThrough(), WithDisablers(0), WithChain(nil))
	ctx := context.Background()
	flags := visibleFlags(t, s)
	assert.Equal(t, 4, s.Visible().NodeCount())

	vg, err := s.SetDisablers(ctx, disable.DefaultSet)
	require.NoError(t, err)
	assert.Equal(t, flags, visibleFlags(t, s))
	assert.Equal(t, []graph.NodeIdx{0, 2, 3}, shownIdxs(vg))
	assert.Equal(t, uint64(2), vg.Generation)

	n, err := s.Node(1)
	require.NoError(t, err)
	assert.True(t, n.Disabled)
	assert.True(t, n.Visible)

	var indirect []visible.Edge
	for _, e := range vg.Edges {
		if e.IsIndirect() {
			indirect = append(indirect, e)
		}
	}
	require.Len(t, indirect, 1)
	assert.Equal(t, graph.NodeIdx(0), indirect[0].From)
	assert.Equal(t, graph.NodeIdx(2), indirect[0].To)
	assert.Equal(t, visible.KindYieldBlame, s.EdgeDetail(indirect[0]).Kind)

	vg, err = s.SetDisablers(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, vg.NodeCount())
	assert.Equal(t, flags, visibleFlags(t, s))
}

func TestUndo_Toggles(t *testing.T) {
	s := newSession(t, costChain())
	ctx := context.Background()
	a := filter.Chain{filter.MaxInsts{N: 1}}
	b := filter.Chain{filter.MaxNodeIdx{N: 2}}

	_, err := s.ApplyChain(ctx, a)
	require.NoError(t, err)
	_, err = s.ApplyChain(ctx, b)
	require.NoError(t, err)

	vg, err := s.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, s.Chain().Equal(a))
	assert.Equal(t, []graph.NodeIdx{0}, shownIdxs(vg))

	_, err = s.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, s.Chain().Equal(b))
	assert.Equal(t, uint64(5), s.Generation())
}

func TestResetToDefaults(t *testing.T) {
	s := newSession(t, passThrough())
	ctx := context.Background()

	_, err := s.SetDisablers(ctx, disable.NewSet(disable.ENodes, disable.AllEqualities))
	require.NoError(t, err)
	_, err = s.ApplyChain(ctx, filter.Chain{filter.MaxNodeIdx{N: 0}})
	require.NoError(t, err)

	vg, err := s.ResetToDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, disable.DefaultSet, s.Disablers())
	assert.True(t, s.Chain().Equal(filter.DefaultChain()))
	// The theory instantiation is hidden, the pass-through e-node disabled.
	assert.Equal(t, []graph.NodeIdx{0, 2}, shownIdxs(vg))
}

func TestLastPath(t *testing.T) {
	b := factstest.New()
	a, l, r, d := b.Inst(1, 0), b.Inst(1, 0), b.Inst(1, 0), b.Inst(1, 0)
	b.Edge(a, l).Edge(a, r).Edge(l, d).Edge(r, d)
	s := newSession(t, b.Store())
	ctx := context.Background()

	vg, err := s.ApplyChain(ctx, filter.Chain{filter.ShowLongestPath{Node: 3}})
	require.NoError(t, err)
	assert.Equal(t, []graph.NodeIdx{0, 1, 3}, s.LastPath())
	assert.Equal(t, []graph.NodeIdx{0, 1, 3}, shownIdxs(vg))

	_, err = s.Reset(ctx)
	require.NoError(t, err)
	assert.Nil(t, s.LastPath())
}

func TestNodeLabelAndInfo(t *testing.T) {
	s := newSession(t, passThrough())

	assert.Equal(t, "q0 (4)", s.NodeLabel(0))
	assert.Equal(t, "t", s.NodeLabel(1))
	assert.Equal(t, "theory (7)", s.NodeLabel(3))
	assert.Equal(t, "42", s.NodeLabel(42))

	info, err := s.InstInfo(0)
	require.NoError(t, err)
	assert.Equal(t, "q0", info.Quantifier)
	assert.Equal(t, 4.0, info.Cost)

	_, err = s.InstInfo(1)
	assert.ErrorIs(t, err, graph.ErrNotInstantiation)
	_, err = s.Node(9)
	assert.ErrorIs(t, err, graph.ErrNodeOutOfRange)
}

func TestSession_ConcurrentUse(t *testing.T) {
	s := newSession(t, costChain())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.ApplyChain(ctx, filter.Chain{filter.MaxInsts{N: n % 3}})
			assert.NoError(t, err)
			_ = s.Visible()
			_ = s.Generation()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, uint64(9), s.Generation())
}
