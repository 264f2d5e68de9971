// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package factstest builds small in-memory fact stores for tests.
//
// Every entity added through the Builder is also registered as a root
// dependency target, so it becomes a graph node in the order it was added.
// Node indices in a graph built from the result therefore equal the order of
// the Builder calls.
package factstest

import "github.com/AleutianAI/instgraph/services/instgraph/facts"

// Builder accumulates entities and dependencies.
type Builder struct {
	store *facts.Store
	nodes []facts.Ref
}

// New returns an empty Builder with one named quantifier "q0" and one term.
func New() *Builder {
	return &Builder{
		store: &facts.Store{
			Quantifiers: []facts.Quantifier{{Kind: facts.QuantNamed, Name: "q0"}},
			Terms:       []facts.Term{{Name: "t"}},
		},
	}
}

// Quant adds a quantifier and returns its index.
func (b *Builder) Quant(q facts.Quantifier) facts.QuantIdx {
	b.store.Quantifiers = append(b.store.Quantifiers, q)
	return facts.QuantIdx(len(b.store.Quantifiers) - 1)
}

// Inst adds a pattern-triggered instantiation of quantifier q with the given
// cost and returns its node position.
func (b *Builder) Inst(cost float64, q facts.QuantIdx) int {
	return b.inst(cost, &q, facts.MatchQuantifier)
}

// TheoryInst adds a theory-solving instantiation with no quantifier.
func (b *Builder) TheoryInst(cost float64) int {
	return b.inst(cost, nil, facts.MatchTheorySolving)
}

func (b *Builder) inst(cost float64, q *facts.QuantIdx, kind facts.MatchKind) int {
	b.store.Matches = append(b.store.Matches, facts.Match{Kind: kind, Quant: q})
	b.store.Instantiations = append(b.store.Instantiations, facts.Instantiation{
		Match:       facts.MatchIdx(len(b.store.Matches) - 1),
		LineNo:      len(b.store.Instantiations) + 1,
		Fingerprint: facts.Fingerprint(0x1000 + len(b.store.Instantiations)),
		Cost:        cost,
	})
	ref := facts.InstRef(facts.InstIdx(len(b.store.Instantiations) - 1))
	return b.root(ref, q, kind != facts.MatchQuantifier)
}

// ENode adds an e-node and returns its node position.
func (b *Builder) ENode() int {
	b.store.ENodes = append(b.store.ENodes, facts.ENode{Term: 0})
	return b.root(facts.ENodeRef(facts.ENodeIdx(len(b.store.ENodes)-1)), nil, false)
}

// GivenEq adds a given equality and returns its node position.
func (b *Builder) GivenEq() int {
	return b.eq(facts.EqGiven)
}

// TransEq adds a transitive equality and returns its node position.
func (b *Builder) TransEq() int {
	return b.eq(facts.EqTrans)
}

func (b *Builder) eq(kind facts.EqKind) int {
	if len(b.store.ENodes) == 0 {
		b.store.ENodes = append(b.store.ENodes, facts.ENode{Term: 0})
	}
	b.store.Equalities = append(b.store.Equalities, facts.Equality{Kind: kind})
	return b.root(facts.EqRef(kind, facts.EqIdx(len(b.store.Equalities)-1)), nil, false)
}

func (b *Builder) root(ref facts.Ref, q *facts.QuantIdx, discovered bool) int {
	to := ref
	b.store.Dependencies = append(b.store.Dependencies, facts.Dependency{
		To:              &to,
		Quant:           q,
		QuantDiscovered: discovered,
	})
	b.nodes = append(b.nodes, ref)
	return len(b.nodes) - 1
}

// Edge adds a dependency from node position from to node position to. The
// dependency kind is inferred from the endpoint kinds.
func (b *Builder) Edge(from, to int) *Builder {
	return b.EdgeKind(from, to, inferKind(b.nodes[from].Kind, b.nodes[to].Kind))
}

// EdgeKind adds a dependency of an explicit kind.
func (b *Builder) EdgeKind(from, to int, kind facts.DepKind) *Builder {
	target := b.nodes[to]
	b.store.Dependencies = append(b.store.Dependencies, facts.Dependency{
		From: b.nodes[from],
		To:   &target,
		Kind: kind,
	})
	return b
}

// Chain adds edges between consecutive node positions.
func (b *Builder) Chain(nodes ...int) *Builder {
	for i := 1; i < len(nodes); i++ {
		b.Edge(nodes[i-1], nodes[i])
	}
	return b
}

// Ref returns the entity added at node position n.
func (b *Builder) Ref(n int) facts.Ref {
	return b.nodes[n]
}

// Store returns the accumulated store.
func (b *Builder) Store() *facts.Store {
	return b.store
}

func inferKind(from, to facts.EntityKind) facts.DepKind {
	switch {
	case from == facts.EntityInstantiation:
		return facts.DepYield
	case from == facts.EntityENode && to == facts.EntityInstantiation:
		return facts.DepBlame
	case from == facts.EntityENode:
		return facts.DepEqualityFact
	case from == facts.EntityGivenEquality:
		return facts.DepTEqualitySimple
	default:
		return facts.DepBlameEq
	}
}
