// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package visible materializes the renderable subgraph of a raw graph.
//
// A node is shown when it is visible and not disabled. The materialized
// Graph holds the shown nodes, Direct edges between shown nodes, and
// Indirect edges that stand in for causal paths running through hidden
// nodes. A Graph is a read-only snapshot stamped with a generation number;
// consumers detect staleness by comparing generations.
package visible

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/instgraph/services/instgraph/graph"
)

// ErrNilGraph is returned when materializing a nil raw graph.
var ErrNilGraph = errors.New("raw graph must not be nil")

// EdgeType distinguishes raw edges from synthesized ones.
type EdgeType uint8

const (
	// Direct is a raw edge between two shown nodes.
	Direct EdgeType = iota

	// Indirect stands in for a path whose interior nodes are all hidden.
	Indirect
)

func (t EdgeType) String() string {
	if t == Indirect {
		return "indirect"
	}
	return "direct"
}

// MarshalText implements encoding.TextMarshaler.
func (t EdgeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Node is a shown raw node.
type Node struct {
	Idx  graph.NodeIdx  `json:"idx"`
	Kind graph.NodeKind `json:"kind"`

	// HiddenParents and HiddenChildren count distinct raw neighbours that
	// are not shown.
	HiddenParents  int `json:"hidden_parents"`
	HiddenChildren int `json:"hidden_children"`
}

// Edge connects two shown nodes, identified by raw index.
type Edge struct {
	From graph.NodeIdx `json:"from"`
	To   graph.NodeIdx `json:"to"`
	Type EdgeType      `json:"type"`

	// Path is the raw edges traversed, From first. A Direct edge has exactly
	// one.
	Path []graph.EdgeIdx `json:"path"`
}

// IsIndirect reports whether the edge was synthesized.
func (e Edge) IsIndirect() bool {
	return e.Type == Indirect
}

// Graph is an immutable snapshot of the shown subgraph.
type Graph struct {
	// Nodes are ordered by raw index.
	Nodes []Node `json:"nodes"`

	// Edges hold Direct edges in raw edge order followed by Indirect edges
	// grouped by source.
	Edges []Edge `json:"edges"`

	Generation uint64 `json:"generation"`

	index map[graph.NodeIdx]int
}

// NodeCount returns the number of shown nodes.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the number of edges of both types.
func (g *Graph) EdgeCount() int { return len(g.Edges) }

// IndirectCount returns the number of synthesized edges.
func (g *Graph) IndirectCount() int {
	n := 0
	for _, e := range g.Edges {
		if e.IsIndirect() {
			n++
		}
	}
	return n
}

// Contains reports whether raw node idx is shown in the snapshot.
func (g *Graph) Contains(idx graph.NodeIdx) bool {
	_, ok := g.index[idx]
	return ok
}

// Node returns the snapshot entry for raw node idx.
func (g *Graph) Node(idx graph.NodeIdx) (Node, bool) {
	i, ok := g.index[idx]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// EdgesFrom returns the edges leaving raw node idx.
func (g *Graph) EdgesFrom(idx graph.NodeIdx) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == idx {
			out = append(out, e)
		}
	}
	return out
}

// Options configures materialization.
type Options struct {
	// Reconnect enables synthesis of Indirect edges.
	Reconnect bool

	// MaxPathLength bounds the number of raw edges an Indirect edge may
	// span. Zero means unbounded.
	MaxPathLength int
}

// Option is a functional option for Materialize.
type Option func(*Options)

// DefaultOptions returns reconnection enabled with no path bound.
func DefaultOptions() Options {
	return Options{Reconnect: true}
}

// WithReconnect enables or disables Indirect edges.
func WithReconnect(enabled bool) Option {
	return func(o *Options) { o.Reconnect = enabled }
}

// WithMaxPathLength bounds Indirect edge length in raw edges.
func WithMaxPathLength(n int) Option {
	return func(o *Options) { o.MaxPathLength = n }
}

// Materialize derives the visible graph from g's current flags.
//
// Description:
//
//	Shown nodes are copied with their hidden-neighbour counts, raw edges
//	between shown nodes become Direct edges, and for every shown node A
//	with a hidden child the hidden region below it is searched for shown
//	nodes D it reaches through hidden nodes only. Hidden nodes that lie
//	below a shown node also reachable from the child are skipped, so the
//	causal route through that shown node is not duplicated. At most one
//	Indirect edge is added per (A, D) pair, carrying the shortest hidden
//	path, and none when a Direct A->D edge exists.
//
// Inputs:
//   - ctx: Context for tracing.
//   - g: The raw graph. It is only read.
//   - generation: Stamped onto the snapshot.
//   - opts: Functional options.
//
// Outputs:
//   - *Graph: The snapshot. Empty, never nil, for an empty raw graph.
//   - error: ErrNilGraph.
//
// Thread Safety: Safe to call concurrently with other readers of g, not with
// writers.
func Materialize(ctx context.Context, g *graph.Graph, generation uint64, opts ...Option) (*Graph, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "visible.Materialize",
		trace.WithAttributes(
			attribute.Int("instgraph.raw_nodes", g.NodeCount()),
			attribute.Int64("instgraph.generation", int64(generation)),
		),
	)
	defer span.End()
	start := time.Now()

	vg := &Graph{
		Nodes:      []Node{},
		Edges:      []Edge{},
		Generation: generation,
		index:      make(map[graph.NodeIdx]int),
	}

	for i := 0; i < g.NodeCount(); i++ {
		n, _ := g.Node(graph.NodeIdx(i))
		if !n.Shown() {
			continue
		}
		vg.index[n.Idx] = len(vg.Nodes)
		vg.Nodes = append(vg.Nodes, Node{
			Idx:            n.Idx,
			Kind:           n.Kind,
			HiddenParents:  g.HiddenNeighbours(n.Idx, graph.Incoming),
			HiddenChildren: g.HiddenNeighbours(n.Idx, graph.Outgoing),
		})
	}

	for i := 0; i < g.EdgeCount(); i++ {
		e, _ := g.Edge(graph.EdgeIdx(i))
		if vg.Contains(e.From) && vg.Contains(e.To) {
			vg.Edges = append(vg.Edges, Edge{From: e.From, To: e.To, Type: Direct, Path: []graph.EdgeIdx{e.Idx}})
		}
	}

	if options.Reconnect {
		r := newReconnector(g, vg, options)
		if err := r.run(ctx); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("reconnect: %w", err)
		}
	}

	span.SetAttributes(
		attribute.Int("instgraph.visible_nodes", vg.NodeCount()),
		attribute.Int("instgraph.visible_edges", vg.EdgeCount()),
	)
	recordMaterializeMetrics(ctx, time.Since(start), vg)
	return vg, nil
}
