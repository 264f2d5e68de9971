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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/instgraph/services/instgraph/facts"
	"github.com/AleutianAI/instgraph/services/instgraph/graph"
)

var tracer = otel.Tracer("aleutian.instgraph.filter")

// Kind names a filter variant. The names double as the function names of
// the chain expression language.
type Kind string

const (
	KindMaxNodeIdx             Kind = "max_node_idx"
	KindMinNodeIdx             Kind = "min_node_idx"
	KindIgnoreTheorySolving    Kind = "ignore_theory_solving"
	KindIgnoreQuantifier       Kind = "ignore_quantifier"
	KindIgnoreAllButQuantifier Kind = "ignore_all_but_quantifier"
	KindMaxInsts               Kind = "max_insts"
	KindMaxBranching           Kind = "max_branching"
	KindShowNeighbours         Kind = "show_neighbours"
	KindVisitSubTreeWithRoot   Kind = "visit_subtree"
	KindVisitSourceTree        Kind = "visit_source_tree"
	KindMaxDepth               Kind = "max_depth"
	KindShowLongestPath        Kind = "show_longest_path"
	KindShowNamedQuantifier    Kind = "show_named_quantifier"
)

// Filter is one visibility operation. The set of implementations is closed;
// see the Kind constants.
type Filter interface {
	fmt.Stringer

	// Kind returns the variant's name.
	Kind() Kind

	// check validates parameters against g without mutating it.
	check(g *graph.Graph) error

	// apply mutates g's visibility. It is only called after check passed.
	apply(env *env) Output
}

// Output is the auxiliary result of applying a filter.
type Output struct {
	// Path is set by ShowLongestPath, ordered root to leaf.
	Path []graph.NodeIdx
}

// HasPath reports whether the output carries a path.
func (o Output) HasPath() bool {
	return len(o.Path) > 0
}

// env is everything a filter may read while applying.
type env struct {
	ctx     context.Context
	graph   *graph.Graph
	store   *facts.Store
	display facts.DisplayConfig
}

// Apply runs one filter against the graph.
//
// Description:
//
//	Parameters are validated before any flag changes, so a failing filter
//	leaves the graph untouched. Filters that name a node return
//	graph.ErrNodeOutOfRange when the node does not exist.
//
// Inputs:
//   - ctx: Context for tracing.
//   - f: The filter. Must not be nil.
//   - g: The raw graph to mutate.
//   - store: The fact store g was built from. Only ShowNamedQuantifier
//     reads it; may be nil otherwise.
//   - display: Display settings used to render quantifier names.
//
// Outputs:
//   - Output: Auxiliary output; zero for most filters.
//   - error: ErrInvalidArgument or graph.ErrNodeOutOfRange.
//
// Thread Safety: Not safe for concurrent use on the same graph.
func Apply(ctx context.Context, f Filter, g *graph.Graph, store *facts.Store, display facts.DisplayConfig) (Output, error) {
	ctx, span := tracer.Start(ctx, "filter.Apply",
		trace.WithAttributes(
			attribute.String("filter.kind", string(f.Kind())),
		),
	)
	defer span.End()

	if err := f.check(g); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Output{}, err
	}
	out := f.apply(&env{ctx: ctx, graph: g, store: store, display: display})
	span.SetAttributes(attribute.Int("filter.visible_after", g.VisibleCount()))
	return out, nil
}

func checkCount(kind Kind, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %s(%d)", ErrInvalidArgument, kind, n)
	}
	return nil
}
