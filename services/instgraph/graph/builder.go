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
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/instgraph/services/instgraph/facts"
)

// DefaultReachCacheSize is the default number of memoized reachability
// closures kept per graph.
const DefaultReachCacheSize = 1024

// cancelCheckInterval is how many dependencies are processed between
// context checks.
const cancelCheckInterval = 4096

// BuilderOptions configures graph construction.
type BuilderOptions struct {
	// MaxNodes stops node creation once reached. Dependencies after the
	// cut-off are ignored as if the log had been truncated there.
	// Default: 0 (unlimited)
	MaxNodes int

	// AllowPartial skips dependencies with dangling references instead of
	// failing the build. Skipped dependencies are reported in the result.
	// Default: false
	AllowPartial bool

	// ReachCacheSize bounds the reachability memo.
	// Default: DefaultReachCacheSize
	ReachCacheSize int
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		ReachCacheSize: DefaultReachCacheSize,
	}
}

// BuilderOption is a functional option for configuring the builder.
type BuilderOption func(*BuilderOptions)

// WithMaxNodes caps the number of nodes created.
func WithMaxNodes(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxNodes = n
	}
}

// WithAllowPartial tolerates dangling dependencies.
func WithAllowPartial(allow bool) BuilderOption {
	return func(o *BuilderOptions) {
		o.AllowPartial = allow
	}
}

// WithReachCacheSize sets the reachability memo capacity.
func WithReachCacheSize(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.ReachCacheSize = n
	}
}

// buildState holds mutable state during a build.
type buildState struct {
	store  *facts.Store
	opts   BuilderOptions
	graph  *Graph
	result *BuildResult
	edges  map[edgeKey]struct{}
}

type edgeKey struct {
	from, to NodeIdx
	kind     EdgeKind
	trigger  int
	eqOrder  int
}

// Build constructs the raw instantiation graph from a fact store.
//
// Description:
//
//	Runs in three phases:
//	  1. Create one node per distinct dependency target
//	  2. Create one edge per dependency with a source
//	  3. Analyse: parent/child counts, topological order (cycle check),
//	     forward/backward depths and the cost rank
//
//	Every node starts visible and not disabled.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - store: The fact store. Must not be nil.
//   - opts: Optional configuration.
//
// Outputs:
//   - *BuildResult: The graph plus statistics. Nil on error.
//   - error: ErrNilStore, ErrBuildCancelled, ErrCycleDetected, or a
//     DependencyError wrapping ErrDanglingReference in strict mode.
//
// Thread Safety: Build is safe to call concurrently on different stores.
func Build(ctx context.Context, store *facts.Store, opts ...BuilderOption) (*BuildResult, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := startBuildSpan(ctx, len(store.Dependencies))
	defer span.End()

	start := time.Now()
	state := &buildState{
		store: store,
		opts:  options,
		graph: &Graph{
			byRef: make(map[facts.Ref]NodeIdx),
			reach: NewLRUCache[reachKey, []NodeIdx](options.ReachCacheSize),
		},
		result: &BuildResult{
			Stats: BuildStats{Dependencies: len(store.Dependencies)},
		},
		edges: make(map[edgeKey]struct{}),
	}

	cutoff, err := state.createNodes(ctx)
	if err == nil {
		err = state.createEdges(ctx, cutoff)
	}
	if err == nil {
		err = state.graph.analyse()
	}
	if err != nil {
		recordBuildMetrics(ctx, time.Since(start), 0, 0, false)
		span.RecordError(err)
		return nil, err
	}

	result := state.result
	result.Graph = state.graph
	result.Stats.NodesCreated = state.graph.NodeCount()
	result.Stats.EdgesCreated = state.graph.EdgeCount()
	for i := range state.graph.nodes {
		if state.graph.nodes[i].ParentCount == 0 {
			result.Stats.Roots++
		}
		if state.graph.nodes[i].ChildCount == 0 {
			result.Stats.Leaves++
		}
	}
	result.Stats.DurationMicro = time.Since(start).Microseconds()

	setBuildSpanResult(span, result.Stats.NodesCreated, result.Stats.EdgesCreated, result.Incomplete)
	recordBuildMetrics(ctx, time.Since(start), result.Stats.NodesCreated, result.Stats.EdgesCreated, true)

	slog.Debug("instantiation graph built",
		slog.Int("nodes", result.Stats.NodesCreated),
		slog.Int("edges", result.Stats.EdgesCreated),
		slog.Int("skipped", result.Stats.Skipped),
		slog.Bool("incomplete", result.Incomplete),
	)
	return result, nil
}

// createNodes adds a node for every distinct dependency target and returns
// the number of dependencies consumed.
func (s *buildState) createNodes(ctx context.Context) (int, error) {
	for i, dep := range s.store.Dependencies {
		if i%cancelCheckInterval == 0 && ctx.Err() != nil {
			return 0, fmt.Errorf("%w: %v", ErrBuildCancelled, ctx.Err())
		}
		if dep.To == nil {
			s.result.Stats.Skipped++
			continue
		}
		if _, exists := s.graph.byRef[*dep.To]; exists {
			continue
		}
		if err := s.store.ValidateDependency(dep); err != nil {
			if err := s.reject(i, dep, fmt.Errorf("%w: %w", ErrDanglingReference, err)); err != nil {
				return 0, err
			}
			continue
		}
		if s.opts.MaxNodes > 0 && len(s.graph.nodes) >= s.opts.MaxNodes {
			s.result.Incomplete = true
			slog.Warn("node limit reached, ignoring remaining dependencies",
				slog.Int("max_nodes", s.opts.MaxNodes),
				slog.Int("dependency", i),
			)
			return i, nil
		}
		s.addNode(dep)
	}
	return len(s.store.Dependencies), nil
}

func (s *buildState) addNode(dep facts.Dependency) {
	ref := *dep.To
	kind, _ := nodeKindOf(ref.Kind)
	node := Node{
		Idx:     NodeIdx(len(s.graph.nodes)),
		Kind:    kind,
		Ref:     ref,
		Visible: true,
	}
	if kind == NodeInstantiation {
		inst := s.store.Instantiations[ref.Idx]
		node.Cost = inst.Cost
		node.Discovered = dep.QuantDiscovered
		if dep.Quant != nil {
			q := *dep.Quant
			node.Quant = &q
		}
		if match, ok := s.store.MatchOf(facts.InstIdx(ref.Idx)); ok {
			node.Discovered = match.IsDiscovered()
			if node.Quant == nil && match.Quant != nil {
				q := *match.Quant
				node.Quant = &q
			}
		}
	}
	s.graph.nodes = append(s.graph.nodes, node)
	s.graph.out = append(s.graph.out, nil)
	s.graph.in = append(s.graph.in, nil)
	s.graph.byRef[ref] = node.Idx
}

// createEdges adds one edge per dependency with a defined source.
func (s *buildState) createEdges(ctx context.Context, cutoff int) error {
	for i, dep := range s.store.Dependencies[:cutoff] {
		if i%cancelCheckInterval == 0 && ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrBuildCancelled, ctx.Err())
		}
		if dep.To == nil || dep.From.IsNone() {
			continue
		}
		to, ok := s.graph.byRef[*dep.To]
		if !ok {
			// Target rejected in phase one.
			continue
		}
		from, ok := s.graph.byRef[dep.From]
		if !ok {
			if s.result.Incomplete {
				s.result.Stats.Skipped++
				continue
			}
			if err := s.reject(i, dep, ErrDanglingReference); err != nil {
				return err
			}
			continue
		}
		s.addEdge(from, to, dep)
	}
	return nil
}

func (s *buildState) addEdge(from, to NodeIdx, dep facts.Dependency) {
	kind := depEdgeKinds[dep.Kind]
	key := edgeKey{from: from, to: to, kind: kind, trigger: dep.TriggerPos, eqOrder: dep.EqOrder}
	if _, dup := s.edges[key]; dup {
		return
	}
	s.edges[key] = struct{}{}

	idx := EdgeIdx(len(s.graph.edges))
	s.graph.edges = append(s.graph.edges, Edge{
		Idx:        idx,
		From:       from,
		To:         to,
		Kind:       kind,
		TriggerPos: dep.TriggerPos,
		EqOrder:    dep.EqOrder,
	})
	s.graph.out[from] = append(s.graph.out[from], idx)
	s.graph.in[to] = append(s.graph.in[to], idx)
}

// reject handles a bad dependency: fatal in strict mode, recorded otherwise.
func (s *buildState) reject(i int, dep facts.Dependency, err error) error {
	var to facts.Ref
	if dep.To != nil {
		to = *dep.To
	}
	depErr := DependencyError{Index: i, From: dep.From, To: to, Err: err}
	if !s.opts.AllowPartial {
		return depErr
	}
	slog.Warn("skipping dependency",
		slog.Int("index", i),
		slog.String("from", dep.From.String()),
		slog.String("to", to.String()),
		slog.String("error", err.Error()),
	)
	s.result.DependencyErrors = append(s.result.DependencyErrors, depErr)
	s.result.Stats.Skipped++
	return nil
}
