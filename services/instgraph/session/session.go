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
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/instgraph/services/instgraph/disable"
	"github.com/AleutianAI/instgraph/services/instgraph/facts"
	"github.com/AleutianAI/instgraph/services/instgraph/filter"
	"github.com/AleutianAI/instgraph/services/instgraph/graph"
	"github.com/AleutianAI/instgraph/services/instgraph/visible"
)

// Options configures a Session.
type Options struct {
	// Chain is the filter chain applied on creation.
	// Default: filter.DefaultChain()
	Chain filter.Chain

	// Disablers is the disabler set applied on creation.
	// Default: disable.DefaultSet
	Disablers disable.Set

	// Display controls how names and terms are rendered.
	Display facts.DisplayConfig

	// Build configures raw graph construction.
	Build []graph.BuilderOption

	// Materialize configures snapshot materialization.
	Materialize []visible.Option
}

// Option is a functional option for New.
type Option func(*Options)

// DefaultOptions returns the default chain and disabler set.
func DefaultOptions() Options {
	return Options{
		Chain:     filter.DefaultChain(),
		Disablers: disable.DefaultSet,
	}
}

// WithChain sets the initial filter chain.
func WithChain(c filter.Chain) Option {
	return func(o *Options) { o.Chain = c.Clone() }
}

// WithDisablers sets the initial disabler set.
func WithDisablers(s disable.Set) Option {
	return func(o *Options) { o.Disablers = s }
}

// WithDisplayConfig sets the display configuration.
func WithDisplayConfig(cfg facts.DisplayConfig) Option {
	return func(o *Options) { o.Display = cfg }
}

// WithBuildOptions appends raw graph builder options.
func WithBuildOptions(opts ...graph.BuilderOption) Option {
	return func(o *Options) { o.Build = append(o.Build, opts...) }
}

// WithMaterializeOptions appends materialization options.
func WithMaterializeOptions(opts ...visible.Option) Option {
	return func(o *Options) { o.Materialize = append(o.Materialize, opts...) }
}

// Session owns a raw graph and its current filter chain, disabler set and
// visible snapshot.
//
// Thread Safety: All methods are safe for concurrent use; mutations are
// serialised.
type Session struct {
	mu sync.Mutex

	id      string
	store   *facts.Store
	graph   *graph.Graph
	build   *graph.BuildResult
	display facts.DisplayConfig
	matOpts []visible.Option

	chain     filter.Chain
	prev      filter.Chain
	hasPrev   bool
	disablers disable.Set

	generation uint64
	snapshot   *visible.Graph
	lastPath   []graph.NodeIdx
}

// New builds the raw graph from store and applies the initial chain and
// disabler set.
//
// Description:
//
//	The store is treated as immutable for the lifetime of the session. The
//	returned session's snapshot has generation 1. Undo has nothing to
//	return to until a second chain is applied.
//
// Inputs:
//   - ctx: Context for tracing and build cancellation.
//   - store: The fact store. Must not be nil.
//   - opts: Functional options.
//
// Outputs:
//   - *Session: The session.
//   - error: ErrBuildFailed wrapping the build error, or a filter error
//     from the initial chain.
func New(ctx context.Context, store *facts.Store, opts ...Option) (*Session, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	result, err := graph.Build(ctx, store, options.Build...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	s := &Session{
		id:        uuid.NewString(),
		store:     store,
		graph:     result.Graph,
		build:     result,
		display:   options.Display,
		matOpts:   options.Materialize,
		disablers: options.Disablers,
	}
	disable.Classify(s.graph, s.disablers)

	if _, err := s.apply(ctx, options.Chain, false); err != nil {
		return nil, err
	}

	sessionsCreated.Inc()
	slog.Info("Instantiation graph session created",
		slog.String("session_id", s.id),
		slog.Int("nodes", s.graph.NodeCount()),
		slog.Int("edges", s.graph.EdgeCount()),
		slog.Int("skipped_dependencies", len(result.DependencyErrors)),
		slog.Bool("incomplete", result.Incomplete),
	)
	return s, nil
}

// ApplyChain replaces the filter chain and rebuilds the snapshot.
//
// Description:
//
//	The chain is applied to an all-visible raw graph, so the result depends
//	only on the chain. If any filter fails, visibility is restored and the
//	session keeps its previous chain, snapshot and generation. On success
//	the previous chain becomes the Undo target and the generation is
//	incremented, even when the chain is unchanged.
//
// Outputs:
//   - *visible.Graph: The new snapshot.
//   - error: A filter.FilterError, or a materialization error.
func (s *Session) ApplyChain(ctx context.Context, chain filter.Chain) (*visible.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ctx, chain, true)
}

// Reset clears the filter chain, making every node visible.
func (s *Session) Reset(ctx context.Context) (*visible.Graph, error) {
	return s.ApplyChain(ctx, filter.Chain{})
}

// ResetToDefaults restores the default disabler set and the default chain.
func (s *Session) ResetToDefaults(ctx context.Context) (*visible.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.disablers
	s.classify(disable.DefaultSet)
	vg, err := s.apply(ctx, filter.DefaultChain(), true)
	if err != nil {
		s.classify(previous)
		return nil, err
	}
	return vg, nil
}

// Undo re-applies the chain that was active before the last successful
// ApplyChain. Undoing twice returns to where it started.
func (s *Session) Undo(ctx context.Context) (*visible.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasPrev {
		return nil, ErrNothingToUndo
	}
	return s.apply(ctx, s.prev, true)
}

// SetDisablers replaces the disabler set and rebuilds the snapshot. Visible
// flags are not touched.
func (s *Session) SetDisablers(ctx context.Context, set disable.Set) (*visible.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.disablers
	s.classify(set)
	vg, err := s.materialize(ctx)
	if err != nil {
		s.classify(previous)
		return nil, err
	}
	disablerChanges.Inc()
	return vg, nil
}

// apply runs chain against a fresh all-visible graph. Callers hold mu.
func (s *Session) apply(ctx context.Context, chain filter.Chain, recordUndo bool) (*visible.Graph, error) {
	ctx, span := tracer.Start(ctx, "session.ApplyChain",
		trace.WithAttributes(
			attribute.String("session.id", s.id),
			attribute.Int("session.chain_length", len(chain)),
		),
	)
	defer span.End()
	start := time.Now()

	saved := s.graph.VisibilitySnapshot()
	s.graph.ShowAll()

	outputs, err := chain.Apply(ctx, s.graph, s.store, s.display)
	if err != nil {
		s.rollback(saved)
		span.SetStatus(codes.Error, err.Error())
		chainApplies.WithLabelValues("filter_error").Inc()
		slog.Warn("Filter chain rejected",
			slog.String("session_id", s.id),
			slog.String("chain", filter.Format(chain)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	vg, err := s.materialize(ctx)
	if err != nil {
		s.rollback(saved)
		span.SetStatus(codes.Error, err.Error())
		chainApplies.WithLabelValues("materialize_error").Inc()
		return nil, err
	}

	if recordUndo {
		s.prev, s.hasPrev = s.chain, true
	}
	s.chain = chain.Clone()
	s.lastPath = nil
	for _, out := range outputs {
		if out.HasPath() {
			s.lastPath = out.Path
		}
	}

	chainApplies.WithLabelValues("ok").Inc()
	chainApplyLatency.Observe(time.Since(start).Seconds())
	chainLength.Observe(float64(len(chain)))
	span.SetAttributes(attribute.Int64("session.generation", int64(s.generation)))
	slog.Debug("Filter chain applied",
		slog.String("session_id", s.id),
		slog.String("chain", filter.Format(chain)),
		slog.Int("visible_nodes", vg.NodeCount()),
		slog.Int("visible_edges", vg.EdgeCount()),
		slog.Uint64("generation", s.generation),
	)
	return vg, nil
}

// materialize rebuilds the snapshot under the next generation and commits
// it. Callers hold mu.
func (s *Session) materialize(ctx context.Context) (*visible.Graph, error) {
	vg, err := visible.Materialize(ctx, s.graph, s.generation+1, s.matOpts...)
	if err != nil {
		return nil, err
	}
	s.generation++
	s.snapshot = vg
	return vg, nil
}

func (s *Session) rollback(saved []bool) {
	if err := s.graph.RestoreVisibility(saved); err != nil {
		// Snapshot was taken from the same graph; lengths always match.
		slog.Error("Failed to restore visibility",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Session) classify(set disable.Set) {
	s.disablers = set
	disable.Classify(s.graph, set)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Chain returns a copy of the active filter chain.
func (s *Session) Chain() filter.Chain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain.Clone()
}

// Disablers returns the active disabler set.
func (s *Session) Disablers() disable.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disablers
}

// Visible returns the current snapshot. It must be treated as read-only.
func (s *Session) Visible() *visible.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Generation returns the generation of the current snapshot.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// LastPath returns the path reported by the last ShowLongestPath in the
// active chain, or nil.
func (s *Session) LastPath() []graph.NodeIdx {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lastPath)
}

// BuildStats returns statistics of the raw graph build.
func (s *Session) BuildStats() graph.BuildStats {
	return s.build.Stats
}

// BuildIncomplete reports whether the build stopped at the node limit.
func (s *Session) BuildIncomplete() bool {
	return s.build.Incomplete
}

// DependencyErrors returns the dependencies skipped by a partial build.
func (s *Session) DependencyErrors() []graph.DependencyError {
	return slices.Clone(s.build.DependencyErrors)
}

// Display returns the display configuration.
func (s *Session) Display() facts.DisplayConfig {
	return s.display
}

// NodeCount returns the number of raw nodes.
func (s *Session) NodeCount() int {
	return s.graph.NodeCount()
}

// Node returns a copy of raw node idx.
func (s *Session) Node(idx graph.NodeIdx) (graph.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.graph.CheckNode(idx); err != nil {
		return graph.Node{}, err
	}
	n, _ := s.graph.Node(idx)
	return n, nil
}

// InstInfo describes the instantiation behind raw node idx.
func (s *Session) InstInfo(idx graph.NodeIdx) (graph.InstInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.InstInfo(idx, s.store, s.display)
}

// EdgeDetail classifies the raw path behind a snapshot edge.
func (s *Session) EdgeDetail(e visible.Edge) visible.EdgeDetail {
	return visible.Classify(s.graph, e)
}
