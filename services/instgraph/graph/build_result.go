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
	"fmt"

	"github.com/AleutianAI/instgraph/services/instgraph/facts"
)

// DependencyError represents a dependency that could not become an edge.
type DependencyError struct {
	// Index is the dependency's position in the fact store.
	Index int

	// From and To are the dependency's endpoints.
	From facts.Ref
	To   facts.Ref

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e DependencyError) Error() string {
	return fmt.Sprintf("dependency %d (%s -> %s): %v", e.Index, e.From, e.To, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e DependencyError) Unwrap() error {
	return e.Err
}

// BuildStats contains statistics about a build operation.
type BuildStats struct {
	// Dependencies is the number of dependencies read from the store.
	Dependencies int

	// NodesCreated is the number of nodes added to the graph.
	NodesCreated int

	// EdgesCreated is the number of edges added to the graph.
	EdgesCreated int

	// Skipped is the number of dependencies that produced neither a node
	// nor an edge (no target, or dropped in partial mode).
	Skipped int

	// Roots and Leaves count nodes with no parents / no children.
	Roots  int
	Leaves int

	// DurationMicro is the total build time in microseconds.
	DurationMicro int64
}

// BuildResult contains the result of a graph build.
//
// In strict mode (the default) any dependency error aborts the build. With
// WithAllowPartial, dangling dependencies are skipped and reported here while
// the rest of the graph is still built.
type BuildResult struct {
	// Graph is the constructed graph.
	Graph *Graph

	// DependencyErrors lists dependencies skipped in partial mode.
	DependencyErrors []DependencyError

	// Stats contains build statistics.
	Stats BuildStats

	// Incomplete is true if the build stopped at the node limit.
	Incomplete bool
}

// HasErrors returns true if any dependency was skipped due to an error.
func (r *BuildResult) HasErrors() bool {
	return len(r.DependencyErrors) > 0
}

// Success returns true if the build completed without errors.
func (r *BuildResult) Success() bool {
	return !r.HasErrors() && !r.Incomplete
}
