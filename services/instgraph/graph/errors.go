// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the raw instantiation graph.
//
// Nodes are instantiations, e-nodes and equalities; edges are the causal
// dependencies between them recorded in a facts.Store. The graph is a DAG.
//
// # Ownership Model
//
// Topology is immutable once Build returns. The only mutable state is the
// per-node visible and disabled flags. Nodes and edges are addressed by dense
// indices (NodeIdx, EdgeIdx) that stay stable for the graph's lifetime.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent mutation. Visibility is owned by a single
// session and changed sequentially. Read-only queries on topology
// (Children, Descendants, LongestPathThrough) may run concurrently.
//
// # Lifecycle
//
//  1. Build from a facts.Store
//  2. Mutate visibility (filters) and disabled marks (disablers)
//  3. Materialize a visible snapshot from the current flags
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrNodeOutOfRange is returned when a node index does not address a
	// node of this graph.
	ErrNodeOutOfRange = errors.New("node index out of range")

	// ErrDanglingReference is returned when a dependency's source entity has
	// no node in the graph.
	ErrDanglingReference = errors.New("dependency references an entity with no node")

	// ErrCycleDetected is returned when the dependencies do not form a DAG.
	ErrCycleDetected = errors.New("cycle detected in instantiation graph")

	// ErrBuildCancelled is returned when a build is cancelled via context.
	ErrBuildCancelled = errors.New("build cancelled")

	// ErrNilStore is returned when Build is called without a fact store.
	ErrNilStore = errors.New("fact store must not be nil")

	// ErrSnapshotMismatch is returned when restoring a visibility snapshot
	// taken from a graph of a different size.
	ErrSnapshotMismatch = errors.New("visibility snapshot does not match graph")

	// ErrNotInstantiation is returned by InstInfo for non-instantiation nodes.
	ErrNotInstantiation = errors.New("node is not an instantiation")
)
