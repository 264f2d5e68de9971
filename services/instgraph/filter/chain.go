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
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"

	"lukechampine.com/blake3"

	"github.com/AleutianAI/instgraph/services/instgraph/facts"
	"github.com/AleutianAI/instgraph/services/instgraph/graph"
)

// DefaultNodeCount is the instantiation budget of the default chain.
const DefaultNodeCount = 125

// Chain is an ordered list of filters.
type Chain []Filter

// DefaultChain hides theory-solving instantiations and keeps the
// DefaultNodeCount most expensive ones.
func DefaultChain() Chain {
	return Chain{IgnoreTheorySolving{}, MaxInsts{N: DefaultNodeCount}}
}

// Apply runs each filter in order against g's current visibility.
//
// Description:
//
//	The caller is responsible for starting from an all-visible graph when
//	it needs the chain's result to be reproducible. Each filter validates
//	its parameters before mutating, so on error the graph holds the result
//	of the filters before the failing one.
//
// Outputs:
//   - []Output: One entry per filter, in chain order.
//   - error: A FilterError naming the failing filter.
func (c Chain) Apply(ctx context.Context, g *graph.Graph, store *facts.Store, display facts.DisplayConfig) ([]Output, error) {
	outputs := make([]Output, 0, len(c))
	for i, f := range c {
		out, err := Apply(ctx, f, g, store, display)
		if err != nil {
			return outputs, FilterError{Index: i, Filter: f, Err: err}
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// Clone returns a copy of the chain.
func (c Chain) Clone() Chain {
	return slices.Clone(c)
}

// String joins the filter descriptions.
func (c Chain) String() string {
	parts := make([]string, len(c))
	for i, f := range c {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

// Descriptors returns the declarative form of every filter.
func (c Chain) Descriptors() []Descriptor {
	ds := make([]Descriptor, len(c))
	for i, f := range c {
		ds[i] = Describe(f)
	}
	return ds
}

// Hash returns a stable BLAKE3 fingerprint of the chain's contents.
// Equal chains hash equal regardless of how they were constructed.
func (c Chain) Hash() string {
	h := blake3.New(32, nil)
	enc := json.NewEncoder(h)
	for _, d := range c.Descriptors() {
		// Descriptor has only plain fields; encoding cannot fail.
		_ = enc.Encode(d)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Equal reports whether two chains contain the same filters in the same order.
func (c Chain) Equal(other Chain) bool {
	if len(c) != len(other) {
		return false
	}
	return c.Hash() == other.Hash()
}

// Hash returns the BLAKE3 fingerprint of a single filter.
func Hash(f Filter) string {
	return Chain{f}.Hash()
}

// FromDescriptors builds a chain from declarative descriptors.
func FromDescriptors(ds []Descriptor) (Chain, error) {
	chain := make(Chain, 0, len(ds))
	for _, d := range ds {
		f, err := d.Filter()
		if err != nil {
			return nil, err
		}
		chain = append(chain, f)
	}
	return chain, nil
}
