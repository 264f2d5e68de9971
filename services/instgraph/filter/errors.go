// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filter implements the visibility filters over the raw graph.
//
// A Filter is one of a closed set of variants. Applying a filter mutates the
// visible flags of a graph.Graph deterministically and may return auxiliary
// output (the longest path). Filters are composed into an ordered Chain that
// is always applied to a freshly all-visible graph, so the same chain always
// yields the same visible set.
//
// Filters can be described declaratively (Descriptor) for configuration
// files and storage, or written as a compact expression:
//
//	ignore_theory_solving; max_insts(125); show_neighbours(12, in)
package filter

import (
	"errors"
	"fmt"
)

// Sentinel errors for filter operations.
var (
	// ErrInvalidArgument is returned when a filter parameter is out of range
	// (e.g. a negative count).
	ErrInvalidArgument = errors.New("invalid filter argument")

	// ErrUnknownFilter is returned for an unrecognised filter kind.
	ErrUnknownFilter = errors.New("unknown filter")

	// ErrMissingParam is returned when a descriptor lacks a parameter its
	// kind requires.
	ErrMissingParam = errors.New("missing filter parameter")

	// ErrParse is returned when a chain expression cannot be parsed.
	ErrParse = errors.New("cannot parse filter chain")
)

// FilterError reports which filter of a chain failed.
type FilterError struct {
	// Index is the filter's position in the chain.
	Index int

	// Filter is the failing filter.
	Filter Filter

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e FilterError) Error() string {
	return fmt.Sprintf("filter %d (%s): %v", e.Index, e.Filter, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e FilterError) Unwrap() error {
	return e.Err
}
