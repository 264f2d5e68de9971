// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package facts

import (
	"fmt"
	"strings"
)

// Store is the parser's fact database.
//
// Dependencies are ordered by discovery: a dependency's source was always
// discovered before its target.
type Store struct {
	Quantifiers    []Quantifier    `json:"quantifiers" yaml:"quantifiers"`
	Terms          []Term          `json:"terms" yaml:"terms"`
	Matches        []Match         `json:"matches" yaml:"matches"`
	Instantiations []Instantiation `json:"instantiations" yaml:"instantiations"`
	ENodes         []ENode         `json:"enodes" yaml:"enodes"`
	Equalities     []Equality      `json:"equalities" yaml:"equalities"`
	Dependencies   []Dependency    `json:"dependencies" yaml:"dependencies"`
}

// Contains reports whether r addresses an existing entity of the right kind.
// The none sentinel is never contained.
func (s *Store) Contains(r Ref) bool {
	idx := int(r.Idx)
	switch r.Kind {
	case EntityInstantiation:
		return idx < len(s.Instantiations)
	case EntityENode:
		return idx < len(s.ENodes)
	case EntityGivenEquality:
		return idx < len(s.Equalities) && s.Equalities[idx].Kind == EqGiven
	case EntityTransEquality:
		return idx < len(s.Equalities) && s.Equalities[idx].Kind == EqTrans
	default:
		return false
	}
}

// Instantiation returns the instantiation at i.
func (s *Store) Instantiation(i InstIdx) (Instantiation, bool) {
	if int(i) >= len(s.Instantiations) {
		return Instantiation{}, false
	}
	return s.Instantiations[i], true
}

// Quantifier returns the quantifier at q.
func (s *Store) Quantifier(q QuantIdx) (Quantifier, bool) {
	if int(q) >= len(s.Quantifiers) {
		return Quantifier{}, false
	}
	return s.Quantifiers[q], true
}

// MatchOf returns the match that triggered instantiation i.
func (s *Store) MatchOf(i InstIdx) (Match, bool) {
	inst, ok := s.Instantiation(i)
	if !ok || int(inst.Match) >= len(s.Matches) {
		return Match{}, false
	}
	return s.Matches[inst.Match], true
}

// QuantName returns the display name of quantifier q, or "" if q is nil or
// out of range.
func (s *Store) QuantName(q *QuantIdx, cfg DisplayConfig) string {
	if q == nil {
		return ""
	}
	quant, ok := s.Quantifier(*q)
	if !ok {
		return ""
	}
	return quant.DisplayName(cfg)
}

// TermText pretty-prints term t as name(arg, ...). Nesting deeper than
// cfg.MaxTermDepth is elided as "...".
func (s *Store) TermText(t TermIdx, cfg DisplayConfig) string {
	var sb strings.Builder
	s.writeTerm(&sb, t, 0, cfg.MaxTermDepth)
	return sb.String()
}

func (s *Store) writeTerm(sb *strings.Builder, t TermIdx, depth, maxDepth int) {
	if int(t) >= len(s.Terms) {
		fmt.Fprintf(sb, "?%d", t)
		return
	}
	if maxDepth > 0 && depth >= maxDepth {
		sb.WriteString("...")
		return
	}
	term := s.Terms[t]
	sb.WriteString(term.Name)
	if len(term.Args) == 0 {
		return
	}
	sb.WriteByte('(')
	for i, arg := range term.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		s.writeTerm(sb, arg, depth+1, maxDepth)
	}
	sb.WriteByte(')')
}

// Validate checks that every cross-reference in the store resolves.
//
// Description:
//
//	Walks instantiations, matches, e-nodes, equalities and dependencies and
//	returns the first reference that does not resolve. A store that passes
//	Validate can be handed to the graph builder without risk of a dangling
//	index.
//
// Outputs:
//   - error: Wraps ErrDanglingReference, or nil.
func (s *Store) Validate() error {
	for i, m := range s.Matches {
		if m.Quant != nil && int(*m.Quant) >= len(s.Quantifiers) {
			return fmt.Errorf("%w: match %d: quantifier %d", ErrDanglingReference, i, *m.Quant)
		}
		if m.Pattern != nil && int(*m.Pattern) >= len(s.Terms) {
			return fmt.Errorf("%w: match %d: pattern term %d", ErrDanglingReference, i, *m.Pattern)
		}
	}
	for i, inst := range s.Instantiations {
		if int(inst.Match) >= len(s.Matches) {
			return fmt.Errorf("%w: instantiation %d: match %d", ErrDanglingReference, i, inst.Match)
		}
		for _, y := range inst.Yields {
			if int(y) >= len(s.ENodes) {
				return fmt.Errorf("%w: instantiation %d: yield enode %d", ErrDanglingReference, i, y)
			}
		}
	}
	for i, e := range s.ENodes {
		if int(e.Term) >= len(s.Terms) {
			return fmt.Errorf("%w: enode %d: term %d", ErrDanglingReference, i, e.Term)
		}
	}
	for i, eq := range s.Equalities {
		if int(eq.From) >= len(s.ENodes) || int(eq.To) >= len(s.ENodes) {
			return fmt.Errorf("%w: equality %d", ErrDanglingReference, i)
		}
	}
	for i, dep := range s.Dependencies {
		if err := s.ValidateDependency(dep); err != nil {
			return fmt.Errorf("dependency %d: %w", i, err)
		}
	}
	return nil
}

// ValidateDependency checks a single dependency's references.
func (s *Store) ValidateDependency(dep Dependency) error {
	if !dep.From.IsNone() && !s.Contains(dep.From) {
		return fmt.Errorf("%w: from %s", ErrDanglingReference, dep.From)
	}
	if dep.To != nil && !s.Contains(*dep.To) {
		return fmt.Errorf("%w: to %s", ErrDanglingReference, *dep.To)
	}
	if dep.Quant != nil && int(*dep.Quant) >= len(s.Quantifiers) {
		return fmt.Errorf("%w: quantifier %d", ErrDanglingReference, *dep.Quant)
	}
	return nil
}

// Truncate returns a shallow copy of the store holding only the first n
// dependencies, as a parser interrupted mid-log would have produced.
func (s *Store) Truncate(n int) *Store {
	out := *s
	if n >= 0 && n < len(s.Dependencies) {
		out.Dependencies = s.Dependencies[:n]
	}
	return &out
}
