// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package disable marks structurally uninteresting nodes of the raw graph
// as disabled.
//
// Disabling is independent of the visibility filters: a disabled node keeps
// its visible flag, it is just never shown. Rules are combined with OR and
// instantiations are never disabled.
package disable

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/instgraph/services/instgraph/graph"
)

// ErrUnknownDisabler is returned when parsing an unrecognised disabler name.
var ErrUnknownDisabler = errors.New("unknown disabler")

// Disabler is one disabling rule.
type Disabler uint8

const (
	// Smart disables e-nodes and given equalities that are leaves or pure
	// pass-throughs, and transitive equalities that are roots or
	// pass-throughs.
	Smart Disabler = iota

	// ENodes disables every e-node.
	ENodes

	// GivenEqualities disables every given equality.
	GivenEqualities

	// AllEqualities disables every given and transitive equality.
	AllEqualities

	numDisablers
)

var disablerNames = [numDisablers]string{
	Smart:           "smart",
	ENodes:          "enodes",
	GivenEqualities: "given_equalities",
	AllEqualities:   "all_equalities",
}

func (d Disabler) String() string {
	if d < numDisablers {
		return disablerNames[d]
	}
	return fmt.Sprintf("disabler(%d)", d)
}

// ParseDisabler parses a disabler name as printed by String.
func ParseDisabler(s string) (Disabler, error) {
	for d, name := range disablerNames {
		if strings.EqualFold(s, name) {
			return Disabler(d), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDisabler, s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Disabler) MarshalText() ([]byte, error) {
	if d >= numDisablers {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDisabler, d)
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Disabler) UnmarshalText(b []byte) error {
	parsed, err := ParseDisabler(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// disables reports whether the rule disables n.
func (d Disabler) disables(n graph.Node) bool {
	switch d {
	case Smart:
		passThrough := n.ParentCount == 1 && n.ChildCount == 1
		switch n.Kind {
		case graph.NodeENode, graph.NodeGivenEquality:
			return n.ChildCount == 0 || passThrough
		case graph.NodeTransEquality:
			return n.ParentCount == 0 || passThrough
		}
	case ENodes:
		return n.Kind == graph.NodeENode
	case GivenEqualities:
		return n.Kind == graph.NodeGivenEquality
	case AllEqualities:
		return n.Kind == graph.NodeGivenEquality || n.Kind == graph.NodeTransEquality
	}
	return false
}

// Set is a set of disablers.
type Set uint8

// DefaultSet is the set a new session starts with.
const DefaultSet = Set(1 << Smart)

// NewSet returns the set holding ds.
func NewSet(ds ...Disabler) Set {
	var s Set
	for _, d := range ds {
		s = s.With(d)
	}
	return s
}

// ParseSet parses disabler names into a set.
func ParseSet(names []string) (Set, error) {
	var s Set
	for _, name := range names {
		d, err := ParseDisabler(name)
		if err != nil {
			return 0, err
		}
		s = s.With(d)
	}
	return s, nil
}

func (s Set) Has(d Disabler) bool { return s&(1<<d) != 0 }
func (s Set) With(d Disabler) Set { return s | 1<<d }
func (s Set) Without(d Disabler) Set { return s &^ (1 << d) }
func (s Set) IsEmpty() bool { return s == 0 }
func (s Set) Equal(other Set) bool { return s == other }

// List returns the members in declaration order.
func (s Set) List() []Disabler {
	var out []Disabler
	for d := Disabler(0); d < numDisablers; d++ {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Names returns the members' names in declaration order.
func (s Set) Names() []string {
	list := s.List()
	names := make([]string, len(list))
	for i, d := range list {
		names[i] = d.String()
	}
	return names
}

func (s Set) String() string {
	return "{" + strings.Join(s.Names(), ", ") + "}"
}

// Disables reports whether any member of s disables n.
func (s Set) Disables(n graph.Node) bool {
	if n.IsInstantiation() {
		return false
	}
	for _, d := range s.List() {
		if d.disables(n) {
			return true
		}
	}
	return false
}

// Classify recomputes the disabled flag of every node of g under s.
//
// Description:
//
//	Every node's disabled flag is overwritten, so classifying with the
//	empty set re-enables everything. Visible flags are not touched. Degree
//	is taken from the raw graph, never from the visible subgraph.
//
// Outputs:
//   - int: The number of disabled nodes.
func Classify(g *graph.Graph, s Set) int {
	count := g.MarkDisabled(s.Disables)
	slog.Debug("Classified disabled nodes",
		slog.String("disablers", s.String()),
		slog.Int("disabled", count),
		slog.Int("nodes", g.NodeCount()),
	)
	return count
}
