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
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/instgraph/services/instgraph/facts"
	"github.com/AleutianAI/instgraph/services/instgraph/graph"
)

// descriptorValidate is the shared validator for descriptors.
var descriptorValidate = validator.New()

// Descriptor is the declarative, serialisable form of a filter.
//
// Only the fields the kind uses are set:
//
//	| Kind                        | Fields             |
//	|-----------------------------|--------------------|
//	| max/min_node_idx, max_insts | N                  |
//	| max_branching, max_depth    | N                  |
//	| ignore_(all_but_)quantifier | Quant (nil = none) |
//	| show_neighbours             | Node, Dir          |
//	| visit_subtree/source_tree   | Node, Retain       |
//	| show_longest_path           | Node               |
//	| show_named_quantifier       | Name               |
type Descriptor struct {
	Kind   Kind    `json:"kind" yaml:"kind" validate:"required,oneof=max_node_idx min_node_idx ignore_theory_solving ignore_quantifier ignore_all_but_quantifier max_insts max_branching show_neighbours visit_subtree visit_source_tree max_depth show_longest_path show_named_quantifier"`
	N      *int    `json:"n,omitempty" yaml:"n,omitempty" validate:"omitempty,gte=0"`
	Node   *int    `json:"node,omitempty" yaml:"node,omitempty" validate:"omitempty,gte=0"`
	Quant  *uint32 `json:"quant,omitempty" yaml:"quant,omitempty"`
	Dir    string  `json:"dir,omitempty" yaml:"dir,omitempty" validate:"omitempty,oneof=in out"`
	Retain *bool   `json:"retain,omitempty" yaml:"retain,omitempty"`
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
}

// Validate checks the descriptor's tags and that the kind's parameters are
// present.
func (d Descriptor) Validate() error {
	if err := descriptorValidate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	missing := func(field string) error {
		return fmt.Errorf("%w: %s requires %s", ErrMissingParam, d.Kind, field)
	}
	switch d.Kind {
	case KindMaxNodeIdx, KindMinNodeIdx, KindMaxInsts, KindMaxBranching, KindMaxDepth:
		if d.N == nil {
			return missing("n")
		}
	case KindShowNeighbours:
		if d.Node == nil {
			return missing("node")
		}
		if d.Dir == "" {
			return missing("dir")
		}
	case KindVisitSubTreeWithRoot, KindVisitSourceTree:
		if d.Node == nil {
			return missing("node")
		}
		if d.Retain == nil {
			return missing("retain")
		}
	case KindShowLongestPath:
		if d.Node == nil {
			return missing("node")
		}
	case KindShowNamedQuantifier:
		if d.Name == "" {
			return missing("name")
		}
	}
	return nil
}

// Filter converts the descriptor to its filter.
func (d Descriptor) Filter() (Filter, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	var quant *facts.QuantIdx
	if d.Quant != nil {
		q := facts.QuantIdx(*d.Quant)
		quant = &q
	}
	node := func() graph.NodeIdx { return graph.NodeIdx(*d.Node) }

	switch d.Kind {
	case KindMaxNodeIdx:
		return MaxNodeIdx{N: *d.N}, nil
	case KindMinNodeIdx:
		return MinNodeIdx{N: *d.N}, nil
	case KindIgnoreTheorySolving:
		return IgnoreTheorySolving{}, nil
	case KindIgnoreQuantifier:
		return IgnoreQuantifier{Quant: quant}, nil
	case KindIgnoreAllButQuantifier:
		return IgnoreAllButQuantifier{Quant: quant}, nil
	case KindMaxInsts:
		return MaxInsts{N: *d.N}, nil
	case KindMaxBranching:
		return MaxBranching{N: *d.N}, nil
	case KindShowNeighbours:
		dir := graph.Outgoing
		if d.Dir == "in" {
			dir = graph.Incoming
		}
		return ShowNeighbours{Node: node(), Dir: dir}, nil
	case KindVisitSubTreeWithRoot:
		return VisitSubTreeWithRoot{Node: node(), Retain: *d.Retain}, nil
	case KindVisitSourceTree:
		return VisitSourceTree{Node: node(), Retain: *d.Retain}, nil
	case KindMaxDepth:
		return MaxDepth{Depth: *d.N}, nil
	case KindShowLongestPath:
		return ShowLongestPath{Node: node()}, nil
	case KindShowNamedQuantifier:
		return ShowNamedQuantifier{Name: d.Name}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, d.Kind)
	}
}

// Describe returns the descriptor of a filter.
func Describe(f Filter) Descriptor {
	d := Descriptor{Kind: f.Kind()}
	intp := func(v int) *int { return &v }
	boolp := func(v bool) *bool { return &v }
	quantp := func(q *facts.QuantIdx) *uint32 {
		if q == nil {
			return nil
		}
		v := uint32(*q)
		return &v
	}

	switch f := f.(type) {
	case MaxNodeIdx:
		d.N = intp(f.N)
	case MinNodeIdx:
		d.N = intp(f.N)
	case IgnoreQuantifier:
		d.Quant = quantp(f.Quant)
	case IgnoreAllButQuantifier:
		d.Quant = quantp(f.Quant)
	case MaxInsts:
		d.N = intp(f.N)
	case MaxBranching:
		d.N = intp(f.N)
	case ShowNeighbours:
		d.Node = intp(int(f.Node))
		d.Dir = f.Dir.String()
	case VisitSubTreeWithRoot:
		d.Node = intp(int(f.Node))
		d.Retain = boolp(f.Retain)
	case VisitSourceTree:
		d.Node = intp(int(f.Node))
		d.Retain = boolp(f.Retain)
	case MaxDepth:
		d.N = intp(f.Depth)
	case ShowLongestPath:
		d.Node = intp(int(f.Node))
	case ShowNamedQuantifier:
		d.Name = f.Name
	}
	return d
}

// Expr renders the descriptor in the chain expression language.
func (d Descriptor) Expr() string {
	var args []string
	switch d.Kind {
	case KindIgnoreQuantifier, KindIgnoreAllButQuantifier:
		if d.Quant == nil {
			args = append(args, "none")
		} else {
			args = append(args, strconv.FormatUint(uint64(*d.Quant), 10))
		}
	case KindShowNamedQuantifier:
		args = append(args, strconv.Quote(d.Name))
	default:
		if d.N != nil {
			args = append(args, strconv.Itoa(*d.N))
		}
		if d.Node != nil {
			args = append(args, strconv.Itoa(*d.Node))
		}
		if d.Dir != "" {
			args = append(args, d.Dir)
		}
		if d.Retain != nil {
			args = append(args, strconv.FormatBool(*d.Retain))
		}
	}
	if len(args) == 0 {
		return string(d.Kind)
	}
	return string(d.Kind) + "(" + strings.Join(args, ", ") + ")"
}
