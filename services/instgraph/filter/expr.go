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

	"github.com/alecthomas/participle/v2"
)

// chainExpr is the grammar of a chain expression: calls separated by ";".
//
//	ignore_theory_solving; max_insts(125); visit_subtree(4, false)
type chainExpr struct {
	Calls []callExpr `(@@ (";" @@)*)?`
}

type callExpr struct {
	Name string    `@Ident`
	Args []argExpr `("(" (@@ ("," @@)*)? ")")?`
}

type argExpr struct {
	Int   *int    `@Int |`
	Str   *string `@String |`
	Ident *string `@Ident`
}

var exprParser = participle.MustBuild(&chainExpr{})

// Parse reads a chain expression.
//
// Description:
//
//	Each call names a filter Kind followed by its arguments:
//
//	  max_node_idx(n)   min_node_idx(n)   max_insts(n)
//	  max_branching(n)  max_depth(d)      ignore_theory_solving
//	  ignore_quantifier(q | none)         ignore_all_but_quantifier(q | none)
//	  show_neighbours(node, in | out)     show_longest_path(node)
//	  visit_subtree(node, true | false)   visit_source_tree(node, true | false)
//	  show_named_quantifier("name")
//
//	An empty expression is the empty chain.
//
// Outputs:
//   - Chain: The parsed chain.
//   - error: ErrParse for syntax errors, or a descriptor validation error.
func Parse(expr string) (Chain, error) {
	if strings.TrimSpace(expr) == "" {
		return Chain{}, nil
	}
	var ast chainExpr
	if err := exprParser.ParseString("chain", expr, &ast); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	chain := make(Chain, 0, len(ast.Calls))
	for i, call := range ast.Calls {
		d, err := call.descriptor()
		if err != nil {
			return nil, fmt.Errorf("call %d (%s): %w", i, call.Name, err)
		}
		f, err := d.Filter()
		if err != nil {
			return nil, fmt.Errorf("call %d (%s): %w", i, call.Name, err)
		}
		chain = append(chain, f)
	}
	return chain, nil
}

// Format renders a chain as an expression that Parse accepts.
func Format(c Chain) string {
	parts := make([]string, len(c))
	for i, d := range c.Descriptors() {
		parts[i] = d.Expr()
	}
	return strings.Join(parts, "; ")
}

// descriptor maps positional arguments onto descriptor fields by kind.
func (c callExpr) descriptor() (Descriptor, error) {
	d := Descriptor{Kind: Kind(c.Name)}
	arity := func(n int) error {
		if len(c.Args) != n {
			return fmt.Errorf("%w: %s takes %d argument(s), got %d", ErrParse, c.Name, n, len(c.Args))
		}
		return nil
	}

	switch d.Kind {
	case KindIgnoreTheorySolving:
		return d, arity(0)

	case KindMaxNodeIdx, KindMinNodeIdx, KindMaxInsts, KindMaxBranching, KindMaxDepth:
		if err := arity(1); err != nil {
			return d, err
		}
		n, err := c.Args[0].int()
		d.N = &n
		return d, err

	case KindIgnoreQuantifier, KindIgnoreAllButQuantifier:
		if err := arity(1); err != nil {
			return d, err
		}
		if c.Args[0].ident() == "none" {
			return d, nil
		}
		n, err := c.Args[0].int()
		if err != nil {
			return d, err
		}
		q := uint32(n)
		d.Quant = &q
		return d, nil

	case KindShowLongestPath:
		if err := arity(1); err != nil {
			return d, err
		}
		n, err := c.Args[0].int()
		d.Node = &n
		return d, err

	case KindShowNeighbours:
		if err := arity(2); err != nil {
			return d, err
		}
		n, err := c.Args[0].int()
		d.Node = &n
		d.Dir = c.Args[1].ident()
		return d, err

	case KindVisitSubTreeWithRoot, KindVisitSourceTree:
		if err := arity(2); err != nil {
			return d, err
		}
		n, err := c.Args[0].int()
		if err != nil {
			return d, err
		}
		retain, err := strconv.ParseBool(c.Args[1].ident())
		if err != nil {
			return d, fmt.Errorf("%w: %s retain must be true or false", ErrParse, c.Name)
		}
		d.Node = &n
		d.Retain = &retain
		return d, nil

	case KindShowNamedQuantifier:
		if err := arity(1); err != nil {
			return d, err
		}
		d.Name = c.Args[0].text()
		return d, nil

	default:
		return d, fmt.Errorf("%w: %q", ErrUnknownFilter, c.Name)
	}
}

func (a argExpr) int() (int, error) {
	if a.Int == nil {
		return 0, fmt.Errorf("%w: expected integer, got %q", ErrParse, a.text())
	}
	return *a.Int, nil
}

func (a argExpr) ident() string {
	if a.Ident == nil {
		return ""
	}
	return *a.Ident
}

// text returns a string or identifier argument, unquoting strings.
func (a argExpr) text() string {
	switch {
	case a.Str != nil:
		if s, err := strconv.Unquote(*a.Str); err == nil {
			return s
		}
		return *a.Str
	case a.Ident != nil:
		return *a.Ident
	case a.Int != nil:
		return strconv.Itoa(*a.Int)
	default:
		return ""
	}
}
