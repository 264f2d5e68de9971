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

// InstInfo is the human-readable detail of one instantiation node.
type InstInfo struct {
	Node        NodeIdx           `json:"node"`
	LineNo      int               `json:"line_no"`
	MatchLineNo int               `json:"match_line_no,omitempty"`
	Fingerprint facts.Fingerprint `json:"fingerprint"`
	Cost        float64           `json:"cost"`
	Generation  *uint32           `json:"generation,omitempty"`
	Quantifier  string            `json:"quantifier,omitempty"`
	Discovered  bool              `json:"discovered"`
	Pattern     string            `json:"pattern,omitempty"`
	Result      string            `json:"result,omitempty"`
	Yields      []string          `json:"yields,omitempty"`
	Blamed      []string          `json:"blamed,omitempty"`
	Parents     []NodeIdx         `json:"parents,omitempty"`
}

// InstInfo looks up the instantiation behind node idx in the store it was
// built from and renders its terms under cfg.
func (g *Graph) InstInfo(idx NodeIdx, store *facts.Store, cfg facts.DisplayConfig) (InstInfo, error) {
	if err := g.CheckNode(idx); err != nil {
		return InstInfo{}, err
	}
	node := g.nodes[idx]
	if node.Kind != NodeInstantiation {
		return InstInfo{}, fmt.Errorf("%w: node %d is %s", ErrNotInstantiation, idx, node.Kind)
	}
	inst, ok := store.Instantiation(facts.InstIdx(node.Ref.Idx))
	if !ok {
		return InstInfo{}, fmt.Errorf("%w: %s", facts.ErrDanglingReference, node.Ref)
	}

	info := InstInfo{
		Node:        idx,
		LineNo:      inst.LineNo,
		MatchLineNo: inst.MatchLineNo,
		Fingerprint: inst.Fingerprint,
		Cost:        inst.Cost,
		Generation:  inst.Generation,
		Quantifier:  store.QuantName(node.Quant, cfg),
		Discovered:  node.Discovered,
		Parents:     g.Parents(idx),
	}
	if inst.Result != nil {
		info.Result = store.TermText(*inst.Result, cfg)
	}
	for _, y := range inst.Yields {
		if int(y) < len(store.ENodes) {
			info.Yields = append(info.Yields, store.TermText(store.ENodes[y].Term, cfg))
		}
	}
	if match, ok := store.MatchOf(facts.InstIdx(node.Ref.Idx)); ok {
		if match.Pattern != nil {
			info.Pattern = store.TermText(*match.Pattern, cfg)
		}
		for _, b := range match.Blamed {
			text := store.TermText(b.Term, cfg)
			if b.Eq != nil {
				text += " = " + store.TermText(*b.Eq, cfg)
			}
			info.Blamed = append(info.Blamed, text)
		}
	}
	return info, nil
}
