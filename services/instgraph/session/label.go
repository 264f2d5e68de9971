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
	"fmt"
	"strconv"

	"github.com/AleutianAI/instgraph/services/instgraph/graph"
)

// NodeLabel returns a short caption for raw node idx: the quantifier and
// cost for instantiations, the term for e-nodes, the endpoint terms for
// equalities.
func (s *Session) NodeLabel(idx graph.NodeIdx) string {
	n, ok := s.graph.Node(idx)
	if !ok {
		return strconv.Itoa(int(idx))
	}

	switch n.Kind {
	case graph.NodeInstantiation:
		name := s.store.QuantName(n.Quant, s.display)
		if name == "" {
			name = "theory"
		}
		return fmt.Sprintf("%s (%.0f)", name, n.Cost)

	case graph.NodeENode:
		if int(n.Ref.Idx) < len(s.store.ENodes) {
			return s.store.TermText(s.store.ENodes[n.Ref.Idx].Term, s.display)
		}

	case graph.NodeGivenEquality, graph.NodeTransEquality:
		if int(n.Ref.Idx) < len(s.store.Equalities) {
			eq := s.store.Equalities[n.Ref.Idx]
			return s.enodeText(int(eq.From)) + " = " + s.enodeText(int(eq.To))
		}
	}
	return n.Ref.String()
}

func (s *Session) enodeText(e int) string {
	if e < len(s.store.ENodes) {
		return s.store.TermText(s.store.ENodes[e].Term, s.display)
	}
	return "?"
}
