// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/instgraph/services/instgraph/filter"
	"github.com/AleutianAI/instgraph/services/instgraph/graph"
	"github.com/AleutianAI/instgraph/services/instgraph/session"
)

func (a *app) newInfoCmd() *cobra.Command {
	var (
		sf       sessionFlags
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "info FACTS NODE",
		Short: "Describe a node of the raw graph",
		Long: `Print the kind, label and visibility of raw node NODE, plus the
instantiation details (quantifier, cost, pattern, yields) for
instantiation nodes.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseNode(args[1])
			if err != nil {
				return err
			}
			s, err := a.openSession(cmd.Context(), cmd, &sf, args[0])
			if err != nil {
				return err
			}
			return printNodeInfo(cmd.OutOrStdout(), s, idx, jsonMode)
		},
	}

	sf.register(cmd)
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output as JSON")
	return cmd
}

type nodeInfo struct {
	Node           graph.NodeIdx   `json:"node"`
	Kind           graph.NodeKind  `json:"kind"`
	Label          string          `json:"label"`
	Visible        bool            `json:"visible"`
	Disabled       bool            `json:"disabled"`
	Shown          bool            `json:"shown"`
	HiddenParents  int             `json:"hidden_parents"`
	HiddenChildren int             `json:"hidden_children"`
	Inst           *graph.InstInfo `json:"instantiation,omitempty"`
}

func printNodeInfo(w io.Writer, s *session.Session, idx graph.NodeIdx, jsonMode bool) error {
	n, err := s.Node(idx)
	if err != nil {
		return err
	}

	info := nodeInfo{
		Node:     idx,
		Kind:     n.Kind,
		Label:    s.NodeLabel(idx),
		Visible:  n.Visible,
		Disabled: n.Disabled,
	}
	if vn, ok := s.Visible().Node(idx); ok {
		info.Shown = true
		info.HiddenParents = vn.HiddenParents
		info.HiddenChildren = vn.HiddenChildren
	}
	inst, err := s.InstInfo(idx)
	switch {
	case err == nil:
		info.Inst = &inst
	case !errors.Is(err, graph.ErrNotInstantiation):
		return err
	}

	if jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintf(w, "Node %d: %s\n", idx, info.Label)
	fmt.Fprintf(w, "  kind:     %s\n", info.Kind)
	fmt.Fprintf(w, "  visible:  %t (disabled: %t, shown: %t)\n", info.Visible, info.Disabled, info.Shown)
	if info.Shown {
		fmt.Fprintf(w, "  hidden:   %d parents, %d children\n", info.HiddenParents, info.HiddenChildren)
	}
	if info.Inst == nil {
		return nil
	}
	fmt.Fprintf(w, "  quant:    %s\n", inst.Quantifier)
	fmt.Fprintf(w, "  cost:     %g\n", inst.Cost)
	fmt.Fprintf(w, "  line:     %d\n", inst.LineNo)
	fmt.Fprintf(w, "  finger:   %s\n", inst.Fingerprint)
	if inst.Generation != nil {
		fmt.Fprintf(w, "  gen:      %d\n", *inst.Generation)
	}
	if inst.Pattern != "" {
		fmt.Fprintf(w, "  pattern:  %s\n", inst.Pattern)
	}
	if len(inst.Yields) > 0 {
		fmt.Fprintf(w, "  yields:   %s\n", strings.Join(inst.Yields, ", "))
	}
	return nil
}

func (a *app) newLongestPathCmd() *cobra.Command {
	var sf sessionFlags

	cmd := &cobra.Command{
		Use:   "longest-path FACTS NODE",
		Short: "Print the longest dependency path through a node",
		Long: `Apply show_longest_path(NODE) after the configured chain and print the
path from its root to its leaf, one node per line.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseNode(args[1])
			if err != nil {
				return err
			}
			s, err := a.openSession(cmd.Context(), cmd, &sf, args[0])
			if err != nil {
				return err
			}

			chain := append(s.Chain(), filter.ShowLongestPath{Node: idx})
			if _, err := s.ApplyChain(cmd.Context(), chain); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for i, n := range s.LastPath() {
				fmt.Fprintf(w, "%3d  node_%d  %s\n", i, n, s.NodeLabel(n))
			}
			return nil
		},
	}

	sf.register(cmd)
	return cmd
}
