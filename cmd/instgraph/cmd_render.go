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
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/instgraph/services/instgraph/render"
)

func (a *app) newRenderCmd() *cobra.Command {
	var (
		sf       sessionFlags
		format   string
		output   string
		maxLabel int
		rankdir  string
	)

	cmd := &cobra.Command{
		Use:   "render FACTS",
		Short: "Render the visible instantiation graph",
		Long: `Build the instantiation graph from FACTS, apply the filter chain and
disablers, and write the visible graph as DOT, Mermaid or JSON.

Examples:
  instgraph render run.json.zst > graph.dot
  instgraph render run.json --chain "max_insts(20)" --format mermaid
  instgraph render run.yaml --saved hot-paths --disable smart,enodes -o out.json --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}

			s, err := a.openSession(cmd.Context(), cmd, &sf, args[0])
			if err != nil {
				return err
			}

			opts := render.DefaultOptions()
			opts.MaxLabelLength = maxLabel
			opts.Direction = rankdir
			out, err := render.NewGenerator(s, &opts).Generate(cmd.Context(), s.Visible(), f)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, out)
		},
	}

	sf.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot, mermaid, json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&maxLabel, "max-label", 60, "truncate node labels (0 = no limit)")
	cmd.Flags().StringVar(&rankdir, "rankdir", "TB", "layout direction: TB, LR, BT, RL")
	return cmd
}

func writeOutput(stdout io.Writer, path, content string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
