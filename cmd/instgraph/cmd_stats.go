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
	"fmt"
	"io"
	"runtime"
	"slices"
	"text/tabwriter"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/instgraph/services/instgraph/graph"
	"github.com/AleutianAI/instgraph/services/instgraph/session"
)

// traceStats summarises one fact store under the active chain.
type traceStats struct {
	Path       string `json:"path"`
	Nodes      int    `json:"nodes"`
	Edges      int    `json:"edges"`
	Disabled   int    `json:"disabled"`
	Shown      int    `json:"shown"`
	Direct     int    `json:"direct"`
	Indirect   int    `json:"indirect"`
	Skipped    int    `json:"skipped_dependencies"`
	Incomplete bool   `json:"incomplete"`
}

func (a *app) newStatsCmd() *cobra.Command {
	var (
		sf       sessionFlags
		jsonMode bool
		jobs     int
	)

	cmd := &cobra.Command{
		Use:   "stats PATTERN...",
		Short: "Summarise many fact stores",
		Long: `Expand each PATTERN (doublestar globs such as "runs/**/*.json.zst"),
open a session per matching file in parallel, and print raw and visible
graph sizes under the configured chain and disablers.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandPatterns(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no files match %v", args)
			}

			// Resolve a saved chain once; the store allows a single opener.
			if sf.saved != "" {
				chain, err := a.savedChain(cmd.Context(), sf.saved)
				if err != nil {
					return err
				}
				sf.resolved, sf.saved = chain, ""
			}

			results := make([]traceStats, len(paths))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(jobs)
			for i, path := range paths {
				g.Go(func() error {
					s, err := a.openSession(ctx, cmd, &sf, path)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					results[i] = collectStats(path, s)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if jsonMode {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			return printStats(cmd.OutOrStdout(), results)
		},
	}

	sf.register(cmd)
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output as JSON")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0), "files processed in parallel")
	return cmd
}

// expandPatterns globs every pattern and returns the sorted, deduplicated
// matches. A pattern without meta characters is kept even when missing so
// that the load error names it.
func expandPatterns(patterns []string) ([]string, error) {
	var paths []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 && !hasMeta(p) {
			matches = []string{p}
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}

func hasMeta(p string) bool {
	for _, c := range p {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func collectStats(path string, s *session.Session) traceStats {
	vg := s.Visible()
	st := traceStats{
		Path:       path,
		Nodes:      s.NodeCount(),
		Edges:      s.BuildStats().EdgesCreated,
		Shown:      vg.NodeCount(),
		Indirect:   vg.IndirectCount(),
		Skipped:    len(s.DependencyErrors()),
		Incomplete: s.BuildIncomplete(),
	}
	st.Direct = vg.EdgeCount() - st.Indirect
	for i := 0; i < st.Nodes; i++ {
		if n, err := s.Node(graph.NodeIdx(i)); err == nil && n.Disabled {
			st.Disabled++
		}
	}
	return st
}

func printStats(w io.Writer, results []traceStats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "NODES\tEDGES\tDISABLED\tSHOWN\tDIRECT\tINDIRECT\tSKIPPED\t\tFILE")
	for _, r := range results {
		mark := ""
		if r.Incomplete {
			mark = "*"
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.Nodes, r.Edges, r.Disabled, r.Shown, r.Direct, r.Indirect, r.Skipped, mark, r.Path)
	}
	return tw.Flush()
}
