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
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/instgraph/services/instgraph/filter"
)

func (a *app) newChainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Manage named filter chains",
		Long: `Save, list, show and delete filter chains in the local chain store.

Subcommands:
  save    - Store a chain expression under a name
  list    - List stored chains
  show    - Print a stored chain and its filters
  delete  - Remove a stored chain
  check   - Parse an expression and print its canonical form`,
	}
	cmd.AddCommand(
		a.newChainSaveCmd(),
		a.newChainListCmd(),
		a.newChainShowCmd(),
		a.newChainDeleteCmd(),
		newChainCheckCmd(),
	)
	return cmd
}

func (a *app) newChainSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save NAME EXPR",
		Short: "Store a chain expression under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := filter.Parse(args[1])
			if err != nil {
				return err
			}
			store, closeStore, err := a.openChainStore()
			if err != nil {
				return err
			}
			defer closeStore()

			rec, err := store.Save(cmd.Context(), args[0], chain)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", rec.Name, rec.Hash[:12])
			return nil
		},
	}
}

func (a *app) newChainListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := a.openChainStore()
			if err != nil {
				return err
			}
			defer closeStore()

			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tHASH\tSAVED\tEXPRESSION")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Hash[:12], r.SavedAt.Format(time.DateTime), r.Expression)
			}
			return tw.Flush()
		},
	}
}

func (a *app) newChainShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Print a stored chain and its filters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openChainStore()
			if err != nil {
				return err
			}
			defer closeStore()

			rec, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			chain, err := rec.Chain()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s: %s\n", rec.Name, rec.Expression)
			for i, f := range chain {
				fmt.Fprintf(w, "  %d. %s\n", i+1, f)
			}
			return nil
		},
	}
}

func (a *app) newChainDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove a stored chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openChainStore()
			if err != nil {
				return err
			}
			defer closeStore()
			return store.Delete(cmd.Context(), args[0])
		},
	}
}

func newChainCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check EXPR",
		Short: "Parse an expression and print its canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := filter.Parse(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", filter.Format(chain), chain.Hash())
			return nil
		},
	}
}
