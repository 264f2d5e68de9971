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
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/instgraph/services/instgraph/chainstore"
	"github.com/AleutianAI/instgraph/services/instgraph/disable"
	"github.com/AleutianAI/instgraph/services/instgraph/facts"
	"github.com/AleutianAI/instgraph/services/instgraph/filter"
	"github.com/AleutianAI/instgraph/services/instgraph/graph"
	"github.com/AleutianAI/instgraph/services/instgraph/session"
	storage "github.com/AleutianAI/instgraph/services/instgraph/storage/badger"
	"github.com/AleutianAI/instgraph/services/instgraph/visible"
)

// sessionFlags are shared by every command that opens a session.
type sessionFlags struct {
	chain         string
	saved         string
	disable       []string
	noReconnect   bool
	maxPathLength int
	partial       bool

	// resolved, when set, replaces chain and saved.
	resolved filter.Chain
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.chain, "chain", "", `filter chain expression, e.g. "ignore_theory_solving; max_insts(50)"`)
	fs.StringVar(&f.saved, "saved", "", "name of a stored filter chain")
	fs.StringSliceVar(&f.disable, "disable", nil, "disablers: smart, enodes, given_equalities, all_equalities")
	fs.BoolVar(&f.noReconnect, "no-reconnect", false, "do not synthesize indirect edges")
	fs.IntVar(&f.maxPathLength, "max-path-length", 0, "bound indirect edge paths (0 = config value)")
	fs.BoolVar(&f.partial, "partial", false, "skip dangling dependencies instead of failing")
	cmd.MarkFlagsMutuallyExclusive("chain", "saved")
}

// openSession loads the fact store at path and opens a session configured
// from the config file overlaid with the command's flags.
func (a *app) openSession(ctx context.Context, cmd *cobra.Command, f *sessionFlags, path string) (*session.Session, error) {
	store, err := facts.Load(path)
	if err != nil {
		return nil, err
	}

	opts, err := a.cfg.SessionOptions()
	if err != nil {
		return nil, err
	}

	switch {
	case f.resolved != nil:
		opts = append(opts, session.WithChain(f.resolved))
	case f.chain != "":
		chain, err := filter.Parse(f.chain)
		if err != nil {
			return nil, fmt.Errorf("--chain: %w", err)
		}
		opts = append(opts, session.WithChain(chain))
	case f.saved != "":
		chain, err := a.savedChain(ctx, f.saved)
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithChain(chain))
	}

	if cmd.Flags().Changed("disable") {
		set, err := disable.ParseSet(f.disable)
		if err != nil {
			return nil, fmt.Errorf("--disable: %w", err)
		}
		opts = append(opts, session.WithDisablers(set))
	}
	if f.noReconnect {
		opts = append(opts, session.WithMaterializeOptions(visible.WithReconnect(false)))
	}
	if f.maxPathLength > 0 {
		opts = append(opts, session.WithMaterializeOptions(visible.WithMaxPathLength(f.maxPathLength)))
	}
	if f.partial {
		opts = append(opts, session.WithBuildOptions(graph.WithAllowPartial(true)))
	}

	s, err := session.New(ctx, store, opts...)
	if err != nil {
		return nil, err
	}
	if errs := s.DependencyErrors(); len(errs) > 0 {
		slog.Warn("Skipped dangling dependencies",
			slog.String("path", path),
			slog.Int("count", len(errs)),
		)
	}
	return s, nil
}

func (a *app) savedChain(ctx context.Context, name string) (filter.Chain, error) {
	store, closeStore, err := a.openChainStore()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	rec, err := store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return rec.Chain()
}

func (a *app) openChainStore() (*chainstore.Store, func(), error) {
	var (
		db  *storage.DB
		err error
	)
	if a.cfg.ChainStore.InMemory && a.chainStorePath == "" {
		db, err = storage.OpenInMemory()
	} else {
		path := a.chainStorePath
		if path == "" {
			if path, err = a.cfg.ChainStorePath(); err != nil {
				return nil, nil, err
			}
		}
		cfg := storage.DefaultConfig(path)
		cfg.Logger = slog.Default()
		db, err = storage.Open(cfg)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open chain store: %w", err)
	}

	closeStore := func() {
		if err := db.Close(); err != nil {
			slog.Warn("Closing chain store failed", slog.String("error", err.Error()))
		}
	}
	return chainstore.New(db), closeStore, nil
}

func parseNode(arg string) (graph.NodeIdx, error) {
	n, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid node index %q", arg)
	}
	return graph.NodeIdx(n), nil
}
