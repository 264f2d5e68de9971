// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/instgraph/services/instgraph/disable"
	"github.com/AleutianAI/instgraph/services/instgraph/filter"
	"github.com/AleutianAI/instgraph/services/instgraph/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	chain, err := cfg.Chain()
	require.NoError(t, err)
	assert.True(t, chain.Equal(filter.DefaultChain()), "got %s", chain)

	set, err := cfg.DisablerSet()
	require.NoError(t, err)
	assert.Equal(t, disable.DefaultSet, set)

	assert.True(t, cfg.Materialize.Reconnect)
	assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
	assert.Equal(t, "instgraph", cfg.Telemetry.ServiceName)
}

func TestLoad_NoPathUsesEmbedded(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
disablers: [enodes, given_equalities]
materialize:
  max_path_length: 4
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	set, err := cfg.DisablerSet()
	require.NoError(t, err)
	assert.Equal(t, disable.NewSet(disable.ENodes, disable.GivenEqualities), set)
	assert.Equal(t, 4, cfg.Materialize.MaxPathLength)
	assert.True(t, cfg.Materialize.Reconnect, "unset fields keep defaults")
	assert.Len(t, cfg.DefaultChain, 2)
}

func TestLoad_EnvPath(t *testing.T) {
	path := writeConfig(t, "display:\n  hide_unnamed_ids: true\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, cfg.Display.HideUnnamedIDs)
}

func TestLoad_ChainExprTakesPrecedence(t *testing.T) {
	path := writeConfig(t, `default_chain_expr: "max_depth(3); show_named_quantifier(\"q0\")"`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	chain, err := cfg.Chain()
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, filter.MaxDepth{Depth: 3}, chain[0])
	assert.Equal(t, filter.ShowNamedQuantifier{Name: "q0"}, chain[1])
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown filter kind", "default_chain:\n  - kind: show_everything\n"},
		{"missing filter param", "default_chain:\n  - kind: max_insts\n"},
		{"unknown disabler", "disablers: [clever]\n"},
		{"negative max nodes", "build:\n  max_nodes: -1\n"},
		{"zero reach cache", "build:\n  reach_cache_size: 0\n"},
		{"bad exporter", "telemetry:\n  metric_exporter: graphite\n"},
		{"otlp without endpoint", "telemetry:\n  trace_exporter: otlp\n  otlp_endpoint: \"\"\n"},
		{"bad chain expr", "default_chain_expr: \"max_insts(\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), writeConfig(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_FileErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := Load(context.Background(), t.TempDir())
		assert.Error(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		body := "# " + strings.Repeat("x", MaxYAMLFileSize) + "\n"
		_, err := Load(context.Background(), writeConfig(t, body))
		assert.ErrorIs(t, err, ErrConfigTooLarge)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(context.Background(), writeConfig(t, "build: [\n"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestSessionOptions(t *testing.T) {
	cfg := Default()
	cfg.Disablers = []string{"all_equalities"}
	cfg.Display.MaxTermDepth = 3

	opts, err := cfg.SessionOptions()
	require.NoError(t, err)

	applied := session.DefaultOptions()
	for _, opt := range opts {
		opt(&applied)
	}
	assert.Equal(t, disable.NewSet(disable.AllEqualities), applied.Disablers)
	assert.Equal(t, 3, applied.Display.MaxTermDepth)
	assert.True(t, applied.Chain.Equal(filter.DefaultChain()))
	assert.Len(t, applied.Build, 3)
	assert.Len(t, applied.Materialize, 2)
}

func TestChainStorePath(t *testing.T) {
	cfg := Default()
	cfg.ChainStore.Path = "/var/lib/instgraph"

	path, err := cfg.ChainStorePath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/instgraph", path)
}
