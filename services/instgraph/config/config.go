// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads instantiation graph session configuration.
//
// The embedded default.yaml is always parsed first. An external file, given
// explicitly or through INSTGRAPH_CONFIG, is decoded on top of it so that
// missing fields keep their defaults.
//
// Thread Safety:
//
//	All exported functions are safe for concurrent use. A Config is a plain
//	value and must not be mutated while shared.
package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/instgraph/services/instgraph/disable"
	"github.com/AleutianAI/instgraph/services/instgraph/facts"
	"github.com/AleutianAI/instgraph/services/instgraph/filter"
	"github.com/AleutianAI/instgraph/services/instgraph/graph"
	"github.com/AleutianAI/instgraph/services/instgraph/session"
	"github.com/AleutianAI/instgraph/services/instgraph/visible"
)

const (
	// MaxYAMLFileSize is the maximum accepted config file size (1MB).
	MaxYAMLFileSize = 1024 * 1024

	// EnvConfigPath names an external config file when no path is given.
	EnvConfigPath = "INSTGRAPH_CONFIG"
)

//go:embed default.yaml
var defaultConfigYAML []byte

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConfigTooLarge is returned for files above MaxYAMLFileSize.
	ErrConfigTooLarge = errors.New("configuration file too large")
)

var (
	tracer   = otel.Tracer("aleutian.instgraph.config")
	validate = validator.New()
)

// Config is the full session and tooling configuration.
type Config struct {
	// DefaultChain is the filter chain a new session starts with.
	DefaultChain []filter.Descriptor `yaml:"default_chain" validate:"dive"`

	// DefaultChainExpr replaces DefaultChain when set, e.g.
	// "ignore_theory_solving; max_insts(250)".
	DefaultChainExpr string `yaml:"default_chain_expr"`

	// Disablers names the disablers enabled on a new session.
	Disablers []string `yaml:"disablers" validate:"dive,oneof=smart enodes given_equalities all_equalities"`

	Display     facts.DisplayConfig `yaml:"display"`
	Build       BuildConfig         `yaml:"build"`
	Materialize MaterializeConfig   `yaml:"materialize"`
	ChainStore  ChainStoreConfig    `yaml:"chain_store"`
	Telemetry   TelemetryConfig     `yaml:"telemetry"`
}

// BuildConfig configures raw graph construction.
type BuildConfig struct {
	AllowPartial   bool `yaml:"allow_partial"`
	MaxNodes       int  `yaml:"max_nodes" validate:"gte=0"`
	ReachCacheSize int  `yaml:"reach_cache_size" validate:"gte=1"`
}

// MaterializeConfig configures snapshot materialization.
type MaterializeConfig struct {
	Reconnect bool `yaml:"reconnect"`

	// MaxPathLength bounds indirect edge paths. Zero means unbounded.
	MaxPathLength int `yaml:"max_path_length" validate:"gte=0"`
}

// ChainStoreConfig locates the named filter chain library.
type ChainStoreConfig struct {
	// Path is the database directory. Empty selects the user config dir.
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// TelemetryConfig selects OpenTelemetry exporters for the CLI.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" validate:"required"`
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
}

// Default returns the embedded default configuration.
//
// Panics if the embedded YAML is malformed, which the package tests rule out.
func Default() Config {
	cfg, err := parse(defaultConfigYAML, Config{})
	if err != nil {
		panic(fmt.Sprintf("embedded default config: %v", err))
	}
	return cfg
}

// Load reads the configuration.
//
// Description:
//
//	Resolves the external file from path, then INSTGRAPH_CONFIG. With
//	neither set the embedded default is returned. The external file is
//	decoded over the defaults and the result validated.
//
// Inputs:
//   - ctx: Context for tracing.
//   - path: Optional config file path.
//
// Outputs:
//   - Config: The validated configuration.
//   - error: Read, size, parse or ErrInvalidConfig failures.
func Load(ctx context.Context, path string) (Config, error) {
	_, span := tracer.Start(ctx, "config.Load")
	defer span.End()

	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		slog.Debug("Using embedded instgraph config")
		return cfg, nil
	}
	span.SetAttributes(attribute.String("config.path", path))

	data, err := readFile(path)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Config{}, err
	}
	cfg, err = parse(data, cfg)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	slog.Info("Loaded instgraph config",
		slog.String("path", path),
		slog.Int("default_chain_length", len(cfg.DefaultChain)),
	)
	span.AddEvent("config_loaded", trace.WithAttributes(attribute.Int("bytes", len(data))))
	return cfg, nil
}

func readFile(path string) ([]byte, error) {
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config %s is a directory", clean)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigTooLarge, info.Size(), MaxYAMLFileSize)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return data, nil
}

// parse decodes data over base and validates the result.
func parse(data []byte, base Config) (Config, error) {
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags, the default chain and the disabler names.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Chain(); err != nil {
		return fmt.Errorf("%w: default chain: %w", ErrInvalidConfig, err)
	}
	if _, err := c.DisablerSet(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Chain returns the default filter chain.
func (c Config) Chain() (filter.Chain, error) {
	if strings.TrimSpace(c.DefaultChainExpr) != "" {
		return filter.Parse(c.DefaultChainExpr)
	}
	return filter.FromDescriptors(c.DefaultChain)
}

// DisablerSet returns the default disabler set.
func (c Config) DisablerSet() (disable.Set, error) {
	return disable.ParseSet(c.Disablers)
}

// BuilderOptions converts the build section to graph options.
func (c Config) BuilderOptions() []graph.BuilderOption {
	return []graph.BuilderOption{
		graph.WithAllowPartial(c.Build.AllowPartial),
		graph.WithMaxNodes(c.Build.MaxNodes),
		graph.WithReachCacheSize(c.Build.ReachCacheSize),
	}
}

// MaterializeOptions converts the materialize section to visible options.
func (c Config) MaterializeOptions() []visible.Option {
	return []visible.Option{
		visible.WithReconnect(c.Materialize.Reconnect),
		visible.WithMaxPathLength(c.Materialize.MaxPathLength),
	}
}

// SessionOptions returns the session options the config describes.
func (c Config) SessionOptions() ([]session.Option, error) {
	chain, err := c.Chain()
	if err != nil {
		return nil, err
	}
	set, err := c.DisablerSet()
	if err != nil {
		return nil, err
	}
	return []session.Option{
		session.WithChain(chain),
		session.WithDisablers(set),
		session.WithDisplayConfig(c.Display),
		session.WithBuildOptions(c.BuilderOptions()...),
		session.WithMaterializeOptions(c.MaterializeOptions()...),
	}, nil
}

// ChainStorePath returns the configured store directory, defaulting to
// <user config dir>/instgraph/chains.
func (c Config) ChainStorePath() (string, error) {
	if c.ChainStore.Path != "" {
		return c.ChainStore.Path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "instgraph", "chains"), nil
}
