// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package render turns a visible snapshot into DOT, Mermaid or JSON.
//
// Renderers only read the snapshot. Node identifiers are derived from raw
// node indices ("node_<idx>"), so identifiers stay stable across snapshots
// of the same session.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/instgraph/services/instgraph/graph"
	"github.com/AleutianAI/instgraph/services/instgraph/visible"
)

// Format is an output format.
type Format string

const (
	FormatDOT     Format = "dot"
	FormatMermaid Format = "mermaid"
	FormatJSON    Format = "json"
)

var (
	// ErrUnsupportedFormat is returned for unknown formats.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrNilSnapshot is returned when no snapshot is given.
	ErrNilSnapshot = errors.New("snapshot is required")
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDOT, FormatMermaid, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
}

// Labeler supplies captions for nodes and classifications for edges.
// *session.Session implements it.
type Labeler interface {
	NodeLabel(idx graph.NodeIdx) string
	EdgeDetail(e visible.Edge) visible.EdgeDetail
}

// Options configures rendering.
type Options struct {
	// MaxLabelLength truncates node labels. Zero disables truncation.
	// Default: 60
	MaxLabelLength int

	// Direction is the layout direction for DOT and Mermaid.
	// Default: "TB"
	Direction string
}

// DefaultOptions returns the default rendering options.
func DefaultOptions() Options {
	return Options{
		MaxLabelLength: 60,
		Direction:      "TB",
	}
}

// Generator renders snapshots.
//
// Thread Safety: Safe for concurrent use when the Labeler is.
type Generator struct {
	labeler Labeler
	options Options
}

// NewGenerator returns a generator. A nil opts selects DefaultOptions.
func NewGenerator(labeler Labeler, opts *Options) *Generator {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	if o.Direction == "" {
		o.Direction = "TB"
	}
	return &Generator{labeler: labeler, options: o}
}

// Generate renders vg in format.
//
// Inputs:
//   - ctx: Required.
//   - vg: The snapshot to render.
//   - format: One of FormatDOT, FormatMermaid, FormatJSON.
//
// Outputs:
//   - string: The rendered graph.
//   - error: ErrNilSnapshot, ErrUnsupportedFormat or an encoding failure.
func (g *Generator) Generate(ctx context.Context, vg *visible.Graph, format Format) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("context is required")
	}
	if vg == nil {
		return "", ErrNilSnapshot
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch format {
	case FormatDOT:
		return g.generateDOT(vg), nil
	case FormatMermaid:
		return g.generateMermaid(vg), nil
	case FormatJSON:
		return g.generateJSON(vg)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// NodeID returns the renderer identifier of raw node idx.
func NodeID(idx graph.NodeIdx) string {
	return fmt.Sprintf("node_%d", idx)
}

func (g *Generator) label(idx graph.NodeIdx) string {
	return truncateLabel(g.labeler.NodeLabel(idx), g.options.MaxLabelLength)
}

// edgeKind names the classification of an indirect edge.
func (g *Generator) edgeKind(e visible.Edge) string {
	if !e.IsIndirect() {
		return ""
	}
	return g.labeler.EdgeDetail(e).Kind.String()
}

func nodeFill(k graph.NodeKind) string {
	switch k {
	case graph.NodeInstantiation:
		return "#74b9ff"
	case graph.NodeENode:
		return "#ffeaa7"
	case graph.NodeGivenEquality:
		return "#55efc4"
	default:
		return "#dfe6e9"
	}
}

func (g *Generator) generateDOT(vg *visible.Graph) string {
	var sb strings.Builder

	sb.WriteString("digraph InstGraph {\n")
	fmt.Fprintf(&sb, "    rankdir=%s;\n", g.options.Direction)
	sb.WriteString("    node [shape=box, style=filled];\n")
	sb.WriteString("\n")

	for _, n := range vg.Nodes {
		attrs := fmt.Sprintf("label=\"%s\", fillcolor=\"%s\"", escapeDOTLabel(g.label(n.Idx)), nodeFill(n.Kind))
		if n.Kind != graph.NodeInstantiation {
			attrs += ", shape=ellipse"
		}
		if n.HiddenParents > 0 || n.HiddenChildren > 0 {
			attrs += fmt.Sprintf(", penwidth=2, tooltip=\"hidden parents: %d, hidden children: %d\"",
				n.HiddenParents, n.HiddenChildren)
		}
		fmt.Fprintf(&sb, "    %s [%s];\n", NodeID(n.Idx), attrs)
	}

	if len(vg.Edges) > 0 {
		sb.WriteString("\n")
	}
	for _, e := range vg.Edges {
		if e.IsIndirect() {
			fmt.Fprintf(&sb, "    %s -> %s [style=dashed, label=\"%s\"];\n",
				NodeID(e.From), NodeID(e.To), g.edgeKind(e))
			continue
		}
		fmt.Fprintf(&sb, "    %s -> %s;\n", NodeID(e.From), NodeID(e.To))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func (g *Generator) generateMermaid(vg *visible.Graph) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "flowchart %s\n", g.options.Direction)
	for _, n := range vg.Nodes {
		label := escapeMermaidLabel(g.label(n.Idx))
		if n.Kind == graph.NodeInstantiation {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", NodeID(n.Idx), label)
		} else {
			fmt.Fprintf(&sb, "    %s([\"%s\"])\n", NodeID(n.Idx), label)
		}
	}
	for _, e := range vg.Edges {
		if e.IsIndirect() {
			fmt.Fprintf(&sb, "    %s -.->|%s| %s\n", NodeID(e.From), g.edgeKind(e), NodeID(e.To))
			continue
		}
		fmt.Fprintf(&sb, "    %s --> %s\n", NodeID(e.From), NodeID(e.To))
	}
	return sb.String()
}

type jsonNode struct {
	ID             string         `json:"id"`
	Idx            graph.NodeIdx  `json:"idx"`
	Kind           graph.NodeKind `json:"kind"`
	Label          string         `json:"label"`
	HiddenParents  int            `json:"hidden_parents"`
	HiddenChildren int            `json:"hidden_children"`
}

type jsonEdge struct {
	Source string           `json:"source"`
	Target string           `json:"target"`
	Type   visible.EdgeType `json:"type"`
	Kind   string           `json:"kind,omitempty"`
	Path   []graph.EdgeIdx  `json:"path"`
	Raw    []graph.EdgeKind `json:"raw_kinds"`
}

type jsonGraph struct {
	Generation uint64     `json:"generation"`
	Nodes      []jsonNode `json:"nodes"`
	Edges      []jsonEdge `json:"edges"`
}

func (g *Generator) generateJSON(vg *visible.Graph) (string, error) {
	doc := jsonGraph{
		Generation: vg.Generation,
		Nodes:      make([]jsonNode, 0, len(vg.Nodes)),
		Edges:      make([]jsonEdge, 0, len(vg.Edges)),
	}
	for _, n := range vg.Nodes {
		doc.Nodes = append(doc.Nodes, jsonNode{
			ID:             NodeID(n.Idx),
			Idx:            n.Idx,
			Kind:           n.Kind,
			Label:          g.labeler.NodeLabel(n.Idx),
			HiddenParents:  n.HiddenParents,
			HiddenChildren: n.HiddenChildren,
		})
	}
	for _, e := range vg.Edges {
		detail := g.labeler.EdgeDetail(e)
		je := jsonEdge{
			Source: NodeID(e.From),
			Target: NodeID(e.To),
			Type:   e.Type,
			Path:   e.Path,
			Raw:    detail.Raw,
		}
		if e.IsIndirect() {
			je.Kind = detail.Kind.String()
		}
		doc.Edges = append(doc.Edges, je)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal graph: %w", err)
	}
	return string(data) + "\n", nil
}

func escapeDOTLabel(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
	)
	return replacer.Replace(s)
}

func escapeMermaidLabel(s string) string {
	replacer := strings.NewReplacer(
		"\"", "#quot;",
		"<", "&lt;",
		">", "&gt;",
		"\n", " ",
	)
	return replacer.Replace(s)
}

func truncateLabel(s string, max int) string {
	if max <= 0 || len([]rune(s)) <= max {
		return s
	}
	r := []rune(s)
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
