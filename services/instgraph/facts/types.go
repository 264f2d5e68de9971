// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package facts

import (
	"fmt"
	"strconv"
	"strings"
)

// Dense indices into the store's collections.
type (
	QuantIdx uint32
	TermIdx  uint32
	MatchIdx uint32
	InstIdx  uint32
	ENodeIdx uint32
	EqIdx    uint32
)

// =============================================================================
// FINGERPRINT
// =============================================================================

// Fingerprint is the 64-bit identifier Z3 assigns to an instantiation event.
// It is serialised as a hexadecimal string.
type Fingerprint uint64

// String returns the fingerprint as 0x-prefixed hex.
func (f Fingerprint) String() string {
	return "0x" + strconv.FormatUint(uint64(f), 16)
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	v, err := ParseFingerprint(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseFingerprint parses a hexadecimal fingerprint with or without a 0x prefix.
func ParseFingerprint(s string) (Fingerprint, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if trimmed == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFingerprint, s)
	}
	v, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFingerprint, s)
	}
	return Fingerprint(v), nil
}

// =============================================================================
// ENUMS
// =============================================================================

// QuantKind classifies how a quantifier was named in the trace.
type QuantKind uint8

const (
	// QuantOther is a pseudo-quantifier for discovered instantiations
	// (theory-solving, MBQI). Name holds the kind, e.g. "basic#".
	QuantOther QuantKind = iota

	// QuantLambda is an anonymous quantifier, printed as "<null>".
	QuantLambda

	// QuantNamed carries a user-supplied :qid.
	QuantNamed

	// QuantUnnamed carries a solver-generated "name!id" identifier.
	QuantUnnamed
)

var quantKindNames = map[QuantKind]string{
	QuantOther:   "other",
	QuantLambda:  "lambda",
	QuantNamed:   "named",
	QuantUnnamed: "unnamed",
}

// MatchKind says what triggered an instantiation.
type MatchKind uint8

const (
	MatchQuantifier MatchKind = iota
	MatchMBQI
	MatchTheorySolving
	MatchAxiom
)

var matchKindNames = map[MatchKind]string{
	MatchQuantifier:    "quantifier",
	MatchMBQI:          "mbqi",
	MatchTheorySolving: "theory_solving",
	MatchAxiom:         "axiom",
}

// EqKind distinguishes asserted from derived equalities.
type EqKind uint8

const (
	EqGiven EqKind = iota
	EqTrans
)

var eqKindNames = map[EqKind]string{
	EqGiven: "given",
	EqTrans: "trans",
}

// EntityKind identifies which collection a Ref points into.
type EntityKind uint8

const (
	// EntityNone is the "no predecessor" sentinel. The zero Ref is none.
	EntityNone EntityKind = iota
	EntityInstantiation
	EntityENode
	EntityGivenEquality
	EntityTransEquality
)

var entityKindNames = map[EntityKind]string{
	EntityNone:          "none",
	EntityInstantiation: "inst",
	EntityENode:         "enode",
	EntityGivenEquality: "given_eq",
	EntityTransEquality: "trans_eq",
}

// DepKind classifies the causal relationship a dependency records.
type DepKind uint8

const (
	// DepYield links an instantiation to an e-node it produced.
	DepYield DepKind = iota

	// DepBlame links an e-node to an instantiation that matched on it.
	DepBlame

	// DepEqualityFact links an e-node to the equality establishing its representative.
	DepEqualityFact

	// DepTEqualitySimple links a given equality to a transitive one.
	DepTEqualitySimple

	// DepBlameEq links an equality to an instantiation whose match used it.
	DepBlameEq
)

var depKindNames = map[DepKind]string{
	DepYield:           "yield",
	DepBlame:           "blame",
	DepEqualityFact:    "equality_fact",
	DepTEqualitySimple: "t_equality_simple",
	DepBlameEq:         "blame_eq",
}

func (k QuantKind) String() string { return enumName(quantKindNames, k) }
func (k MatchKind) String() string { return enumName(matchKindNames, k) }
func (k EqKind) String() string { return enumName(eqKindNames, k) }
func (k EntityKind) String() string { return enumName(entityKindNames, k) }
func (k DepKind) String() string { return enumName(depKindNames, k) }

func (k QuantKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
func (k MatchKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
func (k EqKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
func (k EntityKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
func (k DepKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *QuantKind) UnmarshalText(b []byte) error { return parseEnum(quantKindNames, b, k) }
func (k *MatchKind) UnmarshalText(b []byte) error { return parseEnum(matchKindNames, b, k) }
func (k *EqKind) UnmarshalText(b []byte) error { return parseEnum(eqKindNames, b, k) }
func (k *EntityKind) UnmarshalText(b []byte) error { return parseEnum(entityKindNames, b, k) }
func (k *DepKind) UnmarshalText(b []byte) error { return parseEnum(depKindNames, b, k) }

func enumName[K comparable](names map[K]string, k K) string {
	if name, ok := names[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%v)", k)
}

func parseEnum[K comparable](names map[K]string, b []byte, out *K) error {
	s := string(b)
	for k, name := range names {
		if name == s {
			*out = k
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// =============================================================================
// RECORDS
// =============================================================================

// Quantifier is one quantified formula declared in the trace.
type Quantifier struct {
	Kind    QuantKind `json:"kind" yaml:"kind"`
	Name    string    `json:"name,omitempty" yaml:"name,omitempty"`
	ID      int       `json:"id,omitempty" yaml:"id,omitempty"`
	NumVars int       `json:"num_vars,omitempty" yaml:"num_vars,omitempty"`
	Body    *TermIdx  `json:"body,omitempty" yaml:"body,omitempty"`
}

// ParseQuantName classifies a quantifier identifier as printed by Z3.
// "<null>" is a lambda, "name!7" is unnamed with id 7, anything else is named.
func ParseQuantName(s string) Quantifier {
	if s == "<null>" {
		return Quantifier{Kind: QuantLambda}
	}
	if name, idStr, ok := strings.Cut(s, "!"); ok {
		if id, err := strconv.Atoi(idStr); err == nil {
			return Quantifier{Kind: QuantUnnamed, Name: name, ID: id}
		}
		return Quantifier{Kind: QuantNamed, Name: name}
	}
	return Quantifier{Kind: QuantNamed, Name: s}
}

// IsDiscovered reports whether this is a theory-solving pseudo-quantifier.
func (q Quantifier) IsDiscovered() bool {
	return q.Kind == QuantOther
}

// DisplayName renders the quantifier's name under the given display settings.
func (q Quantifier) DisplayName(cfg DisplayConfig) string {
	switch q.Kind {
	case QuantLambda:
		return "<null>"
	case QuantUnnamed:
		if cfg.HideUnnamedIDs {
			return q.Name
		}
		return q.Name + "!" + strconv.Itoa(q.ID)
	default:
		return q.Name
	}
}

// Term is a node of the solver's term DAG.
type Term struct {
	Name string    `json:"name" yaml:"name"`
	Args []TermIdx `json:"args,omitempty" yaml:"args,omitempty"`
}

// BlamedTerm is a term a match was blamed on, or an equality pair when Eq is set.
type BlamedTerm struct {
	Term TermIdx  `json:"term" yaml:"term"`
	Eq   *TermIdx `json:"eq,omitempty" yaml:"eq,omitempty"`
}

// Match is the trigger event that led to an instantiation.
type Match struct {
	Kind    MatchKind    `json:"kind" yaml:"kind"`
	Quant   *QuantIdx    `json:"quant,omitempty" yaml:"quant,omitempty"`
	Pattern *TermIdx     `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Blamed  []BlamedTerm `json:"blamed,omitempty" yaml:"blamed,omitempty"`
}

// IsDiscovered reports whether the match came from theory reasoning rather
// than a pattern trigger.
func (m Match) IsDiscovered() bool {
	return m.Kind != MatchQuantifier
}

// Instantiation is one firing of a quantifier.
type Instantiation struct {
	Match       MatchIdx    `json:"match" yaml:"match"`
	LineNo      int         `json:"line_no" yaml:"line_no"`
	MatchLineNo int         `json:"match_line_no,omitempty" yaml:"match_line_no,omitempty"`
	Fingerprint Fingerprint `json:"fingerprint" yaml:"fingerprint"`
	Cost        float64     `json:"cost" yaml:"cost"`
	Generation  *uint32     `json:"generation,omitempty" yaml:"generation,omitempty"`
	Result      *TermIdx    `json:"result,omitempty" yaml:"result,omitempty"`
	Yields      []ENodeIdx  `json:"yields,omitempty" yaml:"yields,omitempty"`
}

// ENode is a term occurrence in the e-graph.
type ENode struct {
	Term      TermIdx  `json:"term" yaml:"term"`
	CreatedBy *InstIdx `json:"created_by,omitempty" yaml:"created_by,omitempty"`
}

// Equality is an equality explanation between two e-nodes.
type Equality struct {
	Kind EqKind   `json:"kind" yaml:"kind"`
	From ENodeIdx `json:"from" yaml:"from"`
	To   ENodeIdx `json:"to" yaml:"to"`
}

// Ref addresses one entity of the store. The zero value is the "none" sentinel.
type Ref struct {
	Kind EntityKind `json:"kind" yaml:"kind"`
	Idx  uint32     `json:"idx" yaml:"idx"`
}

// InstRef returns a Ref to an instantiation.
func InstRef(i InstIdx) Ref { return Ref{Kind: EntityInstantiation, Idx: uint32(i)} }

// ENodeRef returns a Ref to an e-node.
func ENodeRef(e ENodeIdx) Ref { return Ref{Kind: EntityENode, Idx: uint32(e)} }

// EqRef returns a Ref to an equality of the given kind.
func EqRef(kind EqKind, e EqIdx) Ref {
	if kind == EqTrans {
		return Ref{Kind: EntityTransEquality, Idx: uint32(e)}
	}
	return Ref{Kind: EntityGivenEquality, Idx: uint32(e)}
}

// IsNone reports whether r is the "no predecessor" sentinel.
func (r Ref) IsNone() bool { return r.Kind == EntityNone }

func (r Ref) String() string {
	if r.IsNone() {
		return "none"
	}
	return fmt.Sprintf("%s#%d", r.Kind, r.Idx)
}

// Dependency records one causal link between two entities.
//
// From is the none sentinel for entities with no predecessor. To is nil for
// dependencies that were recorded but not accepted into the graph. Quant and
// QuantDiscovered describe the target when it is an instantiation; a nil
// Quant means "discovered without a quantifier".
type Dependency struct {
	From            Ref       `json:"from" yaml:"from"`
	To              *Ref      `json:"to,omitempty" yaml:"to,omitempty"`
	Kind            DepKind   `json:"kind" yaml:"kind"`
	TriggerPos      int       `json:"trigger_pos,omitempty" yaml:"trigger_pos,omitempty"`
	EqOrder         int       `json:"eq_order,omitempty" yaml:"eq_order,omitempty"`
	Quant           *QuantIdx `json:"quant,omitempty" yaml:"quant,omitempty"`
	QuantDiscovered bool      `json:"quant_discovered,omitempty" yaml:"quant_discovered,omitempty"`
}

// DisplayConfig controls how names are rendered for display and matching.
type DisplayConfig struct {
	// HideUnnamedIDs prints solver-named quantifiers without their "!id" suffix.
	HideUnnamedIDs bool `json:"hide_unnamed_ids" yaml:"hide_unnamed_ids"`

	// MaxTermDepth bounds term pretty-printing. Zero means unbounded.
	MaxTermDepth int `json:"max_term_depth" yaml:"max_term_depth" validate:"gte=0"`
}
