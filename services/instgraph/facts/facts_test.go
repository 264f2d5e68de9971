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
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantName(t *testing.T) {
	tests := []struct {
		in   string
		want Quantifier
	}{
		{"<null>", Quantifier{Kind: QuantLambda}},
		{"prelude_inc", Quantifier{Kind: QuantNamed, Name: "prelude_inc"}},
		{"k!12", Quantifier{Kind: QuantUnnamed, Name: "k", ID: 12}},
		{"k!x", Quantifier{Kind: QuantNamed, Name: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuantName(tt.in))
		})
	}
}

func TestQuantifier_DisplayName(t *testing.T) {
	unnamed := Quantifier{Kind: QuantUnnamed, Name: "k", ID: 3}
	assert.Equal(t, "k!3", unnamed.DisplayName(DisplayConfig{}))
	assert.Equal(t, "k", unnamed.DisplayName(DisplayConfig{HideUnnamedIDs: true}))
	assert.Equal(t, "<null>", Quantifier{Kind: QuantLambda}.DisplayName(DisplayConfig{}))
	assert.Equal(t, "basic#", Quantifier{Kind: QuantOther, Name: "basic#"}.DisplayName(DisplayConfig{}))
	assert.True(t, Quantifier{Kind: QuantOther}.IsDiscovered())
}

func TestParseFingerprint(t *testing.T) {
	f, err := ParseFingerprint("0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(0xdeadbeef), f)
	assert.Equal(t, "0xdeadbeef", f.String())

	f, err = ParseFingerprint("ff")
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(0xff), f)

	for _, bad := range []string{"", "0x", "zz", "0x1ffffffffffffffff"} {
		_, err := ParseFingerprint(bad)
		assert.ErrorIs(t, err, ErrInvalidFingerprint, bad)
	}
}

func sampleStore() *Store {
	q := QuantIdx(0)
	inst := InstRef(0)
	enode := ENodeRef(0)
	inst2 := InstRef(1)
	return &Store{
		Quantifiers: []Quantifier{{Kind: QuantNamed, Name: "q"}},
		Terms:       []Term{{Name: "f", Args: []TermIdx{1}}, {Name: "x"}},
		Matches:     []Match{{Kind: MatchQuantifier, Quant: &q}, {Kind: MatchTheorySolving}},
		Instantiations: []Instantiation{
			{Match: 0, LineNo: 10, Fingerprint: 0xab, Cost: 2, Yields: []ENodeIdx{0}},
			{Match: 1, LineNo: 20, Fingerprint: 0xcd, Cost: 1},
		},
		ENodes: []ENode{{Term: 0}},
		Dependencies: []Dependency{
			{To: &inst, Quant: &q},
			{From: inst, To: &enode, Kind: DepYield},
			{From: enode, To: &inst2, Kind: DepBlame, QuantDiscovered: true},
		},
	}
}

func TestStore_Validate(t *testing.T) {
	store := sampleStore()
	require.NoError(t, store.Validate())

	t.Run("dangling dependency target", func(t *testing.T) {
		s := sampleStore()
		bad := InstRef(9)
		s.Dependencies = append(s.Dependencies, Dependency{From: InstRef(0), To: &bad})
		assert.ErrorIs(t, s.Validate(), ErrDanglingReference)
	})

	t.Run("equality kind mismatch", func(t *testing.T) {
		s := sampleStore()
		s.Equalities = []Equality{{Kind: EqGiven}}
		ref := EqRef(EqTrans, 0)
		s.Dependencies = append(s.Dependencies, Dependency{From: ENodeRef(0), To: &ref})
		assert.ErrorIs(t, s.Validate(), ErrDanglingReference)
	})

	t.Run("instantiation match out of range", func(t *testing.T) {
		s := sampleStore()
		s.Instantiations[1].Match = 7
		assert.ErrorIs(t, s.Validate(), ErrDanglingReference)
	})
}

func TestStore_Lookups(t *testing.T) {
	store := sampleStore()

	m, ok := store.MatchOf(1)
	require.True(t, ok)
	assert.True(t, m.IsDiscovered())

	q := QuantIdx(0)
	assert.Equal(t, "q", store.QuantName(&q, DisplayConfig{}))
	assert.Equal(t, "", store.QuantName(nil, DisplayConfig{}))

	assert.Equal(t, "f(x)", store.TermText(0, DisplayConfig{}))
	assert.Equal(t, "f(...)", store.TermText(0, DisplayConfig{MaxTermDepth: 1}))

	assert.Len(t, store.Truncate(1).Dependencies, 1)
	assert.Len(t, store.Dependencies, 3)
}

func TestLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := sampleStore()

	for _, name := range []string{"trace.json", "trace.yaml", "trace.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Save(path, store))

			loaded, err := Load(path)
			require.NoError(t, err)
			require.NoError(t, loaded.Validate())
			assert.Equal(t, store.Instantiations, loaded.Instantiations)
			assert.Equal(t, store.Dependencies, loaded.Dependencies)
		})
	}
}

func TestLoad_UnknownFormat(t *testing.T) {
	_, err := Load("trace.txt")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Decode(bytes.NewReader(nil), Format("toml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
