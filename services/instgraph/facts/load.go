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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// Format is the serialisation of a fact store dump.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// compressedSuffix marks a zstd-compressed dump.
const compressedSuffix = ".zst"

// FormatFromPath infers the dump format from a file name, ignoring a
// trailing ".zst".
func FormatFromPath(path string) (Format, bool, error) {
	compressed := strings.HasSuffix(path, compressedSuffix)
	base := strings.TrimSuffix(path, compressedSuffix)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".json":
		return FormatJSON, compressed, nil
	case ".yaml", ".yml":
		return FormatYAML, compressed, nil
	default:
		return "", compressed, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Load reads a fact store dump from disk.
//
// Description:
//
//	The format is inferred from the extension (.json, .yaml, .yml), and a
//	trailing .zst selects zstd decompression. The loaded store is not
//	validated; call Store.Validate before building a graph from untrusted
//	input.
//
// Inputs:
//   - path: Path to the dump.
//
// Outputs:
//   - *Store: The decoded store. Never nil on success.
//   - error: ErrUnknownFormat, an I/O error, or a decode error.
func Load(path string) (*Store, error) {
	format, compressed, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fact store: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		decoder, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer decoder.Close()
		r = decoder
	}

	store, err := Decode(r, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}

// Decode reads a fact store in the given format.
func Decode(r io.Reader, format Format) (*Store, error) {
	var store Store
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&store); err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&store); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &store, nil
}

// Encode writes the store in the given format, zstd-compressed if requested.
func Encode(w io.Writer, store *Store, format Format, compress bool) (err error) {
	if compress {
		encoder, nerr := zstd.NewWriter(w)
		if nerr != nil {
			return fmt.Errorf("creating zstd encoder: %w", nerr)
		}
		defer func() {
			if cerr := encoder.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing zstd encoder: %w", cerr)
			}
		}()
		w = encoder
	}

	switch format {
	case FormatJSON:
		return json.NewEncoder(w).Encode(store)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(store); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Save writes the store to path, choosing the format from its extension.
func Save(path string, store *Store) error {
	format, compressed, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating fact store: %w", err)
	}
	if err := Encode(f, store, format, compressed); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
