// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package facts holds the fact database extracted from a Z3 trace.
//
// The fact store is produced by an external log parser and consumed here as
// an immutable, already-validated database. Every collection is addressed by
// a dense integer index; lookups are O(1).
//
// # Ownership Model
//
// A Store is treated as read-only once handed to the graph builder. Callers
// MUST NOT append to or mutate its slices while a graph built from it is in
// use.
//
// # Serialised Form
//
// The parser's output is consumed as a JSON or YAML document. JSON dumps may
// be zstd-compressed (".zst" suffix). See Load and Decode.
package facts

import "errors"

// Sentinel errors for fact store operations.
var (
	// ErrDanglingReference is returned when a dependency or record refers to
	// an index outside the store's collections.
	ErrDanglingReference = errors.New("dangling fact reference")

	// ErrUnknownFormat is returned when a dump's format cannot be determined.
	ErrUnknownFormat = errors.New("unknown fact store format")

	// ErrInvalidFingerprint is returned when a fingerprint string is not a
	// 64-bit hexadecimal value.
	ErrInvalidFingerprint = errors.New("invalid fingerprint")

	// ErrUnknownKind is returned when decoding an unrecognised enum name.
	ErrUnknownKind = errors.New("unknown kind")
)
