// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns one raw instantiation graph and the configuration
// that derives its visible snapshot.
//
// A Session is the only mutation surface: ApplyChain, Reset, Undo and
// SetDisablers each leave the session either fully updated with a new
// snapshot generation, or unchanged.
package session

import "errors"

var (
	// ErrNothingToUndo is returned by Undo before any chain replaced the
	// initial one.
	ErrNothingToUndo = errors.New("no previous filter chain")

	// ErrBuildFailed wraps raw graph construction failures in New.
	ErrBuildFailed = errors.New("failed to build instantiation graph")
)
