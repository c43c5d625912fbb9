// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package stats

import "errors"

var (
	// ErrInvalidReport rejects a report that fails ingestion validation.
	ErrInvalidReport = errors.New("invalid stats report")

	// ErrReplaceNotAllowed rejects snapshots that request wholesale
	// replacement of the server-side store. Only the additive merge exists.
	ErrReplaceNotAllowed = errors.New("snapshot replace is not supported, only additive merge")
)
