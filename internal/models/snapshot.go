// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package models

// Snapshot is another device's copy of a user's session/event rows and,
// optionally, its derived summary. Snapshots are merged additively: sessions
// and events only ever gain rows, counters are never accepted directly.
type Snapshot struct {
	// Replace requests wholesale replacement of the server-side store.
	// Always rejected at the boundary; only the additive merge path exists.
	Replace bool `json:"replace,omitempty"`

	Sessions []PlaySession `json:"sessions"`
	Events   []PlayEvent   `json:"events"`
	Summary  *Summary      `json:"summary,omitempty"`
}

// MergeResult reports what a snapshot merge accepted and skipped.
type MergeResult struct {
	SessionsAdded     int `json:"sessions_added"`
	SessionsDuplicate int `json:"sessions_duplicate"`
	EventsAdded       int `json:"events_added"`
	EventsDuplicate   int `json:"events_duplicate"`
	// Reclassified counts foreign events whose type was flipped by the
	// classifier before insert.
	Reclassified int `json:"reclassified"`
}
