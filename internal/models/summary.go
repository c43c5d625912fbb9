// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package models

// DefaultHistoryLimit caps the shuffle history when no user-configured
// limit is present.
const DefaultHistoryLimit = 50

// Summary is the cached per-user aggregate derived from the event store.
//
// Everything except ShuffleState.Config must be exactly reproducible by
// replaying the classifier and summary-builder rules over the full event
// store from empty state. Config is pure user preference and survives any
// rebuild untouched.
type Summary struct {
	TotalPlayTime           float64 `json:"total_play_time"`
	TotalSessions           int     `json:"total_sessions"`
	TotalForegroundPlaytime float64 `json:"total_foreground_playtime"`
	TotalBackgroundPlaytime float64 `json:"total_background_playtime"`

	TotalSongsPlayed int `json:"total_songs_played"`
	// Kept as a separate counter for compatibility with older consumers,
	// incremented under the same ratio>0.25 condition as TotalSongsPlayed.
	TotalSongsPlayedRatioOver025 int `json:"total_songs_played_ratio_over_025"`
	TotalSkipped                 int `json:"total_skipped"`

	PlatformUsage map[string]int `json:"platform_usage"`
	ShuffleState  ShuffleState   `json:"shuffle_state"`
}

// NewSummary returns an empty summary with initialized maps.
func NewSummary() *Summary {
	return &Summary{
		PlatformUsage: make(map[string]int),
		ShuffleState: ShuffleState{
			Config:  make(ShuffleConfig),
			History: []HistoryEntry{},
		},
	}
}

// ShuffleState carries the user's shuffle preferences and the recency
// history consumed by the downstream shuffle selector.
type ShuffleState struct {
	Config  ShuffleConfig  `json:"config"`
	History []HistoryEntry `json:"history"`
}

// HistoryEntry records the most recent meaningful play of one song.
// The history holds at most one entry per filename, newest first.
type HistoryEntry struct {
	Filename  string  `json:"filename"`
	Timestamp float64 `json:"timestamp"`
}

// ShuffleConfig is an opaque bag of user-set shuffle knobs. The engine never
// derives or rewrites it; the only key it reads is history_limit.
type ShuffleConfig map[string]interface{}

// HistoryLimit extracts the configured history cap, falling back to def.
// JSON round-trips store numbers as float64, so both numeric kinds are
// accepted.
func (c ShuffleConfig) HistoryLimit(def int) int {
	v, ok := c["history_limit"]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		if n > 0 {
			return int(n)
		}
	case int:
		if n > 0 {
			return n
		}
	case int64:
		if n > 0 {
			return int(n)
		}
	}
	return def
}

// Clone returns a deep copy so callers can hand summaries out without
// exposing the engine's cached maps and slices to mutation.
func (s *Summary) Clone() *Summary {
	if s == nil {
		return nil
	}
	out := *s
	out.PlatformUsage = make(map[string]int, len(s.PlatformUsage))
	for k, v := range s.PlatformUsage {
		out.PlatformUsage[k] = v
	}
	out.ShuffleState.Config = make(ShuffleConfig, len(s.ShuffleState.Config))
	for k, v := range s.ShuffleState.Config {
		out.ShuffleState.Config[k] = v
	}
	out.ShuffleState.History = append([]HistoryEntry(nil), s.ShuffleState.History...)
	return &out
}
