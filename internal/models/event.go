// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

// Package models defines the durable row types, wire payloads and derived
// aggregate types shared across the Replay engine.
package models

// Event types stored durably. The stored type is the reconciled type: the
// tail-completion rule may override what the client reported.
const (
	EventListen   = "listen"
	EventSkip     = "skip"
	EventComplete = "complete"
	EventFavorite = "favorite"
)

// PlayEvent is one reported interval of playback, after coalescing and
// reclassification. Rows are append-only; the only mutation ever applied is
// a retroactive EventType flip during rebuild.
//
// All numeric fields are rounded to 2 decimals at write time so re-deriving
// ratios never drifts between flush, merge and rebuild.
type PlayEvent struct {
	ID           string  `json:"id"`
	SessionID    string  `json:"session_id"`
	SongFilename string  `json:"song_filename"`
	EventType    string  `json:"event_type"`
	Timestamp    float64 `json:"timestamp"`

	DurationPlayed float64 `json:"duration_played"`
	// TotalLength is resolved via the metadata service, never trusted from
	// the client. 0 means the lookup failed and PlayRatio degrades to 0.
	TotalLength float64 `json:"total_length"`
	PlayRatio   float64 `json:"play_ratio"`

	// Optional app-runtime-state split of DurationPlayed.
	ForegroundDuration *float64 `json:"foreground_duration,omitempty"`
	BackgroundDuration *float64 `json:"background_duration,omitempty"`
}

// PlaySession groups events reported from one continuous app session.
// Created on the first event referencing its ID; start/end times widen as
// events arrive and the platform is fixed by the first non-"unknown" value.
type PlaySession struct {
	ID        string  `json:"id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Platform  string  `json:"platform"`
}

// StatsReport is the client-submitted payload for one playback report.
// It is validated at the ingestion boundary and buffered in memory; nothing
// is persisted until the next flush cycle.
type StatsReport struct {
	SessionID      string  `json:"session_id" validate:"required"`
	SongFilename   string  `json:"song_filename" validate:"required"`
	EventType      string  `json:"event_type" validate:"required,oneof=listen skip complete favorite"`
	Timestamp      float64 `json:"timestamp" validate:"required,gt=0"`
	DurationPlayed float64 `json:"duration_played"`
	Platform       string  `json:"platform,omitempty"`

	ForegroundDuration *float64 `json:"foreground_duration,omitempty"`
	BackgroundDuration *float64 `json:"background_duration,omitempty"`
}
