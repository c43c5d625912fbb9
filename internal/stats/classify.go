// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package stats

import "github.com/replaysrv/replay/internal/models"

// Reclassify applies the tail-completion rule and derives the play ratio.
// It is the single classification routine shared by the flush path, the
// snapshot merge and the rebuild tool, so all three reconcile identically.
//
// A playback ending within tailWindow seconds of the track end is stored as
// complete regardless of what the client reported: clients routinely emit
// "skip" for the track-end auto-advance. Favorite markers are bookkeeping,
// not playback, and are never reclassified.
//
// The ratio is derived after the type decision and rounded to 2 decimals;
// an unresolved track length degrades it to 0 rather than failing the event.
func Reclassify(eventType string, durationPlayed, totalLength, tailWindow float64) (string, float64) {
	if eventType != models.EventFavorite && totalLength > 0 &&
		totalLength-durationPlayed <= tailWindow {
		eventType = models.EventComplete
	}

	ratio := 0.0
	if totalLength > 0 {
		ratio = round2(durationPlayed / totalLength)
	}
	return eventType, ratio
}
