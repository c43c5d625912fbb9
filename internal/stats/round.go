// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package stats

import "math"

// round2 rounds to 2 decimal places. Every numeric field is rounded at
// write time, and every accumulation re-rounds, so flush, merge and rebuild
// derive bit-identical summaries from the same rows.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// round2p rounds an optional duration in place, preserving nil.
func round2p(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round2(*v)
	return &r
}
