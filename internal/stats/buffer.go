// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package stats

import (
	"sync"

	"github.com/replaysrv/replay/internal/models"
)

// bufferedReport is one accepted report waiting for the next flush cycle,
// together with its durable-log entry id when a ReportLog is configured.
type bufferedReport struct {
	Report models.StatsReport
	LogID  string
}

// Registry holds the per-user in-memory event buffers. It is the only
// mutable shared state between the ingestion path and the flush coordinator;
// all access goes through its mutex and flush drains via swap-and-clear so
// ingestion never blocks on persistence.
type Registry struct {
	mu      sync.Mutex
	buffers map[string][]bufferedReport
}

// NewRegistry returns an empty buffer registry.
func NewRegistry() *Registry {
	return &Registry{buffers: make(map[string][]bufferedReport)}
}

// Append adds one report to the user's buffer.
func (r *Registry) Append(username string, br bufferedReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffers[username] = append(r.buffers[username], br)
}

// DrainAll atomically takes every non-empty buffer and leaves the registry
// empty. Reports arriving after the swap land in fresh buffers and belong to
// the next cycle.
func (r *Registry) DrainAll() map[string][]bufferedReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	drained := r.buffers
	r.buffers = make(map[string][]bufferedReport)
	return drained
}

// Drain takes one user's buffer, leaving it empty.
func (r *Registry) Drain(username string) []bufferedReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch := r.buffers[username]
	delete(r.buffers, username)
	return batch
}

// Depth returns the total number of buffered reports across all users.
func (r *Registry) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.buffers {
		n += len(b)
	}
	return n
}
