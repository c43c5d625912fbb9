// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

// Package api is the HTTP surface of the engine: event ingestion, summary
// reads, explicit flush, snapshot transfer and rebuild, plus health and
// Prometheus metrics.
//
// Every stats endpoint acts on behalf of exactly one user, identified by
// the X-Username header set by the authenticating reverse proxy.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/replaysrv/replay/internal/logging"
	"github.com/replaysrv/replay/internal/models"
	"github.com/replaysrv/replay/internal/stats"
	"github.com/replaysrv/replay/internal/validation"
)

// maxBodyBytes bounds request bodies; snapshots from long-lived devices can
// be large but not unbounded.
const maxBodyBytes = 32 << 20

// usernameHeader carries the authenticated user, set by the fronting proxy.
const usernameHeader = "X-Username"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the engine behind the HTTP surface.
type Handler struct {
	engine *stats.Engine
	pinger Pinger
}

// NewHandler builds the HTTP handler set around one engine. pinger backs the
// readiness probe and may be nil.
func NewHandler(engine *stats.Engine, pinger Pinger) *Handler {
	return &Handler{engine: engine, pinger: pinger}
}

func username(r *http.Request) string {
	return r.Header.Get(usernameHeader)
}

// requireUsername extracts the authenticated user or writes a 400.
func requireUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	u := username(r)
	if u == "" {
		respondError(w, http.StatusBadRequest, "MISSING_USERNAME",
			"X-Username header is required", nil)
		return "", false
	}
	return u, true
}

// RecordEvent accepts one play-event report and buffers it. The report is
// not persisted until the next flush cycle, hence 202 rather than 201.
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	user, ok := requireUsername(w, r)
	if !ok {
		return
	}

	var rep models.StatsReport
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY",
			"request body is not a valid stats report", err)
		return
	}
	if verr := validation.ValidateStruct(&rep); verr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error:    verr.ToAPIError(),
		})
		return
	}

	if err := h.engine.Record(r.Context(), user, rep); err != nil {
		if errors.Is(err, stats.ErrInvalidReport) {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "RECORD_ERROR",
			"failed to buffer report", err)
		return
	}

	respondOK(w, http.StatusAccepted, map[string]interface{}{
		"buffered":     true,
		"buffer_depth": h.engine.BufferDepth(),
	}, started)
}

// GetSummary returns the user's derived summary. The engine flushes first,
// so the response reflects every report accepted before this request.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	user, ok := requireUsername(w, r)
	if !ok {
		return
	}

	sum, err := h.engine.Summary(r.Context(), user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SUMMARY_ERROR",
			"failed to derive summary", err)
		return
	}
	respondOK(w, http.StatusOK, sum, started)
}

// FlushStats forces a flush of the user's buffer, or of every user's with
// ?all=true. Used before shutdown and by the snapshot tooling.
func (h *Handler) FlushStats(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if r.URL.Query().Get("all") == "true" {
		if err := h.engine.Flush(r.Context()); err != nil {
			respondError(w, http.StatusInternalServerError, "FLUSH_ERROR",
				"flush cycle failed", err)
			return
		}
		respondOK(w, http.StatusOK, map[string]interface{}{"flushed": "all"}, started)
		return
	}

	user, ok := requireUsername(w, r)
	if !ok {
		return
	}
	if err := h.engine.FlushUser(r.Context(), user); err != nil {
		respondError(w, http.StatusInternalServerError, "FLUSH_ERROR",
			"flush failed", err)
		return
	}
	respondOK(w, http.StatusOK, map[string]interface{}{"flushed": user}, started)
}

// UploadSnapshot merges another device's snapshot into the user's store.
func (h *Handler) UploadSnapshot(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	user, ok := requireUsername(w, r)
	if !ok {
		return
	}

	var snap models.Snapshot
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY",
			"request body is not a valid snapshot", err)
		return
	}

	res, err := h.engine.MergeSnapshot(r.Context(), user, snap)
	if err != nil {
		if errors.Is(err, stats.ErrReplaceNotAllowed) {
			respondError(w, http.StatusBadRequest, "REPLACE_REJECTED",
				"snapshot replace is not supported, only additive merge", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "MERGE_ERROR",
			"snapshot merge failed", err)
		return
	}

	logging.Info().
		Str("username", sanitizeLogValue(user)).
		Int("events_added", res.EventsAdded).
		Msg("Snapshot upload merged")
	respondOK(w, http.StatusOK, res, started)
}

// DownloadSnapshot exports the user's full store state for another device.
func (h *Handler) DownloadSnapshot(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	user, ok := requireUsername(w, r)
	if !ok {
		return
	}

	snap, err := h.engine.ExportSnapshot(r.Context(), user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "EXPORT_ERROR",
			"snapshot export failed", err)
		return
	}
	respondOK(w, http.StatusOK, snap, started)
}

// Rebuild replays the event store and recomputes summaries: the user's with
// the X-Username header, or every user's with ?all=true.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if r.URL.Query().Get("all") == "true" {
		results, err := h.engine.RebuildAll(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "REBUILD_ERROR",
				"rebuild failed for one or more users", err)
			return
		}
		respondOK(w, http.StatusOK, results, started)
		return
	}

	user, ok := requireUsername(w, r)
	if !ok {
		return
	}
	res, err := h.engine.RebuildUser(r.Context(), user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "REBUILD_ERROR",
			"rebuild failed", err)
		return
	}
	respondOK(w, http.StatusOK, res, started)
}

// Health reports liveness plus the two numbers an operator checks first.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondOK(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"buffer_depth": h.engine.BufferDepth(),
		"last_flush":   h.engine.LastFlush().UTC().Format(time.RFC3339),
	}, time.Now())
}

// HealthLive answers the liveness probe: the process is up and serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondOK(w, http.StatusOK, map[string]interface{}{"status": "alive"}, time.Now())
}

// HealthReady answers the readiness probe: ready means the store responds.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "NOT_READY",
				"store is not reachable", err)
			return
		}
	}
	respondOK(w, http.StatusOK, map[string]interface{}{"status": "ready"}, time.Now())
}
