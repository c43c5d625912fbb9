// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

// Package metrics exposes the engine's Prometheus collectors. All collectors
// register on the default registry via promauto; the HTTP layer serves them
// at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "replay"

var (
	// EventsBuffered counts reports accepted into the in-memory buffers.
	EventsBuffered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_buffered_total",
		Help:      "Play-event reports accepted into the in-memory buffers.",
	})

	// EventsRejected counts reports refused at the ingestion boundary.
	EventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_rejected_total",
		Help:      "Play-event reports rejected by ingestion validation.",
	})

	// EventsPersisted counts logical events written to the store after
	// coalescing.
	EventsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_persisted_total",
		Help:      "Coalesced logical events written to the event store.",
	})

	// BufferDepth tracks reports currently waiting for a flush cycle.
	BufferDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "buffer_depth",
		Help:      "Reports currently buffered across all users.",
	})

	// FlushCycles counts flush cycles, by outcome.
	FlushCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flush_cycles_total",
		Help:      "Flush cycles run, labelled by outcome.",
	}, []string{"outcome"})

	// FlushDuration observes how long a full flush cycle takes.
	FlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "flush_duration_seconds",
		Help:      "Wall time of a full flush cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// MergeSessions counts snapshot-merge session rows, by disposition.
	MergeSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "merge_sessions_total",
		Help:      "Snapshot-merge session rows, labelled added or duplicate.",
	}, []string{"disposition"})

	// MergeEvents counts snapshot-merge event rows, by disposition.
	MergeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "merge_events_total",
		Help:      "Snapshot-merge event rows, labelled added or duplicate.",
	}, []string{"disposition"})

	// RebuildRuns counts per-user rebuild passes.
	RebuildRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rebuild_runs_total",
		Help:      "Per-user summary rebuild passes completed.",
	})

	// EventsReclassified counts stored events whose type was flipped by the
	// rebuild or merge classifier.
	EventsReclassified = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_reclassified_total",
		Help:      "Stored events retroactively reclassified.",
	})

	// HTTPRequests counts API requests by method, route pattern and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests served, labelled by method, route and status.",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration observes per-route request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "API request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// NotifyDropped counts notification lines dropped by the sink.
	NotifyDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notify_dropped_total",
		Help:      "Notification lines dropped due to backpressure or rate limiting.",
	})
)
