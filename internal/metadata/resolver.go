// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

// Package metadata resolves song filenames to track durations.
//
// The engine never trusts a client-reported track length; every buffered
// report is resolved through this package. Lookup failure is not an error
// at the pipeline level: it degrades the resolved length to 0, which in turn
// degrades the event's play ratio to 0. Losing an event entirely would be
// worse than mis-ratioing it.
package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/replaysrv/replay/internal/cache"
	"github.com/replaysrv/replay/internal/config"
	"github.com/replaysrv/replay/internal/logging"
)

// Resolver resolves a song filename to its total length in seconds.
// Implementations return 0 (not an error) when the length is unknown.
type Resolver interface {
	ResolveDuration(ctx context.Context, filename string) float64
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, filename string) float64

// ResolveDuration implements Resolver.
func (f ResolverFunc) ResolveDuration(ctx context.Context, filename string) float64 {
	return f(ctx, filename)
}

// Client is an HTTP Resolver for the metadata service, with an LRU duration
// cache in front and a circuit breaker around the remote call. When the
// breaker is open, lookups degrade to 0 immediately instead of queueing
// behind a dead collaborator.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *cache.DurationCache
	breaker *gobreaker.CircuitBreaker[float64]
}

// durationResponse is the lookup service's wire format.
type durationResponse struct {
	Filename        string  `json:"filename"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// NewClient builds a metadata client from configuration.
func NewClient(cfg config.MetadataConfig) *Client {
	settings := gobreaker.Settings{
		Name:     "metadata-resolver",
		Timeout:  cfg.BreakerTimeout,
		Interval: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("metadata breaker state change")
		},
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   cache.NewDurationCache(cfg.CacheSize, cfg.CacheTTL),
		breaker: gobreaker.NewCircuitBreaker[float64](settings),
	}
}

// ResolveDuration implements Resolver. Cache hit, then remote lookup through
// the breaker; any failure yields 0.
func (c *Client) ResolveDuration(ctx context.Context, filename string) float64 {
	if filename == "" {
		return 0
	}
	if seconds, ok := c.cache.Get(filename); ok {
		return seconds
	}
	if c.baseURL == "" {
		return 0
	}

	seconds, err := c.breaker.Execute(func() (float64, error) {
		return c.fetch(ctx, filename)
	})
	if err != nil {
		logging.Warn().Err(err).Str("filename", filename).Msg("duration lookup failed")
		return 0
	}

	c.cache.Add(filename, seconds)
	return seconds
}

// fetch performs the remote lookup.
func (c *Client) fetch(ctx context.Context, filename string) (float64, error) {
	u := fmt.Sprintf("%s/tracks/%s/duration", c.baseURL, url.PathEscape(filename))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build duration request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("duration request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode == http.StatusNotFound {
		// Unknown track is a definitive answer, not a service failure.
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("duration lookup returned status %d", resp.StatusCode)
	}

	var body durationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode duration response: %w", err)
	}
	if body.DurationSeconds < 0 {
		return 0, nil
	}
	return body.DurationSeconds, nil
}
