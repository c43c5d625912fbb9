// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeFlusher struct {
	mu        sync.Mutex
	flushes   int
	lastFlush time.Time
	fail      bool
}

func (f *fakeFlusher) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	if f.fail {
		return errors.New("store down")
	}
	f.lastFlush = time.Now()
	return nil
}

func (f *fakeFlusher) LastFlush() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFlush
}

func (f *fakeFlusher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushes
}

func TestFlushServicePeriodicCycles(t *testing.T) {
	f := &fakeFlusher{lastFlush: time.Now()}
	svc := NewFlushService(f, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Serve returned %v", err)
	}

	// ~7 intervals fit in the window; allow generous scheduling slack.
	if n := f.count(); n < 3 {
		t.Errorf("flush cycles = %d, want at least 3", n)
	}
}

func TestFlushServiceExternalFlushPostpones(t *testing.T) {
	f := &fakeFlusher{lastFlush: time.Now()}
	svc := NewFlushService(f, 60*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = svc.Serve(ctx)
		close(done)
	}()

	// Keep simulating external flushes (summary reads) faster than the
	// interval; the periodic flusher should never fire.
	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		f.mu.Lock()
		f.lastFlush = time.Now()
		f.mu.Unlock()
	}
	cancel()
	<-done

	if n := f.count(); n != 0 {
		t.Errorf("periodic flusher fired %d times despite fresh external flushes", n)
	}
}

func TestFlushServiceBacksOffAfterFailure(t *testing.T) {
	f := &fakeFlusher{fail: true} // zero lastFlush: due immediately
	svc := NewFlushService(f, 80*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_ = svc.Serve(ctx)

	// Without the backoff a failing flush would spin thousands of times.
	if n := f.count(); n < 1 || n > 3 {
		t.Errorf("flush attempts = %d, want 1-3 (failure backoff)", n)
	}
}
