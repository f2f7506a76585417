// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rdns

import (
	"context"
	"sync"
	"time"

	clocksmith "github.com/jedisct1/go-clocksmith"

	"github.com/celzero/rethinkblock/intra/core"
	"github.com/celzero/rethinkblock/intra/log"
)

// pollInterval is the waiter poll cadence of spec §4.F.
const pollInterval = 50 * time.Millisecond

// buildErrorHistory bounds how many past build failures a Wrapper
// retains for diagnostics.
const buildErrorHistory = 8

// wrapperState is spec §4.F's three-state machine.
type wrapperState int

const (
	stateEmpty wrapperState = iota
	stateBuilding
	stateReady
)

// Wrapper is spec §4.F's BlocklistWrapper: at most one build in
// flight at a time, with poll/timeout waiters and a recorded last
// build error. It owns no network code itself; it drives a Loader.
type Wrapper struct {
	loader          *Loader
	downloadTimeout time.Duration

	mu        sync.Mutex
	state     wrapperState
	startTime time.Time
	lastErr   error
	barrier   *core.Barrier

	filter      *core.Volatile[*Filter]
	buildErrors *core.Ring[error]
}

// NewWrapper returns an Empty wrapper bound to loader, with
// downloadTimeout bounding how long a waiter polls for an in-flight
// build. The build itself is not bounded by downloadTimeout; it runs
// under the context of the caller that started it.
func NewWrapper(loader *Loader, downloadTimeout time.Duration) *Wrapper {
	return &Wrapper{
		loader:          loader,
		downloadTimeout: downloadTimeout,
		barrier:         core.NewBarrier(),
		filter:          core.NewVolatile[*Filter](nil),
		buildErrors:     core.NewRing[error](buildErrorHistory),
	}
}

const barrierKey = "rdns-build"

// Get implements spec §4.F's get(): returns the ready Filter, kicking
// off a build if the wrapper is Empty and waiting (polling) if a
// build is already in flight. Waiters never duplicate the network
// work; at most one Loader.Load call is ever in flight at a time.
func (w *Wrapper) Get(ctx context.Context, src Source) (*Filter, error) {
	w.mu.Lock()
	switch w.state {
	case stateReady:
		w.mu.Unlock()
		return w.filter.Load(), nil
	case stateBuilding:
		w.mu.Unlock()
		return w.wait(ctx)
	default: // stateEmpty
		w.state = stateBuilding
		w.startTime = time.Now()
		w.mu.Unlock()
		return w.build(ctx, src)
	}
}

// build runs the actual loader.Load inside the shared barrier. Get's
// Empty->Building transition happens under w.mu, so only one caller
// reaches build at a time; the barrier is a second guard against a
// duplicate Load, and is forgotten once the call returns.
func (w *Wrapper) build(ctx context.Context, src Source) (*Filter, error) {
	v := w.barrier.Do(barrierKey, func() (any, error) {
		f, err := w.loader.Load(ctx, src)
		return f, err
	})
	w.barrier.Forget(barrierKey)

	w.mu.Lock()
	defer w.mu.Unlock()
	if v.Err != nil {
		w.state = stateEmpty
		w.lastErr = v.Err
		w.buildErrors.Push(v.Err)
		log.E("rdns: build failed: %v", v.Err)
		return nil, v.Err
	}

	f, _ := v.Val.(*Filter)
	w.filter.Store(f)
	w.state = stateReady
	w.lastErr = nil
	return f, nil
}

// wait implements the Building->Ready polling loop, bounded by
// downloadTimeout and ctx.
func (w *Wrapper) wait(ctx context.Context) (*Filter, error) {
	deadline := time.Now().Add(w.downloadTimeout)
	for {
		w.mu.Lock()
		state, err := w.state, w.lastErr
		w.mu.Unlock()

		switch state {
		case stateReady:
			return w.filter.Load(), nil
		case stateEmpty:
			if err != nil {
				return nil, err
			}
			return nil, ErrNotReady
		}

		if time.Now().After(deadline) {
			return nil, ErrBuildTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		clocksmith.Sleep(pollInterval)
	}
}

// Ready reports whether a filter is currently available without
// blocking.
func (w *Wrapper) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == stateReady
}

// LastError returns the most recently recorded build failure, if any.
func (w *Wrapper) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// RecentBuildErrors returns up to buildErrorHistory of the most recent
// build failures, oldest first, for operator diagnostics.
func (w *Wrapper) RecentBuildErrors() []error {
	n := w.buildErrors.Len()
	errs := make([]error, 0, n)
	for i := 0; i < n; i++ {
		errs = append(errs, w.buildErrors.Pop())
	}
	for _, e := range errs {
		w.buildErrors.Push(e)
	}
	return errs
}

// ForceRebuild transitions a Ready wrapper back to Empty so the next
// Get triggers a fresh build. Spec §4.F leaves the Ready->Building
// forced-rebuild transition optional ("implementers may keep Ready
// terminal"); this repo keeps Ready terminal by default and exposes
// ForceRebuild only for an operator-driven rebuild signal, never a
// background timer.
func (w *Wrapper) ForceRebuild() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == stateReady {
		w.state = stateEmpty
	}
}
