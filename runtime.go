// This file is part of https://github.com/racingmars/tn3270e/
// Copyright 2020, 2025 by Matthew R. Wilson, licensed under the MIT license.
// See LICENSE in the project root for license information.

package tn3270e

import (
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// Logger is the structured logging contract every component in this engine
// writes through, instead of the teacher's package-level `Debug io.Writer` /
// `debugf` (util.go). Grounded on doismellburning-samoyed's use of
// github.com/charmbracelet/log for its own device/runtime logging.
type Logger = *charmlog.Logger

// NewLogger returns a charmbracelet/log logger writing to w at the given
// level. Pass io.Discard for a silent logger (the teacher's default when
// Debug == nil).
func NewLogger(w io.Writer, level charmlog.Level) Logger {
	l := charmlog.NewWithOptions(w, charmlog.Options{Level: level, ReportTimestamp: true})
	return l
}

func discardLogger() Logger {
	return NewLogger(io.Discard, charmlog.InfoLevel)
}

// Runtime is the single-threaded cooperative driver every Session borrows
// (spec.md §9's "explicit Runtime value" design note, replacing the
// original organization's module-level event-loop/readiness-event
// singletons). One Runtime may be shared across several Sessions; each
// Session still owns its own transport exclusively.
type Runtime struct {
	Log Logger

	mu      sync.Mutex
	ready   bool
	waiting bool
	waitCh  chan struct{}

	sigCh  chan os.Signal
	sigSet bool
}

// NewRuntime creates a Runtime. log may be nil, in which case a discarding
// logger is used.
func NewRuntime(log Logger) *Runtime {
	if log == nil {
		log = discardLogger()
	}
	return &Runtime{Log: log, waitCh: make(chan struct{}, 1)}
}

// Wake sets the readiness event, unblocking any in-progress Wait. It is
// safe to call from I/O completion callbacks or from another goroutine
// (external wakers), per spec.md §5/§4.11.
func (r *Runtime) Wake() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = true
	select {
	case r.waitCh <- struct{}{}:
	default:
	}
}

// Wait blocks until the readiness event is set or timeout elapses, then
// clears the event and returns whether it fired (false on timeout). Nested
// Wait calls are rejected with ErrProtocolViolation-shaped usage error, per
// spec.md §4.11 ("nested wait calls are rejected").
func (r *Runtime) Wait(timeout time.Duration) (bool, error) {
	r.mu.Lock()
	if r.waiting {
		r.mu.Unlock()
		return false, newError(ErrProtocolViolation, "nested wait is not allowed")
	}
	if r.ready {
		r.ready = false
		r.mu.Unlock()
		return true, nil
	}
	r.waiting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.waiting = false
		r.mu.Unlock()
	}()

	var timer *time.Timer
	var timerCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		timerCh = timer.C
		defer timer.Stop()
	}

	select {
	case <-r.waitCh:
		r.mu.Lock()
		r.ready = false
		r.mu.Unlock()
		return true, nil
	case <-timerCh:
		return false, nil
	}
}

// WatchSignals arranges for SIGWINCH and SIGTSTP (POSIX terminal resize and
// suspend signals, per spec.md §4.11) to call Wake. Signal constants come
// from golang.org/x/sys/unix rather than hand-rolled syscall numbers
// (grounded on doismellburning-samoyed's use of the same package for
// low-level POSIX signal/line handling). Handlers only ever call Wake; they
// never mutate session state directly, per spec.md §5.
func (r *Runtime) WatchSignals() {
	r.mu.Lock()
	if r.sigSet {
		r.mu.Unlock()
		return
	}
	r.sigSet = true
	r.sigCh = make(chan os.Signal, 4)
	r.mu.Unlock()

	signal.Notify(r.sigCh, unix.SIGWINCH, unix.SIGTSTP)
	go func() {
		for range r.sigCh {
			r.Wake()
		}
	}()
}

// StopWatchingSignals undoes WatchSignals.
func (r *Runtime) StopWatchingSignals() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sigSet {
		return
	}
	signal.Stop(r.sigCh)
	close(r.sigCh)
	r.sigSet = false
}
