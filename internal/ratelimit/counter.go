// Package ratelimit throttles repetitive log lines such as accept errors and
// session write failures.
package ratelimit

import (
	"sync/atomic"
	"time"
)

// Throttle admits one event per window and counts the rest. The zero value
// admits every event. It is safe for concurrent use.
type Throttle struct {
	window     time.Duration
	now        func() time.Time
	lastEmit   atomic.Int64
	total      atomic.Uint64
	suppressed atomic.Uint64
}

// NewThrottle returns a Throttle that admits at most one event per window.
func NewThrottle(window time.Duration) *Throttle {
	return &Throttle{window: window}
}

// Allow records one event. When the event is admitted it returns the number
// of events dropped since the previous admitted one.
func (t *Throttle) Allow() (dropped uint64, ok bool) {
	if t == nil {
		return 0, true
	}
	t.total.Add(1)
	if t.window <= 0 {
		return 0, true
	}
	now := t.clock().UnixNano()
	last := t.lastEmit.Load()
	if last != 0 && now-last < t.window.Nanoseconds() {
		t.suppressed.Add(1)
		return 0, false
	}
	if !t.lastEmit.CompareAndSwap(last, now) {
		t.suppressed.Add(1)
		return 0, false
	}
	return t.suppressed.Swap(0), true
}

// Total is the number of events seen, admitted or not.
func (t *Throttle) Total() uint64 {
	if t == nil {
		return 0
	}
	return t.total.Load()
}

func (t *Throttle) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}
