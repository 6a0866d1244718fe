package telnet

import (
	"sort"
	"sync/atomic"
	"time"
)

// LatencySnapshot summarizes the most recent samples of a latencyWindow.
type LatencySnapshot struct {
	P50 time.Duration
	P99 time.Duration
	Max time.Duration
	N   uint64
}

// latencyWindow keeps the last len(slots) samples in a lock-free ring. Every
// session writes into the same window; unused slots hold -1.
type latencyWindow struct {
	slots []atomic.Int64
	next  atomic.Uint64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = 512
	}
	w := &latencyWindow{slots: make([]atomic.Int64, size)}
	for i := range w.slots {
		w.slots[i].Store(-1)
	}
	return w
}

// Observe records d, clamping negative durations to zero.
func (w *latencyWindow) Observe(d time.Duration) {
	if w == nil || len(w.slots) == 0 {
		return
	}
	if d < 0 {
		d = 0
	}
	idx := (w.next.Add(1) - 1) % uint64(len(w.slots))
	w.slots[idx].Store(d.Nanoseconds())
}

// Snapshot sorts a copy of the filled slots and reads percentiles from it.
func (w *latencyWindow) Snapshot() LatencySnapshot {
	if w == nil {
		return LatencySnapshot{}
	}
	values := make([]int64, 0, len(w.slots))
	for i := range w.slots {
		if v := w.slots[i].Load(); v >= 0 {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return LatencySnapshot{}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return LatencySnapshot{
		P50: time.Duration(values[len(values)/2]),
		P99: time.Duration(values[int(float64(len(values)-1)*0.99)]),
		Max: time.Duration(values[len(values)-1]),
		N:   uint64(len(values)),
	}
}
