// Package stats tracks per-band spot counters, per-verb command counters and
// session lifecycle totals for the periodic console line and the Prometheus
// endpoint.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Tracker tracks simulator statistics. All methods are safe for concurrent use.
type Tracker struct {
	// counters live in sync.Map + atomic.Uint64 so per-spot increments don't fight over a mutex
	bandCounts     sync.Map // band -> *atomic.Uint64
	commandCounts  sync.Map // verb -> *atomic.Uint64
	ownSpots       atomic.Uint64
	randomSpots    atomic.Uint64
	sessionsOpened atomic.Uint64
	sessionsClosed atomic.Uint64
	sessionsDenied atomic.Uint64
	writeFailures  atomic.Uint64
	bytesSent      atomic.Uint64
	start          atomic.Int64
}

// NewTracker creates a new stats tracker
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// IncrementSpot counts one emitted spot on band.
func (t *Tracker) IncrementSpot(band string, own bool) {
	if t == nil {
		return
	}
	incrementCounter(&t.bandCounts, band)
	if own {
		t.ownSpots.Add(1)
	} else {
		t.randomSpots.Add(1)
	}
}

// IncrementCommand counts one processed verb.
func (t *Tracker) IncrementCommand(verb string) {
	if t == nil {
		return
	}
	incrementCounter(&t.commandCounts, strings.ToLower(verb))
}

// SessionOpened records an accepted connection.
func (t *Tracker) SessionOpened() {
	if t != nil {
		t.sessionsOpened.Add(1)
	}
}

// SessionClosed records a finished session and the bytes it was sent.
func (t *Tracker) SessionClosed(bytesSent uint64) {
	if t == nil {
		return
	}
	t.sessionsClosed.Add(1)
	t.bytesSent.Add(bytesSent)
}

// SessionRejected records a connection refused by the connection limit.
func (t *Tracker) SessionRejected() {
	if t != nil {
		t.sessionsDenied.Add(1)
	}
}

// WriteFailure records a session write error.
func (t *Tracker) WriteFailure() {
	if t != nil {
		t.writeFailures.Add(1)
	}
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Bands          map[string]uint64
	Commands       map[string]uint64
	OwnSpots       uint64
	RandomSpots    uint64
	SessionsOpened uint64
	SessionsClosed uint64
	SessionsDenied uint64
	WriteFailures  uint64
	BytesSent      uint64
	Uptime         time.Duration
}

// ActiveSessions is the number of sessions opened and not yet closed.
func (s Snapshot) ActiveSessions() uint64 {
	if s.SessionsClosed > s.SessionsOpened {
		return 0
	}
	return s.SessionsOpened - s.SessionsClosed
}

// TotalSpots is the sum of own and random spots.
func (s Snapshot) TotalSpots() uint64 {
	return s.OwnSpots + s.RandomSpots
}

// Snapshot copies all counters.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{Bands: map[string]uint64{}, Commands: map[string]uint64{}}
	}
	return Snapshot{
		Bands:          copyCounts(&t.bandCounts),
		Commands:       copyCounts(&t.commandCounts),
		OwnSpots:       t.ownSpots.Load(),
		RandomSpots:    t.randomSpots.Load(),
		SessionsOpened: t.sessionsOpened.Load(),
		SessionsClosed: t.sessionsClosed.Load(),
		SessionsDenied: t.sessionsDenied.Load(),
		WriteFailures:  t.writeFailures.Load(),
		BytesSent:      t.bytesSent.Load(),
		Uptime:         t.GetUptime(),
	}
}

// GetUptime returns how long the tracker has been running
func (t *Tracker) GetUptime() time.Duration {
	start := t.start.Load()
	return time.Since(time.Unix(0, start))
}

// SnapshotLines returns human-readable stats ready for console display. Bands
// are listed in bandOrder; bands missing from it follow in sorted order.
func (t *Tracker) SnapshotLines(bandOrder []string) []string {
	snap := t.Snapshot()
	return []string{
		FormatOrderedCounts("Spots by band", snap.Bands, bandOrder),
		FormatCounts("Commands", snap.Commands),
	}
}

// FormatCounts renders counts as "label: a=1, b=2" with keys sorted.
func FormatCounts(label string, counts map[string]uint64) string {
	return FormatOrderedCounts(label, counts, nil)
}

// FormatOrderedCounts renders counts with the keys of order first, skipping
// those with no count, then any remaining keys sorted.
func FormatOrderedCounts(label string, counts map[string]uint64, order []string) string {
	var builder strings.Builder
	builder.WriteString(label)
	builder.WriteString(": ")
	if len(counts) == 0 {
		builder.WriteString("(none)")
		return builder.String()
	}
	keys := make([]string, 0, len(counts))
	seen := make(map[string]bool, len(order))
	for _, key := range order {
		if _, ok := counts[key]; ok && !seen[key] {
			keys = append(keys, key)
			seen[key] = true
		}
	}
	rest := make([]string, 0, len(counts))
	for key := range counts {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)
	for i, key := range keys {
		if i > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "%s=%d", key, counts[key])
	}
	return builder.String()
}

func copyCounts(m *sync.Map) map[string]uint64 {
	counts := make(map[string]uint64)
	m.Range(func(key, value any) bool {
		counts[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return counts
}

func incrementCounter(m *sync.Map, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	if value, ok := m.Load(key); ok {
		value.(*atomic.Uint64).Add(1)
		return
	}
	counter := &atomic.Uint64{}
	actual, loaded := m.LoadOrStore(key, counter)
	if loaded {
		actual.(*atomic.Uint64).Add(1)
		return
	}
	counter.Add(1)
}
