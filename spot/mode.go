package spot

import "sync/atomic"

// ModeSwitch is the process-wide "own spots vs. random spots" flag. It is
// shared by every telnet session: any session may flip it and every generator
// reads it once per spot. Loads and stores are single atomic operations.
type ModeSwitch struct {
	own atomic.Bool
}

// NewModeSwitch returns a switch initialised to own.
func NewModeSwitch(own bool) *ModeSwitch {
	m := &ModeSwitch{}
	m.own.Store(own)
	return m
}

// OwnSpots reports whether generators should produce own-call spots.
func (m *ModeSwitch) OwnSpots() bool {
	if m == nil {
		return false
	}
	return m.own.Load()
}

// SetOwnSpots stores the flag and returns the previous value.
func (m *ModeSwitch) SetOwnSpots(own bool) bool {
	if m == nil {
		return false
	}
	return m.own.Swap(own)
}

// Label returns "own" or "random" for logs.
func (m *ModeSwitch) Label() string {
	if m.OwnSpots() {
		return "own"
	}
	return "random"
}
