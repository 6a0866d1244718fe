package telnet

import (
	"io"
	"net"
	"strings"
	"time"
)

// Telnet protocol IAC (Interpret As Command) constants.
const (
	IAC  = 255 // Interpret As Command - starts telnet command sequence
	DONT = 254 // Request peer to disable an option
	DO   = 253 // Request peer to enable an option
	WONT = 252 // Refuse to enable an option
	WILL = 251 // Agree to enable an option
	SB   = 250 // Subnegotiation begins
	SE   = 240 // Subnegotiation ends

	OptEcho             = 1
	OptSuppressGoAhead  = 3
	iacSequenceLen      = 3
	printableASCIIFirst = 32
	printableASCIILast  = 126
)

// negotiationSequence is sent before any other output: WILL ECHO followed by
// WILL SUPPRESS-GO-AHEAD.
var negotiationSequence = []byte{
	IAC, WILL, OptEcho,
	IAC, WILL, OptSuppressGoAhead,
}

// NegotiationBytes returns a copy of the on-connect negotiation sequence.
func NegotiationBytes() []byte {
	out := make([]byte, len(negotiationSequence))
	copy(out, negotiationSequence)
	return out
}

// Negotiate writes the option negotiation to w. When w is a net.Conn the write
// is bounded by deadline so a stalled client cannot wedge the session.
func Negotiate(w io.Writer, deadline time.Duration) error {
	if conn, ok := w.(net.Conn); ok && deadline > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(deadline)); err != nil {
			return err
		}
		defer conn.SetWriteDeadline(time.Time{})
	}
	for i := 0; i < len(negotiationSequence); i += iacSequenceLen {
		if _, err := w.Write(negotiationSequence[i : i+iacSequenceLen]); err != nil {
			return err
		}
	}
	return nil
}

// CleanInput strips telnet command triplets and non-printable bytes from a raw
// chunk and trims surrounding whitespace. An IAC with fewer than two bytes
// after it is not skipped as a triplet; the IAC byte itself is dropped as
// non-printable and the remaining bytes are judged individually.
func CleanInput(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == IAC && i+2 < len(raw) {
			i += 2
			continue
		}
		if keepInputByte(c) {
			b.WriteByte(c)
		}
	}
	return strings.TrimSpace(b.String())
}

func keepInputByte(c byte) bool {
	switch {
	case c >= printableASCIIFirst && c <= printableASCIILast:
		return true
	case c == '\t', c == '\r', c == '\n':
		return true
	default:
		return false
	}
}

// LineFramer assembles client input into lines across arbitrary read
// boundaries. A line ends at CR or LF; a LF or NUL directly after a CR is
// consumed with it (RFC 854), even when it arrives in the next read. IAC
// triplets are stepped over while scanning so option bytes never terminate a
// line, and an IAC split across reads waits for its remaining bytes. A partial
// line that grows past limit is emitted as-is.
type LineFramer struct {
	pending []byte
	skipEOL bool
	limit   int
}

// NewLineFramer returns a framer that flushes partial lines longer than limit
// bytes. A non-positive limit disables the flush.
func NewLineFramer(limit int) *LineFramer {
	return &LineFramer{limit: limit}
}

// Feed appends chunk and returns the raw bytes of every completed line.
// Callers pass each line to CleanInput.
func (f *LineFramer) Feed(chunk []byte) [][]byte {
	var lines [][]byte
	if len(chunk) > 0 && f.skipEOL {
		f.skipEOL = false
		if chunk[0] == '\n' || chunk[0] == 0 {
			chunk = chunk[1:]
		}
	}
	f.pending = append(f.pending, chunk...)
	buf := f.pending
	start := 0
	for i := 0; i < len(buf); i++ {
		c := buf[i]
		if c == IAC {
			if i+2 >= len(buf) {
				break
			}
			i += 2
			continue
		}
		if c != '\r' && c != '\n' {
			continue
		}
		lines = append(lines, cloneBytes(buf[start:i]))
		if c == '\r' {
			if i+1 < len(buf) {
				if next := buf[i+1]; next == '\n' || next == 0 {
					i++
				}
			} else {
				f.skipEOL = true
			}
		}
		start = i + 1
	}
	f.pending = append(f.pending[:0], buf[start:]...)
	if f.limit > 0 && len(f.pending) > f.limit {
		lines = append(lines, cloneBytes(f.pending))
		f.pending = f.pending[:0]
	}
	return lines
}

// Pending returns the number of buffered bytes without a terminator yet.
func (f *LineFramer) Pending() int {
	return len(f.pending)
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
