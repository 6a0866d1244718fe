// Package spot defines the synthetic DX spot, the band table it is drawn from,
// the generator that produces spots for telnet sessions, and the AK1A line
// formatting used on the wire.
package spot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// SpotterSuffix marks the spotter as a skimmer node, as in "W3OA-#".
	SpotterSuffix = "-#"
	// TimestampLayout renders HHMMZ in UTC.
	TimestampLayout = "1504Z"
)

// Spot is one generated announcement. All fields are preformatted strings
// because the spot exists only to be rendered once.
type Spot struct {
	SpotterCall string // Synthetic spotter including the "-#" suffix
	SpottedCall string // Operator call in own mode, random call otherwise
	Frequency   string // kHz with one decimal, e.g. "14043.2"
	Comment     string // "CW 23 dB 31 WPM CQ"
	Timestamp   string // HHMMZ, UTC
	Own         bool   // produced in own-call mode
}

// AK1A layout, matching legacy cluster software:
//
//	DX de W3OA-#:     7031.5  W8KJP        CW 12 dB 22 WPM CQ           1945Z
//
// Spotter+colon is left-justified to 10 columns, followed by one space, the
// frequency right-justified to 7, two spaces, the spotted call left-justified
// to 13, the comment left-justified to 31, then the time.
const (
	spotterWidth = 10
	freqWidth    = 7
	spottedWidth = 13
	commentWidth = 31
)

// Format renders the AK1A line without a trailing CRLF.
func (s Spot) Format() string {
	return fmt.Sprintf("DX de %-*s %*s  %-*s%-*s%s",
		spotterWidth, s.SpotterCall+":",
		freqWidth, s.Frequency,
		spottedWidth, s.SpottedCall,
		commentWidth, s.Comment,
		s.Timestamp)
}

// Line renders the wire line including CRLF.
func (s Spot) Line() string {
	return s.Format() + "\r\n"
}

// FrequencyKHz parses the formatted frequency back to kHz.
func (s Spot) FrequencyKHz() (float64, error) {
	freq, err := strconv.ParseFloat(strings.TrimSpace(s.Frequency), 64)
	if err != nil {
		return 0, fmt.Errorf("parse frequency %q: %w", s.Frequency, err)
	}
	return freq, nil
}

// Band returns the band name for the spot frequency, or "???" when the
// frequency is outside the table.
func (s Spot) Band() string {
	freq, err := s.FrequencyKHz()
	if err != nil {
		return "???"
	}
	if band, ok := BandFor(freq); ok {
		return band.Name
	}
	return "???"
}

// FormatTimestamp renders t as HHMMZ in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
