package spot

import (
	"strings"
	"testing"
	"time"
)

func TestFormatAK1AColumns(t *testing.T) {
	s := Spot{
		SpotterCall: "W3OA-#",
		Frequency:   "7031.5",
		SpottedCall: "W8KJP",
		Comment:     "CW 12 dB 22 WPM CQ",
		Timestamp:   "1945Z",
	}
	want := "DX de " + "W3OA-#:" + strings.Repeat(" ", 3) +
		" " + " 7031.5" +
		"  " + "W8KJP" + strings.Repeat(" ", 8) +
		"CW 12 dB 22 WPM CQ" + strings.Repeat(" ", 13) +
		"1945Z"
	if got := s.Format(); got != want {
		t.Fatalf("Format mismatch\n got: %q\nwant: %q", got, want)
	}
	if len(s.Format()) != 75 {
		t.Fatalf("expected 75 columns, got %d", len(s.Format()))
	}
	if !strings.HasSuffix(s.Line(), "1945Z\r\n") {
		t.Fatalf("Line should end with CRLF, got %q", s.Line())
	}
}

func TestFormatFixedColumnsForGeneratedSpots(t *testing.T) {
	g := NewGenerator(GeneratorOptions{Rand: NewLockedRand(9, 9)})
	for i := 0; i < 500; i++ {
		line := g.GenerateMode(i%2 == 0).Format()
		if !strings.HasPrefix(line, "DX de ") {
			t.Fatalf("missing prefix: %q", line)
		}
		// Spotter is 9 chars + colon padded to 10, so column 16 is always blank.
		if line[16] != ' ' {
			t.Fatalf("expected separator at index 16: %q", line)
		}
		freq := strings.TrimSpace(line[17:24])
		if _, ok := BandFor(mustParse(t, freq)); !ok {
			t.Fatalf("frequency %q not inside band table: %q", freq, line)
		}
		if line[24:26] != "  " {
			t.Fatalf("expected two spaces after frequency: %q", line)
		}
		if !strings.HasSuffix(line, "Z") || len(line) != 75 {
			t.Fatalf("unexpected tail/length %d: %q", len(line), line)
		}
	}
}

func TestFormatLongFieldsAreNotTruncated(t *testing.T) {
	s := Spot{
		SpotterCall: "VK2ABCDEF-#",
		Frequency:   "28059.9",
		SpottedCall: "SM7IUN",
		Comment:     "CW 36 dB 44 WPM CQ",
		Timestamp:   "0001Z",
	}
	line := s.Format()
	if !strings.HasPrefix(line, "DX de VK2ABCDEF-#: 28059.9  SM7IUN") {
		t.Fatalf("unexpected long-spotter layout: %q", line)
	}
}

func TestSpotBand(t *testing.T) {
	cases := map[string]string{
		"1810.0":  "160m",
		"3559.9":  "80m",
		"14043.2": "20m",
		"28060.0": "???",
		"bogus":   "???",
	}
	for freq, want := range cases {
		if got := (Spot{Frequency: freq}).Band(); got != want {
			t.Fatalf("Band(%s) = %s, want %s", freq, got, want)
		}
	}
}

func TestFormatTimestampUsesUTC(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	when := time.Date(2026, time.October, 18, 21, 5, 59, 0, loc)
	if got := FormatTimestamp(when); got != "1905Z" {
		t.Fatalf("FormatTimestamp = %q, want 1905Z", got)
	}
}

func TestBandsReturnsCopy(t *testing.T) {
	bands := Bands()
	if len(bands) != 6 {
		t.Fatalf("expected 6 bands, got %d", len(bands))
	}
	bands[0].Low = 0
	if Bands()[0].Low != 1810.0 {
		t.Fatalf("band table mutated through Bands()")
	}
	names := strings.Join(BandNames(), ",")
	if names != "160m,80m,40m,20m,15m,10m" {
		t.Fatalf("unexpected band order %s", names)
	}
}

func TestBandForIsExclusiveAtHigh(t *testing.T) {
	if _, ok := BandFor(14050.0); ok {
		t.Fatalf("14050.0 should be outside the 20m sub-band")
	}
	if b, ok := BandFor(14000.0); !ok || b.Name != "20m" {
		t.Fatalf("14000.0 should be inside 20m, got %+v ok=%v", b, ok)
	}
}

func mustParse(t *testing.T, freq string) float64 {
	t.Helper()
	v, err := Spot{Frequency: freq}.FrequencyKHz()
	if err != nil {
		t.Fatalf("parse %q: %v", freq, err)
	}
	return v
}
