package spot

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerateRandomFrequencyInsideExactlyOneBand(t *testing.T) {
	g := NewGenerator(GeneratorOptions{Rand: NewLockedRand(42, 43)})
	seen := make(map[string]int)
	for i := 0; i < 20000; i++ {
		s := g.GenerateMode(false)
		freq := mustParse(t, s.Frequency)
		matches := 0
		for _, band := range Bands() {
			if band.Contains(freq) {
				matches++
				seen[band.Name]++
			}
		}
		if matches != 1 {
			t.Fatalf("frequency %s matched %d bands", s.Frequency, matches)
		}
		if !strings.Contains(s.Frequency, ".") || len(s.Frequency)-strings.Index(s.Frequency, ".") != 2 {
			t.Fatalf("frequency %q not formatted to one decimal", s.Frequency)
		}
	}
	if len(seen) != BandCount() {
		t.Fatalf("expected every band to be drawn, saw %v", seen)
	}
}

func TestGenerateFrequencyClampsBelowBandEdge(t *testing.T) {
	// Band index 0 (160m) with a draw that would round to 1840.0.
	r := &scriptedRand{ints: []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, floats: []float64{0.99999}}
	g := NewGenerator(GeneratorOptions{Rand: r})
	s := g.GenerateMode(false)
	if s.Frequency != "1839.9" {
		t.Fatalf("expected clamp to 1839.9, got %s", s.Frequency)
	}
}

func TestGenerateLowEdge(t *testing.T) {
	r := &scriptedRand{ints: []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5}, floats: []float64{0}}
	g := NewGenerator(GeneratorOptions{Rand: r})
	s := g.GenerateMode(false)
	if s.Frequency != "28000.0" {
		t.Fatalf("expected 28000.0, got %s", s.Frequency)
	}
}

func TestGenerateCallShapes(t *testing.T) {
	g := NewGenerator(GeneratorOptions{Rand: NewLockedRand(5, 6)})
	for i := 0; i < 2000; i++ {
		s := g.GenerateMode(false)
		if !strings.HasSuffix(s.SpotterCall, SpotterSuffix) {
			t.Fatalf("spotter %q missing node suffix", s.SpotterCall)
		}
		if !IsSyntheticCall(strings.TrimSuffix(s.SpotterCall, SpotterSuffix)) {
			t.Fatalf("spotter %q not LLDLLL", s.SpotterCall)
		}
		if !IsSyntheticCall(s.SpottedCall) {
			t.Fatalf("spotted %q not LLDLLL", s.SpottedCall)
		}
	}
}

func TestGenerateCommentRanges(t *testing.T) {
	g := NewGenerator(GeneratorOptions{Rand: NewLockedRand(8, 8)})
	snrSeen := make(map[int]bool)
	wpmSeen := make(map[int]bool)
	for i := 0; i < 20000; i++ {
		var snr, wpm int
		s := g.GenerateMode(false)
		if _, err := fmt.Sscanf(s.Comment, "CW %d dB %d WPM CQ", &snr, &wpm); err != nil {
			t.Fatalf("comment %q does not match template: %v", s.Comment, err)
		}
		if snr < 11 || snr >= 37 {
			t.Fatalf("snr %d outside [11,37)", snr)
		}
		if wpm < 28 || wpm >= 45 {
			t.Fatalf("wpm %d outside [28,45)", wpm)
		}
		snrSeen[snr] = true
		wpmSeen[wpm] = true
	}
	if len(snrSeen) != 26 || len(wpmSeen) != 17 {
		t.Fatalf("expected full ranges, got snr=%d wpm=%d", len(snrSeen), len(wpmSeen))
	}
}

func TestGenerateOwnMode(t *testing.T) {
	mode := NewModeSwitch(true)
	g := NewGenerator(GeneratorOptions{Mode: mode, Rand: NewLockedRand(1, 1)})
	for i := 0; i < 200; i++ {
		s := g.Generate()
		if s.SpottedCall != DefaultOwnCall || s.Frequency != DefaultOwnFrequency {
			t.Fatalf("own mode produced %+v", s)
		}
		if !IsSyntheticCall(strings.TrimSuffix(s.SpotterCall, SpotterSuffix)) {
			t.Fatalf("own mode spotter %q should still be synthetic", s.SpotterCall)
		}
	}
	mode.SetOwnSpots(false)
	for i := 0; i < 200; i++ {
		s := g.Generate()
		if s.SpottedCall == DefaultOwnCall {
			t.Fatalf("random mode produced operator call: %+v", s)
		}
		if !IsSyntheticCall(s.SpottedCall) {
			t.Fatalf("random mode spotted %q not synthetic", s.SpottedCall)
		}
	}
}

func TestGenerateCustomOwnCall(t *testing.T) {
	g := NewGenerator(GeneratorOptions{OwnCall: " k1abc ", OwnFrequency: "7025.0", Mode: NewModeSwitch(true)})
	s := g.Generate()
	if s.SpottedCall != "K1ABC" || s.Frequency != "7025.0" {
		t.Fatalf("unexpected own spot %+v", s)
	}
	if g.OwnCall() != "K1ABC" {
		t.Fatalf("OwnCall = %q", g.OwnCall())
	}
}

func TestGenerateTimestampFromClock(t *testing.T) {
	fixed := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	g := NewGenerator(GeneratorOptions{Now: func() time.Time { return fixed }})
	if got := g.Generate().Timestamp; got != "0304Z" {
		t.Fatalf("timestamp = %q, want 0304Z", got)
	}
}

func TestModeSwitchConcurrentTogglesNeverTear(t *testing.T) {
	mode := NewModeSwitch(false)
	g := NewGenerator(GeneratorOptions{Mode: mode, Rand: NewLockedRand(2, 3)})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for _, own := range []bool{true, false} {
		wg.Add(1)
		go func(own bool) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					mode.SetOwnSpots(own)
				}
			}
		}(own)
	}

	var ownCount, randomCount int
	for i := 0; i < 20000; i++ {
		s := g.Generate()
		switch {
		case s.SpottedCall == DefaultOwnCall && s.Frequency == DefaultOwnFrequency:
			ownCount++
		case IsSyntheticCall(s.SpottedCall):
			if _, ok := BandFor(mustParse(t, s.Frequency)); !ok {
				t.Fatalf("random spot with out-of-band frequency: %+v", s)
			}
			randomCount++
		default:
			t.Fatalf("torn spot (mixed own/random fields): %+v", s)
		}
	}
	close(stop)
	wg.Wait()
	if ownCount+randomCount != 20000 {
		t.Fatalf("lost spots: own=%d random=%d", ownCount, randomCount)
	}
}

func TestModeSwitchSwapAndLabel(t *testing.T) {
	m := NewModeSwitch(false)
	if prev := m.SetOwnSpots(true); prev {
		t.Fatalf("expected previous=false")
	}
	if !m.OwnSpots() || m.Label() != "own" {
		t.Fatalf("expected own mode, got %s", m.Label())
	}
	var nilSwitch *ModeSwitch
	if nilSwitch.OwnSpots() {
		t.Fatalf("nil switch should report random mode")
	}
}
