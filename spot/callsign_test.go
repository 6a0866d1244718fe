package spot

import (
	"math/rand/v2"
	"testing"
)

func TestRandomCallShape(t *testing.T) {
	r := NewLockedRand(1, 2)
	for i := 0; i < 5000; i++ {
		call := RandomCall(r)
		if len(call) != SyntheticCallLen {
			t.Fatalf("RandomCall() = %q, want length %d", call, SyntheticCallLen)
		}
		if !IsSyntheticCall(call) {
			t.Fatalf("RandomCall() = %q does not match LLDLLL", call)
		}
	}
}

func TestRandomCallUsesFullAlphabet(t *testing.T) {
	r := NewLockedRand(7, 11)
	letters := make(map[byte]bool)
	digits := make(map[byte]bool)
	for i := 0; i < 20000; i++ {
		call := RandomCall(r)
		letters[call[0]] = true
		digits[call[2]] = true
	}
	if len(letters) != 26 {
		t.Fatalf("expected all 26 prefix letters, saw %d", len(letters))
	}
	if len(digits) != 10 {
		t.Fatalf("expected all 10 digits, saw %d", len(digits))
	}
}

func TestRandomCallBoundaryDraws(t *testing.T) {
	low := RandomCall(&scriptedRand{ints: []int{0, 0, 0, 0, 0, 0}})
	if low != "AA0AAA" {
		t.Fatalf("expected AA0AAA from zero draws, got %q", low)
	}
	high := RandomCall(&scriptedRand{ints: []int{25, 25, 9, 25, 25, 25}})
	if high != "ZZ9ZZZ" {
		t.Fatalf("expected ZZ9ZZZ from max draws, got %q", high)
	}
}

func TestIsSyntheticCallRejects(t *testing.T) {
	cases := []string{"", "SM7IUN1", "sm7iun", "S17IUN", "SMXIUN", "SM7IU", "SM7IUN-#"}
	for _, call := range cases {
		if IsSyntheticCall(call) {
			t.Fatalf("IsSyntheticCall(%q) = true, want false", call)
		}
	}
}

func TestIsValidOperatorCall(t *testing.T) {
	valid := []string{"SM7IUN", "k1abc", "W6/LZ5VV", "9A1AA", "VK2ABC/P"}
	for _, call := range valid {
		if !IsValidOperatorCall(call) {
			t.Fatalf("IsValidOperatorCall(%q) = false, want true", call)
		}
	}
	invalid := []string{"", "ABCDEF", "K1 ABC", "K1ABC#"}
	for _, call := range invalid {
		if IsValidOperatorCall(call) {
			t.Fatalf("IsValidOperatorCall(%q) = true, want false", call)
		}
	}
}

// scriptedRand replays fixed draws, falling back to a seeded source when the
// script runs out.
type scriptedRand struct {
	ints   []int
	floats []float64
	rest   *rand.Rand
}

func (s *scriptedRand) IntN(n int) int {
	if len(s.ints) > 0 {
		v := s.ints[0]
		s.ints = s.ints[1:]
		return v % n
	}
	return s.fallback().IntN(n)
}

func (s *scriptedRand) Float64() float64 {
	if len(s.floats) > 0 {
		v := s.floats[0]
		s.floats = s.floats[1:]
		return v
	}
	return s.fallback().Float64()
}

func (s *scriptedRand) fallback() *rand.Rand {
	if s.rest == nil {
		s.rest = rand.New(rand.NewPCG(3, 5))
	}
	return s.rest
}
