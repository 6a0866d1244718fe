package spot

import (
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultOwnCall is the operator call used in own-call mode.
	DefaultOwnCall = "SM7IUN"
	// DefaultOwnFrequency is the fixed own-call frequency in kHz.
	DefaultOwnFrequency = "14043.2"

	snrMin, snrMax = 11, 37 // [min, max)
	wpmMin, wpmMax = 28, 45 // [min, max)
)

// Rand is the subset of math/rand/v2 the generator draws from.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// ModeSource reports the current own-call mode.
type ModeSource interface {
	OwnSpots() bool
}

// lockedRand serialises access to a single PCG source so one generator can be
// shared by every session goroutine.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedRand returns a goroutine-safe Rand seeded with the given values.
func NewLockedRand(seed1, seed2 uint64) Rand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed1, seed2))}
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	v := l.r.IntN(n)
	l.mu.Unlock()
	return v
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	v := l.r.Float64()
	l.mu.Unlock()
	return v
}

// GeneratorOptions configures a Generator. Zero values select defaults.
type GeneratorOptions struct {
	OwnCall      string
	OwnFrequency string
	Mode         ModeSource
	Rand         Rand
	Now          func() time.Time
}

// Generator produces synthetic spots. It holds no per-call state and is safe
// for concurrent use by every session.
type Generator struct {
	ownCall      string
	ownFrequency string
	mode         ModeSource
	rand         Rand
	now          func() time.Time
}

// NewGenerator builds a generator from opts.
func NewGenerator(opts GeneratorOptions) *Generator {
	g := &Generator{
		ownCall:      NormalizeCallsign(opts.OwnCall),
		ownFrequency: opts.OwnFrequency,
		mode:         opts.Mode,
		rand:         opts.Rand,
		now:          opts.Now,
	}
	if g.ownCall == "" {
		g.ownCall = DefaultOwnCall
	}
	if g.ownFrequency == "" {
		g.ownFrequency = DefaultOwnFrequency
	}
	if g.rand == nil {
		g.rand = NewLockedRand(rand.Uint64(), rand.Uint64())
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Generate produces one spot, consulting the shared mode exactly once.
func (g *Generator) Generate() Spot {
	own := g.mode != nil && g.mode.OwnSpots()
	return g.GenerateMode(own)
}

// GenerateMode produces one spot in the requested mode regardless of the
// shared switch.
func (g *Generator) GenerateMode(own bool) Spot {
	s := Spot{
		SpotterCall: RandomCall(g.rand) + SpotterSuffix,
		Comment:     g.randomComment(),
		Timestamp:   FormatTimestamp(g.now()),
		Own:         own,
	}
	if own {
		s.SpottedCall = g.ownCall
		s.Frequency = g.ownFrequency
		return s
	}
	s.SpottedCall = RandomCall(g.rand)
	s.Frequency = g.randomFrequency()
	return s
}

// OwnCall returns the configured operator call.
func (g *Generator) OwnCall() string {
	return g.ownCall
}

// randomFrequency picks a band uniformly, then a frequency uniformly inside
// [Low, High) of that band, rendered to one decimal. A value that would round
// up to High is pulled back to the last tenth below it.
func (g *Generator) randomFrequency() string {
	band := bandTable[g.rand.IntN(len(bandTable))]
	freq := band.Low + g.rand.Float64()*band.Width()
	tenths := math.Round(freq * 10)
	if limit := math.Round(band.High * 10); tenths >= limit {
		tenths = limit - 1
	}
	return strconv.FormatFloat(tenths/10, 'f', 1, 64)
}

func (g *Generator) randomComment() string {
	snr := snrMin + g.rand.IntN(snrMax-snrMin)
	wpm := wpmMin + g.rand.IntN(wpmMax-wpmMin)
	return "CW " + strconv.Itoa(snr) + " dB " + strconv.Itoa(wpm) + " WPM CQ"
}
