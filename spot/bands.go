package spot

// BandLimit describes the CW sub-band a synthetic spot may be placed in.
// Low is inclusive and High is exclusive, both in kHz.
type BandLimit struct {
	Name string
	Low  float64
	High float64
}

// Contains reports whether freq falls inside [Low, High).
func (b BandLimit) Contains(freq float64) bool {
	return freq >= b.Low && freq < b.High
}

// Width returns the span of the sub-band in kHz.
func (b BandLimit) Width() float64 {
	return b.High - b.Low
}

var bandTable = [...]BandLimit{
	{Name: "160m", Low: 1810.0, High: 1840.0},
	{Name: "80m", Low: 3500.0, High: 3560.0},
	{Name: "40m", Low: 7000.0, High: 7040.0},
	{Name: "20m", Low: 14000.0, High: 14050.0},
	{Name: "15m", Low: 21000.0, High: 21050.0},
	{Name: "10m", Low: 28000.0, High: 28060.0},
}

// Bands returns a copy of the band table, ordered from 160m to 10m.
func Bands() []BandLimit {
	out := make([]BandLimit, len(bandTable))
	copy(out, bandTable[:])
	return out
}

// BandCount returns the number of sub-bands in the table.
func BandCount() int {
	return len(bandTable)
}

// BandFor returns the sub-band containing freq, if any.
func BandFor(freq float64) (BandLimit, bool) {
	for _, band := range bandTable {
		if band.Contains(freq) {
			return band, true
		}
	}
	return BandLimit{}, false
}

// BandNames lists the sub-band names in table order.
func BandNames() []string {
	names := make([]string, len(bandTable))
	for i, band := range bandTable {
		names[i] = band.Name
	}
	return names
}
