package player

import (
	"math"
	"sync"

	"github.com/llehouerou/loopdeck/internal/audio"
)

const (
	// spectrumWindow is the number of mono frames analyzed.
	spectrumWindow = 1024
	lowestBand     = 50.0
	// MaxLevel is the level of a full-scale tone at a band center.
	MaxLevel = 100
)

// Spectrum keeps the most recently rendered frames and reports band
// levels over them. The zero value is not usable; use NewSpectrum.
type Spectrum struct {
	rate int

	mu     sync.Mutex
	window []float64 // ring of mono frames in [-1, 1]
	next   int
	filled int
}

// NewSpectrum returns an analyzer for samples at rate.
func NewSpectrum(rate int) *Spectrum {
	return &Spectrum{rate: rate, window: make([]float64, spectrumWindow)}
}

// Update mixes buf down to mono and appends it to the window.
func (s *Spectrum) Update(buf audio.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i+1 < len(buf); i += audio.Channels {
		s.window[s.next] = (float64(buf[i]) + float64(buf[i+1])) / (2 * 32768)
		s.next = (s.next + 1) % len(s.window)
	}
	s.filled = min(s.filled+len(buf)/audio.Channels, len(s.window))
}

// Reset forgets the analyzed frames.
func (s *Spectrum) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.window)
	s.next, s.filled = 0, 0
}

// Levels returns one level in [0, MaxLevel] per band. Bands are spaced
// logarithmically between 50 Hz and the Nyquist frequency.
func (s *Spectrum) Levels(bands int) []int {
	if bands <= 0 {
		return nil
	}
	s.mu.Lock()
	frames := make([]float64, 0, s.filled)
	start := (s.next - s.filled + len(s.window)) % len(s.window)
	for i := range s.filled {
		frames = append(frames, s.window[(start+i)%len(s.window)])
	}
	s.mu.Unlock()

	levels := make([]int, bands)
	if len(frames) == 0 {
		return levels
	}
	for b := range levels {
		mag := goertzel(frames, s.BandCenter(b, bands), float64(s.rate))
		level := int(math.Round(MaxLevel * mag / (float64(len(frames)) / 2)))
		levels[b] = min(max(level, 0), MaxLevel)
	}
	return levels
}

// BandCenter returns the center frequency in Hz of band b out of bands.
func (s *Spectrum) BandCenter(b, bands int) float64 {
	hi := float64(s.rate) / 2
	return lowestBand * math.Pow(hi/lowestBand, (float64(b)+0.5)/float64(bands))
}

// goertzel returns the magnitude of frames at freq.
func goertzel(frames []float64, freq, rate float64) float64 {
	w := 2 * math.Pi * freq / rate
	coeff := 2 * math.Cos(w)
	var s1, s2 float64
	for _, x := range frames {
		s0 := x + coeff*s1 - s2
		s2, s1 = s1, s0
	}
	re := s1 - s2*math.Cos(w)
	im := s2 * math.Sin(w)
	return math.Hypot(re, im)
}
