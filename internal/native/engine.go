// Package native guards access to the decoding engine.
//
// The engine is loaded once per Slot, asynchronously, and every operation
// goes through a Barrier that waits for the load to resolve. Once the engine
// is Ready the barrier costs a single atomic read; once the load has Failed
// every call reports the original cause.
package native

import (
	"time"

	"github.com/llehouerou/loopdeck/internal/audio"
)

// Engine is the decoding capability behind the barrier.
type Engine interface {
	// DetectFormat lists the playable tracks found in data. Compound
	// containers yield one candidate per track, each with its SubPath.
	DetectFormat(data []byte) ([]Candidate, error)

	// LoadModule opens a decode session for the track at subPath inside
	// data. An empty subPath selects data itself.
	LoadModule(data []byte, subPath string) (Session, error)

	// EnumerateCapabilities reports every decoder and container the engine
	// supports.
	EnumerateCapabilities(visit func(Capability))

	// QueryOptions returns the options the engine was loaded with.
	QueryOptions() Options
}

// Session is a live decoding context bound to one track.
type Session interface {
	// Render fills buf with the next samples and returns how many samples
	// were produced. Zero means the track is exhausted. A partially filled
	// buffer is padded with silence.
	Render(buf audio.Buffer) (int, error)

	// Position returns the current playback position.
	Position() time.Duration

	// SetPosition requests a new position. It is applied on the next Render.
	SetPosition(pos time.Duration) error

	// Duration returns the total length of the track, or 0 if unknown.
	Duration() time.Duration

	Close() error
}

// Candidate describes one playable track found by DetectFormat.
type Candidate struct {
	SubPath  string
	Format   string
	Duration time.Duration
}

// CapabilityKind separates decoders from container handlers.
type CapabilityKind int

const (
	KindDecoder CapabilityKind = iota
	KindContainer
)

// String returns the kind name.
func (k CapabilityKind) String() string {
	switch k {
	case KindDecoder:
		return "decoder"
	case KindContainer:
		return "container"
	default:
		return "unknown"
	}
}

// Capability is one entry reported by EnumerateCapabilities.
type Capability struct {
	Kind        CapabilityKind
	ID          string
	Description string
	Extensions  []string
}

// Options are the engine-wide settings.
type Options struct {
	SampleRate      int
	Channels        int
	ResampleQuality int
	Formats         []string
}

// Loader produces the engine. It runs at most once per Slot.
type Loader func() (Engine, error)
