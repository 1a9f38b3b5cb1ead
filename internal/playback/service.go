package playback

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/llehouerou/loopdeck/internal/playlist"
	"github.com/llehouerou/loopdeck/internal/sink"
)

// Service defines the playback service contract.
//
// Control methods are safe for concurrent use. Failures on the control
// path are returned; failures inside a streaming loop are reported to
// observers and force the service to Stopped.
type Service interface {
	// Playback control
	Start() error
	Stop() error
	Seek(position time.Duration) error
	Next() error
	Prev() error

	// Cursor and modes
	SetIterator(it playlist.Iterator)
	SetTrackMode(mode TrackMode)
	TrackMode() TrackMode
	SetSequenceMode(mode playlist.NavigationMode) error
	SequenceMode() (playlist.NavigationMode, bool)

	// Levels of the samples being rendered, one per band
	Spectrum(bands int) []int

	// State queries
	State() State
	Position() time.Duration
	Duration() time.Duration
	NowPlaying() (playlist.Item, bool)

	// Session persistence
	Restore(it playlist.Iterator, position time.Duration)
	Snapshot() (Snapshot, bool)

	// Notifications
	AddObserver(o Observer)
	Subscribe() *Subscription

	// Lifecycle
	Close() error
}

// Snapshot is the resumable part of the service state.
type Snapshot struct {
	Item     playlist.Item
	Position time.Duration
}

// SinkFactory opens a fresh sink for each streaming loop.
type SinkFactory func() (sink.Sink, error)

// Options configures a Service.
type Options struct {
	// ReadFile loads the bytes at an item location. Defaults to os.ReadFile.
	ReadFile func(location string) ([]byte, error)
	// TrackMode is the initial track mode.
	TrackMode TrackMode
}

var (
	// ErrNoIterator is returned when playback is requested before an
	// iterator is set.
	ErrNoIterator = errors.New("no playlist")
	// ErrNotPlaying is returned by Seek while stopped.
	ErrNotPlaying = errors.New("not playing")
	// ErrFixedSequence is returned by SetSequenceMode when the iterator
	// cannot change its navigation mode.
	ErrFixedSequence = errors.New("iterator has a fixed sequence mode")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("playback service closed")
)

func (o Options) withDefaults() Options {
	if o.ReadFile == nil {
		o.ReadFile = os.ReadFile
	}
	return o
}
