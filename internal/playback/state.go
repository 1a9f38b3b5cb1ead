// internal/playback/state.go
package playback

import "github.com/cockroachdb/errors"

// State represents the playback state.
//
//	            start                seek
//	┌─────────┐ ─────▶ ┌─────────┐ ─────▶ ┌─────────┐
//	│ Stopped │        │ Playing │        │ Seeking │
//	└─────────┘ ◀───── └─────────┘ ◀───── └─────────┘
//	   stop, end of playlist,       accepted
//	   error
//
// A finished item that advances keeps the service Playing.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StateSeeking
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StatePlaying:
		return "Playing"
	case StateSeeking:
		return "Seeking"
	default:
		return "Unknown"
	}
}

// IsActive returns true while a streaming loop is running.
func (s State) IsActive() bool {
	return s == StatePlaying || s == StateSeeking
}

// TrackMode defines what happens when an item finishes.
type TrackMode int

const (
	// TrackRegular advances the iterator.
	TrackRegular TrackMode = iota
	// TrackLooped replays the current item.
	TrackLooped
)

// String returns the track mode name.
func (m TrackMode) String() string {
	switch m {
	case TrackRegular:
		return "regular"
	case TrackLooped:
		return "looped"
	default:
		return "unknown"
	}
}

// ParseTrackMode parses a track mode name.
func ParseTrackMode(s string) (TrackMode, error) {
	switch s {
	case "", "regular":
		return TrackRegular, nil
	case "looped":
		return TrackLooped, nil
	default:
		return TrackRegular, errors.Newf("unknown track mode %q", s)
	}
}
