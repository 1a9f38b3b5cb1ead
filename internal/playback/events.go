package playback

import (
	"time"

	"github.com/llehouerou/loopdeck/internal/playlist"
)

// StateChange is emitted on every transition, including Playing to Playing
// when a finished item advances. Position is the reported position at the
// time of the transition, or 0 when it cannot be read.
type StateChange struct {
	Previous State
	Current  State
	Position time.Duration
}

// ItemChange is emitted when a streaming loop starts on an item.
//
// Emitted by:
//   - Start
//   - Next/Prev while playing
//   - the finish handler, when it advances or replays
//
// NOT emitted by Next/Prev while stopped: moving the cursor without
// playing does not change what is playing.
type ItemChange struct {
	Previous *playlist.Item
	Current  playlist.Item
}

// ErrorEvent is emitted when an operation fails, either on the control
// path or inside a streaming loop.
type ErrorEvent struct {
	Operation string // e.g. "start playback", "render audio"
	Location  string // item location if applicable
	Err       error
}

// Observer receives playback notifications. Callbacks run while the service
// holds its lock: they must return quickly and must not call back into the
// Service.
type Observer interface {
	OnStateChanged(state State, position time.Duration)
	OnItemChanged(item playlist.Item)
	OnError(message string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	StateChanged func(state State, position time.Duration)
	ItemChanged  func(item playlist.Item)
	Error        func(message string)
}

func (f ObserverFuncs) OnStateChanged(state State, position time.Duration) {
	if f.StateChanged != nil {
		f.StateChanged(state, position)
	}
}

func (f ObserverFuncs) OnItemChanged(item playlist.Item) {
	if f.ItemChanged != nil {
		f.ItemChanged(item)
	}
}

func (f ObserverFuncs) OnError(message string) {
	if f.Error != nil {
		f.Error(message)
	}
}
