package native

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrUnavailable marks every error caused by a failed engine load.
var ErrUnavailable = errors.New("native capability unavailable")

// State is the lifecycle of a Slot.
//
//	Unloaded ──Initialize──▶ Loading ──▶ Ready
//	                                  └─▶ Failed(cause)
//
// Transitions are monotonic: Ready and Failed are terminal.
type State int32

const (
	Unloaded State = iota
	Loading
	Ready
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unloaded:
		return "Unloaded"
	case Loading:
		return "Loading"
	case Ready:
		return "Ready"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Slot holds the engine once it is loaded.
//
// engine and err are written once by the loading goroutine before state
// moves to Ready or Failed and before done is closed, so readers that
// observe a terminal state through the atomic (or through done) see them.
type Slot struct {
	state  atomic.Int32
	done   chan struct{}
	engine Engine
	err    error
}

// NewSlot returns an Unloaded slot.
func NewSlot() *Slot {
	return &Slot{done: make(chan struct{})}
}

// State returns the current lifecycle state.
func (s *Slot) State() State {
	return State(s.state.Load())
}

// Initialize starts the one-time load. Only the first call has an effect;
// later calls, whether the load is pending, succeeded or failed, return
// immediately. The loader runs on its own goroutine.
func (s *Slot) Initialize(load Loader) {
	if !s.state.CompareAndSwap(int32(Unloaded), int32(Loading)) {
		return
	}
	go s.load(load)
}

func (s *Slot) load(load Loader) {
	engine, err := runLoader(load)
	if err == nil && engine == nil {
		err = errors.New("loader returned no engine")
	}
	if err != nil {
		s.err = err
		s.state.Store(int32(Failed))
		zlog.Error().Err(err).Msg("native: engine load failed")
	} else {
		s.engine = engine
		s.state.Store(int32(Ready))
		zlog.Debug().Msg("native: engine ready")
	}
	close(s.done)
}

func runLoader(load Loader) (engine Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("loader panic: %v", fmt.Sprint(r))
		}
	}()
	return load()
}

// Engine returns the loaded engine, waiting while the load is in flight.
// After a failed load it returns an error wrapping the original cause.
// The wait ends early if ctx is done.
func (s *Slot) Engine(ctx context.Context) (Engine, error) {
	if State(s.state.Load()) == Ready {
		return s.engine, nil
	}
	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for native capability")
	}
	if State(s.state.Load()) == Ready {
		return s.engine, nil
	}
	return nil, s.failure()
}

// Err returns the load failure, or nil if the slot is not Failed.
func (s *Slot) Err() error {
	if State(s.state.Load()) != Failed {
		return nil
	}
	return s.failure()
}

func (s *Slot) failure() error {
	return errors.Mark(errors.Wrap(s.err, ErrUnavailable.Error()), ErrUnavailable)
}

// Done is closed once the load has resolved.
func (s *Slot) Done() <-chan struct{} {
	return s.done
}
