// Package player runs the streaming loop that pulls samples from a decode
// session and pushes them to a sink.
package player

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/loopdeck/internal/audio"
	"github.com/llehouerou/loopdeck/internal/sink"
)

// Source produces samples. native.Session satisfies it.
type Source interface {
	Render(buf audio.Buffer) (int, error)
	Position() time.Duration
	SetPosition(pos time.Duration) error
}

// ErrAlreadyStarted is returned by Run on a player that already ran.
var ErrAlreadyStarted = errors.New("streaming loop already started")

// Player binds one source, one sink and one reused buffer.
type Player struct {
	src    Source
	sink   sink.Sink
	events Events
	buf    audio.Buffer
	tap    *Spectrum

	state    atomic.Int32
	started  atomic.Bool
	stopping atomic.Bool
	done     chan struct{}

	releaseOnce sync.Once
	releaseErr  error
}

// New returns an Idle player. The buffer is sized from the sink's
// preferred size. A nil events receives nothing.
func New(src Source, sk sink.Sink, events Events) *Player {
	if events == nil {
		events = EventFuncs{}
	}
	return &Player{
		src:    src,
		sink:   sk,
		events: events,
		buf:    audio.NewBuffer(sk.PreferredBufferSize()),
		tap:    NewSpectrum(sk.SampleRate()),
		done:   make(chan struct{}),
	}
}

// State returns the loop state.
func (p *Player) State() State { return State(p.state.Load()) }

// BufferSize returns the render buffer size in samples.
func (p *Player) BufferSize() int { return len(p.buf) }

// Spectrum returns the analyzer fed with every rendered buffer.
func (p *Player) Spectrum() *Spectrum { return p.tap }

// Done is closed when the loop has exited and the sink is stopped.
func (p *Player) Done() <-chan struct{} { return p.done }

// Start runs the loop on its own goroutine. Only the first call of Start
// or Run has an effect.
func (p *Player) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go func() { _ = p.run() }()
}

// Run runs the loop on the calling goroutine and returns the error that
// ended it, if any. Events are delivered as with Start.
func (p *Player) Run() error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	return p.run()
}

// Stop asks the loop to exit and waits for it. It stops the sink first so
// a write blocked on a full device returns. Safe to call repeatedly and
// from any goroutine except the loop's own event callbacks.
func (p *Player) Stop() {
	p.stopping.Store(true)
	if p.started.CompareAndSwap(false, true) {
		p.state.Store(int32(Stopped))
		close(p.done)
		return
	}
	if err := p.sink.Stop(); err != nil {
		zlog.Warn().Err(err).Msg("player: stop sink")
	}
	<-p.done
}

// Release stops the loop and releases the sink. It is idempotent.
func (p *Player) Release() error {
	p.releaseOnce.Do(func() {
		p.Stop()
		p.releaseErr = p.sink.Release()
	})
	return p.releaseErr
}

func (p *Player) run() error {
	defer close(p.done)

	outcome, err := p.loop()
	if serr := p.sink.Stop(); serr != nil {
		zlog.Warn().Err(serr).Msg("player: stop sink")
	}
	p.state.Store(int32(outcome))

	switch outcome {
	case Finished:
		zlog.Debug().Msg("player: source exhausted")
		p.events.OnFinish()
	case Stopped:
		zlog.Debug().Msg("player: stopped")
		p.events.OnStop()
	default:
		zlog.Error().Err(err).Msg("player: loop failed")
		p.events.OnError(err)
	}
	return err
}

func (p *Player) loop() (outcome State, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = Failed, errors.Newf("streaming loop panic: %s", fmt.Sprint(r))
		}
	}()

	if err := p.sink.Start(); err != nil {
		return Failed, errors.Wrap(err, "start sink")
	}
	p.state.Store(int32(Running))
	p.events.OnStart()

	for {
		if p.stopping.Load() {
			return Stopped, nil
		}
		n, err := p.src.Render(p.buf)
		if err != nil {
			return Failed, errors.Wrap(err, "render")
		}
		if n > 0 {
			p.tap.Update(p.buf[:min(n, len(p.buf))])
		}
		if n == 0 {
			if err := p.src.SetPosition(0); err != nil {
				return Failed, errors.Wrap(err, "rewind exhausted source")
			}
			return Finished, nil
		}
		if err := p.sink.WriteSamples(p.buf[:min(n, len(p.buf))]); err != nil {
			// Stop tears the sink down under a pending write.
			if p.stopping.Load() {
				zlog.Debug().Err(err).Msg("write interrupted by stop")
				return Stopped, nil
			}
			return Failed, errors.Wrap(err, "write samples")
		}
	}
}
