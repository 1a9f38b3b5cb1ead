// internal/playback/service_impl.go
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/loopdeck/internal/errmsg"
	"github.com/llehouerou/loopdeck/internal/native"
	"github.com/llehouerou/loopdeck/internal/player"
	"github.com/llehouerou/loopdeck/internal/playlist"
)

// Verify serviceImpl implements Service at compile time.
var _ Service = (*serviceImpl)(nil)

// holder owns the resources of one streaming loop.
type holder struct {
	gen     uint64
	item    playlist.Item
	session native.Session
	player  *player.Player
	once    sync.Once
}

// release stops the loop, then frees the sink and the session, once.
// It must not run on the loop goroutine.
func (h *holder) release() {
	h.once.Do(func() {
		if err := h.player.Release(); err != nil {
			zlog.Warn().Err(err).Str("location", h.item.Location).Msg("playback: release sink")
		}
		if err := h.session.Close(); err != nil {
			zlog.Warn().Err(err).Str("location", h.item.Location).Msg("playback: close session")
		}
	})
}

type serviceImpl struct {
	mu sync.Mutex

	barrier *native.Barrier
	sinks   SinkFactory
	opts    Options

	ctx    context.Context
	cancel context.CancelFunc

	state     State
	iter      playlist.Iterator
	current   *holder
	last      *playlist.Item
	gen       uint64
	trackMode TrackMode
	resumeAt  time.Duration

	observers []Observer
	subs      []*Subscription
	subsMu    sync.RWMutex

	closed bool
}

// New creates a new playback service. Every decode goes through barrier;
// sinks opens the output of each streaming loop.
func New(barrier *native.Barrier, sinks SinkFactory, opts Options) Service {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &serviceImpl{
		barrier:   barrier,
		sinks:     sinks,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateStopped,
		trackMode: opts.TrackMode,
	}
}

// Start opens the iterator's current item and launches a streaming loop.
// It is a no-op while already playing.
func (s *serviceImpl) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state.IsActive() {
		return nil
	}
	if s.iter == nil {
		return ErrNoIterator
	}
	item, err := s.iter.Item()
	if err != nil {
		return err
	}

	h, err := s.openLocked(item)
	if err != nil {
		s.notifyErrorLocked(errmsg.OpPlaybackStart, item, err)
		return err
	}
	if s.resumeAt > 0 {
		if err := h.session.SetPosition(s.resumeAt); err != nil {
			zlog.Warn().Err(err).Dur("position", s.resumeAt).Msg("playback: restore position")
		}
		s.resumeAt = 0
	}
	s.launchLocked(h)
	return nil
}

// Stop releases the current loop and its resources.
func (s *serviceImpl) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil && s.state == StateStopped {
		return nil
	}
	pos := s.positionLocked()
	s.releaseLocked()
	s.setStateLocked(StateStopped, pos)
	return nil
}

// Seek moves the current session to position. The session applies it on
// its next render; meanwhile the service reports Seeking with the pre-seek
// position, then Playing with the target.
func (s *serviceImpl) Seek(position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || !s.state.IsActive() {
		return ErrNotPlaying
	}
	before := s.positionLocked()
	s.setStateLocked(StateSeeking, before)

	if err := s.current.session.SetPosition(position); err != nil {
		s.setStateLocked(StatePlaying, before)
		err = errors.Wrapf(err, "seek to %s", position)
		s.notifyErrorLocked(errmsg.OpPlaybackSeek, s.current.item, err)
		return err
	}
	s.setStateLocked(StatePlaying, s.positionLocked())
	return nil
}

// Next moves the cursor forward. While playing, the new item starts.
func (s *serviceImpl) Next() error {
	return s.move((playlist.Iterator).Next)
}

// Prev moves the cursor backward. While playing, the new item starts.
func (s *serviceImpl) Prev() error {
	return s.move((playlist.Iterator).Prev)
}

func (s *serviceImpl) move(step func(playlist.Iterator) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.iter == nil {
		return ErrNoIterator
	}
	if !step(s.iter) {
		return nil
	}
	s.resumeAt = 0
	if !s.state.IsActive() {
		return nil
	}

	item, err := s.iter.Item()
	if err != nil {
		return err
	}
	s.releaseLocked()
	h, err := s.openLocked(item)
	if err != nil {
		s.notifyErrorLocked(errmsg.OpPlaybackStart, item, err)
		s.setStateLocked(StateStopped, 0)
		return err
	}
	s.launchLocked(h)
	return nil
}

// handleFinished runs when the loop of generation gen exhausted its source.
func (s *serviceImpl) handleFinished(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isCurrentLocked(gen) {
		return
	}
	finished := s.current.item
	s.releaseLocked()

	advanced := s.trackMode == TrackLooped || s.iter.Next()
	if !advanced {
		zlog.Debug().Str("location", finished.Location).Msg("playback: end of playlist")
		s.setStateLocked(StateStopped, 0)
		return
	}

	item, err := s.iter.Item()
	if err == nil {
		var h *holder
		if h, err = s.openLocked(item); err == nil {
			s.launchLocked(h)
			return
		}
	}
	s.notifyErrorLocked(errmsg.OpPlaybackAdvance, item, err)
	s.setStateLocked(StateStopped, 0)
}

// handleLoopError runs when the loop of generation gen failed.
func (s *serviceImpl) handleLoopError(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isCurrentLocked(gen) {
		return
	}
	item := s.current.item
	s.releaseLocked()
	s.notifyErrorLocked(errmsg.OpPlaybackRender, item, err)
	s.setStateLocked(StateStopped, 0)
}

func (s *serviceImpl) isCurrentLocked(gen uint64) bool {
	return !s.closed && s.current != nil && s.current.gen == gen
}

// openLocked reads the item, opens a session through the barrier and a
// sink from the factory, and binds them to an idle player.
func (s *serviceImpl) openLocked(item playlist.Item) (*holder, error) {
	data, err := s.opts.ReadFile(item.Location)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", item.Location)
	}
	session, err := s.barrier.LoadModule(s.ctx, data, item.SubPath)
	if err != nil {
		return nil, err
	}
	sk, err := s.sinks()
	if err != nil {
		_ = session.Close()
		return nil, errors.Wrap(err, "open output")
	}

	s.gen++
	gen := s.gen
	h := &holder{gen: gen, item: item, session: session}
	h.player = player.New(session, sk, player.EventFuncs{
		Start: func() {
			zlog.Debug().Str("location", item.Location).Str("sub_path", item.SubPath).Msg("playback: loop started")
		},
		Finish: func() { go s.handleFinished(gen) },
		Error:  func(err error) { go s.handleLoopError(gen, err) },
	})
	return h, nil
}

func (s *serviceImpl) launchLocked(h *holder) {
	s.current = h
	s.setStateLocked(StatePlaying, s.positionLocked())
	s.notifyItemLocked(h.item)
	h.player.Start()
}

func (s *serviceImpl) releaseLocked() {
	if s.current == nil {
		return
	}
	h := s.current
	s.current = nil
	h.release()
}

// positionLocked reads the session position. A missing or unreadable
// session reports 0.
func (s *serviceImpl) positionLocked() (pos time.Duration) {
	if s.current == nil {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			zlog.Warn().Interface("panic", r).Msg("playback: position unreadable")
			pos = 0
		}
	}()
	return s.current.session.Position()
}

func (s *serviceImpl) setStateLocked(next State, pos time.Duration) {
	prev := s.state
	s.state = next
	zlog.Debug().Stringer("from", prev).Stringer("to", next).Dur("position", pos).Msg("playback: state")

	for _, o := range s.observers {
		o.OnStateChanged(next, pos)
	}
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendState(StateChange{Previous: prev, Current: next, Position: pos})
	}
}

func (s *serviceImpl) notifyItemLocked(item playlist.Item) {
	change := ItemChange{Previous: s.last, Current: item}
	s.last = &item

	for _, o := range s.observers {
		o.OnItemChanged(item)
	}
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendItem(change)
	}
}

func (s *serviceImpl) notifyErrorLocked(op errmsg.Op, item playlist.Item, err error) {
	msg := errmsg.FormatWith(op, item.DisplayTitle(), err)
	zlog.Error().Err(err).Str("op", string(op)).Str("location", item.Location).Msg("playback: error")

	for _, o := range s.observers {
		o.OnError(msg)
	}
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendError(ErrorEvent{Operation: string(op), Location: item.Location, Err: err})
	}
}

// SetIterator replaces the cursor, stopping playback first.
func (s *serviceImpl) SetIterator(it playlist.Iterator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopForReplaceLocked()
	s.iter = it
	s.resumeAt = 0
}

// Restore replaces the cursor and makes the next Start resume at position.
func (s *serviceImpl) Restore(it playlist.Iterator, position time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopForReplaceLocked()
	s.iter = it
	s.resumeAt = max(position, 0)
}

func (s *serviceImpl) stopForReplaceLocked() {
	if s.current == nil {
		return
	}
	pos := s.positionLocked()
	s.releaseLocked()
	s.setStateLocked(StateStopped, pos)
}

// Snapshot returns the item under the cursor and the current position.
// It reports false when there is no positioned cursor.
func (s *serviceImpl) Snapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return Snapshot{Item: s.current.item, Position: s.positionLocked()}, true
	}
	if s.iter == nil {
		return Snapshot{}, false
	}
	item, err := s.iter.Item()
	if err != nil {
		return Snapshot{}, false
	}
	return Snapshot{Item: item, Position: s.resumeAt}, true
}

func (s *serviceImpl) SetTrackMode(mode TrackMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackMode = mode
}

func (s *serviceImpl) TrackMode() TrackMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackMode
}

// SetSequenceMode changes the navigation mode of the iterator in place.
// The item under the cursor and the running loop are kept.
func (s *serviceImpl) SetSequenceMode(mode playlist.NavigationMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.iter == nil {
		return ErrNoIterator
	}
	it, ok := s.iter.(playlist.ModalIterator)
	if !ok {
		return ErrFixedSequence
	}
	it.SetMode(mode)
	zlog.Debug().Stringer("mode", mode).Msg("playback: sequence mode changed")
	return nil
}

// SequenceMode reports the navigation mode of the iterator, and false when
// the iterator does not expose one.
func (s *serviceImpl) SequenceMode() (playlist.NavigationMode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.iter.(playlist.ModalIterator)
	if !ok {
		return playlist.Ordered, false
	}
	return it.Mode(), true
}

// Spectrum returns band levels of the running loop's latest samples. All
// levels are zero while stopped.
func (s *serviceImpl) Spectrum(bands int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bands <= 0 {
		return nil
	}
	if s.current == nil {
		return make([]int, bands)
	}
	return s.current.player.Spectrum().Levels(bands)
}

// State returns the current playback state.
func (s *serviceImpl) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Position returns the current playback position.
func (s *serviceImpl) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

// Duration returns the duration of the playing item, or of the item under
// the cursor when stopped.
func (s *serviceImpl) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		if d := s.current.session.Duration(); d > 0 {
			return d
		}
		return s.current.item.Duration
	}
	if s.iter == nil {
		return 0
	}
	item, err := s.iter.Item()
	if err != nil {
		return 0
	}
	return item.Duration
}

// NowPlaying returns the item of the running loop.
func (s *serviceImpl) NowPlaying() (playlist.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return playlist.Item{}, false
	}
	return s.current.item, true
}

func (s *serviceImpl) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Subscribe creates a new event subscription.
func (s *serviceImpl) Subscribe() *Subscription {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	sub := newSubscription()
	s.subs = append(s.subs, sub)
	return sub
}

// Close stops playback and shuts down the service.
func (s *serviceImpl) Close() error {
	s.cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.current != nil {
		pos := s.positionLocked()
		s.releaseLocked()
		s.setStateLocked(StateStopped, pos)
	}
	s.closed = true
	s.mu.Unlock()

	s.subsMu.Lock()
	for _, sub := range s.subs {
		sub.close()
	}
	s.subs = nil
	s.subsMu.Unlock()

	return nil
}
