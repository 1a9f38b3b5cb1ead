// internal/playback/service_impl_test.go
package playback

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/loopdeck/internal/native"
	"github.com/llehouerou/loopdeck/internal/player"
	"github.com/llehouerou/loopdeck/internal/playlist"
	"github.com/llehouerou/loopdeck/internal/sink"
)

const (
	testPathA = "/a.wav"
	testPathB = "/b.wav"
	endless   = 1 << 30
)

// fakeEngine serves player.MockSource sessions keyed by location. Each open
// pops the next chunk count for the location; the last one repeats.
type fakeEngine struct {
	mu        sync.Mutex
	chunks    map[string][]int
	openErr   map[string]error
	renderErr map[string]error
	sessions  []*player.MockSource
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		chunks:    map[string][]int{},
		openErr:   map[string]error{},
		renderErr: map[string]error{},
	}
}

func (e *fakeEngine) DetectFormat([]byte) ([]native.Candidate, error) { return nil, nil }

func (e *fakeEngine) LoadModule(data []byte, _ string) (native.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	loc := string(data)
	if err := e.openErr[loc]; err != nil {
		return nil, err
	}
	plan, ok := e.chunks[loc]
	if !ok {
		return nil, errors.Newf("no such item %s", loc)
	}
	n := plan[0]
	if len(plan) > 1 {
		e.chunks[loc] = plan[1:]
	}
	src := player.NewMockSource(n)
	src.RenderErr = e.renderErr[loc]
	e.sessions = append(e.sessions, src)
	return src, nil
}

func (e *fakeEngine) EnumerateCapabilities(func(native.Capability)) {}

func (e *fakeEngine) QueryOptions() native.Options { return native.Options{} }

func (e *fakeEngine) opened() []*player.MockSource {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*player.MockSource(nil), e.sessions...)
}

// recorder is an Observer keeping every notification.
type recorder struct {
	mu     sync.Mutex
	states []State
	pos    []time.Duration
	items  []string
	errs   []string
}

func (r *recorder) OnStateChanged(s State, p time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
	r.pos = append(r.pos, p)
}

func (r *recorder) OnItemChanged(item playlist.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item.Location)
}

func (r *recorder) OnError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, msg)
}

func (r *recorder) snapshot() (states []State, pos []time.Duration, items, errs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...),
		append([]time.Duration(nil), r.pos...),
		append([]string(nil), r.items...),
		append([]string(nil), r.errs...)
}

type fixture struct {
	svc    Service
	engine *fakeEngine
	rec    *recorder

	mu    sync.Mutex
	sinks []*player.MockSink
}

// newFixture builds a service over a ready engine. With block set, sinks
// accept one write and then block until stopped, keeping loops alive.
func newFixture(engine *fakeEngine, block bool) *fixture {
	slot := native.NewSlot()
	slot.Initialize(func() (native.Engine, error) { return engine, nil })
	return newFixtureWithSlot(slot, engine, block)
}

func newFixtureWithSlot(slot *native.Slot, engine *fakeEngine, block bool) *fixture {
	f := &fixture{engine: engine, rec: &recorder{}}
	f.svc = New(native.NewBarrier(slot), func() (sink.Sink, error) {
		sk := player.NewMockSink()
		sk.Block = block
		f.mu.Lock()
		f.sinks = append(f.sinks, sk)
		f.mu.Unlock()
		return sk, nil
	}, Options{
		ReadFile: func(location string) ([]byte, error) { return []byte(location), nil },
	})
	f.svc.AddObserver(f.rec)
	return f
}

func (f *fixture) openedSinks() []*player.MockSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*player.MockSink(nil), f.sinks...)
}

func iter(locations ...string) *playlist.ListIterator {
	items := make([]playlist.Item, len(locations))
	for i, l := range locations {
		items[i] = playlist.NewItem(l, "")
	}
	return playlist.NewListIterator(items, playlist.Ordered, 0)
}

func TestService_InitiallyStopped(t *testing.T) {
	f := newFixture(newFakeEngine(), false)
	defer f.svc.Close()

	assert.Equal(t, StateStopped, f.svc.State())
	assert.Zero(t, f.svc.Position())
	_, ok := f.svc.NowPlaying()
	assert.False(t, ok)
}

func TestService_ZeroLengthItemFinishesToStopped(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		engine := newFakeEngine()
		engine.chunks[testPathA] = []int{0}
		f := newFixture(engine, false)
		defer f.svc.Close()
		sub := f.svc.Subscribe()

		f.svc.SetIterator(iter(testPathA))
		require.NoError(t, f.svc.Start())
		synctest.Wait()

		assert.Equal(t, StateStopped, f.svc.State())
		states, pos, items, errs := f.rec.snapshot()
		assert.Equal(t, []State{StatePlaying, StateStopped}, states)
		assert.Equal(t, []time.Duration{0, 0}, pos)
		assert.Equal(t, []string{testPathA}, items)
		assert.Empty(t, errs)

		first := <-sub.StateChanged
		assert.Equal(t, StateChange{Previous: StateStopped, Current: StatePlaying}, first)
		last := <-sub.StateChanged
		assert.Equal(t, StateChange{Previous: StatePlaying, Current: StateStopped}, last)

		opened := engine.opened()
		require.Len(t, opened, 1)
		assert.True(t, opened[0].Closed(), "finished session must be closed")
		assert.Equal(t, []time.Duration{0}, opened[0].SeekCalls(), "exhaustion rewinds the session")
	})
}

func TestService_FinishedAdvancesThenStopsAtEnd(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		engine := newFakeEngine()
		engine.chunks[testPathA] = []int{2}
		engine.chunks[testPathB] = []int{1}
		f := newFixture(engine, false)
		defer f.svc.Close()

		f.svc.SetIterator(iter(testPathA, testPathB))
		require.NoError(t, f.svc.Start())
		synctest.Wait()

		states, _, items, errs := f.rec.snapshot()
		assert.Equal(t, []State{StatePlaying, StatePlaying, StateStopped}, states)
		assert.Equal(t, []string{testPathA, testPathB}, items)
		assert.Empty(t, errs)

		for _, sk := range f.openedSinks() {
			_, stops, releases := sk.Calls()
			assert.Positive(t, stops)
			assert.Equal(t, 1, releases)
		}
	})
}

func TestService_AdvanceOpenFailureStops(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		engine := newFakeEngine()
		engine.chunks[testPathA] = []int{1}
		engine.openErr[testPathB] = errors.New("truncated header")
		f := newFixture(engine, false)
		defer f.svc.Close()
		sub := f.svc.Subscribe()

		f.svc.SetIterator(iter(testPathA, testPathB))
		require.NoError(t, f.svc.Start())
		synctest.Wait()

		assert.Equal(t, StateStopped, f.svc.State())
		_, _, _, errs := f.rec.snapshot()
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "advance playlist")
		assert.Contains(t, errs[0], "truncated header")

		ev := <-sub.Error
		assert.Equal(t, testPathB, ev.Location)
		assert.ErrorIs(t, ev.Err, engine.openErr[testPathB])
	})
}

func TestService_StartOpenFailureReturnsError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		engine := newFakeEngine()
		engine.openErr[testPathA] = errors.New("bad data")
		f := newFixture(engine, false)
		defer f.svc.Close()

		f.svc.SetIterator(iter(testPathA))
		err := f.svc.Start()

		assert.ErrorIs(t, err, engine.openErr[testPathA])
		assert.Equal(t, StateStopped, f.svc.State())
		states, _, _, errs := f.rec.snapshot()
		assert.Empty(t, states)
		assert.Len(t, errs, 1)
	})
}

func TestService_RenderErrorStops(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		engine := newFakeEngine()
		engine.chunks[testPathA] = []int{5}
		engine.renderErr[testPathA] = errors.New("corrupt frame")
		f := newFixture(engine, false)
		defer f.svc.Close()

		f.svc.SetIterator(iter(testPathA, testPathB))
		require.NoError(t, f.svc.Start())
		synctest.Wait()

		assert.Equal(t, StateStopped, f.svc.State())
		states, _, items, errs := f.rec.snapshot()
		assert.Equal(t, []State{StatePlaying, StateStopped}, states)
		assert.Equal(t, []string{testPathA}, items, "an error must not advance the cursor")
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], "corrupt frame")
	})
}

func TestService_LoadFailureReportsOriginalCause(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		cause := errors.New("engine library missing")
		slot := native.NewSlot()
		slot.Initialize(func() (native.Engine, error) { return nil, cause })
		f := newFixtureWithSlot(slot, newFakeEngine(), false)
		defer f.svc.Close()

		f.svc.SetIterator(iter(testPathA))
		for range 2 {
			err := f.svc.Start()
			assert.ErrorIs(t, err, cause)
			assert.ErrorIs(t, err, native.ErrUnavailable)
		}
		assert.Equal(t, StateStopped, f.svc.State())
	})
}

func TestService_Seek(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		engine := newFakeEngine()
		engine.chunks[testPathA] = []int{endless}
		f := newFixture(engine, true)
		defer f.svc.Close()

		f.svc.SetIterator(iter(testPathA))
		require.NoError(t, f.svc.Start())
		synctest.Wait()
		// one write accepted, the loop is blocked on the second after two renders
		before := f.svc.Position()
		assert.Equal(t, 2*time.Millisecond, before)

		require.NoError(t, f.svc.Seek(5*time.Second))

		states, pos, _, _ := f.rec.snapshot()
		assert.Equal(t, []State{StatePlaying, StateSeeking, StatePlaying}, states)
		assert.Equal(t, before, pos[1], "Seeking reports the pre-seek position")
		assert.Equal(t, 5*time.Second, pos[2])
		assert.Equal(t, StatePlaying, f.svc.State())
		assert.Contains(t, engine.opened()[0].SeekCalls(), 5*time.Second)
	})
}

func TestService_SeekWhileStopped(t *testing.T) {
	f := newFixture(newFakeEngine(), false)
	defer f.svc.Close()

	assert.ErrorIs(t, f.svc.Seek(time.Second), ErrNotPlaying)
}

func TestService_StopReleasesOnce(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		engine := newFakeEngine()
		engine.chunks[testPathA] = []int{endless}
		f := newFixture(engine, true)
		defer f.svc.Close()

		f.svc.SetIterator(iter(testPathA))
		require.NoError(t, f.svc.Start())
		synctest.Wait()

		require.NoError(t, f.svc.Stop())
		require.NoError(t, f.svc.Stop())
		synctest.Wait()

		assert.Equal(t, StateStopped, f.svc.State())
		assert.True(t, engine.opened()[0].Closed())
		sinks := f.openedSinks()
		require.Len(t, sinks, 1)
		_, _, releases := sinks[0].Calls()
		assert.Equal(t, 1, releases)

		states, _, _, _ := f.rec.snapshot()
		assert.Equal(t, []State{StatePlaying, StateStopped}, states)
	})
}

func TestService_NextWhilePlayingRestarts(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		engine := newFakeEngine()
		engine.chunks[testPathA] = []int{endless}
		engine.chunks[testPathB] = []int{endless}
		f := newFixture(engine, true)
		defer f.svc.Close()

		f.svc.SetIterator(iter(testPathA, testPathB))
		require.NoError(t, f.svc.Start())
		synctest.Wait()

		require.NoError(t, f.svc.Next())
		synctest.Wait()
		item, ok := f.svc.NowPlaying()
		require.True(t, ok)
		assert.Equal(t, testPathB, item.Location)
		assert.True(t, engine.opened()[0].Closed())

		// at the last item Next is a no-op
		require.NoError(t, f.svc.Next())
		item, _ = f.svc.NowPlaying()
		assert.Equal(t, testPathB, item.Location)

		require.NoError(t, f.svc.Prev())
		synctest.Wait()
		item, _ = f.svc.NowPlaying()
		assert.Equal(t, testPathA, item.Location)

		_, _, items, _ := f.rec.snapshot()
		assert.Equal(t, []string{testPathA, testPathB, testPathA}, items)
	})
}

func TestService_NextWhileStoppedMovesCursorOnly(t *testing.T) {
	engine := newFakeEngine()
	f := newFixture(engine, false)
	defer f.svc.Close()

	f.svc.SetIterator(iter(testPathA, testPathB))
	require.NoError(t, f.svc.Next())

	snap, ok := f.svc.Snapshot()
	require.True(t, ok)
	assert.Equal(t, testPathB, snap.Item.Location)
	assert.Empty(t, engine.opened())
	assert.Equal(t, StateStopped, f.svc.State())
}

func TestService_LoopedTrackModeReplays(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		engine := newFakeEngine()
		engine.chunks[testPathA] = []int{1, endless}
		f := newFixture(engine, true)
		defer f.svc.Close()
		f.svc.SetTrackMode(TrackLooped)

		f.svc.SetIterator(iter(testPathA, testPathB))
		require.NoError(t, f.svc.Start())
		synctest.Wait()

		assert.Equal(t, StatePlaying, f.svc.State())
		_, _, items, _ := f.rec.snapshot()
		assert.Equal(t, []string{testPathA, testPathA}, items)
		assert.Equal(t, TrackLooped, f.svc.TrackMode())
	})
}

func TestService_RestoreResumesAtPosition(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		engine := newFakeEngine()
		engine.chunks[testPathA] = []int{endless}
		f := newFixture(engine, true)
		defer f.svc.Close()

		f.svc.Restore(iter(testPathA), 42*time.Second)
		snap, ok := f.svc.Snapshot()
		require.True(t, ok)
		assert.Equal(t, testPathA, snap.Item.Location)
		assert.Equal(t, 42*time.Second, snap.Position)

		require.NoError(t, f.svc.Start())
		synctest.Wait()

		assert.Equal(t, []time.Duration{42 * time.Second}, engine.opened()[0].SeekCalls())
	})
}

func TestService_StartWithoutIterator(t *testing.T) {
	f := newFixture(newFakeEngine(), false)
	defer f.svc.Close()

	assert.ErrorIs(t, f.svc.Start(), ErrNoIterator)
	assert.ErrorIs(t, f.svc.Next(), ErrNoIterator)

	f.svc.SetIterator(playlist.NewListIterator(nil, playlist.Ordered, 0))
	err := f.svc.Start()
	assert.True(t, errors.HasAssertionFailure(err))
	_, ok := f.svc.Snapshot()
	assert.False(t, ok)
}

func TestService_Close_SignalsSubscribers(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		engine := newFakeEngine()
		engine.chunks[testPathA] = []int{endless}
		f := newFixture(engine, true)
		sub := f.svc.Subscribe()

		f.svc.SetIterator(iter(testPathA))
		require.NoError(t, f.svc.Start())
		synctest.Wait()

		require.NoError(t, f.svc.Close())
		require.NoError(t, f.svc.Close())
		<-sub.Done

		assert.Equal(t, StateStopped, f.svc.State())
		assert.ErrorIs(t, f.svc.Start(), ErrClosed)
	})
}

func TestService_DurationFallsBackToItem(t *testing.T) {
	f := newFixture(newFakeEngine(), false)
	defer f.svc.Close()

	items := []playlist.Item{{Location: testPathA, Duration: 3 * time.Minute}}
	f.svc.SetIterator(playlist.NewListIterator(items, playlist.Ordered, 0))

	assert.Equal(t, 3*time.Minute, f.svc.Duration())
}

// fixedIterator is an Iterator without a changeable navigation mode.
type fixedIterator struct{}

func (fixedIterator) Next() bool { return false }
func (fixedIterator) Prev() bool { return false }
func (fixedIterator) Item() (playlist.Item, error) {
	return playlist.NewItem(testPathA, ""), nil
}

func TestService_SetSequenceModeWhilePlaying(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		engine := newFakeEngine()
		engine.chunks[testPathA] = []int{endless}
		engine.chunks[testPathB] = []int{endless}
		f := newFixture(engine, true)
		defer f.svc.Close()

		f.svc.SetIterator(iter(testPathA, testPathB))
		require.NoError(t, f.svc.Next())
		require.NoError(t, f.svc.Start())
		synctest.Wait()

		require.NoError(t, f.svc.SetSequenceMode(playlist.Looped))
		mode, ok := f.svc.SequenceMode()
		require.True(t, ok)
		assert.Equal(t, playlist.Looped, mode)

		// the running loop is kept
		item, ok := f.svc.NowPlaying()
		require.True(t, ok)
		assert.Equal(t, testPathB, item.Location)
		assert.Len(t, engine.opened(), 1)

		// looped now wraps past the last item
		require.NoError(t, f.svc.Next())
		synctest.Wait()
		item, _ = f.svc.NowPlaying()
		assert.Equal(t, testPathA, item.Location)
	})
}

func TestService_SetSequenceModeErrors(t *testing.T) {
	f := newFixture(newFakeEngine(), false)
	defer f.svc.Close()

	assert.ErrorIs(t, f.svc.SetSequenceMode(playlist.Shuffle), ErrNoIterator)
	_, ok := f.svc.SequenceMode()
	assert.False(t, ok)

	f.svc.SetIterator(fixedIterator{})
	assert.ErrorIs(t, f.svc.SetSequenceMode(playlist.Shuffle), ErrFixedSequence)
	_, ok = f.svc.SequenceMode()
	assert.False(t, ok)
}

func TestService_Spectrum(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		engine := newFakeEngine()
		engine.chunks[testPathA] = []int{endless}
		f := newFixture(engine, true)
		defer f.svc.Close()

		assert.Nil(t, f.svc.Spectrum(0))
		assert.Equal(t, []int{0, 0, 0, 0}, f.svc.Spectrum(4))

		f.svc.SetIterator(iter(testPathA))
		require.NoError(t, f.svc.Start())
		synctest.Wait()

		levels := f.svc.Spectrum(8)
		require.Len(t, levels, 8)
		for _, l := range levels {
			assert.GreaterOrEqual(t, l, 0)
			assert.LessOrEqual(t, l, player.MaxLevel)
		}
	})
}
