package player

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/loopdeck/internal/audio"
	"github.com/llehouerou/loopdeck/internal/sink"
)

// recorder captures events in order.
type recorder struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) OnStart()  { r.add("start") }
func (r *recorder) OnFinish() { r.add("finish") }
func (r *recorder) OnStop()   { r.add("stop") }
func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	r.add("error")
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestPlayer_RunsUntilExhausted(t *testing.T) {
	src := NewMockSource(3)
	src.Value = 7
	sk := NewMockSink()
	rec := &recorder{}

	p := New(src, sk, rec)
	require.NoError(t, p.Run())

	assert.Equal(t, []string{"start", "finish"}, rec.got())
	assert.Equal(t, Finished, p.State())
	assert.Len(t, sk.Written(), 3*p.BufferSize())
	for _, s := range sk.Written() {
		require.Equal(t, int16(7), s)
	}
}

func TestPlayer_ExhaustionResetsPosition(t *testing.T) {
	src := NewMockSource(2)
	p := New(src, NewMockSink(), nil)
	require.NoError(t, p.Run())

	assert.Zero(t, src.Position())
	assert.Equal(t, []time.Duration{0}, src.SeekCalls())
}

func TestPlayer_BufferSizedFromSink(t *testing.T) {
	sk := NewMockSink()
	sk.Size = 512
	p := New(NewMockSource(0), sk, nil)
	assert.Equal(t, 512/audio.BytesPerSample, p.BufferSize())
}

func TestPlayer_ZeroLengthSource(t *testing.T) {
	sk := NewMockSink()
	rec := &recorder{}
	p := New(NewMockSource(0), sk, rec)
	require.NoError(t, p.Run())

	assert.Equal(t, []string{"start", "finish"}, rec.got())
	assert.Empty(t, sk.Written())
	starts, stops, _ := sk.Calls()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
}

func TestPlayer_RenderErrorReported(t *testing.T) {
	src := NewMockSource(5)
	src.RenderErr = errors.New("corrupt frame")
	sk := NewMockSink()
	rec := &recorder{}

	p := New(src, sk, rec)
	err := p.Run()

	require.Error(t, err)
	assert.Equal(t, []string{"start", "error"}, rec.got())
	assert.ErrorIs(t, rec.err, src.RenderErr)
	assert.Equal(t, Failed, p.State())
	_, stops, _ := sk.Calls()
	assert.Equal(t, 1, stops)
}

func TestPlayer_WriteErrorReported(t *testing.T) {
	sk := NewMockSink()
	sk.WriteErr = errors.New("device gone")
	rec := &recorder{}

	p := New(NewMockSource(5), sk, rec)
	err := p.Run()

	assert.ErrorIs(t, err, sk.WriteErr)
	assert.Equal(t, []string{"start", "error"}, rec.got())
}

func TestPlayer_SinkStartErrorSkipsOnStart(t *testing.T) {
	sk := NewMockSink()
	sk.StartErr = errors.New("no device")
	rec := &recorder{}

	p := New(NewMockSource(5), sk, rec)
	assert.Error(t, p.Run())
	assert.Equal(t, []string{"error"}, rec.got())
}

func TestPlayer_PanicBecomesError(t *testing.T) {
	src := NewMockSource(5)
	src.Panic = "index out of range"
	rec := &recorder{}

	p := New(src, NewMockSink(), rec)
	err := p.Run()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "index out of range")
	assert.Equal(t, []string{"start", "error"}, rec.got())
}

func TestPlayer_StopWhileBlockedInWrite(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sk := NewMockSink()
		sk.Block = true
		rec := &recorder{}
		p := New(NewMockSource(1000), sk, rec)

		p.Start()
		synctest.Wait()
		assert.Equal(t, Running, p.State())

		p.Stop()

		assert.Equal(t, Stopped, p.State())
		assert.Equal(t, []string{"start", "stop"}, rec.got())
		select {
		case <-p.Done():
		default:
			t.Fatal("Done not closed after Stop")
		}
	})
}

func TestPlayer_StopWhileWriteFails(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sk := NewMockSink()
		sk.Block = true
		sk.StopErr = errors.Mark(errors.New("pipe closed"), sink.ErrIO)
		rec := &recorder{}
		p := New(NewMockSource(1000), sk, rec)

		p.Start()
		synctest.Wait()
		p.Stop()

		assert.Equal(t, Stopped, p.State())
		assert.Equal(t, []string{"start", "stop"}, rec.got())
	})
}

func TestPlayer_StopIdempotent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		sk := NewMockSink()
		sk.Block = true
		rec := &recorder{}
		p := New(NewMockSource(1000), sk, rec)

		p.Start()
		synctest.Wait()
		p.Stop()
		p.Stop()
		require.NoError(t, p.Release())
		require.NoError(t, p.Release())

		assert.Equal(t, []string{"start", "stop"}, rec.got())
		_, _, releases := sk.Calls()
		assert.Equal(t, 1, releases)
	})
}

func TestPlayer_StopBeforeStart(t *testing.T) {
	rec := &recorder{}
	p := New(NewMockSource(3), NewMockSink(), rec)

	p.Stop()
	p.Start()

	<-p.Done()
	assert.Equal(t, Stopped, p.State())
	assert.Empty(t, rec.got())
	assert.ErrorIs(t, p.Run(), ErrAlreadyStarted)
}

func TestLimit_StopsAfterDuration(t *testing.T) {
	src := NewMockSource(1000)
	sk := NewMockSink()
	sk.Size = 40 * audio.FrameSize

	// 10ms at 8kHz is 80 frames, 160 samples: two full 80-sample buffers
	p := New(Limit(src, 8000, 10*time.Millisecond), sk, nil)
	require.NoError(t, p.Run())

	assert.Len(t, sk.Written(), 160)
	assert.Equal(t, 2, src.Renders())
}

func TestLimit_TruncatesLastBuffer(t *testing.T) {
	src := NewMockSource(1000)
	lim := Limit(src, 8000, 10*time.Millisecond)
	buf := audio.NewBuffer(100 * audio.FrameSize)

	n, err := lim.Render(buf)
	require.NoError(t, err)
	assert.Equal(t, 160, n)
	assert.Zero(t, buf[160])

	n, err = lim.Render(buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, lim.SetPosition(0))
	n, err = lim.Render(buf)
	require.NoError(t, err)
	assert.Equal(t, 160, n)
}
