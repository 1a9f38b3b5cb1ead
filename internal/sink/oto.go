package sink

import (
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ebitengine/oto/v3"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/loopdeck/internal/audio"
)

// Oto owns the process-wide oto context. oto allows a single context per
// process, so OpenOto must be called once and the result shared.
type Oto struct {
	ctx        *oto.Context
	rate       int
	bufferSize time.Duration
}

// OpenOto opens the audio context at rate with a device buffer of
// bufferSize, blocking until the driver is ready.
func OpenOto(rate int, bufferSize time.Duration) (*Oto, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: audio.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create oto context")
	}
	<-ready
	zlog.Info().Int("sample_rate", rate).Dur("buffer", bufferSize).Msg("sink: audio context ready")
	return &Oto{ctx: ctx, rate: rate, bufferSize: bufferSize}, nil
}

// NewDevice returns a device backed by a fresh oto player.
func (o *Oto) NewDevice() Device {
	return &otoDevice{owner: o}
}

// NewSink returns a DeviceSink over a fresh device.
func (o *Oto) NewSink(latency time.Duration) Sink {
	return NewDeviceSink(o.NewDevice(), latency)
}

// feed connects a device's writes to the player's reads. Write blocks until
// the reader has taken the bytes.
type feed struct {
	pr *io.PipeReader
	pw *io.PipeWriter
}

func newFeed() *feed {
	pr, pw := io.Pipe()
	return &feed{pr: pr, pw: pw}
}

func (f *feed) Read(p []byte) (int, error) { return f.pr.Read(p) }

// Write returns ErrDrained once the feed is drained, including for a write
// that was blocked at that moment.
func (f *feed) Write(p []byte) (int, error) {
	n, err := f.pw.Write(p)
	if errors.Is(err, io.ErrClosedPipe) {
		err = ErrDrained
	}
	return n, err
}

// drain closes the read side only. Closing the write side as well would
// turn a pending Write into io.ErrClosedPipe.
func (f *feed) drain() {
	_ = f.pr.CloseWithError(ErrDrained)
}

// otoDevice feeds an oto player through a pipe, so Write blocks while the
// player has not consumed the previous bytes.
type otoDevice struct {
	owner *Oto

	mu     sync.Mutex
	player *oto.Player
	feed   *feed
}

func (d *otoDevice) SampleRate() int { return d.owner.rate }

func (d *otoDevice) MinBufferSize() int {
	frames := int(d.owner.bufferSize.Milliseconds()) * d.owner.rate / 1000
	return max(frames, 1) * audio.FrameSize
}

func (d *otoDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		return nil
	}
	if err := d.owner.ctx.Err(); err != nil {
		return errors.Wrap(err, "oto context")
	}
	d.feed = newFeed()
	d.player = d.owner.ctx.NewPlayer(d.feed)
	d.player.Play()
	return nil
}

func (d *otoDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	f := d.feed
	d.mu.Unlock()
	if f == nil {
		return 0, ErrDrained
	}
	return f.Write(p)
}

// Stop drains the feed, which unblocks a pending Write with ErrDrained,
// and closes the player.
func (d *otoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	d.feed.drain()
	err := d.player.Close()
	d.player, d.feed = nil, nil
	return err
}

func (d *otoDevice) Release() error {
	return d.Stop()
}
