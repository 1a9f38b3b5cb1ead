package sink

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/loopdeck/internal/audio"
)

// Device is a live audio output.
type Device interface {
	SampleRate() int
	// MinBufferSize is the smallest write, in bytes, the device accepts
	// without underrunning.
	MinBufferSize() int
	// Write blocks while the device buffer is full. It may accept fewer
	// bytes than given. After Stop it returns ErrDrained or 0.
	Write(p []byte) (int, error)
	Start() error
	Stop() error
	Release() error
}

// DeviceSink adapts a Device to Sink.
type DeviceSink struct {
	dev     Device
	latency time.Duration
	scratch []byte

	mu       sync.Mutex
	stopped  bool
	released bool
}

var _ Sink = (*DeviceSink)(nil)

// NewDeviceSink returns a sink writing to dev, sized for the given latency.
func NewDeviceSink(dev Device, latency time.Duration) *DeviceSink {
	return &DeviceSink{dev: dev, latency: latency}
}

func (d *DeviceSink) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return errors.New("start on released device")
	}
	if err := d.dev.Start(); err != nil {
		return errors.Wrap(err, "start device")
	}
	d.stopped = false
	return nil
}

// WriteSamples retries partial writes until buf is handed off. A drained or
// stopped device ends the write early without error. Any other failure is
// marked ErrIO.
func (d *DeviceSink) WriteSamples(buf audio.Buffer) error {
	d.scratch = encode(d.scratch, buf)
	p := d.scratch
	for len(p) > 0 {
		n, err := d.dev.Write(p)
		switch {
		case errors.Is(err, ErrDrained):
			return nil
		case err != nil:
			return errors.Mark(errors.Wrap(err, "device write"), ErrIO)
		case n < 0:
			return errors.Mark(errors.Newf("device write returned %d", n), ErrIO)
		case n == 0:
			zlog.Debug().Int("pending", len(p)).Msg("sink: short write on stopped device")
			return nil
		}
		p = p[min(n, len(p)):]
	}
	return nil
}

func (d *DeviceSink) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.released {
		return nil
	}
	d.stopped = true
	return errors.Wrap(d.dev.Stop(), "stop device")
}

func (d *DeviceSink) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil
	}
	var err error
	if !d.stopped {
		d.stopped = true
		err = errors.Wrap(d.dev.Stop(), "stop device")
	}
	d.released = true
	return errors.CombineErrors(err, errors.Wrap(d.dev.Release(), "release device"))
}

func (d *DeviceSink) SampleRate() int {
	return d.dev.SampleRate()
}

func (d *DeviceSink) PreferredBufferSize() int {
	return audio.PreferredSize(d.dev.MinBufferSize(), d.latency, d.dev.SampleRate())
}
