package codec

import (
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"

	"github.com/llehouerou/loopdeck/internal/audio"
)

// session renders a beep stream into 16-bit stereo buffers.
//
// Seeks are recorded as pending and applied at the start of the next
// Render, so the loop never races the control goroutine on the decoder.
// Until then Position reports the pending target.
type session struct {
	mu      sync.Mutex
	stream  beep.StreamSeekCloser
	format  beep.Format
	out     beep.Streamer
	scratch [][2]float64

	pending    time.Duration
	hasPending bool
	closed     bool
}

func newSession(stream beep.StreamSeekCloser, format beep.Format, rate, quality int) *session {
	s := &session{stream: stream, format: format, out: stream}
	if int(format.SampleRate) != rate {
		s.out = beep.Resample(quality, format.SampleRate, beep.SampleRate(rate), stream)
	}
	return s
}

func (s *session) Render(buf audio.Buffer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New("render on closed session")
	}
	if s.hasPending {
		if err := s.stream.Seek(s.format.SampleRate.N(s.pending)); err != nil {
			return 0, errors.Wrapf(err, "seek to %s", s.pending)
		}
		s.hasPending = false
	}

	frames := buf.Frames()
	if cap(s.scratch) < frames {
		s.scratch = make([][2]float64, frames)
	}
	scratch := s.scratch[:frames]

	n, ok := s.out.Stream(scratch)
	if !ok || n == 0 {
		if err := s.stream.Err(); err != nil {
			return 0, errors.Wrap(err, "decode")
		}
		return 0, nil
	}
	for i := range n {
		buf[i*audio.Channels] = toInt16(scratch[i][0])
		buf[i*audio.Channels+1] = toInt16(scratch[i][1])
	}
	buf.Silence(n * audio.Channels)
	return n * audio.Channels, nil
}

func toInt16(v float64) int16 {
	v = math.Round(v * 32768)
	return int16(min(max(v, math.MinInt16), math.MaxInt16))
}

func (s *session) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasPending {
		return s.pending
	}
	return s.format.SampleRate.D(s.stream.Position())
}

func (s *session) SetPosition(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("seek on closed session")
	}
	if pos < 0 {
		return errors.Newf("negative position %s", pos)
	}
	if d := s.format.SampleRate.D(s.stream.Len()); d > 0 && pos > d {
		pos = d
	}
	s.pending = pos
	s.hasPending = true
	return nil
}

func (s *session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format.SampleRate.D(s.stream.Len())
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}
