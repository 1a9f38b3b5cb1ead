// Package sink provides the outputs the streaming loop writes to: a live
// audio device and a WAV file writer.
package sink

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/llehouerou/loopdeck/internal/audio"
)

// Sink accepts rendered samples. WriteSamples may block; it is the only
// backpressure in the pipeline.
type Sink interface {
	Start() error
	// WriteSamples hands off the whole buffer. A sink that was stopped
	// while the write was in progress returns nil after a short write.
	WriteSamples(buf audio.Buffer) error
	// Stop halts output and unblocks a pending write. It is idempotent.
	Stop() error
	// Release frees the underlying resources. It is idempotent.
	Release() error
	SampleRate() int
	// PreferredBufferSize is the render buffer size in bytes.
	PreferredBufferSize() int
}

var (
	// ErrIO marks a failed write. It is fatal to the current loop.
	ErrIO = errors.New("sink io failure")
	// ErrDrained is returned by devices whose output was stopped while a
	// write was pending.
	ErrDrained = errors.New("device drained")
)

// encode serializes buf as little-endian 16-bit samples into dst, growing
// it when needed.
func encode(dst []byte, buf audio.Buffer) []byte {
	size := buf.Bytes()
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]
	for i, s := range buf {
		binary.LittleEndian.PutUint16(dst[i*audio.BytesPerSample:], uint16(s)) //nolint:gosec // two's complement
	}
	return dst
}
