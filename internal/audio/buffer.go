// Package audio holds the sample buffer shared by decode sessions and sinks.
package audio

import "time"

const (
	// Channels is the interleaved channel count of every Buffer.
	Channels = 2
	// BytesPerSample is the size of one signed 16-bit sample.
	BytesPerSample = 2
	// FrameSize is the byte size of one interleaved stereo frame.
	FrameSize = Channels * BytesPerSample

	// MaxSampleRate caps the rate used for latency sizing, whatever the device supports.
	MaxSampleRate = 48000
)

// Buffer is a chunk of signed 16-bit stereo-interleaved PCM samples.
// Its length is fixed for the lifetime of a pipeline and it is reused
// between render calls.
type Buffer []int16

// NewBuffer allocates a buffer able to hold sizeBytes bytes of audio,
// rounded down to whole frames (at least one frame).
func NewBuffer(sizeBytes int) Buffer {
	frames := max(sizeBytes/FrameSize, 1)
	return make(Buffer, frames*Channels)
}

// Frames returns the number of stereo frames the buffer holds.
func (b Buffer) Frames() int {
	return len(b) / Channels
}

// Bytes returns the serialized size of the buffer.
func (b Buffer) Bytes() int {
	return len(b) * BytesPerSample
}

// Silence zeroes the samples from index from to the end of the buffer.
func (b Buffer) Silence(from int) {
	clear(b[min(from, len(b)):])
}

// ClampRate limits a sample rate to MaxSampleRate.
func ClampRate(rate int) int {
	return min(rate, MaxSampleRate)
}

// LatencySize returns the buffer size in bytes holding latency worth of
// audio at the given rate.
func LatencySize(latency time.Duration, rate int) int {
	frames := int(latency.Milliseconds()) * ClampRate(rate) / 1000
	return Channels * BytesPerSample * frames
}

// PreferredSize picks the buffer size for a sink: the larger of the sink's
// own minimum and the size derived from the latency target.
func PreferredSize(minSize int, latency time.Duration, rate int) int {
	return max(minSize, LatencySize(latency, rate))
}
