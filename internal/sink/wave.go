package sink

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/llehouerou/loopdeck/internal/audio"
)

// WAV header layout. The format fields always describe 44.1 kHz mono
// 16-bit PCM, whatever the data holds.
const (
	WaveSampleRate  = 44100
	WaveHeaderSize  = 44
	waveBufferSize  = 16 * 1024
	riffSizeOffset  = 4
	dataSizeOffset  = 40
	riffSizeBase    = 36
	waveBitsPerSamp = 16
	waveBlockAlign  = 2
	waveChannels    = 1
)

// WaveFile writes samples to a RIFF/WAVE file. Writes never block; the
// size fields are patched on Stop.
type WaveFile struct {
	mu       sync.Mutex
	w        io.WriteSeeker
	closer   io.Closer
	size     uint32
	scratch  []byte
	released bool
}

var _ Sink = (*WaveFile)(nil)

// CreateWave creates path and writes an empty header.
func CreateWave(path string) (*WaveFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create wave file")
	}
	w, err := NewWave(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWave writes an empty header to w. The caller keeps ownership of w.
func NewWave(w io.WriteSeeker) (*WaveFile, error) {
	if _, err := w.Write(waveHeader(0)); err != nil {
		return nil, errors.Wrap(err, "write wave header")
	}
	return &WaveFile{w: w}, nil
}

func waveHeader(dataSize uint32) []byte {
	h := make([]byte, WaveHeaderSize)
	le := binary.LittleEndian
	copy(h[0:], "RIFF")
	le.PutUint32(h[riffSizeOffset:], riffSizeBase+dataSize)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	le.PutUint32(h[16:], 16)
	le.PutUint16(h[20:], 1)
	le.PutUint16(h[22:], waveChannels)
	le.PutUint32(h[24:], WaveSampleRate)
	le.PutUint32(h[28:], WaveSampleRate*waveBlockAlign)
	le.PutUint16(h[32:], waveBlockAlign)
	le.PutUint16(h[34:], waveBitsPerSamp)
	copy(h[36:], "data")
	le.PutUint32(h[dataSizeOffset:], dataSize)
	return h
}

func (w *WaveFile) Start() error { return nil }

// WriteSamples appends buf to the data chunk.
func (w *WaveFile) WriteSamples(buf audio.Buffer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return errors.Mark(errors.New("write on released wave file"), ErrIO)
	}
	w.scratch = encode(w.scratch, buf)
	n, err := w.w.Write(w.scratch)
	w.size += uint32(n) //nolint:gosec // n is bounded by the buffer size
	if err != nil {
		return errors.Mark(errors.Wrap(err, "write wave data"), ErrIO)
	}
	return nil
}

// Size returns the number of data bytes written so far.
func (w *WaveFile) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.size)
}

// Stop patches the RIFF and data sizes with the bytes written so far.
// Further writes keep appending; calling Stop again re-patches.
func (w *WaveFile) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return nil
	}
	return w.patch()
}

func (w *WaveFile) patch() error {
	var field [4]byte
	put := func(off int64, v uint32) error {
		binary.LittleEndian.PutUint32(field[:], v)
		if _, err := w.w.Seek(off, io.SeekStart); err != nil {
			return err
		}
		_, err := w.w.Write(field[:])
		return err
	}
	if err := put(riffSizeOffset, riffSizeBase+w.size); err != nil {
		return errors.Wrap(err, "patch riff size")
	}
	if err := put(dataSizeOffset, w.size); err != nil {
		return errors.Wrap(err, "patch data size")
	}
	if _, err := w.w.Seek(0, io.SeekEnd); err != nil {
		return errors.Wrap(err, "seek wave end")
	}
	return nil
}

// Release finalizes the header and closes the file if CreateWave opened it.
func (w *WaveFile) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return nil
	}
	w.released = true
	err := w.patch()
	if w.closer != nil {
		err = errors.CombineErrors(err, w.closer.Close())
	}
	return err
}

func (w *WaveFile) SampleRate() int { return WaveSampleRate }

func (w *WaveFile) PreferredBufferSize() int { return waveBufferSize }
