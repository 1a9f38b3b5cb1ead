// internal/player/mock.go
package player

import (
	"sync"
	"time"

	"github.com/llehouerou/loopdeck/internal/audio"
)

// MockSource is a test double for Source. It renders Chunks full buffers
// of Value, then reports exhaustion. RenderErr fails the next render.
type MockSource struct {
	mu        sync.Mutex
	Chunks    int
	Value     int16
	RenderErr error
	Panic     any
	SampleDur time.Duration

	renders   int
	position  time.Duration
	positions []time.Duration
	closed    bool
}

// NewMockSource returns a source producing chunks buffers.
func NewMockSource(chunks int) *MockSource {
	return &MockSource{Chunks: chunks, Value: 1, SampleDur: time.Millisecond}
}

func (m *MockSource) Render(buf audio.Buffer) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Panic != nil {
		panic(m.Panic)
	}
	if m.RenderErr != nil {
		return 0, m.RenderErr
	}
	if m.renders >= m.Chunks {
		return 0, nil
	}
	m.renders++
	for i := range buf {
		buf[i] = m.Value
	}
	m.position += m.SampleDur
	return len(buf), nil
}

func (m *MockSource) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *MockSource) SetPosition(pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = pos
	m.positions = append(m.positions, pos)
	return nil
}

func (m *MockSource) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Duration(m.Chunks) * m.SampleDur
}

func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Test helpers

// Renders returns how many non-empty renders were served.
func (m *MockSource) Renders() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renders
}

// SeekCalls returns every SetPosition argument in order.
func (m *MockSource) SeekCalls() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.positions...)
}

// Closed reports whether Close was called.
func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockSink is a test double for sink.Sink. When Block is set, writes after
// the first block until Stop, then return StopErr.
type MockSink struct {
	mu       sync.Mutex
	Rate     int
	Size     int
	Block    bool
	WriteErr error
	StartErr error
	StopErr  error

	written  []int16
	writes   int
	starts   int
	stops    int
	releases int
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMockSink returns a sink with a 64-byte preferred buffer.
func NewMockSink() *MockSink {
	return &MockSink{Rate: 44100, Size: 64, stopCh: make(chan struct{})}
}

func (m *MockSink) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	return m.StartErr
}

func (m *MockSink) WriteSamples(buf audio.Buffer) error {
	m.mu.Lock()
	if m.WriteErr != nil {
		err := m.WriteErr
		m.mu.Unlock()
		return err
	}
	block := m.Block && m.writes > 0
	m.writes++
	m.mu.Unlock()

	if block {
		<-m.stopCh
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.StopErr
	}
	m.mu.Lock()
	m.written = append(m.written, buf...)
	m.mu.Unlock()
	return nil
}

func (m *MockSink) Stop() error {
	m.mu.Lock()
	m.stops++
	m.mu.Unlock()
	m.stopOnce.Do(func() { close(m.stopCh) })
	return nil
}

func (m *MockSink) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	return nil
}

func (m *MockSink) SampleRate() int { return m.Rate }

func (m *MockSink) PreferredBufferSize() int { return m.Size }

// Written returns a copy of every sample written.
func (m *MockSink) Written() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int16(nil), m.written...)
}

// Calls returns the start, stop and release counts.
func (m *MockSink) Calls() (starts, stops, releases int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.stops, m.releases
}
