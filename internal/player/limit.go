package player

import (
	"sync"
	"time"

	"github.com/llehouerou/loopdeck/internal/audio"
)

// limited ends a source after a fixed amount of audio.
type limited struct {
	src Source

	mu        sync.Mutex
	total     int
	remaining int
}

// Limit returns a source that reports exhaustion after d of audio at rate,
// or earlier if src runs out. Rewinding to zero restores the full budget.
func Limit(src Source, rate int, d time.Duration) Source {
	total := int(d.Milliseconds()) * rate / 1000 * audio.Channels
	return &limited{src: src, total: total, remaining: total}
}

func (l *limited) Render(buf audio.Buffer) (int, error) {
	l.mu.Lock()
	remaining := l.remaining
	l.mu.Unlock()
	if remaining <= 0 {
		return 0, nil
	}

	n, err := l.src.Render(buf)
	if err != nil {
		return 0, err
	}
	n = min(n, remaining)
	buf.Silence(n)

	l.mu.Lock()
	l.remaining -= n
	l.mu.Unlock()
	return n, nil
}

func (l *limited) Position() time.Duration {
	return l.src.Position()
}

func (l *limited) SetPosition(pos time.Duration) error {
	if err := l.src.SetPosition(pos); err != nil {
		return err
	}
	if pos == 0 {
		l.mu.Lock()
		l.remaining = l.total
		l.mu.Unlock()
	}
	return nil
}
