//go:build !windows

// Package stderr captures output that native audio libraries (ALSA, the
// oto backend's C side) write straight to file descriptor 2, and forwards
// it line by line to the logger.
package stderr

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/cockroachdb/errors"
)

var (
	mu         sync.Mutex
	origStderr int
	original   *os.File
	pipeRead   *os.File
	pipeWrite  *os.File
	done       chan struct{}
	started    bool
)

// Start redirects fd 2 into a pipe and calls forward for every non-empty
// line written to it. Must be called before the audio device is opened.
// The program can go on without capture when it fails.
func Start(forward func(line string)) error {
	mu.Lock()
	defer mu.Unlock()
	if started {
		return nil
	}

	r, w, err := os.Pipe()
	if err != nil {
		return errors.Wrap(err, "create stderr pipe")
	}

	// Save original stderr file descriptor
	orig, err := syscall.Dup(int(os.Stderr.Fd()))
	if err != nil {
		r.Close()
		w.Close()
		return errors.Wrap(err, "dup stderr")
	}

	// Redirect stderr (fd 2) to the pipe's write end
	if err := syscall.Dup2(int(w.Fd()), int(os.Stderr.Fd())); err != nil {
		syscall.Close(orig)
		r.Close()
		w.Close()
		return errors.Wrap(err, "redirect stderr")
	}

	origStderr = orig
	original = os.NewFile(uintptr(orig), "stderr")
	pipeRead = r
	pipeWrite = w
	done = make(chan struct{})
	started = true

	go func(r io.Reader, done chan struct{}) {
		defer close(done)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				forward(line)
			}
		}
	}(r, done)

	return nil
}

// Original returns a writer to the real stderr, bypassing capture. Loggers
// writing to stderr must use it while capture runs.
func Original() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	if started {
		return original
	}
	return os.Stderr
}

// Stop restores the original stderr and waits until every captured line
// has been forwarded.
func Stop() {
	mu.Lock()
	defer mu.Unlock()
	if !started {
		return
	}

	_ = syscall.Dup2(origStderr, int(os.Stderr.Fd()))
	pipeWrite.Close()
	<-done
	pipeRead.Close()
	original.Close()

	started = false
}
