package export

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/llehouerou/loopdeck/internal/playlist"
)

// ItemError records a failed export.
type ItemError struct {
	Item playlist.Item
	Err  error
}

// Job exports a batch of items into one directory, one after the other.
type Job struct {
	mu       sync.Mutex
	dir      string
	items    []playlist.Item
	length   time.Duration
	current  int
	results  []Result
	errors   []ItemError
	canceled bool
}

// NewJob creates a job exporting items into dir, each capped at length
// (zero for whole items).
func NewJob(dir string, items []playlist.Item, length time.Duration) *Job {
	return &Job{dir: dir, items: items, length: length}
}

// Run exports every item with e. Failures are recorded and the batch goes
// on; cancellation ends it. progress, when set, is called after each item.
func (j *Job) Run(ctx context.Context, e *Exporter, progress func(current, total int)) {
	used := make(map[string]int)
	for i, item := range j.items {
		if ctx.Err() != nil {
			j.cancel()
			return
		}
		dest := uniquePath(used, OutputPath(j.dir, item))
		res, err := e.Export(ctx, Request{Item: item, Length: j.length, Dest: dest})

		j.mu.Lock()
		j.current = i + 1
		if err != nil {
			j.errors = append(j.errors, ItemError{Item: item, Err: err})
		} else {
			j.results = append(j.results, res)
		}
		j.mu.Unlock()

		if progress != nil {
			progress(i+1, len(j.items))
		}
	}
	if ctx.Err() != nil {
		j.cancel()
	}
}

func (j *Job) cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.canceled = true
}

// IsCanceled returns true if the job was canceled.
func (j *Job) IsCanceled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.canceled
}

// Results returns the files written so far.
func (j *Job) Results() []Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Result(nil), j.results...)
}

// Errors returns all export errors.
func (j *Job) Errors() []ItemError {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]ItemError(nil), j.errors...)
}

// Summary describes the outcome for display.
func (j *Job) Summary() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	var total uint64
	for _, r := range j.results {
		total += uint64(r.Bytes)
	}
	switch {
	case j.canceled:
		return fmt.Sprintf("Export canceled after %d/%d items", j.current, len(j.items))
	case len(j.errors) > 0:
		return fmt.Sprintf("Export complete: %d/%d (%d failed), %s",
			len(j.results), len(j.items), len(j.errors), humanize.Bytes(total))
	default:
		return fmt.Sprintf("Export complete: %d files, %s", len(j.results), humanize.Bytes(total))
	}
}
