// Package library expands files and directories into playlist items.
//
// Every file is probed through the decoding engine, so compound files such
// as archives come back flattened: one item per playable track, each
// carrying the SubPath that selects it.
package library

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/llehouerou/loopdeck/internal/native"
	"github.com/llehouerou/loopdeck/internal/playlist"
)

const defaultWorkers = 8

// DefaultExtensions are the file extensions picked up when walking
// directories, when the scanner is not told otherwise.
var DefaultExtensions = []string{".wav", ".flac", ".mp3", ".zip"}

// Detector lists the playable tracks in raw file data. *native.Barrier
// satisfies it.
type Detector interface {
	DetectFormat(ctx context.Context, data []byte) ([]native.Candidate, error)
}

// ScanProgress reports the progress of a scan.
type ScanProgress struct {
	Phase       string // "discovering", "probing", "done"
	Current     int
	Total       int
	CurrentFile string
}

// Skipped records a file that yielded no item.
type Skipped struct {
	Path string
	Err  error
}

// Result is the outcome of a scan. Items keep discovery order; the tracks
// of one compound file keep the order the engine reported.
type Result struct {
	Items   []playlist.Item
	Skipped []Skipped
}

// Options configures a Scanner.
type Options struct {
	// Extensions filters files found while walking directories. Files
	// named explicitly are always probed.
	Extensions []string
	// Workers bounds concurrent probes.
	Workers int
	// ReadFile loads a file. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// Scanner turns paths into playlist items.
type Scanner struct {
	detect     Detector
	extensions map[string]struct{}
	workers    int
	readFile   func(path string) ([]byte, error)
}

// NewScanner creates a scanner probing files through detect.
func NewScanner(detect Detector, opts Options) *Scanner {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	return &Scanner{
		detect:     detect,
		extensions: set,
		workers:    opts.Workers,
		readFile:   opts.ReadFile,
	}
}

// Scan probes every file under roots. Unreadable or undecodable files are
// reported in Result.Skipped; a root that does not exist fails the scan.
// When progress is not nil it receives updates and is closed on return.
func (s *Scanner) Scan(ctx context.Context, roots []string, progress chan<- ScanProgress) (*Result, error) {
	if progress != nil {
		defer close(progress)
	}
	report := func(p ScanProgress) {
		if progress != nil {
			progress <- p
		}
	}

	report(ScanProgress{Phase: "discovering"})
	files, err := s.discoverFiles(roots, report)
	if err != nil {
		return nil, err
	}

	res, err := s.processFiles(ctx, files, report)
	if err != nil {
		return nil, err
	}

	report(ScanProgress{Phase: "done", Current: len(files), Total: len(files)})
	return res, nil
}

// ScanItems is Scan without progress, returning only the items. It fails
// when nothing playable was found.
func (s *Scanner) ScanItems(ctx context.Context, roots ...string) ([]playlist.Item, error) {
	res, err := s.Scan(ctx, roots, nil)
	if err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		if len(res.Skipped) > 0 {
			return nil, errors.Wrapf(res.Skipped[0].Err, "no playable items in %s", strings.Join(roots, ", "))
		}
		return nil, errors.Newf("no playable items in %s", strings.Join(roots, ", "))
	}
	return res.Items, nil
}
