package library

import (
	"context"
	"path"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/loopdeck/internal/playlist"
)

// probeResult holds the outcome of probing one file.
type probeResult struct {
	index int
	items []playlist.Item
	err   error
}

// processFiles probes files in parallel and reassembles the results in
// discovery order.
func (s *Scanner) processFiles(ctx context.Context, files []string, report func(ScanProgress)) (*Result, error) {
	total := len(files)
	workCh := make(chan int, total)
	resultCh := make(chan probeResult, total)

	var wg sync.WaitGroup
	for range min(s.workers, max(total, 1)) {
		wg.Go(func() {
			for i := range workCh {
				if ctx.Err() != nil {
					resultCh <- probeResult{index: i, err: ctx.Err()}
					continue
				}
				items, err := s.probe(ctx, files[i])
				resultCh <- probeResult{index: i, items: items, err: err}
			}
		})
	}

	for i := range files {
		workCh <- i
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	probed := make([]probeResult, total)
	current := 0
	for r := range resultCh {
		probed[r.index] = r
		current++
		report(ScanProgress{Phase: "probing", Current: current, Total: total, CurrentFile: files[r.index]})
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "scan interrupted")
	}

	res := &Result{}
	for i, r := range probed {
		if r.err != nil {
			zlog.Debug().Err(r.err).Str("path", files[i]).Msg("library: skipped")
			res.Skipped = append(res.Skipped, Skipped{Path: files[i], Err: r.err})
			continue
		}
		res.Items = append(res.Items, r.items...)
	}
	return res, nil
}

// probe reads one file and returns an item per playable track.
func (s *Scanner) probe(ctx context.Context, file string) ([]playlist.Item, error) {
	data, err := s.readFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", file)
	}
	candidates, err := s.detect.DetectFormat(ctx, data)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.Newf("no playable track in %s", file)
	}

	var meta trackTags
	if len(candidates) == 1 && candidates[0].SubPath == "" {
		meta, _ = readTags(data)
	}

	items := make([]playlist.Item, 0, len(candidates))
	for _, c := range candidates {
		item := playlist.NewItem(file, c.SubPath)
		item.Format = c.Format
		item.Duration = c.Duration
		item.Title = meta.Title
		item.Author = meta.Author
		if item.Title == "" {
			item.Title = titleFromName(file, c.SubPath)
		}
		items = append(items, item)
	}
	return items, nil
}

// titleFromName derives a title from the entry or file name, without its
// extension.
func titleFromName(file, subPath string) string {
	name := filepath.Base(file)
	if subPath != "" {
		name = path.Base(subPath)
	}
	if ext := path.Ext(name); ext != "" && ext != name {
		name = name[:len(name)-len(ext)]
	}
	return name
}
