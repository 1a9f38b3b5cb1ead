package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/llehouerou/loopdeck/internal/config"
	"github.com/llehouerou/loopdeck/internal/errmsg"
	"github.com/llehouerou/loopdeck/internal/export"
	"github.com/llehouerou/loopdeck/internal/library"
	"github.com/llehouerou/loopdeck/internal/sink"
)

func runExport(cfg *config.Config) error {
	cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The wave writer only takes 44.1 kHz, whatever the device runs at.
	barrier := newBarrier(cfg, sink.WaveSampleRate)

	scanner := library.NewScanner(barrier, library.Options{Extensions: cfg.Library.Extensions})
	items, err := scanner.ScanItems(ctx, absPaths(*exportPaths)...)
	if err != nil {
		return errors.Wrap(err, string(errmsg.OpLibraryScan))
	}

	job := export.NewJob(*exportOut, items, *exportLength)
	job.Run(ctx, export.NewExporter(barrier, nil), func(current, total int) {
		fmt.Printf("\r[%d/%d]", current, total)
	})
	fmt.Println()

	for _, r := range job.Results() {
		fmt.Printf("  %s  %s  %s\n", r.Path, humanize.Bytes(uint64(r.Bytes)), r.Duration.Round(time.Millisecond))
	}
	for _, e := range job.Errors() {
		fmt.Println(errmsg.FormatWith(errmsg.OpExport, e.Item.DisplayTitle(), e.Err))
	}
	fmt.Println(job.Summary())

	if !job.IsCanceled() && len(job.Results()) == 0 {
		return errors.New("nothing exported")
	}
	return nil
}
