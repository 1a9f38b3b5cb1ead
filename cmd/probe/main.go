// Probe prints the tracks the decoding engine finds in files and archives.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"

	"github.com/llehouerou/loopdeck/internal/codec"
	"github.com/llehouerou/loopdeck/internal/errmsg"
	"github.com/llehouerou/loopdeck/internal/library"
	"github.com/llehouerou/loopdeck/internal/native"
	"github.com/llehouerou/loopdeck/internal/playlist"
)

var (
	app     = kingpin.New("probe", "Print the playable tracks found in files and archives")
	paths   = app.Arg("paths", "Files or directories to probe").Required().Strings()
	rate    = app.Flag("rate", "Engine output sample rate").Default("44100").Int()
	formats = app.Flag("format", "Restrict to a format (repeatable)").Strings()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	slot := native.NewSlot()
	slot.Initialize(codec.Loader(codec.Options{SampleRate: *rate, Formats: *formats}))
	barrier := native.NewBarrier(slot)

	res, err := library.NewScanner(barrier, library.Options{}).Scan(context.Background(), *paths, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(errmsg.OpEngineDetect, err))
		os.Exit(1)
	}

	var last string
	for _, item := range res.Items {
		if item.Location != last {
			last = item.Location
			printFile(item.Location)
		}
		printTrack(item)
	}
	for _, s := range res.Skipped {
		fmt.Printf("%s: skipped: %v\n", s.Path, s.Err)
	}
	fmt.Printf("\n%d tracks, %d skipped\n", len(res.Items), len(res.Skipped))
}

func printFile(path string) {
	size := ""
	if info, err := os.Stat(path); err == nil {
		size = " (" + humanize.Bytes(uint64(info.Size())) + ")" //nolint:gosec // size is never negative
	}
	fmt.Printf("%s%s\n", path, size)
}

func printTrack(item playlist.Item) {
	name := item.SubPath
	if name == "" {
		name = filepath.Base(item.Location)
	}
	fmt.Printf("  %-40s %-5s %8s  %s\n", name, item.Format, item.Duration.Round(time.Millisecond), item.DisplayTitle())
}
