// Package main provides the loopdeck entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/loopdeck/internal/codec"
	"github.com/llehouerou/loopdeck/internal/config"
	"github.com/llehouerou/loopdeck/internal/errmsg"
	"github.com/llehouerou/loopdeck/internal/logger"
	"github.com/llehouerou/loopdeck/internal/native"
	"github.com/llehouerou/loopdeck/internal/stderr"
)

var (
	app        = kingpin.New("loopdeck", "Low-latency audio player for loops, tracks and archives")
	configPath = app.Flag("config", "Path to config file").Short('c').String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logFile    = app.Flag("log-file", "Write logs to this file instead of stderr").String()

	// play command (default)
	playCmd       = app.Command("play", "Play files, directories and archives (default)").Default()
	playPaths     = playCmd.Arg("paths", "Files or directories to play; empty resumes the last session").Strings()
	playSequence  = playCmd.Flag("sequence", "Sequence mode: ordered, looped or shuffle").Enum("ordered", "looped", "shuffle")
	playLoopTrack = playCmd.Flag("loop-track", "Replay each item when it ends").Bool()
	playFresh     = playCmd.Flag("fresh", "Ignore the saved session").Bool()

	// export command
	exportCmd    = app.Command("export", "Render items to WAV files")
	exportPaths  = exportCmd.Arg("paths", "Files or directories to export").Required().Strings()
	exportOut    = exportCmd.Flag("out", "Output directory").Short('o').Default(".").String()
	exportLength = exportCmd.Flag("length", "Maximum length of each file, 0 for whole items").Default("30s").Duration()

	// formats command
	formatsCmd = app.Command("formats", "List the formats the decoding engine supports")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, errmsg.Format(errmsg.OpInitialize, err))
		os.Exit(1)
	}
	applyFlags(cfg)

	switch command {
	case playCmd.FullCommand():
		err = runPlay(cfg)
	case exportCmd.FullCommand():
		err = runExport(cfg)
	case formatsCmd.FullCommand():
		err = runFormats(cfg)
	}
	if err != nil {
		zlog.Error().Err(err).Msgf("%s failed", command)
		os.Exit(1)
	}
}

// applyFlags overrides the loaded config with global flags.
func applyFlags(cfg *config.Config) {
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFile != "" {
		cfg.Log.Output = "file"
		cfg.Log.File = *logFile
	}
}

// setupLogging initializes the global logger. With capture, output that
// native libraries write to fd 2 is forwarded to the log until cleanup runs.
func setupLogging(cfg *config.Config, capture bool) (func(), error) {
	if capture {
		if err := stderr.Start(func(line string) {
			zlog.Warn().Str("source", "native").Msg(line)
		}); err != nil {
			fmt.Fprintln(os.Stderr, "stderr capture unavailable:", err)
		}
	}

	lc := logger.Config{
		Output: cfg.Log.Output,
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
	}
	if lc.Output == "stderr" {
		lc.Writer = stderr.Original()
	}
	closer, err := logger.Init(lc)
	if err != nil {
		stderr.Stop()
		return nil, err
	}
	return func() {
		stderr.Stop()
		_ = closer.Close()
	}, nil
}

// newBarrier starts loading a decoding engine rendering at rate and
// returns the barrier guarding it.
func newBarrier(cfg *config.Config, rate int) *native.Barrier {
	slot := native.NewSlot()
	slot.Initialize(codec.Loader(codec.Options{
		SampleRate:      rate,
		ResampleQuality: cfg.Decoder.ResampleQuality,
		Formats:         cfg.Decoder.Formats,
	}))
	return native.NewBarrier(slot)
}

// absPaths makes paths absolute so saved sessions match across working
// directories.
func absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out = append(out, p)
	}
	return out
}

func runFormats(cfg *config.Config) error {
	cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	barrier := newBarrier(cfg, cfg.Audio.SampleRate)

	opts, err := barrier.QueryOptions(ctx)
	if err != nil {
		return errors.Wrap(err, string(errmsg.OpEngineLoad))
	}
	fmt.Printf("Output: %d Hz, %d channels, resample quality %d\n\n",
		opts.SampleRate, opts.Channels, opts.ResampleQuality)

	err = barrier.EnumerateCapabilities(ctx, func(c native.Capability) {
		fmt.Printf("  %-10s %-5s %-28s %s\n",
			c.Kind, c.ID, c.Description, strings.Join(c.Extensions, " "))
	})
	return errors.Wrap(err, string(errmsg.OpEngineList))
}
