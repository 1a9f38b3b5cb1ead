package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/loopdeck/internal/config"
	"github.com/llehouerou/loopdeck/internal/errmsg"
	"github.com/llehouerou/loopdeck/internal/library"
	"github.com/llehouerou/loopdeck/internal/native"
	"github.com/llehouerou/loopdeck/internal/playback"
	"github.com/llehouerou/loopdeck/internal/player"
	"github.com/llehouerou/loopdeck/internal/playlist"
	"github.com/llehouerou/loopdeck/internal/sink"
	"github.com/llehouerou/loopdeck/internal/state"
)

const (
	seekStep   = 5 * time.Second
	levelBands = 16
)

func runPlay(cfg *config.Config) error {
	cleanup, err := setupLogging(cfg, true)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trackMode, err := playback.ParseTrackMode(cfg.Playback.TrackMode)
	if err != nil {
		return err
	}
	if *playLoopTrack {
		trackMode = playback.TrackLooped
	}
	sequence := cfg.Playback.SequenceMode
	if *playSequence != "" {
		sequence = *playSequence
	}
	navMode, err := playlist.ParseNavigationMode(sequence)
	if err != nil {
		return err
	}

	// Open state manager
	keeper := sessionKeeper{track: trackMode, nav: navMode}
	if store, err := openState(cfg); err != nil {
		zlog.Warn().Err(err).Msg("session store unavailable")
	} else {
		defer store.Close()
		keeper.store = store
	}
	var saved *state.Session
	if cfg.Session.Restore && !*playFresh {
		saved = keeper.load()
	}

	// Determine what to play: arguments > saved session
	paths := absPaths(*playPaths)
	if len(paths) == 0 {
		if saved == nil {
			return errors.New("nothing to play: no paths given and no saved session")
		}
		paths = []string{saved.Location}
	}

	barrier := newBarrier(cfg, cfg.Audio.SampleRate)
	items, err := scan(ctx, cfg, barrier, paths)
	if err != nil {
		return errors.Wrap(err, string(errmsg.OpLibraryScan))
	}
	pl := playlist.NewPlaylist()
	pl.Add(items...)

	seed := cfg.Playback.ShuffleSeed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // not security sensitive
	}
	it := pl.Iterator(navMode, seed)

	out, err := sink.OpenOto(cfg.Audio.SampleRate, cfg.DeviceBuffer())
	if err != nil {
		return errors.Wrap(err, string(errmsg.OpOutputOpen))
	}

	svc := playback.New(barrier, func() (sink.Sink, error) {
		return out.NewSink(cfg.Latency()), nil
	}, playback.Options{TrackMode: trackMode})
	defer svc.Close()

	if idx, pos, ok := resumePoint(pl, saved); ok && it.JumpTo(idx) {
		svc.Restore(it, pos)
		zlog.Info().Str("title", saved.Title).Dur("position", pos).Msg("resuming session")
	} else {
		svc.SetIterator(it)
	}

	sub := svc.Subscribe()
	if err := svc.Start(); err != nil {
		return err
	}
	fmt.Println("Controls: n next, p previous, f/b seek 5s, s sequence mode, v levels, q quit")

	finished := drive(ctx, svc, sub, keeper, readCommands(os.Stdin))
	if mode, ok := svc.SequenceMode(); ok {
		keeper.nav = mode
	}

	snap, ok := svc.Snapshot()
	if err := svc.Stop(); err != nil {
		zlog.Warn().Msg(errmsg.Format(errmsg.OpPlaybackStop, err))
	}
	keeper.flush(context.Background(), snap, ok && !finished)
	return nil
}

func openState(cfg *config.Config) (*state.Manager, error) {
	if cfg.Session.Path != "" {
		return state.OpenPath(cfg.Session.Path)
	}
	return state.Open()
}

func scan(ctx context.Context, cfg *config.Config, barrier *native.Barrier, paths []string) ([]playlist.Item, error) {
	scanner := library.NewScanner(barrier, library.Options{Extensions: cfg.Library.Extensions})

	progress := make(chan library.ScanProgress, 16)
	go func() {
		for p := range progress {
			if p.Phase == "probing" {
				zlog.Debug().
					Int("current", p.Current).
					Int("total", p.Total).
					Str("file", p.CurrentFile).
					Msg("scan")
			}
		}
	}()

	res, err := scanner.Scan(ctx, paths, progress)
	if err != nil {
		return nil, err
	}
	for _, s := range res.Skipped {
		zlog.Warn().Err(s.Err).Str("path", s.Path).Msg("skipped")
	}
	if len(res.Items) == 0 {
		return nil, errors.Newf("no playable items in %s", strings.Join(paths, ", "))
	}
	zlog.Info().Int("items", len(res.Items)).Int("skipped", len(res.Skipped)).Msg("scan complete")
	return res.Items, nil
}

// drive reports playback events and applies user commands until playback
// stops on its own, ctx is done or the user quits. It reports whether
// playback stopped on its own.
func drive(
	ctx context.Context,
	svc playback.Service,
	sub *playback.Subscription,
	keeper sessionKeeper,
	commands <-chan string,
) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-sub.Done:
			return false
		case ev := <-sub.StateChanged:
			if ev.Current == playback.StateStopped {
				return true
			}
			if mode, ok := svc.SequenceMode(); ok {
				keeper.nav = mode
			}
			keeper.schedule(svc.Snapshot())
		case ev := <-sub.ItemChanged:
			fmt.Println("Now playing:", describe(ev.Current))
		case ev := <-sub.Error:
			zlog.Error().Err(ev.Err).Str("location", ev.Location).Msg(ev.Operation)
			fmt.Println(errmsg.FormatWith(errmsg.Op(ev.Operation), ev.Location, ev.Err))
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if apply(svc, cmd) {
				return false
			}
		}
	}
}

// apply runs one control command and reports whether the user asked to
// quit.
func apply(svc playback.Service, cmd string) bool {
	var err error
	switch cmd {
	case "q", "quit":
		return true
	case "n", "next":
		err = svc.Next()
	case "p", "prev":
		err = svc.Prev()
	case "f":
		err = svc.Seek(svc.Position() + seekStep)
	case "b":
		err = svc.Seek(max(svc.Position()-seekStep, 0))
	case "s":
		mode, _ := svc.SequenceMode()
		next := nextSequence(mode)
		if err = svc.SetSequenceMode(next); err == nil {
			fmt.Println("Sequence:", next)
		}
	case "v":
		fmt.Println(levelBars(svc.Spectrum(levelBands)))
	case "":
	default:
		fmt.Printf("unknown command %q\n", cmd)
	}
	if err != nil {
		fmt.Println(err)
	}
	return false
}

// nextSequence cycles ordered, looped and shuffle.
func nextSequence(mode playlist.NavigationMode) playlist.NavigationMode {
	switch mode {
	case playlist.Ordered:
		return playlist.Looped
	case playlist.Looped:
		return playlist.Shuffle
	default:
		return playlist.Ordered
	}
}

var levelGlyphs = []rune(" ▁▂▃▄▅▆▇█")

// levelBars renders band levels as one glyph per band.
func levelBars(levels []int) string {
	var b strings.Builder
	top := len(levelGlyphs) - 1
	for _, l := range levels {
		b.WriteRune(levelGlyphs[min(max(l, 0)*top/player.MaxLevel, top)])
	}
	return b.String()
}

func readCommands(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- strings.ToLower(strings.TrimSpace(sc.Text()))
		}
	}()
	return ch
}

func describe(item playlist.Item) string {
	line := item.DisplayTitle()
	if item.Author != "" {
		line = item.Author + " - " + line
	}
	if item.Duration > 0 {
		line += " [" + item.Duration.Round(time.Second).String() + "]"
	}
	return line
}
