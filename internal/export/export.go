// Package export renders playlist items to WAV files.
package export

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/loopdeck/internal/audio"
	"github.com/llehouerou/loopdeck/internal/native"
	"github.com/llehouerou/loopdeck/internal/player"
	"github.com/llehouerou/loopdeck/internal/playlist"
	"github.com/llehouerou/loopdeck/internal/sink"
)

// ErrRateMismatch is returned when the engine renders at a rate other than
// the WAV writer's.
var ErrRateMismatch = errors.New("engine sample rate does not match the wave writer")

// Request describes one export.
type Request struct {
	Item playlist.Item
	// Offset is where rendering starts in the item.
	Offset time.Duration
	// Length caps the exported audio. Zero exports to the end of the item.
	Length time.Duration
	// Dest is the output file. Parent directories are created.
	Dest string
}

// Result describes a written file.
type Result struct {
	Path     string
	Bytes    int
	Duration time.Duration
}

// Exporter renders items through the decoding engine into WAV files.
type Exporter struct {
	barrier  *native.Barrier
	readFile func(path string) ([]byte, error)
}

// NewExporter creates a new Exporter. A nil readFile defaults to os.ReadFile.
func NewExporter(barrier *native.Barrier, readFile func(path string) ([]byte, error)) *Exporter {
	if readFile == nil {
		readFile = os.ReadFile
	}
	return &Exporter{barrier: barrier, readFile: readFile}
}

// Export renders req synchronously. A partial file is removed when the
// export fails or ctx is cancelled.
func (e *Exporter) Export(ctx context.Context, req Request) (Result, error) {
	opts, err := e.barrier.QueryOptions(ctx)
	if err != nil {
		return Result{}, err
	}
	if opts.SampleRate != sink.WaveSampleRate {
		return Result{}, errors.Wrapf(ErrRateMismatch, "engine renders at %d Hz, wave expects %d Hz",
			opts.SampleRate, sink.WaveSampleRate)
	}

	data, err := e.readFile(req.Item.Location)
	if err != nil {
		return Result{}, errors.Wrapf(err, "read %s", req.Item.Location)
	}
	session, err := e.barrier.LoadModule(ctx, data, req.Item.SubPath)
	if err != nil {
		return Result{}, err
	}
	defer session.Close()

	if req.Offset > 0 {
		if err := session.SetPosition(req.Offset); err != nil {
			return Result{}, errors.Wrapf(err, "seek to %s", req.Offset)
		}
	}
	var src player.Source = session
	if req.Length > 0 {
		src = player.Limit(session, sink.WaveSampleRate, req.Length)
	}

	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return Result{}, errors.Wrap(err, "create directory")
	}
	wave, err := sink.CreateWave(req.Dest)
	if err != nil {
		return Result{}, err
	}

	p := player.New(src, wave, nil)
	cancelStop := context.AfterFunc(ctx, p.Stop)
	runErr := p.Run()
	cancelStop()
	size := wave.Size()
	releaseErr := wave.Release()

	switch {
	case ctx.Err() != nil:
		err = errors.Wrap(context.Cause(ctx), "export cancelled")
	case runErr != nil:
		err = runErr
	case releaseErr != nil:
		err = releaseErr
	}
	if err != nil {
		if rmErr := os.Remove(req.Dest); rmErr != nil && !os.IsNotExist(rmErr) {
			zlog.Warn().Err(rmErr).Str("path", req.Dest).Msg("export: remove partial file")
		}
		return Result{}, errors.Wrapf(err, "export %s", req.Item.DisplayTitle())
	}

	frames := size / audio.FrameSize
	res := Result{
		Path:     req.Dest,
		Bytes:    size,
		Duration: time.Duration(frames) * time.Second / sink.WaveSampleRate,
	}
	zlog.Info().
		Str("path", res.Path).
		Int("bytes", res.Bytes).
		Dur("duration", res.Duration).
		Msg("export: written")
	return res, nil
}
