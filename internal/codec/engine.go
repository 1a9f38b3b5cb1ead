// Package codec implements the decoding engine behind the native barrier
// with pure Go decoders.
package codec

import (
	"bytes"
	"io"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/loopdeck/internal/audio"
	"github.com/llehouerou/loopdeck/internal/native"
)

// Supported format identifiers.
const (
	FormatWAV  = "wav"
	FormatFLAC = "flac"
	FormatMP3  = "mp3"
	FormatZIP  = "zip"
)

// ErrUnsupported is returned for data no enabled decoder recognizes.
var ErrUnsupported = errors.New("unsupported format")

// Options configures the engine.
type Options struct {
	// SampleRate is the output rate; sources at other rates are resampled.
	SampleRate int
	// ResampleQuality is passed to beep.Resample (1..6).
	ResampleQuality int
	// Formats restricts the enabled formats. Empty enables all of them.
	Formats []string
}

type decodeFunc func(r io.Reader) (beep.StreamSeekCloser, beep.Format, error)

type decoder struct {
	id          string
	description string
	extensions  []string
	decode      decodeFunc
}

var decoders = []decoder{
	{
		id:          FormatWAV,
		description: "RIFF/WAVE PCM",
		extensions:  []string{".wav", ".wave"},
		decode:      wav.Decode,
	},
	{
		id:          FormatFLAC,
		description: "Free Lossless Audio Codec",
		extensions:  []string{".flac"},
		decode:      flac.Decode,
	},
	{
		id:          FormatMP3,
		description: "MPEG-1/2 Layer III",
		extensions:  []string{".mp3"},
		decode:      decodeMP3,
	},
}

var containers = []native.Capability{
	{
		Kind:        native.KindContainer,
		ID:          FormatZIP,
		Description: "ZIP archive",
		Extensions:  []string{".zip"},
	},
}

// Engine decodes WAV, FLAC and MP3 data and flattens ZIP archives.
type Engine struct {
	opts Options
}

var _ native.Engine = (*Engine)(nil)

// New validates opts and returns an engine.
func New(opts Options) (*Engine, error) {
	if opts.SampleRate <= 0 {
		return nil, errors.Newf("invalid sample rate %d", opts.SampleRate)
	}
	if opts.ResampleQuality == 0 {
		opts.ResampleQuality = 4
	}
	if opts.ResampleQuality < 1 || opts.ResampleQuality > 6 {
		return nil, errors.Newf("invalid resample quality %d", opts.ResampleQuality)
	}
	for _, f := range opts.Formats {
		if !known(f) {
			return nil, errors.Newf("unknown format %q", f)
		}
	}
	return &Engine{opts: opts}, nil
}

// Loader returns a native.Loader that builds an engine from opts.
func Loader(opts Options) native.Loader {
	return func() (native.Engine, error) {
		e, err := New(opts)
		if err != nil {
			return nil, errors.Wrap(err, "codec engine")
		}
		zlog.Info().
			Int("sample_rate", opts.SampleRate).
			Strs("formats", e.enabledFormats()).
			Msg("codec: engine loaded")
		return e, nil
	}
}

func known(id string) bool {
	if id == FormatZIP {
		return true
	}
	return slices.ContainsFunc(decoders, func(d decoder) bool { return d.id == id })
}

func (e *Engine) enabled(id string) bool {
	return len(e.opts.Formats) == 0 || slices.Contains(e.opts.Formats, id)
}

func (e *Engine) enabledFormats() []string {
	var out []string
	for _, d := range decoders {
		if e.enabled(d.id) {
			out = append(out, d.id)
		}
	}
	if e.enabled(FormatZIP) {
		out = append(out, FormatZIP)
	}
	return out
}

func (e *Engine) decoderFor(id string) (decoder, bool) {
	if !e.enabled(id) {
		return decoder{}, false
	}
	i := slices.IndexFunc(decoders, func(d decoder) bool { return d.id == id })
	if i < 0 {
		return decoder{}, false
	}
	return decoders[i], true
}

// DetectFormat lists the playable tracks in data. A ZIP archive yields one
// candidate per playable entry; archives inside archives are not descended.
func (e *Engine) DetectFormat(data []byte) ([]native.Candidate, error) {
	id := sniff(data)
	if id == FormatZIP {
		if !e.enabled(FormatZIP) {
			return nil, errors.Wrap(ErrUnsupported, FormatZIP)
		}
		return e.detectArchive(data)
	}
	c, err := e.detectTrack(data, id)
	if err != nil {
		return nil, err
	}
	return []native.Candidate{c}, nil
}

func (e *Engine) detectTrack(data []byte, id string) (native.Candidate, error) {
	s, err := e.open(data, id)
	if err != nil {
		return native.Candidate{}, err
	}
	defer func() { _ = s.Close() }()
	return native.Candidate{Format: id, Duration: s.Duration()}, nil
}

// LoadModule opens a decode session. subPath names an archive entry.
func (e *Engine) LoadModule(data []byte, subPath string) (native.Session, error) {
	id := sniff(data)
	if id == FormatZIP {
		if !e.enabled(FormatZIP) {
			return nil, errors.Wrap(ErrUnsupported, FormatZIP)
		}
		if subPath == "" {
			return nil, errors.New("archive entry required")
		}
		entry, err := readEntry(data, subPath)
		if err != nil {
			return nil, err
		}
		return e.open(entry, sniff(entry))
	}
	if subPath != "" {
		return nil, errors.Newf("%s data has no entry %q", id, subPath)
	}
	return e.open(data, id)
}

func (e *Engine) open(data []byte, id string) (*session, error) {
	d, ok := e.decoderFor(id)
	if !ok {
		if id == "" {
			return nil, ErrUnsupported
		}
		return nil, errors.Wrap(ErrUnsupported, id)
	}
	stream, format, err := d.decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", id)
	}
	return newSession(stream, format, e.opts.SampleRate, e.opts.ResampleQuality), nil
}

// EnumerateCapabilities reports the enabled decoders and containers.
func (e *Engine) EnumerateCapabilities(visit func(native.Capability)) {
	for _, d := range decoders {
		if !e.enabled(d.id) {
			continue
		}
		visit(native.Capability{
			Kind:        native.KindDecoder,
			ID:          d.id,
			Description: d.description,
			Extensions:  slices.Clone(d.extensions),
		})
	}
	for _, c := range containers {
		if e.enabled(c.ID) {
			c.Extensions = slices.Clone(c.Extensions)
			visit(c)
		}
	}
}

// QueryOptions returns the options the engine was built with.
func (e *Engine) QueryOptions() native.Options {
	return native.Options{
		SampleRate:      e.opts.SampleRate,
		Channels:        audio.Channels,
		ResampleQuality: e.opts.ResampleQuality,
		Formats:         e.enabledFormats(),
	}
}
