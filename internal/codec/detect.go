package codec

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/loopdeck/internal/native"
)

// maxEntrySize bounds how much of a single archive entry is read into memory.
const maxEntrySize = 256 << 20

// sniff identifies data by its leading bytes. It returns "" when nothing
// matches.
func sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(data, []byte("PK\x03\x04")), bytes.HasPrefix(data, []byte("PK\x05\x06")):
		return FormatZIP
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return ""
	}
}

func (e *Engine) detectArchive(data []byte) ([]native.Candidate, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}

	var out []native.Candidate
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entry, err := readFile(f)
		if err != nil {
			zlog.Debug().Err(err).Str("entry", f.Name).Msg("codec: skipping unreadable entry")
			continue
		}
		id := sniff(entry)
		if id == "" || id == FormatZIP {
			continue
		}
		c, err := e.detectTrack(entry, id)
		if err != nil {
			zlog.Debug().Err(err).Str("entry", f.Name).Msg("codec: skipping undecodable entry")
			continue
		}
		c.SubPath = f.Name
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errors.Wrap(ErrUnsupported, "archive has no playable entries")
	}
	return out, nil
}

func readEntry(data []byte, name string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	clean := path.Clean(strings.TrimPrefix(name, "/"))
	for _, f := range zr.File {
		if path.Clean(f.Name) == clean {
			return readFile(f)
		}
	}
	return nil, errors.Newf("archive has no entry %q", name)
}

func readFile(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxEntrySize {
		return nil, errors.Newf("entry %q too large (%d bytes)", f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "open entry %q", f.Name)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize))
	if err != nil {
		return nil, errors.Wrapf(err, "read entry %q", f.Name)
	}
	return data, nil
}
