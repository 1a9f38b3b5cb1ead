package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/loopdeck/internal/native"
)

var errUndecodable = errors.New("undecodable")

// fakeDetector decodes file contents of the form "tracks:a,b,c" into one
// candidate per name; "single" yields one plain track. Anything else fails.
type fakeDetector struct{}

func (fakeDetector) DetectFormat(_ context.Context, data []byte) ([]native.Candidate, error) {
	s := string(data)
	switch {
	case s == "single":
		return []native.Candidate{{Format: "wav", Duration: time.Second}}, nil
	case strings.HasPrefix(s, "tracks:"):
		var out []native.Candidate
		for _, name := range strings.Split(strings.TrimPrefix(s, "tracks:"), ",") {
			out = append(out, native.Candidate{SubPath: name, Format: "flac", Duration: 2 * time.Second})
		}
		return out, nil
	case s == "empty":
		return nil, nil
	}
	return nil, errUndecodable
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func TestScan_FlattensCompoundFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.wav":       "single",
		"b.zip":       "tracks:disc1/one.flac,disc1/two.flac",
		"c/d.mp3":     "single",
		"notes.txt":   "single",
		"broken.flac": "garbage",
	})

	s := NewScanner(fakeDetector{}, Options{Workers: 3})
	res, err := s.Scan(context.Background(), []string{dir}, nil)
	require.NoError(t, err)

	var got []string
	for _, it := range res.Items {
		got = append(got, filepath.Base(it.Location)+"#"+it.SubPath)
	}
	assert.Equal(t, []string{
		"a.wav#",
		"b.zip#disc1/one.flac",
		"b.zip#disc1/two.flac",
		"d.mp3#",
	}, got)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, filepath.Join(dir, "broken.flac"), res.Skipped[0].Path)
	assert.ErrorIs(t, res.Skipped[0].Err, errUndecodable)
}

func TestScan_ItemFields(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"set.zip": "tracks:intro.flac"})

	s := NewScanner(fakeDetector{}, Options{})
	items, err := s.ScanItems(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, items, 1)

	it := items[0]
	assert.Equal(t, filepath.Join(dir, "set.zip"), it.Location)
	assert.Equal(t, "intro.flac", it.SubPath)
	assert.Equal(t, "flac", it.Format)
	assert.Equal(t, 2*time.Second, it.Duration)
	assert.Equal(t, "intro", it.Title)
	assert.NotEqual(t, uuid.Nil, it.ID)
}

func TestScan_ExplicitFileIgnoresExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"loop.bin": "single"})
	path := filepath.Join(dir, "loop.bin")

	s := NewScanner(fakeDetector{}, Options{})
	items, err := s.ScanItems(context.Background(), path, path)
	require.NoError(t, err)
	assert.Len(t, items, 1, "duplicate roots are probed once")
	assert.Equal(t, "loop", items[0].Title)
}

func TestScan_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.wav": "single", "b.mp3": "single"})

	s := NewScanner(fakeDetector{}, Options{Extensions: []string{"MP3"}})
	items, err := s.ScanItems(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].Title)
}

func TestScan_MissingRoot(t *testing.T) {
	s := NewScanner(fakeDetector{}, Options{})
	_, err := s.Scan(context.Background(), []string{filepath.Join(t.TempDir(), "nope")}, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScanItems_NothingPlayable(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.wav": "garbage", "b.wav": "empty"})

	s := NewScanner(fakeDetector{}, Options{})
	_, err := s.ScanItems(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no playable items")
}

func TestScan_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.wav": "single"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewScanner(fakeDetector{}, Options{})
	_, err := s.Scan(ctx, []string{dir}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScan_ReportsProgressAndCloses(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.wav": "single", "b.wav": "single"})

	progress := make(chan ScanProgress, 16)
	s := NewScanner(fakeDetector{}, Options{})
	_, err := s.Scan(context.Background(), []string{dir}, progress)
	require.NoError(t, err)

	var phases []string
	var last ScanProgress
	for p := range progress {
		phases = append(phases, p.Phase)
		last = p
	}
	assert.Equal(t, "discovering", phases[0])
	assert.Contains(t, phases, "probing")
	assert.Equal(t, ScanProgress{Phase: "done", Current: 2, Total: 2}, last)
}

func TestTitleFromName(t *testing.T) {
	tests := []struct {
		file, sub, want string
	}{
		{"/music/track.flac", "", "track"},
		{"/music/set.zip", "dir/entry.wav", "entry"},
		{"/music/.hidden", "", ".hidden"},
		{"/music/noext", "", "noext"},
	}
	for _, tt := range tests {
		if got := titleFromName(tt.file, tt.sub); got != tt.want {
			t.Errorf("titleFromName(%q, %q) = %q, want %q", tt.file, tt.sub, got, tt.want)
		}
	}
}
