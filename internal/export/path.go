package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/llehouerou/loopdeck/internal/playlist"
)

const waveExt = ".wav"

// OutputPath returns the file an item exports to inside dir:
// "Author - Title.wav", or "Title.wav" without an author.
func OutputPath(dir string, item playlist.Item) string {
	title := item.Title
	if title == "" {
		title = item.DisplayTitle()
		if ext := filepath.Ext(title); ext != "" && ext != title {
			title = strings.TrimSuffix(title, ext)
		}
	}
	title = sanitizeFilename(title)
	name := title
	if item.Author != "" {
		name = fmt.Sprintf("%s - %s", sanitizeFilename(item.Author), title)
	}
	return filepath.Join(dir, name+waveExt)
}

// uniquePath suffixes p with a counter when it was already handed out.
func uniquePath(used map[string]int, p string) string {
	n := used[p]
	used[p] = n + 1
	if n == 0 {
		return p
	}
	ext := filepath.Ext(p)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(p, ext), n+1, ext)
}

// sanitizeFilename replaces illegal characters for FAT32 compatibility.
func sanitizeFilename(s string) string {
	// Characters not allowed in FAT32: / \ : * ? " < > |
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"\"", "-",
		"<", "-",
		">", "-",
		"|", "-",
	)
	result := strings.TrimSpace(replacer.Replace(s))
	if result == "" {
		result = "untitled"
	}

	// Truncate to 200 chars for FAT32 safety
	if len(result) > 200 {
		result = result[:200]
	}

	return result
}
