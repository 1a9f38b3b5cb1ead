package library

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// discoverFiles walks roots and returns the files to probe, in walk order.
// A root naming a file is returned as is, whatever its extension.
func (s *Scanner) discoverFiles(roots []string, report func(ScanProgress)) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	add := func(path string) {
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
		if len(files)%100 == 0 {
			report(ScanProgress{Phase: "discovering", Current: len(files)})
		}
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", root)
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
			// Skip any walk errors - intentionally continuing to scan other paths
			if walkErr != nil {
				return nil //nolint:nilerr // intentionally skipping errors
			}
			if d.IsDir() || !s.accepts(path) {
				return nil
			}
			add(path)
			return nil
		})
	}
	return files, nil
}

func (s *Scanner) accepts(path string) bool {
	_, ok := s.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}
