package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// FindByPattern returns the regular files in dir whose names match the glob
// pattern, sorted by name. Office lock files ("~$...") are skipped. A missing
// dir yields no matches rather than an error.
func FindByPattern(dir, pattern string) ([]FileInfo, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
	}

	var found []FileInfo
	for _, match := range matches {
		name := filepath.Base(match)
		if strings.HasPrefix(name, "~$") {
			continue
		}
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		found = append(found, FileInfo{
			Path:    match,
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Name < found[j].Name
	})
	return found, nil
}

// FindFirst returns the first match of FindByPattern, or false when nothing
// matches.
func FindFirst(dir, pattern string) (FileInfo, bool, error) {
	found, err := FindByPattern(dir, pattern)
	if err != nil || len(found) == 0 {
		return FileInfo{}, false, err
	}
	return found[0], true, nil
}
