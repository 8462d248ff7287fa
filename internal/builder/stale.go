package builder

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// scanNewer walks root and returns every regular file whose modification
// time is strictly newer than ref, in walk order. Paths matching an exclude
// glob (slash-separated, relative to root) are skipped; excluded directories
// are pruned entirely so a unit's own build output never counts against it.
//
// A missing or unreadable root is an error: the caller declared that tree as
// a source of truth, so its absence is a configuration problem rather than
// "nothing changed".
func scanNewer(root string, ref time.Time, excludes []string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("source tree %s: %w", root, err)
	}

	var newer []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && matchesAny(rel, excludes) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matchesAny(rel, excludes) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(ref) {
			newer = append(newer, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	return newer, nil
}

func matchesAny(rel string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
		// a pattern like "target/**" should also prune the directory itself
		if trimmed, found := strings.CutSuffix(pat, "/**"); found {
			if ok, err := doublestar.Match(trimmed, rel); err == nil && ok {
				return true
			}
		}
	}
	return false
}
