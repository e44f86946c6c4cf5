package disk

import (
	"cmp"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

type fileInfo struct {
	path    string
	size    int64
	modTime time.Time
}

// scan lists committed entries under root. In-flight temp files are
// skipped so a concurrent Put is never pruned mid-write.
func scan(root string) ([]fileInfo, error) {
	var out []fileInfo
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), "cache-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, fileInfo{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return out, err
}

// prune deletes the oldest entries until the total is at most target.
func prune(root string, target int64) (int64, error) {
	entries, err := scan(root)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.size
	}
	target = max(target, 0)
	if total <= target {
		return 0, nil
	}

	slices.SortFunc(entries, func(a, b fileInfo) int {
		if c := a.modTime.Compare(b.modTime); c != 0 {
			return c
		}
		return cmp.Compare(a.path, b.path)
	})

	var freed int64
	for _, e := range entries {
		if total-freed <= target {
			break
		}
		if err := os.Remove(e.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return freed, err
		}
		freed += e.size
	}
	return freed, nil
}
