package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/sfg-os/starpack/internal/output"
)

// Clean empties the download cache and resets its index. The index
// database itself survives so the next run reuses it.
func (e *Engine) Clean() error {
	var total int64
	var count int
	if e.index != nil {
		if n, err := e.index.Count(); err == nil {
			count = n
		}
		if sz, err := e.index.TotalSize(); err == nil {
			total = sz
		}
	}

	entries, err := os.ReadDir(e.CacheDir())
	if err != nil {
		if os.IsNotExist(err) {
			output.Info("cache is already empty")
			return nil
		}
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "cache.db") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(e.CacheDir(), entry.Name())); err != nil {
			output.Warn("failed to remove %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}

	if e.index != nil {
		if err := e.index.Clear(); err != nil {
			output.Warn("failed to reset cache index: %v", err)
		}
	}

	if count > 0 {
		output.Success("removed %d cached download(s), freeing %s", count, humanize.Bytes(uint64(total)))
	} else {
		output.Success("removed %d cache entry(ies)", removed)
	}
	return nil
}
