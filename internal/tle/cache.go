package tle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrCacheEmpty is returned by LoadLatest when no snapshot exists.
var ErrCacheEmpty = errors.New("no cached TLE snapshot")

const (
	cachePrefix = "tle_"
	cacheSuffix = ".txt"
)

// Cache keeps the most recent raw catalogue snapshots on disk as
// tle_<unix>.txt files.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache creates a Cache that stores files in dir and keeps at most maxFiles.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{dir: dir, maxFiles: maxFiles}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Write saves data as the snapshot for ts and prunes the oldest snapshots
// beyond maxFiles.
func (c *Cache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	path := filepath.Join(c.dir, cachePrefix+strconv.FormatInt(ts.Unix(), 10)+cacheSuffix)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune()
}

// LoadLatest reads the newest snapshot and the time it was written.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	snaps, err := c.snapshots()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(snaps) == 0 {
		return nil, time.Time{}, ErrCacheEmpty
	}

	latest := snaps[len(snaps)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.ts, nil
}

type snapshot struct {
	name string
	ts   time.Time
}

// snapshots lists cache files oldest first.
func (c *Cache) snapshots() ([]snapshot, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var snaps []snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stem, ok := strings.CutPrefix(e.Name(), cachePrefix)
		if !ok {
			continue
		}
		stem, ok = strings.CutSuffix(stem, cacheSuffix)
		if !ok {
			continue
		}
		unix, err := strconv.ParseInt(stem, 10, 64)
		if err != nil {
			continue
		}
		snaps = append(snaps, snapshot{name: e.Name(), ts: time.Unix(unix, 0)})
	}

	slices.SortFunc(snaps, func(a, b snapshot) int { return a.ts.Compare(b.ts) })
	return snaps, nil
}

func (c *Cache) prune() error {
	snaps, err := c.snapshots()
	if err != nil {
		return err
	}
	if len(snaps) <= c.maxFiles {
		return nil
	}

	for _, s := range snaps[:len(snaps)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, s.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", s.name, err)
		}
	}
	return nil
}
