package tle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/star/groundtrack/internal/metrics"
)

// Loader fills a Store from a local file, the on-disk cache, or the remote
// fetcher. Any of fetcher and cache may be nil.
type Loader struct {
	store   *Store
	fetcher *Fetcher
	cache   *Cache
	logger  *slog.Logger

	mu sync.Mutex // serializes refreshes
}

// NewLoader creates a Loader.
func NewLoader(store *Store, fetcher *Fetcher, cache *Cache, logger *slog.Logger) *Loader {
	return &Loader{store: store, fetcher: fetcher, cache: cache, logger: logger}
}

// LoadFile installs the catalogue held in a local file.
func (l *Loader) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading TLE file: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading TLE file: %w", err)
	}
	return l.install(data, "file:"+path, info.ModTime())
}

// LoadCache installs the newest cached snapshot.
func (l *Loader) LoadCache() error {
	if l.cache == nil {
		return ErrCacheEmpty
	}
	data, ts, err := l.cache.LoadLatest()
	if err != nil {
		return err
	}
	return l.install(data, "cache", ts)
}

// Refresh fetches the remote catalogue, caches it and installs it. The
// current dataset is kept if the fetch or parse fails.
func (l *Loader) Refresh(ctx context.Context) error {
	if l.fetcher == nil {
		return fmt.Errorf("TLE fetching is disabled")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	data, err := l.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	fetchedAt := time.Now().UTC()

	if err := l.install(data, l.fetcher.SourceURL(), fetchedAt); err != nil {
		return err
	}

	if l.cache != nil {
		if err := l.cache.Write(data, fetchedAt); err != nil {
			l.logger.Warn("failed to write TLE cache", "dir", l.cache.Dir(), "error", err)
		}
	}

	l.logger.Info("TLE dataset refreshed",
		"source", l.fetcher.SourceURL(),
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Run refreshes every interval and keeps the age gauge current until ctx is
// done.
func (l *Loader) Run(ctx context.Context, interval time.Duration) {
	refresh := time.NewTicker(interval)
	defer refresh.Stop()
	age := time.NewTicker(10 * time.Second)
	defer age.Stop()

	for {
		select {
		case <-refresh.C:
			if err := l.Refresh(ctx); err != nil {
				l.logger.Warn("TLE refresh failed", "error", err)
			}
		case <-age.C:
			if a := l.store.AgeSeconds(); a >= 0 {
				metrics.SetTLEDatasetAge(a)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (l *Loader) install(data []byte, source string, ts time.Time) error {
	entries, err := Parse(bytes.NewReader(data), l.logger)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: no satellites in %s", ErrFormat, source)
	}

	ds := NewDataset(source, ts, entries)
	l.store.Set(ds)
	metrics.SetTLEDatasetCount(len(entries))
	metrics.SetTLEDatasetAge(l.store.AgeSeconds())

	l.logger.Info("loaded TLE dataset",
		"source", source,
		"count", len(entries),
		"epoch_min", ds.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", ds.EpochRange.Max.Format(time.RFC3339),
	)
	return nil
}
