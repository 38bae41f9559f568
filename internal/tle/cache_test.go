package tle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheWriteLoadPrune(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tle")
	c := NewCache(dir, 2)

	if _, _, err := c.LoadLatest(); !errors.Is(err, ErrCacheEmpty) {
		t.Fatalf("LoadLatest on empty cache err = %v, want ErrCacheEmpty", err)
	}

	base := time.Unix(1_750_000_000, 0)
	for i, body := range []string{"one", "two", "three"} {
		if err := c.Write([]byte(body), base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("Write(%s): %v", body, err)
		}
	}

	data, ts, err := c.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if string(data) != "three" || !ts.Equal(base.Add(2*time.Hour)) {
		t.Errorf("LoadLatest = %q at %v, want three at %v", data, ts, base.Add(2*time.Hour))
	}

	// Oldest snapshot pruned; stray files ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	snaps, err := c.snapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("kept %d snapshots, want 2", len(snaps))
	}
	if !snaps[0].ts.Equal(base.Add(time.Hour)) {
		t.Errorf("oldest kept snapshot = %v, want %v", snaps[0].ts, base.Add(time.Hour))
	}
}

func TestLoaderRefreshCachesAndInstalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(issTLE + starlinkTLE))
	}))
	defer server.Close()

	store := NewStore()
	cache := NewCache(t.TempDir(), 3)
	loader := NewLoader(store, NewFetcher(server.URL, testLogger), cache, testLogger)

	if store.Ready() {
		t.Fatal("empty store reports ready")
	}
	if err := loader.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !store.Ready() {
		t.Fatal("store not ready after refresh")
	}
	if e, ok := store.Lookup(25544); !ok || e.Name != issName {
		t.Errorf("Lookup(25544) = %+v, %v", e, ok)
	}
	if got := store.Get().Source; got != server.URL {
		t.Errorf("dataset source = %q, want %q", got, server.URL)
	}

	// A fresh store restores the same catalogue from the cache.
	restored := NewStore()
	if err := NewLoader(restored, nil, cache, testLogger).LoadCache(); err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if n := len(restored.Get().Satellites); n != 2 {
		t.Errorf("restored %d satellites, want 2", n)
	}
	if restored.Get().Source != "cache" {
		t.Errorf("restored source = %q, want cache", restored.Get().Source)
	}
}

func TestLoaderRefreshFailureKeepsDataset(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		w.Write([]byte(issTLE))
	}))
	defer server.Close()

	store := NewStore()
	loader := NewLoader(store, NewFetcher(server.URL, testLogger), nil, testLogger)
	if err := loader.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	first := store.Get()

	status.Store(http.StatusBadGateway)
	if err := loader.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh against 502 succeeded")
	}
	if store.Get() != first {
		t.Error("failed refresh replaced the dataset")
	}
}

func TestLoaderLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogue.tle")
	if err := os.WriteFile(path, []byte(starlinkTLE+issTLE), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore()
	loader := NewLoader(store, nil, nil, testLogger)
	if err := loader.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if _, ok := store.Lookup(44713); !ok {
		t.Error("Lookup(44713) failed after LoadFile")
	}

	empty := filepath.Join(t.TempDir(), "empty.tle")
	if err := os.WriteFile(empty, []byte("\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := loader.LoadFile(empty); !errors.Is(err, ErrFormat) {
		t.Errorf("LoadFile(empty) err = %v, want ErrFormat", err)
	}

	if err := loader.Refresh(context.Background()); err == nil {
		t.Error("Refresh without a fetcher succeeded")
	}
	if err := loader.LoadCache(); !errors.Is(err, ErrCacheEmpty) {
		t.Errorf("LoadCache without a cache err = %v, want ErrCacheEmpty", err)
	}
}
