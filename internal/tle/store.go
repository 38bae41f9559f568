package tle

import (
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current catalogue.
type Store struct {
	dataset atomic.Pointer[Dataset]
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Set atomically replaces the current dataset.
func (s *Store) Set(ds *Dataset) {
	s.dataset.Store(ds)
}

// Lookup finds a satellite in the current dataset.
func (s *Store) Lookup(noradID int) (Entry, bool) {
	return s.dataset.Load().Lookup(noradID)
}

// Ready reports whether a non-empty dataset is loaded.
func (s *Store) Ready() bool {
	ds := s.dataset.Load()
	return ds != nil && len(ds.Satellites) > 0
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}
