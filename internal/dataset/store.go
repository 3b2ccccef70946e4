package dataset

import (
	"context"
	"sync/atomic"
	"time"
)

// Transform post-processes a freshly loaded Dataset (cleaning, column selection).
type Transform func(*Dataset) (*Dataset, error)

// Store holds the current Dataset snapshot. Readers get an immutable snapshot;
// Replace swaps it atomically and the last write wins.
type Store struct {
	name    string
	current atomic.Pointer[Dataset]
	loaded  atomic.Pointer[time.Time]
}

// NewStore creates an empty store.
func NewStore(name string) *Store {
	return &Store{name: name}
}

// Name identifies the store in logs and status output.
func (s *Store) Name() string {
	return s.name
}

// Current returns the current snapshot, or nil if nothing was loaded yet.
func (s *Store) Current() *Dataset {
	return s.current.Load()
}

// LoadedAt returns when the current snapshot was stored.
func (s *Store) LoadedAt() (time.Time, bool) {
	t := s.loaded.Load()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// Replace installs ds as the current snapshot.
func (s *Store) Replace(ds *Dataset) {
	now := time.Now()
	s.current.Store(ds)
	s.loaded.Store(&now)
}

// Refresh loads from src, applies transform and replaces the snapshot.
// On error the previous snapshot is kept.
func (s *Store) Refresh(ctx context.Context, src Source, transform Transform) (*Dataset, error) {
	ds, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	if transform != nil {
		ds, err = transform(ds)
		if err != nil {
			return nil, err
		}
	}
	s.Replace(ds)
	return ds, nil
}
