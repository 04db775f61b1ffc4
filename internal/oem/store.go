package oem

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current ephemeris dataset.
// Readers load an immutable snapshot without locking; writers are serialized
// and publish a new snapshot with a single pointer swap.
type Store struct {
	dataset atomic.Pointer[Dataset]
	mu      sync.Mutex // serializes Replace and Clear
}

// NewStore creates a Store holding an empty, never-loaded dataset.
func NewStore() *Store {
	s := &Store{}
	s.dataset.Store(&Dataset{
		Header:       Block{},
		Metadata:     Block{},
		Comments:     []string{},
		StateVectors: []StateVector{},
	})
	return s
}

// Snapshot returns the current dataset. It is never nil and must be treated
// as read-only.
func (s *Store) Snapshot() *Dataset {
	return s.dataset.Load()
}

// Loaded reports whether a feed document has ever been published.
func (s *Store) Loaded() bool {
	return !s.dataset.Load().FetchedAt.IsZero()
}

// Replace parses raw and, on success, atomically swaps it in. On a parse
// failure the current dataset is left untouched.
func (s *Store) Replace(raw []byte, source string, fetchedAt time.Time) (*Dataset, error) {
	ds, err := ParseBytes(raw)
	if err != nil {
		return nil, err
	}
	ds.Source = source
	ds.FetchedAt = fetchedAt

	s.mu.Lock()
	s.dataset.Store(ds)
	s.mu.Unlock()
	return ds, nil
}

// Clear atomically publishes a copy of the current dataset with no state
// vectors. Header, metadata and comments are preserved.
func (s *Store) Clear() *Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := s.dataset.Load().withoutStateVectors()
	s.dataset.Store(cleared)
	return cleared
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds.FetchedAt.IsZero() {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}
