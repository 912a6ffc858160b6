package syncmap

import "sync"

// MemStore is an in-memory Store used by tests and dry runs. Load and Save
// copy the mapping, so callers can mutate their view freely.
type MemStore struct {
	mu      sync.Mutex
	mapping map[string]Record

	// Saves counts Save calls; tests use it to observe incremental
	// persistence.
	Saves int
}

func NewMemStore() *MemStore {
	return &MemStore{mapping: map[string]Record{}}
}

func (s *MemStore) Load() (map[string]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Record, len(s.mapping))
	for k, v := range s.mapping {
		out[k] = v
	}
	return out, nil
}

func (s *MemStore) Save(mapping map[string]Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]Record, len(mapping))
	for k, v := range mapping {
		copied[k] = v
	}
	s.mapping = copied
	s.Saves++
	return nil
}

func (s *MemStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapping = map[string]Record{}
	return nil
}
