package kv

import "sync"

// MemStore is an in-memory Store for tests.
type MemStore struct {
	sync.RWMutex
	table map[string]string
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{table: make(map[string]string)}
}

func (s *MemStore) Get(key string) (string, bool) {
	s.RLock()
	defer s.RUnlock()
	v, ok := s.table[key]
	return v, ok
}

func (s *MemStore) Set(key, value string) {
	s.Lock()
	defer s.Unlock()
	s.table[key] = value
}

func (s *MemStore) Remove(key string) {
	s.Lock()
	defer s.Unlock()
	delete(s.table, key)
}
