package store

import (
	"context"
	"fmt"
	"sync"
)

var _ Store = &MemoryStore{}

// MemoryStore holds objects in memory. It's mostly used in tests.
type MemoryStore struct {
	muObjects sync.RWMutex
	objects   map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put stores data under key, replacing any previous object.
func (s *MemoryStore) Put(key string, data []byte) {
	s.muObjects.Lock()
	defer s.muObjects.Unlock()

	s.objects[key] = data
}

func (s *MemoryStore) Read(_ context.Context, key string) ([]byte, error) {
	s.muObjects.RLock()
	defer s.muObjects.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, key)
	}

	return data, nil
}

func (s *MemoryStore) Size(_ context.Context, key string) (int64, error) {
	s.muObjects.RLock()
	defer s.muObjects.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrNotFound, key)
	}

	return int64(len(data)), nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.muObjects.RLock()
	defer s.muObjects.RUnlock()

	_, ok := s.objects[key]

	return ok, nil
}
