package memory

import (
	"context"
	"sync"

	"legalchat/internal/historystore"
)

// Storage keeps serialized logs in process memory. Nothing survives a restart.
type Storage struct {
	mu     sync.RWMutex
	values map[string][]byte
	saves  int
}

func NewStorage() *Storage { return &Storage{values: make(map[string][]byte)} }

func (s *Storage) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, historystore.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Storage) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), data...)
	s.saves++
	return nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Saves returns how many writes the storage has accepted.
func (s *Storage) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *Storage) Close() error { return nil }
