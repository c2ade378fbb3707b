package repository

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrResultNotFound 结果不存在、已过期或已被下载
var ErrResultNotFound = errors.New("result not found")

// ResultStore holds rendered results until they are downloaded once.
type ResultStore interface {
	Save(ctx context.Context, id string, data []byte, ttl time.Duration) error
	// Take returns the result and removes it.
	Take(ctx context.Context, id string) ([]byte, error)
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryResultStore 进程内结果存储
type MemoryResultStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryResultStore 创建进程内结果存储
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryResultStore) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.entries[id] = memoryEntry{data: cp, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryResultStore) Take(ctx context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrResultNotFound
	}
	delete(s.entries, id)
	return e.data, nil
}

// Len 当前未过期的结果数
func (s *MemoryResultStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge()
	return len(s.entries)
}

// purge drops expired entries; s.mu must be held.
func (s *MemoryResultStore) purge() {
	now := s.now()
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, id)
		}
	}
}
