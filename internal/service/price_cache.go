package service

import (
	"context"
	"sync"
	"time"
)

// PriceCacheStore holds serialized price aggregations keyed by product.
// Implementations are safe for concurrent use.
//
// Every Invalidate advances the product's generation. Set only stores a
// value for the generation it was computed under, so an aggregation read
// before a concurrent submission can never be cached after it.
type PriceCacheStore interface {
	Backend() string
	Generation(ctx context.Context, productID uint) (uint64, error)
	Get(ctx context.Context, productID uint) ([]byte, bool, error)
	Set(ctx context.Context, productID uint, generation uint64, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, productID uint) error
}

type NoopPriceCacheStore struct{}

func NewNoopPriceCacheStore() *NoopPriceCacheStore {
	return &NoopPriceCacheStore{}
}

func (s *NoopPriceCacheStore) Backend() string { return "noop" }

func (s *NoopPriceCacheStore) Generation(context.Context, uint) (uint64, error) {
	return 0, nil
}

func (s *NoopPriceCacheStore) Get(context.Context, uint) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *NoopPriceCacheStore) Set(context.Context, uint, uint64, []byte, time.Duration) error {
	return nil
}

func (s *NoopPriceCacheStore) Invalidate(context.Context, uint) error {
	return nil
}

type priceCacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

type InMemoryPriceCacheStore struct {
	mu          sync.RWMutex
	store       map[uint]priceCacheEntry
	generations map[uint]uint64
	now         func() time.Time
}

func NewInMemoryPriceCacheStore() *InMemoryPriceCacheStore {
	return &InMemoryPriceCacheStore{
		store:       make(map[uint]priceCacheEntry),
		generations: make(map[uint]uint64),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryPriceCacheStore) Backend() string { return "memory" }

func (s *InMemoryPriceCacheStore) Generation(_ context.Context, productID uint) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[productID], nil
}

func (s *InMemoryPriceCacheStore) Get(_ context.Context, productID uint) ([]byte, bool, error) {
	now := s.now()
	s.mu.RLock()
	entry, ok := s.store[productID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if now.After(entry.expiresAt) {
		s.mu.Lock()
		if current, ok := s.store[productID]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(s.store, productID)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), entry.payload...), true, nil
}

func (s *InMemoryPriceCacheStore) Set(_ context.Context, productID uint, generation uint64, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[productID] != generation {
		return nil
	}
	s.store[productID] = priceCacheEntry{
		payload:   append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *InMemoryPriceCacheStore) Invalidate(_ context.Context, productID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[productID]++
	delete(s.store, productID)
	return nil
}
