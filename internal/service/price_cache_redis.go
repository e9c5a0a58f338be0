package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPriceCacheStore keys each aggregation by the product's generation
// counter. Invalidate INCRs the counter, which orphans every entry written
// under an older generation; orphans age out through their TTL.
type RedisPriceCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisPriceCacheStore(client redis.UniversalClient, prefix string) *RedisPriceCacheStore {
	if prefix == "" {
		prefix = "price_cache"
	}
	return &RedisPriceCacheStore{client: client, prefix: prefix}
}

func (s *RedisPriceCacheStore) Backend() string { return "redis" }

func (s *RedisPriceCacheStore) Generation(ctx context.Context, productID uint) (uint64, error) {
	if s.client == nil {
		return 0, nil
	}
	gen, err := s.client.Get(ctx, s.generationKey(productID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return gen, nil
}

func (s *RedisPriceCacheStore) Get(ctx context.Context, productID uint) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, nil
	}
	gen, err := s.Generation(ctx, productID)
	if err != nil {
		return nil, false, err
	}
	value, err := s.client.Get(ctx, s.key(productID, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *RedisPriceCacheStore) Set(ctx context.Context, productID uint, generation uint64, value []byte, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(productID, generation), value, ttl).Err()
}

func (s *RedisPriceCacheStore) Invalidate(ctx context.Context, productID uint) error {
	if s.client == nil {
		return nil
	}
	return s.client.Incr(ctx, s.generationKey(productID)).Err()
}

func (s *RedisPriceCacheStore) key(productID uint, generation uint64) string {
	return fmt.Sprintf("%s:aggregate:%d:g%d", s.prefix, productID, generation)
}

func (s *RedisPriceCacheStore) generationKey(productID uint) string {
	return fmt.Sprintf("%s:generation:%d", s.prefix, productID)
}
