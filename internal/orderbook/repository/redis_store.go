package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "obid:result:"

// RedisResultStore 基于 Redis 的结果存储，TTL 由 Redis 负责
type RedisResultStore struct {
	rdb *redis.Client
}

func NewRedisResultStore(rdb *redis.Client) *RedisResultStore {
	return &RedisResultStore{rdb: rdb}
}

func (s *RedisResultStore) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, redisKeyPrefix+id, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set result: %w", err)
	}
	return nil
}

func (s *RedisResultStore) Take(ctx context.Context, id string) ([]byte, error) {
	data, err := s.rdb.GetDel(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel result: %w", err)
	}
	return data, nil
}
