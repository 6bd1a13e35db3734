package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each document as a plain string value under prefix+name.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "doc:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Read(ctx context.Context, name string, dst any) (bool, error) {
	body, err := s.rdb.Get(ctx, s.prefix+name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("read document: %w", err)
	}
	return true, decode(name, body, dst)
}

func (s *RedisStore) Write(ctx context.Context, name string, src any) error {
	body, err := encode(name, src)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.prefix+name, body, 0).Err(); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}
