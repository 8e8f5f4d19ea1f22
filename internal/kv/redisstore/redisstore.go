// Package redisstore implements the KVStore port on Redis. Each key is a
// hash with "value" and "meta" fields so body and metadata commit together;
// TTLs map to EXPIRE.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/peterkaminski/textpile/internal/domain"
)

const (
	valueField = "value"
	metaField  = "meta"
)

// Store wraps a Redis client.
type Store struct {
	client *redis.Client
}

// Open connects to Redis at addr and verifies the connection.
func Open(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, domain.StoreError("ping redis "+addr, err)
	}
	return &Store{client: client}, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.HGet(ctx, key, valueField).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.StoreError("redis get "+key, err)
	}
	return []byte(raw), true, nil
}

func (s *Store) GetWithMetadata(ctx context.Context, key string) ([]byte, []byte, bool, error) {
	fields, err := s.client.HMGet(ctx, key, valueField, metaField).Result()
	if err != nil {
		return nil, nil, false, domain.StoreError("redis get "+key, err)
	}
	// Every Put writes the value field, so a nil value means the key is
	// absent (or expired).
	if fields[0] == nil {
		return nil, nil, false, nil
	}
	value := []byte(fields[0].(string))
	var meta []byte
	if fields[1] != nil {
		meta = []byte(fields[1].(string))
	}
	return value, meta, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value, meta []byte, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, valueField, value, metaField, meta)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	} else {
		pipe.Persist(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.StoreError("redis put "+key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return domain.StoreError("redis delete "+key, err)
	}
	return nil
}
