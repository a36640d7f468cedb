package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GoCodeAlone/migrate/migration"
)

// DefaultRedisKey is the Redis key holding the ledger when none is
// configured.
const DefaultRedisKey = "migrate:records"

// RedisClient is the subset of go-redis client methods used by RedisStore.
// Keeping it as an interface enables mocking in tests.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisStore persists the ledger as a single JSON value under one key. The
// engine's full-rewrite Save maps directly onto one SET, so readers always
// observe a complete snapshot.
type RedisStore struct {
	client RedisClient
	key    string
}

// NewRedisStore creates a RedisStore on client using key, defaulting to
// DefaultRedisKey. The store takes ownership of client; Close closes it.
func NewRedisStore(client RedisClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) ([]migration.Record, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger key %s: %w", s.key, err)
	}
	var records []migration.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse ledger key %s: %w", s.key, err)
	}
	return records, nil
}

func (s *RedisStore) Save(ctx context.Context, records []migration.Record) error {
	if records == nil {
		records = []migration.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set ledger key %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
