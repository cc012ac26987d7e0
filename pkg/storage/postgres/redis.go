package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nurturehq/nurture/pkg/analytics"
	"github.com/nurturehq/nurture/pkg/storage"
)

const maxSaveAttempts = 5

// ErrSaveContention is returned when concurrent writers keep racing on a key
var ErrSaveContention = errors.New("snapshot save abandoned after repeated contention")

// NewRedisClient creates a Redis client from config and verifies it responds
func NewRedisClient(config storage.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB > 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// SnapshotStore shares published snapshots through Redis, one key per window.
// A stored snapshot is only replaced by one generated at the same instant or
// later.
type SnapshotStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ analytics.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a store using config's key prefix and TTL
func NewSnapshotStore(client *redis.Client, config storage.Config) *SnapshotStore {
	return &SnapshotStore{
		client: client,
		prefix: config.RedisKeyPrefix,
		ttl:    config.SnapshotTTL,
	}
}

func (s *SnapshotStore) key(w analytics.Window) string {
	return s.prefix + "snapshot:" + string(w)
}

// Save writes snap unless a newer snapshot is already stored
func (s *SnapshotStore) Save(ctx context.Context, snap *analytics.Snapshot) (bool, error) {
	key := s.key(snap.Window)
	data, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	var written bool
	txf := func(tx *redis.Tx) error {
		written = false
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			var stored analytics.Snapshot
			if json.Unmarshal(current, &stored) == nil && stored.GeneratedAt.After(snap.GeneratedAt) {
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			written = true
		}
		return err
	}

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return written, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return false, fmt.Errorf("redis save failed: %w", err)
	}
	return false, ErrSaveContention
}

// Load returns the stored snapshot for w. Undecodable entries are deleted and
// reported as missing.
func (s *SnapshotStore) Load(ctx context.Context, w analytics.Window) (*analytics.Snapshot, error) {
	key := s.key(w)

	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, analytics.ErrSnapshotNotFound
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var snap analytics.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.client.Del(ctx, key)
		return nil, fmt.Errorf("corrupt snapshot for %s: %w", w, analytics.ErrSnapshotNotFound)
	}
	return &snap, nil
}
