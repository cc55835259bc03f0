package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds configuration for RedisStore.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RedisStore keeps the ledger under <prefix>:ledger with a monotonically
// increasing revision counter under <prefix>:revision. Artifacts live in two
// hashes keyed by file name.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a store backed by Redis. It does not dial.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "signup-calendar"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) ledgerKey() string    { return s.prefix + ":ledger" }
func (s *RedisStore) revisionKey() string  { return s.prefix + ":revision" }
func (s *RedisStore) artifactsKey() string { return s.prefix + ":artifacts" }
func (s *RedisStore) metaKey() string      { return s.prefix + ":artifacts:meta" }

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Load reads the ledger and its revision in one round trip.
func (s *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	vals, err := s.client.MGet(ctx, s.ledgerKey(), s.revisionKey()).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis load: %w", err)
	}
	data, ok := vals[0].(string)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	revision, _ := vals[1].(string)
	if revision == "" {
		// ledger written by hand without a counter
		revision = "0"
	}
	return Snapshot{Data: []byte(data), Revision: revision}, nil
}

// Save replaces the ledger inside a WATCH transaction on both keys. State
// exists only while the ledger key does, so an operator deleting it resets
// the store even though the revision counter survives.
func (s *RedisStore) Save(ctx context.Context, data []byte, expectedRevision string) (string, error) {
	var next string
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, s.ledgerKey()).Result()
		if err != nil {
			return err
		}
		exists := n > 0

		counter, err := tx.Get(ctx, s.revisionKey()).Result()
		if errors.Is(err, redis.Nil) {
			counter = ""
		} else if err != nil {
			return err
		}

		current := ""
		if exists {
			current = counter
			if current == "" {
				current = "0"
			}
		}
		if !revisionMatches(expectedRevision, current, exists) {
			return ErrRevisionMismatch
		}

		// keep counting across resets so stale revisions never match again
		c, _ := strconv.Atoi(counter)
		next = strconv.Itoa(c + 1)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.ledgerKey(), data, 0)
			pipe.Set(ctx, s.revisionKey(), next, 0)
			return nil
		})
		return err
	}, s.ledgerKey(), s.revisionKey())

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, ErrRevisionMismatch), errors.Is(err, redis.TxFailedErr):
		return "", ErrRevisionMismatch
	default:
		return "", fmt.Errorf("redis save: %w", err)
	}
}

// PutArtifact stores a CSV artifact and its metadata.
func (s *RedisStore) PutArtifact(ctx context.Context, name string, data []byte) error {
	if !ValidArtifactName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	now := s.now().UTC()
	info := ArtifactInfo{Filename: name, Created: now}
	if raw, err := s.client.HGet(ctx, s.metaKey(), name).Result(); err == nil {
		var prev ArtifactInfo
		if json.Unmarshal([]byte(raw), &prev) == nil {
			info.Created = prev.Created
		}
	}
	info.Size = int64(len(data))
	info.Modified = now

	meta, err := json.Marshal(info)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.artifactsKey(), name, data)
		pipe.HSet(ctx, s.metaKey(), name, meta)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put artifact %s: %w", name, err)
	}
	return nil
}

// ListArtifacts returns artifact metadata, newest first.
func (s *RedisStore) ListArtifacts(ctx context.Context) ([]ArtifactInfo, error) {
	all, err := s.client.HGetAll(ctx, s.metaKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list artifacts: %w", err)
	}
	infos := make([]ArtifactInfo, 0, len(all))
	for _, raw := range all {
		var info ArtifactInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			continue
		}
		infos = append(infos, info)
	}
	sortArtifacts(infos)
	return infos, nil
}

// GetArtifact reads a CSV artifact.
func (s *RedisStore) GetArtifact(ctx context.Context, name string) ([]byte, error) {
	if !ValidArtifactName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	data, err := s.client.HGet(ctx, s.artifactsKey(), name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get artifact %s: %w", name, err)
	}
	return data, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
