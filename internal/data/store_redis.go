package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"
)

// DefaultRedisKey holds the snapshot when the URL names no key
const DefaultRedisKey = "prwatch:subscriptions"

// redisStore keeps the registry snapshot as one JSON value, so several
// relay instances can share it
type redisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a Redis-backed subscription store from a redis:// URL
func NewRedisStore(ctx context.Context, url, key string) (repo.SubscriptionStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if key == "" {
		key = DefaultRedisKey
	}
	return &redisStore{client: client, key: key}, nil
}

// Load reads the snapshot. A missing key is an empty registry.
func (s *redisStore) Load(ctx context.Context) (repo.Subscriptions, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return repo.Subscriptions{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriptions from redis: %w", err)
	}

	subs := repo.Subscriptions{}
	if err := json.Unmarshal(data, &subs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscriptions: %w", err)
	}
	return subs, nil
}

// Save overwrites the snapshot
func (s *redisStore) Save(ctx context.Context, subs repo.Subscriptions) error {
	if subs == nil {
		subs = repo.Subscriptions{}
	}
	data, err := json.Marshal(subs)
	if err != nil {
		return fmt.Errorf("failed to marshal subscriptions: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save subscriptions to redis: %w", err)
	}
	return nil
}

// Close closes the redis client
func (s *redisStore) Close() error {
	return s.client.Close()
}
