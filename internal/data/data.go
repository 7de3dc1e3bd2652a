package data

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"
)

// Repositories contains all repositories
type Repositories struct {
	Chat          repo.ChatRepo
	Subscriptions repo.SubscriptionStore
}

// NewRepositories creates all repositories
func NewRepositories(ctx context.Context, chat repo.ChatRepo, subscriptionsPath string) (*Repositories, error) {
	store, err := NewSubscriptionStore(ctx, subscriptionsPath)
	if err != nil {
		return nil, err
	}
	return &Repositories{
		Chat:          chat,
		Subscriptions: store,
	}, nil
}

// Close releases the subscription store
func (r *Repositories) Close() error {
	return r.Subscriptions.Close()
}

// NewSubscriptionStore picks a store from the location:
// redis:// and rediss:// URLs use Redis, .db/.sqlite files use SQLite,
// anything else is a JSON or YAML file.
func NewSubscriptionStore(ctx context.Context, location string) (repo.SubscriptionStore, error) {
	if location == "" {
		return nil, errors.New("subscription store location is empty")
	}

	if strings.HasPrefix(location, "redis://") || strings.HasPrefix(location, "rediss://") {
		return NewRedisStore(ctx, location, DefaultRedisKey)
	}

	switch strings.ToLower(filepath.Ext(location)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLiteStore(location)
	default:
		return NewFileStore(location)
	}
}
