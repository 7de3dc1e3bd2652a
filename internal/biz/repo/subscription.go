package repo

import (
	"context"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
)

// Subscriptions is a whole-registry snapshot
type Subscriptions map[domain.ResourceKey][]domain.Subscriber

// SubscriptionStore persists registry snapshots.
// Save always receives the complete registry.
type SubscriptionStore interface {
	Load(ctx context.Context) (Subscriptions, error)
	Save(ctx context.Context, subs Subscriptions) error
	Close() error
}
