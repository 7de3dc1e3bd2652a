package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"
	"github.com/DevRickLin/prwatch-relay/internal/metrics"
	"github.com/DevRickLin/prwatch-relay/internal/pkg/log"
)

// ErrPersist is returned when a mutation was applied in memory but the
// snapshot could not be saved
var ErrPersist = errors.New("persist subscriptions")

// Watch is one resource key and its subscribers
type Watch struct {
	Key         domain.ResourceKey  `json:"key"`
	Subscribers []domain.Subscriber `json:"subscribers"`
}

// SubscriptionRegistry maps resource keys to their subscribers.
//
// Subscribers keep insertion order and the same user may appear more than
// once under a key. A key whose last subscriber is removed is deleted.
// Every mutation saves a full snapshot while still holding the write lock.
type SubscriptionRegistry struct {
	store  repo.SubscriptionStore
	logger zerolog.Logger

	mu   sync.RWMutex
	subs repo.Subscriptions
}

// NewSubscriptionRegistry loads the registry from store
func NewSubscriptionRegistry(ctx context.Context, store repo.SubscriptionStore) (*SubscriptionRegistry, error) {
	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}

	subs := make(repo.Subscriptions, len(loaded))
	for key, list := range loaded {
		if key == "" || len(list) == 0 {
			continue
		}
		subs[key] = append([]domain.Subscriber(nil), list...)
	}

	r := &SubscriptionRegistry{
		store:  store,
		logger: log.Component("registry"),
		subs:   subs,
	}
	r.logger.Info().Int("keys", len(subs)).Msg("subscriptions loaded")
	return r, nil
}

// ListFor returns the subscribers of key. Subscribers follow the resource
// across channels, so channel does not narrow the result.
func (r *SubscriptionRegistry) ListFor(key domain.ResourceKey, channel string) []domain.Subscriber {
	if key == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.subs[key]
	if len(list) == 0 {
		return nil
	}

	r.logger.Debug().Str(log.FieldKey, string(key)).Str(log.FieldChannel, channel).Int("subscribers", len(list)).Msg("listing subscribers")
	return append([]domain.Subscriber(nil), list...)
}

// Add appends sub to key's subscribers
func (r *SubscriptionRegistry) Add(ctx context.Context, key domain.ResourceKey, sub domain.Subscriber) error {
	if key == "" {
		return fmt.Errorf("add subscriber: empty key: %w", domain.ErrMalformedEvent)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs[key] = append(r.subs[key], sub)
	metrics.SubscriptionOps.WithLabelValues("add").Inc()
	r.logger.Info().Str(log.FieldKey, string(key)).Str(log.FieldUser, sub.UserID).Str(log.FieldChannel, sub.ChannelID).Msg("adding subscriber")

	return r.persistLocked(ctx)
}

// Remove drops every subscription userID holds on key and reports how many
// were removed. Removing nothing leaves the registry and the store untouched.
func (r *SubscriptionRegistry) Remove(ctx context.Context, key domain.ResourceKey, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.subs[key]
	if !ok {
		r.logger.Info().Str(log.FieldKey, string(key)).Str(log.FieldUser, userID).Int("removed", 0).Msg("removing subscriber")
		return 0, nil
	}

	kept := make([]domain.Subscriber, 0, len(list))
	for _, s := range list {
		if s.UserID != userID {
			kept = append(kept, s)
		}
	}
	removed := len(list) - len(kept)
	r.logger.Info().Str(log.FieldKey, string(key)).Str(log.FieldUser, userID).Int("removed", removed).Msg("removing subscriber")
	if removed == 0 {
		return 0, nil
	}

	if len(kept) == 0 {
		delete(r.subs, key)
	} else {
		r.subs[key] = kept
	}
	metrics.SubscriptionOps.WithLabelValues("remove").Inc()

	return removed, r.persistLocked(ctx)
}

// Watches returns every watched key with its subscribers, sorted by key
func (r *SubscriptionRegistry) Watches() []Watch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	watches := make([]Watch, 0, len(r.subs))
	for key, list := range r.subs {
		watches = append(watches, Watch{
			Key:         key,
			Subscribers: append([]domain.Subscriber(nil), list...),
		})
	}
	sort.Slice(watches, func(i, j int) bool { return watches[i].Key < watches[j].Key })
	return watches
}

// Len returns the number of watched keys
func (r *SubscriptionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func (r *SubscriptionRegistry) persistLocked(ctx context.Context) error {
	snapshot := make(repo.Subscriptions, len(r.subs))
	for key, list := range r.subs {
		snapshot[key] = append([]domain.Subscriber(nil), list...)
	}
	if err := r.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}
