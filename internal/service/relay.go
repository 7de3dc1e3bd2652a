package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
	"github.com/DevRickLin/prwatch-relay/internal/biz/usecase"
	"github.com/DevRickLin/prwatch-relay/internal/metrics"
	"github.com/DevRickLin/prwatch-relay/internal/pkg/log"
)

// DefaultWatchReaction is the reaction that toggles a subscription
const DefaultWatchReaction = "eyes"

// Options configures the relay service
type Options struct {
	BotID         string // own bot identity; learned from the transport when empty
	WatchReaction string
}

// RelayService classifies chat events and routes them to subscription
// handling or relay handling. Events are expected one at a time.
type RelayService struct {
	registry *usecase.SubscriptionRegistry
	cache    *usecase.MessageCache
	relayUC  *usecase.RelayUsecase
	logger   zerolog.Logger

	watchReaction string

	mu    sync.RWMutex
	botID string
}

// NewRelayService creates a new relay service
func NewRelayService(
	registry *usecase.SubscriptionRegistry,
	cache *usecase.MessageCache,
	relayUC *usecase.RelayUsecase,
	opts Options,
) *RelayService {
	if opts.WatchReaction == "" {
		opts.WatchReaction = DefaultWatchReaction
	}
	return &RelayService{
		registry:      registry,
		cache:         cache,
		relayUC:       relayUC,
		logger:        log.Component("service"),
		watchReaction: opts.WatchReaction,
		botID:         opts.BotID,
	}
}

// LearnBotID adopts the identity reported by the transport unless one was configured
func (s *RelayService) LearnBotID(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.botID == "" {
		s.botID = id
		s.logger.Info().Str("bot_id", id).Msg("bot identity learned")
	}
}

// BotID returns the identity used to ignore the relay's own messages
func (s *RelayService) BotID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.botID
}

// Process handles one chat event. Malformed events are logged and dropped.
// Returned errors are failed sends or saves for an otherwise valid event.
func (s *RelayService) Process(ctx context.Context, ev *domain.ChatEvent) error {
	if ev == nil {
		return nil
	}
	logger := log.Ctx(ctx)
	metrics.EventsTotal.WithLabelValues(ev.Kind.String()).Inc()

	// 1. Skip housekeeping and our own messages
	if ev.Kind == domain.EventKindHousekeeping {
		s.drop("housekeeping")
		return nil
	}
	if ev.IsFromBot(s.BotID()) {
		s.drop("self")
		return nil
	}

	// 2. Resolve routing fields
	key := domain.ExtractKey(ev)
	userID := ev.ActorID()
	channel := ev.ChannelID()
	if channel == "" {
		s.drop("no_channel")
		logger.Warn().Str("type", ev.Type).Str(log.FieldTimestamp, ev.Timestamp).Msg("event has no channel, dropping")
		return nil
	}

	// 3. Reactions
	if ev.Reaction != "" {
		if userID == "" {
			s.drop("no_user")
			logger.Warn().Str("type", ev.Type).Str(log.FieldChannel, channel).Str("reaction", ev.Reaction).Msg("reaction has no user, dropping")
			return nil
		}
		return s.handleReaction(ctx, ev, userID, channel)
	}

	// 4. Plain messages
	if key != "" {
		s.cache.Put(ev.Timestamp, ev)
	}
	return s.handleRelay(ctx, ev, key, channel)
}

func (s *RelayService) handleReaction(ctx context.Context, ev *domain.ChatEvent, userID, channel string) error {
	if ev.Reaction != s.watchReaction {
		return nil
	}
	logger := log.Ctx(ctx)
	if ev.Item == nil || ev.Item.Timestamp == "" {
		s.drop("no_item")
		logger.Warn().Str(log.FieldUser, userID).Str(log.FieldChannel, channel).Msg("reaction has no item, dropping")
		return nil
	}

	original := s.cache.Get(ctx, ev.Item.Timestamp, channel)
	key := domain.ExtractKey(original)
	if key == "" {
		s.drop("no_key")
		logger.Info().Str(log.FieldTimestamp, ev.Item.Timestamp).Str(log.FieldChannel, channel).Msg("reacted message references no pull request")
		return nil
	}

	itemChannel := ev.Item.Channel
	if itemChannel == "" {
		itemChannel = channel
	}

	watching := ev.Kind == domain.EventKindReactionAdded
	var err error
	switch ev.Kind {
	case domain.EventKindReactionAdded:
		err = s.registry.Add(ctx, key, domain.Subscriber{UserID: userID, ChannelID: itemChannel})
	case domain.EventKindReactionRemoved:
		_, err = s.registry.Remove(ctx, key, userID)
	default:
		return nil
	}
	if err != nil {
		if !errors.Is(err, usecase.ErrPersist) {
			return err
		}
		logger.Error().Err(err).Str(log.FieldKey, string(key)).Msg("subscription change not saved")
	}

	return s.relayUC.Confirm(ctx, channel, ev.Item.Timestamp, userID, watching)
}

func (s *RelayService) handleRelay(ctx context.Context, ev *domain.ChatEvent, key domain.ResourceKey, channel string) error {
	subs := s.registry.ListFor(key, channel)
	if len(subs) == 0 {
		return nil
	}
	return s.relayUC.NotifySubscribers(ctx, ev, channel, subs)
}

func (s *RelayService) drop(reason string) {
	metrics.EventsDropped.WithLabelValues(reason).Inc()
}
