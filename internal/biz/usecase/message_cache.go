package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"
	"github.com/DevRickLin/prwatch-relay/internal/metrics"
	"github.com/DevRickLin/prwatch-relay/internal/pkg/log"
)

// MessageCache memoizes chat messages by timestamp so reactions can find
// the message they annotate. Entries are never evicted.
type MessageCache struct {
	chatRepo repo.ChatRepo
	logger   zerolog.Logger

	mu   sync.RWMutex
	msgs map[string]*domain.ChatEvent
}

// NewMessageCache creates a new message cache
func NewMessageCache(chatRepo repo.ChatRepo) *MessageCache {
	return &MessageCache{
		chatRepo: chatRepo,
		logger:   log.Component("message_cache"),
		msgs:     make(map[string]*domain.ChatEvent),
	}
}

// Get returns the message posted at ts, fetching it from history on a miss.
// Failed or empty lookups are not cached.
func (c *MessageCache) Get(ctx context.Context, ts, channel string) *domain.ChatEvent {
	if ts == "" {
		return nil
	}

	c.mu.RLock()
	msg, ok := c.msgs[ts]
	c.mu.RUnlock()
	if ok {
		return msg
	}

	msg, err := c.chatRepo.FetchHistoryMessage(ctx, ts, channel)
	if err != nil {
		metrics.BackendErrors.WithLabelValues("fetch_history").Inc()
		c.logger.Warn().Err(err).Str(log.FieldTimestamp, ts).Str(log.FieldChannel, channel).Msg("history lookup failed")
		return nil
	}
	if msg == nil {
		return nil
	}

	c.Put(ts, msg)
	return c.lookup(ts)
}

// Put stores msg under ts unless an entry already exists
func (c *MessageCache) Put(ts string, msg *domain.ChatEvent) {
	if ts == "" || msg == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.msgs[ts]; !exists {
		c.msgs[ts] = msg
	}
}

// Len returns the number of cached messages
func (c *MessageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.msgs)
}

func (c *MessageCache) lookup(ts string) *domain.ChatEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.msgs[ts]
}
