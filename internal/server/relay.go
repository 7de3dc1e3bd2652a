package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"
	"github.com/DevRickLin/prwatch-relay/internal/metrics"
	"github.com/DevRickLin/prwatch-relay/internal/pkg/log"
)

// ErrRetryBudgetExhausted is returned when the transport failed to connect
// too many times in a row
var ErrRetryBudgetExhausted = errors.New("transport retry budget exhausted")

const seenEventTTL = 5 * time.Minute

// EventHandler processes classified chat events
type EventHandler interface {
	Process(ctx context.Context, ev *domain.ChatEvent) error
	LearnBotID(id string)
}

// Options configures the read loop
type Options struct {
	PollInterval       time.Duration
	RetryDelay         time.Duration
	MaxConnectFailures int
}

// DefaultOptions returns the loop timing used when nothing is configured
func DefaultOptions() Options {
	return Options{
		PollInterval:       time.Second,
		RetryDelay:         5 * time.Second,
		MaxConnectFailures: 10,
	}
}

// RelayServer pulls events from the transport and feeds them to the handler
// one at a time
type RelayServer struct {
	transport repo.ChatTransport
	handler   EventHandler
	opts      Options
	logger    zerolog.Logger

	// Redelivered events are skipped
	seenMu sync.Mutex
	seen   map[string]time.Time
}

// NewRelayServer creates a new relay server
func NewRelayServer(transport repo.ChatTransport, handler EventHandler, opts Options) *RelayServer {
	def := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.MaxConnectFailures <= 0 {
		opts.MaxConnectFailures = def.MaxConnectFailures
	}
	return &RelayServer{
		transport: transport,
		handler:   handler,
		opts:      opts,
		logger:    log.Component("server"),
		seen:      make(map[string]time.Time),
	}
}

// Start runs the loop until ctx is cancelled or the retry budget runs out.
// A cancelled context returns nil.
func (s *RelayServer) Start(ctx context.Context) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := s.transport.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			metrics.ConnectFailures.Inc()
			s.logger.Error().Err(err).Int("failures", failures).Int("max", s.opts.MaxConnectFailures).Msg("connect failed")
			if failures >= s.opts.MaxConnectFailures {
				return fmt.Errorf("%w after %d attempts: %v", ErrRetryBudgetExhausted, failures, err)
			}
			if !sleep(ctx, s.opts.RetryDelay) {
				return nil
			}
			continue
		}

		failures = 0
		s.handler.LearnBotID(s.transport.BotID())
		s.logger.Info().Msg("connected")

		err := s.readLoop(ctx)
		if closeErr := s.transport.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("close transport")
		}
		if ctx.Err() != nil {
			return nil
		}

		failures++
		metrics.ConnectFailures.Inc()
		s.logger.Error().Err(err).Int("failures", failures).Int("max", s.opts.MaxConnectFailures).Msg("connection lost")
		if failures >= s.opts.MaxConnectFailures {
			return fmt.Errorf("%w after %d attempts: %v", ErrRetryBudgetExhausted, failures, err)
		}
		if !sleep(ctx, s.opts.RetryDelay) {
			return nil
		}
	}
}

func (s *RelayServer) readLoop(ctx context.Context) error {
	for {
		batch, err := s.transport.ReadBatch(ctx)
		if err != nil {
			return fmt.Errorf("read batch: %w", err)
		}

		for i := range batch {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.handleEvent(ctx, &batch[i])
		}

		if !sleep(ctx, s.opts.PollInterval) {
			return ctx.Err()
		}
	}
}

// handleEvent processes one event, containing any failure to that event
func (s *RelayServer) handleEvent(ctx context.Context, ev *domain.ChatEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Interface("event", ev).Msg("event processing panicked")
		}
	}()

	if id := eventID(ev); id != "" {
		if s.isEventSeen(id) {
			s.logger.Debug().Str("event_id", id).Msg("duplicate event ignored")
			return
		}
		s.markEventSeen(id)
	}

	logger := s.logger.With().Str("event_type", ev.Type).Str(log.FieldTimestamp, ev.Timestamp).Logger()
	if err := s.handler.Process(log.WithLogger(ctx, logger), ev); err != nil {
		logger.Error().Err(err).Interface("event", ev).Msg("event processing failed")
	}
}

// eventID identifies a delivery so redeliveries can be skipped.
// Events without a timestamp are never deduplicated.
func eventID(ev *domain.ChatEvent) string {
	if ev.Timestamp == "" {
		return ""
	}
	id := ev.Type + "|" + ev.ChannelID() + "|" + ev.Timestamp + "|" + ev.ActorID() + "|" + ev.Reaction
	if ev.Item != nil {
		id += "|" + ev.Item.Timestamp
	}
	return id
}

func (s *RelayServer) isEventSeen(id string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	_, exists := s.seen[id]
	return exists
}

// markEventSeen records id and clears records older than seenEventTTL
func (s *RelayServer) markEventSeen(id string) {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	now := time.Now()
	s.seen[id] = now

	cutoff := now.Add(-seenEventTTL)
	for k, ts := range s.seen {
		if ts.Before(cutoff) {
			delete(s.seen, k)
		}
	}
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
