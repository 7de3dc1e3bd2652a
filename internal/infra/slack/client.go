package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
	"github.com/DevRickLin/prwatch-relay/internal/pkg/log"
)

var (
	errInvalidAuth = errors.New("slack rejected the app token")
	errStopped     = errors.New("socket mode connection stopped")
)

// Client is the Slack Socket Mode transport
type Client struct {
	api    *slack.Client
	logger zerolog.Logger

	mu      sync.Mutex
	botID   string
	pending []domain.ChatEvent
	runErr  error
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewClient creates a Slack client from a bot token and an app-level token
func NewClient(botToken, appToken string) *Client {
	return &Client{
		api:    slack.New(botToken, slack.OptionAppLevelToken(appToken)),
		logger: log.Component("slack"),
	}
}

// API returns the Web API client shared with the chat repo
func (c *Client) API() *slack.Client {
	return c.api
}

// Connect validates the bot token and opens a Socket Mode connection
func (c *Client) Connect(ctx context.Context) error {
	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("auth test: %w", err)
	}

	sm := socketmode.New(c.api)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.botID = auth.BotID
	c.pending = nil
	c.runErr = nil
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	c.logger.Info().Str("team", auth.Team).Str("bot_id", auth.BotID).Msg("authenticated")

	go func() {
		defer close(done)
		err := sm.RunContext(runCtx)
		if runCtx.Err() != nil {
			return
		}
		if err == nil {
			err = errStopped
		}
		c.fail(err)
	}()
	go c.pump(runCtx, sm)

	return nil
}

// ReadBatch drains events received since the last call
func (c *Client) ReadBatch(ctx context.Context) ([]domain.ChatEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runErr != nil {
		return nil, c.runErr
	}
	batch := c.pending
	c.pending = nil
	return batch, nil
}

// BotID returns the bot ID reported by auth.test
func (c *Client) BotID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.botID
}

// Close stops the Socket Mode connection
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (c *Client) pump(ctx context.Context, sm *socketmode.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sm.Events:
			if !ok {
				return
			}
			c.handle(sm, evt)
		}
	}
}

func (c *Client) handle(sm *socketmode.Client, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		c.logger.Debug().Msg("connecting")
	case socketmode.EventTypeConnected:
		c.logger.Info().Msg("socket mode connected")
	case socketmode.EventTypeConnectionError:
		c.logger.Warn().Interface("data", evt.Data).Msg("connection error, socket mode will retry")
	case socketmode.EventTypeInvalidAuth:
		c.fail(errInvalidAuth)
	case socketmode.EventTypeHello:
		c.enqueue(domain.ChatEvent{Kind: domain.EventKindHousekeeping, Type: "hello"})
	case socketmode.EventTypeEventsAPI:
		if evt.Request == nil {
			return
		}
		sm.Ack(*evt.Request)

		var envelope struct {
			Event json.RawMessage `json:"event"`
		}
		if err := json.Unmarshal(evt.Request.Payload, &envelope); err != nil || len(envelope.Event) == 0 {
			c.logger.Warn().Err(err).Msg("events api payload without event")
			return
		}
		ev, err := ParseEvent(envelope.Event)
		if err != nil {
			c.logger.Warn().Err(err).RawJSON("event", envelope.Event).Msg("dropping unparseable event")
			return
		}
		c.enqueue(ev)
	default:
		c.logger.Debug().Str("type", string(evt.Type)).Msg("ignoring socket mode event")
	}
}

func (c *Client) enqueue(ev domain.ChatEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, ev)
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runErr == nil {
		c.runErr = err
	}
}
