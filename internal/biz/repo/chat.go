package repo

import (
	"context"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
)

// ChatRepo is the chat backend API used by the relay
type ChatRepo interface {
	// FetchHistoryMessage looks up the single message posted at ts in channel.
	// Returns nil, nil when the backend has no such message.
	FetchHistoryMessage(ctx context.Context, ts, channel string) (*domain.ChatEvent, error)

	// FetchUserProfile gets a user's profile
	FetchUserProfile(ctx context.Context, userID string) (*domain.Profile, error)

	// PostMessage sends a message to a channel
	PostMessage(ctx context.Context, channel, text string) error

	// PostThreadedMessage replies in the thread of parentTS
	PostThreadedMessage(ctx context.Context, channel, parentTS, text string) error

	// MentionTag formats an @mention in the backend's markup.
	// name may be empty.
	MentionTag(userID, name string) string
}

// ChatTransport delivers raw chat events
type ChatTransport interface {
	// Connect opens the event stream
	Connect(ctx context.Context) error

	// ReadBatch returns the events received since the last call.
	// It returns an empty batch when idle and an error once the stream is broken.
	ReadBatch(ctx context.Context) ([]domain.ChatEvent, error)

	// BotID returns the bot identity learned while connecting, if any
	BotID() string

	// Close tears down the stream
	Close() error
}
