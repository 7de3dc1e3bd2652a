package data

import (
	"context"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"
	"github.com/DevRickLin/prwatch-relay/internal/infra/feishu"
)

// feishuAPI is the part of *feishu.Client the repo uses
type feishuAPI interface {
	GetMessage(ctx context.Context, messageID string) (*domain.ChatEvent, error)
	GetUserProfile(ctx context.Context, openID string) (*domain.Profile, error)
	SendText(ctx context.Context, chatID, text string) error
	ReplyText(ctx context.Context, messageID, text string) error
}

// feishuRepo implements the chat repository over the Feishu IM API.
// Message IDs stand in for timestamps.
type feishuRepo struct {
	client feishuAPI
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client feishuAPI) repo.ChatRepo {
	return &feishuRepo{client: client}
}

// FetchHistoryMessage gets the message whose ID is ts. A message from
// another chat is treated as missing.
func (r *feishuRepo) FetchHistoryMessage(ctx context.Context, ts, channel string) (*domain.ChatEvent, error) {
	msg, err := r.client.GetMessage(ctx, ts)
	if err != nil {
		return nil, err
	}
	if msg == nil || (channel != "" && msg.Channel != "" && msg.Channel != channel) {
		return nil, nil
	}
	return msg, nil
}

// FetchUserProfile gets a user's profile
func (r *feishuRepo) FetchUserProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	return r.client.GetUserProfile(ctx, userID)
}

// PostMessage sends a message to a chat
func (r *feishuRepo) PostMessage(ctx context.Context, channel, text string) error {
	return r.client.SendText(ctx, channel, text)
}

// PostThreadedMessage replies to parentTS, falling back to a plain message
// when there is no parent
func (r *feishuRepo) PostThreadedMessage(ctx context.Context, channel, parentTS, text string) error {
	if parentTS == "" {
		return r.client.SendText(ctx, channel, text)
	}
	return r.client.ReplyText(ctx, parentTS, text)
}

// MentionTag formats an <at> tag
func (r *feishuRepo) MentionTag(userID, name string) string {
	return feishu.MentionTag(userID, name)
}
