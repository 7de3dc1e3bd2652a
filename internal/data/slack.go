package data

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"
	slackinfra "github.com/DevRickLin/prwatch-relay/internal/infra/slack"
)

// slackAPI is the part of *slack.Client the repo uses
type slackAPI interface {
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// slackRepo implements the chat repository over the Slack Web API
type slackRepo struct {
	api slackAPI
}

// NewSlackRepo creates a new Slack repository
func NewSlackRepo(api slackAPI) repo.ChatRepo {
	return &slackRepo{api: api}
}

// FetchHistoryMessage looks up the message at ts with an inclusive
// single-message history query
func (r *slackRepo) FetchHistoryMessage(ctx context.Context, ts, channel string) (*domain.ChatEvent, error) {
	resp, err := r.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channel,
		Latest:    ts,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("conversations.history: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}

	msg := resp.Messages[0]
	// An older message comes back when the one at ts was deleted
	if msg.Timestamp != ts {
		return nil, nil
	}
	ev := slackinfra.FromMessage(msg, channel)
	return &ev, nil
}

// FetchUserProfile gets a user's profile names
func (r *slackRepo) FetchUserProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	user, err := r.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("users.info: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	realName := user.Profile.RealName
	if realName == "" {
		realName = user.RealName
	}
	return &domain.Profile{
		UserID:      userID,
		DisplayName: user.Profile.DisplayName,
		RealName:    realName,
	}, nil
}

// PostMessage sends a message to a channel
func (r *slackRepo) PostMessage(ctx context.Context, channel, text string) error {
	if _, _, err := r.api.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("chat.postMessage: %w", err)
	}
	return nil
}

// PostThreadedMessage replies in the thread of parentTS
func (r *slackRepo) PostThreadedMessage(ctx context.Context, channel, parentTS, text string) error {
	_, _, err := r.api.PostMessageContext(ctx, channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(parentTS),
	)
	if err != nil {
		return fmt.Errorf("chat.postMessage: %w", err)
	}
	return nil
}

// MentionTag formats <@U123|name>, or <@U123> without a name
func (r *slackRepo) MentionTag(userID, name string) string {
	if name == "" {
		return "<@" + userID + ">"
	}
	return "<@" + userID + "|" + name + ">"
}
