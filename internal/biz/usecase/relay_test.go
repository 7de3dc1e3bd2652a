package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
)

func newTestRelay(chat *fakeChatRepo) *RelayUsecase {
	return NewRelayUsecase(chat, NewUserDirectory(chat), DefaultMessageTemplates)
}

func TestRelay_BuildPing(t *testing.T) {
	chat := newFakeChatRepo()
	chat.profiles["U1"] = &domain.Profile{UserID: "U1", DisplayName: "alice"}
	chat.profiles["U2"] = &domain.Profile{UserID: "U2", RealName: "Bob"}
	uc := newTestRelay(chat)

	subs := []domain.Subscriber{
		{UserID: "U1", ChannelID: "C1"},
		{UserID: "U9", ChannelID: "C1"}, // unresolvable
		{UserID: "U2", ChannelID: "C2"},
		{UserID: "U1", ChannelID: "C1"},
	}
	ev := &domain.ChatEvent{Text: "plain", Attachments: []domain.Attachment{{Link: "x"}, {Text: "PR #42 merged"}}}

	assert.Equal(t, "Ping <@U1|alice> <@U2|Bob> <@U1|alice>\nPR #42 merged", uc.BuildPing(context.Background(), subs, ev))
}

func TestRelay_BuildPingDedupeMentions(t *testing.T) {
	chat := newFakeChatRepo()
	chat.profiles["U1"] = &domain.Profile{UserID: "U1", DisplayName: "alice"}
	chat.profiles["U2"] = &domain.Profile{UserID: "U2", DisplayName: "bob"}
	tpl := DefaultMessageTemplates
	tpl.DedupeMentions = true
	uc := NewRelayUsecase(chat, NewUserDirectory(chat), tpl)

	subs := []domain.Subscriber{
		{UserID: "U1", ChannelID: "C1"},
		{UserID: "U2", ChannelID: "C1"},
		{UserID: "U1", ChannelID: "C2"},
	}

	assert.Equal(t, "Ping <@U1|alice> <@U2|bob>\nhi", uc.BuildPing(context.Background(), subs, &domain.ChatEvent{Text: "hi"}))
}

func TestRelay_BuildPingWithoutText(t *testing.T) {
	uc := newTestRelay(newFakeChatRepo())

	text := uc.BuildPing(context.Background(), []domain.Subscriber{{UserID: "U9"}}, &domain.ChatEvent{})
	assert.Equal(t, "Ping", text)
}

func TestRelay_NotifySubscribersThreadsOnEvent(t *testing.T) {
	chat := newFakeChatRepo()
	chat.profiles["U1"] = &domain.Profile{UserID: "U1", DisplayName: "alice"}
	uc := newTestRelay(chat)

	ev := &domain.ChatEvent{Timestamp: "200", Channel: "C1", Text: "rebased"}
	require.NoError(t, uc.NotifySubscribers(context.Background(), ev, "C1", []domain.Subscriber{{UserID: "U1", ChannelID: "C1"}}))

	require.Len(t, chat.posts, 1)
	assert.Equal(t, postedMessage{Channel: "C1", ParentTS: "200", Text: "Ping <@U1|alice>\nrebased"}, chat.posts[0])
}

func TestRelay_NotifySubscribersPostError(t *testing.T) {
	chat := newFakeChatRepo()
	chat.postErr = errBackend
	uc := newTestRelay(chat)

	err := uc.NotifySubscribers(context.Background(), &domain.ChatEvent{Timestamp: "1"}, "C1", nil)
	assert.ErrorIs(t, err, errBackend)
}

func TestRelay_Confirm(t *testing.T) {
	chat := newFakeChatRepo()
	chat.profiles["U1"] = &domain.Profile{UserID: "U1", DisplayName: "alice"}
	uc := newTestRelay(chat)
	ctx := context.Background()

	require.NoError(t, uc.Confirm(ctx, "C1", "100", "U1", true))
	require.NoError(t, uc.Confirm(ctx, "C1", "100", "U2", false))

	require.Len(t, chat.posts, 2)
	assert.Equal(t, postedMessage{Channel: "C1", ParentTS: "100", Text: "Okay watching <@U1|alice>"}, chat.posts[0])
	assert.Equal(t, postedMessage{Channel: "C1", ParentTS: "100", Text: "Okay stopped watching <@U2>"}, chat.posts[1])
}

func TestRelay_CustomTemplates(t *testing.T) {
	chat := newFakeChatRepo()
	uc := NewRelayUsecase(chat, NewUserDirectory(chat), MessageTemplates{
		PingPrefix:      "Heads up",
		Watching:        "%s is now watching",
		StoppedWatching: "%s stopped",
	})

	assert.Equal(t, "<@U1> is now watching", uc.BuildConfirmation(context.Background(), "U1", true))
	assert.Equal(t, "Heads up\nhi", uc.BuildPing(context.Background(), nil, &domain.ChatEvent{Text: "hi"}))
}
