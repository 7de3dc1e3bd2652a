package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"
)

type postedMessage struct {
	Channel  string
	ParentTS string
	Text     string
}

type mockChatRepo struct {
	mu       sync.Mutex
	history  map[string]*domain.ChatEvent
	profiles map[string]*domain.Profile
	posts    []postedMessage
	postErr  error
}

func newMockChatRepo() *mockChatRepo {
	return &mockChatRepo{
		history:  make(map[string]*domain.ChatEvent),
		profiles: make(map[string]*domain.Profile),
	}
}

func (m *mockChatRepo) FetchHistoryMessage(ctx context.Context, ts, channel string) (*domain.ChatEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history[ts], nil
}

func (m *mockChatRepo) FetchUserProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[userID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("user_not_found")
}

func (m *mockChatRepo) PostMessage(ctx context.Context, channel, text string) error {
	return m.PostThreadedMessage(ctx, channel, "", text)
}

func (m *mockChatRepo) PostThreadedMessage(ctx context.Context, channel, parentTS, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postErr != nil {
		return m.postErr
	}
	m.posts = append(m.posts, postedMessage{Channel: channel, ParentTS: parentTS, Text: text})
	return nil
}

func (m *mockChatRepo) MentionTag(userID, name string) string {
	if name == "" {
		return fmt.Sprintf("<@%s>", userID)
	}
	return fmt.Sprintf("<@%s|%s>", userID, name)
}

func (m *mockChatRepo) Posts() []postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]postedMessage(nil), m.posts...)
}

type mockStore struct {
	saved repo.Subscriptions
	saves int
}

func (m *mockStore) Load(ctx context.Context) (repo.Subscriptions, error) {
	return repo.Subscriptions{}, nil
}

func (m *mockStore) Save(ctx context.Context, subs repo.Subscriptions) error {
	m.saves++
	m.saved = subs
	return nil
}

func (m *mockStore) Close() error {
	return nil
}
