package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"
)

var errBackend = errors.New("backend unavailable")

type postedMessage struct {
	Channel  string
	ParentTS string
	Text     string
}

// fakeChatRepo records sends and serves history/profiles from maps
type fakeChatRepo struct {
	mu sync.Mutex

	history  map[string]*domain.ChatEvent
	profiles map[string]*domain.Profile

	historyErr error
	profileErr error
	postErr    error

	historyCalls map[string]int
	profileCalls map[string]int
	posts        []postedMessage
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		history:      make(map[string]*domain.ChatEvent),
		profiles:     make(map[string]*domain.Profile),
		historyCalls: make(map[string]int),
		profileCalls: make(map[string]int),
	}
}

func (f *fakeChatRepo) FetchHistoryMessage(ctx context.Context, ts, channel string) (*domain.ChatEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls[ts]++
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[ts], nil
}

func (f *fakeChatRepo) FetchUserProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileCalls[userID]++
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profiles[userID], nil
}

func (f *fakeChatRepo) PostMessage(ctx context.Context, channel, text string) error {
	return f.PostThreadedMessage(ctx, channel, "", text)
}

func (f *fakeChatRepo) PostThreadedMessage(ctx context.Context, channel, parentTS, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posts = append(f.posts, postedMessage{Channel: channel, ParentTS: parentTS, Text: text})
	return nil
}

func (f *fakeChatRepo) MentionTag(userID, name string) string {
	if name == "" {
		return fmt.Sprintf("<@%s>", userID)
	}
	return fmt.Sprintf("<@%s|%s>", userID, name)
}

// fakeStore keeps the last saved snapshot
type fakeStore struct {
	initial repo.Subscriptions
	saved   repo.Subscriptions
	saves   int
	loadErr error
	saveErr error
}

func (s *fakeStore) Load(ctx context.Context) (repo.Subscriptions, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.initial == nil {
		return repo.Subscriptions{}, nil
	}
	return s.initial, nil
}

func (s *fakeStore) Save(ctx context.Context, subs repo.Subscriptions) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = subs
	return nil
}

func (s *fakeStore) Close() error {
	return nil
}
