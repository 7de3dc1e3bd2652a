package biz

import (
	"context"

	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"
	"github.com/DevRickLin/prwatch-relay/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Registry *usecase.SubscriptionRegistry
	Cache    *usecase.MessageCache
	Users    *usecase.UserDirectory
	Relay    *usecase.RelayUsecase
}

// NewUsecases builds the usecase layer and loads the persisted subscriptions
func NewUsecases(ctx context.Context, chat repo.ChatRepo, store repo.SubscriptionStore, templates usecase.MessageTemplates) (*Usecases, error) {
	registry, err := usecase.NewSubscriptionRegistry(ctx, store)
	if err != nil {
		return nil, err
	}
	users := usecase.NewUserDirectory(chat)
	return &Usecases{
		Registry: registry,
		Cache:    usecase.NewMessageCache(chat),
		Users:    users,
		Relay:    usecase.NewRelayUsecase(chat, users, templates),
	}, nil
}
