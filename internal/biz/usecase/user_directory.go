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

// UserDirectory memoizes user profiles for the life of the process
type UserDirectory struct {
	chatRepo repo.ChatRepo
	logger   zerolog.Logger

	mu       sync.RWMutex
	profiles map[string]*domain.Profile
}

// NewUserDirectory creates a new user directory
func NewUserDirectory(chatRepo repo.ChatRepo) *UserDirectory {
	return &UserDirectory{
		chatRepo: chatRepo,
		logger:   log.Component("user_directory"),
		profiles: make(map[string]*domain.Profile),
	}
}

// Get returns the user's profile, or nil when it cannot be resolved.
// Failed lookups are retried on the next call.
func (d *UserDirectory) Get(ctx context.Context, userID string) *domain.Profile {
	if userID == "" {
		return nil
	}

	d.mu.RLock()
	p, ok := d.profiles[userID]
	d.mu.RUnlock()
	if ok {
		return p
	}

	p, err := d.chatRepo.FetchUserProfile(ctx, userID)
	if err != nil {
		metrics.BackendErrors.WithLabelValues("fetch_user").Inc()
		d.logger.Warn().Err(err).Str(log.FieldUser, userID).Msg("user lookup failed")
		return nil
	}
	if p == nil {
		return nil
	}

	d.mu.Lock()
	if existing, ok := d.profiles[userID]; ok {
		p = existing
	} else {
		d.profiles[userID] = p
	}
	d.mu.Unlock()
	return p
}

// DisplayName returns the user's name, or the raw user ID when unresolvable
func (d *UserDirectory) DisplayName(ctx context.Context, userID string) string {
	if p := d.Get(ctx, userID); p != nil && p.Name() != "" {
		return p.Name()
	}
	return userID
}
