package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"
	"github.com/DevRickLin/prwatch-relay/internal/metrics"
	"github.com/DevRickLin/prwatch-relay/internal/pkg/log"
)

// MessageTemplates holds the text the relay posts
type MessageTemplates struct {
	PingPrefix      string // precedes subscriber mentions
	Watching        string // %s is the user mention
	StoppedWatching string // %s is the user mention

	// DedupeMentions mentions a user subscribed more than once only once
	DedupeMentions bool
}

// DefaultMessageTemplates is the default relay text
var DefaultMessageTemplates = MessageTemplates{
	PingPrefix:      "Ping",
	Watching:        "Okay watching %s",
	StoppedWatching: "Okay stopped watching %s",
}

// RelayUsecase composes and posts ping and confirmation messages
type RelayUsecase struct {
	chatRepo  repo.ChatRepo
	users     *UserDirectory
	templates MessageTemplates
	logger    zerolog.Logger
}

// NewRelayUsecase creates a new relay usecase
func NewRelayUsecase(chatRepo repo.ChatRepo, users *UserDirectory, templates MessageTemplates) *RelayUsecase {
	return &RelayUsecase{
		chatRepo:  chatRepo,
		users:     users,
		templates: templates,
		logger:    log.Component("relay"),
	}
}

// BuildPing builds the ping for subscribers of the resource ev references.
// Subscribers whose profile cannot be resolved are left out of the mentions.
// Every subscription gets a mention unless DedupeMentions is set.
func (uc *RelayUsecase) BuildPing(ctx context.Context, subs []domain.Subscriber, ev *domain.ChatEvent) string {
	var sb strings.Builder
	sb.WriteString(uc.templates.PingPrefix)

	seen := make(map[string]bool, len(subs))
	for _, s := range subs {
		if uc.templates.DedupeMentions {
			if seen[s.UserID] {
				continue
			}
			seen[s.UserID] = true
		}

		p := uc.users.Get(ctx, s.UserID)
		if p == nil {
			continue
		}
		sb.WriteString(" ")
		sb.WriteString(uc.chatRepo.MentionTag(s.UserID, p.Name()))
	}

	if text := ev.DisplayText(); text != "" {
		sb.WriteString("\n")
		sb.WriteString(text)
	}
	return sb.String()
}

// NotifySubscribers posts the ping as a threaded reply to ev in channel
func (uc *RelayUsecase) NotifySubscribers(ctx context.Context, ev *domain.ChatEvent, channel string, subs []domain.Subscriber) error {
	text := uc.BuildPing(ctx, subs, ev)
	if err := uc.chatRepo.PostThreadedMessage(ctx, channel, ev.Timestamp, text); err != nil {
		metrics.BackendErrors.WithLabelValues("post_ping").Inc()
		return fmt.Errorf("post ping: %w", err)
	}

	metrics.RelaysSent.Inc()
	uc.logger.Info().Str(log.FieldChannel, channel).Str(log.FieldTimestamp, ev.Timestamp).Int("subscribers", len(subs)).Msg("ping sent")
	return nil
}

// BuildConfirmation builds the reply to a watch or unwatch reaction.
// The user is mentioned by raw ID when their profile is unavailable.
func (uc *RelayUsecase) BuildConfirmation(ctx context.Context, userID string, watching bool) string {
	name := ""
	if p := uc.users.Get(ctx, userID); p != nil {
		name = p.Name()
	}
	mention := uc.chatRepo.MentionTag(userID, name)

	if watching {
		return fmt.Sprintf(uc.templates.Watching, mention)
	}
	return fmt.Sprintf(uc.templates.StoppedWatching, mention)
}

// Confirm posts the confirmation as a threaded reply on the watched message
func (uc *RelayUsecase) Confirm(ctx context.Context, channel, parentTS, userID string, watching bool) error {
	text := uc.BuildConfirmation(ctx, userID, watching)
	if err := uc.chatRepo.PostThreadedMessage(ctx, channel, parentTS, text); err != nil {
		metrics.BackendErrors.WithLabelValues("post_confirmation").Inc()
		return fmt.Errorf("post confirmation: %w", err)
	}

	metrics.ConfirmationsSent.Inc()
	return nil
}
