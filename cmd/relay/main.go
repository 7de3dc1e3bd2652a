package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DevRickLin/prwatch-relay/internal/api"
	"github.com/DevRickLin/prwatch-relay/internal/biz"
	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"
	"github.com/DevRickLin/prwatch-relay/internal/conf"
	"github.com/DevRickLin/prwatch-relay/internal/data"
	"github.com/DevRickLin/prwatch-relay/internal/infra/feishu"
	slackclient "github.com/DevRickLin/prwatch-relay/internal/infra/slack"
	"github.com/DevRickLin/prwatch-relay/internal/metrics"
	"github.com/DevRickLin/prwatch-relay/internal/pkg/log"
	"github.com/DevRickLin/prwatch-relay/internal/server"
	"github.com/DevRickLin/prwatch-relay/internal/service"
)

func main() {
	bootLogger := log.L()
	cfg, err := conf.LoadFromEnv()
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		bootLogger.Fatal().Err(err).Msg("invalid config")
	}

	log.Init(cfg.Log.ToLogConfig("prwatch-relay"))
	logger := log.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, chat := newBackend(cfg)

	repos, err := data.NewRepositories(ctx, chat, cfg.Store.SubscriptionsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open subscription store")
	}
	defer repos.Close()
	logger.Info().Str("store", cfg.Store.SubscriptionsPath).Msg("subscription store opened")

	ucs, err := biz.NewUsecases(ctx, repos.Chat, repos.Subscriptions, cfg.Messages.ToMessageTemplates())
	if err != nil {
		logger.Fatal().Err(err).Msg("load subscriptions")
	}
	registry := ucs.Registry
	metrics.RegisterWatchedKeys(registry.Len)

	relaySvc := service.NewRelayService(registry, ucs.Cache, ucs.Relay, cfg.ToServiceOptions())

	var apiServer *api.Server
	if cfg.API.Port > 0 {
		apiServer = api.NewServer(registry, cfg.API.Port)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
	}

	srv := server.NewRelayServer(transport, relaySvc, cfg.ToServerOptions())

	logger.Info().
		Str("backend", cfg.Backend).
		Str("reaction", cfg.Relay.WatchReaction).
		Int("watched", registry.Len()).
		Msg("starting PR watch relay")

	runErr := srv.Start(ctx)

	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Stop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("API server shutdown")
		}
		cancel()
	}

	if runErr != nil {
		if errors.Is(runErr, server.ErrRetryBudgetExhausted) {
			logger.Error().Err(runErr).Msg("giving up on chat backend")
		} else {
			logger.Error().Err(runErr).Msg("relay stopped")
		}
		repos.Close()
		os.Exit(1)
	}
	logger.Info().Msg("shut down")
}

// newBackend builds the event transport and the chat API for the configured backend
func newBackend(cfg *conf.Config) (repo.ChatTransport, repo.ChatRepo) {
	switch cfg.Backend {
	case conf.BackendFeishu:
		client := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
		return client, data.NewFeishuRepo(client)
	default:
		client := slackclient.NewClient(cfg.Slack.BotToken, cfg.Slack.AppToken)
		return client, data.NewSlackRepo(client.API())
	}
}
