package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/DevRickLin/prwatch-relay/internal/conf"
	"github.com/DevRickLin/prwatch-relay/internal/mcp"
	"github.com/DevRickLin/prwatch-relay/internal/pkg/log"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

// prwatch-mcp exposes the relay's watch registry to MCP clients over stdio.
// It talks to the relay's admin API, so the relay must run with API_PORT set.
func main() {
	cfg, err := conf.LoadMCPFromEnv()
	if err != nil {
		bootLogger := log.New(log.Config{Output: os.Stderr})
		bootLogger.Fatal().Err(err).Msg("load config")
	}

	logCfg := cfg.Log.ToLogConfig("prwatch-mcp")
	logCfg.Output = os.Stderr
	log.Init(logCfg)
	logger := log.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := mcp.NewHandler(mcp.NewClient(cfg.RelayAPIURL))
	server := mcp.NewServer(handler, version)

	logger.Info().Str("api", cfg.RelayAPIURL).Msg("serving MCP over stdio")
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("MCP server stopped")
	}
}
