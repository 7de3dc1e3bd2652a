package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/DevRickLin/prwatch-relay/internal/pkg/log"
	"github.com/DevRickLin/prwatch-relay/internal/server"
	"github.com/DevRickLin/prwatch-relay/internal/service"
)

// Chat backends
const (
	BackendSlack  = "slack"
	BackendFeishu = "feishu"
)

// Config represents application configuration
type Config struct {
	// Chat backend selection
	Backend string `env:"CHAT_BACKEND" env-default:"slack" env-description:"chat backend: slack or feishu"`

	Slack  SlackConfig
	Feishu FeishuConfig
	Relay  RelayConfig
	Store  StoreConfig
	API    APIConfig
	Log    LogConfig

	MessagesConfigPath string `env:"MESSAGES_CONFIG_PATH" env-description:"path to messages.yaml"`

	// Messages configuration (loaded from YAML)
	Messages *MessagesConfig
}

// SlackConfig contains Slack configuration
type SlackConfig struct {
	BotToken string `env:"SLACK_BOT_TOKEN" env-description:"bot token (xoxb-)"`
	AppToken string `env:"SLACK_APP_TOKEN" env-description:"app-level token for Socket Mode (xapp-)"`
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string `env:"FEISHU_APP_ID"`
	AppSecret string `env:"FEISHU_APP_SECRET"`
}

// RelayConfig contains event loop and classifier settings
type RelayConfig struct {
	BotID              string        `env:"BOT_ID" env-description:"own bot identity; learned from the backend when empty"`
	WatchReaction      string        `env:"WATCH_REACTION" env-default:"eyes"`
	PollInterval       time.Duration `env:"POLL_INTERVAL" env-default:"1s"`
	RetryDelay         time.Duration `env:"RETRY_DELAY" env-default:"5s"`
	MaxConnectFailures int           `env:"MAX_CONNECT_FAILURES" env-default:"10"`
}

// StoreConfig contains subscription persistence settings
type StoreConfig struct {
	// File path (.json, .yaml, .db) or redis:// URL
	SubscriptionsPath string `env:"SUBSCRIPTIONS_PATH" env-default:"~/.prwatch/subscriptions.json"`
}

// APIConfig contains admin API settings
type APIConfig struct {
	Port int `env:"API_PORT" env-default:"9877" env-description:"admin API port, 0 disables it"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Pretty bool   `env:"LOG_PRETTY" env-default:"false"`
}

// LoadFromEnv loads configuration from .env and environment variables
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.Store.SubscriptionsPath = expandHome(cfg.Store.SubscriptionsPath)

	messages, err := LoadMessagesConfig(cfg.MessagesConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Messages = messages

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSlack:
		if c.Slack.BotToken == "" || c.Slack.AppToken == "" {
			return &ConfigError{Field: "SLACK_BOT_TOKEN/SLACK_APP_TOKEN", Message: "required"}
		}
	case BackendFeishu:
		if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
			return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
		}
	default:
		return &ConfigError{Field: "CHAT_BACKEND", Message: fmt.Sprintf("unknown backend %q", c.Backend)}
	}

	if strings.TrimSpace(c.Relay.WatchReaction) == "" {
		return &ConfigError{Field: "WATCH_REACTION", Message: "must not be empty"}
	}
	if c.Relay.PollInterval <= 0 {
		return &ConfigError{Field: "POLL_INTERVAL", Message: "must be positive"}
	}
	if c.Relay.RetryDelay <= 0 {
		return &ConfigError{Field: "RETRY_DELAY", Message: "must be positive"}
	}
	if c.Relay.MaxConnectFailures <= 0 {
		return &ConfigError{Field: "MAX_CONNECT_FAILURES", Message: "must be positive"}
	}
	if c.Store.SubscriptionsPath == "" {
		return &ConfigError{Field: "SUBSCRIPTIONS_PATH", Message: "required"}
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "out of range"}
	}
	if c.Messages != nil {
		if err := c.Messages.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ToServiceOptions converts to classifier options
func (c *Config) ToServiceOptions() service.Options {
	return service.Options{
		BotID:         c.Relay.BotID,
		WatchReaction: c.Relay.WatchReaction,
	}
}

// ToServerOptions converts to read loop options
func (c *Config) ToServerOptions() server.Options {
	return server.Options{
		PollInterval:       c.Relay.PollInterval,
		RetryDelay:         c.Relay.RetryDelay,
		MaxConnectFailures: c.Relay.MaxConnectFailures,
	}
}

// ToLogConfig converts to logger configuration
func (c *LogConfig) ToLogConfig(serviceName string) log.Config {
	return log.Config{
		Level:       c.Level,
		Pretty:      c.Pretty,
		ServiceName: serviceName,
	}
}

// MCPConfig contains the MCP server configuration
type MCPConfig struct {
	RelayAPIURL string `env:"RELAY_API_URL" env-default:"http://127.0.0.1:9877"`
	Log         LogConfig
}

// LoadMCPFromEnv loads the MCP server configuration
func LoadMCPFromEnv() (*MCPConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg MCPConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	cfg.RelayAPIURL = strings.TrimRight(cfg.RelayAPIURL, "/")
	if cfg.RelayAPIURL == "" {
		return nil, &ConfigError{Field: "RELAY_API_URL", Message: "required"}
	}
	return &cfg, nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
