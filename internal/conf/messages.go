package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DevRickLin/prwatch-relay/internal/biz/usecase"
	"github.com/DevRickLin/prwatch-relay/internal/pkg/log"
)

// MessagesConfig contains the message texts loaded from YAML
type MessagesConfig struct {
	Relay RelayMessages `yaml:"relay"`
}

// RelayMessages contains ping and confirmation texts
type RelayMessages struct {
	PingPrefix      string `yaml:"ping_prefix"`
	Watching        string `yaml:"watching"`         // %s is the user mention
	StoppedWatching string `yaml:"stopped_watching"` // %s is the user mention
	DedupeMentions  bool   `yaml:"dedupe_mentions"`
}

// LoadMessagesConfig loads messages configuration from YAML file
func LoadMessagesConfig(configPath string) (*MessagesConfig, error) {
	logger := log.Component("config")

	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/messages.yaml",
			"/etc/prwatch-relay/messages.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "messages.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("messages config %s not readable", configPath)
		}
		logger.Debug().Msg("no messages.yaml found, using defaults")
		return DefaultMessagesConfig(), nil
	}

	logger.Info().Str("path", loadedPath).Msg("loading messages")

	var config MessagesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}

	// Fill in defaults for empty values
	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *MessagesConfig) fillDefaults() {
	defaults := DefaultMessagesConfig()

	if c.Relay.PingPrefix == "" {
		c.Relay.PingPrefix = defaults.Relay.PingPrefix
	}
	if c.Relay.Watching == "" {
		c.Relay.Watching = defaults.Relay.Watching
	}
	if c.Relay.StoppedWatching == "" {
		c.Relay.StoppedWatching = defaults.Relay.StoppedWatching
	}
}

// Validate checks that confirmation templates take exactly one mention
func (c *MessagesConfig) Validate() error {
	if strings.Count(c.Relay.Watching, "%s") != 1 {
		return &ConfigError{Field: "relay.watching", Message: "must contain exactly one %s"}
	}
	if strings.Count(c.Relay.StoppedWatching, "%s") != 1 {
		return &ConfigError{Field: "relay.stopped_watching", Message: "must contain exactly one %s"}
	}
	return nil
}

// ToMessageTemplates converts to relay message templates
func (c *MessagesConfig) ToMessageTemplates() usecase.MessageTemplates {
	return usecase.MessageTemplates{
		PingPrefix:      c.Relay.PingPrefix,
		Watching:        c.Relay.Watching,
		StoppedWatching: c.Relay.StoppedWatching,
		DedupeMentions:  c.Relay.DedupeMentions,
	}
}

// DefaultMessagesConfig returns the default messages configuration
func DefaultMessagesConfig() *MessagesConfig {
	d := usecase.DefaultMessageTemplates
	return &MessagesConfig{
		Relay: RelayMessages{
			PingPrefix:      d.PingPrefix,
			Watching:        d.Watching,
			StoppedWatching: d.StoppedWatching,
		},
	}
}
