package data

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/DevRickLin/prwatch-relay/internal/biz/repo"
)

// fileStore keeps the registry snapshot in a single JSON or YAML file
type fileStore struct {
	path   string
	asYAML bool

	mu sync.Mutex
}

// NewFileStore creates a file-backed subscription store.
// Files ending in .yaml or .yml are written as YAML, anything else as JSON.
func NewFileStore(path string) (repo.SubscriptionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return &fileStore{
		path:   path,
		asYAML: ext == ".yaml" || ext == ".yml",
	}, nil
}

// Load reads the snapshot. A missing or empty file is an empty registry.
func (s *fileStore) Load(ctx context.Context) (repo.Subscriptions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return repo.Subscriptions{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return repo.Subscriptions{}, nil
	}

	subs := repo.Subscriptions{}
	if s.asYAML {
		err = yaml.Unmarshal(data, &subs)
	} else {
		err = json.Unmarshal(data, &subs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return subs, nil
}

// Save replaces the file with the snapshot via write-then-rename
func (s *fileStore) Save(ctx context.Context, subs repo.Subscriptions) error {
	if subs == nil {
		subs = repo.Subscriptions{}
	}

	var (
		data []byte
		err  error
	)
	if s.asYAML {
		data, err = yaml.Marshal(subs)
	} else {
		data, err = json.MarshalIndent(subs, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode subscriptions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op
func (s *fileStore) Close() error {
	return nil
}
