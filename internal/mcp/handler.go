package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/DevRickLin/prwatch-relay/internal/biz/domain"
)

// ErrNoResource is returned when a tool call names neither a key nor a link
var ErrNoResource = errors.New("a resource key or a pull-request link is required")

// ResourceInput names a resource by key or by link
type ResourceInput struct {
	Key  string `json:"key,omitempty" jsonschema:"Resource key such as BITBUCKET_PR:repo:42"`
	Link string `json:"link,omitempty" jsonschema:"Pull-request link to derive the key from"`
}

// ListWatchesInput takes no arguments
type ListWatchesInput struct{}

// UnwatchInput names a resource and the user to remove from it
type UnwatchInput struct {
	Key  string `json:"key,omitempty" jsonschema:"Resource key such as BITBUCKET_PR:repo:42"`
	Link string `json:"link,omitempty" jsonschema:"Pull-request link to derive the key from"`
	User string `json:"user" jsonschema:"User ID to unsubscribe"`
}

// Handler runs tool calls against the admin API
type Handler struct {
	client *Client
}

// NewHandler creates a new tool handler
func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// ListWatches lists every watched resource
func (h *Handler) ListWatches(ctx context.Context, _ ListWatchesInput) (*WatchList, error) {
	list, err := h.client.ListWatches(ctx)
	if err != nil {
		return nil, err
	}
	if list.Watches == nil {
		list.Watches = []Watch{}
	}
	return list, nil
}

// GetWatchers returns who watches one resource
func (h *Handler) GetWatchers(ctx context.Context, in ResourceInput) (*Watch, error) {
	key, err := resolveKey(in)
	if err != nil {
		return nil, err
	}
	watch, err := h.client.GetWatchers(ctx, key)
	if err != nil {
		return nil, err
	}
	if watch.Subscribers == nil {
		watch.Subscribers = []Subscriber{}
	}
	return watch, nil
}

// Unwatch removes a user's subscriptions to one resource
func (h *Handler) Unwatch(ctx context.Context, in UnwatchInput) (*UnwatchResult, error) {
	key, err := resolveKey(ResourceInput{Key: in.Key, Link: in.Link})
	if err != nil {
		return nil, err
	}
	user := strings.TrimSpace(in.User)
	if user == "" {
		return nil, errors.New("user is required")
	}
	return h.client.Unwatch(ctx, key, user)
}

// resolveKey prefers an explicit key, then a key derived from the link
func resolveKey(in ResourceInput) (string, error) {
	if key := strings.TrimSpace(in.Key); key != "" {
		return key, nil
	}
	if key := domain.ExtractKeyFromText(in.Link); key != "" {
		return string(key), nil
	}
	return "", ErrNoResource
}
