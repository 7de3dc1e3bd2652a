package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the HTTP client for the relay admin API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new admin API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Subscriber is one watcher of a resource
type Subscriber struct {
	User    string `json:"user"`
	Channel string `json:"channel"`
}

// Watch is a watched resource and its subscribers
type Watch struct {
	Key         string       `json:"key"`
	Subscribers []Subscriber `json:"subscribers"`
}

// WatchList is every watched resource
type WatchList struct {
	Count   int     `json:"count"`
	Watches []Watch `json:"watches"`
}

// UnwatchResult reports how many subscriptions were removed
type UnwatchResult struct {
	Key     string `json:"key"`
	User    string `json:"user"`
	Removed int    `json:"removed"`
}

// ListWatches returns every watched resource
func (c *Client) ListWatches(ctx context.Context) (*WatchList, error) {
	var list WatchList
	if err := c.do(ctx, http.MethodGet, "/api/watches", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetWatchers returns the subscribers of one resource
func (c *Client) GetWatchers(ctx context.Context, key string) (*Watch, error) {
	var watch Watch
	if err := c.do(ctx, http.MethodGet, "/api/watches/"+url.PathEscape(key), &watch); err != nil {
		return nil, err
	}
	return &watch, nil
}

// Unwatch removes every subscription of user on key
func (c *Client) Unwatch(ctx context.Context, key, user string) (*UnwatchResult, error) {
	path := fmt.Sprintf("/api/watches/%s/subscribers/%s", url.PathEscape(key), url.PathEscape(user))
	var result UnwatchResult
	if err := c.do(ctx, http.MethodDelete, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
