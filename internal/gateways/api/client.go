package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"feedsync/internal/app/feed"
	"feedsync/internal/app/profile"
)

// Client talks to the feed backend's REST API: older pages and single
// messages of the remote log, and author profiles from the entity store.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.SugaredLogger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Sugar(),
	}
}

// FetchPage returns up to limit messages strictly older than beforeKey, in
// log order.
func (c *Client) FetchPage(ctx context.Context, beforeKey string, limit int) ([]*feed.Message, error) {
	endpoint := fmt.Sprintf("%s/api/messages?before=%s&limit=%d",
		c.baseURL, url.QueryEscape(beforeKey), limit)

	var result struct {
		Messages []*feed.Message `json:"messages"`
	}
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch page before %q: %w", beforeKey, err)
	}
	return result.Messages, nil
}

func (c *Client) Get(ctx context.Context, key string) (*feed.Message, error) {
	endpoint := c.baseURL + "/api/messages/" + url.PathEscape(key)

	var result struct {
		Message *feed.Message `json:"message"`
	}
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, fmt.Errorf("failed to get message %q: %w", key, err)
	}
	if result.Message == nil {
		return nil, fmt.Errorf("message %q not found", key)
	}
	return result.Message, nil
}

// Profiles exposes the entity-store half of the API as a profile.Store.
func (c *Client) Profiles() profile.Store {
	return &profileStore{client: c}
}

type profileStore struct {
	client *Client
}

func (s *profileStore) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	endpoint := s.client.baseURL + "/api/users/" + url.PathEscape(userID)

	var result struct {
		Profile *profile.Profile `json:"profile"`
	}
	if err := s.client.getJSON(ctx, endpoint, &result); err != nil {
		return nil, fmt.Errorf("failed to get profile %q: %w", userID, err)
	}
	if result.Profile == nil {
		return nil, fmt.Errorf("profile %q not found", userID)
	}
	return result.Profile, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debugw("API request",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
