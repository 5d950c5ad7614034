// Package remote is a thin HTTP client for the remote cache service. The
// service speaks the same fetch / bulk-store contract as the local cache,
// over entries keyed identically; nothing beyond that contract is assumed
// here.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/promptmemo/promptmemo/pkg/cache"
	"github.com/promptmemo/promptmemo/pkg/config"
)

// Client talks to a remote cache service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a Client from remote configuration.
func New(cfg config.RemoteConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type fetchRequest struct {
	Keys []string `json:"keys"`
}

type fetchResponse struct {
	Entries []*cache.Entry `json:"entries"`
}

type storeRequest struct {
	Entries []*cache.Entry `json:"entries"`
}

// Fetch returns the remote entries for the given keys. Keys unknown to the
// service are simply absent from the result.
func (c *Client) Fetch(ctx context.Context, keys []string) ([]*cache.Entry, error) {
	var resp fetchResponse
	if err := c.post(ctx, "/v1/cache/fetch", fetchRequest{Keys: keys}, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Store uploads entries to the service.
func (c *Client) Store(ctx context.Context, entries []*cache.Entry) error {
	return c.post(ctx, "/v1/cache/entries", storeRequest{Entries: entries}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("remote: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("remote: %s returned %d: %s", path, res.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("remote: decode response: %w", err)
		}
	}
	return nil
}
