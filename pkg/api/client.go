package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rubiojr/movieei/pkg/core"
)

// Client fetches search pages through a running proxy server. It satisfies
// paging.Fetcher.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Fetch requests the page for key. Pages the upstream marked as failed are
// returned without error; server errors and undecodable bodies are errors.
func (c *Client) Fetch(ctx context.Context, key core.PageKey) (*core.Page, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+key.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", key, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var page core.Page
	decodeErr := json.Unmarshal(body, &page)

	switch {
	case resp.StatusCode >= 500:
		if decodeErr == nil && page.Error != "" {
			return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, page.Error)
		}
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	case decodeErr != nil:
		return nil, fmt.Errorf("decoding response: %w", decodeErr)
	case resp.StatusCode >= 400 && !page.Failed():
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return &page, nil
}
