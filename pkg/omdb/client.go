// Package omdb talks to the OMDb search API.
package omdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rubiojr/movieei/pkg/core"
	"github.com/rubiojr/movieei/pkg/log"
	"golang.org/x/time/rate"
)

// ErrNotConfigured is returned when the API key or base URL is empty.
var ErrNotConfigured = errors.New("omdb: api key or base url not configured")

// maxBodySize caps how much of an upstream response is read.
const maxBodySize = 4 << 20

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// RateLimit is the maximum number of requests per second. Zero means
	// unlimited.
	RateLimit float64
	Burst     int
}

// Query is a single search request. Empty Page and Type are sent as "1"
// and "movie".
type Query struct {
	Term string
	Page string
	Type string
}

type Client struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &Client{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(limit, config.Burst),
	}
}

// Configured reports whether the API key and base URL are both set.
func (c *Client) Configured() bool {
	return c.config.APIKey != "" && c.config.BaseURL != ""
}

// HasAPIKey and HasBaseURL let callers report what is missing without
// exposing the values.
func (c *Client) HasAPIKey() bool  { return c.config.APIKey != "" }
func (c *Client) HasBaseURL() bool { return c.config.BaseURL != "" }

func (c *Client) requestURL(q Query) (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}

	page := q.Page
	if page == "" {
		page = "1"
	}
	typ := q.Type
	if typ == "" {
		typ = core.DefaultType
	}

	params := u.Query()
	params.Set("apikey", c.config.APIKey)
	params.Set("s", q.Term)
	params.Set("page", page)
	params.Set("type", typ)
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// SearchRaw performs the search and returns the upstream JSON body as is.
// The HTTP status of the upstream response is not interpreted; a body that
// is not valid JSON is an error.
func (c *Client) SearchRaw(ctx context.Context, q Query) ([]byte, error) {
	l := log.ForService("omdb")

	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	reqURL, err := c.requestURL(q)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	l.Debugf("Searching %q page %s type %s", q.Term, q.Page, q.Type)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// url.Error includes the request URL, which carries the key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, fmt.Errorf("requesting upstream: %w", uerr.Err)
		}
		return nil, fmt.Errorf("requesting upstream: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading upstream body: %w", err)
	}
	body = bytes.TrimSpace(body)

	if !json.Valid(body) {
		return nil, fmt.Errorf("upstream returned status %d with a non-JSON body", resp.StatusCode)
	}

	return body, nil
}

// Fetch runs the search described by key and decodes the result page.
// A page with Response "False" is returned without error.
func (c *Client) Fetch(ctx context.Context, key core.PageKey) (*core.Page, error) {
	body, err := c.SearchRaw(ctx, Query{
		Term: key.Query,
		Page: strconv.Itoa(key.Page),
		Type: key.Type,
	})
	if err != nil {
		return nil, err
	}

	var page core.Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decoding upstream page: %w", err)
	}
	return &page, nil
}
