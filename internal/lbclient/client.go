// Package lbclient is an HTTP client for the leaderboard API.
//
// Transport errors and 5xx responses are retried with capped exponential
// backoff. Any other non-2xx response is returned at once as an *APIError.
//
//	client := lbclient.New(lbclient.Config{BaseURL: "http://localhost:5000"})
//	top, err := client.Leaderboard(ctx, 10)
package lbclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/scorequest/scorequest-desktop/internal/leaderboard"
)

// Config holds configuration for the client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:5000".
	BaseURL string

	// SubmitToken is sent as X-Submit-Token on writes when set.
	SubmitToken string

	// MaxRetries is the number of retries after the first attempt.
	// Defaults to 3.
	MaxRetries uint64

	// BaseRetryDelay is the first backoff delay. Defaults to 250ms.
	BaseRetryDelay time.Duration

	// MaxRetryDelay caps each backoff delay. Defaults to 2s.
	MaxRetryDelay time.Duration

	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
}

// Client talks to one leaderboard server. It is safe for concurrent use.
type Client struct {
	config Config
	base   *url.URL
	http   *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client. An unparsable BaseURL surfaces as an error on the
// first request.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:5000"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseRetryDelay == 0 {
		cfg.BaseRetryDelay = 250 * time.Millisecond
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 2 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	base, _ := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	return &Client{config: cfg, base: base, http: httpClient, token: cfg.SubmitToken}
}

// SetSubmitToken replaces the write token.
func (c *Client) SetSubmitToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) submitToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string { return c.config.BaseURL }

// Leaderboard returns the top limit entries. Zero uses the server default.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]leaderboard.Entry, error) {
	path := "/api/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Leaderboard []leaderboard.Entry `json:"leaderboard"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Leaderboard, nil
}

// SubmitScore records score for address.
func (c *Client) SubmitScore(ctx context.Context, address string, score int) (*Submission, error) {
	body := map[string]interface{}{"wallet_address": address, "score": score}
	var resp Submission
	if err := c.do(ctx, http.MethodPost, "/api/leaderboard/submit", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PlayerStats returns stats for address. Use IsNotFound to detect a player
// the server has never seen.
func (c *Client) PlayerStats(ctx context.Context, address string) (*Player, error) {
	var resp struct {
		Player Player `json:"player"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard/player/"+url.PathEscape(address), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Player, nil
}

// MarkNFTMinted records that address has minted its reward.
func (c *Client) MarkNFTMinted(ctx context.Context, address string) error {
	body := map[string]interface{}{"wallet_address": address}
	return c.do(ctx, http.MethodPost, "/api/leaderboard/nft-minted", body, nil)
}

// Summary returns aggregate leaderboard stats.
func (c *Client) Summary(ctx context.Context) (*leaderboard.Summary, error) {
	var resp struct {
		Summary leaderboard.Summary `json:"summary"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard/summary", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Summary, nil
}

// do sends a request with retries and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.base == nil || c.base.Scheme == "" || c.base.Host == "" {
		return fmt.Errorf("lbclient: invalid base URL %q", c.config.BaseURL)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("lbclient: marshal request: %w", err)
		}
	}

	backoff := retry.NewExponential(c.config.BaseRetryDelay)
	backoff = retry.WithCappedDuration(c.config.MaxRetryDelay, backoff)
	backoff = retry.WithMaxRetries(c.config.MaxRetries, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.once(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		if apiErr, ok := err.(*APIError); ok && !apiErr.IsRetryable() {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("lbclient: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		if token := c.submitToken(); token != "" {
			req.Header.Set("X-Submit-Token", token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("lbclient: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("lbclient: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("lbclient: invalid response JSON: %w", err)
	}
	return nil
}
