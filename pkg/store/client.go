package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-flowstore/pkg/interfaces/logger"
	iface "github.com/goliatone/go-flowstore/pkg/interfaces/store"
)

// Entry is the record exchanged with the store-entries API.
type Entry = iface.Entry

const entriesPath = "v1/store-entries"

// Config holds the per-execution credentials for the remote store.
type Config struct {
	APIURL      string
	EngineToken string
	Timeout     time.Duration
	UserAgent   string
}

// Client talks to the remote store-entries endpoint. It holds no cache and
// never retries; every call is a single round-trip.
type Client struct {
	cfg      Config
	endpoint string
	client   *http.Client
	logger   logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient allows injecting a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if strings.TrimSpace(ua) != "" {
			cl.cfg.UserAgent = ua
		}
	}
}

// NewClient constructs a Client for cfg.APIURL.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	endpoint, err := entriesEndpoint(cfg.APIURL)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "go-flowstore"
	}
	cl := &Client{
		cfg:      cfg,
		endpoint: endpoint,
		logger:   &logger.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cl)
		}
	}
	if cl.client == nil {
		cl.client = &http.Client{Timeout: cl.cfg.Timeout}
	}
	cl.logger = cl.logger.With(
		logger.Field{Key: "endpoint", Value: endpoint},
		logger.Field{Key: "token", Value: MaskToken(cfg.EngineToken)},
	)
	return cl, nil
}

// Endpoint returns the resolved store-entries URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Get fetches the entry at key. A 404 yields a nil entry and nil error.
func (c *Client) Get(ctx context.Context, key string) (*Entry, error) {
	target := c.entryURL(key)
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return c.send(req, key, true)
}

// Put upserts entry. The remote owns conflict resolution.
func (c *Client) Put(ctx context.Context, entry Entry) (*Entry, error) {
	entry.Value = iface.NormalizeValue(entry.Value)
	body, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("store: encode entry %q: %w", entry.Key, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, entry.Key, true)
}

// Delete removes the entry at key. Deleting a missing key succeeds.
func (c *Client) Delete(ctx context.Context, key string) error {
	target := c.entryURL(key)
	req, err := c.newRequest(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return err
	}
	_, err = c.send(req, key, false)
	return err
}

func (c *Client) newRequest(ctx context.Context, method, target string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.EngineToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	return req, nil
}

func (c *Client) send(req *http.Request, key string, decode bool) (*Entry, error) {
	target := req.URL.String()
	c.logger.Debug("store request",
		logger.Field{Key: "method", Value: req.Method},
		logger.Field{Key: "key", Value: key},
	)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: target, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug("store entry not found",
			logger.Field{Key: "method", Value: req.Method},
			logger.Field{Key: "key", Value: key},
		)
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("store request rejected",
			logger.Field{Key: "method", Value: req.Method},
			logger.Field{Key: "key", Value: key},
			logger.Field{Key: "status", Value: resp.StatusCode},
		)
		return nil, &StorageError{Key: key, StatusCode: resp.StatusCode, Cause: string(body)}
	}
	if !decode || len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var entry Entry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, &FetchError{URL: target, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &entry, nil
}

func (c *Client) entryURL(key string) string {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return c.endpoint
	}
	if key != "" {
		q := u.Query()
		q.Set("key", key)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func entriesEndpoint(apiURL string) (string, error) {
	apiURL = strings.TrimSpace(apiURL)
	if apiURL == "" {
		return "", ErrMissingAPIURL
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	endpoint := apiURL + entriesPath
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("store: invalid api url %q: %w", apiURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("store: invalid api url %q: scheme and host are required", apiURL)
	}
	return endpoint, nil
}
