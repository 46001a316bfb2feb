package cms

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// ErrNotFound is returned when a query matches no document.
var ErrNotFound = errors.New("document not found")

// Config holds the content store endpoint settings.
type Config struct {
	BaseURL    string
	Dataset    string
	APIVersion string
	Token      string
	Timeout    time.Duration
	TTL        time.Duration
}

// FetchObserver is told about every query the client answers.
type FetchObserver func(name string, took time.Duration, cached bool, err error)

// Option configures a Client.
type Option func(*Client)

// WithCache puts a response cache in front of Query.
func WithCache(c ResponseCache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) { cl.httpClient = h }
}

// WithObserver registers a fetch observer.
func WithObserver(o FetchObserver) Option {
	return func(cl *Client) { cl.observer = o }
}

// Client talks to the headless CMS query, mutation and asset APIs.
type Client struct {
	baseURL    string
	dataset    string
	apiVersion string
	token      string
	ttl        time.Duration
	httpClient *http.Client
	cache      ResponseCache
	logger     *slog.Logger
	observer   FetchObserver

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a CMS client.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		dataset:    cfg.Dataset,
		apiVersion: strings.TrimPrefix(cfg.APIVersion, "v"),
		token:      cfg.Token,
		ttl:        cfg.TTL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type queryEnvelope struct {
	Result json.RawMessage `json:"result"`
	Ms     int             `json:"ms"`
}

type apiError struct {
	Error struct {
		Description string `json:"description"`
	} `json:"error"`
}

// Query runs query with params and decodes the result into out. A null
// result is ErrNotFound. Params are encoded as JSON query parameters named
// $key.
func (c *Client) Query(ctx context.Context, query string, params map[string]any, out any) error {
	start := time.Now()
	raw, cached, err := c.query(ctx, query, params, true)
	if c.observer != nil {
		c.observer(queryName(query), time.Since(start), cached, err)
	}
	if err != nil {
		return err
	}
	return decodeResult(raw, out)
}

func decodeResult(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding query result: %w", err)
	}
	return nil
}

// query runs one query. With useCache false the response cache is neither
// read nor written.
func (c *Client) query(ctx context.Context, query string, params map[string]any, useCache bool) (json.RawMessage, bool, error) {
	values := url.Values{}
	values.Set("query", query)
	for k, v := range params {
		enc, err := json.Marshal(v)
		if err != nil {
			return nil, false, fmt.Errorf("encoding param %s: %w", k, err)
		}
		values.Set("$"+k, string(enc))
	}

	key := cacheKey(c.dataset, values)
	cache := c.cache
	if !useCache {
		cache = nil
	}
	if cache != nil {
		if data, ok, err := cache.Get(ctx, key); err != nil {
			c.logger.Warn("cms cache read failed", "error", err)
		} else if ok {
			c.hits.Add(1)
			return data, true, nil
		}
		c.misses.Add(1)
	}

	endpoint := fmt.Sprintf("%s/v%s/data/query/%s?%s", c.baseURL, c.apiVersion, c.dataset, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return nil, false, err
	}

	var env queryEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, fmt.Errorf("decoding query envelope: %w", err)
	}

	if cache != nil {
		err := cache.Set(ctx, key, env.Result, c.ttl)
		switch {
		case errors.Is(err, ErrEntryTooLarge):
			c.logger.Debug("cms result too large to cache", "query", queryName(query), "bytes", len(env.Result))
		case err != nil:
			c.logger.Warn("cms cache write failed", "error", err)
		}
	}
	return env.Result, false, nil
}

// Mutation is one create, createOrReplace, patch or delete operation.
type Mutation map[string]any

// Create builds a create mutation for doc.
func Create(doc any) Mutation {
	return Mutation{"create": doc}
}

// MutationResult is the store's reply to Mutate.
type MutationResult struct {
	TransactionID string `json:"transactionId"`
	Results       []struct {
		ID        string `json:"id"`
		Operation string `json:"operation"`
	} `json:"results"`
}

// Mutate applies mutations in one transaction.
func (c *Client) Mutate(ctx context.Context, mutations []Mutation) (*MutationResult, error) {
	payload, err := json.Marshal(map[string]any{"mutations": mutations})
	if err != nil {
		return nil, fmt.Errorf("encoding mutations: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v%s/data/mutate/%s?returnIds=true", c.baseURL, c.apiVersion, c.dataset)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var res MutationResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decoding mutation result: %w", err)
	}
	return &res, nil
}

// Asset is an uploaded file document.
type Asset struct {
	ID  string `json:"_id"`
	URL string `json:"url"`
}

// UploadAsset stores a file and returns its asset document.
func (c *Client) UploadAsset(ctx context.Context, name, contentType string, data []byte) (*Asset, error) {
	endpoint := fmt.Sprintf("%s/v%s/assets/files/%s?filename=%s",
		c.baseURL, c.apiVersion, c.dataset, url.QueryEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var res struct {
		Document Asset `json:"document"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decoding asset result: %w", err)
	}
	return &res.Document, nil
}

// Healthcheck checks that the query API answers. It always goes to the
// API, never to the response cache.
func (c *Client) Healthcheck(ctx context.Context) error {
	var n int
	raw, _, err := c.query(ctx, `count(*[_type == "settings"])`, nil, false)
	if err == nil {
		err = decodeResult(raw, &n)
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("cms healthcheck: %w", err)
	}
	return nil
}

// CacheStats reports response cache hits and misses since start.
func (c *Client) CacheStats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cms request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading cms response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(body, &ae) == nil && ae.Error.Description != "" {
			return nil, fmt.Errorf("cms returned status %d: %s", resp.StatusCode, ae.Error.Description)
		}
		return nil, fmt.Errorf("cms returned status %d", resp.StatusCode)
	}
	return body, nil
}

// cacheKey hashes the dataset with the query and its params, which are
// both carried in values.
func cacheKey(dataset string, values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(dataset))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(values.Get(k)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// queryName picks the document type out of a query for logs and metrics.
func queryName(query string) string {
	const marker = `_type == "`
	i := strings.Index(query, marker)
	if i < 0 {
		return "query"
	}
	rest := query[i+len(marker):]
	if j := strings.IndexByte(rest, '"'); j >= 0 {
		return rest[:j]
	}
	return "query"
}
