package blog

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
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is where the blog API runs during development.
const DefaultBaseURL = "http://127.0.0.1:8000"

// DefaultPageSize is the page size the site requests.
const DefaultPageSize = 6

// maxPages bounds All against a server that never clears has_next.
const maxPages = 1000

var (
	// ErrUnexpectedStatus means a listing envelope did not report success.
	ErrUnexpectedStatus = errors.New("blog api did not report success")
	// ErrNotFound is returned for a 404 from the detail endpoint.
	ErrNotFound = errors.New("blog not found")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("blog api: %s: %s", e.URL, e.Status)
}

// Is lets errors.Is(err, ErrNotFound) match a 404.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Client reads and publishes articles through the blog API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cache   *Cache
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithRequestsPerMinute limits how often the API is called.
func WithRequestsPerMinute(rpm int) ClientOption {
	return func(cl *Client) {
		if rpm > 0 {
			cl.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
		}
	}
}

// WithCache serves Get from c when possible and stores fetched articles.
func WithCache(c *Cache) ClientOption {
	return func(cl *Client) {
		cl.cache = c
	}
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/120), 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches one article by ID.
func (c *Client) Get(ctx context.Context, id string) (Blog, error) {
	if c.cache != nil {
		if b, ok := c.cache.Get(id); ok {
			log.Debug("blog: cache hit", "id", id)
			return b, nil
		}
	}

	var b Blog
	if err := c.getJSON(ctx, "/blogs/"+url.PathEscape(id), nil, &b); err != nil {
		return Blog{}, err
	}
	if b.ID == "" {
		b.ID = id
	}

	if c.cache != nil {
		if err := c.cache.Put(b); err != nil {
			log.Warn("blog: caching article", "id", id, "err", err)
		}
	}
	return b, nil
}

// List fetches one page of articles. An empty category lists everything.
func (c *Client) List(ctx context.Context, page, limit int, category string) (ListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if category != "" {
		q.Set("category", category)
	}

	var resp ListResponse
	if err := c.getJSON(ctx, "/blogs", q, &resp); err != nil {
		return ListResponse{}, err
	}
	if resp.Status != "success" {
		return ListResponse{}, fmt.Errorf("%w: status %q", ErrUnexpectedStatus, resp.Status)
	}
	return resp, nil
}

// All walks every page and returns the aggregated articles.
func (c *Client) All(ctx context.Context, category string) ([]Blog, error) {
	var blogs []Blog
	for page := 1; page <= maxPages; page++ {
		resp, err := c.List(ctx, page, DefaultPageSize, category)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, resp.Data.Blogs...)
		if !resp.Data.Pagination.HasNext {
			break
		}
	}
	return blogs, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, "", v)
}

func (c *Client) postJSON(ctx context.Context, path string, body, v any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("blog api: encoding request: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data), "application/json", v)
}

// do sends one request and decodes a 2xx JSON response into v.
func (c *Client) do(ctx context.Context, method, u string, body io.Reader, contentType string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	log.Debug("blog: request", "method", method, "url", u)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("blog api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: u}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("blog api: decoding %s: %w", u, err)
	}
	return nil
}
