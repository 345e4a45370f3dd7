// Package serpapi forwards web searches to SerpAPI (https://serpapi.com/search-api)
// and returns its JSON answer untouched.
package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/bryanwahyu/aml-analyser/internal/domain/ai"
)

const (
	provider       = "serpapi"
	DefaultBaseURL = "https://serpapi.com/search.json"
	DefaultDomain  = "google.com"
	EnvAPIKey      = "SERPAPI_API_KEY"
)

// ErrMissingAPIKey is returned by NewClient when no key is passed or set in the environment.
var ErrMissingAPIKey = errors.New("serpapi: api key not provided")

type Client struct {
	apiKey    string
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.client = hc } }

func WithUserAgent(ua string) Option { return func(c *Client) { c.userAgent = ua } }

// WithTimeout bounds each request, including reading the body. It applies to
// a copy of the HTTP client, whichever option set it.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// NewClient uses apiKey, or SERPAPI_API_KEY when apiKey is empty.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(EnvAPIKey))
	}
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{apiKey: key, baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = defaultHTTPClient()
	}
	if c.timeout > 0 {
		hc := *c.client
		hc.Timeout = c.timeout
		c.client = &hc
	}
	return c, nil
}

func defaultHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: 30 * time.Second, Transport: tr}
}

// Search runs a Google search. domain is sent as google_domain unless empty;
// extra parameters are merged last and may override anything.
func (c *Client) Search(ctx context.Context, query, domain string, extra map[string]string) (map[string]any, error) {
	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("api_key", c.apiKey)
	if domain != "" {
		q.Set("google_domain", domain)
	}
	for k, v := range extra {
		q.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ai.NewRemoteError(provider, 0, redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ai.NewRemoteError(provider, resp.StatusCode, err)
	}

	if resp.StatusCode/100 != 2 {
		return nil, ai.NewRemoteError(provider, resp.StatusCode, errors.New(errorMessage(body, resp.StatusCode)))
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, ai.NewRemoteError(provider, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}

// errorMessage prefers SerpAPI's {"error": "..."} body over the bare status.
func errorMessage(body []byte, status int) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return fmt.Sprintf("http %d", status)
}

// redact keeps the api key out of *url.Error messages.
func redact(err error, key string) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &url.Error{Op: uerr.Op, URL: strings.ReplaceAll(uerr.URL, key, "REDACTED"), Err: uerr.Err}
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
