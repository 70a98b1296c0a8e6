package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultBaseURL = "https://poe.ninja/api/data"
	USER_AGENT     = "loothound/1.0 (+https://github.com/loothound/loothound)"

	defaultTimeout  = 30 * time.Second
	defaultRetryMax = 3
)

// Logger abstracts logging so callers can use logrus or anything else with
// the same method set.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// leveled adapts Logger to retryablehttp.LeveledLogger.
type leveled struct{ log Logger }

func (l leveled) Error(msg string, kv ...interface{}) { l.log.Errorf("%s %v", msg, kv) }
func (l leveled) Info(msg string, kv ...interface{})  { l.log.Debugf("%s %v", msg, kv) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.log.Debugf("%s %v", msg, kv) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.log.Warnf("%s %v", msg, kv) }

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
	Proxy    string
	Log      Logger
}

// Client fetches overview documents over HTTP with retries.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	} else if opts.RetryMax == 0 {
		opts.RetryMax = defaultRetryMax
	}
	if opts.Log == nil {
		opts.Log = nopLogger{}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = leveled{log: opts.Log}
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.HTTPClient.Timeout = opts.Timeout

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %v", err)
		}
		retryClient.HTTPClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    retryClient,
	}, nil
}

func (c *Client) endpoint(league string, category Category) string {
	path := "/itemoverview"
	if category.Kind == KindCurrency {
		path = "/currencyoverview"
	}
	q := url.Values{}
	q.Set("league", league)
	q.Set("type", category.Name)
	return c.baseURL + path + "?" + q.Encode()
}

// FetchLines downloads and decodes one overview document.
func (c *Client) FetchLines(ctx context.Context, league string, category Category) ([]Line, error) {
	u := c.endpoint(league, category)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, u)
	}

	lines, err := decodeLines(string(body), category.Kind)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", league, category.Name, err)
	}
	return lines, nil
}
