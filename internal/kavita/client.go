package kavita

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultPluginName  = "kavita-notes"
	DefaultPageSize    = 100
	DefaultRetries     = 3
	DefaultConcurrency = 4

	defaultBackoff = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
)

type Options struct {
	BaseUrl    string
	ApiKey     string
	PluginName string

	Timeout           time.Duration
	PageSize          int
	Retries           int
	RequestsPerSecond float64
	Concurrency       int

	// Backoff is the delay before the first retry, doubled on every attempt.
	Backoff time.Duration
}

// Client talks to the Kavita REST api on behalf of a plugin api key.
// Safe for concurrent use.
type Client struct {
	base    *url.URL
	apiKey  string
	plugin  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger

	pageSize    int
	retries     int
	backoff     time.Duration
	concurrency int

	mu      sync.Mutex
	session *session
}

func NewClient(opts Options, l *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(opts.BaseUrl, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing kavita url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("kavita url must be http or https, got %q", opts.BaseUrl)
	}
	if opts.ApiKey == "" {
		return nil, errors.New("kavita api key is empty")
	}

	c := &Client{
		base:        base,
		apiKey:      opts.ApiKey,
		plugin:      opts.PluginName,
		http:        &http.Client{Timeout: opts.Timeout},
		limiter:     rate.NewLimiter(rate.Inf, 1),
		logger:      l,
		pageSize:    opts.PageSize,
		retries:     opts.Retries,
		backoff:     opts.Backoff,
		concurrency: opts.Concurrency,
	}

	if c.plugin == "" {
		c.plugin = DefaultPluginName
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	if c.retries < 0 {
		c.retries = 0
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultConcurrency
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return c, nil
}

type reply struct {
	header http.Header
	body   []byte
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	return u.String()
}

// do executes a request with pacing, retries and (when authed) a bearer token.
// A 404 is reported as errNotFound so lookups can treat it as absent.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, authed bool) (*reply, error) {
	target := c.endpoint(path, query)
	reauthenticated := false

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, err
			}
			c.logger.Debug("Retrying " + method + " " + c.redact(path) + " (attempt " + strconv.Itoa(attempt+1) + "): " + lastErr.Error())
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		if authed {
			req.Header.Set("Accept", "application/json")

			token, err := c.token(ctx)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}

		res, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %w", ErrConnectivity, err)
			continue
		}

		var bs []byte
		func() {
			defer res.Body.Close()
			bs, err = io.ReadAll(res.Body)
		}()

		if err != nil {
			lastErr = fmt.Errorf("%w: reading response: %w", ErrConnectivity, err)
			continue
		}

		switch code := res.StatusCode; {
		case code >= 200 && code < 300:
			return &reply{header: res.Header, body: bs}, nil
		case code == http.StatusNotFound:
			return nil, errNotFound
		case code == http.StatusUnauthorized && authed && !reauthenticated:
			c.logger.Info("Session token rejected, authenticating again")
			c.dropSession()
			reauthenticated = true
			attempt--
			continue
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %w", ErrAuthorization, &StatusError{Code: code, Body: truncateBody(bs)})
		case retryableStatus(code):
			lastErr = fmt.Errorf("%w: %w", ErrConnectivity, &StatusError{Code: code, Body: truncateBody(bs)})
			continue
		default:
			return nil, &StatusError{Code: code, Body: truncateBody(bs)}
		}
	}

	c.logger.Error("Giving up on " + method + " " + c.redact(path) + ": " + lastErr.Error())
	return nil, lastErr
}

// redact hides the api key, which the OPDS feeds carry in their path.
func (c *Client) redact(path string) string {
	return strings.ReplaceAll(path, c.apiKey, "***")
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff << (attempt - 1)
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
