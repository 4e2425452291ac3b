package bpm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/five82/solarops/internal/logging"
	"github.com/five82/solarops/internal/session"
)

const (
	defaultBaseURL   = "127.0.0.1:8080"
	defaultUserAgent = "solarops/0.1"
	maxErrorBody     = 2048
)

// Request describes one API call. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

func (r Request) target() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}

// Client talks to the BPM REST API on behalf of the session's user.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	sessions  *session.Store
	log       logrus.FieldLogger

	requests  singleflight.Group
	refreshes singleflight.Group

	mu    sync.Mutex
	state AuthState
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses a copy of hc. The session cookie jar is installed when
// hc has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		cp := *hc
		c.http = &cp
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the logger used for auth recovery events.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithTimeout bounds every request. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// NewClient builds a Client for baseURL. A nil store gets a process-scoped one.
func NewClient(baseURL string, sessions *session.Store, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		if sessions, err = session.New(nil); err != nil {
			return nil, err
		}
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
		sessions:  sessions,
		log:       logging.Discard(),
		state:     Unauthenticated,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		c.http.Jar = sessions.Jar(base)
	}
	if sessions.HasToken() {
		c.state = Authenticated
	}
	return c, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Sessions returns the session store the client authenticates with.
func (c *Client) Sessions() *session.Store {
	return c.sessions
}

// Do sends req and decodes a JSON response into dest (which may be nil).
// Identical concurrent GETs share one round trip.
func (c *Client) Do(ctx context.Context, req Request, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	data, err := c.fetch(ctx, req)
	if err != nil {
		return err
	}
	if dest == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// FileInfo describes a downloaded body.
type FileInfo struct {
	ContentType string
	Filename    string
	Size        int64
}

// Download sends req and streams the raw body into w.
func (c *Client) Download(ctx context.Context, req Request, w io.Writer) (FileInfo, error) {
	if c == nil {
		return FileInfo{}, fmt.Errorf("client is nil")
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return FileInfo{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return FileInfo{}, fmt.Errorf("read download: %w", err)
	}
	info := FileInfo{ContentType: resp.Header.Get("Content-Type"), Size: n}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		info.Filename = params["filename"]
	}
	return info, nil
}

// fetch shares identical GETs. The shared read runs detached from any one
// caller so a cancelled caller never fails the others; each caller stops
// waiting when its own ctx is done.
func (c *Client) fetch(ctx context.Context, req Request) ([]byte, error) {
	if req.Method != http.MethodGet {
		return c.read(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := req.Method + " " + req.target() + " " + c.sessions.Token()
	ch := c.requests.DoChan(key, func() (any, error) {
		return c.read(context.WithoutCancel(ctx), req)
	})
	select {
	case <-ctx.Done():
		// Later callers start a fresh round trip instead of joining this one.
		c.requests.Forget(key)
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Client) read(ctx context.Context, req Request) ([]byte, error) {
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

// roundTrip sends req with the current token. A 401 triggers one refresh and
// one replay; everything else is returned to the caller as is. On success the
// caller owns the response body.
func (c *Client) roundTrip(ctx context.Context, req Request) (*http.Response, error) {
	token := c.sessions.Token()
	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp)

		fresh, err := c.renew(ctx, token)
		if err != nil {
			return nil, err
		}
		resp, err = c.send(ctx, req, fresh)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			discard(resp)
			c.log.WithField("path", req.Path).Warn("request rejected after token refresh")
			c.endSession()
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, ErrUnauthorized)
		}
	}
	if resp.StatusCode >= 400 {
		defer discard(resp)
		return nil, newAPIError(req, resp)
	}
	return resp, nil
}

// renew refreshes the token once for every request that saw a 401 with
// stale. Concurrent callers share a single refresh call, which runs detached
// from their contexts: a caller that gives up gets ctx.Err() and leaves the
// session untouched.
func (c *Client) renew(ctx context.Context, stale string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), stale)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	if cur := c.sessions.Token(); cur != "" && cur != stale {
		return cur, nil
	}
	c.setState(Refreshing)
	c.log.Debug("access token rejected, refreshing")

	token, err := c.Refresh(ctx)
	if err != nil {
		c.log.WithError(err).Warn("token refresh failed")
		c.endSession()
		return "", fmt.Errorf("refresh token: %w: %w", ErrUnauthorized, err)
	}
	if err := c.sessions.SetToken(token); err != nil {
		c.log.WithError(err).Warn("persist refreshed token")
	}
	c.setState(Authenticated)
	c.sessions.Notify(token)
	c.log.Debug("access token refreshed")
	return token, nil
}

func (c *Client) endSession() {
	if err := c.sessions.ClearToken(); err != nil {
		c.log.WithError(err).Warn("clear session")
	}
	c.setState(Unauthenticated)
	c.sessions.Notify("")
}

func (c *Client) send(ctx context.Context, req Request, token string) (*http.Response, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(req.Path, "/")
	u.RawQuery = req.Query.Encode()

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

func newAPIError(req Request, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Method: req.Method,
		Path:   req.Path,
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api url %q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
