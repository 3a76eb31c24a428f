package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/singleflight"

	"github.com/amoylab/wshub/internal/common/config"
	"github.com/amoylab/wshub/internal/common/dto"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = 300 * time.Millisecond
	defaultMaxRetryDelay  = 10 * time.Second
	defaultMaxLogEntries  = 100
	defaultRefreshPath    = "/auth/refresh"
	defaultHealthPath     = "/health"
)

// Config configures a Client. Zero values fall back to the defaults.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	DisableRetry   bool
	RetryBaseDelay time.Duration

	// RefreshPath is relative to BaseURL
	RefreshPath string
	// HealthPath is resolved against the host of BaseURL when it starts
	// with a slash
	HealthPath string

	LoggingEnabled bool
	LogLevel       string
	MaxLogEntries  int
}

// ConfigFromClientConfig maps the loaded client configuration
func ConfigFromClientConfig(c *config.ClientConfig) Config {
	return Config{
		BaseURL:        c.BaseURL,
		Timeout:        c.Timeout,
		MaxRetries:     c.MaxRetries,
		DisableRetry:   !c.EnableRetry,
		RetryBaseDelay: c.RetryBaseDelay,
		LoggingEnabled: c.LoggingEnabled,
		LogLevel:       c.LogLevel,
		MaxLogEntries:  c.MaxLogEntries,
	}
}

func (c *Config) applyDefaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = defaultRetryBaseDelay
	}
	if c.RefreshPath == "" {
		c.RefreshPath = defaultRefreshPath
	}
	if c.HealthPath == "" {
		c.HealthPath = defaultHealthPath
	}
	if c.MaxLogEntries <= 0 {
		c.MaxLogEntries = defaultMaxLogEntries
	}
}

// Response is a fully read HTTP response
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client is an HTTP client for the REST API. It injects the bearer token,
// retries transient failures, refreshes the session once on 401 and maps
// failures to typed errors.
type Client struct {
	Interceptors

	cfg      Config
	http     *http.Client
	tokens   TokenStore
	signal   *SessionSignal
	logger   *zap.Logger
	logLevel zapcore.Level
	logs     *logRing

	refreshGroup singleflight.Group
}

// Option customizes a Client
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTokenStore(s TokenStore) Option {
	return func(c *Client) { c.tokens = s }
}

func WithSessionSignal(s *SessionSignal) Option {
	return func(c *Client) { c.signal = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client. Without options it keeps tokens in memory and
// traces requests through otelhttp.
func New(cfg Config, opts ...Option) *Client {
	cfg.applyDefaults()
	c := &Client{
		cfg:    cfg,
		tokens: NewMemoryTokenStore(),
		signal: NewSessionSignal(),
		logger: zap.NewNop(),
		logs:   newLogRing(cfg.MaxLogEntries),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	c.logger = c.logger.Named("apiclient")

	c.logLevel = zapcore.InfoLevel
	if cfg.LogLevel != "" {
		if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
			c.logLevel = lvl
		}
	}
	return c
}

func (c *Client) Tokens() TokenStore     { return c.tokens }
func (c *Client) Signal() *SessionSignal { return c.signal }
func (c *Client) BaseURL() string        { return c.cfg.BaseURL }
func (c *Client) Logs() []LogEntry       { return c.logs.list() }
func (c *Client) ClearLogs()             { c.logs.clear() }

type requestOptions struct {
	method     string
	retries    *int
	skipAuth   bool
	allowRetry bool
	headers    http.Header
}

// RequestOption customizes a single call
type RequestOption func(*requestOptions)

// WithRetries overrides the retry count of one call
func WithRetries(n int) RequestOption {
	return func(o *requestOptions) {
		if n < 0 {
			n = 0
		}
		o.retries = &n
	}
}

// SkipAuth sends the request without the bearer token and without the
// refresh flow
func SkipAuth() RequestOption {
	return func(o *requestOptions) { o.skipAuth = true }
}

func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) { o.headers.Set(key, value) }
}

// WithMethod overrides the HTTP method, mostly for Upload
func WithMethod(method string) RequestOption {
	return func(o *requestOptions) { o.method = strings.ToUpper(method) }
}

// AllowRetry opts a non-idempotent call into retries
func AllowRetry() RequestOption {
	return func(o *requestOptions) { o.allowRetry = true }
}

func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodGet, path, nil, out, opts)
}

func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodPost, path, body, out, opts)
}

func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodPut, path, body, out, opts)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodPatch, path, body, out, opts)
}

func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodDelete, path, nil, out, opts)
}

// Upload sends r as the multipart file field. The method defaults to POST.
func (c *Client) Upload(ctx context.Context, path, field, filename string, r io.Reader, out any, opts ...RequestOption) (*Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, path, buf.Bytes(), mw.FormDataContentType(), out, opts)
}

// HealthCheck reports whether the server answers its health endpoint
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.do(ctx, http.MethodGet, c.healthURL(), nil, "", nil, []RequestOption{SkipAuth(), WithRetries(0)})
	return err == nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any, opts []RequestOption) (*Response, error) {
	var (
		payload     []byte
		contentType string
	)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		payload, contentType = data, "application/json"
	}
	return c.do(ctx, method, path, payload, contentType, out, opts)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, contentType string, out any, opts []RequestOption) (*Response, error) {
	ro := requestOptions{method: method, headers: http.Header{}}
	for _, opt := range opts {
		opt(&ro)
	}

	retries := c.cfg.MaxRetries
	if c.cfg.DisableRetry {
		retries = 0
	}
	if ro.retries != nil {
		retries = *ro.retries
	}

	req := &Request{
		Method:   ro.method,
		URL:      c.url(path),
		Path:     path,
		Header:   http.Header{},
		Body:     payload,
		Retries:  retries,
		SkipAuth: ro.skipAuth,
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if !ro.skipAuth {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for k, vs := range ro.headers {
		req.Header[k] = vs
	}

	start := time.Now()
	final, err := c.runRequest(ctx, req)
	if err != nil {
		err = c.runError(ctx, err)
		c.record(req, start, err)
		return nil, err
	}
	req = final

	resp, err := c.send(ctx, req, ro.allowRetry)
	if err == nil {
		resp, err = c.runResponse(ctx, resp)
	}
	if err == nil && out != nil && len(resp.Body) > 0 {
		if uerr := json.Unmarshal(resp.Body, out); uerr != nil {
			err = fmt.Errorf("decoding %s %s: %w", req.Method, req.Path, uerr)
		}
	}
	if err != nil {
		err = c.runError(ctx, err)
		c.record(req, start, err)
		return nil, err
	}
	c.recordResponse(req, start, resp.Status)
	return resp, nil
}

// send runs the request with retries and the one-shot refresh
func (c *Client) send(ctx context.Context, req *Request, allowRetry bool) (*Response, error) {
	retryable := allowRetry || idempotent(req.Method)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryBaseDelay
	b.MaxInterval = max(defaultMaxRetryDelay, c.cfg.RetryBaseDelay)

	op := func() (*Response, error) {
		resp, err := c.roundTrip(ctx, req)
		if err != nil {
			var netErr *NetworkError
			if retryable && ctx.Err() == nil && errors.As(err, &netErr) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}

		if resp.Status == http.StatusUnauthorized && !req.SkipAuth {
			if resp, err = c.reauthenticate(ctx, req, resp); err != nil {
				return nil, backoff.Permanent(err)
			}
		}
		if resp.Status >= 200 && resp.Status < 300 {
			return resp, nil
		}

		err = classify(resp)
		if retryable && retryableStatus(resp.Status) {
			c.logger.Debug("retrying request",
				zap.String("method", req.Method),
				zap.String("url", req.URL),
				zap.Int("status", resp.Status))
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(req.Retries+1)))
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			err = &NetworkError{Method: req.Method, URL: req.URL, Timeout: errors.Is(err, context.DeadlineExceeded), Cause: err}
		}
	}
	return resp, err
}

// roundTrip performs one attempt bounded by the configured timeout
func (c *Client) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	hreq.Header = req.Header.Clone()

	hresp, err := c.http.Do(hreq)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, URL: req.URL, Timeout: isTimeout(err), Cause: err}
	}
	defer hresp.Body.Close()

	data, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, URL: req.URL, Timeout: isTimeout(err), Cause: err}
	}
	return &Response{Status: hresp.StatusCode, Header: hresp.Header, Body: data}, nil
}

// reauthenticate retries req once with a fresh token. A token already
// replaced by another caller's refresh is reused without refreshing again.
func (c *Client) reauthenticate(ctx context.Context, req *Request, unauthorized *Response) (*Response, error) {
	used := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	token := c.tokens.Token()
	if token == "" || token == used {
		if c.tokens.RefreshToken() == "" {
			return unauthorized, nil
		}
		var err error
		if token, err = c.refresh(ctx, used); err != nil {
			return nil, err
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.roundTrip(ctx, req)
}

func (c *Client) refresh(ctx context.Context, used string) (string, error) {
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		if current := c.tokens.Token(); current != "" && current != used {
			return current, nil
		}
		return c.doRefresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) doRefresh(ctx context.Context) (string, error) {
	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		return "", c.invalidate(nil)
	}

	body, err := json.Marshal(dto.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", err
	}
	req := &Request{
		Method:   http.MethodPost,
		URL:      c.url(c.cfg.RefreshPath),
		Path:     c.cfg.RefreshPath,
		Header:   http.Header{"Content-Type": {"application/json"}, "Accept": {"application/json"}},
		Body:     body,
		SkipAuth: true,
	}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return "", c.invalidate(err)
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return "", c.invalidate(classify(resp))
	}

	doc := gjson.ParseBytes(resp.Body)
	token := doc.Get("token").String()
	if token == "" {
		return "", c.invalidate(errors.New("refresh response carries no token"))
	}
	if err := c.tokens.SetToken(token); err != nil {
		return "", err
	}
	if next := doc.Get("refreshToken").String(); next != "" {
		if err := c.tokens.SetRefreshToken(next); err != nil {
			return "", err
		}
	}
	c.logger.Debug("session refreshed")
	return token, nil
}

// invalidate drops both tokens and tells subscribers the session is over
func (c *Client) invalidate(cause error) error {
	if err := c.tokens.RemoveToken(); err != nil {
		c.logger.Warn("failed to remove token", zap.Error(err))
	}
	if err := c.tokens.RemoveRefreshToken(); err != nil {
		c.logger.Warn("failed to remove refresh token", zap.Error(err))
	}
	c.logger.Warn("session refresh failed", zap.Error(cause))
	c.signal.Publish(ReasonRefreshFailed)
	return &AuthError{Message: "Session expired", Code: "session_expired", Cause: cause}
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.cfg.BaseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) healthURL() string {
	if !strings.HasPrefix(c.cfg.HealthPath, "/") {
		return c.url(c.cfg.HealthPath)
	}
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return c.url(c.cfg.HealthPath)
	}
	return base.ResolveReference(&url.URL{Path: c.cfg.HealthPath}).String()
}

func (c *Client) record(req *Request, start time.Time, err error) {
	c.log(req, start, statusOf(err), err)
}

func (c *Client) recordResponse(req *Request, start time.Time, status int) {
	c.log(req, start, status, nil)
}

func (c *Client) log(req *Request, start time.Time, status int, err error) {
	if !c.cfg.LoggingEnabled {
		return
	}
	entry := LogEntry{
		Time:     start,
		Method:   req.Method,
		URL:      req.URL,
		Status:   status,
		Duration: time.Since(start),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	c.logs.add(entry)

	level := c.logLevel
	if err != nil && level < zapcore.WarnLevel {
		level = zapcore.WarnLevel
	}
	if ce := c.logger.Check(level, "api request"); ce != nil {
		ce.Write(
			zap.String("method", entry.Method),
			zap.String("url", entry.URL),
			zap.Int("status", status),
			zap.Duration("duration", entry.Duration),
			zap.Error(err))
	}
}

func statusOf(err error) int {
	var (
		authErr *AuthError
		valErr  *ValidationError
		apiErr  *APIError
	)
	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &valErr):
		return valErr.Status
	case errors.As(err, &apiErr):
		return apiErr.Status
	}
	return 0
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
