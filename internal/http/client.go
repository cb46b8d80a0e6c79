package http

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/quetzal-org/quetzal-client/internal/auth"
	"github.com/quetzal-org/quetzal-client/internal/constants"
	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Scheme selects how a request authenticates.
type Scheme int

const (
	// SchemeBearer sends the stored token, or the API key when that is the
	// configured mode. A token is obtained first if none is stored.
	SchemeBearer Scheme = iota
	// SchemeNone sends no credentials besides the request's own headers.
	SchemeNone
)

// Request represents an API request.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
	Auth    Scheme

	// Stream replaces Body with a streamed payload. It is called again for
	// every attempt and must return the payload from its start.
	Stream func() (io.Reader, error)

	// Output receives the body of a successful response instead of
	// Response.Body.
	Output io.Writer
}

// Response represents an API response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client executes API calls with authentication, retries and the
// interceptor chain. It is safe for concurrent use.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	chain         *InterceptorChain
	credentials   *auth.Credentials
	authenticator *auth.Authenticator
	policy        *RetryPolicy
	logger        Logger
	debug         bool
	userAgent     string
	poolSize      int
	insecure      bool
	timeout       time.Duration
	chunkSize     int
	transport     http.RoundTripper
	interceptors  []*Interceptor
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(policy *RetryPolicy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithRetryConfig tunes the retry count and delays of the current policy.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		policy := *c.policy
		policy.MaxAttempts = retryMax
		policy.BaseDelay = waitMin
		policy.MaxDelay = waitMax
		c.policy = &policy
	}
}

// WithPoolSize sets the number of idle connections kept per host.
func WithPoolSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.poolSize = size
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify(insecure bool) Option {
	return func(c *Client) {
		c.insecure = insecure
	}
}

// WithTimeout sets a per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithChunkSize sets the upload chunk size.
func WithChunkSize(size int) Option {
	return func(c *Client) {
		c.chunkSize = size
	}
}

// WithTransport sets the transport behind the interceptor chain.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithInterceptor appends an interceptor after the built-in ones.
func WithInterceptor(interceptor *Interceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, interceptor)
	}
}

// NewClient creates a new HTTP client. credentials may be nil for
// unauthenticated use.
func NewClient(baseURL string, credentials *auth.Credentials, opts ...Option) *Client {
	if credentials == nil {
		credentials = auth.NewCredentials("", "", "", "")
	}

	client := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		credentials: credentials,
		policy:      DefaultRetryPolicy(),
		logger:      noopLogger{},
		userAgent:   constants.DefaultUserAgent,
		poolSize:    constants.DefaultPoolSize,
		chunkSize:   constants.UploadChunkSize,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.logger == nil {
		client.logger = noopLogger{}
	}

	client.policy = client.withRetryLogging(client.policy)
	client.authenticator = auth.NewAuthenticator(credentials, client)
	client.httpClient = client.buildHTTPClient()

	if client.insecure {
		client.logger.Warn("TLS certificate verification is disabled", nil)
	}

	return client
}

// Authenticator returns the authenticator sharing this client's credentials.
func (c *Client) Authenticator() *auth.Authenticator {
	return c.authenticator
}

// Credentials returns the credential store used by the client.
func (c *Client) Credentials() *auth.Credentials {
	return c.credentials
}

func (c *Client) withRetryLogging(policy *RetryPolicy) *RetryPolicy {
	logged := *policy
	next := policy.OnRetry

	logged.OnRetry = func(ctx context.Context, attempt int, apiErr *quetzal.APIError, delay time.Duration) {
		c.logger.Warn("request failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"status":  apiErr.Status,
			"kind":    apiErr.Kind.String(),
			"wait":    delay.String(),
		})

		if next != nil {
			next(ctx, attempt, apiErr, delay)
		}
	}

	return &logged
}

func (c *Client) buildHTTPClient() *http.Client {
	transport := c.transport
	if transport == nil {
		pooled := cleanhttp.DefaultPooledTransport()
		pooled.MaxIdleConnsPerHost = c.poolSize

		if c.insecure {
			pooled.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- explicitly requested by the user
		}

		transport = pooled
	}

	c.chain = NewInterceptorChain(transport,
		HeaderInterceptor(map[string]string{
			"Cache-Control": "no-cache",
			"User-Agent":    c.userAgent,
		}),
		QueryRedirectInterceptor(),
		ChunkedUploadInterceptor(c.chunkSize),
	)

	if c.debug {
		c.chain.Add(LoggingInterceptor(c.logger))
	}

	for _, interceptor := range c.interceptors {
		c.chain.Add(interceptor)
	}

	return &http.Client{
		Transport:     c.chain,
		CheckRedirect: c.chain.CheckRedirect,
		Timeout:       c.timeout,
	}
}

// Do executes a request. Failed calls return a *quetzal.APIError, the one
// of the last attempt when retries ran out.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Auth == SchemeBearer {
		if err := c.authenticator.EnsureToken(ctx); err != nil {
			return nil, fmt.Errorf("logging in: %w", err)
		}
	}

	body, err := requestBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, c.buildURL(req), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.setHeaders(httpReq.Request, req)
	c.applyAuth(httpReq.Request, req.Auth)

	state := &retryState{}

	resp, err := c.retryClient(state, req).Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, ctxErr)
		}

		if state.lastErr != nil {
			return nil, state.lastErr
		}

		return nil, quetzal.NewTransportError(err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		if state.lastErr != nil {
			return nil, state.lastErr
		}

		data, _ := io.ReadAll(resp.Body)

		return nil, c.policy.classify(resp.StatusCode, data, isLoginEndpoint(req.Path))
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
	}

	if req.Output != nil {
		if _, err := io.Copy(req.Output, resp.Body); err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}

		return response, nil
	}

	response.Body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Debug("API call", map[string]interface{}{
		"method": req.Method,
		"path":   req.Path,
		"status": resp.StatusCode,
	})

	return response, nil
}

// retryClient builds the retry loop of one logical call around the shared
// http.Client.
func (c *Client) retryClient(state *retryState, req *Request) *retryablehttp.Client {
	retryClient := &retryablehttp.Client{
		HTTPClient:   c.httpClient,
		RetryWaitMin: c.policy.BaseDelay,
		RetryWaitMax: c.policy.MaxDelay,
		RetryMax:     c.policy.MaxAttempts,
		CheckRetry:   c.policy.checkRetry(state, isLoginEndpoint(req.Path)),
		Backoff:      c.policy.backoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
		PrepareRetry: func(httpReq *http.Request) error {
			if state.lastErr != nil && state.lastErr.Kind == quetzal.KindUnauthorized {
				if err := c.authenticator.Login(httpReq.Context()); err != nil {
					c.logger.Warn("re-authentication failed", map[string]interface{}{
						"error": err.Error(),
					})
				}
			}

			c.applyAuth(httpReq, req.Auth)

			return nil
		},
	}

	if c.debug {
		retryClient.Logger = &leveledLogger{logger: c.logger}
	}

	return retryClient
}

// RequestToken implements auth.TokenRequester against the token endpoint.
func (c *Client) RequestToken(ctx context.Context, username, password string) (string, error) {
	credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))

	resp, err := c.Do(ctx, &Request{
		Method:  http.MethodPost,
		Path:    constants.TokenPath,
		Auth:    SchemeNone,
		Headers: map[string]string{"Authorization": "Basic " + credentials},
	})
	if err != nil {
		return "", err
	}

	var token struct {
		Token string `json:"token"`
	}

	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}

	return token.Token, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPut,
		Path:   path,
		Body:   body,
	})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPatch,
		Path:   path,
		Body:   body,
	})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodDelete,
		Path:   path,
	})
}

func (c *Client) buildURL(req *Request) string {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	return target
}

func (c *Client) setHeaders(httpReq *http.Request, req *Request) {
	httpReq.Header.Set("Accept", constants.ContentTypeJSON)

	if req.Body != nil && req.Stream == nil {
		httpReq.Header.Set("Content-Type", constants.ContentTypeJSON)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
}

func (c *Client) applyAuth(httpReq *http.Request, scheme Scheme) {
	if scheme != SchemeBearer {
		return
	}

	if token := c.credentials.BearerToken(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)

		return
	}

	if c.credentials.CurrentMode() == auth.ModeAPIKey {
		httpReq.Header.Set(constants.APIKeyHeader, c.credentials.APIKey())
	}
}

func requestBody(req *Request) (interface{}, error) {
	if req.Stream != nil {
		return retryablehttp.ReaderFunc(req.Stream), nil
	}

	if req.Body == nil {
		return nil, nil
	}

	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	return data, nil
}

func isLoginEndpoint(path string) bool {
	return strings.HasSuffix(strings.TrimSuffix(path, "/"), constants.TokenPath)
}
