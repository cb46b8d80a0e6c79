package http

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/quetzal-org/quetzal-client/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrTooManyRedirects = errors.New("stopped after too many redirects")
)

// RequestInterceptor changes an outgoing request before it is sent. It works
// on a clone, never on the caller's request.
type RequestInterceptor func(req *http.Request) error

// RedirectInterceptor runs before a redirect of a matched request is
// followed. via[0] is the original request.
type RedirectInterceptor func(req *http.Request, via []*http.Request) error

// ResponseInterceptor observes a response.
type ResponseInterceptor func(req *http.Request, resp *http.Response, elapsed time.Duration)

// Interceptor applies to requests matching Method and Path. An empty Method
// or a nil Path matches everything.
type Interceptor struct {
	Name     string
	Method   string
	Path     *regexp.Regexp
	Request  RequestInterceptor
	Redirect RedirectInterceptor
	Response ResponseInterceptor
}

// Matches reports whether the interceptor applies to method and path.
func (i *Interceptor) Matches(method, path string) bool {
	if i.Method != "" && i.Method != method {
		return false
	}

	return i.Path == nil || i.Path.MatchString(path)
}

// InterceptorChain is an http.RoundTripper running interceptors around the
// next transport, and the redirect policy of the http.Client using it.
type InterceptorChain struct {
	next         http.RoundTripper
	interceptors []*Interceptor
}

// NewInterceptorChain creates a chain in front of next.
func NewInterceptorChain(next http.RoundTripper, interceptors ...*Interceptor) *InterceptorChain {
	if next == nil {
		next = http.DefaultTransport
	}

	return &InterceptorChain{
		next:         next,
		interceptors: interceptors,
	}
}

// Add appends an interceptor to the chain.
func (c *InterceptorChain) Add(interceptor *Interceptor) {
	c.interceptors = append(c.interceptors, interceptor)
}

// RoundTrip implements http.RoundTripper.
func (c *InterceptorChain) RoundTrip(req *http.Request) (*http.Response, error) {
	matched := c.matching(req.Method, req.URL.Path)
	if len(matched) == 0 {
		return c.next.RoundTrip(req)
	}

	out := req.Clone(req.Context())

	for _, interceptor := range matched {
		if interceptor.Request == nil {
			continue
		}

		if err := interceptor.Request(out); err != nil {
			if req.Body != nil {
				_ = req.Body.Close()
			}

			return nil, fmt.Errorf("%s interceptor: %w", interceptor.Name, err)
		}
	}

	start := time.Now()

	resp, err := c.next.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	for _, interceptor := range matched {
		if interceptor.Response != nil {
			interceptor.Response(out, resp, time.Since(start))
		}
	}

	return resp, nil
}

// CheckRedirect is used as http.Client.CheckRedirect. Interceptors are
// selected by the method and path of the original request.
func (c *InterceptorChain) CheckRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= constants.MaxRedirects {
		return fmt.Errorf("%w (%d)", ErrTooManyRedirects, constants.MaxRedirects)
	}

	original := via[0]

	for _, interceptor := range c.matching(original.Method, original.URL.Path) {
		if interceptor.Redirect == nil {
			continue
		}

		if err := interceptor.Redirect(req, via); err != nil {
			return fmt.Errorf("%s interceptor: %w", interceptor.Name, err)
		}
	}

	return nil
}

func (c *InterceptorChain) matching(method, path string) []*Interceptor {
	var matched []*Interceptor

	for _, interceptor := range c.interceptors {
		if interceptor.Matches(method, path) {
			matched = append(matched, interceptor)
		}
	}

	return matched
}

// Common Interceptors

var (
	queryCreatePath = regexp.MustCompile(`/data/(?:workspaces/\d+/)?queries/?$`)
	fileUploadPath  = regexp.MustCompile(`/data/workspaces/\d+/files/?$`)
)

// QueryRedirectInterceptor keeps every header of a query creation, the
// Authorization header included, when the server redirects to the query
// results.
func QueryRedirectInterceptor() *Interceptor {
	return &Interceptor{
		Name:   "query-redirect",
		Method: http.MethodPost,
		Path:   queryCreatePath,
		Redirect: func(req *http.Request, via []*http.Request) error {
			for key, values := range via[0].Header {
				req.Header[key] = append([]string(nil), values...)
			}

			return nil
		},
	}
}

// ChunkedUploadInterceptor streams upload bodies in chunks of chunkSize
// bytes with chunked transfer encoding.
func ChunkedUploadInterceptor(chunkSize int) *Interceptor {
	return &Interceptor{
		Name:   "chunked-upload",
		Method: http.MethodPost,
		Path:   fileUploadPath,
		Request: func(req *http.Request) error {
			if req.Body == nil || req.Body == http.NoBody {
				return nil
			}

			req.Body = chunkedBody{
				ChunkReader: NewChunkReader(req.Body, chunkSize),
				closer:      req.Body,
			}
			req.ContentLength = -1
			req.TransferEncoding = []string{"chunked"}
			req.Header.Del("Content-Length")

			return nil
		},
	}
}

// HeaderInterceptor sets headers the request does not already carry.
func HeaderInterceptor(headers map[string]string) *Interceptor {
	return &Interceptor{
		Name: "headers",
		Request: func(req *http.Request) error {
			for key, value := range headers {
				if req.Header.Get(key) == "" {
					req.Header.Set(key, value)
				}
			}

			return nil
		},
	}
}

// LoggingInterceptor logs every request and response at debug level.
func LoggingInterceptor(logger Logger) *Interceptor {
	return &Interceptor{
		Name: "logging",
		Request: func(req *http.Request) error {
			logger.Debug("HTTP request", map[string]interface{}{
				"method": req.Method,
				"url":    req.URL.Redacted(),
			})

			return nil
		},
		Response: func(req *http.Request, resp *http.Response, elapsed time.Duration) {
			logger.Debug("HTTP response", map[string]interface{}{
				"method":   req.Method,
				"url":      req.URL.Redacted(),
				"status":   resp.StatusCode,
				"duration": elapsed.String(),
			})
		},
	}
}
