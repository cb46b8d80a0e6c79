package quetzal

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind groups API errors by how the transport reacts to them.
type Kind int

const (
	// KindUnknown is used when no HTTP status is known.
	KindUnknown Kind = iota
	// KindClientError is never retried.
	KindClientError
	// KindServerError is reserved for server failures that must not be
	// retried. The default classifier never produces it.
	KindServerError
	// KindUnauthorized triggers a login and a retry when AuthorizeOK is set.
	KindUnauthorized
	// KindRetryableServerError is retried with backoff.
	KindRetryableServerError
)

func (k Kind) String() string {
	switch k {
	case KindClientError:
		return "client_error"
	case KindServerError:
		return "server_error"
	case KindUnauthorized:
		return "unauthorized"
	case KindRetryableServerError:
		return "retryable_server_error"
	default:
		return "unknown"
	}
}

// StatusUnknown marks an error without an HTTP status.
const StatusUnknown = -1

// Defaults used when the API did not return a problem document.
const (
	UnknownTitle  = "unknown"
	UnknownDetail = "A problem occurred, but the API did not generate a standard error response"
)

// APIError is the only error type returned for failed API calls.
type APIError struct {
	Status   int    `json:"status"             yaml:"status"`
	Title    string `json:"title"              yaml:"title"`
	Detail   string `json:"detail"             yaml:"detail"`
	Type     string `json:"type,omitempty"     yaml:"type,omitempty"`
	Instance string `json:"instance,omitempty" yaml:"instance,omitempty"`
	Kind     Kind   `json:"-"                  yaml:"-"`

	// AuthorizeOK is set on 401 responses that a new login may fix.
	AuthorizeOK bool `json:"-" yaml:"-"`

	cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status == StatusUnknown {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}

	return fmt.Sprintf("%s: %s (status: %d)", e.Title, e.Detail, e.Status)
}

// Unwrap returns the transport error behind a network failure, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}

// Is matches the sentinel errors of this package by status.
func (e *APIError) Is(target error) bool {
	sentinel, ok := target.(*APIError)
	if !ok || !isSentinel(sentinel) {
		return false
	}

	return e.Status == sentinel.Status
}

// Retryable reports whether the executor should try the call again.
func (e *APIError) Retryable() bool {
	return e.Kind == KindRetryableServerError || (e.Kind == KindUnauthorized && e.AuthorizeOK)
}

// Common error types, usable with errors.Is.
var (
	ErrBadRequest         = &APIError{Status: http.StatusBadRequest, Title: "Bad Request"}
	ErrUnauthorized       = &APIError{Status: http.StatusUnauthorized, Title: "Unauthorized"}
	ErrForbidden          = &APIError{Status: http.StatusForbidden, Title: "Forbidden"}
	ErrNotFound           = &APIError{Status: http.StatusNotFound, Title: "Not Found"}
	ErrPreconditionFailed = &APIError{Status: http.StatusPreconditionFailed, Title: "Precondition Failed"}
	ErrServerError        = &APIError{Status: http.StatusInternalServerError, Title: "Internal Server Error"}
)

func isSentinel(target *APIError) bool {
	switch target {
	case ErrBadRequest, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrPreconditionFailed, ErrServerError:
		return true
	default:
		return false
	}
}

// Common static errors that can be wrapped with context.
var (
	ErrConfigRequired    = errors.New("config is required")
	ErrURLRequired       = errors.New("quetzal URL is required")
	ErrNoMoreItems       = errors.New("no more items")
	ErrInvalidFamily     = errors.New("invalid family, expected name or name:version")
	ErrInvalidFileID     = errors.New("invalid file id")
	ErrMissingBaseFamily = errors.New("file metadata has no base family")
)

// clientErrorStatuses are never retried, 500 included.
var clientErrorStatuses = map[int]bool{
	http.StatusBadRequest:          true,
	http.StatusForbidden:           true,
	http.StatusNotFound:            true,
	http.StatusPreconditionFailed:  true,
	http.StatusInternalServerError: true,
}

// Classifier turns a failed response into an APIError. loginEndpoint is set
// when the response came from the token endpoint.
type Classifier func(status int, body []byte, loginEndpoint bool) *APIError

// problem is an RFC 7807 problem document.
type problem struct {
	Status   int    `json:"status"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Type     string `json:"type"`
	Instance string `json:"instance"`
}

// ClassifyResponse is the default Classifier.
func ClassifyResponse(status int, body []byte, loginEndpoint bool) *APIError {
	apiErr := &APIError{
		Status: status,
		Title:  UnknownTitle,
		Detail: UnknownDetail,
	}

	var doc problem
	if len(body) > 0 && json.Unmarshal(body, &doc) == nil && (doc.Title != "" || doc.Detail != "" || doc.Status != 0) {
		if doc.Status != 0 {
			apiErr.Status = doc.Status
		}

		if doc.Title != "" {
			apiErr.Title = doc.Title
		}

		if doc.Detail != "" {
			apiErr.Detail = doc.Detail
		}

		apiErr.Type = doc.Type
		apiErr.Instance = doc.Instance
	}

	if apiErr.Status <= 0 {
		apiErr.Status = StatusUnknown
	}

	apiErr.Kind = kindForStatus(apiErr.Status)
	apiErr.AuthorizeOK = apiErr.Kind == KindUnauthorized && !loginEndpoint

	return apiErr
}

func kindForStatus(status int) Kind {
	switch {
	case status == StatusUnknown:
		return KindUnknown
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case clientErrorStatuses[status]:
		return KindClientError
	default:
		return KindRetryableServerError
	}
}

// NewTransportError classifies a failure to reach the server. These are
// always retryable.
func NewTransportError(err error) *APIError {
	detail := err.Error()

	var unknownAuthority x509.UnknownAuthorityError
	var verificationErr *tls.CertificateVerificationError

	if errors.As(err, &unknownAuthority) || errors.As(err, &verificationErr) {
		detail += " (use the insecure option to skip TLS verification)"
	}

	return &APIError{
		Status: StatusUnknown,
		Title:  "connection error",
		Detail: detail,
		Kind:   KindRetryableServerError,
		cause:  err,
	}
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized checks if the error is an unauthorized error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden checks if the error is a forbidden error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// KindOf returns the kind of the APIError in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	return KindUnknown
}
