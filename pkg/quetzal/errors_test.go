package quetzal_test

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClassifyResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		body          string
		loginEndpoint bool
		kind          quetzal.Kind
		authorizeOK   bool
		retryable     bool
	}{
		{name: "bad request", status: http.StatusBadRequest, kind: quetzal.KindClientError},
		{name: "forbidden", status: http.StatusForbidden, kind: quetzal.KindClientError},
		{name: "not found", status: http.StatusNotFound, kind: quetzal.KindClientError},
		{name: "precondition failed", status: http.StatusPreconditionFailed, kind: quetzal.KindClientError},
		{name: "internal server error is not retried", status: http.StatusInternalServerError, kind: quetzal.KindClientError},
		{name: "bad gateway", status: http.StatusBadGateway, kind: quetzal.KindRetryableServerError, retryable: true},
		{name: "service unavailable", status: http.StatusServiceUnavailable, kind: quetzal.KindRetryableServerError, retryable: true},
		{name: "conflict falls through to retryable", status: http.StatusConflict, kind: quetzal.KindRetryableServerError, retryable: true},
		{
			name:        "unauthorized data call",
			status:      http.StatusUnauthorized,
			kind:        quetzal.KindUnauthorized,
			authorizeOK: true,
			retryable:   true,
		},
		{
			name:          "unauthorized token call",
			status:        http.StatusUnauthorized,
			loginEndpoint: true,
			kind:          quetzal.KindUnauthorized,
		},
		{
			name:   "status in body wins",
			status: http.StatusServiceUnavailable,
			body:   `{"status":404,"title":"Not Found","detail":"gone"}`,
			kind:   quetzal.KindClientError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			apiErr := quetzal.ClassifyResponse(tt.status, []byte(tt.body), tt.loginEndpoint)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.authorizeOK, apiErr.AuthorizeOK)
			assert.Equal(t, tt.retryable, apiErr.Retryable())
		})
	}
}

func TestClassifyResponse_ProblemDocument(t *testing.T) {
	t.Parallel()

	t.Run("fields are copied", func(t *testing.T) {
		t.Parallel()

		body := `{"status":412,"title":"Precondition Failed","detail":"workspace is not ready","type":"about:blank","instance":"/data/workspaces/3/commit"}`

		apiErr := quetzal.ClassifyResponse(http.StatusPreconditionFailed, []byte(body), false)
		assert.Equal(t, http.StatusPreconditionFailed, apiErr.Status)
		assert.Equal(t, "Precondition Failed", apiErr.Title)
		assert.Equal(t, "workspace is not ready", apiErr.Detail)
		assert.Equal(t, "about:blank", apiErr.Type)
		assert.Equal(t, "/data/workspaces/3/commit", apiErr.Instance)
		assert.Equal(t, "Precondition Failed: workspace is not ready (status: 412)", apiErr.Error())
	})

	for _, body := range []string{"", "<html>proxy error</html>", `{"message":"no problem fields"}`} {
		t.Run("no problem document: "+body, func(t *testing.T) {
			t.Parallel()

			apiErr := quetzal.ClassifyResponse(http.StatusBadGateway, []byte(body), false)
			assert.Equal(t, http.StatusBadGateway, apiErr.Status)
			assert.Equal(t, quetzal.UnknownTitle, apiErr.Title)
			assert.Equal(t, quetzal.UnknownDetail, apiErr.Detail)
			assert.Equal(t, quetzal.KindRetryableServerError, apiErr.Kind)
		})
	}

	t.Run("missing status is unknown", func(t *testing.T) {
		t.Parallel()

		apiErr := quetzal.ClassifyResponse(0, nil, false)
		assert.Equal(t, quetzal.StatusUnknown, apiErr.Status)
		assert.Equal(t, quetzal.KindUnknown, apiErr.Kind)
		assert.False(t, apiErr.Retryable())
	})
}

func TestAPIError_Sentinels(t *testing.T) {
	t.Parallel()

	notFound := quetzal.ClassifyResponse(http.StatusNotFound, nil, false)
	wrapped := fmt.Errorf("getting workspace: %w", notFound)

	assert.True(t, quetzal.IsNotFound(wrapped))
	assert.False(t, quetzal.IsForbidden(wrapped))
	assert.False(t, quetzal.IsUnauthorized(wrapped))
	assert.ErrorIs(t, wrapped, quetzal.ErrNotFound)
	assert.NotErrorIs(t, wrapped, quetzal.ErrBadRequest)
	assert.Equal(t, quetzal.KindClientError, quetzal.KindOf(wrapped))

	forbidden := quetzal.ClassifyResponse(http.StatusForbidden, nil, false)
	assert.True(t, quetzal.IsForbidden(forbidden))

	unauthorized := quetzal.ClassifyResponse(http.StatusUnauthorized, nil, true)
	assert.True(t, quetzal.IsUnauthorized(unauthorized))

	other := quetzal.ClassifyResponse(http.StatusNotFound, nil, false)
	assert.NotErrorIs(t, notFound, other)

	assert.Equal(t, quetzal.KindUnknown, quetzal.KindOf(errors.New("plain")))
}

func TestNewTransportError(t *testing.T) {
	t.Parallel()

	t.Run("network failure", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("connection refused")
		apiErr := quetzal.NewTransportError(cause)

		assert.Equal(t, quetzal.StatusUnknown, apiErr.Status)
		assert.Equal(t, quetzal.KindRetryableServerError, apiErr.Kind)
		assert.True(t, apiErr.Retryable())
		require.ErrorIs(t, apiErr, cause)
		assert.NotContains(t, apiErr.Error(), "status:")
	})

	t.Run("certificate failure carries a hint", func(t *testing.T) {
		t.Parallel()

		apiErr := quetzal.NewTransportError(fmt.Errorf("dial: %w", x509.UnknownAuthorityError{}))
		assert.Contains(t, apiErr.Detail, "insecure")
	})
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unknown", quetzal.KindUnknown.String())
	assert.Equal(t, "client_error", quetzal.KindClientError.String())
	assert.Equal(t, "server_error", quetzal.KindServerError.String())
	assert.Equal(t, "unauthorized", quetzal.KindUnauthorized.String())
	assert.Equal(t, "retryable_server_error", quetzal.KindRetryableServerError.String())
}
