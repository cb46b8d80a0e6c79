package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

const testFileID = "8d1a6e57-3f3c-4e47-9f0f-5c1ad2b0f6a1"

// newTestClient starts a server for handler and returns a client talking to
// it with a static token, fast retries and an in-memory filesystem.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, afero.Fs) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	fs := afero.NewMemMapFs()

	client, err := New(context.Background(), &quetzal.Config{
		URL:          server.URL,
		AccessToken:  "test-token",
		RetryMax:     3,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
		PollInterval: time.Millisecond,
		Filesystem:   fs,
	})
	require.NoError(t, err)

	return client, fs
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body interface{}) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if body != nil {
		assert.NoError(t, json.NewEncoder(w).Encode(body))
	}
}

func fileJSON(id, path, filename string, size int64, checksum string) map[string]interface{} {
	return map[string]interface{}{
		"id": id,
		"metadata": map[string]interface{}{
			"base": map[string]interface{}{
				"id":       id,
				"path":     path,
				"filename": filename,
				"size":     size,
				"checksum": checksum,
				"state":    "READY",
			},
		},
	}
}
