package client

import (
	"bytes"
	"context"
	"crypto/md5" // #nosec G501 -- matches the checksum algorithm of the API
	"encoding/hex"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quetzal-org/quetzal-client/internal/constants"
	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

func checksum(data []byte) string {
	sum := md5.Sum(data) // #nosec G401 -- test fixture

	return hex.EncodeToString(sum[:])
}

// fileServer serves metadata as JSON and contents as an octet stream.
func fileServer(t *testing.T, contents []byte, downloads *int32) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/workspaces/6/files/"+testFileID, r.URL.Path)

		if r.Header.Get("Accept") == constants.ContentTypeOctetStream {
			atomic.AddInt32(downloads, 1)
			w.Header().Set("Content-Type", constants.ContentTypeOctetStream)
			_, _ = w.Write(contents)

			return
		}

		writeJSON(t, w, http.StatusOK, fileJSON(testFileID, "sub/01", "scan.nii", int64(len(contents)), checksum(contents)))
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestFilesClient_Download(t *testing.T) {
	t.Parallel()

	contents := []byte("voxel data")
	target := filepath.Join("out", "sub", "01", "scan.nii")

	t.Run("writes under base path and filename", func(t *testing.T) {
		t.Parallel()

		var downloads int32

		client, fs := newTestClient(t, fileServer(t, contents, &downloads))

		path, err := client.Files().Download(context.Background(), &quetzal.DownloadRequest{
			WorkspaceID: 6,
			FileID:      testFileID,
			OutputDir:   "out",
		})
		require.NoError(t, err)
		assert.Equal(t, target, path)

		data, err := afero.ReadFile(fs, target)
		require.NoError(t, err)
		assert.Equal(t, contents, data)
		assert.Equal(t, int32(1), atomic.LoadInt32(&downloads))
	})

	t.Run("skips an identical local file", func(t *testing.T) {
		t.Parallel()

		var downloads int32

		client, fs := newTestClient(t, fileServer(t, contents, &downloads))
		require.NoError(t, afero.WriteFile(fs, target, contents, 0o600))

		path, err := client.Files().Download(context.Background(), &quetzal.DownloadRequest{
			WorkspaceID: 6,
			FileID:      testFileID,
			OutputDir:   "out",
		})
		require.NoError(t, err)
		assert.Equal(t, target, path)
		assert.Zero(t, atomic.LoadInt32(&downloads))
	})

	t.Run("replaces a different local file", func(t *testing.T) {
		t.Parallel()

		var downloads int32

		client, fs := newTestClient(t, fileServer(t, contents, &downloads))
		require.NoError(t, afero.WriteFile(fs, target, []byte("voxel DATA"), 0o600))

		_, err := client.Files().Download(context.Background(), &quetzal.DownloadRequest{
			WorkspaceID: 6,
			FileID:      testFileID,
			OutputDir:   "out",
		})
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&downloads))

		data, err := afero.ReadFile(fs, target)
		require.NoError(t, err)
		assert.Equal(t, contents, data)
	})

	t.Run("argument errors", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t, func(http.ResponseWriter, *http.Request) {})

		_, err := client.Files().Download(context.Background(), &quetzal.DownloadRequest{FileID: testFileID})
		require.ErrorIs(t, err, constants.ErrOutputDirRequired)

		_, err = client.Files().Download(context.Background(), &quetzal.DownloadRequest{
			FileID:    testFileID,
			Filters:   map[string]string{"filename": "a"},
			OutputDir: "out",
		})
		require.ErrorIs(t, err, constants.ErrFileIDAndFilters)

		_, err = client.Files().Download(context.Background(), &quetzal.DownloadRequest{OutputDir: "out"})
		require.ErrorIs(t, err, ErrFileRequired)
	})
}

func TestLocalPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join("out", "a", "b", "f.txt"), localPath("out", &quetzal.BaseMetadata{Path: "a/b", Filename: "f.txt"}))
	assert.Equal(t, filepath.Join("out", "f.txt"), localPath("out", &quetzal.BaseMetadata{Filename: "f.txt"}))
	assert.Equal(t, filepath.Join("out", "etc", "f.txt"), localPath("out", &quetzal.BaseMetadata{Path: "../../etc", Filename: "f.txt"}))
	assert.Equal(t, filepath.Join("out", "x", "passwd"), localPath("out", &quetzal.BaseMetadata{Path: "x", Filename: "../passwd"}))
}

func TestFilesClient_Find(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		results []interface{}
		total   int
		wantErr error
	}{
		{name: "single match", results: []interface{}{fileJSON(testFileID, "", "a.txt", 1, "")}, total: 1},
		{name: "no match", results: []interface{}{}, total: 0, wantErr: constants.ErrFileNotFound},
		{
			name:    "several matches",
			results: []interface{}{fileJSON(testFileID, "", "a.txt", 1, ""), fileJSON(testFileID, "x", "a.txt", 1, "")},
			total:   5,
			wantErr: constants.ErrSeveralFilesMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/data/files/", r.URL.Path)
				assert.Equal(t, "filename=a.txt,path=", r.URL.Query().Get("filters"))
				writeJSON(t, w, http.StatusOK, map[string]interface{}{"page": 1, "pages": 1, "total": tt.total, "results": tt.results})
			})

			file, err := client.Files().Find(context.Background(), 0, map[string]string{"path": "", "filename": "a.txt"})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, testFileID, file.ID)
		})
	}
}

func TestFilesClient_Read(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/files/"+testFileID, r.URL.Path)
		assert.Equal(t, constants.ContentTypeOctetStream, r.Header.Get("Accept"))
		_, _ = w.Write([]byte("public contents"))
	})

	var out bytes.Buffer

	require.NoError(t, client.Files().Read(context.Background(), 0, testFileID, &out))
	assert.Equal(t, "public contents", out.String())

	require.ErrorIs(t, client.Files().Read(context.Background(), 0, "nope", &out), quetzal.ErrInvalidFileID)
}

func TestFormatFilters(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a=1,b=2,c=3", formatFilters(map[string]string{"c": "3", "a": "1", "b": "2"}))
	assert.Empty(t, formatFilters(nil))
}
