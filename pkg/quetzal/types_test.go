package quetzal_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

func TestWorkspaceStatus_Transient(t *testing.T) {
	t.Parallel()

	for _, status := range []quetzal.WorkspaceStatus{
		quetzal.WorkspaceStatusInitializing,
		quetzal.WorkspaceStatusCommitting,
		quetzal.WorkspaceStatusScanning,
		quetzal.WorkspaceStatusDeleting,
	} {
		assert.True(t, status.Transient(), status)
	}

	for _, status := range []quetzal.WorkspaceStatus{
		quetzal.WorkspaceStatusReady,
		quetzal.WorkspaceStatusDeleted,
		quetzal.WorkspaceStatusError,
	} {
		assert.False(t, status.Transient(), status)
	}
}

func TestParseFamilies(t *testing.T) {
	t.Parallel()

	t.Run("base is always present", func(t *testing.T) {
		t.Parallel()

		families, err := quetzal.ParseFamilies(nil)
		require.NoError(t, err)
		assert.Equal(t, quetzal.FamilyVersions{"base": "latest"}, families)
	})

	t.Run("names and versions", func(t *testing.T) {
		t.Parallel()

		families, err := quetzal.ParseFamilies([]string{"iceberg:3", "markers", "base:2"})
		require.NoError(t, err)
		assert.Equal(t, quetzal.FamilyVersions{"base": "2", "iceberg": "3", "markers": "latest"}, families)
	})

	for _, entry := range []string{":3", "iceberg:", "iceberg:new"} {
		t.Run("invalid "+entry, func(t *testing.T) {
			t.Parallel()

			_, err := quetzal.ParseFamilies([]string{entry})
			require.ErrorIs(t, err, quetzal.ErrInvalidFamily)
		})
	}
}

func TestFamilyVersions_MarshalJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(quetzal.FamilyVersions{"base": "latest", "iceberg": "3", "markers": ""})
	require.NoError(t, err)
	assert.JSONEq(t, `{"base":null,"iceberg":3,"markers":null}`, string(data))

	_, err = json.Marshal(quetzal.FamilyVersions{"base": "new"})
	require.Error(t, err)
}

func TestWorkspaceCreateRequest_Validate(t *testing.T) {
	t.Parallel()

	valid := quetzal.WorkspaceCreateRequest{
		Name:        "my-workspace-1",
		Description: "test",
		Families:    quetzal.FamilyVersions{"base": "latest"},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		modify func(*quetzal.WorkspaceCreateRequest)
	}{
		{name: "empty name", modify: func(r *quetzal.WorkspaceCreateRequest) { r.Name = "" }},
		{name: "name with spaces", modify: func(r *quetzal.WorkspaceCreateRequest) { r.Name = "my workspace" }},
		{name: "name too long", modify: func(r *quetzal.WorkspaceCreateRequest) { r.Name = strings.Repeat("a", 65) }},
		{name: "no description", modify: func(r *quetzal.WorkspaceCreateRequest) { r.Description = "" }},
		{name: "no families", modify: func(r *quetzal.WorkspaceCreateRequest) { r.Families = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			request := valid
			tt.modify(&request)
			assert.Error(t, request.Validate())
		})
	}
}

func TestFile_Base(t *testing.T) {
	t.Parallel()

	var file quetzal.File

	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "8d1a6e57-3f3c-4e47-9f0f-5c1ad2b0f6a1",
		"metadata": {
			"base": {"id": "8d1a6e57-3f3c-4e47-9f0f-5c1ad2b0f6a1", "filename": "scan.nii", "path": "sub/01", "size": 42, "checksum": "abc", "state": "READY"},
			"iceberg": {"run": 3}
		}
	}`), &file))

	base, err := file.Base()
	require.NoError(t, err)
	assert.Equal(t, "scan.nii", base.Filename)
	assert.Equal(t, "sub/01", base.Path)
	assert.Equal(t, int64(42), base.Size)
	assert.Equal(t, "abc", base.Checksum)

	_, err = (&quetzal.File{ID: "x"}).Base()
	require.ErrorIs(t, err, quetzal.ErrMissingBaseFamily)
}

func TestValidateFileID(t *testing.T) {
	t.Parallel()

	require.NoError(t, quetzal.ValidateFileID("8d1a6e57-3f3c-4e47-9f0f-5c1ad2b0f6a1"))
	require.ErrorIs(t, quetzal.ValidateFileID("not-a-uuid"), quetzal.ErrInvalidFileID)
}

func TestQueryCreateRequest_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, quetzal.QueryCreateRequest{Dialect: "postgresql", Query: "SELECT 1"}.Validate())
	require.Error(t, quetzal.QueryCreateRequest{Dialect: "postgresql"}.Validate())
	require.Error(t, quetzal.QueryCreateRequest{Query: "SELECT 1"}.Validate())
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  quetzal.Config
		wantErr error
		message string
	}{
		{name: "token", config: quetzal.Config{URL: "https://quetzal.test/api/v1", AccessToken: "t"}},
		{name: "basic", config: quetzal.Config{URL: "http://localhost/api/v1", Username: "u", Password: "p"}},
		{name: "anonymous", config: quetzal.Config{URL: "https://quetzal.test/api/v1"}},
		{name: "missing url", config: quetzal.Config{}, message: "cannot be blank"},
		{name: "bad scheme", config: quetzal.Config{URL: "ftp://quetzal.test"}, message: "http or https"},
		{name: "negative pool", config: quetzal.Config{URL: "https://q.test", PoolSize: -1}, message: "PoolSize"},
		{
			name:    "api key with token",
			config:  quetzal.Config{URL: "https://q.test", APIKey: "k", AccessToken: "t"},
			wantErr: quetzal.ErrConflictingAuth,
		},
		{
			name:    "username without password",
			config:  quetzal.Config{URL: "https://q.test", Username: "u"},
			wantErr: quetzal.ErrIncompleteBasicAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()

			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.message != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.message)
			default:
				require.NoError(t, err)
			}
		})
	}
}
