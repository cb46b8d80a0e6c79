package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration and download directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600

	// DownloadFilePerm is the permission for downloaded files.
	DownloadFilePerm = 0640
)

// Retry limits.
const (
	// DefaultRetryMax is the number of retries allowed after the first attempt of a call.
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the delay before the first retry.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax caps the delay between retries.
	DefaultRetryWaitMax = 30 * time.Second

	// MaxRedirects is the number of redirects followed before a request fails.
	MaxRedirects = 10
)

// Transport settings.
const (
	// DefaultPoolSize is the number of idle connections kept per host.
	DefaultPoolSize = 4

	// UploadChunkSize is the largest chunk read from an upload source at once.
	UploadChunkSize = 32 << 20

	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "quetzal-client-go"
)

// Polling.
const (
	// DefaultPollInterval is the delay between two workspace status checks.
	DefaultPollInterval = 1 * time.Second
)

// Pagination and query limits.
const (
	// MaxPageSize is the largest page size accepted by the API.
	MaxPageSize = 100

	// DefaultListLimit is the number of items a list helper collects by default.
	DefaultListLimit = 100

	// DefaultQueryDialect is used when a query does not name one.
	DefaultQueryDialect = "postgresql"
)

// Workspace families.
const (
	// BaseFamily is always part of a workspace.
	BaseFamily = "base"

	// LatestVersion asks the server for the latest family version.
	LatestVersion = "latest"
)

// API paths, relative to the configured base URL.
const (
	TokenPath      = "/auth/token"
	LogoutPath     = "/auth/logout"
	WorkspacesPath = "/data/workspaces/"
	FilesPath      = "/data/files/"
	QueriesPath    = "/data/queries/"
)

// Headers.
const (
	// APIKeyHeader carries a static API key.
	APIKeyHeader = "X-API-Key"

	// ContentTypeJSON is the media type of request and response bodies.
	ContentTypeJSON = "application/json"

	// ContentTypeOctetStream is requested when downloading file contents.
	ContentTypeOctetStream = "application/octet-stream"
)

// NATS subjects.
const (
	// WorkspaceStatusSubjectPrefix prefixes the subject of workspace status events.
	WorkspaceStatusSubjectPrefix = "quetzal.workspaces."
)
