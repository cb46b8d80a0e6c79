package quetzal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// Static errors for err113 compliance.
var (
	ErrConflictingAuth     = errors.New("an API key cannot be combined with a token or username/password")
	ErrIncompleteBasicAuth = errors.New("username and password must be provided together")
	ErrInvalidURLScheme    = errors.New("URL scheme must be http or https")
)

// Client is the entry point to the Quetzal API.
type Client interface {
	Auth() AuthClient
	Workspaces() WorkspacesClient
	Files() FilesClient
	Queries() QueriesClient
}

// AuthClient manages the session token.
type AuthClient interface {
	// Login exchanges the configured username and password for a token.
	Login(ctx context.Context) error
	// Logout invalidates the current token on the server and forgets it.
	Logout(ctx context.Context) error
	// Token returns the current token, empty when none is known.
	Token() string
}

// WorkspacesClient manages workspaces and their files.
type WorkspacesClient interface {
	Create(ctx context.Context, request *WorkspaceCreateRequest) (*Workspace, error)
	Get(ctx context.Context, id int64) (*Workspace, error)
	// GetByName finds a workspace by name. An empty owner means the
	// configured username.
	GetByName(ctx context.Context, name, owner string) (*Workspace, error)
	List(ctx context.Context, opts *WorkspaceListOptions) ([]Workspace, int, error)
	Iterate(ctx context.Context, opts *WorkspaceListOptions) *PaginationIterator[Workspace]
	Commit(ctx context.Context, id int64) (*Workspace, error)
	Scan(ctx context.Context, id int64) (*Workspace, error)
	Delete(ctx context.Context, id int64) (*Workspace, error)

	// Wait polls the workspace while keepWaiting returns true.
	Wait(ctx context.Context, id int64, keepWaiting func(*Workspace) bool, opts *WaitOptions) (*Workspace, error)
	// WaitWhile polls the workspace while its status equals status.
	WaitWhile(ctx context.Context, id int64, status WorkspaceStatus, opts *WaitOptions) (*Workspace, error)

	Files(ctx context.Context, id int64, opts *FileListOptions) ([]File, int, error)
	File(ctx context.Context, id int64, fileID string) (*File, error)
	Upload(ctx context.Context, id int64, request *UploadRequest) (*File, error)
	UpdateMetadata(ctx context.Context, id int64, fileID string, metadata map[string]map[string]interface{}) (*File, error)
}

// FilesClient reads files. A zero workspace id addresses committed,
// public files.
type FilesClient interface {
	List(ctx context.Context, opts *FileListOptions) ([]File, int, error)
	Get(ctx context.Context, workspaceID int64, fileID string) (*File, error)
	// Find returns the single file matching filters.
	Find(ctx context.Context, workspaceID int64, filters map[string]string) (*File, error)
	// Read streams the contents of a file to w.
	Read(ctx context.Context, workspaceID int64, fileID string, w io.Writer) error
	// Download stores a file under its base path and filename and returns
	// the local path. Files already present with the same checksum and size
	// are not downloaded again.
	Download(ctx context.Context, request *DownloadRequest) (string, error)
}

// QueriesClient runs SQL queries against public or workspace data.
type QueriesClient interface {
	// Create submits a query and returns its first page of results.
	Create(ctx context.Context, workspaceID int64, request *QueryCreateRequest, perPage int) (*Query, error)
	Get(ctx context.Context, workspaceID, queryID int64, page, perPage int) (*Query, error)
	// Run creates a query and pages through its results up to opts.Limit rows.
	Run(ctx context.Context, workspaceID int64, query string, opts *QueryOptions) (*QueryResult, error)
}

// WaitOptions tunes a workspace wait.
type WaitOptions struct {
	// Interval between polls; zero means one second.
	Interval time.Duration
	// OnProgress is called with every snapshot that keeps the wait going.
	OnProgress func(*Workspace)
	// OnComplete is called once with the final snapshot.
	OnComplete func(*Workspace)
}

// DownloadRequest selects a file to download.
type DownloadRequest struct {
	WorkspaceID int64
	FileID      string
	// Filters find the file when FileID is empty.
	Filters   map[string]string
	OutputDir string
}

// QueryOptions tunes a query run.
type QueryOptions struct {
	Dialect string
	Limit   int
}

// StatusNotifier is told about every workspace status change seen while
// waiting.
type StatusNotifier interface {
	NotifyStatus(ctx context.Context, workspace *Workspace) error
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// NoopLogger discards everything.
type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]interface{}) {}
func (NoopLogger) Info(string, map[string]interface{})  {}
func (NoopLogger) Warn(string, map[string]interface{})  {}
func (NoopLogger) Error(string, map[string]interface{}) {}

// Config represents client configuration for building a quetzal.Client.
//
// # Authentication
//
// Provide at most one of:
//  1. AccessToken: sent as a Bearer token. Combined with Username/Password,
//     the token is used until the server rejects it, then a new one is
//     obtained with a login.
//  2. Username/Password: a token is obtained lazily on the first request and
//     renewed whenever the server answers 401.
//  3. APIKey: sent in the X-API-Key header. It cannot be combined with the
//     other modes.
//
// # Retries
//
// Transient failures are retried RetryMax times (3 by default) with
// exponential backoff between RetryWaitMin and RetryWaitMax.
type Config struct {
	// URL: base URL of the API, usually ending in /api/v1. quetzalclient.New
	// trims a trailing slash and adds "https://" if no scheme is present.
	URL string

	// Username and Password for the token endpoint.
	Username string
	Password string
	// AccessToken: an existing bearer token.
	AccessToken string
	// APIKey: a static API key.
	APIKey string

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// PoolSize: idle connections kept per host. Defaults to 4.
	PoolSize int
	// HTTPTimeout: optional per-attempt timeout. Zero relies on contexts only.
	HTTPTimeout time.Duration
	// RetryMax: retries after the first attempt of a call. Defaults to 3.
	RetryMax int
	// RetryWaitMin: delay before the first retry.
	RetryWaitMin time.Duration
	// RetryWaitMax: cap on the delay between retries.
	RetryWaitMax time.Duration
	// PollInterval: delay between workspace status checks. Defaults to 1s.
	PollInterval time.Duration
	// UserAgent: overrides the default User-Agent header.
	UserAgent string

	// Debug: enables request logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger used by the HTTP layer and helpers.
	Logger Logger
	// Notifier: optional receiver of workspace status changes.
	Notifier StatusNotifier
	// Filesystem: destination of downloads. Defaults to the OS filesystem.
	Filesystem afero.Fs
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	err := validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.PoolSize, validation.Min(0)),
		validation.Field(&c.RetryMax, validation.Min(0)),
	)
	if err != nil {
		result = multierror.Append(result, err)
	}

	if c.APIKey != "" && (c.AccessToken != "" || c.Username != "" || c.Password != "") {
		result = multierror.Append(result, ErrConflictingAuth)
	}

	if (c.Username == "") != (c.Password == "") {
		result = multierror.Append(result, ErrIncompleteBasicAuth)
	}

	return result.ErrorOrNil()
}

func httpURL(value interface{}) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURLScheme
	}

	return nil
}
