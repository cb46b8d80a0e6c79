package client

import (
	"context"
	"errors"

	"github.com/spf13/afero"

	"github.com/quetzal-org/quetzal-client/internal/auth"
	"github.com/quetzal-org/quetzal-client/internal/constants"
	"github.com/quetzal-org/quetzal-client/internal/http"
	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

// Static errors for err113 compliance.
var (
	ErrURLRequired = errors.New("quetzal URL is required")
)

// Client implements the quetzal.Client interface.
type Client struct {
	httpClient  *http.Client
	credentials *auth.Credentials
	baseURL     string
	logger      quetzal.Logger

	// Resource clients
	auth       *AuthClient
	workspaces *WorkspacesClient
	files      *FilesClient
	queries    *QueriesClient
}

func createHTTPClientOptions(config *quetzal.Config) []http.Option {
	var httpOpts []http.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(&loggerAdapter{logger: config.Logger}))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.RetryMax > 0 || config.RetryWaitMin > 0 || config.RetryWaitMax > 0 {
		retryMax := constants.DefaultRetryMax
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryMax > 0 {
			retryMax = config.RetryMax
		}

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(retryMax, retryWaitMin, retryWaitMax))
	}

	if config.PoolSize > 0 {
		httpOpts = append(httpOpts, http.WithPoolSize(config.PoolSize))
	}

	if config.InsecureSkipVerify {
		httpOpts = append(httpOpts, http.WithInsecureSkipVerify(true))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	return httpOpts
}

// New creates a new Quetzal API client. Authentication is lazy: a token is
// requested on the first call that needs one.
func New(_ context.Context, config *quetzal.Config) (*Client, error) {
	if config.URL == "" {
		return nil, ErrURLRequired
	}

	credentials := auth.NewCredentials(config.Username, config.Password, config.AccessToken, config.APIKey)
	httpClient := http.NewClient(config.URL, credentials, createHTTPClientOptions(config)...)

	logger := config.Logger
	if logger == nil {
		logger = quetzal.NoopLogger{}
	}

	client := &Client{
		httpClient:  httpClient,
		credentials: credentials,
		baseURL:     config.URL,
		logger:      logger,
	}

	client.initializeResourceClients(config)

	return client, nil
}

func (c *Client) initializeResourceClients(config *quetzal.Config) {
	interval := config.PollInterval
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}

	fs := config.Filesystem
	if fs == nil {
		fs = afero.NewOsFs()
	}

	poller := &Poller{
		interval: interval,
		notifier: config.Notifier,
		logger:   c.logger,
	}

	c.auth = NewAuthClient(c.httpClient)
	c.workspaces = NewWorkspacesClient(c.httpClient, poller, config.Username)
	c.files = NewFilesClient(c.httpClient, fs, c.logger)
	c.queries = NewQueriesClient(c.httpClient)
}

// Auth returns the session client.
func (c *Client) Auth() quetzal.AuthClient {
	return c.auth
}

// Workspaces returns the workspaces client.
func (c *Client) Workspaces() quetzal.WorkspacesClient {
	return c.workspaces
}

// Files returns the files client.
func (c *Client) Files() quetzal.FilesClient {
	return c.files
}

// Queries returns the queries client.
func (c *Client) Queries() quetzal.QueriesClient {
	return c.queries
}

// BaseURL returns the API base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// loggerAdapter adapts quetzal.Logger to http.Logger.
type loggerAdapter struct {
	logger quetzal.Logger
}

func (l *loggerAdapter) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, fields)
}

func (l *loggerAdapter) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, fields)
}

func (l *loggerAdapter) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, fields)
}

func (l *loggerAdapter) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, fields)
}
