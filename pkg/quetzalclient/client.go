package quetzalclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/quetzal-org/quetzal-client/internal/client"
	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

// New creates a new Quetzal API client. The URL gets "https://" when it has
// no scheme and loses its trailing slash.
func New(ctx context.Context, config *quetzal.Config) (quetzal.Client, error) {
	if config == nil {
		return nil, quetzal.ErrConfigRequired
	}

	if config.URL == "" {
		return nil, quetzal.ErrURLRequired
	}

	normalized := *config
	normalized.URL = NormalizeURL(config.URL)

	if err := normalized.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c, err := client.New(ctx, &normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return c, nil
}

// NewWithToken creates a client authenticating with an existing token.
func NewWithToken(ctx context.Context, url, token string) (quetzal.Client, error) {
	return New(ctx, &quetzal.Config{
		URL:         url,
		AccessToken: token,
	})
}

// NewWithPassword creates a client that logs in on its first call.
func NewWithPassword(ctx context.Context, url, username, password string) (quetzal.Client, error) {
	return New(ctx, &quetzal.Config{
		URL:      url,
		Username: username,
		Password: password,
	})
}

// NewWithAPIKey creates a client sending a static API key.
func NewWithAPIKey(ctx context.Context, url, apiKey string) (quetzal.Client, error) {
	return New(ctx, &quetzal.Config{
		URL:    url,
		APIKey: apiKey,
	})
}

// NormalizeURL trims a trailing slash and defaults the scheme to https.
func NormalizeURL(raw string) string {
	url := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	return url
}

// StatusNotifier is a quetzal.StatusNotifier that owns a connection.
type StatusNotifier interface {
	quetzal.StatusNotifier
	Close() error
}

// NewNATSNotifier connects to NATS and returns a notifier publishing
// workspace status changes to quetzal.workspaces.<id>.status.
func NewNATSNotifier(natsURL string, opts ...nats.Option) (StatusNotifier, error) {
	notifier, err := client.NewNATSNotifier(natsURL, opts...)
	if err != nil {
		return nil, err
	}

	return notifier, nil
}
