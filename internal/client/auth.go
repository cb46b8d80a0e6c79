package client

import (
	"context"
	"fmt"

	"github.com/quetzal-org/quetzal-client/internal/constants"
	"github.com/quetzal-org/quetzal-client/internal/http"
)

// AuthClient implements quetzal.AuthClient.
type AuthClient struct {
	httpClient *http.Client
}

// NewAuthClient creates a new auth client.
func NewAuthClient(httpClient *http.Client) *AuthClient {
	return &AuthClient{
		httpClient: httpClient,
	}
}

// Login implements quetzal.AuthClient.Login.
func (c *AuthClient) Login(ctx context.Context) error {
	err := c.httpClient.Authenticator().Login(ctx)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	return nil
}

// Logout implements quetzal.AuthClient.Logout. The local token is forgotten
// even when the server call fails.
func (c *AuthClient) Logout(ctx context.Context) error {
	credentials := c.httpClient.Credentials()
	if credentials.BearerToken() == "" {
		return nil
	}

	defer credentials.ClearBearerToken()

	_, err := c.httpClient.Post(ctx, constants.LogoutPath, nil)
	if err != nil {
		return fmt.Errorf("logging out: %w", err)
	}

	return nil
}

// Token implements quetzal.AuthClient.Token.
func (c *AuthClient) Token() string {
	return c.httpClient.Credentials().BearerToken()
}
