package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Static errors for err113 compliance.
var (
	ErrEmptyToken = errors.New("token endpoint returned an empty token")
)

// TokenRequester exchanges a username and password for a bearer token.
type TokenRequester interface {
	RequestToken(ctx context.Context, username, password string) (string, error)
}

// Authenticator performs logins and stores the resulting token.
type Authenticator struct {
	credentials *Credentials
	requester   TokenRequester

	// serializes logins so concurrent 401s do not stampede the token endpoint
	mu sync.Mutex
}

// NewAuthenticator creates an authenticator for the given credentials.
func NewAuthenticator(credentials *Credentials, requester TokenRequester) *Authenticator {
	return &Authenticator{
		credentials: credentials,
		requester:   requester,
	}
}

// Credentials returns the credential store the authenticator writes to.
func (a *Authenticator) Credentials() *Credentials {
	return a.credentials
}

// Login requests a new token and stores it. It does nothing when the
// credentials have no username and password.
func (a *Authenticator) Login(ctx context.Context) error {
	if !a.credentials.HasLoginCapability() {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.login(ctx)
}

// EnsureToken logs in once when no token is stored yet.
func (a *Authenticator) EnsureToken(ctx context.Context) error {
	if a.credentials.BearerToken() != "" || !a.credentials.HasLoginCapability() {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// another caller may have logged in while we waited
	if a.credentials.BearerToken() != "" {
		return nil
	}

	return a.login(ctx)
}

func (a *Authenticator) login(ctx context.Context) error {
	username, password := a.credentials.BasicAuth()

	token, err := a.requester.RequestToken(ctx, username, password)
	if err != nil {
		return fmt.Errorf("requesting token: %w", err)
	}

	if token == "" {
		return ErrEmptyToken
	}

	a.credentials.SetBearerToken(token)

	return nil
}
