// Package auth holds the credentials of a Quetzal client and the login flow
// that turns a username and password into a bearer token.
package auth

import "sync"

// Mode is the authentication scheme currently in effect.
type Mode int

const (
	// ModeNone sends requests without credentials.
	ModeNone Mode = iota
	// ModeBasic has a username and password but no token yet.
	ModeBasic
	// ModeBearer sends "Authorization: Bearer <token>".
	ModeBearer
	// ModeAPIKey sends a static API key header.
	ModeAPIKey
)

func (m Mode) String() string {
	switch m {
	case ModeBasic:
		return "basic"
	case ModeBearer:
		return "bearer"
	case ModeAPIKey:
		return "apikey"
	default:
		return "none"
	}
}

// Credentials is safe for concurrent use. The token is written by the
// authenticator and read by every outgoing request.
type Credentials struct {
	mu sync.RWMutex

	username    string
	password    string
	bearerToken string
	apiKey      string
}

// NewCredentials creates a credential set. Any value may be empty.
func NewCredentials(username, password, bearerToken, apiKey string) *Credentials {
	return &Credentials{
		username:    username,
		password:    password,
		bearerToken: bearerToken,
		apiKey:      apiKey,
	}
}

// Username returns the configured username.
func (c *Credentials) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.username
}

// BasicAuth returns the username and password pair.
func (c *Credentials) BasicAuth() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.username, c.password
}

// BearerToken returns the current token, empty when none is known.
func (c *Credentials) BearerToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.bearerToken
}

// SetBearerToken replaces the current token.
func (c *Credentials) SetBearerToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bearerToken = token
}

// ClearBearerToken forgets the current token.
func (c *Credentials) ClearBearerToken() {
	c.SetBearerToken("")
}

// APIKey returns the static API key.
func (c *Credentials) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.apiKey
}

// HasLoginCapability reports whether a token can be obtained with a login.
func (c *Credentials) HasLoginCapability() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.username != "" && c.password != ""
}

// CurrentMode resolves the active mode: a token wins over a username and
// password, which win over an API key.
func (c *Credentials) CurrentMode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.bearerToken != "":
		return ModeBearer
	case c.username != "" && c.password != "":
		return ModeBasic
	case c.apiKey != "":
		return ModeAPIKey
	default:
		return ModeNone
	}
}
