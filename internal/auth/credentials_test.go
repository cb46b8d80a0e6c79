package auth_test

import (
	"sync"
	"testing"

	"github.com/quetzal-org/quetzal-client/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestCredentials_CurrentMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		credentials *auth.Credentials
		want        auth.Mode
	}{
		{"empty", auth.NewCredentials("", "", "", ""), auth.ModeNone},
		{"username and password", auth.NewCredentials("alice", "secret", "", ""), auth.ModeBasic},
		{"username only", auth.NewCredentials("alice", "", "", ""), auth.ModeNone},
		{"token", auth.NewCredentials("", "", "tok", ""), auth.ModeBearer},
		{"token wins over password", auth.NewCredentials("alice", "secret", "tok", ""), auth.ModeBearer},
		{"api key", auth.NewCredentials("", "", "", "key"), auth.ModeAPIKey},
		{"password wins over api key", auth.NewCredentials("alice", "secret", "", "key"), auth.ModeBasic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.credentials.CurrentMode())
		})
	}
}

func TestCredentials_HasLoginCapability(t *testing.T) {
	t.Parallel()

	assert.True(t, auth.NewCredentials("alice", "secret", "", "").HasLoginCapability())
	assert.False(t, auth.NewCredentials("alice", "", "", "").HasLoginCapability())
	assert.False(t, auth.NewCredentials("", "", "tok", "").HasLoginCapability())
}

func TestCredentials_SetAndClearToken(t *testing.T) {
	t.Parallel()

	credentials := auth.NewCredentials("alice", "secret", "", "")
	assert.Equal(t, auth.ModeBasic, credentials.CurrentMode())

	credentials.SetBearerToken("fresh")
	assert.Equal(t, "fresh", credentials.BearerToken())
	assert.Equal(t, auth.ModeBearer, credentials.CurrentMode())

	credentials.ClearBearerToken()
	assert.Empty(t, credentials.BearerToken())
	assert.Equal(t, auth.ModeBasic, credentials.CurrentMode())
}

func TestCredentials_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	credentials := auth.NewCredentials("alice", "secret", "", "")

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)

		go func() {
			defer wg.Done()
			credentials.SetBearerToken("tok")
		}()

		go func() {
			defer wg.Done()
			_ = credentials.CurrentMode()
		}()
	}

	wg.Wait()
	assert.Equal(t, "tok", credentials.BearerToken())
}

func TestMode_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", auth.ModeNone.String())
	assert.Equal(t, "basic", auth.ModeBasic.String())
	assert.Equal(t, "bearer", auth.ModeBearer.String())
	assert.Equal(t, "apikey", auth.ModeAPIKey.String())
}
