package http_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	quetzalhttp "github.com/quetzal-org/quetzal-client/internal/http"
)

func TestRetryPolicy_Delay(t *testing.T) {
	t.Parallel()

	t.Run("strictly increasing below the cap", func(t *testing.T) {
		t.Parallel()

		policy := quetzalhttp.DefaultRetryPolicy()

		previous := time.Duration(0)
		for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
			delay := policy.Delay(attempt)
			assert.Greater(t, delay, previous, "attempt %d", attempt)
			previous = delay
		}
	})

	t.Run("doubles from the base delay", func(t *testing.T) {
		t.Parallel()

		policy := &quetzalhttp.RetryPolicy{BaseDelay: time.Second, MaxDelay: time.Minute}

		assert.Equal(t, time.Second, policy.Delay(1))
		assert.Equal(t, 2*time.Second, policy.Delay(2))
		assert.Equal(t, 4*time.Second, policy.Delay(3))
	})

	t.Run("capped at max delay", func(t *testing.T) {
		t.Parallel()

		policy := &quetzalhttp.RetryPolicy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}

		assert.Equal(t, 3*time.Second, policy.Delay(10))
	})

	t.Run("jitter stays within half the delay", func(t *testing.T) {
		t.Parallel()

		policy := &quetzalhttp.RetryPolicy{BaseDelay: time.Second, MaxDelay: time.Minute, Jitter: true}

		for range 20 {
			delay := policy.Delay(2)
			assert.GreaterOrEqual(t, delay, 2*time.Second)
			assert.Less(t, delay, 3*time.Second)
		}
	})

	t.Run("attempt below one is treated as the first", func(t *testing.T) {
		t.Parallel()

		policy := &quetzalhttp.RetryPolicy{BaseDelay: time.Second, MaxDelay: time.Minute}

		assert.Equal(t, policy.Delay(1), policy.Delay(0))
	})
}
