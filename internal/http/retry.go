package http

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/quetzal-org/quetzal-client/internal/constants"
	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

// RetryPolicy decides which failures are retried and how long to wait.
type RetryPolicy struct {
	// MaxAttempts is the number of retries after the first attempt.
	MaxAttempts int
	// BaseDelay is the wait before the first retry. It doubles per retry.
	BaseDelay time.Duration
	// MaxDelay caps a single wait.
	MaxDelay time.Duration
	// Jitter adds up to half of the delay at random.
	Jitter bool
	// Classify labels failed responses.
	Classify quetzal.Classifier
	// OnRetry is called before waiting for a retry. attempt starts at 1.
	OnRetry func(ctx context.Context, attempt int, apiErr *quetzal.APIError, delay time.Duration)
}

// DefaultRetryPolicy returns three exponential retries starting at one second.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: constants.DefaultRetryMax,
		BaseDelay:   constants.DefaultRetryWaitMin,
		MaxDelay:    constants.DefaultRetryWaitMax,
		Classify:    quetzal.ClassifyResponse,
	}
}

// Delay returns the wait before the given retry, counted from 1.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.BaseDelay
	for i := 1; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.Jitter && delay > 1 {
		delay += rand.N(delay / 2) // #nosec G404 -- jitter does not need a secure source
	}

	return delay
}

// classify applies the configured classifier, falling back to the default.
func (p *RetryPolicy) classify(status int, body []byte, loginEndpoint bool) *quetzal.APIError {
	if p.Classify != nil {
		return p.Classify(status, body, loginEndpoint)
	}

	return quetzal.ClassifyResponse(status, body, loginEndpoint)
}

// retryState belongs to a single logical call.
type retryState struct {
	attempt int
	lastErr *quetzal.APIError
}

// checkRetry builds the retryablehttp.CheckRetry hook of one call. Error
// bodies are read and put back so the caller can still decode them.
func (p *RetryPolicy) checkRetry(state *retryState, loginEndpoint bool) func(ctx context.Context, resp *http.Response, err error) (bool, error) {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		switch {
		case err != nil:
			state.lastErr = quetzal.NewTransportError(err)
		case resp.StatusCode < http.StatusBadRequest:
			state.lastErr = nil

			return false, nil
		default:
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(body))

			if readErr != nil {
				state.lastErr = quetzal.NewTransportError(readErr)
			} else {
				state.lastErr = p.classify(resp.StatusCode, body, loginEndpoint)
			}
		}

		if !state.lastErr.Retryable() {
			return false, nil
		}

		state.attempt++
		if state.attempt > p.MaxAttempts {
			return false, nil
		}

		if p.OnRetry != nil {
			p.OnRetry(ctx, state.attempt, state.lastErr, p.Delay(state.attempt))
		}

		return true, nil
	}
}

// backoff adapts Delay to retryablehttp, whose attempt numbers start at 0.
func (p *RetryPolicy) backoff(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
	return p.Delay(attemptNum + 1)
}
