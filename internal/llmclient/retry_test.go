package llmclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRetryable(t *testing.T) {
	for status, want := range map[int]bool{
		0:                              true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusServiceUnavailable:  true,
		http.StatusBadRequest:          false,
		http.StatusUnauthorized:        false,
		http.StatusNotFound:            false,
	} {
		assert.Equal(t, want, retryable(status), "status %d", status)
	}
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(http.StatusBadRequest, nil))

	err := errors.New("boom")
	assert.Same(t, err, classify(http.StatusTooManyRequests, err))

	var permanent *backoff.PermanentError
	assert.ErrorAs(t, classify(http.StatusForbidden, err), &permanent)
}

func TestRetrier_Do(t *testing.T) {
	t.Run("retries until success", func(t *testing.T) {
		r := fastRetrier(t)
		calls := 0
		err := r.do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent stops immediately", func(t *testing.T) {
		r := fastRetrier(t)
		calls := 0
		sentinel := errors.New("bad request")
		err := r.do(context.Background(), func() error {
			calls++
			return backoff.Permanent(sentinel)
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max elapsed", func(t *testing.T) {
		r := fastRetrier(t)
		r.maxElapsed = 50 * time.Millisecond
		sentinel := errors.New("still down")
		err := r.do(context.Background(), func() error { return sentinel })
		assert.ErrorIs(t, err, sentinel)
	})
}

func TestNewRetrier_Limiter(t *testing.T) {
	r := newRetrier(setupTestLogger(t), 0, 0)
	assert.Equal(t, rate.Inf, r.limiter.Limit())
	assert.Equal(t, defaultRetryMaxElapsed, r.maxElapsed)

	r = newRetrier(setupTestLogger(t), 0.5, time.Minute)
	assert.Equal(t, rate.Limit(0.5), r.limiter.Limit())
	assert.Equal(t, 1, r.limiter.Burst())
	assert.Equal(t, time.Minute, r.maxElapsed)

	r = newRetrier(setupTestLogger(t), 4, 0)
	assert.Equal(t, 4, r.limiter.Burst())
}
