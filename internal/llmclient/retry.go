// internal/llmclient/retry.go
package llmclient

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultRetryMaxElapsed = 2 * time.Minute
	retryMaxInterval       = 30 * time.Second
)

// retrier paces and retries provider calls. Every attempt, including retries,
// waits on the shared limiter.
type retrier struct {
	logger     *zap.Logger
	limiter    *rate.Limiter
	maxElapsed time.Duration
	// initialInterval is overridden by tests.
	initialInterval time.Duration
}

// newRetrier builds a retrier. rps <= 0 disables rate limiting.
func newRetrier(logger *zap.Logger, rps float64, maxElapsed time.Duration) *retrier {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if maxElapsed <= 0 {
		maxElapsed = defaultRetryMaxElapsed
	}
	return &retrier{
		logger:          logger,
		limiter:         limiter,
		maxElapsed:      maxElapsed,
		initialInterval: backoff.DefaultInitialInterval,
	}
}

// do runs op until it succeeds, returns a permanent error, or the retry
// budget is spent.
func (r *retrier) do(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxElapsedTime = r.maxElapsed
	b.MaxInterval = retryMaxInterval

	attempt := 0
	operation := func() error {
		attempt++
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := op()
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		r.logger.Warn("Oracle request failed, retrying.",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", next),
			zap.Error(err))
	}
	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)
}

// retryable reports whether an HTTP status is worth retrying. Status 0 means
// the request never got a response.
func retryable(status int) bool {
	switch status {
	case 0, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// classify marks err permanent unless its status is retryable.
func classify(status int, err error) error {
	if err == nil || retryable(status) {
		return err
	}
	return backoff.Permanent(err)
}
