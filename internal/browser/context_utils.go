// internal/browser/context_utils.go
package browser

import (
	"context"
	"time"
)

// CombineContext returns a context derived from primary that is also canceled
// when secondary is done. Values come from primary only, which matters for
// chromedp: the session context carries the CDP target while the caller's
// context carries the deadline.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext keeps the values of its parent but drops its deadline and
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but is not canceled
// when ctx is. Used for evidence capture after an operation has already timed
// out.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
