// internal/browser/errors.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by every BrowserSession implementation, so callers
// can classify failures with errors.Is regardless of the driver.
var (
	ErrElementNotFound = errors.New("element not found")
	ErrTimeout         = errors.New("browser action timed out")
	ErrNavigation      = errors.New("navigation failed")
	ErrAssertion       = errors.New("assertion failed")
	ErrSessionClosed   = errors.New("browser session is closed")
)

// Classify wraps a raw driver error with the matching sentinel. Errors that
// already carry a sentinel, and cancellations, are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrElementNotFound, ErrTimeout, ErrNavigation, ErrAssertion, ErrSessionClosed} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	// Heuristic classification of driver messages.
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "no element found"),
		strings.Contains(errStr, "could not find node"),
		strings.Contains(errStr, "selector"):
		return fmt.Errorf("%w: %w", ErrElementNotFound, err)
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "timed out"):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case strings.Contains(errStr, "net::err"), strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "no such host"):
		return fmt.Errorf("%w: %w", ErrNavigation, err)
	}
	return err
}
