// internal/validation/failure.go
package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/uiforge/internal/browser"
)

// FailureKind tags why an attempt failed.
type FailureKind string

const (
	KindTimeout         FailureKind = "timeout"
	KindNotFound        FailureKind = "not_found"
	KindAssertionFailed FailureKind = "assertion_failed"
	KindNetworkError    FailureKind = "network_error"
	KindCanceled        FailureKind = "canceled"
	KindUnknown         FailureKind = "unknown"
)

// Classify maps a step error to its FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}
	if kind, ok := classifyKnown(err); ok {
		return kind
	}
	if kind, ok := classifyKnown(browser.Classify(err)); ok {
		return kind
	}
	return KindUnknown
}

func classifyKnown(err error) (FailureKind, bool) {
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled, true
	case errors.Is(err, browser.ErrAssertion):
		return KindAssertionFailed, true
	case errors.Is(err, browser.ErrElementNotFound):
		return KindNotFound, true
	case errors.Is(err, browser.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout, true
	case errors.Is(err, browser.ErrNavigation):
		return KindNetworkError, true
	}
	return "", false
}

// Failure describes the step that ended an attempt.
type Failure struct {
	// Step is the 1-based index of the failing step.
	Step int
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("step %d failed (%s): %v", f.Step, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// RetryPolicy decides whether a failed attempt is worth refining.
type RetryPolicy interface {
	ShouldRefine(f *Failure) bool
}

// Policy names accepted by PolicyFor.
const (
	PolicyUniform = "uniform"
	PolicyStrict  = "strict"
)

// UniformPolicy refines after every failure regardless of its kind.
type UniformPolicy struct{}

func (UniformPolicy) ShouldRefine(*Failure) bool { return true }

// StrictPolicy gives up on failed assertions: the page was reachable and the
// elements were found, so the application disagrees with the scenario.
type StrictPolicy struct{}

func (StrictPolicy) ShouldRefine(f *Failure) bool {
	return f.Kind != KindAssertionFailed
}

// PolicyFor returns the policy registered under name. The empty name selects
// the uniform policy.
func PolicyFor(name string) (RetryPolicy, error) {
	switch name {
	case "", PolicyUniform:
		return UniformPolicy{}, nil
	case PolicyStrict:
		return StrictPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown retry policy %q", name)
}
