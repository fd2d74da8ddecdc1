// internal/validation/steps.go
package validation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/browser"
)

var errInvalidStep = errors.New("invalid step")

// runSteps executes steps in order and stops at the first failure.
func runSteps(ctx context.Context, session schemas.BrowserSession, baseURL string, steps []schemas.Step) *Failure {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return &Failure{Step: i + 1, Kind: KindCanceled, Err: err}
		}
		if err := runStep(ctx, session, baseURL, step); err != nil {
			err = fmt.Errorf("%s %q: %w", step.Action, step.Target, err)
			return &Failure{Step: i + 1, Kind: Classify(err), Err: err}
		}
	}
	return nil
}

func runStep(ctx context.Context, session schemas.BrowserSession, baseURL string, step schemas.Step) error {
	switch step.Action {
	case schemas.ActionNavigate:
		target, err := browser.ResolveURL(baseURL, step.Target)
		if err != nil {
			return fmt.Errorf("%w: %v", errInvalidStep, err)
		}
		return session.Navigate(ctx, target)

	case schemas.ActionClick:
		return session.Click(ctx, step.Target)

	case schemas.ActionType:
		return session.Type(ctx, step.Target, step.Value)

	case schemas.ActionWait:
		return runWait(ctx, session, step)

	case schemas.ActionAssert:
		return runAssert(ctx, session, step)
	}
	return fmt.Errorf("%w: unsupported action %q", errInvalidStep, step.Action)
}

// runWait waits for a locator when a target is set, using value as an
// optional timeout, and otherwise sleeps for value.
func runWait(ctx context.Context, session schemas.BrowserSession, step schemas.Step) error {
	var d time.Duration
	if strings.TrimSpace(step.Value) != "" {
		parsed, err := ParseWaitDuration(step.Value)
		if err != nil {
			return fmt.Errorf("%w: %v", errInvalidStep, err)
		}
		d = parsed
	}
	if step.Target == "" && d <= 0 {
		return fmt.Errorf("%w: wait needs a locator or a duration", errInvalidStep)
	}
	return session.WaitFor(ctx, schemas.WaitCondition{Locator: step.Target, Duration: d})
}

// ParseWaitDuration accepts a Go duration ("1.5s") or integer milliseconds.
func ParseWaitDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if ms, err := strconv.Atoi(v); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("negative wait %q", v)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid wait duration %q", v)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative wait %q", v)
	}
	return d, nil
}

// runAssert checks the page URL or title, or waits for an element and
// optionally checks that its text contains value.
func runAssert(ctx context.Context, session schemas.BrowserSession, step schemas.Step) error {
	switch strings.ToLower(step.Target) {
	case schemas.AssertTargetURL, schemas.AssertTargetTitle:
		obs, err := session.ExtractInteractiveElements(ctx)
		if err != nil {
			return err
		}
		if obs == nil {
			return fmt.Errorf("%w: no page observation for %s", browser.ErrAssertion, strings.ToLower(step.Target))
		}
		got := obs.URL
		if strings.EqualFold(step.Target, schemas.AssertTargetTitle) {
			got = obs.Title
		}
		if !strings.Contains(got, step.Value) {
			return fmt.Errorf("%w: %s %q does not contain %q", browser.ErrAssertion, strings.ToLower(step.Target), got, step.Value)
		}
		return nil
	}

	if err := session.WaitFor(ctx, schemas.WaitCondition{Locator: step.Target}); err != nil {
		return err
	}
	if step.Value == "" {
		return nil
	}
	text, err := session.TextContent(ctx, step.Target)
	if err != nil {
		return err
	}
	if !strings.Contains(text, step.Value) {
		return fmt.Errorf("%w: text %q does not contain %q", browser.ErrAssertion, text, step.Value)
	}
	return nil
}
