// internal/validation/controller.go
package validation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/browser"
	"github.com/xkilldash9x/uiforge/internal/metrics"
	"github.com/xkilldash9x/uiforge/internal/selector"
)

const defaultCaptureTimeout = 10 * time.Second

// Controller proves scenarios against a live page and repairs them through a
// Refiner under a bounded number of attempts.
type Controller struct {
	logger         *zap.Logger
	refiner        Refiner
	policy         RetryPolicy
	metrics        *metrics.Recorder
	baseURL        string
	requirement    string
	screenshots    bool
	captureTimeout time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithRetryPolicy replaces the default uniform policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Controller) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithBaseURL sets the URL relative navigate targets are resolved against.
func WithBaseURL(u string) Option { return func(c *Controller) { c.baseURL = u } }

// WithRequirement sets the requirement text handed to the Refiner.
func WithRequirement(r string) Option { return func(c *Controller) { c.requirement = r } }

// WithScreenshots captures a screenshot after every failed attempt.
func WithScreenshots(enabled bool) Option { return func(c *Controller) { c.screenshots = enabled } }

func WithMetrics(rec *metrics.Recorder) Option { return func(c *Controller) { c.metrics = rec } }

// WithCaptureTimeout bounds observation capture after an attempt.
func WithCaptureTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.captureTimeout = d
		}
	}
}

// NewController builds a Controller. A nil refiner disables refinement: failed
// attempts are retried unchanged.
func NewController(logger *zap.Logger, refiner Refiner, opts ...Option) *Controller {
	c := &Controller{
		logger:         logger.Named("validation"),
		refiner:        refiner,
		policy:         UniformPolicy{},
		captureTimeout: defaultCaptureTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// runTarget is the per-plan context of a validation.
type runTarget struct {
	baseURL     string
	requirement string
}

// Validate runs up to maxIterations attempts of scenario against session. The
// returned scenario is either validated or carries its last observation and
// one error per failed attempt. maxIterations below 1 is treated as 1.
func (c *Controller) Validate(ctx context.Context, scenario schemas.Scenario, session schemas.BrowserSession, maxIterations int) schemas.Scenario {
	return c.validate(ctx, scenario, session, maxIterations, runTarget{baseURL: c.baseURL, requirement: c.requirement})
}

func (c *Controller) validate(ctx context.Context, scenario schemas.Scenario, session schemas.BrowserSession, maxIterations int, target runTarget) schemas.Scenario {
	if maxIterations < 1 {
		maxIterations = 1
	}
	log := c.logger.With(zap.String("scenario", scenario.Name))
	started := time.Now()

	working := scenario.Clone()
	working.Validated = false
	working.Attempts = 0
	working.Errors = nil
	if working.Selectors == nil {
		working.Selectors = schemas.SelectorMap{}
	}

	for attempt := 1; attempt <= maxIterations; attempt++ {
		log.Debug("Starting attempt.", zap.Int("attempt", attempt), zap.Int("steps", len(working.Steps)))

		failure := runSteps(ctx, session, target.baseURL, working.Steps)
		obs := c.capture(ctx, session, working.Name, attempt, failure != nil)
		working.Attempts = attempt
		working.LastObservation = obs

		if failure == nil {
			working.Validated = true
			added := selector.MergeObservation(working.Selectors, obs)
			c.metrics.ObserveAttempt("success")
			log.Info("Scenario validated.", zap.Int("attempts", attempt), zap.Int("selectors_added", added))
			break
		}

		c.metrics.ObserveAttempt(string(failure.Kind))
		working.Errors = append(working.Errors, fmt.Sprintf("attempt %d: %s", attempt, failure.Error()))
		log.Info("Attempt failed.", zap.Int("attempt", attempt), zap.String("kind", string(failure.Kind)), zap.Error(failure.Err))

		if ctx.Err() != nil || failure.Kind == KindCanceled {
			log.Warn("Validation interrupted.", zap.Error(ctx.Err()))
			break
		}
		if attempt == maxIterations {
			break
		}
		if !c.policy.ShouldRefine(failure) {
			log.Info("Retry policy abandoned the scenario.", zap.String("kind", string(failure.Kind)))
			break
		}
		c.refine(ctx, log, &working, failure, obs, attempt, target)
	}

	c.metrics.ObserveScenario(working.Validated, time.Since(started))
	return working
}

// refine replaces the working steps with the Refiner's proposal. A failed
// refinement leaves the scenario unchanged.
func (c *Controller) refine(ctx context.Context, log *zap.Logger, working *schemas.Scenario, failure *Failure, obs *schemas.PageObservation, attempt int, target runTarget) {
	if c.refiner == nil {
		return
	}
	refined, err := c.refiner.Refine(ctx, RefinementRequest{
		Requirement: target.requirement,
		BaseURL:     target.baseURL,
		Scenario:    *working,
		Failure:     failure,
		Observation: obs,
		Attempt:     attempt,
	})
	if err != nil {
		log.Warn("Refinement failed, retrying the current scenario.", zap.Error(err))
		return
	}

	working.Steps = append([]schemas.Step(nil), refined.Steps...)
	if refined.Description != "" {
		working.Description = refined.Description
	}
	if len(refined.ExpectedPages) > 0 {
		working.ExpectedPages = append([]string(nil), refined.ExpectedPages...)
	}
	if len(refined.Assertions) > 0 {
		working.Assertions = append([]string(nil), refined.Assertions...)
	}
	log.Debug("Scenario refined.", zap.Int("steps", len(working.Steps)))
}

// capture observes the page on a detached context so that a canceled or
// expired attempt still yields an observation.
func (c *Controller) capture(ctx context.Context, session schemas.BrowserSession, name string, attempt int, failed bool) *schemas.PageObservation {
	captureCtx, cancel := context.WithTimeout(browser.Detach(ctx), c.captureTimeout)
	defer cancel()

	obs, err := session.ExtractInteractiveElements(captureCtx)
	if err != nil || obs == nil {
		c.logger.Warn("Failed to capture page observation.", zap.String("scenario", name), zap.Error(err))
		obs = &schemas.PageObservation{}
		if err != nil {
			obs.Errors = []string{fmt.Sprintf("observation failed: %v", err)}
		}
	}

	if failed && c.screenshots {
		path, err := session.Screenshot(captureCtx, fmt.Sprintf("%s-attempt-%d", slug(name), attempt))
		if err != nil {
			c.logger.Debug("Failed to capture screenshot.", zap.Error(err))
		} else {
			obs.Screenshot = path
		}
	}
	return obs
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(name string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		return "scenario"
	}
	return s
}

// -- Plan validation --

// PlanOptions controls ValidatePlan.
type PlanOptions struct {
	MaxIterations int
	// Parallelism above 1 validates scenarios concurrently, each on its own
	// session from Factory.
	Parallelism int
	Factory     schemas.SessionFactory
}

// ValidatePlan validates every scenario of plan and returns them in the same
// order. Sequential runs share session; parallel runs open one session per
// scenario. A scenario whose session cannot be opened is returned unvalidated.
func (c *Controller) ValidatePlan(ctx context.Context, plan schemas.Plan, session schemas.BrowserSession, opts PlanOptions) (*schemas.ValidatedPlan, error) {
	target := runTarget{baseURL: plan.BaseURL, requirement: plan.Requirement}
	if target.baseURL == "" {
		target.baseURL = c.baseURL
	}
	if target.requirement == "" {
		target.requirement = c.requirement
	}

	results := make([]schemas.Scenario, len(plan.Scenarios))
	parallel := opts.Parallelism > 1 && opts.Factory != nil

	c.logger.Info("Validating plan.",
		zap.Int("scenarios", len(plan.Scenarios)),
		zap.Int("max_iterations", opts.MaxIterations),
		zap.Bool("parallel", parallel))

	if parallel {
		c.validateParallel(ctx, plan.Scenarios, results, opts, target)
	} else {
		if session == nil {
			if opts.Factory == nil {
				return nil, errors.New("validation requires a browser session or a session factory")
			}
			s, err := opts.Factory.NewSession(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to open browser session: %w", err)
			}
			defer closeSession(c.logger, s)
			session = s
		}
		for i, sc := range plan.Scenarios {
			results[i] = c.validate(ctx, sc, session, opts.MaxIterations, target)
		}
	}

	out := &schemas.ValidatedPlan{Plan: plan, Selectors: schemas.SelectorMap{}}
	out.Scenarios = results
	for _, sc := range results {
		if sc.Validated {
			selector.MergeMaps(out.Selectors, sc.Selectors)
		}
	}
	out.Summary = Summarize(results)

	c.logger.Info("Plan validated.",
		zap.Int("validated", out.Summary.Validated),
		zap.Int("total", out.Summary.Total),
		zap.Float64("success_rate", out.Summary.SuccessRate))
	return out, nil
}

func (c *Controller) validateParallel(ctx context.Context, scenarios, results []schemas.Scenario, opts PlanOptions, target runTarget) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)

	for i, sc := range scenarios {
		g.Go(func() error {
			s, err := opts.Factory.NewSession(gctx)
			if err != nil {
				failed := sc.Clone()
				failed.Validated = false
				failed.Attempts = 0
				failed.LastObservation = nil
				failed.Errors = []string{fmt.Sprintf("failed to open browser session: %v", err)}
				results[i] = failed
				return nil
			}
			defer closeSession(c.logger, s)
			results[i] = c.validate(gctx, sc, s, opts.MaxIterations, target)
			return nil
		})
	}
	// Workers never return errors; failures are recorded per scenario.
	_ = g.Wait()
}

func closeSession(logger *zap.Logger, s schemas.BrowserSession) {
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Close(closeCtx); err != nil {
		logger.Warn("Failed to close browser session.", zap.Error(err))
	}
}
