// File: internal/orchestrator/orchestrator.go
// Description: Runs the three stages of a generation run. It is injected with
// fully configured stage components via interfaces.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/codegen"
	"github.com/xkilldash9x/uiforge/internal/config"
	"github.com/xkilldash9x/uiforge/internal/metrics"
	"github.com/xkilldash9x/uiforge/internal/reporting"
	"github.com/xkilldash9x/uiforge/internal/validation"
)

// -- Stage interfaces --

type Analyzer interface {
	Analyze(ctx context.Context, requirement string) (*schemas.ProjectAnalysis, error)
}

// Explorer enriches an analysis by browsing the running application.
type Explorer interface {
	Explore(ctx context.Context, requirement string, base *schemas.ProjectAnalysis) (*schemas.ProjectAnalysis, error)
}

// ExplorerFactory binds an Explorer to a session and the run's base URL. It
// is optional.
type ExplorerFactory func(session schemas.BrowserSession, baseURL string) (Explorer, error)

type Planner interface {
	Plan(ctx context.Context, requirement, baseURL string, analysis *schemas.ProjectAnalysis) (*schemas.Plan, error)
}

type Validator interface {
	ValidatePlan(ctx context.Context, plan schemas.Plan, session schemas.BrowserSession, opts validation.PlanOptions) (*schemas.ValidatedPlan, error)
}

type Emitter interface {
	Emit(plan *schemas.ValidatedPlan) (*codegen.Manifest, error)
}

// DevServer runs the project's own development server for runs without a
// base URL.
type DevServer interface {
	Start(ctx context.Context) (string, error)
	Stop(ctx context.Context) error
}

// Stages carries the stage components. Store, Metrics, Explore and DevServer
// may be nil.
type Stages struct {
	Analyzer  Analyzer
	Planner   Planner
	Validator Validator
	Emitter   Emitter
	Sessions  schemas.SessionFactory
	Store     schemas.RunStore
	Metrics   *metrics.Recorder
	Explore   ExplorerFactory
	DevServer DevServer
}

// Result is the outcome of a generation run.
type Result struct {
	RunID       string
	Analysis    *schemas.ProjectAnalysis
	Plan        *schemas.Plan
	Validated   *schemas.ValidatedPlan
	Manifest    *codegen.Manifest
	Summary     *reporting.ExecutionSummary
	SummaryPath string
}

// Orchestrator sequences analysis, planning, validation and emission.
type Orchestrator struct {
	cfg    config.Interface
	logger *zap.Logger
	fs     afero.Fs
	stages Stages

	now   func() time.Time
	newID func() string
}

// New creates an Orchestrator. The analyzer, planner, validator and emitter
// are required.
func New(cfg config.Interface, logger *zap.Logger, fs afero.Fs, stages Stages) (*Orchestrator, error) {
	if cfg == nil ||
		logger == nil ||
		fs == nil ||
		stages.Analyzer == nil ||
		stages.Planner == nil ||
		stages.Validator == nil ||
		stages.Emitter == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: logger.Named("orchestrator"),
		fs:     fs,
		stages: stages,
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// PlanFile is the name of the intermediate plan written next to the suite.
const PlanFile = "plan.json"

// Generate runs the full pipeline for the configured run inputs. Analysis
// problems are logged and the run continues with whatever was recovered; a
// planning failure aborts the run.
func (o *Orchestrator) Generate(ctx context.Context) (*Result, error) {
	run := o.cfg.Run()
	res := &Result{RunID: o.newID()}
	started := o.now()
	log := o.logger.With(zap.String("run_id", res.RunID))
	log.Info("Starting generation run.", zap.String("base_url", run.BaseURL), zap.String("project", run.ProjectPath))

	analysis, err := o.stages.Analyzer.Analyze(ctx, run.Requirement)
	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("analysis canceled: %w", ctx.Err())
		}
		log.Warn("Project analysis failed; continuing with the recovered analysis.", zap.Error(err))
	}
	res.Analysis = analysis

	baseURL, stopServer, err := o.baseURL(ctx, log, run.BaseURL)
	if err != nil {
		return res, err
	}
	defer stopServer()

	session, closeSession, err := o.openSession(ctx)
	if err != nil {
		return res, err
	}
	defer closeSession()

	if session != nil && o.stages.Explore != nil && run.Explore {
		res.Analysis = o.explore(ctx, log, session, baseURL, run.Requirement, res.Analysis)
		if ctx.Err() != nil {
			return res, fmt.Errorf("exploration canceled: %w", ctx.Err())
		}
	}

	plan, err := o.stages.Planner.Plan(ctx, run.Requirement, baseURL, res.Analysis)
	if err != nil {
		return res, fmt.Errorf("planning failed: %w", err)
	}
	res.Plan = plan
	if err := schemas.WriteDocument(o.fs, filepath.Join(o.outputDir(), PlanFile), plan); err != nil {
		log.Warn("Could not save the plan.", zap.Error(err))
	}

	validated, err := o.validate(ctx, *plan, session)
	if err != nil {
		return res, err
	}
	res.Validated = validated

	if err := o.finish(ctx, log, res, started); err != nil {
		return res, err
	}
	return res, nil
}

// Analyze runs the project analysis alone.
func (o *Orchestrator) Analyze(ctx context.Context) (*schemas.ProjectAnalysis, error) {
	return o.stages.Analyzer.Analyze(ctx, o.cfg.Run().Requirement)
}

// ValidatePlanFile validates a stored plan and emits the suite for it.
func (o *Orchestrator) ValidatePlanFile(ctx context.Context, path string) (*Result, error) {
	plan, err := schemas.LoadPlan(o.fs, path)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: o.newID(), Plan: plan, Analysis: plan.Analysis}
	started := o.now()
	log := o.logger.With(zap.String("run_id", res.RunID))

	// The run's URL wins over the stored one. A requested dev server replaces
	// the stored URL too, since that server's port is likely gone.
	run := o.cfg.Run()
	configured := run.BaseURL
	if configured == "" && !run.StartDevServer {
		configured = plan.BaseURL
	}
	baseURL, stopServer, err := o.baseURL(ctx, log, configured)
	if err != nil {
		return res, err
	}
	defer stopServer()
	plan.BaseURL = baseURL

	validated, err := o.validate(ctx, *plan, nil)
	if err != nil {
		return res, err
	}
	res.Validated = validated
	if err := o.finish(ctx, log, res, started); err != nil {
		return res, err
	}
	return res, nil
}

// -- Stage helpers --

// baseURL returns configured when set. Otherwise it starts the dev server if
// the run asks for one, and falls back to validation.base_url. The returned
// function stops a server started here.
func (o *Orchestrator) baseURL(ctx context.Context, log *zap.Logger, configured string) (string, func(), error) {
	noop := func() {}
	if configured != "" {
		return configured, noop, nil
	}
	if !o.cfg.Run().StartDevServer || o.stages.DevServer == nil {
		return o.cfg.Validation().BaseURL, noop, nil
	}

	url, err := o.stages.DevServer.Start(ctx)
	if err != nil {
		return "", noop, fmt.Errorf("failed to start dev server: %w", err)
	}
	log.Info("Validating against the auto-started dev server.", zap.String("base_url", url))
	return url, func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.DevServer().StopTimeout+5*time.Second)
		defer cancel()
		if err := o.stages.DevServer.Stop(stopCtx); err != nil {
			log.Warn("Failed to stop the dev server.", zap.Error(err))
		}
	}, nil
}

// openSession opens the shared session used by exploration and sequential
// validation. Parallel validation opens its own sessions instead.
func (o *Orchestrator) openSession(ctx context.Context) (schemas.BrowserSession, func(), error) {
	noop := func() {}
	if o.stages.Sessions == nil {
		return nil, noop, nil
	}
	needShared := o.cfg.Validation().Parallelism <= 1 || (o.stages.Explore != nil && o.cfg.Run().Explore)
	if !needShared {
		return nil, noop, nil
	}
	session, err := o.stages.Sessions.NewSession(ctx)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open browser session: %w", err)
	}
	return session, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			o.logger.Warn("Failed to close browser session.", zap.Error(err))
		}
	}, nil
}

func (o *Orchestrator) explore(ctx context.Context, log *zap.Logger, session schemas.BrowserSession, baseURL, requirement string, base *schemas.ProjectAnalysis) *schemas.ProjectAnalysis {
	explorer, err := o.stages.Explore(session, baseURL)
	if err != nil {
		log.Warn("Live exploration unavailable.", zap.Error(err))
		return base
	}
	enriched, err := explorer.Explore(ctx, requirement, base)
	if err != nil {
		log.Warn("Live exploration failed; keeping what was found.", zap.Error(err))
	}
	if enriched == nil {
		return base
	}
	return enriched
}

func (o *Orchestrator) validate(ctx context.Context, plan schemas.Plan, session schemas.BrowserSession) (*schemas.ValidatedPlan, error) {
	vcfg := o.cfg.Validation()
	validated, err := o.stages.Validator.ValidatePlan(ctx, plan, session, validation.PlanOptions{
		MaxIterations: vcfg.MaxIterations,
		Parallelism:   vcfg.Parallelism,
		Factory:       o.stages.Sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return validated, nil
}

// finish emits the suite, writes the execution summary, stores the run and
// exports metrics. Only emission failures are fatal.
func (o *Orchestrator) finish(ctx context.Context, log *zap.Logger, res *Result, started time.Time) error {
	manifest, err := o.stages.Emitter.Emit(res.Validated)
	if err != nil {
		return fmt.Errorf("code emission failed: %w", err)
	}
	res.Manifest = manifest

	rec := NewRunRecord(res.RunID, res.Validated, started, o.now())
	res.Summary = reporting.NewExecutionSummary(&rec).WithArtifacts(manifest.Dir, manifest.Files)
	if path, err := reporting.WriteExecutionSummary(o.fs, o.outputDir(), res.Summary); err != nil {
		log.Warn("Could not write the execution summary.", zap.Error(err))
	} else {
		res.SummaryPath = path
	}

	if o.stages.Store != nil {
		// The run is already complete; a late cancellation should not lose it.
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := o.stages.Store.SaveRun(storeCtx, rec); err != nil {
			log.Warn("Could not store the run.", zap.Error(err))
		}
	}

	if mcfg := o.cfg.Metrics(); mcfg.Enabled && mcfg.Textfile != "" {
		if err := o.stages.Metrics.WriteTextfile(mcfg.Textfile); err != nil {
			log.Warn("Could not export metrics.", zap.Error(err))
		}
	}

	log.Info("Generation run finished.",
		zap.Int("validated", rec.Summary.Validated),
		zap.Int("total", rec.Summary.Total),
		zap.Duration("elapsed", rec.FinishedAt.Sub(rec.StartedAt)))
	return nil
}

func (o *Orchestrator) outputDir() string {
	if dir := o.cfg.Run().OutputDir; dir != "" {
		return dir
	}
	return o.cfg.Output().Dir
}

// NewRunRecord summarizes a validated plan for persistence.
func NewRunRecord(id string, plan *schemas.ValidatedPlan, started, finished time.Time) schemas.RunRecord {
	rec := schemas.RunRecord{
		ID:         id,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if plan == nil {
		return rec
	}
	rec.Requirement = plan.Requirement
	rec.BaseURL = plan.BaseURL
	rec.Summary = plan.Summary
	for _, sc := range plan.Scenarios {
		rec.Scenarios = append(rec.Scenarios, schemas.ScenarioRecord{
			Name:      sc.Name,
			Validated: sc.Validated,
			Attempts:  sc.Attempts,
			Errors:    sc.Errors,
		})
	}
	return rec
}

// IsCanceled reports whether err stems from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
