// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/analysis"
	"github.com/xkilldash9x/uiforge/internal/browser"
	"github.com/xkilldash9x/uiforge/internal/browser/static"
	"github.com/xkilldash9x/uiforge/internal/codegen"
	"github.com/xkilldash9x/uiforge/internal/config"
	"github.com/xkilldash9x/uiforge/internal/devserver"
	"github.com/xkilldash9x/uiforge/internal/llmclient"
	"github.com/xkilldash9x/uiforge/internal/metrics"
	"github.com/xkilldash9x/uiforge/internal/orchestrator"
	"github.com/xkilldash9x/uiforge/internal/planner"
	"github.com/xkilldash9x/uiforge/internal/store"
	"github.com/xkilldash9x/uiforge/internal/validation"
)

// ComponentFactory builds the set of components needed for a generation run.
// Commands depend on this interface so they can be tested without a browser
// or a model.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct {
	fs afero.Fs
}

// NewComponentFactory creates a factory that works on the real file system.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{fs: afero.NewOsFs()}
}

// Create wires every stage of the pipeline. On failure the components created
// so far are shut down.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	run := cfg.Run()
	baseURL := run.BaseURL
	if baseURL == "" {
		baseURL = cfg.Validation().BaseURL
	}

	// 1. Metrics
	rec := metrics.New()
	components.Metrics = rec

	// 2. Oracle
	oracle, err := llmclient.NewOracle(ctx, cfg.LLM(), logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize oracle: %w", err)
		return nil, initializationErr
	}
	components.Oracle = oracle
	logger.Debug("Oracle initialized.")

	// 3. Browser
	sessions, err := f.newSessionFactory(ctx, cfg.Browser(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	components.Sessions = sessions
	logger.Debug("Browser initialized.", zap.String("engine", cfg.Browser().Engine))

	// 4. Run history, optional
	if url := cfg.Database().URL; url != "" {
		runStore, pool, err := store.Open(ctx, url, logger)
		if err != nil {
			logger.Warn("Run history is unavailable; continuing without it.", zap.Error(err))
		} else {
			components.Store = runStore
			components.DBPool = pool
			logger.Debug("Run store initialized.")
		}
	}

	// 5. Stages
	projectRoot, err := filepath.Abs(run.ProjectPath)
	if err != nil {
		initializationErr = fmt.Errorf("failed to resolve project path: %w", err)
		return nil, initializationErr
	}
	analyzer, err := analysis.NewAnalyzer(logger, oracle, f.fs, projectRoot, cfg.Analysis(), rec)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize analyzer: %w", err)
		return nil, initializationErr
	}

	policy, err := validation.PolicyFor(cfg.Validation().RetryPolicy)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	controller := validation.NewController(logger,
		validation.NewOracleRefiner(logger, oracle, rec),
		validation.WithRetryPolicy(policy),
		validation.WithBaseURL(baseURL),
		validation.WithRequirement(run.Requirement),
		validation.WithScreenshots(cfg.Validation().Screenshots),
		validation.WithMetrics(rec),
	)

	// 6. Dev server, only for runs without a base URL
	if run.StartDevServer && run.BaseURL == "" {
		components.DevServer = devserver.NewManager(logger, f.fs, cfg.DevServer(), projectRoot)
		logger.Debug("Dev server will be started for this run.", zap.String("project", projectRoot))
	}

	outCfg := cfg.Output()
	if run.OutputDir != "" {
		outCfg.Dir = run.OutputDir
	}

	maxExploreCalls := cfg.Validation().MaxToolCalls
	stages := orchestrator.Stages{
		Analyzer:  analyzer,
		Planner:   planner.New(logger, oracle, rec),
		Validator: controller,
		Emitter:   codegen.NewEmitter(logger, f.fs, outCfg),
		Sessions:  sessions,
		Store:     components.Store,
		Metrics:   rec,
		Explore: func(session schemas.BrowserSession, baseURL string) (orchestrator.Explorer, error) {
			return analysis.NewExplorer(logger, oracle, session, baseURL, maxExploreCalls, rec)
		},
	}
	if components.DevServer != nil {
		stages.DevServer = components.DevServer
	}

	// 7. Orchestrator
	orch, err := orchestrator.New(cfg, logger, f.fs, stages)
	if err != nil {
		initializationErr = fmt.Errorf("failed to create orchestrator: %w", err)
		return nil, initializationErr
	}
	components.Orchestrator = orch

	logger.Info("All run components initialized successfully.")
	return components, nil
}

func (f *concreteFactory) newSessionFactory(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (schemas.SessionFactory, error) {
	switch cfg.Engine {
	case "static":
		return static.NewFactory(logger, cfg, f.fs), nil
	case "", "chromedp":
		manager, err := browser.NewManager(ctx, logger, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize browser manager: %w", err)
		}
		return manager, nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
	}
}
