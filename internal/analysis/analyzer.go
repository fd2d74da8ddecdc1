// internal/analysis/analyzer.go
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/agent"
	"github.com/xkilldash9x/uiforge/internal/config"
	"github.com/xkilldash9x/uiforge/internal/llmutil"
	"github.com/xkilldash9x/uiforge/internal/metrics"
	"github.com/xkilldash9x/uiforge/internal/tools"
)

// Analyzer explores a frontend project through the file tools and summarizes
// its framework, pages, components and forms.
type Analyzer struct {
	logger       *zap.Logger
	loop         *agent.Loop
	registry     *tools.Registry
	maxToolCalls int
}

// NewAnalyzer binds an Analyzer to the project under root.
func NewAnalyzer(logger *zap.Logger, oracle schemas.Oracle, fsys afero.Fs, root string, cfg config.AnalysisConfig, rec *metrics.Recorder) (*Analyzer, error) {
	registry := tools.NewRegistry(logger)
	if err := tools.NewFileTools(fsys, root, cfg).Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register file tools: %w", err)
	}

	maxCalls := cfg.MaxToolCalls
	if maxCalls <= 0 {
		maxCalls = 10
	}
	return &Analyzer{
		logger:   logger.Named("analysis"),
		registry: registry,
		loop: agent.NewLoop(logger, oracle, registry,
			agent.WithTier(schemas.TierPowerful),
			agent.WithComponent("analysis"),
			agent.WithMetrics(rec),
			agent.WithGenerationOptions(schemas.GenerationOptions{Temperature: 0.1}),
		),
		maxToolCalls: maxCalls,
	}, nil
}

// Analyze runs the exploration. Unusable output never fails the stage: the
// result degrades to the last parseable assistant answer and then to an
// analysis with an unknown framework. An error is returned only for Oracle
// failures and cancellation, together with the best analysis available.
func (a *Analyzer) Analyze(ctx context.Context, requirement string) (*schemas.ProjectAnalysis, error) {
	initial := []schemas.Message{
		schemas.SystemMessage(systemPrompt),
		schemas.UserMessage(userPrompt(requirement)),
	}

	res, runErr := a.loop.Run(ctx, initial, a.registry.Schemas(), a.maxToolCalls)
	if runErr != nil {
		a.logger.Warn("Project analysis was interrupted.", zap.Error(runErr))
	}

	var history []schemas.Message
	var final *string
	if res != nil {
		history = res.History
		final = res.FinalText
		a.logger.Info("Project analysis finished.",
			zap.Int("tool_calls", res.ToolCalls),
			zap.Int("rounds", res.Rounds),
			zap.Bool("exhausted", res.Exhausted))
	}
	return Extract(final, history), runErr
}

// Extract turns the loop outcome into a ProjectAnalysis: the final answer if
// it parses, otherwise the latest assistant message that parses, otherwise an
// analysis whose framework is unknown.
func Extract(final *string, history []schemas.Message) *schemas.ProjectAnalysis {
	if final != nil {
		if pa, err := Parse(*final); err == nil {
			return pa
		}
	}
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.Role != schemas.RoleAssistant || strings.TrimSpace(m.Content) == "" {
			continue
		}
		if pa, err := Parse(m.Content); err == nil {
			return pa
		}
	}
	return &schemas.ProjectAnalysis{Framework: schemas.FrameworkUnknown}
}

// Parse decodes an analysis from model output. A missing framework is
// reported as unknown.
func Parse(text string) (*schemas.ProjectAnalysis, error) {
	pa, err := llmutil.ParseJSONResponse[schemas.ProjectAnalysis](text)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(pa.Framework) == "" {
		pa.Framework = schemas.FrameworkUnknown
	}
	return pa, nil
}

const systemPrompt = `You are a senior frontend engineer analysing a web project so that end-to-end UI tests can be written for it.
Use the tools to inspect the project: start with the root directory and the package manifest, then look at routing, pages and forms.
Read only what you need. When you are done, answer with JSON only, without calling tools:
{
  "framework": "react|vue|angular|svelte|next|nuxt|static|unknown",
  "pages": [{"name": "Login", "path": "/login", "description": "what the page does"}],
  "components": ["LoginForm"],
  "forms": ["login form with username and password"],
  "summary": "one paragraph about the application"
}`

func userPrompt(requirement string) string {
	return fmt.Sprintf("The tests must cover this requirement:\n%s\n\nAnalyse the project and describe the pages and forms relevant to it.", requirement)
}
