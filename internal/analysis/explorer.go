package analysis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/agent"
	"github.com/xkilldash9x/uiforge/internal/metrics"
	"github.com/xkilldash9x/uiforge/internal/tools"
)

// Explorer lets the Oracle browse the running application with the browser
// tools and folds what it reports into an existing analysis.
type Explorer struct {
	logger       *zap.Logger
	loop         *agent.Loop
	registry     *tools.Registry
	baseURL      string
	maxToolCalls int
}

// NewExplorer binds an Explorer to an open browser session.
func NewExplorer(logger *zap.Logger, oracle schemas.Oracle, session schemas.BrowserSession, baseURL string, maxToolCalls int, rec *metrics.Recorder) (*Explorer, error) {
	registry := tools.NewRegistry(logger)
	if err := tools.NewBrowserTools(session, baseURL).Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register browser tools: %w", err)
	}
	if maxToolCalls <= 0 {
		maxToolCalls = 10
	}
	return &Explorer{
		logger:   logger.Named("explorer"),
		registry: registry,
		baseURL:  baseURL,
		loop: agent.NewLoop(logger, oracle, registry,
			agent.WithTier(schemas.TierFast),
			agent.WithComponent("explore"),
			agent.WithMetrics(rec),
			agent.WithGenerationOptions(schemas.GenerationOptions{Temperature: 0.1}),
		),
		maxToolCalls: maxToolCalls,
	}, nil
}

// Explore browses the application and returns base enriched with the pages,
// components and forms found live. base is not modified. When exploration
// yields nothing usable the result equals base.
func (e *Explorer) Explore(ctx context.Context, requirement string, base *schemas.ProjectAnalysis) (*schemas.ProjectAnalysis, error) {
	initial := []schemas.Message{
		schemas.SystemMessage(exploreSystemPrompt),
		schemas.UserMessage(fmt.Sprintf("Base URL: %s\n\nRequirement:\n%s", e.baseURL, requirement)),
	}
	res, runErr := e.loop.Run(ctx, initial, e.registry.Schemas(), e.maxToolCalls)
	if runErr != nil {
		e.logger.Warn("Live exploration was interrupted.", zap.Error(runErr))
	}

	var found *schemas.ProjectAnalysis
	if res != nil {
		found = Extract(res.FinalText, res.History)
		e.logger.Info("Live exploration finished.",
			zap.Int("tool_calls", res.ToolCalls),
			zap.Int("pages", len(found.Pages)))
	}
	return Merge(base, found), runErr
}

// Merge combines two analyses. Pages are keyed by path and entries of a come
// first; b only fills the gaps.
func Merge(a, b *schemas.ProjectAnalysis) *schemas.ProjectAnalysis {
	out := &schemas.ProjectAnalysis{Framework: schemas.FrameworkUnknown}
	for _, src := range []*schemas.ProjectAnalysis{a, b} {
		if src == nil {
			continue
		}
		if out.Framework == schemas.FrameworkUnknown && src.Framework != "" {
			out.Framework = src.Framework
		}
		for _, p := range src.Pages {
			if !hasPage(out.Pages, p.Path) {
				out.Pages = append(out.Pages, p)
			}
		}
		out.Components = appendUnique(out.Components, src.Components...)
		out.Forms = appendUnique(out.Forms, src.Forms...)
		if s := strings.TrimSpace(src.Summary); s != "" {
			if out.Summary != "" {
				out.Summary += "\n\n"
			}
			out.Summary += s
		}
	}
	return out
}

func hasPage(pages []schemas.PageInfo, path string) bool {
	for _, p := range pages {
		if p.Path == path {
			return true
		}
	}
	return false
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}

const exploreSystemPrompt = `You are exploring a running web application to prepare end-to-end UI tests.
Use the browser tools: navigate to pages, extract their interactive elements and follow the links relevant to the requirement.
Do not submit forms that change data unless the requirement is about them.
When you are done, answer with JSON only, without calling tools:
{
  "framework": "unknown",
  "pages": [{"name": "Login", "path": "/login", "description": "what the page shows"}],
  "components": [],
  "forms": ["login form with username and password"],
  "summary": "what you observed"
}`
