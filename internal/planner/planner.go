// internal/planner/planner.go
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/llmutil"
	"github.com/xkilldash9x/uiforge/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoScenarios is returned by Parse when the answer holds no usable scenario.
var ErrNoScenarios = errors.New("plan has no usable scenarios")

// Planner turns a requirement and a project analysis into a Plan.
type Planner struct {
	logger  *zap.Logger
	oracle  schemas.Oracle
	metrics *metrics.Recorder
}

func New(logger *zap.Logger, oracle schemas.Oracle, rec *metrics.Recorder) *Planner {
	return &Planner{
		logger:  logger.Named("planner"),
		oracle:  oracle,
		metrics: rec,
	}
}

// Plan asks the Oracle for scenarios. A transport failure is returned as an
// error; an unusable answer degrades to a single smoke scenario.
func (p *Planner) Plan(ctx context.Context, requirement, baseURL string, analysis *schemas.ProjectAnalysis) (*schemas.Plan, error) {
	prompt, err := userPrompt(requirement, baseURL, analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to construct planning prompt: %w", err)
	}

	resp, err := p.oracle.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{ForceJSONFormat: true, Temperature: 0.2},
	})
	p.metrics.ObserveOracleRequest("planner", err)
	if err != nil {
		return nil, fmt.Errorf("oracle planning request failed: %w", err)
	}

	plan := &schemas.Plan{Requirement: requirement, BaseURL: baseURL, Analysis: analysis}
	var text string
	if resp != nil {
		text = resp.Text
	}
	scenarios, err := Parse(text)
	if err != nil {
		p.logger.Warn("Unusable plan from the oracle, falling back to a smoke scenario.", zap.Error(err))
		scenarios = []schemas.Scenario{SmokeScenario()}
	}
	plan.Scenarios = scenarios

	p.logger.Info("Plan created.", zap.Int("scenarios", len(plan.Scenarios)))
	return plan, nil
}

// SmokeScenario checks that the application's root page loads.
func SmokeScenario() schemas.Scenario {
	return schemas.Scenario{
		Name:        "Smoke test",
		Description: "The application root page loads and renders a body",
		Steps: []schemas.Step{
			{Action: schemas.ActionNavigate, Target: "/", Description: "Open the application"},
			{Action: schemas.ActionAssert, Target: "body", Description: "The page renders"},
		},
		ExpectedPages: []string{"/"},
	}
}

type planResponse struct {
	Scenarios []schemas.Scenario `json:"scenarios"`
	// Some models answer with the original tooling's key.
	TestCases []schemas.Scenario `json:"testCases"`
}

// Parse extracts scenarios from model output. Steps with unsupported actions
// are dropped, scenarios left without steps are discarded, missing names are
// filled in and duplicate names get a numeric suffix.
func Parse(text string) ([]schemas.Scenario, error) {
	raw, err := llmutil.ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var candidates []schemas.Scenario
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
			return nil, fmt.Errorf("failed to decode scenario list: %w", err)
		}
	} else {
		var resp planResponse
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			return nil, fmt.Errorf("failed to decode plan: %w", err)
		}
		candidates = resp.Scenarios
		if len(candidates) == 0 {
			candidates = resp.TestCases
		}
	}

	seen := map[string]int{}
	var out []schemas.Scenario
	for i, sc := range candidates {
		steps := sc.Steps[:0:0]
		for _, st := range sc.Steps {
			st.Action = schemas.StepAction(strings.ToLower(strings.TrimSpace(string(st.Action))))
			if st.Action.Valid() {
				steps = append(steps, st)
			}
		}
		if len(steps) == 0 {
			continue
		}

		name := strings.TrimSpace(sc.Name)
		if name == "" {
			name = fmt.Sprintf("Scenario %d", i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}

		out = append(out, schemas.Scenario{
			Name:          name,
			Description:   sc.Description,
			Steps:         steps,
			ExpectedPages: sc.ExpectedPages,
			Assertions:    sc.Assertions,
		})
	}
	if len(out) == 0 {
		return nil, ErrNoScenarios
	}
	return out, nil
}

const systemPrompt = `You are a QA engineer who designs end-to-end UI test scenarios for web applications.
Each scenario is a short sequence of browser steps. Supported actions:
- navigate: target is a path relative to the base URL or an absolute URL
- click: target is a locator
- type: target is a locator, value is the text to type
- wait: target is a locator to wait for, or value is a duration such as "500ms"
- assert: target is a locator whose text must contain value (value optional), or "url"/"title" with the expected fragment in value
Locators are CSS selectors or text="visible text". Prefer ids, data-testid attributes and names.
Respond with JSON only.`

func userPrompt(requirement, baseURL string, analysis *schemas.ProjectAnalysis) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Requirement:\n%s\n\nBase URL: %s\n", requirement, baseURL)
	if analysis != nil {
		data, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\nProject analysis:\n%s\n", data)
	}
	b.WriteString(`
Design the scenarios that cover the requirement, including the main failure case when there is one.
{
  "scenarios": [
    {
      "name": "Short unique name",
      "description": "What the scenario verifies",
      "steps": [{"action": "navigate", "target": "/login", "description": "Open the login page"}],
      "expectedPages": ["/login"],
      "assertions": ["human readable expectation"]
    }
  ]
}
`)
	return b.String(), nil
}
