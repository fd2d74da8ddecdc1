// internal/validation/refiner.go
package validation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/llmutil"
	"github.com/xkilldash9x/uiforge/internal/metrics"
	"github.com/xkilldash9x/uiforge/internal/selector"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrInvalidRefinement is returned when the Oracle's answer holds no usable steps.
var ErrInvalidRefinement = errors.New("refinement has no valid steps")

// RefinementRequest carries everything the Refiner may use to repair a scenario.
type RefinementRequest struct {
	Requirement string
	BaseURL     string
	Scenario    schemas.Scenario
	Failure     *Failure
	Observation *schemas.PageObservation
	Attempt     int
}

// Refiner proposes a corrected scenario after a failed attempt.
type Refiner interface {
	Refine(ctx context.Context, req RefinementRequest) (*schemas.Scenario, error)
}

// OracleRefiner asks the Oracle to rewrite a failing scenario.
type OracleRefiner struct {
	logger  *zap.Logger
	oracle  schemas.Oracle
	tier    schemas.ModelTier
	metrics *metrics.Recorder
}

var _ Refiner = (*OracleRefiner)(nil)

func NewOracleRefiner(logger *zap.Logger, oracle schemas.Oracle, rec *metrics.Recorder) *OracleRefiner {
	return &OracleRefiner{
		logger:  logger.Named("refiner"),
		oracle:  oracle,
		tier:    schemas.TierPowerful,
		metrics: rec,
	}
}

func (r *OracleRefiner) Refine(ctx context.Context, req RefinementRequest) (*schemas.Scenario, error) {
	prompt, err := r.constructPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("failed to construct refinement prompt: %w", err)
	}

	resp, err := r.oracle.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: refinerSystemPrompt,
		UserPrompt:   prompt,
		Tier:         r.tier,
		Options: schemas.GenerationOptions{
			ForceJSONFormat: true,
			Temperature:     0.2,
		},
	})
	r.metrics.ObserveOracleRequest("refiner", err)
	if err != nil {
		return nil, fmt.Errorf("oracle refinement request failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty oracle response", ErrInvalidRefinement)
	}

	refined, err := parseRefinement(resp.Text)
	if err != nil {
		r.logger.Debug("Unusable refinement.", zap.Error(err), zap.String("raw_response", resp.Text))
		return nil, err
	}
	return refined, nil
}

const refinerSystemPrompt = `You repair end-to-end UI test scenarios. A scenario failed against the running application. Use the observed page elements and their suggested locators to correct the steps. Keep the intent of the scenario. Respond with JSON only.`

// observedElement is the compact form of an element shown to the Oracle.
type observedElement struct {
	Role    string `json:"role"`
	Locator string `json:"locator"`
	Tag     string `json:"tag"`
	Text    string `json:"text,omitempty"`
}

func (r *OracleRefiner) constructPrompt(req RefinementRequest) (string, error) {
	sc := req.Scenario.Clone()
	sc.LastObservation = nil
	sc.Selectors = nil
	scenarioJSON, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Requirement: %s\n", req.Requirement)
	if req.BaseURL != "" {
		fmt.Fprintf(&b, "Base URL: %s (navigate targets may be paths)\n", req.BaseURL)
	}
	fmt.Fprintf(&b, "\nScenario (attempt %d failed):\n%s\n", req.Attempt, scenarioJSON)
	if req.Failure != nil {
		fmt.Fprintf(&b, "\nFailure: %s\n", req.Failure.Error())
	}

	if obs := req.Observation; obs != nil {
		fmt.Fprintf(&b, "\nPage after the failure: %q at %s\n", obs.Title, obs.URL)
		if len(obs.Errors) > 0 {
			fmt.Fprintf(&b, "Visible errors: %s\n", strings.Join(obs.Errors, "; "))
		}
		elements, err := json.MarshalIndent(observedElements(obs), "", "  ")
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Interactive elements:\n%s\n", elements)
	}

	b.WriteString(`
Respond with the corrected scenario:
{
  "name": "unchanged scenario name",
  "description": "what the scenario verifies",
  "steps": [
    {"action": "navigate|click|type|wait|assert", "target": "locator, path, url or title", "value": "text, duration or expected text", "description": "step purpose"}
  ],
  "expectedPages": ["/path"],
  "assertions": ["human readable expectation"]
}
Locators are CSS selectors or text="visible text". Prefer the suggested locators above.
`)
	return b.String(), nil
}

func observedElements(obs *schemas.PageObservation) []observedElement {
	roles := selector.FromObservation(obs)
	byLocator := make(map[string]string, len(roles))
	for role, loc := range roles {
		byLocator[loc] = role
	}

	out := make([]observedElement, 0, len(obs.Elements))
	seen := map[string]bool{}
	for _, el := range obs.Elements {
		loc := selector.Resolve(el).Value
		if seen[loc] {
			continue
		}
		seen[loc] = true
		out = append(out, observedElement{Role: byLocator[loc], Locator: loc, Tag: el.Tag, Text: el.Text})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

// refinementResponse accepts the scenario at the top level or wrapped under
// "scenario".
type refinementResponse struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Steps         []schemas.Step    `json:"steps"`
	ExpectedPages []string          `json:"expectedPages"`
	Assertions    []string          `json:"assertions"`
	Scenario      *schemas.Scenario `json:"scenario"`
}

func parseRefinement(text string) (*schemas.Scenario, error) {
	resp, err := llmutil.ParseJSONResponse[refinementResponse](text)
	if err != nil {
		return nil, err
	}

	var sc schemas.Scenario
	switch {
	case resp.Scenario != nil:
		sc = *resp.Scenario
	default:
		sc = schemas.Scenario{
			Name:          resp.Name,
			Description:   resp.Description,
			Steps:         resp.Steps,
			ExpectedPages: resp.ExpectedPages,
			Assertions:    resp.Assertions,
		}
	}

	if len(sc.Steps) == 0 {
		return nil, ErrInvalidRefinement
	}
	for i, step := range sc.Steps {
		if !step.Action.Valid() {
			return nil, fmt.Errorf("%w: step %d has unsupported action %q", ErrInvalidRefinement, i+1, step.Action)
		}
	}
	return &sc, nil
}
