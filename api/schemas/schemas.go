package schemas

import "time"

// StepAction defines the kind of browser interaction a Step performs.
type StepAction string

const (
	ActionNavigate StepAction = "navigate"
	ActionClick    StepAction = "click"
	ActionType     StepAction = "type"
	ActionWait     StepAction = "wait"
	ActionAssert   StepAction = "assert"
)

// Valid reports whether the action is one of the supported kinds.
func (a StepAction) Valid() bool {
	switch a {
	case ActionNavigate, ActionClick, ActionType, ActionWait, ActionAssert:
		return true
	}
	return false
}

// Assertion targets that check page state rather than an element.
const (
	AssertTargetURL   = "url"
	AssertTargetTitle = "title"
)

// Step is one atomic interaction of a Scenario.
type Step struct {
	Action      StepAction `json:"action" yaml:"action"`
	Target      string     `json:"target" yaml:"target"`
	Value       string     `json:"value,omitempty" yaml:"value,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// SelectorMap maps a logical UI role (e.g. "usernameInput") to one locator.
// It is exchanged as a flat JSON object.
type SelectorMap map[string]string

// Clone returns an independent copy of the map.
func (m SelectorMap) Clone() SelectorMap {
	out := make(SelectorMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Scenario is one user-flow test case. It is created by the planner and
// mutated only by the validation controller.
type Scenario struct {
	Name          string      `json:"name" yaml:"name"`
	Description   string      `json:"description" yaml:"description"`
	Steps         []Step      `json:"steps" yaml:"steps"`
	ExpectedPages []string    `json:"expectedPages,omitempty" yaml:"expectedPages,omitempty"`
	Assertions    []string    `json:"assertions,omitempty" yaml:"assertions,omitempty"`
	Validated     bool        `json:"validated" yaml:"validated"`
	Selectors     SelectorMap `json:"selectors,omitempty" yaml:"selectors,omitempty"`
	Attempts      int         `json:"attempts" yaml:"attempts"`
	Errors        []string    `json:"errors,omitempty" yaml:"errors,omitempty"`
	// LastObservation is the page snapshot taken after the final attempt.
	LastObservation *PageObservation `json:"lastObservation,omitempty" yaml:"lastObservation,omitempty"`
}

// Clone returns a deep copy so the controller can work on a scenario without
// aliasing the caller's slices and maps.
func (s Scenario) Clone() Scenario {
	out := s
	out.Steps = append([]Step(nil), s.Steps...)
	out.ExpectedPages = append([]string(nil), s.ExpectedPages...)
	out.Assertions = append([]string(nil), s.Assertions...)
	out.Errors = append([]string(nil), s.Errors...)
	if s.Selectors != nil {
		out.Selectors = s.Selectors.Clone()
	}
	if s.LastObservation != nil {
		obs := s.LastObservation.Clone()
		out.LastObservation = &obs
	}
	return out
}

// PageInfo describes one route of the analysed frontend.
type PageInfo struct {
	Name        string `json:"name" yaml:"name"`
	Path        string `json:"path" yaml:"path"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ProjectAnalysis is the result of the project analysis stage.
type ProjectAnalysis struct {
	Framework  string     `json:"framework" yaml:"framework"`
	Pages      []PageInfo `json:"pages,omitempty" yaml:"pages,omitempty"`
	Components []string   `json:"components,omitempty" yaml:"components,omitempty"`
	Forms      []string   `json:"forms,omitempty" yaml:"forms,omitempty"`
	Summary    string     `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// FrameworkUnknown is the conservative default used when analysis output is unusable.
const FrameworkUnknown = "unknown"

// Plan is the ordered list of scenarios produced by the planner.
type Plan struct {
	Requirement string           `json:"requirement" yaml:"requirement"`
	BaseURL     string           `json:"baseUrl" yaml:"baseUrl"`
	Analysis    *ProjectAnalysis `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Scenarios   []Scenario       `json:"scenarios" yaml:"scenarios"`
}

// ValidatedPlan is the controller's output: the same scenarios in the same
// order, the shared selector map and the summary.
type ValidatedPlan struct {
	Plan      `yaml:",inline"`
	Selectors SelectorMap       `json:"selectors" yaml:"selectors"`
	Summary   ValidationSummary `json:"summary" yaml:"summary"`
}

// ValidationSummary aggregates the outcome of a validation run.
type ValidationSummary struct {
	Total         int     `json:"total" yaml:"total"`
	Validated     int     `json:"validated" yaml:"validated"`
	WithSelectors int     `json:"withSelectors" yaml:"withSelectors"`
	SuccessRate   float64 `json:"successRate" yaml:"successRate"`
}

// ScenarioRecord is the persisted outcome of one scenario.
type ScenarioRecord struct {
	Name      string   `json:"name"`
	Validated bool     `json:"validated"`
	Attempts  int      `json:"attempts"`
	Errors    []string `json:"errors,omitempty"`
}

// RunRecord is the persisted outcome of one pipeline run.
type RunRecord struct {
	ID          string            `json:"id"`
	Requirement string            `json:"requirement"`
	BaseURL     string            `json:"baseUrl"`
	StartedAt   time.Time         `json:"startedAt"`
	FinishedAt  time.Time         `json:"finishedAt"`
	Summary     ValidationSummary `json:"summary"`
	Scenarios   []ScenarioRecord  `json:"scenarios"`
}
