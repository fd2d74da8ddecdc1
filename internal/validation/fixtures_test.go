// internal/validation/fixtures_test.go
package validation

import (
	"context"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/mocks"
)

const appURL = "http://app.test"

func loginPages() map[string]*mocks.RecordedPage {
	return map[string]*mocks.RecordedPage{
		appURL + "/login": {
			Observation: schemas.PageObservation{
				Title: "Login",
				Elements: []schemas.InteractiveElement{
					{Tag: "input", ID: "username", Name: "username", Type: "text", Index: 1},
					{Tag: "input", ID: "password", Name: "password", Type: "password", Index: 2},
					{Tag: "button", ID: "login-button", Type: "submit", Text: "Sign in", Index: 1},
				},
				Forms: []schemas.Form{{ID: "login", Method: "post", Fields: []string{"username", "password"}}},
			},
			Locators: map[string]string{"#username": "", "#password": "", "#login-button": "Sign in"},
			Links:    map[string]string{"#login-button": appURL + "/dashboard"},
		},
		appURL + "/dashboard": {
			Observation: schemas.PageObservation{
				Title: "Dashboard",
				Elements: []schemas.InteractiveElement{
					{Tag: "button", ID: "logout", Text: "Log out", Index: 1},
				},
			},
			Locators: map[string]string{"h1": "Welcome, alice", "#logout": "Log out"},
		},
	}
}

func step(action schemas.StepAction, target, value string) schemas.Step {
	return schemas.Step{Action: action, Target: target, Value: value}
}

// loginScenario fails at step 3: the password field is "#password".
func loginScenario() schemas.Scenario {
	return schemas.Scenario{
		Name:        "Login",
		Description: "A registered user signs in",
		Steps: []schemas.Step{
			step(schemas.ActionNavigate, "/login", ""),
			step(schemas.ActionType, "#username", "alice"),
			step(schemas.ActionType, "#pass", "secret"),
			step(schemas.ActionClick, "#login-button", ""),
			step(schemas.ActionAssert, "h1", "Welcome"),
		},
	}
}

func fixedLoginScenario() schemas.Scenario {
	sc := loginScenario()
	sc.Steps[2].Target = "#password"
	return sc
}

const refinedLoginResponse = "Here is the corrected scenario:\n```json\n" + `{
  "name": "Login (fixed)",
  "description": "A registered user signs in with username and password",
  "steps": [
    {"action": "navigate", "target": "/login"},
    {"action": "type", "target": "#username", "value": "alice"},
    {"action": "type", "target": "#password", "value": "secret"},
    {"action": "click", "target": "#login-button"},
    {"action": "assert", "target": "h1", "value": "Welcome"}
  ],
  "expectedPages": ["/login", "/dashboard"]
}` + "\n```"

const brokenLoginResponse = `{"steps": [
  {"action": "navigate", "target": "/login"},
  {"action": "type", "target": "#pass", "value": "secret"}
]}`

// cancelOnClick cancels the run the moment a click is issued, simulating a
// deadline that fires mid-attempt.
type cancelOnClick struct {
	*mocks.RecordedSession
	cancel context.CancelFunc
}

func (s *cancelOnClick) Click(ctx context.Context, _ string) error {
	s.cancel()
	<-ctx.Done()
	return ctx.Err()
}
