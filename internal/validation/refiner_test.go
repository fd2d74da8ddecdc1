// internal/validation/refiner_test.go
package validation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/browser"
	"github.com/xkilldash9x/uiforge/internal/mocks"
)

func TestParseRefinement(t *testing.T) {
	t.Run("fenced top level", func(t *testing.T) {
		sc, err := parseRefinement(refinedLoginResponse)
		require.NoError(t, err)
		assert.Equal(t, "Login (fixed)", sc.Name)
		require.Len(t, sc.Steps, 5)
		assert.Equal(t, "#password", sc.Steps[2].Target)
	})

	t.Run("wrapped", func(t *testing.T) {
		sc, err := parseRefinement(`{"scenario": {"name": "x", "steps": [{"action": "click", "target": "#go"}]}}`)
		require.NoError(t, err)
		assert.Equal(t, []schemas.Step{{Action: schemas.ActionClick, Target: "#go"}}, sc.Steps)
	})

	t.Run("unsupported action", func(t *testing.T) {
		_, err := parseRefinement(`{"steps": [{"action": "hover", "target": "#menu"}]}`)
		assert.ErrorIs(t, err, ErrInvalidRefinement)
	})

	t.Run("no steps", func(t *testing.T) {
		_, err := parseRefinement(`{"name": "x", "steps": []}`)
		assert.ErrorIs(t, err, ErrInvalidRefinement)
	})

	t.Run("no json", func(t *testing.T) {
		_, err := parseRefinement("I could not find the element.")
		assert.Error(t, err)
	})
}

func TestObservedElements(t *testing.T) {
	obs := loginPages()[appURL+"/login"].Observation
	got := observedElements(&obs)

	require.Len(t, got, 3)
	byLocator := map[string]observedElement{}
	for _, el := range got {
		byLocator[el.Locator] = el
	}
	assert.Equal(t, "usernameInput", byLocator["#username"].Role)
	assert.Equal(t, "passwordInput", byLocator["#password"].Role)
	assert.Equal(t, observedElement{Role: "loginButton", Locator: "#login-button", Tag: "button", Text: "Sign in"}, byLocator["#login-button"])
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Role, got[i].Role)
	}
}

func TestOracleRefiner_Refine(t *testing.T) {
	obs := loginPages()[appURL+"/login"].Observation
	obs.URL = appURL + "/login"
	obs.Errors = []string{"Invalid credentials"}
	req := RefinementRequest{
		Requirement: "log in as alice",
		BaseURL:     appURL,
		Scenario:    loginScenario(),
		Failure:     &Failure{Step: 3, Kind: KindNotFound, Err: browser.ErrElementNotFound},
		Observation: &obs,
		Attempt:     1,
	}

	oracle := new(mocks.MockOracle)
	oracle.On("Generate", mock.Anything, mock.MatchedBy(func(gr schemas.GenerationRequest) bool {
		return gr.Tier == schemas.TierPowerful &&
			gr.Options.ForceJSONFormat &&
			gr.SystemPrompt != "" &&
			strings.Contains(gr.UserPrompt, "Requirement: log in as alice") &&
			strings.Contains(gr.UserPrompt, "Base URL: "+appURL) &&
			strings.Contains(gr.UserPrompt, "step 3 failed (not_found)") &&
			strings.Contains(gr.UserPrompt, "Invalid credentials") &&
			strings.Contains(gr.UserPrompt, `"role": "passwordInput"`)
	})).Return(mocks.Text(refinedLoginResponse), nil).Once()

	r := NewOracleRefiner(zaptest.NewLogger(t), oracle, nil)
	sc, err := r.Refine(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "#password", sc.Steps[2].Target)
	oracle.AssertExpectations(t)
}

func TestOracleRefiner_Errors(t *testing.T) {
	req := RefinementRequest{Scenario: loginScenario(), Attempt: 1}

	t.Run("transport", func(t *testing.T) {
		oracle := new(mocks.MockOracle)
		oracle.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded")).Once()
		_, err := NewOracleRefiner(zaptest.NewLogger(t), oracle, nil).Refine(context.Background(), req)
		assert.ErrorContains(t, err, "quota exceeded")
	})

	t.Run("empty response", func(t *testing.T) {
		oracle := new(mocks.MockOracle)
		oracle.On("Generate", mock.Anything, mock.Anything).Return(nil, nil).Once()
		_, err := NewOracleRefiner(zaptest.NewLogger(t), oracle, nil).Refine(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRefinement)
	})
}
