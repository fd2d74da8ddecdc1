// internal/validation/steps_test.go
package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/browser"
	"github.com/xkilldash9x/uiforge/internal/mocks"
)

func TestParseWaitDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"250", 250 * time.Millisecond, false},
		{" 1500 ", 1500 * time.Millisecond, false},
		{"2s", 2 * time.Second, false},
		{"1.5s", 1500 * time.Millisecond, false},
		{"0", 0, false},
		{"-5", 0, true},
		{"-1s", 0, true},
		{"soon", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWaitDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunStep_Wait(t *testing.T) {
	ctx := context.Background()

	t.Run("duration only", func(t *testing.T) {
		s := new(mocks.MockBrowserSession)
		s.On("WaitFor", ctx, schemas.WaitCondition{Duration: 250 * time.Millisecond}).Return(nil).Once()
		require.NoError(t, runStep(ctx, s, appURL, step(schemas.ActionWait, "", "250ms")))
		s.AssertExpectations(t)
	})

	t.Run("locator with timeout", func(t *testing.T) {
		s := new(mocks.MockBrowserSession)
		s.On("WaitFor", ctx, schemas.WaitCondition{Locator: "#spinner", Duration: 100 * time.Millisecond}).Return(nil).Once()
		require.NoError(t, runStep(ctx, s, appURL, step(schemas.ActionWait, "#spinner", "100")))
		s.AssertExpectations(t)
	})

	t.Run("invalid", func(t *testing.T) {
		s := new(mocks.MockBrowserSession)
		err := runStep(ctx, s, appURL, step(schemas.ActionWait, "", ""))
		assert.ErrorIs(t, err, errInvalidStep)
		err = runStep(ctx, s, appURL, step(schemas.ActionWait, "#x", "later"))
		assert.ErrorIs(t, err, errInvalidStep)
		s.AssertNotCalled(t, "WaitFor", mock.Anything, mock.Anything)
	})
}

func TestRunStep_Navigate(t *testing.T) {
	ctx := context.Background()
	s := new(mocks.MockBrowserSession)
	s.On("Navigate", ctx, appURL+"/settings").Return(nil).Once()
	s.On("Navigate", ctx, "https://other.test/").Return(nil).Once()

	require.NoError(t, runStep(ctx, s, appURL, step(schemas.ActionNavigate, "/settings", "")))
	require.NoError(t, runStep(ctx, s, appURL, step(schemas.ActionNavigate, "https://other.test/", "")))
	s.AssertExpectations(t)
}

func TestRunStep_AssertPageState(t *testing.T) {
	ctx := context.Background()
	s := new(mocks.MockBrowserSession)
	s.On("ExtractInteractiveElements", ctx).Return(&schemas.PageObservation{URL: appURL + "/dashboard", Title: "Dashboard"}, nil)

	assert.NoError(t, runStep(ctx, s, appURL, step(schemas.ActionAssert, "url", "/dashboard")))
	assert.NoError(t, runStep(ctx, s, appURL, step(schemas.ActionAssert, "Title", "Dash")))

	err := runStep(ctx, s, appURL, step(schemas.ActionAssert, "url", "/login"))
	assert.ErrorIs(t, err, browser.ErrAssertion)
	assert.Equal(t, KindAssertionFailed, Classify(err))
}

func TestRunStep_AssertWithoutObservation(t *testing.T) {
	ctx := context.Background()
	s := new(mocks.MockBrowserSession)
	s.On("ExtractInteractiveElements", ctx).Return(nil, nil)

	var f *Failure
	require.NotPanics(t, func() {
		f = runSteps(ctx, s, "", []schemas.Step{step(schemas.ActionAssert, "url", "/x")})
	})
	require.NotNil(t, f)
	assert.ErrorIs(t, f, browser.ErrAssertion)
	assert.Equal(t, KindAssertionFailed, f.Kind)
	assert.Contains(t, f.Error(), "no page observation")
}

func TestRunStep_UnknownAction(t *testing.T) {
	err := runStep(context.Background(), new(mocks.MockBrowserSession), appURL, step("hover", "#menu", ""))
	assert.ErrorIs(t, err, errInvalidStep)
	assert.Equal(t, KindUnknown, Classify(err))
}

func TestRunSteps_StopsAtFirstFailure(t *testing.T) {
	session := mocks.NewRecordedSession(loginPages())

	f := runSteps(context.Background(), session, appURL, loginScenario().Steps)

	require.NotNil(t, f)
	assert.Equal(t, 3, f.Step)
	assert.Equal(t, KindNotFound, f.Kind)
	assert.ErrorIs(t, f, browser.ErrElementNotFound)
	assert.Contains(t, f.Error(), `step 3 failed (not_found): type "#pass"`)
	assert.Len(t, session.Log(), 3)
}

func TestRunSteps_Success(t *testing.T) {
	session := mocks.NewRecordedSession(loginPages())
	assert.Nil(t, runSteps(context.Background(), session, appURL, fixedLoginScenario().Steps))
}

func TestRunSteps_AssertionAndNavigationKinds(t *testing.T) {
	session := mocks.NewRecordedSession(loginPages())

	f := runSteps(context.Background(), session, appURL, []schemas.Step{
		step(schemas.ActionNavigate, "/missing", ""),
	})
	require.NotNil(t, f)
	assert.Equal(t, KindNetworkError, f.Kind)

	f = runSteps(context.Background(), session, appURL, []schemas.Step{
		step(schemas.ActionNavigate, "/dashboard", ""),
		step(schemas.ActionAssert, "#missing", ""),
	})
	require.NotNil(t, f)
	assert.Equal(t, 2, f.Step)
	assert.Equal(t, KindTimeout, f.Kind)

	f = runSteps(context.Background(), session, appURL, []schemas.Step{
		step(schemas.ActionAssert, "h1", "Goodbye"),
	})
	require.NotNil(t, f)
	assert.Equal(t, KindAssertionFailed, f.Kind)
}
