package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/uiforge/api/schemas"
)

// -- Test Setup Helper --

// setupRouter creates a standard Router instance for testing, along with its mocks and a log observer.
func setupRouter(t *testing.T) (*Router, *MockOracle, *MockOracle, *observer.ObservedLogs) {
	t.Helper()
	loggerCore, observedLogs := observer.New(zap.DebugLevel)
	logger := zap.New(loggerCore)

	fastClient := &MockOracle{Name: "FastClient"}
	powerfulClient := &MockOracle{Name: "PowerfulClient"}

	router, err := NewRouter(logger, fastClient, powerfulClient)
	require.NoError(t, err, "NewRouter should initialize successfully")

	return router, fastClient, powerfulClient, observedLogs
}

// -- Test Cases: Initialization --

func TestNewRouter_Success(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)

	require.NotNil(t, router)
	assert.Equal(t, fastClient, router.clients[schemas.TierFast])
	assert.Equal(t, powerfulClient, router.clients[schemas.TierPowerful])
}

// Verifies error handling when required clients are nil.
func TestNewRouter_Failure_MissingClients(t *testing.T) {
	logger := setupTestLogger(t)
	validClient := new(MockOracle)
	expectedError := "both fast and powerful tier clients must be provided"

	tests := []struct {
		name     string
		fast     schemas.Oracle
		powerful schemas.Oracle
	}{
		{"Missing Fast Client", nil, validClient},
		{"Missing Powerful Client", validClient, nil},
		{"Missing Both Clients", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, err := NewRouter(logger, tt.fast, tt.powerful)
			assert.Error(t, err)
			assert.Nil(t, router)
			assert.Contains(t, err.Error(), expectedError)
		})
	}
}

// -- Test Cases: Routing Logic --

func TestGenerate_Routing(t *testing.T) {
	tests := []struct {
		name         string
		tier         schemas.ModelTier
		wantPowerful bool
	}{
		{"fast", schemas.TierFast, false},
		{"powerful", schemas.TierPowerful, true},
		// The router passes the original request on; the tier is only
		// defaulted locally for routing and logging.
		{"default", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, fastClient, powerfulClient, observedLogs := setupRouter(t)
			ctx := context.Background()
			req := schemas.GenerationRequest{Tier: tt.tier, UserPrompt: "prompt"}
			expected := &schemas.OracleResponse{Text: "answer"}

			target, other := fastClient, powerfulClient
			if tt.wantPowerful {
				target, other = powerfulClient, fastClient
			}
			target.On("Generate", ctx, req).Return(expected, nil).Once()

			resp, err := router.Generate(ctx, req)

			require.NoError(t, err)
			assert.Same(t, expected, resp)
			target.AssertExpectations(t)
			other.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)

			require.Equal(t, 1, observedLogs.Len(), "Expected one log entry for routing")
			logEntry := observedLogs.All()[0]
			assert.Equal(t, "Routing LLM request", logEntry.Message)
			wantTier := schemas.TierFast
			if tt.wantPowerful {
				wantTier = schemas.TierPowerful
			}
			assert.Equal(t, string(wantTier), logEntry.ContextMap()["tier"])
		})
	}
}

// Verifies that errors from the underlying client are returned.
func TestGenerate_Error_Propagation(t *testing.T) {
	router, fastClient, _, _ := setupRouter(t)
	ctx := context.Background()
	req := schemas.GenerationRequest{Tier: schemas.TierFast}
	expectedError := errors.New("underlying client API failure")

	fastClient.On("Generate", ctx, req).Return(nil, expectedError).Once()

	resp, err := router.Generate(ctx, req)

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, expectedError, "The exact error from the client should be propagated")
}

// Verifies behavior when an unknown tier is requested.
func TestGenerate_Error_InvalidTier(t *testing.T) {
	router, fastClient, powerfulClient, _ := setupRouter(t)
	req := schemas.GenerationRequest{Tier: schemas.ModelTier("invalid-tier-xyz")}

	resp, err := router.Generate(context.Background(), req)

	assert.Nil(t, resp)
	assert.ErrorContains(t, err, "no LLM client configured for tier: invalid-tier-xyz")
	fastClient.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	powerfulClient.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRouter_Close(t *testing.T) {
	t.Run("distinct clients", func(t *testing.T) {
		router, fastClient, powerfulClient, _ := setupRouter(t)
		fastClient.On("Close").Return(nil).Once()
		powerfulClient.On("Close").Return(errors.New("boom")).Once()

		assert.ErrorContains(t, router.Close(), "boom")
		fastClient.AssertExpectations(t)
		powerfulClient.AssertExpectations(t)
	})

	t.Run("shared client closed once", func(t *testing.T) {
		shared := new(MockOracle)
		shared.On("Close").Return(nil).Once()
		router, err := NewRouter(setupTestLogger(t), shared, shared)
		require.NoError(t, err)

		assert.NoError(t, router.Close())
		shared.AssertNumberOfCalls(t, "Close", 1)
	})
}
