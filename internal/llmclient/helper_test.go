package llmclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/config"
)

// MockOracle is a mock implementation of schemas.Oracle for router tests.
type MockOracle struct {
	mock.Mock
	Name string
}

func (m *MockOracle) Generate(ctx context.Context, req schemas.GenerationRequest) (*schemas.OracleResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.OracleResponse), args.Error(1)
}

func (m *MockOracle) Close() error {
	return m.Called().Error(0)
}

// setupTestLogger is a helper to create a zap logger for testing with an observer.
func setupTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	core, _ := observer.New(zap.DebugLevel)
	return zap.New(core)
}

// fastRetrier retries quickly so failure paths finish within a test.
func fastRetrier(t *testing.T) *retrier {
	t.Helper()
	r := newRetrier(setupTestLogger(t), 0, 2*time.Second)
	r.initialInterval = 5 * time.Millisecond
	return r
}

// getValidLLMConfig returns a valid LLMModelConfig for testing purposes.
func getValidLLMConfig(provider config.LLMProvider, endpoint string) config.LLMModelConfig {
	return config.LLMModelConfig{
		Provider:    provider,
		APIKey:      "test-api-key",
		Model:       "test-model",
		Endpoint:    endpoint,
		APITimeout:  5 * time.Second,
		Temperature: 0.7,
		MaxTokens:   512,
	}
}

// envMap adapts a map to the getenv signature.
func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}
