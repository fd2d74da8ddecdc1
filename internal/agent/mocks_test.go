package agent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/uiforge/api/schemas"
)

// -- Oracle Mock --

// MockOracle mocks the schemas.Oracle interface.
type MockOracle struct {
	mock.Mock
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

// -- Tool Executor Mock --

// MockToolExecutor mocks the schemas.ToolExecutor interface.
type MockToolExecutor struct {
	mock.Mock
}

func (m *MockToolExecutor) Schemas() []schemas.ToolSchema {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]schemas.ToolSchema)
}

func (m *MockToolExecutor) Execute(ctx context.Context, call schemas.ToolCall) schemas.ToolResult {
	args := m.Called(ctx, call)
	return args.Get(0).(schemas.ToolResult)
}

// panickingExecutor violates the never-panic contract on purpose.
type panickingExecutor struct{}

func (panickingExecutor) Schemas() []schemas.ToolSchema { return nil }

func (panickingExecutor) Execute(context.Context, schemas.ToolCall) schemas.ToolResult {
	panic("selector engine crashed")
}

func toolCallResponse(calls ...schemas.ToolCall) *schemas.OracleResponse {
	return &schemas.OracleResponse{ToolCalls: calls}
}

func textResponse(text string) *schemas.OracleResponse {
	return &schemas.OracleResponse{Text: text}
}
