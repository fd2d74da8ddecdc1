// File: internal/mocks/mocks.go
package mocks

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

var _ schemas.Oracle = (*MockOracle)(nil)

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

// Text is a shorthand for a terminal Oracle answer.
func Text(s string) *schemas.OracleResponse {
	return &schemas.OracleResponse{Text: s}
}

// Calls is a shorthand for an Oracle answer requesting tool calls.
func Calls(calls ...schemas.ToolCall) *schemas.OracleResponse {
	return &schemas.OracleResponse{ToolCalls: calls}
}

// -- Browser Session Mock --

// MockBrowserSession mocks the schemas.BrowserSession interface.
type MockBrowserSession struct {
	mock.Mock
}

var _ schemas.BrowserSession = (*MockBrowserSession)(nil)

func (m *MockBrowserSession) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockBrowserSession) Click(ctx context.Context, locator string) error {
	return m.Called(ctx, locator).Error(0)
}

func (m *MockBrowserSession) Type(ctx context.Context, locator, text string) error {
	return m.Called(ctx, locator, text).Error(0)
}

func (m *MockBrowserSession) WaitFor(ctx context.Context, cond schemas.WaitCondition) error {
	return m.Called(ctx, cond).Error(0)
}

func (m *MockBrowserSession) TextContent(ctx context.Context, locator string) (string, error) {
	args := m.Called(ctx, locator)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserSession) ExtractInteractiveElements(ctx context.Context) (*schemas.PageObservation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.PageObservation), args.Error(1)
}

func (m *MockBrowserSession) Screenshot(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockBrowserSession) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// -- Session Factory Mock --

// MockSessionFactory mocks the schemas.SessionFactory interface.
type MockSessionFactory struct {
	mock.Mock
}

var _ schemas.SessionFactory = (*MockSessionFactory)(nil)

func (m *MockSessionFactory) NewSession(ctx context.Context) (schemas.BrowserSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schemas.BrowserSession), args.Error(1)
}

// -- Run Store Mock --

// MockRunStore mocks the schemas.RunStore interface.
type MockRunStore struct {
	mock.Mock
}

var _ schemas.RunStore = (*MockRunStore)(nil)

func (m *MockRunStore) SaveRun(ctx context.Context, run schemas.RunRecord) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockRunStore) ListRuns(ctx context.Context, limit int) ([]schemas.RunRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.RunRecord), args.Error(1)
}
