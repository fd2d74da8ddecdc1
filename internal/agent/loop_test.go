// File: internal/agent/loop_test.go
package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/metrics"
)

func seedMessages() []schemas.Message {
	return []schemas.Message{
		schemas.SystemMessage("You analyse frontend projects."),
		schemas.UserMessage("Describe the pages of this project."),
	}
}

func readFileCall(id string) schemas.ToolCall {
	return schemas.ToolCall{ID: id, Name: "read_file", Arguments: `{"path":"src/App.jsx"}`}
}

func TestLoop_TerminatesAtBudgetWhenOracleAlwaysCallsTools(t *testing.T) {
	defer goleak.VerifyNone(t)

	oracle := new(MockOracle)
	tools := new(MockToolExecutor)
	oracle.On("Generate", mock.Anything, mock.Anything).Return(toolCallResponse(schemas.ToolCall{Name: "read_file", Arguments: "{}"}), nil)
	tools.On("Execute", mock.Anything, mock.Anything).Return(schemas.OkResult(map[string]string{"content": "x"}))

	rec := metrics.New()
	loop := NewLoop(zaptest.NewLogger(t), oracle, tools, WithMetrics(rec))
	res, err := loop.Run(context.Background(), seedMessages(), nil, 2)

	require.NoError(t, err)
	assert.Nil(t, res.FinalText)
	assert.True(t, res.Exhausted)
	assert.Equal(t, 2, res.ToolCalls)
	assert.Equal(t, 2, res.Rounds)
	tools.AssertNumberOfCalls(t, "Execute", 2)
	oracle.AssertNumberOfCalls(t, "Generate", 2)

	// seed(2) + 2 x (assistant + tool)
	require.Len(t, res.History, 6)
	assert.Equal(t, "call_1_1", res.History[3].ToolCallID)
	assert.Equal(t, "call_2_1", res.History[5].ToolCallID)
}

func TestLoop_ReturnsFinalText(t *testing.T) {
	oracle := new(MockOracle)
	tools := new(MockToolExecutor)
	oracle.On("Generate", mock.Anything, mock.Anything).Return(toolCallResponse(readFileCall("c1")), nil).Once()
	oracle.On("Generate", mock.Anything, mock.Anything).Return(textResponse(`{"framework":"react"}`), nil).Once()
	tools.On("Execute", mock.Anything, readFileCall("c1")).Return(schemas.OkResult("export default App")).Once()

	loop := NewLoop(zaptest.NewLogger(t), oracle, tools, WithTier(schemas.TierFast))
	res, err := loop.Run(context.Background(), seedMessages(), nil, 10)

	require.NoError(t, err)
	require.NotNil(t, res.FinalText)
	assert.Equal(t, `{"framework":"react"}`, *res.FinalText)
	assert.False(t, res.Exhausted)
	assert.Equal(t, 1, res.ToolCalls)

	require.Len(t, res.History, 5)
	assert.Equal(t, schemas.RoleAssistant, res.History[2].Role)
	assert.Equal(t, schemas.RoleTool, res.History[3].Role)
	assert.Equal(t, "c1", res.History[3].ToolCallID)
	assert.Equal(t, `"export default App"`, res.History[3].Content)
	assert.Equal(t, schemas.RoleAssistant, res.History[4].Role)

	// The second round must see the tool result and use the configured tier.
	second := oracle.Calls[1].Arguments.Get(1).(schemas.GenerationRequest)
	assert.Len(t, second.Messages, 4)
	assert.Equal(t, schemas.TierFast, second.Tier)
	oracle.AssertExpectations(t)
	tools.AssertExpectations(t)
}

func TestLoop_ToolResultsKeepIssueOrderAndBudgetTruncates(t *testing.T) {
	oracle := new(MockOracle)
	tools := new(MockToolExecutor)
	calls := []schemas.ToolCall{readFileCall("a"), readFileCall("b"), readFileCall("c")}
	oracle.On("Generate", mock.Anything, mock.Anything).Return(toolCallResponse(calls...), nil).Once()
	tools.On("Execute", mock.Anything, mock.Anything).Return(schemas.OkResult("ok"))

	loop := NewLoop(zaptest.NewLogger(t), oracle, tools)
	res, err := loop.Run(context.Background(), seedMessages(), nil, 2)

	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Equal(t, 2, res.ToolCalls, "the counter never exceeds the cap")
	tools.AssertNumberOfCalls(t, "Execute", 2)

	toolMsgs := res.History[3:]
	require.Len(t, toolMsgs, 3, "every issued call gets exactly one tool message")
	assert.Equal(t, []string{"a", "b", "c"}, []string{toolMsgs[0].ToolCallID, toolMsgs[1].ToolCallID, toolMsgs[2].ToolCallID})
	assert.Contains(t, toolMsgs[2].Content, "tool call budget exhausted")
	assert.Contains(t, toolMsgs[2].Content, string(ErrCodeBudgetExhausted))
}

func TestLoop_ToolErrorsAreData(t *testing.T) {
	oracle := new(MockOracle)
	tools := new(MockToolExecutor)
	oracle.On("Generate", mock.Anything, mock.Anything).Return(toolCallResponse(readFileCall("c1")), nil).Once()
	oracle.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		last := req.Messages[len(req.Messages)-1]
		return last.Role == schemas.RoleTool && last.ToolCallID == "c1"
	})).Return(textResponse("the file does not exist"), nil).Once()
	tools.On("Execute", mock.Anything, mock.Anything).
		Return(schemas.ErrResult(string(ErrCodeFileNotFound), "open src/App.jsx: file does not exist"))

	loop := NewLoop(zaptest.NewLogger(t), oracle, tools)
	res, err := loop.Run(context.Background(), seedMessages(), nil, 5)

	require.NoError(t, err)
	require.NotNil(t, res.FinalText)
	assert.Equal(t, "the file does not exist", *res.FinalText)
	assert.JSONEq(t, `{"error":"open src/App.jsx: file does not exist","code":"FILE_NOT_FOUND"}`, res.History[3].Content)
	oracle.AssertExpectations(t)
}

func TestLoop_OracleErrorReturnsPartialHistory(t *testing.T) {
	oracle := new(MockOracle)
	tools := new(MockToolExecutor)
	boom := errors.New("503 service unavailable")
	oracle.On("Generate", mock.Anything, mock.Anything).Return(toolCallResponse(readFileCall("c1")), nil).Once()
	oracle.On("Generate", mock.Anything, mock.Anything).Return(nil, boom).Once()
	tools.On("Execute", mock.Anything, mock.Anything).Return(schemas.OkResult("ok"))

	loop := NewLoop(zaptest.NewLogger(t), oracle, tools)
	res, err := loop.Run(context.Background(), seedMessages(), nil, 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.Nil(t, res.FinalText)
	assert.Len(t, res.History, 4)
	assert.Equal(t, 1, res.ToolCalls)
}

func TestLoop_CancelledContext(t *testing.T) {
	oracle := new(MockOracle)
	tools := new(MockToolExecutor)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := NewLoop(zaptest.NewLogger(t), oracle, tools)
	res, err := loop.Run(ctx, seedMessages(), nil, 5)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Len(t, res.History, 2)
	oracle.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestLoop_ZeroBudgetStillQueriesOnce(t *testing.T) {
	oracle := new(MockOracle)
	tools := new(MockToolExecutor)
	oracle.On("Generate", mock.Anything, mock.Anything).Return(toolCallResponse(readFileCall("c1")), nil).Once()

	loop := NewLoop(zaptest.NewLogger(t), oracle, tools)
	res, err := loop.Run(context.Background(), seedMessages(), nil, 0)

	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Zero(t, res.ToolCalls)
	tools.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	oracle.AssertNumberOfCalls(t, "Generate", 1)
}

func TestLoop_RecoversExecutorPanic(t *testing.T) {
	oracle := new(MockOracle)
	oracle.On("Generate", mock.Anything, mock.Anything).Return(toolCallResponse(readFileCall("c1")), nil).Once()
	oracle.On("Generate", mock.Anything, mock.Anything).Return(textResponse("done"), nil).Once()

	loop := NewLoop(zaptest.NewLogger(t), oracle, panickingExecutor{})
	res, err := loop.Run(context.Background(), seedMessages(), nil, 3)

	require.NoError(t, err)
	assert.Contains(t, res.History[3].Content, string(ErrCodeExecutorPanic))
	assert.Contains(t, res.History[3].Content, "selector engine crashed")
}

func TestConversationState_Reserve(t *testing.T) {
	state := NewConversationState(seedMessages(), 3)
	assert.Equal(t, 2, state.Reserve(2))
	assert.Equal(t, 1, state.Reserve(5))
	assert.Equal(t, 0, state.Reserve(1))
	assert.Equal(t, 3, state.ToolCalls())
	assert.True(t, state.Exhausted())

	neg := NewConversationState(nil, -4)
	assert.True(t, neg.Exhausted())
	assert.Equal(t, 0, neg.Reserve(1))
}

func TestLastAssistantText(t *testing.T) {
	history := []schemas.Message{
		schemas.UserMessage("go"),
		schemas.AssistantMessage(`{"framework":"vue"}`, nil),
		schemas.AssistantMessage("", []schemas.ToolCall{readFileCall("x")}),
		{Role: schemas.RoleTool, Content: "{}"},
	}
	assert.Equal(t, `{"framework":"vue"}`, LastAssistantText(history))
	assert.Empty(t, LastAssistantText(nil))
}
