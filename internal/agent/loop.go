// internal/agent/loop.go
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/metrics"
)

// RunResult is the outcome of one Loop.Run. FinalText is nil when the run
// ended without a terminal Oracle answer (budget exhausted or error).
type RunResult struct {
	FinalText *string
	History   []schemas.Message
	ToolCalls int
	Exhausted bool
	Rounds    int
}

// Loop alternates Oracle queries with tool execution until the Oracle answers
// with plain text or the tool-call budget is spent. A Loop holds no
// per-conversation state and may be reused across runs.
type Loop struct {
	logger    *zap.Logger
	oracle    schemas.Oracle
	tools     schemas.ToolExecutor
	tier      schemas.ModelTier
	options   schemas.GenerationOptions
	metrics   *metrics.Recorder
	component string
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithTier selects the model tier used for every round.
func WithTier(tier schemas.ModelTier) LoopOption {
	return func(l *Loop) { l.tier = tier }
}

func WithGenerationOptions(opts schemas.GenerationOptions) LoopOption {
	return func(l *Loop) { l.options = opts }
}

func WithMetrics(m *metrics.Recorder) LoopOption {
	return func(l *Loop) { l.metrics = m }
}

// WithComponent labels Oracle requests in metrics and logs ("analysis", "explore").
func WithComponent(name string) LoopOption {
	return func(l *Loop) { l.component = name }
}

// NewLoop creates a Loop bound to an Oracle and a tool executor.
func NewLoop(logger *zap.Logger, oracle schemas.Oracle, tools schemas.ToolExecutor, opts ...LoopOption) *Loop {
	l := &Loop{
		logger:    logger.Named("agent_loop"),
		oracle:    oracle,
		tools:     tools,
		tier:      schemas.TierPowerful,
		component: "agent",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run drives one conversation. Every tool call the Oracle issues receives
// exactly one tool message, in issue order, before the next Oracle query.
// Calls beyond the remaining budget are answered with a budget error instead of
// being executed. Reaching the cap is not an error: the result has a nil
// FinalText and Exhausted set. Oracle failures and cancellation return the
// partial result together with the error.
func (l *Loop) Run(ctx context.Context, initial []schemas.Message, toolSchemas []schemas.ToolSchema, maxToolCalls int) (*RunResult, error) {
	state := NewConversationState(initial, maxToolCalls)
	logger := l.logger.With(zap.String("component", l.component), zap.Int("max_tool_calls", maxToolCalls))

	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			logger.Info("Agent loop cancelled.", zap.Int("round", round), zap.Error(err))
			return l.result(state, nil, round-1), err
		}

		resp, err := l.oracle.Generate(ctx, schemas.GenerationRequest{
			Messages: state.Messages(),
			Tools:    toolSchemas,
			Tier:     l.tier,
			Options:  l.options,
		})
		l.metrics.ObserveOracleRequest(l.component, err)
		if err != nil {
			return l.result(state, nil, round), fmt.Errorf("oracle request failed in round %d: %w", round, err)
		}
		if resp == nil {
			resp = &schemas.OracleResponse{}
		}

		if !resp.HasToolCalls() {
			state.Append(schemas.AssistantMessage(resp.Text, nil))
			text := resp.Text
			logger.Debug("Agent loop terminated with final answer.", zap.Int("round", round), zap.Int("tool_calls", state.ToolCalls()))
			return l.result(state, &text, round), nil
		}

		calls := normalizeCalls(resp.ToolCalls, round)
		state.Append(schemas.AssistantMessage(resp.Text, calls))

		granted := state.Reserve(len(calls))
		logger.Debug("Executing tool calls.",
			zap.Int("round", round),
			zap.Int("requested", len(calls)),
			zap.Int("granted", granted),
		)

		for i, call := range calls {
			var result schemas.ToolResult
			if i < granted {
				result = l.execute(ctx, call)
				l.metrics.ObserveToolCall(call.Name, result.IsOk(), false)
			} else {
				result = schemas.ErrResult(string(ErrCodeBudgetExhausted), "tool call budget exhausted").WithCall(call)
				l.metrics.ObserveToolCall(call.Name, false, true)
			}
			state.Append(schemas.ToolMessage(result))
		}

		if state.Exhausted() {
			logger.Info("Agent loop reached its tool call budget.",
				zap.Int("round", round),
				zap.Int("tool_calls", state.ToolCalls()),
			)
			res := l.result(state, nil, round)
			res.Exhausted = true
			return res, nil
		}
	}
}

// execute runs one call and converts panics from a misbehaving executor into
// an Err result.
func (l *Loop) execute(ctx context.Context, call schemas.ToolCall) (result schemas.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Panic recovered during tool execution",
				zap.String("tool", call.Name),
				zap.Any("panic_value", r),
			)
			result = schemas.ErrResult(string(ErrCodeExecutorPanic), fmt.Sprintf("tool %q panicked: %v", call.Name, r)).WithCall(call)
		}
	}()

	result = l.tools.Execute(ctx, call).WithCall(call)
	if !result.IsOk() {
		l.logger.Debug("Tool returned an error result.",
			zap.String("tool", call.Name),
			zap.String("code", result.Code()),
			zap.String("error", result.Error()),
		)
	}
	return result
}

func (l *Loop) result(state *ConversationState, final *string, rounds int) *RunResult {
	return &RunResult{
		FinalText: final,
		History:   state.Messages(),
		ToolCalls: state.ToolCalls(),
		Rounds:    rounds,
	}
}

// normalizeCalls assigns IDs to calls that arrived without one, so every tool
// message can reference its call.
func normalizeCalls(calls []schemas.ToolCall, round int) []schemas.ToolCall {
	out := make([]schemas.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = fmt.Sprintf("call_%d_%d", round, i+1)
		}
		out[i] = c
	}
	return out
}
