// internal/tools/registry_test.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/agent"
	"github.com/xkilldash9x/uiforge/internal/browser"
)

func echoTool() Tool {
	return Tool{
		Name:        "echo",
		Description: "Echoes a message.",
		Parameters: objectSchema([]string{"message"}, map[string]*openapi3.Schema{
			"message": stringProp("Text to echo."),
			"repeat":  intProp("Repetitions.", 1),
		}),
		Handler: func(_ context.Context, args Args) (any, error) {
			return map[string]any{"message": args.String("message"), "repeat": args.Int("repeat", 1)}, nil
		},
	}
}

func newTestRegistry(t *testing.T, tools ...Tool) *Registry {
	t.Helper()
	r := NewRegistry(zaptest.NewLogger(t))
	require.NoError(t, r.Register(tools...))
	return r
}

func TestRegistry_Register(t *testing.T) {
	r := newTestRegistry(t, echoTool())

	err := r.Register(echoTool())
	assert.ErrorContains(t, err, "already registered")

	err = r.Register(Tool{Name: "nohandler"})
	assert.ErrorContains(t, err, "requires a name and a handler")
}

func TestRegistry_Schemas(t *testing.T) {
	r := newTestRegistry(t, echoTool(), Tool{Name: "noop", Handler: func(context.Context, Args) (any, error) { return nil, nil }})

	got := r.Schemas()
	require.Len(t, got, 2)
	assert.Equal(t, "echo", got[0].Name)
	assert.Equal(t, "noop", got[1].Name)

	params := got[0].Parameters
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []any{"message"}, params["required"])
	props := params["properties"].(map[string]any)
	assert.Contains(t, props, "message")
	assert.Equal(t, "object", got[1].Parameters["type"], "tools without parameters expose an empty object schema")
}

func TestRegistry_Execute(t *testing.T) {
	r := newTestRegistry(t, echoTool())
	call := schemas.ToolCall{ID: "c1", Name: "echo", Arguments: `{"message":"hi","repeat":2}`}

	res := r.Execute(context.Background(), call)

	require.True(t, res.IsOk(), res.Error())
	assert.Equal(t, "c1", res.CallID)
	assert.Equal(t, "echo", res.Name)
	var out struct {
		Message string `json:"message"`
		Repeat  int    `json:"repeat"`
	}
	require.NoError(t, res.Decode(&out))
	assert.Equal(t, "hi", out.Message)
	assert.Equal(t, 2, out.Repeat)
}

func TestRegistry_ExecuteFailuresAreData(t *testing.T) {
	panicky := Tool{Name: "panicky", Handler: func(context.Context, Args) (any, error) { panic("boom") }}
	failing := Tool{Name: "failing", Handler: func(context.Context, Args) (any, error) {
		return nil, fmt.Errorf("click failed: %w", browser.ErrElementNotFound)
	}}
	r := newTestRegistry(t, echoTool(), panicky, failing)

	tests := []struct {
		name     string
		call     schemas.ToolCall
		wantCode agent.ErrorCode
	}{
		{"unknown tool", schemas.ToolCall{Name: "rm_rf"}, agent.ErrCodeUnknownTool},
		{"malformed arguments", schemas.ToolCall{Name: "echo", Arguments: `{"message":`}, agent.ErrCodeInvalidParameters},
		{"missing required argument", schemas.ToolCall{Name: "echo", Arguments: `{}`}, agent.ErrCodeInvalidParameters},
		{"wrong argument type", schemas.ToolCall{Name: "echo", Arguments: `{"message":42}`}, agent.ErrCodeInvalidParameters},
		{"below minimum", schemas.ToolCall{Name: "echo", Arguments: `{"message":"x","repeat":0}`}, agent.ErrCodeInvalidParameters},
		{"handler panic", schemas.ToolCall{Name: "panicky"}, agent.ErrCodeExecutorPanic},
		{"classified handler error", schemas.ToolCall{Name: "failing"}, agent.ErrCodeElementNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res schemas.ToolResult
			require.NotPanics(t, func() { res = r.Execute(context.Background(), tt.call) })
			assert.False(t, res.IsOk())
			assert.Equal(t, string(tt.wantCode), res.Code())
			assert.NotEmpty(t, res.Error())
			assert.Equal(t, tt.call.Name, res.Name)
		})
	}
}

func TestRegistry_ExecuteCancelled(t *testing.T) {
	r := newTestRegistry(t, echoTool())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Execute(ctx, schemas.ToolCall{Name: "echo", Arguments: `{"message":"hi"}`})
	assert.Equal(t, string(agent.ErrCodeTimeoutError), res.Code())
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, agent.ErrCodeNavigationError, ClassifyError(fmt.Errorf("x: %w", browser.ErrNavigation)))
	assert.Equal(t, agent.ErrCodeTimeoutError, ClassifyError(context.DeadlineExceeded))
	assert.Equal(t, agent.ErrCodeFileNotFound, ClassifyError(&os.PathError{Op: "open", Path: "a", Err: os.ErrNotExist}))
	assert.Equal(t, agent.ErrCodePathForbidden, ClassifyError(withCode(agent.ErrCodePathForbidden, "nope")))
	assert.Equal(t, agent.ErrCodeExecutionFailure, ClassifyError(errors.New("other")))
}
