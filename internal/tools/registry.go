// internal/tools/registry.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/agent"
	"github.com/xkilldash9x/uiforge/internal/browser"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler implements one tool. args has already been validated against the
// tool's parameter schema. The returned value is JSON encoded into the result.
type Handler func(ctx context.Context, args Args) (any, error)

// Tool is a named, schema-validated operation offered to the Oracle.
type Tool struct {
	Name        string
	Description string
	Parameters  *openapi3.Schema
	Handler     Handler
}

// Registry holds the tools of one conversation and executes calls against
// them. Execute never panics: every failure becomes an Err result.
type Registry struct {
	logger *zap.Logger
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
}

var _ schemas.ToolExecutor = (*Registry)(nil)

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger.Named("tools"),
		tools:  make(map[string]Tool),
	}
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		if t.Name == "" || t.Handler == nil {
			return fmt.Errorf("tool registration requires a name and a handler (got %q)", t.Name)
		}
		if _, exists := r.tools[t.Name]; exists {
			return fmt.Errorf("tool %q is already registered", t.Name)
		}
		if t.Parameters == nil {
			t.Parameters = openapi3.NewObjectSchema()
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	return nil
}

// Schemas describes the registered tools in registration order.
func (r *Registry) Schemas() []schemas.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]schemas.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, schemas.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schemaToMap(t.Parameters),
		})
	}
	return out
}

// Execute validates the call's arguments and runs its handler.
func (r *Registry) Execute(ctx context.Context, call schemas.ToolCall) (result schemas.ToolResult) {
	r.mu.RLock()
	tool, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return errResult(call, agent.ErrCodeUnknownTool, fmt.Sprintf("unknown tool %q", call.Name))
	}

	args, err := decodeArgs(call.Arguments)
	if err != nil {
		return errResult(call, agent.ErrCodeInvalidParameters, err.Error())
	}
	if err := tool.Parameters.VisitJSON(map[string]any(args)); err != nil {
		return errResult(call, agent.ErrCodeInvalidParameters, fmt.Sprintf("arguments do not match the schema of %s: %v", call.Name, err))
	}
	if err := ctx.Err(); err != nil {
		return errResult(call, agent.ErrCodeTimeoutError, err.Error())
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic recovered in tool handler", zap.String("tool", call.Name), zap.Any("panic_value", p))
			result = errResult(call, agent.ErrCodeExecutorPanic, fmt.Sprintf("tool %s panicked: %v", call.Name, p))
		}
	}()

	data, err := tool.Handler(ctx, args)
	if err != nil {
		code := ClassifyError(err)
		r.logger.Debug("Tool failed", zap.String("tool", call.Name), zap.String("code", string(code)), zap.Error(err))
		return errResult(call, code, err.Error())
	}
	return schemas.OkResult(data).WithCall(call)
}

// ClassifyError maps a handler error to the code reported to the Oracle.
func ClassifyError(err error) agent.ErrorCode {
	var coded *CodedError
	switch {
	case errors.As(err, &coded):
		return coded.Code
	case errors.Is(err, browser.ErrElementNotFound):
		return agent.ErrCodeElementNotFound
	case errors.Is(err, browser.ErrNavigation):
		return agent.ErrCodeNavigationError
	case errors.Is(err, browser.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return agent.ErrCodeTimeoutError
	case errors.Is(err, os.ErrNotExist):
		return agent.ErrCodeFileNotFound
	}
	return agent.ErrCodeExecutionFailure
}

// CodedError attaches an explicit ErrorCode to a handler error.
type CodedError struct {
	Code agent.ErrorCode
	Err  error
}

func (e *CodedError) Error() string { return e.Err.Error() }
func (e *CodedError) Unwrap() error { return e.Err }

func withCode(code agent.ErrorCode, format string, a ...any) error {
	return &CodedError{Code: code, Err: fmt.Errorf(format, a...)}
}

func errResult(call schemas.ToolCall, code agent.ErrorCode, msg string) schemas.ToolResult {
	return schemas.ErrResult(string(code), msg).WithCall(call)
}

func decodeArgs(raw string) (Args, error) {
	args := Args{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	return args, nil
}

// schemaToMap renders an OpenAPI schema as the plain JSON-schema object the
// Oracle clients send on the wire.
func schemaToMap(s *openapi3.Schema) map[string]any {
	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}
