package schemas

import (
	"context"
	"time"
)

// -- Oracle Interfaces --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// GenerationOptions provides detailed parameters to control the text generation
// process of the model, such as creativity (temperature) and output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	MaxTokens       int     `json:"max_tokens,omitempty"`
}

// GenerationRequest encapsulates a complete request to the Oracle. Callers
// either supply a full message history (the agent loop) or a one-shot
// system/user prompt pair (planning and refinement). When Messages is empty
// the prompts are expanded into a two message history by the client.
type GenerationRequest struct {
	Messages     []Message         `json:"messages,omitempty"`
	Tools        []ToolSchema      `json:"tools,omitempty"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	UserPrompt   string            `json:"user_prompt,omitempty"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// Oracle is the external reasoning service. It is treated as a pure function
// from a message history and optional tool schemas to free text and/or a list
// of requested tool invocations.
type Oracle interface {
	Generate(ctx context.Context, req GenerationRequest) (*OracleResponse, error)
	// Close cleans up any resources held by the client.
	Close() error
}

// -- Tool Capability Interface --

// ToolExecutor exposes the named, schema-validated operations an Oracle may
// request. Execute must never panic across this boundary; every failure is
// represented as an Err result.
type ToolExecutor interface {
	Schemas() []ToolSchema
	Execute(ctx context.Context, call ToolCall) ToolResult
}

// -- Browser Capability Interface --

// WaitCondition describes what a wait step blocks on. Exactly one of Locator or
// Duration is expected to be set; Locator wins when both are present.
type WaitCondition struct {
	Locator  string
	Duration time.Duration
}

// BrowserSession is the subset of browser commands the validation controller and
// the browser tools drive. Implementations enforce their own per-call timeouts.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, locator string) error
	Type(ctx context.Context, locator, text string) error
	WaitFor(ctx context.Context, cond WaitCondition) error
	// TextContent returns the visible text of the first element matching locator.
	TextContent(ctx context.Context, locator string) (string, error)
	ExtractInteractiveElements(ctx context.Context) (*PageObservation, error)
	// Screenshot captures the current viewport and returns the path it was written to.
	Screenshot(ctx context.Context, name string) (string, error)
	Close(ctx context.Context) error
}

// SessionFactory creates isolated browser sessions. Parallel scenario validation
// requests one session per in-flight scenario.
type SessionFactory interface {
	NewSession(ctx context.Context) (BrowserSession, error)
}

// -- Run History --

// RunStore persists finished runs. The orchestrator treats it as optional.
type RunStore interface {
	SaveRun(ctx context.Context, run RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
