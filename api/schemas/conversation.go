package schemas

// Role identifies the author of a message in a conversation with the Oracle.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one invocation requested by the Oracle. Arguments is the raw JSON
// object produced by the model and is validated against the tool's schema
// before execution.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSchema describes a tool to the Oracle. Parameters is a JSON-schema object.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Message is a single entry of a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// ToolCalls is set on assistant messages that requested tool invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID and Name are set on tool messages and link the result to its call.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// OracleResponse is the Oracle's answer to one turn. An empty ToolCalls slice
// signals that the turn is terminal.
type OracleResponse struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     TokenUsage `json:"usage"`
}

// HasToolCalls reports whether the Oracle requested any tool invocation.
func (r *OracleResponse) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// TokenUsage records the token accounting reported by the provider, if any.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// SystemMessage, UserMessage and AssistantMessage are small constructors used
// when seeding a conversation.
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }
func UserMessage(content string) Message   { return Message{Role: RoleUser, Content: content} }
func AssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage converts a tool result into the tool-role message appended to history.
func ToolMessage(result ToolResult) Message {
	return Message{
		Role:       RoleTool,
		Content:    result.Content(),
		ToolCallID: result.CallID,
		Name:       result.Name,
	}
}
