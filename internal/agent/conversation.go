// internal/agent/conversation.go
package agent

import "github.com/xkilldash9x/uiforge/api/schemas"

// ConversationState is the append-only transcript of one Loop invocation plus
// its running tool-call count. It is owned by a single Run call and discarded
// when the loop terminates.
type ConversationState struct {
	messages     []schemas.Message
	toolCalls    int
	maxToolCalls int
}

// NewConversationState seeds a transcript with a copy of initial.
func NewConversationState(initial []schemas.Message, maxToolCalls int) *ConversationState {
	if maxToolCalls < 0 {
		maxToolCalls = 0
	}
	return &ConversationState{
		messages:     append([]schemas.Message(nil), initial...),
		maxToolCalls: maxToolCalls,
	}
}

func (c *ConversationState) Append(msgs ...schemas.Message) {
	c.messages = append(c.messages, msgs...)
}

// Messages returns a copy of the transcript.
func (c *ConversationState) Messages() []schemas.Message {
	return append([]schemas.Message(nil), c.messages...)
}

func (c *ConversationState) ToolCalls() int { return c.toolCalls }

func (c *ConversationState) Remaining() int { return c.maxToolCalls - c.toolCalls }

// Exhausted reports whether the tool-call budget is spent.
func (c *ConversationState) Exhausted() bool { return c.toolCalls >= c.maxToolCalls }

// Reserve claims up to n calls from the remaining budget and returns how many
// were granted. The counter never exceeds the cap.
func (c *ConversationState) Reserve(n int) int {
	granted := n
	if remaining := c.Remaining(); granted > remaining {
		granted = remaining
	}
	if granted < 0 {
		granted = 0
	}
	c.toolCalls += granted
	return granted
}

// LastAssistantText returns the content of the most recent assistant message
// with non-empty text, scanning backwards.
func (c *ConversationState) LastAssistantText() string {
	return LastAssistantText(c.messages)
}

// LastAssistantText scans history backwards for the latest assistant message
// with content. Used to salvage results from a run that hit its budget.
func LastAssistantText(history []schemas.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == schemas.RoleAssistant && history[i].Content != "" {
			return history[i].Content
		}
	}
	return ""
}
