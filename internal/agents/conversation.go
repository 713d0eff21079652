package agents

import (
	"strings"

	"advisor/internal/adapters/ai"
)

// Conversation holds the message history of one agent invocation.
// Nothing is compressed or dropped: every tool result stays visible to
// the model until the invocation ends.
type Conversation struct {
	history       []ai.Message
	currentTokens int
}

// NewConversation starts a history with the system prompt and the task.
func NewConversation(systemPrompt, task string) *Conversation {
	c := &Conversation{history: make([]ai.Message, 0, 16)}
	if systemPrompt != "" {
		c.append(ai.Message{Role: ai.RoleSystem, Content: systemPrompt})
	}
	c.append(ai.Message{Role: ai.RoleUser, Content: task})
	return c
}

// AddAssistantMessage records a model reply, including any tool calls it requested.
func (c *Conversation) AddAssistantMessage(msg ai.Message) {
	msg.Role = ai.RoleAssistant
	c.append(msg)
}

// AddToolResult records the rendered output of one tool call.
func (c *Conversation) AddToolResult(toolCallID, toolName, content string) {
	c.append(ai.Message{
		Role:       ai.RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		Name:       toolName,
	})
}

// Messages returns the history in send order.
func (c *Conversation) Messages() []ai.Message {
	return c.history
}

// LastAssistantText returns the most recent non-empty assistant text.
func (c *Conversation) LastAssistantText() string {
	for i := len(c.history) - 1; i >= 0; i-- {
		msg := c.history[i]
		if msg.Role == ai.RoleAssistant && strings.TrimSpace(msg.Content) != "" {
			return msg.Content
		}
	}
	return ""
}

// TokenEstimate returns a rough token count of the whole history.
func (c *Conversation) TokenEstimate() int {
	return c.currentTokens
}

func (c *Conversation) append(msg ai.Message) {
	c.history = append(c.history, msg)
	c.currentTokens += estimateTokens(msg.Content)
	for _, tc := range msg.ToolCalls {
		c.currentTokens += estimateTokens(tc.Function.Name) + estimateTokens(tc.Function.Arguments)
	}
}

// estimateTokens uses the ~4 characters per token rule of thumb for English text.
func estimateTokens(text string) int {
	return len(text) / 4
}
