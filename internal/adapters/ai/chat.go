package ai

import "context"

// ChatProvider is a Provider that can run one tool-calling chat turn.
type ChatProvider interface {
	Provider

	// Chat sends the conversation so far and returns the model's next message.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is one model turn.
type ChatRequest struct {
	Model           string
	Messages        []Message
	Tools           []ToolDefinition
	ToolChoice      ToolChoice
	JSONOutput      bool // ask the backend for a single JSON object
	MaxOutputTokens int  // 0 uses the adapter default
}

// ToolChoice controls whether the model may call tools.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is one entry of the conversation history.
type Message struct {
	Role       MessageRole
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string // set on RoleTool messages
	Name       string // tool name on RoleTool messages
}

// WantsTools reports whether an assistant message asks for tool execution.
func (m Message) WantsTools() bool {
	return len(m.ToolCalls) > 0
}

// ToolDefinition is the JSON schema of one callable tool.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// NewFunctionTool describes a function tool.
func NewFunctionTool(name, description string, parameters map[string]interface{}) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string
	Function FunctionCall
}

type FunctionCall struct {
	Name      string
	Arguments string // raw JSON
}

// ChatResponse carries the first completion choice of a turn.
type ChatResponse struct {
	ID           string
	Model        string
	Message      Message
	FinishReason FinishReason
	Usage        Usage
}

type FinishReason string

const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonToolCalls FinishReason = "tool_calls"
)

// Usage is the token accounting of one turn.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total is prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}
