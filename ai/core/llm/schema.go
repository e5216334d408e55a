package llm

// Message represents one turn in a working transcript.
type Message struct {
	Role       string // system, user, assistant, tool
	Content    string
	ToolCalls  []ToolCall // set on assistant messages that request tool invocations
	ToolCallID string     // set on tool messages, links a result to its request
	Name       string     // tool name on tool messages
}

// LLMCallStats represents statistics for a single LLM call.
// This provides token usage and timing metrics for session summary and cost tracking.
type LLMCallStats struct {
	// PromptTokens is the number of tokens in the input prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the generated response.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the sum of prompt and completion tokens.
	TotalTokens int `json:"total_tokens"`

	// TotalDurationMs is the total wall-clock time for the request.
	TotalDurationMs int64 `json:"total_duration_ms"`
}

// Accumulate adds another call's stats into the receiver.
func (s *LLMCallStats) Accumulate(other *LLMCallStats) {
	if other == nil {
		return
	}
	s.PromptTokens += other.PromptTokens
	s.CompletionTokens += other.CompletionTokens
	s.TotalTokens += other.TotalTokens
	s.TotalDurationMs += other.TotalDurationMs
}

// ToolDescriptor represents a function/tool available to the LLM.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  string // JSON Schema string
}

// ChatResponse represents the LLM response including potential tool calls.
// An empty ToolCalls slice means the content is a final answer.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// IsFinalAnswer reports whether the response carries no tool requests.
func (r *ChatResponse) IsFinalAnswer() bool {
	return len(r.ToolCalls) == 0
}

// ToolCall represents a request to call a tool.
type ToolCall struct {
	ID       string
	Type     string
	Function FunctionCall
}

// FunctionCall represents the function details.
type FunctionCall struct {
	Name      string
	Arguments string
}

// Helper for creating system prompts.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// Helper for creating user messages.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// Helper for creating assistant messages.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// ToolMessage creates a tool-result message linked to its originating call.
func ToolMessage(content, toolCallID, name string) Message {
	return Message{Role: "tool", Content: content, ToolCallID: toolCallID, Name: name}
}

// FormatMessages formats messages for prompt templates.
func FormatMessages(systemPrompt string, userContent string, history []Message) []Message {
	messages := []Message{}
	if systemPrompt != "" {
		messages = append(messages, SystemPrompt(systemPrompt))
	}
	messages = append(messages, history...)
	messages = append(messages, UserMessage(userContent))
	return messages
}
