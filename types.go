package agentrt

import "encoding/json"

// --- LLM protocol types (§6 external interfaces) ---

// ChatMessage is one turn in a conversation passed to the model SDK.
type ChatMessage struct {
	Role        string          `json:"role"` // "system", "user", "assistant", "tool"
	Content     string          `json:"content"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	ToolCalls   []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID  string          `json:"tool_call_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// Attachment represents binary content (image, PDF, audio, etc.) sent
// inline to a multimodal model.
type Attachment struct {
	MimeType string `json:"mime_type"`
	Base64   string `json:"base64"`
}

// ToolCall is a single invocation the model asked for.
type ToolCall struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Args     json.RawMessage `json:"args"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// ResponseSchema requests structured JSON output from the model.
type ResponseSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

// ChatRequest is the payload passed into generate/stream (§6).
type ChatRequest struct {
	Messages       []ChatMessage   `json:"messages"`
	Tools          []ToolDefinition `json:"tools,omitempty"`
	System         string          `json:"system,omitempty"`
	MaxSteps       int             `json:"max_steps,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	ResponseSchema *ResponseSchema `json:"response_schema,omitempty"`
}

// ChatResponse is a complete (non-streamed) model response.
type ChatResponse struct {
	Content      string         `json:"content"`
	ToolCalls    []ToolCall     `json:"tool_calls,omitempty"`
	Steps        []ResponseStep `json:"steps,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Usage        Usage          `json:"usage"`
	Headers      map[string]string `json:"-"`
}

// ResponseStep captures one model/tool round-trip within a multi-step call.
type ResponseStep struct {
	Text        string            `json:"text,omitempty"`
	ToolCalls   []ToolCall        `json:"tool_calls,omitempty"`
	ToolResults []ToolCallResult  `json:"tool_results,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
}

// ToolCallResult pairs a ToolCall with its resolved output.
type ToolCallResult struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Output     string `json:"output"`
}

// Usage reports token accounting for a single model call.
type Usage struct {
	InputTokens  int  `json:"input_tokens"`
	OutputTokens int  `json:"output_tokens"`
	TotalTokens  *int `json:"total_tokens,omitempty"`
}

// ToolDefinition describes a tool's wire shape to the model SDK.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// --- ChatMessage constructors ---

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: text}
}

func ToolResultMessage(callID, content string) ChatMessage {
	return ChatMessage{Role: "tool", Content: content, ToolCallID: callID}
}
