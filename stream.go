package agentrt

import "encoding/json"

// StreamEventType identifies the kind of part on a stream (§4.6.2, §9
// fullStream: "at least text-delta, tool-call, tool-result, finish").
type StreamEventType string

const (
	// EventTextDelta carries an incremental text chunk from the model.
	EventTextDelta StreamEventType = "text-delta"
	// EventToolCall signals a tool is about to be invoked.
	EventToolCall StreamEventType = "tool-call"
	// EventToolResult carries the result of a completed tool call.
	EventToolResult StreamEventType = "tool-result"
	// EventFinish terminates the stream; FinishReason and Usage are set.
	EventFinish StreamEventType = "finish"
	// EventAgentStart signals a subagent has been delegated to.
	EventAgentStart StreamEventType = "agent-start"
	// EventAgentFinish signals a delegated subagent has completed.
	EventAgentFinish StreamEventType = "agent-finish"
)

// StreamEvent is a typed part emitted on the channel passed to
// Provider.ChatStream, and on the fullStream Agent.Stream produces after
// re-grouping provider parts by step and splicing in tool-call/tool-result
// parts the agent core itself resolves (§4.6.2).
type StreamEvent struct {
	// Type identifies the part kind.
	Type StreamEventType `json:"type"`
	// Name is the tool or subagent name (tool-call/tool-result/agent-*).
	Name string `json:"name,omitempty"`
	// Content carries the text delta (text-delta) or tool/subagent output
	// (tool-result, agent-finish).
	Content string `json:"content,omitempty"`
	// Args carries the tool call arguments (tool-call only).
	Args json.RawMessage `json:"args,omitempty"`
	// FinishReason is set on EventFinish.
	FinishReason string `json:"finish_reason,omitempty"`
	// Usage is set on EventFinish when the provider reports it.
	Usage *Usage `json:"usage,omitempty"`
}
