package agentrt

// ToolResult is the outcome of a tool invocation as seen by the model and
// by PostToolUse hooks (§4.3). Grounded on tool.go's ToolResult{Content,
// Error}, generalized to the §4.3/§8 success/failure envelope: a failed
// invocation is packaged as {success:false, error, message} rather than
// propagated, so generation always continues.
type ToolResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// InterruptDescriptor is yielded by a generation when the `default`
// permission mode resolves a tool call to `ask` (§4.3 step 2). Resumption
// reinvokes the same tool call at the same step, passing the human
// decision.
type InterruptDescriptor struct {
	ID         string `json:"id"`
	ThreadID   string `json:"thread_id"`
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Request    string `json:"request"`
	Step       int    `json:"step"`
	CreatedAt  string `json:"created_at"`
}
