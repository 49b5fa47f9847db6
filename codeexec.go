package agentrt

import (
	"context"
	"time"
)

// CodeRunner executes code written by an LLM in a sandboxed environment.
// Implementations control the runtime (subprocess, container, Wasm). The
// dispatch function bridges code back to the agent's tool registry,
// letting code call any loaded tool via call_tool()/call_tools_parallel().
type CodeRunner interface {
	// Run executes code and returns the result. dispatch mirrors
	// ToolRegistry.Execute's signature so a *ToolRegistry's own Execute
	// method can be passed directly as the dispatch function.
	Run(ctx context.Context, req CodeRequest, dispatch CodeDispatchFunc) (CodeResult, error)
}

// CodeDispatchFunc resolves one tool call issued by running code. Its
// shape matches ToolRegistry.Execute so runners never need an adapter.
type CodeDispatchFunc func(ctx context.Context, name string, args []byte) (ToolResult, error)

// CodeRequest is the input to CodeRunner.Run.
type CodeRequest struct {
	// Code is the source to execute.
	Code string `json:"code"`
	// Runtime selects the execution environment ("python", "node").
	// Empty defaults to "python".
	Runtime string `json:"runtime,omitempty"`
	// Timeout is the maximum execution duration. Zero means use runner default.
	Timeout time.Duration `json:"-"`
	// SessionID enables workspace persistence across executions. Same
	// session ID = same workspace directory. Empty = isolated per execution.
	SessionID string `json:"session_id,omitempty"`
	// Files are placed in the workspace before execution.
	Files []CodeFile `json:"files,omitempty"`
}

// CodeResult is the output of CodeRunner.Run.
type CodeResult struct {
	// Output is the structured result set via set_result() in code.
	Output string `json:"output"`
	// Logs captures print() output and stderr from the execution.
	Logs string `json:"logs,omitempty"`
	// ExitCode is the process exit code (0 = success).
	ExitCode int `json:"exit_code"`
	// Error describes execution failure (timeout, blocklist hit, etc).
	Error string `json:"error,omitempty"`
	// Files are output files returned by the runner. SubprocessRunner
	// leaves it empty: its set_result accepts a files argument but does
	// not return it.
	Files []CodeFile `json:"files,omitempty"`
}

// CodeFile represents a file transferred between host and sandbox.
//
// For input: Name + Data (inline bytes). For output: Name + MIME + Data.
type CodeFile struct {
	Name string `json:"name"`
	MIME string `json:"mime,omitempty"`
	// Data holds inline file bytes. Tagged json:"-": the bytes are not
	// part of the JSON encoding.
	Data []byte `json:"-"`
}
