package agentrt

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy (§7). The hook pipeline and tool wrapper never let these
// propagate as a generation-ending error except where noted; they are
// packaged into tool results or session "error" outputs instead.

// PermissionDeniedError is returned when hook aggregation or the
// configured permission mode resolves to deny.
type PermissionDeniedError struct {
	ToolName string
	Reason   string
}

func (e *PermissionDeniedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("permission denied for %s: %s", e.ToolName, e.Reason)
	}
	return fmt.Sprintf("permission denied for %s", e.ToolName)
}

// ToolExecutionError wraps a tool's own failure. It is always packaged as
// a {success:false, error, message} tool result rather than propagated.
type ToolExecutionError struct {
	ToolName string
	Message  string
	Err      error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.ToolName, e.Message)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// CommandBlockedError is raised by the backend's execute() when a shell
// command matches a blocked pattern (blockShellFileOps or an explicit
// blocklist), and is caught by the tool wrapper.
type CommandBlockedError struct {
	Command string
	Pattern string
}

func (e *CommandBlockedError) Error() string {
	return fmt.Sprintf("command blocked by pattern %q: %s", e.Pattern, e.Command)
}

// HookTimeoutError marks a hook that did not settle within its matcher's
// timeout. It is swallowed by the hook engine (the hook contributes an
// empty output); it exists so callers can log/inspect what happened.
type HookTimeoutError struct {
	Event     HookEventName
	HookIndex int
	TimeoutMs int
}

func (e *HookTimeoutError) Error() string {
	return fmt.Sprintf("hook %d for event %s timed out after %dms", e.HookIndex, e.Event, e.TimeoutMs)
}

// HandoffError surfaces a null handoff target or an exceeded handoff
// depth (§4.7); the session driver terminates with this as an error
// output.
type HandoffError struct {
	Reason string
}

func (e *HandoffError) Error() string { return e.Reason }

// MCPConnectionError describes a failed or dropped MCP server connection.
// It is surfaced via MCPConnectionFailed hooks and does not fault the
// agent; registrations retry on reconnect.
type MCPConnectionError struct {
	Server string
	Err    error
}

func (e *MCPConnectionError) Error() string {
	return fmt.Sprintf("mcp server %s: %v", e.Server, e.Err)
}

func (e *MCPConnectionError) Unwrap() error { return e.Err }

// CheckpointLoadError describes a checkpoint that fails to deserialize.
// The checkpoint package's stores report that case with their own
// ErrInvalidCheckpoint, and a missing checkpoint as (zero value, false,
// nil), not an error.
type CheckpointLoadError struct {
	ThreadID string
	Err      error
}

func (e *CheckpointLoadError) Error() string {
	return fmt.Sprintf("checkpoint %s: malformed: %v", e.ThreadID, e.Err)
}

func (e *CheckpointLoadError) Unwrap() error { return e.Err }

// ErrHTTP is the transport-layer error a Provider returns for a non-2xx
// response. It is the ambient counterpart to the §7 taxonomy above: those
// describe runtime-level failures, this describes the wire-level ones the
// retry wrapper (§4.6.3, WithRetry) inspects to decide whether to retry.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// ErrBackgroundTaskNotFound is returned by the task manager when a lookup
// by ID fails.
var ErrBackgroundTaskNotFound = errors.New("agentrt: background task not found")

// ErrInvalidState is returned when an operation would violate a monotonic
// state-machine invariant (e.g. removing a non-terminal background task).
var ErrInvalidState = errors.New("agentrt: invalid state transition")
