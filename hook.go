package agentrt

import "context"

// HookEventName enumerates the strictly-typed lifecycle events a hook can
// register against (§4.2.1).
type HookEventName string

const (
	PreGenerate         HookEventName = "PreGenerate"
	PostGenerate        HookEventName = "PostGenerate"
	PostGenerateFailure HookEventName = "PostGenerateFailure"

	PreToolUse         HookEventName = "PreToolUse"
	PostToolUse        HookEventName = "PostToolUse"
	PostToolUseFailure HookEventName = "PostToolUseFailure"

	SessionStart HookEventName = "SessionStart"
	SessionEnd   HookEventName = "SessionEnd"

	SubagentStart HookEventName = "SubagentStart"
	SubagentStop  HookEventName = "SubagentStop"

	MCPConnectionFailed   HookEventName = "MCPConnectionFailed"
	MCPConnectionRestored HookEventName = "MCPConnectionRestored"

	ToolRegistered HookEventName = "ToolRegistered"
	ToolLoadError  HookEventName = "ToolLoadError"

	PreCompact  HookEventName = "PreCompact"
	PostCompact HookEventName = "PostCompact"
)

// PermissionDecision is the aggregate or per-hook permission verdict
// (§4.2.2, §4.2.4).
type PermissionDecision string

const (
	PermissionAllow PermissionDecision = "allow"
	PermissionAsk   PermissionDecision = "ask"
	PermissionDeny  PermissionDecision = "deny"
)

// HookResult is what a hook (or the aggregated hook set) proposes as a
// replacement/short-circuit result. Exactly one of ChatResponse or
// ToolResult is set, depending on whether the hook fired in a generation
// or a tool-call context.
type HookResult struct {
	ChatResponse *ChatResponse
	ToolResult   *ToolResult
}

// RetryDecision is a PostGenerateFailure/PostToolUseFailure hook's request
// to retry the operation that just failed (§4.2.6).
type RetryDecision struct {
	Retry        bool
	RetryDelayMs int
}

// HookInput is the payload passed to every hook. Per §6, the input shape
// always carries hook_event_name/session_id/cwd; event-specific fields
// are populated as relevant and left zero otherwise.
type HookInput struct {
	HookEventName HookEventName `json:"hook_event_name"`
	SessionID     string        `json:"session_id"`
	Cwd           string        `json:"cwd"`

	ToolName  string `json:"tool_name,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	ToolInput []byte `json:"tool_input,omitempty"`

	Attempt int    `json:"attempt,omitempty"`
	Error   string `json:"error,omitempty"`

	ChatRequest  *ChatRequest  `json:"-"`
	ChatResponse *ChatResponse `json:"-"`
	ToolResult   *ToolResult   `json:"-"`

	Extra map[string]any `json:"extra,omitempty"`
}

// HookOutput is a single hook's contribution (§4.2.2). Zero value means
// "no opinion" on every channel, which is also what a timed-out, panicked,
// or erroring hook contributes (§4.2.5, §8 Isolation).
type HookOutput struct {
	PermissionDecision PermissionDecision `json:"permission_decision,omitempty"`
	PermissionReason   string             `json:"permission_reason,omitempty"`

	UpdatedInput []byte `json:"updated_input,omitempty"`

	RespondWith   *HookResult `json:"-"`
	UpdatedResult *HookResult `json:"-"`

	RetryDecision *RetryDecision `json:"-"`

	HookSpecificOutput map[string]any `json:"hookSpecificOutput,omitempty"`
}

// HookCallback is a single registered hook (§4.2): an async function of
// (ctx, input) returning a HookOutput. ctx carries the cancellation signal
// for the enclosing matcher's timeout; the owning agent is reachable only
// through ctx (§9: break the session→agent→hooks→agent cycle by never
// giving hooks a back-reference).
type HookCallback func(ctx context.Context, input HookInput) (HookOutput, error)
