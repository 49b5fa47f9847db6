package agentrt

import (
	"context"
	"encoding/json"
)

// ToolFunc is the underlying tool implementation a wrapper invokes at step
// 5 of §4.3.
type ToolFunc func(ctx context.Context, args json.RawMessage) (ToolResult, error)

// WrappedToolCall identifies one invocation of a wrapped tool: the step
// number is preserved across interrupt/resume so that reinvoking after a
// human decision lands on the same step (§4.3 step 2).
type WrappedToolCall struct {
	ToolCallID string
	Step       int
	Args       json.RawMessage
}

// ToolWrapperConfig configures the §4.3 pipeline shared by every tool the
// model-SDK is handed.
type ToolWrapperConfig struct {
	Hooks             *HookRegistry
	SessionID         string
	ThreadID          string
	Cwd               string
	Mode              PermissionMode
	BlockShellFileOps bool
	MaxRetries        int
	Tracer            Tracer
	// ExtractCommand returns the shell command embedded in args, for
	// blockShellFileOps matching. Return "" for non-shell tools.
	ExtractCommand func(args json.RawMessage) string
}

// WrapTool builds the wrapped invocation function for a single named tool,
// implementing the six-step pipeline of §4.3: PreToolUse → permission
// resolution → respondWith short-circuit → updatedInput substitution →
// retry-guarded invocation → PostToolUse.
func WrapTool(cfg ToolWrapperConfig, toolName string, fn ToolFunc) func(ctx context.Context, call WrappedToolCall) (ToolResult, error) {
	return func(ctx context.Context, call WrappedToolCall) (ToolResult, error) {
		var span Span
		if cfg.Tracer != nil {
			ctx, span = cfg.Tracer.Start(ctx, "tool.invoke", StringAttr("tool_name", toolName))
			defer span.End()
		}

		baseInput := HookInput{
			SessionID: cfg.SessionID,
			Cwd:       cfg.Cwd,
			ToolName:  toolName,
			ToolUseID: call.ToolCallID,
		}

		// Step 1: PreToolUse.
		preInput := baseInput
		preInput.HookEventName = PreToolUse
		preInput.ToolInput = call.Args
		preOutputs := cfg.Hooks.Dispatch(ctx, preInput)

		// Step 2: permission resolution.
		decision, reason := aggregatePermission(preOutputs)
		command := ""
		if cfg.ExtractCommand != nil {
			command = cfg.ExtractCommand(call.Args)
		}
		resolved := resolvePermission(decision, reason, cfg.Mode, cfg.BlockShellFileOps, command)

		if resolved.Decision == PermissionDeny {
			result := ToolResult{
				Success: false,
				Error:   "permission denied",
				Message: resolved.Reason,
			}
			return cfg.finishWithPostToolUse(ctx, baseInput, result), nil
		}

		if resolved.Decision == PermissionAsk {
			// default mode: halt with an interrupt instead of calling fn.
			if span != nil {
				span.Event("tool.interrupt")
			}
			descriptor := InterruptDescriptor{
				ID:         NewID(),
				ThreadID:   cfg.ThreadID,
				ToolCallID: call.ToolCallID,
				ToolName:   toolName,
				Request:    resolved.Reason,
				Step:       call.Step,
				CreatedAt:  NowISO(),
			}
			return ToolResult{}, newErrInterrupted(descriptor, func(ctx context.Context, human HumanDecision) (ToolResult, error) {
				if !human.Allow {
					result := ToolResult{Success: false, Error: "permission denied", Message: human.DenialMessage}
					return cfg.finishWithPostToolUse(ctx, baseInput, result), nil
				}
				resumedCall := call
				if human.UpdatedInput != nil {
					resumedCall.Args = human.UpdatedInput
				}
				resumedCfg := cfg
				resumedCfg.Mode = PermissionModeBypass // the human already decided; don't re-ask
				return WrapTool(resumedCfg, toolName, fn)(ctx, resumedCall)
			})
		}

		// Step 3: respondWith short-circuit.
		if rw := aggregateRespondWith(preOutputs); rw != nil && rw.ToolResult != nil {
			return cfg.finishWithPostToolUse(ctx, baseInput, *rw.ToolResult), nil
		}

		// Step 4: updatedInput substitution.
		args := call.Args
		if updated := aggregateUpdatedInput(preOutputs); updated != nil {
			args = updated
		}

		// Step 5: retry-guarded invocation.
		result, err := runWithHookRetry(ctx, cfg.Hooks, PostToolUseFailure, baseInput, cfg.MaxRetries, func(attempt int) (ToolResult, error) {
			return fn(ctx, args)
		})
		if err != nil {
			// Packaged as a result, not propagated (§4.3: "Any error at
			// step 5 is packaged as a tool result").
			result = ToolResult{Success: false, Error: err.Error()}
		} else if result.Error == "" {
			result.Success = true
		}

		// Step 6: PostToolUse.
		return cfg.finishWithPostToolUse(ctx, baseInput, result), nil
	}
}

// finishWithPostToolUse dispatches PostToolUse with result and applies the
// first non-empty updatedResult, if any.
func (cfg ToolWrapperConfig) finishWithPostToolUse(ctx context.Context, baseInput HookInput, result ToolResult) ToolResult {
	postInput := baseInput
	postInput.HookEventName = PostToolUse
	postInput.ToolResult = &result
	postOutputs := cfg.Hooks.Dispatch(ctx, postInput)
	if updated := aggregateUpdatedResult(postOutputs); updated != nil && updated.ToolResult != nil {
		return *updated.ToolResult
	}
	return result
}
