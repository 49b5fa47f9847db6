package agentrt

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// defaultInterruptTTL bounds how long an ErrInterrupted waits for a human
// decision before its resume closure is released, freeing the captured
// tool call. Grounded on suspend.go's defaultSuspendTTL/WithSuspendTTL
// mechanism, adapted from a workflow-step suspension to a single tool
// call's permission interrupt (§4.3 step 2).
const defaultInterruptTTL = 30 * time.Minute

// HumanDecision is what a human supplies to resume an interrupted tool
// call: either a flat allow/deny, or allow with edited input.
type HumanDecision struct {
	Allow         bool
	UpdatedInput  []byte // non-nil: substitute before reinvoking
	DenialMessage string // used when !Allow
}

// ErrInterrupted is yielded by a generation when the `default` permission
// mode resolves a tool call to `ask` (§4.3 step 2). Resumption reinvokes
// the same tool call at the same step with the human's decision.
type ErrInterrupted struct {
	Descriptor InterruptDescriptor

	mu       sync.Mutex
	resume   func(ctx context.Context, decision HumanDecision) (ToolResult, error)
	ttlTimer *time.Timer
}

func (e *ErrInterrupted) Error() string {
	return fmt.Sprintf("interrupted at tool call %s (%s): %s", e.Descriptor.ToolCallID, e.Descriptor.ToolName, e.Descriptor.Request)
}

// newErrInterrupted wires a resume closure and applies the default TTL.
func newErrInterrupted(descriptor InterruptDescriptor, resume func(ctx context.Context, decision HumanDecision) (ToolResult, error)) *ErrInterrupted {
	e := &ErrInterrupted{Descriptor: descriptor, resume: resume}
	e.WithInterruptTTL(defaultInterruptTTL)
	return e
}

// Resume continues the tool call with the human's decision. Single-use:
// calling it more than once, or after release/expiry, returns an error.
func (e *ErrInterrupted) Resume(ctx context.Context, decision HumanDecision) (ToolResult, error) {
	e.mu.Lock()
	if e.ttlTimer != nil {
		e.ttlTimer.Stop()
	}
	fn := e.resume
	e.resume = nil
	e.mu.Unlock()

	if fn == nil {
		return ToolResult{}, fmt.Errorf("agentrt: interrupt %s already resumed, released, or expired", e.Descriptor.ID)
	}
	return fn(ctx, decision)
}

// Release frees the captured resume closure without resuming. Safe to
// call multiple times.
func (e *ErrInterrupted) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ttlTimer != nil {
		e.ttlTimer.Stop()
	}
	e.resume = nil
}

// WithInterruptTTL overrides the automatic-release timer.
func (e *ErrInterrupted) WithInterruptTTL(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ttlTimer != nil {
		e.ttlTimer.Stop()
	}
	if d <= 0 {
		e.ttlTimer = nil
		return
	}
	e.ttlTimer = time.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.resume = nil
	})
}
