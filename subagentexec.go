package agentrt

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SubagentCallFunc performs the single model-SDK call a subagent
// invocation boils down to (§4.5.2: "calls the underlying model-SDK once
// (single generate-equivalent)"). The agent core supplies this; the
// coordinator itself has no opinion on how a model call is made.
type SubagentCallFunc func(ctx context.Context, def SubagentDefinition, prompt string, subctx *SubagentContext) (text string, steps []ResponseStep, finishReason string, err error)

// SubagentEventSink receives the §4.5.2 lifecycle events. Any field left
// nil is simply not invoked.
type SubagentEventSink struct {
	OnStart  func(subagentType, prompt string)
	OnStep   func(stepNumber int, toolCalls []ToolCall)
	OnFinish func(success bool, finishReason string)
	OnError  func(err error)
}

// SubagentResult is what ExecuteSubagent returns (§4.5.2).
type SubagentResult struct {
	Success      bool
	Text         string
	Steps        []ResponseStep
	FinishReason string
	Duration     time.Duration
	Context      *SubagentContext
	Error        string
}

// ExecuteSubagent builds an isolated context (private files, empty todos —
// the single-call default), calls call once, emits lifecycle events
// through sink, and returns the result. Grounded on agentcore.go's
// executeAgent/forwardSubagentStream panic-recovery-and-event-forwarding
// shape, adapted from a streaming subagent loop to a single-call
// generate-equivalent per §4.5.2.
func ExecuteSubagent(ctx context.Context, parentState *State, def SubagentDefinition, prompt string, call SubagentCallFunc, sink SubagentEventSink) (result SubagentResult) {
	start := time.Now()
	subctx := CreateSubagentContext(parentState, false, true, nil)
	result.Context = subctx

	if sink.OnStart != nil {
		sink.OnStart(def.Type, prompt)
	}

	text, steps, finishReason, err := func() (text string, steps []ResponseStep, finishReason string, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("subagent %q panic: %v", def.Type, p)
			}
		}()
		return call(ctx, def, prompt, subctx)
	}()
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err.Error()
		if sink.OnError != nil {
			sink.OnError(err)
		}
		return result
	}

	for i, step := range steps {
		if sink.OnStep != nil {
			sink.OnStep(i+1, step.ToolCalls)
		}
	}

	MergeSubagentContext(parentState, subctx)

	result.Success = true
	result.Text = text
	result.Steps = steps
	result.FinishReason = finishReason
	if sink.OnFinish != nil {
		sink.OnFinish(true, finishReason)
	}
	return result
}

// SubagentTask is one unit of work for ExecuteSubagentsParallel.
type SubagentTask struct {
	Definition SubagentDefinition
	Prompt     string
}

// ParallelSubagentResult is what ExecuteSubagentsParallel returns (§4.5.2).
type ParallelSubagentResult struct {
	Results       []SubagentResult
	SuccessCount  int
	FailureCount  int
	AllSucceeded  bool
	TotalDuration time.Duration
}

// ExecuteSubagentsParallel runs every task concurrently, sharing parent
// files across all of them (so concurrent writes are all visible to the
// parent immediately, per §4.5.2's "shared files"); each task still gets
// its own isolated todo list. Partial failures do not cancel siblings.
// Each goroutine writes only to its own results[i]; with no overlapping
// index there is nothing to guard, and wg.Wait() below is the
// happens-before barrier before the slice is read.
func ExecuteSubagentsParallel(ctx context.Context, parentState *State, tasks []SubagentTask, call SubagentCallFunc, onResult func(index int, result SubagentResult)) ParallelSubagentResult {
	start := time.Now()
	results := make([]SubagentResult, len(tasks))

	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		go func(i int, task SubagentTask) {
			defer wg.Done()
			subctx := CreateSubagentContext(parentState, true, true, nil)

			text, steps, finishReason, err := func() (text string, steps []ResponseStep, finishReason string, err error) {
				defer func() {
					if p := recover(); p != nil {
						err = fmt.Errorf("subagent %q panic: %v", task.Definition.Type, p)
					}
				}()
				return call(ctx, task.Definition, task.Prompt, subctx)
			}()

			r := SubagentResult{Context: subctx}
			if err != nil {
				r.Error = err.Error()
			} else {
				r.Success = true
				r.Text = text
				r.Steps = steps
				r.FinishReason = finishReason
			}

			results[i] = r

			if onResult != nil {
				onResult(i, r)
			}
		}(i, task)
	}
	wg.Wait()

	var out ParallelSubagentResult
	out.Results = results
	out.AllSucceeded = true
	for _, r := range results {
		if r.Success {
			out.SuccessCount++
		} else {
			out.FailureCount++
			out.AllSucceeded = false
		}
	}
	out.TotalDuration = time.Since(start)
	return out
}
