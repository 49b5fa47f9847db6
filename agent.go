package agentrt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// defaultMaxSteps bounds the tool-calling loop when AgentConfig.MaxSteps
// is unset.
const defaultMaxSteps = 25

// GenerateStatus discriminates the three shapes Agent.Generate can return
// (§4.6.1).
type GenerateStatus string

const (
	StatusComplete    GenerateStatus = "complete"
	StatusInterrupted GenerateStatus = "interrupted"
	StatusHandoff     GenerateStatus = "handoff"
)

// HandoffRequest is what a tool asks for via RequestHandoff (§4.6.1 step
// 7, §6's tool `options.handoff`/`options.handback`).
type HandoffRequest struct {
	TargetAgent string
	Context     map[string]any
	Resumable   bool
	IsHandback  bool
}

// GenerateResult is the outcome of Agent.Generate/Resume/StreamResponse.
// At most one of Interrupt/Handoff is non-nil, matching Status (both are nil
// when Status is complete); the other generation fields carry whatever was produced before Status settled
// (partial text/steps/usage on interrupt or handoff).
type GenerateResult struct {
	Status GenerateStatus

	Text         string
	Steps        []ResponseStep
	FinishReason string
	Usage        Usage

	Interrupt *InterruptDescriptor
	Handoff   *HandoffRequest
}

// GenerateOptions is the input to Agent.Generate/Stream/StreamResponse.
type GenerateOptions struct {
	Messages []ChatMessage
}

// AgentConfig configures an Agent (§4.6). Fields mirror agentcore.go's
// agentCore plus toolwrapper.go's ToolWrapperConfig, narrowed to what the
// hook-mediated generate/stream pipeline needs.
type AgentConfig struct {
	Name        string
	Description string

	Provider Provider
	Tools    *ToolRegistry
	Hooks    *HookRegistry

	SessionID string
	ThreadID  string
	Cwd       string

	Mode              PermissionMode
	BlockShellFileOps bool
	ExtractCommand    func(args json.RawMessage) string

	SystemPrompt   string
	ResponseSchema *ResponseSchema

	MaxSteps   int // tool-calling round cap, analogue of loopConfig.maxIter
	MaxRetries int // hook-retry ceiling shared by generate and tool calls

	Tracer Tracer
	Logger *slog.Logger
}

// Agent is a single LLM tool-calling unit implementing §4.6's
// generate/stream/streamResponse against a Provider, with every tool call
// routed through the §4.3 wrapper pipeline. Grounded on agentcore.go's
// agentCore + loop.go's runLoop, re-expressed around the hook-mediated
// generate contract instead of the teacher's processor chain.
type Agent struct {
	cfg AgentConfig

	mu      sync.Mutex
	pending map[string]*pendingInterrupt
}

// NewAgent builds an Agent from cfg, applying defaults the way
// agentcore.go's initCore does.
func NewAgent(cfg AgentConfig) *Agent {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Hooks == nil {
		cfg.Hooks = NewHookRegistry()
	}
	if cfg.Tools == nil {
		cfg.Tools = NewToolRegistry()
	}
	return &Agent{cfg: cfg, pending: make(map[string]*pendingInterrupt)}
}

func (a *Agent) Name() string        { return a.cfg.Name }
func (a *Agent) Description() string { return a.cfg.Description }

// --- handoff signal: a context-carried side channel a dispatched tool
// uses to reach RequestHandoff, mirroring input.go's
// WithInputHandlerContext/InputHandlerFromContext pattern generalized to
// the §6 tool `options.handoff` callback. ---

type handoffSignalKey struct{}

type handoffSignal struct {
	mu      sync.Mutex
	request *HandoffRequest
}

func withHandoffSignal(ctx context.Context) (context.Context, *handoffSignal) {
	sig := &handoffSignal{}
	return context.WithValue(ctx, handoffSignalKey{}, sig), sig
}

// RequestHandoff lets a tool running under ctx ask the in-flight
// generation to hand off control to targetAgent once the current step
// finishes (§4.6.1 step 7). Only the first call per generation wins;
// later calls in the same step are ignored. A tool not invoked through
// Agent.Generate/Stream (ctx carries no signal) silently no-ops.
func RequestHandoff(ctx context.Context, targetAgent string, req HandoffRequest) {
	sig, ok := ctx.Value(handoffSignalKey{}).(*handoffSignal)
	if !ok {
		return
	}
	req.TargetAgent = targetAgent
	sig.mu.Lock()
	if sig.request == nil {
		sig.request = &req
	}
	sig.mu.Unlock()
}

// pendingInterrupt captures everything needed to resume a tool-calling
// step after a human decision arrives, preserving the continuation a
// `default`-mode ErrInterrupted would otherwise lose (§4.3 step 2, §5
// "logical suspension").
type pendingInterrupt struct {
	err *ErrInterrupted

	req      ChatRequest
	messages []ChatMessage

	toolCalls       []ToolCall // the full set the model asked for this step
	resolved        []ToolCallResult
	interruptedCall ToolCall
	remaining       []ToolCall

	respContent      string
	respFinishReason string

	stepsSoFar []ResponseStep
	usage      Usage
	step       int
}

func (a *Agent) storePending(pi *pendingInterrupt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[pi.err.Descriptor.ID] = pi
}

func (a *Agent) takePending(id string) *pendingInterrupt {
	a.mu.Lock()
	defer a.mu.Unlock()
	pi := a.pending[id]
	delete(a.pending, id)
	return pi
}

// Generate runs the §4.6.1 pipeline to completion, interrupt, or handoff.
func (a *Agent) Generate(ctx context.Context, opts GenerateOptions) (GenerateResult, error) {
	ctx, _ = withHandoffSignal(ctx)

	req, ok, result, err := a.preGenerate(ctx, opts)
	if !ok {
		return result, err
	}
	return a.run(ctx, req, req.Messages, nil, Usage{}, 0)
}

// preGenerate implements §4.6.1 steps 1-3: build PreGenerateInput, run
// hooks, short-circuit on a cached respondWith, else fold in updatedInput.
// ok=false means the caller should return (result, err) as-is — a cached
// respondWith already settled the call.
func (a *Agent) preGenerate(ctx context.Context, opts GenerateOptions) (req ChatRequest, ok bool, result GenerateResult, err error) {
	req = ChatRequest{
		Messages:       opts.Messages,
		System:         a.cfg.SystemPrompt,
		MaxSteps:       a.cfg.MaxSteps,
		ResponseSchema: a.cfg.ResponseSchema,
	}

	input := HookInput{
		HookEventName: PreGenerate,
		SessionID:     a.cfg.SessionID,
		Cwd:           a.cfg.Cwd,
		ChatRequest:   &req,
	}
	outputs := a.cfg.Hooks.Dispatch(ctx, input)

	if rw := aggregateRespondWith(outputs); rw != nil && rw.ChatResponse != nil {
		resp := *rw.ChatResponse
		return req, false, GenerateResult{
			Status: StatusComplete, Text: resp.Content, Steps: resp.Steps,
			FinishReason: resp.FinishReason, Usage: resp.Usage,
		}, nil
	}

	if updated := aggregateUpdatedInput(outputs); updated != nil {
		var overlay ChatRequest
		if jsonErr := json.Unmarshal(updated, &overlay); jsonErr == nil {
			req = overlay
		}
	}

	return req, true, GenerateResult{}, nil
}

// run executes one model round and its tool-calling consequences, then
// either settles (complete/interrupted/handoff) or recurses into the
// next round — the hook-mediated analogue of loop.go's runLoop iteration
// body, minus the PreGenerate/respondWith/updatedInput handling that
// preGenerate already applied once at the top of the call.
func (a *Agent) run(ctx context.Context, req ChatRequest, messages []ChatMessage, stepsSoFar []ResponseStep, usage Usage, step int) (GenerateResult, error) {
	hctx, _ := ctx.Value(handoffSignalKey{}).(*handoffSignal)

	if step >= a.cfg.MaxSteps {
		return a.forcedSynthesis(ctx, req, messages, stepsSoFar, usage)
	}

	req.Messages = messages
	req.Tools = a.cfg.Tools.GetLoadedTools()

	baseInput := HookInput{SessionID: a.cfg.SessionID, Cwd: a.cfg.Cwd}

	resp, err := runWithHookRetry(ctx, a.cfg.Hooks, PostGenerateFailure, baseInput, a.cfg.MaxRetries, func(attempt int) (ChatResponse, error) {
		return a.cfg.Provider.ChatWithTools(ctx, req, req.Tools)
	})
	if err != nil {
		a.cfg.Logger.Error("agent generate failed", "agent", a.cfg.Name, "step", step, "error", err)
		return GenerateResult{}, err
	}

	resp = a.postGenerate(ctx, baseInput, resp)
	usage = addUsage(usage, resp.Usage)

	if len(resp.ToolCalls) == 0 {
		stepsSoFar = append(stepsSoFar, ResponseStep{Text: resp.Content, FinishReason: resp.FinishReason})
		return GenerateResult{Status: StatusComplete, Text: resp.Content, Steps: stepsSoFar, FinishReason: resp.FinishReason, Usage: usage}, nil
	}

	resolved, interruptedCall, remaining, interrupted := a.dispatchStep(ctx, resp.ToolCalls, step)
	if interrupted != nil {
		a.storePending(&pendingInterrupt{
			err: interrupted, req: req, messages: messages, toolCalls: resp.ToolCalls,
			resolved: resolved, interruptedCall: interruptedCall, remaining: remaining,
			respContent: resp.Content, respFinishReason: resp.FinishReason,
			stepsSoFar: stepsSoFar, usage: usage, step: step,
		})
		return GenerateResult{Status: StatusInterrupted, Interrupt: &interrupted.Descriptor, Steps: stepsSoFar, Usage: usage}, nil
	}

	messages, stepsSoFar, handoffResult := a.advanceStep(messages, resp.Content, resp.ToolCalls, resolved, resp.FinishReason, stepsSoFar, usage, hctx)
	if handoffResult != nil {
		return *handoffResult, nil
	}
	return a.run(ctx, req, messages, stepsSoFar, usage, step+1)
}

// postGenerate dispatches PostGenerate and applies the first non-empty
// updatedResult (§4.6.1 step 5).
func (a *Agent) postGenerate(ctx context.Context, baseInput HookInput, resp ChatResponse) ChatResponse {
	input := baseInput
	input.HookEventName = PostGenerate
	input.ChatResponse = &resp
	if updated := aggregateUpdatedResult(a.cfg.Hooks.Dispatch(ctx, input)); updated != nil && updated.ChatResponse != nil {
		return *updated.ChatResponse
	}
	return resp
}

// dispatchStep runs each tool call in order through the §4.3 wrapper.
// Sequential, not loop.go's worker-pool dispatchParallel: an `ask`-mode
// interrupt must stop at a single, resumable point, so the calls after it
// are captured as `remaining` rather than raced concurrently.
func (a *Agent) dispatchStep(ctx context.Context, toolCalls []ToolCall, step int) (resolved []ToolCallResult, interruptedCall ToolCall, remaining []ToolCall, interrupted *ErrInterrupted) {
	for i, tc := range toolCalls {
		wrapped := WrapTool(a.toolWrapperConfig(), tc.Name, a.wrapToolFn(tc.Name))
		result, err := wrapped(ctx, WrappedToolCall{ToolCallID: tc.ID, Step: step, Args: tc.Args})

		var ei *ErrInterrupted
		if errors.As(err, &ei) {
			return resolved, tc, append([]ToolCall(nil), toolCalls[i+1:]...), ei
		}

		resolved = append(resolved, ToolCallResult{ToolCallID: tc.ID, ToolName: tc.Name, Output: toolResultOutput(result)})
	}
	return resolved, ToolCall{}, nil, nil
}

// toolResultOutput flattens a ToolResult to the plain-text output the
// model sees, per §4.3's {success:false, error, message} failure envelope.
func toolResultOutput(result ToolResult) string {
	if result.Success {
		return result.Output
	}
	if result.Message != "" {
		return fmt.Sprintf("%s: %s", result.Error, result.Message)
	}
	return result.Error
}

func (a *Agent) toolWrapperConfig() ToolWrapperConfig {
	return ToolWrapperConfig{
		Hooks:             a.cfg.Hooks,
		SessionID:         a.cfg.SessionID,
		ThreadID:          a.cfg.ThreadID,
		Cwd:               a.cfg.Cwd,
		Mode:              a.cfg.Mode,
		BlockShellFileOps: a.cfg.BlockShellFileOps,
		MaxRetries:        a.cfg.MaxRetries,
		Tracer:            a.cfg.Tracer,
		ExtractCommand:    a.cfg.ExtractCommand,
	}
}

func (a *Agent) wrapToolFn(name string) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		return a.cfg.Tools.Execute(ctx, name, args)
	}
}

// advanceStep folds a settled step's results into the conversation and
// checks for a tool-requested handoff. A non-nil return means a handoff
// fired and the caller should return it as-is; otherwise the caller
// continues its own loop (sync or streaming) with the returned
// messages/steps at step+1.
func (a *Agent) advanceStep(messages []ChatMessage, respContent string, toolCalls []ToolCall, results []ToolCallResult, finishReason string, stepsSoFar []ResponseStep, usage Usage, hctx *handoffSignal) ([]ChatMessage, []ResponseStep, *GenerateResult) {
	messages = append(messages, ChatMessage{Role: "assistant", Content: respContent, ToolCalls: toolCalls})
	for _, r := range results {
		messages = append(messages, ToolResultMessage(r.ToolCallID, r.Output))
	}
	stepsSoFar = append(stepsSoFar, ResponseStep{Text: respContent, ToolCalls: toolCalls, ToolResults: results, FinishReason: finishReason})

	if hctx != nil {
		hctx.mu.Lock()
		req := hctx.request
		hctx.mu.Unlock()
		if req != nil {
			result := GenerateResult{Status: StatusHandoff, Text: respContent, Steps: stepsSoFar, Usage: usage, Handoff: req}
			return messages, stepsSoFar, &result
		}
	}
	return messages, stepsSoFar, nil
}

// forcedSynthesis mirrors loop.go's max-iterations fallback: ask the
// model for a best-effort final answer with tools withheld, once.
func (a *Agent) forcedSynthesis(ctx context.Context, req ChatRequest, messages []ChatMessage, stepsSoFar []ResponseStep, usage Usage) (GenerateResult, error) {
	synthMessages := append(append([]ChatMessage(nil), messages...),
		UserMessage("You have reached the maximum number of tool-calling steps. Summarize what you found and give your best final answer now."))
	finalReq := req
	finalReq.Messages = synthMessages
	finalReq.Tools = nil

	resp, err := a.cfg.Provider.Chat(ctx, finalReq)
	if err != nil {
		return GenerateResult{}, err
	}
	usage = addUsage(usage, resp.Usage)
	stepsSoFar = append(stepsSoFar, ResponseStep{Text: resp.Content, FinishReason: resp.FinishReason})
	return GenerateResult{Status: StatusComplete, Text: resp.Content, Steps: stepsSoFar, FinishReason: resp.FinishReason, Usage: usage}, nil
}

// Resume continues a generation that returned StatusInterrupted, applying
// the human's decision to the captured tool call and running any
// remaining calls in that step before resuming the round-trip loop.
// Works regardless of whether the interrupt originated from Generate or
// Stream: resumption always completes non-streamed, matching §5's
// "logical suspension... may resume later, arbitrarily later" contract.
func (a *Agent) Resume(ctx context.Context, interruptID string, decision HumanDecision) (GenerateResult, error) {
	pi := a.takePending(interruptID)
	if pi == nil {
		return GenerateResult{}, fmt.Errorf("agentrt: no pending interrupt %s", interruptID)
	}
	ctx, hctx := withHandoffSignal(ctx)

	toolResult, err := pi.err.Resume(ctx, decision)
	if err != nil {
		return GenerateResult{}, err
	}
	resolved := append(append([]ToolCallResult(nil), pi.resolved...),
		ToolCallResult{ToolCallID: pi.interruptedCall.ID, ToolName: pi.interruptedCall.Name, Output: toolResultOutput(toolResult)})

	more, nextInterruptedCall, remaining, nextInterrupted := a.dispatchStep(ctx, pi.remaining, pi.step)
	resolved = append(resolved, more...)

	if nextInterrupted != nil {
		a.storePending(&pendingInterrupt{
			err: nextInterrupted, req: pi.req, messages: pi.messages, toolCalls: pi.toolCalls,
			resolved: resolved, interruptedCall: nextInterruptedCall, remaining: remaining,
			respContent: pi.respContent, respFinishReason: pi.respFinishReason,
			stepsSoFar: pi.stepsSoFar, usage: pi.usage, step: pi.step,
		})
		return GenerateResult{Status: StatusInterrupted, Interrupt: &nextInterrupted.Descriptor, Steps: pi.stepsSoFar, Usage: pi.usage}, nil
	}

	messages, stepsSoFar, handoffResult := a.advanceStep(pi.messages, pi.respContent, pi.toolCalls, resolved, pi.respFinishReason, pi.stepsSoFar, pi.usage, hctx)
	if handoffResult != nil {
		return *handoffResult, nil
	}
	return a.run(ctx, pi.req, messages, stepsSoFar, pi.usage, pi.step+1)
}

// addUsage sums two Usage values, treating TotalTokens as present if
// either operand reports it.
func addUsage(x, y Usage) Usage {
	out := Usage{InputTokens: x.InputTokens + y.InputTokens, OutputTokens: x.OutputTokens + y.OutputTokens}
	if x.TotalTokens != nil || y.TotalTokens != nil {
		total := 0
		if x.TotalTokens != nil {
			total += *x.TotalTokens
		}
		if y.TotalTokens != nil {
			total += *y.TotalTokens
		}
		out.TotalTokens = &total
	}
	return out
}

// --- Streaming (§4.6.2) ---

type settledResult struct {
	result GenerateResult
	err    error
}

// Stream runs the same pipeline as Generate but forwards a fullStream of
// StreamEvent parts (text-delta/tool-call/tool-result/finish) as they are
// produced. The returned await function blocks until the stream settles
// and returns the same GenerateResult Generate would have. The event
// channel is always closed before await returns.
func (a *Agent) Stream(ctx context.Context, opts GenerateOptions) (<-chan StreamEvent, func() (GenerateResult, error)) {
	ch := make(chan StreamEvent, 16)
	done := make(chan settledResult, 1)

	go func() {
		res, err := a.streamRun(ctx, opts, ch)
		close(ch)
		done <- settledResult{res, err}
		close(done)
	}()

	await := func() (GenerateResult, error) {
		s := <-done
		return s.result, s.err
	}
	return ch, await
}

// StreamResponse drives Stream to completion and returns only the
// resolved GenerateResult, for callers that want §6's "resolved promises
// for text/usage/finishReason/steps" without consuming the incremental
// channel themselves.
func (a *Agent) StreamResponse(ctx context.Context, opts GenerateOptions) (GenerateResult, error) {
	events, await := a.Stream(ctx, opts)
	for range events {
	}
	return await()
}

func trySend(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *Agent) streamRun(ctx context.Context, opts GenerateOptions, ch chan<- StreamEvent) (GenerateResult, error) {
	ctx, hctx := withHandoffSignal(ctx)

	req, ok, result, err := a.preGenerate(ctx, opts)
	if !ok {
		if err != nil {
			return result, err
		}
		return a.replayCached(result, ch), nil
	}

	return a.streamLoop(ctx, req, req.Messages, nil, Usage{}, 0, ch, hctx)
}

// replayCached re-emits a cached respondWith as synthetic stream parts so
// a consumer cannot distinguish it from a live stream (§4.6.2).
func (a *Agent) replayCached(cached GenerateResult, ch chan<- StreamEvent) GenerateResult {
	if cached.Text != "" {
		ch <- StreamEvent{Type: EventTextDelta, Content: cached.Text}
	}
	for _, step := range cached.Steps {
		for _, tc := range step.ToolCalls {
			ch <- StreamEvent{Type: EventToolCall, Name: tc.Name, Args: tc.Args}
		}
		for _, tr := range step.ToolResults {
			ch <- StreamEvent{Type: EventToolResult, Name: tr.ToolName, Content: tr.Output}
		}
	}
	usage := cached.Usage
	ch <- StreamEvent{Type: EventFinish, FinishReason: cached.FinishReason, Usage: &usage}
	return cached
}

// streamLoop is run's streaming counterpart: one Provider.ChatStream call
// per round, forwarding its parts live, then the same tool-dispatch/
// handoff/interrupt handling as run (§4.6.2's "identical hook semantics"
// except PostGenerateFailure does not retry stream-body errors).
func (a *Agent) streamLoop(ctx context.Context, req ChatRequest, messages []ChatMessage, stepsSoFar []ResponseStep, usage Usage, step int, ch chan<- StreamEvent, hctx *handoffSignal) (GenerateResult, error) {
	if step >= a.cfg.MaxSteps {
		return a.forcedSynthesisStream(ctx, req, messages, stepsSoFar, usage, ch)
	}

	req.Messages = messages
	req.Tools = a.cfg.Tools.GetLoadedTools()

	baseInput := HookInput{SessionID: a.cfg.SessionID, Cwd: a.cfg.Cwd}

	providerCh := make(chan StreamEvent, 16)
	var resp ChatResponse
	var callErr error
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		resp, callErr = a.cfg.Provider.ChatStream(ctx, req, providerCh)
	}()
	for ev := range providerCh {
		if !trySend(ctx, ch, ev) {
			<-streamDone
			return GenerateResult{}, ctx.Err()
		}
	}
	<-streamDone

	if callErr != nil {
		// §4.6.2: stream-setup errors fire PostGenerateFailure once;
		// body-consumption errors are not retryable by design, so unlike
		// run's runWithHookRetry there is no retry loop here.
		failInput := baseInput
		failInput.HookEventName = PostGenerateFailure
		failInput.Error = callErr.Error()
		a.cfg.Hooks.Dispatch(ctx, failInput)
		return GenerateResult{}, callErr
	}

	resp = a.postGenerate(ctx, baseInput, resp)
	usage = addUsage(usage, resp.Usage)

	if len(resp.ToolCalls) == 0 {
		stepsSoFar = append(stepsSoFar, ResponseStep{Text: resp.Content, FinishReason: resp.FinishReason})
		finalUsage := usage
		trySend(ctx, ch, StreamEvent{Type: EventFinish, FinishReason: resp.FinishReason, Usage: &finalUsage})
		return GenerateResult{Status: StatusComplete, Text: resp.Content, Steps: stepsSoFar, FinishReason: resp.FinishReason, Usage: usage}, nil
	}

	for _, tc := range resp.ToolCalls {
		trySend(ctx, ch, StreamEvent{Type: EventToolCall, Name: tc.Name, Args: tc.Args})
	}

	resolved, interruptedCall, remaining, interrupted := a.dispatchStep(ctx, resp.ToolCalls, step)
	for _, r := range resolved {
		trySend(ctx, ch, StreamEvent{Type: EventToolResult, Name: r.ToolName, Content: r.Output})
	}

	if interrupted != nil {
		finalUsage := usage
		a.storePending(&pendingInterrupt{
			err: interrupted, req: req, messages: messages, toolCalls: resp.ToolCalls,
			resolved: resolved, interruptedCall: interruptedCall, remaining: remaining,
			respContent: resp.Content, respFinishReason: resp.FinishReason,
			stepsSoFar: stepsSoFar, usage: usage, step: step,
		})
		trySend(ctx, ch, StreamEvent{Type: EventFinish, FinishReason: "interrupted", Usage: &finalUsage})
		return GenerateResult{Status: StatusInterrupted, Interrupt: &interrupted.Descriptor, Steps: stepsSoFar, Usage: usage}, nil
	}

	messages, stepsSoFar, handoffResult := a.advanceStep(messages, resp.Content, resp.ToolCalls, resolved, resp.FinishReason, stepsSoFar, usage, hctx)
	if handoffResult != nil {
		finalUsage := handoffResult.Usage
		trySend(ctx, ch, StreamEvent{Type: EventFinish, FinishReason: "handoff", Usage: &finalUsage})
		return *handoffResult, nil
	}
	return a.streamLoop(ctx, req, messages, stepsSoFar, usage, step+1, ch, hctx)
}

// forcedSynthesisStream is streamLoop's counterpart to forcedSynthesis:
// the fallback answer is emitted as a single text-delta, not streamed
// token-by-token, since Provider.Chat (not ChatStream) produces it.
func (a *Agent) forcedSynthesisStream(ctx context.Context, req ChatRequest, messages []ChatMessage, stepsSoFar []ResponseStep, usage Usage, ch chan<- StreamEvent) (GenerateResult, error) {
	result, err := a.forcedSynthesis(ctx, req, messages, stepsSoFar, usage)
	if err != nil {
		return result, err
	}
	trySend(ctx, ch, StreamEvent{Type: EventTextDelta, Content: result.Text})
	finalUsage := result.Usage
	trySend(ctx, ch, StreamEvent{Type: EventFinish, FinishReason: result.FinishReason, Usage: &finalUsage})
	return result, nil
}
