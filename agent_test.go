package agentrt

import (
	"context"
	"encoding/json"
	"testing"
)

// fakeProvider is a scripted Provider: each call to ChatWithTools/Chat/
// ChatStream pops the next response off its queue.
type fakeProvider struct {
	responses []ChatResponse
	calls     int
	streamErr error
}

func (f *fakeProvider) next() ChatResponse {
	if f.calls >= len(f.responses) {
		return f.responses[len(f.responses)-1]
	}
	r := f.responses[f.calls]
	f.calls++
	return r
}

func (f *fakeProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return f.next(), nil
}

func (f *fakeProvider) ChatWithTools(ctx context.Context, req ChatRequest, tools []ToolDefinition) (ChatResponse, error) {
	return f.next(), nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, req ChatRequest, ch chan<- StreamEvent) (ChatResponse, error) {
	defer close(ch)
	if f.streamErr != nil {
		return ChatResponse{}, f.streamErr
	}
	resp := f.next()
	if resp.Content != "" {
		ch <- StreamEvent{Type: EventTextDelta, Content: resp.Content}
	}
	return resp, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func newTestAgent(t *testing.T, provider Provider, hooks *HookRegistry) *Agent {
	t.Helper()
	tools := NewToolRegistry()
	tools.Register(ToolDefinition{Name: "echo", Description: "echoes input"}, func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		return ToolResult{Success: true, Output: "echoed: " + string(args)}, nil
	}, ToolMetadata{})
	tools.Load([]string{"echo"})

	if hooks == nil {
		hooks = NewHookRegistry()
	}
	return NewAgent(AgentConfig{
		Name:      "test-agent",
		Provider:  provider,
		Tools:     tools,
		Hooks:     hooks,
		SessionID: "sess-1",
		Cwd:       "/tmp",
		Mode:      PermissionModeBypass,
		MaxSteps:  5,
	})
}

func TestAgentGenerateCompleteNoTools(t *testing.T) {
	provider := &fakeProvider{responses: []ChatResponse{
		{Content: "hello there", FinishReason: "stop", Usage: Usage{InputTokens: 10, OutputTokens: 5}},
	}}
	a := newTestAgent(t, provider, nil)

	result, err := a.Generate(context.Background(), GenerateOptions{Messages: []ChatMessage{UserMessage("hi")}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Status != StatusComplete {
		t.Fatalf("Status = %s, want complete", result.Status)
	}
	if result.Text != "hello there" {
		t.Fatalf("Text = %q", result.Text)
	}
	if result.Usage.InputTokens != 10 {
		t.Fatalf("Usage not propagated: %+v", result.Usage)
	}
}

func TestAgentGenerateToolLoop(t *testing.T) {
	provider := &fakeProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "call-1", Name: "echo", Args: json.RawMessage(`"x"`)}}},
		{Content: "done", FinishReason: "stop"},
	}}
	a := newTestAgent(t, provider, nil)

	result, err := a.Generate(context.Background(), GenerateOptions{Messages: []ChatMessage{UserMessage("use the tool")}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Status != StatusComplete || result.Text != "done" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("expected 2 steps (tool round + final), got %d", len(result.Steps))
	}
	if len(result.Steps[0].ToolResults) != 1 || result.Steps[0].ToolResults[0].Output != `echoed: "x"` {
		t.Fatalf("tool result not recorded: %+v", result.Steps[0].ToolResults)
	}
}

func TestAgentGenerateInterruptAndResume(t *testing.T) {
	hooks := NewHookRegistry()
	hooks.Register(PreToolUse, "", 0, func(ctx context.Context, input HookInput) (HookOutput, error) {
		return HookOutput{PermissionDecision: PermissionAsk, PermissionReason: "needs confirmation"}, nil
	})

	provider := &fakeProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "call-1", Name: "echo", Args: json.RawMessage(`"y"`)}}},
		{Content: "done after resume", FinishReason: "stop"},
	}}
	a := newTestAgent(t, provider, hooks)
	a.cfg.Mode = PermissionModeDefault // ask-mode interrupts only fire under default

	result, err := a.Generate(context.Background(), GenerateOptions{Messages: []ChatMessage{UserMessage("use the tool")}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Status != StatusInterrupted {
		t.Fatalf("Status = %s, want interrupted", result.Status)
	}
	if result.Interrupt == nil || result.Interrupt.ToolName != "echo" {
		t.Fatalf("unexpected interrupt: %+v", result.Interrupt)
	}

	resumed, err := a.Resume(context.Background(), result.Interrupt.ID, HumanDecision{Allow: true})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Status != StatusComplete || resumed.Text != "done after resume" {
		t.Fatalf("unexpected resumed result: %+v", resumed)
	}
}

func TestAgentGenerateHandoff(t *testing.T) {
	tools := NewToolRegistry()
	tools.Register(ToolDefinition{Name: "transfer"}, func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		RequestHandoff(ctx, "billing-agent", HandoffRequest{Context: map[string]any{"reason": "billing question"}, Resumable: true})
		return ToolResult{Success: true, Output: "transferring"}, nil
	}, ToolMetadata{})
	tools.Load([]string{"transfer"})

	provider := &fakeProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "call-1", Name: "transfer"}}},
	}}
	a := NewAgent(AgentConfig{
		Name: "router", Provider: provider, Tools: tools, Hooks: NewHookRegistry(),
		Mode: PermissionModeBypass, MaxSteps: 5,
	})

	result, err := a.Generate(context.Background(), GenerateOptions{Messages: []ChatMessage{UserMessage("I have a billing question")}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Status != StatusHandoff {
		t.Fatalf("Status = %s, want handoff", result.Status)
	}
	if result.Handoff == nil || result.Handoff.TargetAgent != "billing-agent" {
		t.Fatalf("unexpected handoff: %+v", result.Handoff)
	}
}

func TestAgentGenerateRespondWithCached(t *testing.T) {
	hooks := NewHookRegistry()
	hooks.Register(PreGenerate, "", 0, func(ctx context.Context, input HookInput) (HookOutput, error) {
		return HookOutput{RespondWith: &HookResult{ChatResponse: &ChatResponse{Content: "cached answer", FinishReason: "stop"}}}, nil
	})
	provider := &fakeProvider{responses: []ChatResponse{{Content: "should never be used"}}}
	a := newTestAgent(t, provider, hooks)

	result, err := a.Generate(context.Background(), GenerateOptions{Messages: []ChatMessage{UserMessage("hi")}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Status != StatusComplete || result.Text != "cached answer" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if provider.calls != 0 {
		t.Fatalf("provider should not have been called, calls=%d", provider.calls)
	}
}

func TestAgentStreamEmitsTextDeltaAndFinish(t *testing.T) {
	provider := &fakeProvider{responses: []ChatResponse{
		{Content: "streamed text", FinishReason: "stop", Usage: Usage{InputTokens: 1, OutputTokens: 2}},
	}}
	a := newTestAgent(t, provider, nil)

	events, await := a.Stream(context.Background(), GenerateOptions{Messages: []ChatMessage{UserMessage("hi")}})

	var saw []StreamEventType
	for ev := range events {
		saw = append(saw, ev.Type)
	}
	result, err := await()
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if result.Status != StatusComplete || result.Text != "streamed text" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(saw) != 2 || saw[0] != EventTextDelta || saw[1] != EventFinish {
		t.Fatalf("unexpected event sequence: %v", saw)
	}
}

func TestAgentGenerateMaxStepsForcedSynthesis(t *testing.T) {
	provider := &fakeProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "call-1", Name: "echo", Args: json.RawMessage(`"z"`)}}},
	}}
	tools := NewToolRegistry()
	tools.Register(ToolDefinition{Name: "echo"}, func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		return ToolResult{Success: true, Output: "echoed"}, nil
	}, ToolMetadata{})
	tools.Load([]string{"echo"})

	a := NewAgent(AgentConfig{
		Name: "loopy", Provider: provider, Tools: tools, Hooks: NewHookRegistry(),
		Mode: PermissionModeBypass, MaxSteps: 1,
	})
	// forcedSynthesis calls Provider.Chat once maxSteps is reached; make
	// that distinguishable from the tool-calling round above.
	provider.responses = append(provider.responses, ChatResponse{Content: "final summary", FinishReason: "stop"})

	result, err := a.Generate(context.Background(), GenerateOptions{Messages: []ChatMessage{UserMessage("go")}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.Status != StatusComplete || result.Text != "final summary" {
		t.Fatalf("unexpected result: %+v", result)
	}
}
