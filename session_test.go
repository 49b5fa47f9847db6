package agentrt

import (
	"context"
	"encoding/json"
	"testing"
)

func newSessionAgent(t *testing.T, name string, provider Provider, toolName string, toolFn ToolFunc) *Agent {
	t.Helper()
	tools := NewToolRegistry()
	if toolName != "" {
		tools.Register(ToolDefinition{Name: toolName}, toolFn, ToolMetadata{})
		tools.Load([]string{toolName})
	}
	return NewAgent(AgentConfig{
		Name: name, Provider: provider, Tools: tools, Hooks: NewHookRegistry(),
		Mode: PermissionModeBypass, MaxSteps: 5,
	})
}

func TestSessionSendMessageComplete(t *testing.T) {
	provider := &fakeProvider{responses: []ChatResponse{{Content: "hi there", FinishReason: "stop"}}}
	agent := newSessionAgent(t, "main", provider, "", nil)

	sess, err := NewSession(SessionConfig{Agents: map[string]*Agent{"main": agent}, InitialAgent: "main"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	outs, err := sess.SendMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(outs) != 2 || outs[0].Type != OutputGenerationComplete || outs[1].Type != OutputWaitingForInput {
		t.Fatalf("unexpected outputs: %+v", outs)
	}
	if sess.State() != SessionWaitingForInput {
		t.Fatalf("state = %s", sess.State())
	}
}

func TestSessionInterruptAndResume(t *testing.T) {
	hooks := NewHookRegistry()
	hooks.Register(PreToolUse, "", 0, func(ctx context.Context, input HookInput) (HookOutput, error) {
		return HookOutput{PermissionDecision: PermissionAsk}, nil
	})
	provider := &fakeProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "echo", Args: json.RawMessage(`"x"`)}}},
		{Content: "resumed", FinishReason: "stop"},
	}}
	tools := NewToolRegistry()
	tools.Register(ToolDefinition{Name: "echo"}, func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		return ToolResult{Success: true, Output: "ok"}, nil
	}, ToolMetadata{})
	tools.Load([]string{"echo"})
	agent := NewAgent(AgentConfig{
		Name: "main", Provider: provider, Tools: tools, Hooks: hooks,
		Mode: PermissionModeDefault, MaxSteps: 5,
	})

	sess, err := NewSession(SessionConfig{Agents: map[string]*Agent{"main": agent}, InitialAgent: "main"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	outs, err := sess.SendMessage(context.Background(), "use the tool")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(outs) != 1 || outs[0].Type != OutputInterrupt {
		t.Fatalf("unexpected outputs: %+v", outs)
	}
	interruptID := outs[0].Interrupt.ID

	// SendMessage should refuse while an interrupt is pending.
	if _, err := sess.SendMessage(context.Background(), "another message"); err == nil {
		t.Fatal("expected SendMessage to refuse with an unresolved interrupt")
	}

	outs, err = sess.ResumeInterrupt(context.Background(), interruptID, HumanDecision{Allow: true})
	if err != nil {
		t.Fatalf("ResumeInterrupt: %v", err)
	}
	if len(outs) != 2 || outs[0].Type != OutputGenerationComplete || outs[0].Result.Text != "resumed" {
		t.Fatalf("unexpected outputs: %+v", outs)
	}
}

func TestSessionResumableHandoffParksCaller(t *testing.T) {
	frontProvider := &fakeProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "transfer"}}},
	}}
	billingProvider := &fakeProvider{responses: []ChatResponse{
		{Content: "billing resolved", FinishReason: "stop"},
	}}

	front := newSessionAgent(t, "front", frontProvider, "transfer", func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		RequestHandoff(ctx, "billing", HandoffRequest{Context: map[string]any{"reason": "billing"}, Resumable: true})
		return ToolResult{Success: true, Output: "routing"}, nil
	})
	billing := newSessionAgent(t, "billing", billingProvider, "", nil)

	sess, err := NewSession(SessionConfig{
		Agents:       map[string]*Agent{"front": front, "billing": billing},
		InitialAgent: "front",
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	outs, err := sess.SendMessage(context.Background(), "I have a billing question")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(outs) != 3 {
		t.Fatalf("expected handoff + complete + waiting, got %+v", outs)
	}
	if outs[0].Type != OutputAgentHandoff {
		t.Fatalf("outs[0] = %+v, want agent_handoff", outs[0])
	}
	if outs[1].Type != OutputGenerationComplete || outs[1].Result.Text != "billing resolved" {
		t.Fatalf("outs[1] = %+v", outs[1])
	}
	if sess.CurrentAgent() != "billing" {
		t.Fatalf("current agent = %q, want billing", sess.CurrentAgent())
	}
	if sess.stack.depth() != 1 {
		t.Fatalf("expected front parked on the handoff stack, depth = %d", sess.stack.depth())
	}
}

func TestSessionHandoffNullTargetIsError(t *testing.T) {
	provider := &fakeProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "transfer"}}},
	}}
	front := newSessionAgent(t, "front", provider, "transfer", func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		RequestHandoff(ctx, "", HandoffRequest{})
		return ToolResult{Success: true, Output: "routing"}, nil
	})

	sess, err := NewSession(SessionConfig{Agents: map[string]*Agent{"front": front}, InitialAgent: "front"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	outs, err := sess.SendMessage(context.Background(), "go")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(outs) != 1 || outs[0].Type != OutputError {
		t.Fatalf("unexpected outputs: %+v", outs)
	}
	if sess.State() != SessionError {
		t.Fatalf("state = %s, want error", sess.State())
	}
}

func TestSessionDrainsBackgroundTasksBeforeNextTurn(t *testing.T) {
	provider := &fakeProvider{responses: []ChatResponse{{Content: "ok", FinishReason: "stop"}}}
	agent := newSessionAgent(t, "main", provider, "", nil)

	tasks := NewTaskManager(nil)
	done := make(chan struct{})
	tasks.Spawn(context.Background(), "worker", "background work", func(ctx context.Context) (string, error) {
		<-done
		return "finished", nil
	})

	sess, err := NewSession(SessionConfig{
		Agents: map[string]*Agent{"main": agent}, InitialAgent: "main",
		Tasks: tasks, AutoDrainTasks: true,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	close(done) // let the background task finish immediately

	outs, err := sess.SendMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(outs) != 3 || outs[0].Type != OutputBackgroundTaskComplete {
		t.Fatalf("expected background-task completion before generation output, got %+v", outs)
	}
	if outs[0].Task.Result != "finished" {
		t.Fatalf("unexpected task result: %+v", outs[0].Task)
	}
}
