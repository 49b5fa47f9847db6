package observer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	agentrt "github.com/corestrand/agentrt"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockProvider for observer tests.
type mockProvider struct {
	name     string
	chatResp agentrt.ChatResponse
	chatErr  error
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) Chat(_ context.Context, _ agentrt.ChatRequest) (agentrt.ChatResponse, error) {
	return m.chatResp, m.chatErr
}
func (m *mockProvider) ChatWithTools(_ context.Context, _ agentrt.ChatRequest, _ []agentrt.ToolDefinition) (agentrt.ChatResponse, error) {
	return m.chatResp, m.chatErr
}
func (m *mockProvider) ChatStream(_ context.Context, _ agentrt.ChatRequest, ch chan<- agentrt.StreamEvent) (agentrt.ChatResponse, error) {
	ch <- agentrt.StreamEvent{Type: agentrt.EventTextDelta, Content: "hello"}
	ch <- agentrt.StreamEvent{Type: agentrt.EventTextDelta, Content: " world"}
	close(ch)
	return m.chatResp, m.chatErr
}

// mockProviderManyEvents sends count events then closes the channel.
type mockProviderManyEvents struct {
	name     string
	chatResp agentrt.ChatResponse
	count    int
}

func (m *mockProviderManyEvents) Name() string { return m.name }
func (m *mockProviderManyEvents) Chat(_ context.Context, _ agentrt.ChatRequest) (agentrt.ChatResponse, error) {
	return m.chatResp, nil
}
func (m *mockProviderManyEvents) ChatWithTools(_ context.Context, _ agentrt.ChatRequest, _ []agentrt.ToolDefinition) (agentrt.ChatResponse, error) {
	return m.chatResp, nil
}
func (m *mockProviderManyEvents) ChatStream(_ context.Context, _ agentrt.ChatRequest, ch chan<- agentrt.StreamEvent) (agentrt.ChatResponse, error) {
	for i := range m.count {
		select {
		case ch <- agentrt.StreamEvent{Type: agentrt.EventTextDelta, Content: string(rune('a' + i%26))}:
		default:
			// Channel full — stop sending to avoid blocking forever in tests.
		}
	}
	close(ch)
	return m.chatResp, nil
}

// mockEmbedding for observer tests.
type mockEmbedding struct {
	name string
	dims int
	vecs [][]float32
	err  error
}

func (m *mockEmbedding) Name() string       { return m.name }
func (m *mockEmbedding) Dimensions() int    { return m.dims }
func (m *mockEmbedding) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return m.vecs, m.err
}

// mockRunner stands in for *agentrt.Session in ObservedSession tests.
type mockRunner struct {
	agentName string
	state     agentrt.SessionState
	outs      []agentrt.SessionOutput
	err       error
}

func (m *mockRunner) CurrentAgent() string        { return m.agentName }
func (m *mockRunner) State() agentrt.SessionState { return m.state }
func (m *mockRunner) SendMessage(_ context.Context, _ string) ([]agentrt.SessionOutput, error) {
	return m.outs, m.err
}
func (m *mockRunner) ResumeInterrupt(_ context.Context, _ string, _ agentrt.HumanDecision) ([]agentrt.SessionOutput, error) {
	return m.outs, m.err
}

// testInstruments creates a no-op Instruments using the global OTEL providers
// (which are no-ops by default). This is safe for testing delegation behavior
// without any real OTEL backend.
func testInstruments(t *testing.T) *Instruments {
	t.Helper()
	inst, err := newInstruments()
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}
	return inst
}

// ---------------------------------------------------------------------------
// ObservedProvider tests
// ---------------------------------------------------------------------------

func TestObservedProviderName(t *testing.T) {
	inner := &mockProvider{name: "test-provider"}
	op := WrapProvider(inner, "test-model", testInstruments(t))

	got := op.Name()
	if got != "test-provider" {
		t.Errorf("Name() = %q, want %q", got, "test-provider")
	}
}

func TestObservedProviderChat(t *testing.T) {
	want := agentrt.ChatResponse{
		Content: "hello from LLM",
		Usage:   agentrt.Usage{InputTokens: 10, OutputTokens: 5},
	}
	inner := &mockProvider{name: "p", chatResp: want}
	op := WrapProvider(inner, "m", testInstruments(t))

	got, err := op.Chat(context.Background(), agentrt.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat returned unexpected error: %v", err)
	}
	if got.Content != want.Content {
		t.Errorf("Content = %q, want %q", got.Content, want.Content)
	}
	if got.Usage != want.Usage {
		t.Errorf("Usage = %+v, want %+v", got.Usage, want.Usage)
	}
}

func TestObservedProviderChatError(t *testing.T) {
	wantErr := errors.New("provider unavailable")
	inner := &mockProvider{name: "p", chatErr: wantErr}
	op := WrapProvider(inner, "m", testInstruments(t))

	_, err := op.Chat(context.Background(), agentrt.ChatRequest{})
	if !errors.Is(err, wantErr) {
		t.Errorf("Chat error = %v, want %v", err, wantErr)
	}
}

func TestObservedProviderChatWithTools(t *testing.T) {
	want := agentrt.ChatResponse{
		Content: "tool response",
		ToolCalls: []agentrt.ToolCall{
			{ID: "call-1", Name: "search", Args: json.RawMessage(`{"q":"go"}`)},
		},
		Usage: agentrt.Usage{InputTokens: 20, OutputTokens: 15},
	}
	inner := &mockProvider{name: "p", chatResp: want}
	op := WrapProvider(inner, "m", testInstruments(t))

	tools := []agentrt.ToolDefinition{{Name: "search", Description: "search things"}}
	got, err := op.ChatWithTools(context.Background(), agentrt.ChatRequest{}, tools)
	if err != nil {
		t.Fatalf("ChatWithTools returned unexpected error: %v", err)
	}
	if got.Content != want.Content {
		t.Errorf("Content = %q, want %q", got.Content, want.Content)
	}
	if len(got.ToolCalls) != 1 {
		t.Fatalf("ToolCalls length = %d, want 1", len(got.ToolCalls))
	}
	if got.ToolCalls[0].Name != "search" {
		t.Errorf("ToolCalls[0].Name = %q, want %q", got.ToolCalls[0].Name, "search")
	}
	if got.Usage != want.Usage {
		t.Errorf("Usage = %+v, want %+v", got.Usage, want.Usage)
	}
}

func TestObservedProviderChatStream(t *testing.T) {
	want := agentrt.ChatResponse{
		Content: "hello world",
		Usage:   agentrt.Usage{InputTokens: 8, OutputTokens: 2},
	}
	inner := &mockProvider{name: "p", chatResp: want}
	op := WrapProvider(inner, "m", testInstruments(t))

	ch := make(chan agentrt.StreamEvent, 10)
	got, err := op.ChatStream(context.Background(), agentrt.ChatRequest{}, ch)
	if err != nil {
		t.Fatalf("ChatStream returned unexpected error: %v", err)
	}

	// The wrapper's goroutine forwards events from the inner wrappedCh to our ch
	// and closes our ch when done. Collect all events.
	var events []agentrt.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("received %d events, want 2", len(events))
	}
	if events[0].Content != "hello" || events[1].Content != " world" {
		t.Errorf("events = %v, want [hello, ' world']", events)
	}
	if got.Content != want.Content {
		t.Errorf("Content = %q, want %q", got.Content, want.Content)
	}
	if got.Usage != want.Usage {
		t.Errorf("Usage = %+v, want %+v", got.Usage, want.Usage)
	}
}

func TestObservedProviderChatStreamUnbuffered(t *testing.T) {
	want := agentrt.ChatResponse{
		Content: "hello world",
		Usage:   agentrt.Usage{InputTokens: 8, OutputTokens: 2},
	}
	inner := &mockProvider{name: "p", chatResp: want}
	op := WrapProvider(inner, "m", testInstruments(t))

	// Use an unbuffered channel — previously this would deadlock because the
	// forwarding goroutine blocked on ch <- ev while ChatStream waited on <-done.
	ch := make(chan agentrt.StreamEvent)

	// Must read from ch concurrently since it's unbuffered.
	var events []agentrt.StreamEvent
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for ev := range ch {
			events = append(events, ev)
		}
	}()

	got, err := op.ChatStream(context.Background(), agentrt.ChatRequest{}, ch)
	if err != nil {
		t.Fatalf("ChatStream returned unexpected error: %v", err)
	}
	<-readDone

	if len(events) != 2 {
		t.Fatalf("received %d events, want 2", len(events))
	}
	if got.Content != want.Content {
		t.Errorf("Content = %q, want %q", got.Content, want.Content)
	}
}

func TestObservedProviderChatStreamContextCancel(t *testing.T) {
	// manyEvents sends more events than the channel buffer can hold.
	manyEvents := &mockProviderManyEvents{
		name:     "p",
		chatResp: agentrt.ChatResponse{Content: "partial"},
		count:    200,
	}
	op := WrapProvider(manyEvents, "m", testInstruments(t))

	ctx, cancel := context.WithCancel(context.Background())

	// Small buffer — the forwarding goroutine blocks on ch until the reader
	// below drains it.
	ch := make(chan agentrt.StreamEvent, 2)

	// Read a couple events then cancel.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		n := 0
		for range ch {
			n++
			if n == 2 {
				cancel()
			}
		}
	}()

	_, _ = op.ChatStream(ctx, agentrt.ChatRequest{}, ch)
	<-readDone
}

// ---------------------------------------------------------------------------
// WrapToolFunc tests
// ---------------------------------------------------------------------------

func TestWrapToolFuncSuccess(t *testing.T) {
	want := agentrt.ToolResult{Success: true, Output: "result data"}
	inner := func(_ context.Context, _ json.RawMessage) (agentrt.ToolResult, error) {
		return want, nil
	}
	wrapped := WrapToolFunc("search", inner, testInstruments(t))

	got, err := wrapped(context.Background(), json.RawMessage(`{"q":"test"}`))
	if err != nil {
		t.Fatalf("wrapped tool returned unexpected error: %v", err)
	}
	if got.Output != want.Output {
		t.Errorf("Output = %q, want %q", got.Output, want.Output)
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want empty", got.Error)
	}
}

func TestWrapToolFuncToolError(t *testing.T) {
	want := agentrt.ToolResult{Success: false, Error: "tool failed"}
	inner := func(_ context.Context, _ json.RawMessage) (agentrt.ToolResult, error) {
		return want, nil
	}
	wrapped := WrapToolFunc("search", inner, testInstruments(t))

	got, err := wrapped(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("wrapped tool returned unexpected error: %v", err)
	}
	if got.Error != want.Error {
		t.Errorf("Error = %q, want %q", got.Error, want.Error)
	}
}

func TestWrapToolFuncExecutionError(t *testing.T) {
	wantErr := errors.New("tool broken")
	inner := func(_ context.Context, _ json.RawMessage) (agentrt.ToolResult, error) {
		return agentrt.ToolResult{}, wantErr
	}
	wrapped := WrapToolFunc("search", inner, testInstruments(t))

	_, err := wrapped(context.Background(), json.RawMessage(`{}`))
	if !errors.Is(err, wantErr) {
		t.Errorf("execute error = %v, want %v", err, wantErr)
	}
}

// ---------------------------------------------------------------------------
// ObservedEmbedding tests
// ---------------------------------------------------------------------------

func TestObservedEmbeddingName(t *testing.T) {
	inner := &mockEmbedding{name: "embed-provider"}
	oe := WrapEmbedding(inner, "embed-model", testInstruments(t))

	got := oe.Name()
	if got != "embed-provider" {
		t.Errorf("Name() = %q, want %q", got, "embed-provider")
	}
}

func TestObservedEmbeddingDimensions(t *testing.T) {
	inner := &mockEmbedding{dims: 768}
	oe := WrapEmbedding(inner, "embed-model", testInstruments(t))

	got := oe.Dimensions()
	if got != 768 {
		t.Errorf("Dimensions() = %d, want %d", got, 768)
	}
}

func TestObservedEmbeddingEmbed(t *testing.T) {
	want := [][]float32{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
	}
	inner := &mockEmbedding{name: "e", dims: 3, vecs: want}
	oe := WrapEmbedding(inner, "embed-model", testInstruments(t))

	got, err := oe.Embed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("Embed returned unexpected error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Embed returned %d vectors, want %d", len(got), len(want))
	}
	for i := range got {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("vector[%d] length = %d, want %d", i, len(got[i]), len(want[i]))
		}
		for j := range got[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("vector[%d][%d] = %f, want %f", i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestObservedEmbeddingEmbedError(t *testing.T) {
	wantErr := errors.New("embedding service down")
	inner := &mockEmbedding{name: "e", dims: 3, err: wantErr}
	oe := WrapEmbedding(inner, "embed-model", testInstruments(t))

	_, err := oe.Embed(context.Background(), []string{"test"})
	if !errors.Is(err, wantErr) {
		t.Errorf("Embed error = %v, want %v", err, wantErr)
	}
}

// ---------------------------------------------------------------------------
// ObservedSession tests
// ---------------------------------------------------------------------------

func TestObservedSessionDelegatesState(t *testing.T) {
	inner := &mockRunner{agentName: "triage", state: agentrt.SessionWaitingForInput}
	os := WrapSession(inner, testInstruments(t))

	if got := os.CurrentAgent(); got != "triage" {
		t.Errorf("CurrentAgent() = %q, want %q", got, "triage")
	}
	if got := os.State(); got != agentrt.SessionWaitingForInput {
		t.Errorf("State() = %q, want %q", got, agentrt.SessionWaitingForInput)
	}
}

func TestObservedSessionSendMessage(t *testing.T) {
	want := []agentrt.SessionOutput{
		{
			Type:   agentrt.OutputGenerationComplete,
			Result: &agentrt.GenerateResult{Usage: agentrt.Usage{InputTokens: 12, OutputTokens: 4}},
		},
	}
	inner := &mockRunner{agentName: "triage", outs: want}
	os := WrapSession(inner, testInstruments(t))

	got, err := os.SendMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendMessage returned unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Result.Usage.InputTokens != 12 {
		t.Errorf("SendMessage() = %+v, want %+v", got, want)
	}
}

func TestObservedSessionSendMessageError(t *testing.T) {
	wantErr := errors.New("generation failed")
	inner := &mockRunner{agentName: "triage", err: wantErr}
	os := WrapSession(inner, testInstruments(t))

	_, err := os.SendMessage(context.Background(), "hello")
	if !errors.Is(err, wantErr) {
		t.Errorf("SendMessage error = %v, want %v", err, wantErr)
	}
}

func TestObservedSessionResumeInterrupt(t *testing.T) {
	want := []agentrt.SessionOutput{{Type: agentrt.OutputGenerationComplete}}
	inner := &mockRunner{agentName: "triage", outs: want}
	os := WrapSession(inner, testInstruments(t))

	got, err := os.ResumeInterrupt(context.Background(), "int-1", agentrt.HumanDecision{})
	if err != nil {
		t.Fatalf("ResumeInterrupt returned unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ResumeInterrupt() returned %d outputs, want 1", len(got))
	}
}

// ---------------------------------------------------------------------------
// NewTracer tests
// ---------------------------------------------------------------------------

func TestNewTracerReturnsTracer(t *testing.T) {
	tracer := NewTracer()
	if tracer == nil {
		t.Fatal("NewTracer() returned nil")
	}

	// Start a span and verify it returns non-nil context and span.
	ctx, span := tracer.Start(context.Background(), "test.span",
		agentrt.StringAttr("key", "value"),
		agentrt.IntAttr("count", 42))
	if ctx == nil {
		t.Fatal("Start() returned nil context")
	}
	if span == nil {
		t.Fatal("Start() returned nil span")
	}

	// Verify span operations don't panic.
	span.SetAttr(agentrt.BoolAttr("ok", true))
	span.Event("test.event", agentrt.Float64Attr("score", 0.95))
	span.End()
}

func TestNewTracerErrorSpan(t *testing.T) {
	tracer := NewTracer()
	_, span := tracer.Start(context.Background(), "test.error")

	// Verify Error doesn't panic.
	span.Error(errors.New("test error"))
	span.End()
}
