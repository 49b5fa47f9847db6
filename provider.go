package agentrt

import "context"

// Provider abstracts the external language-model SDK (§6). Out of scope
// per §1: the runtime mediates every call through this interface but has
// no opinion on model vendor.
type Provider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// ChatWithTools sends a request with tool definitions; the response
	// may carry tool calls the caller must dispatch.
	ChatWithTools(ctx context.Context, req ChatRequest, tools []ToolDefinition) (ChatResponse, error)
	// ChatStream streams typed parts into ch, then returns the final
	// response (usage, finish reason). ch is closed by the provider
	// before returning, on both success and error paths.
	ChatStream(ctx context.Context, req ChatRequest, ch chan<- StreamEvent) (ChatResponse, error)
	// Name returns the provider name (e.g. "gemini", "anthropic").
	Name() string
}

// EmbeddingProvider abstracts text embedding, used by C5's semantic skill
// search when configured.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}
